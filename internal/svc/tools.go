package svc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"pfolio-api/pkg/analytics"
	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/forecast"
	marketpkg "pfolio-api/pkg/market"
	"pfolio-api/pkg/optimize"
	"pfolio-api/pkg/snapshot"
	"pfolio-api/pkg/tools"
)

// defaultPeriodDays is the trailing history window fetched for tools that do
// not pin one, in calendar days.
const defaultPeriodDays = 365

const defaultSentimentWindowDays = 7

func (svc *ServiceContext) fetchSeries(ctx context.Context, tickers []string, periodDays int) (map[string]*marketpkg.PriceSeries, error) {
	if periodDays <= 0 {
		periodDays = defaultPeriodDays
	}
	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -periodDays)
	series := make(map[string]*marketpkg.PriceSeries, len(tickers))
	for _, ticker := range tickers {
		s, err := svc.Market.History(ctx, ticker, start, end)
		if err != nil {
			return nil, err
		}
		series[ticker] = s
	}
	return series, nil
}

func (svc *ServiceContext) fetchReturns(ctx context.Context, tickers []string, periodDays int) (*marketpkg.ReturnMatrix, error) {
	series, err := svc.fetchSeries(ctx, tickers, periodDays)
	if err != nil {
		return nil, err
	}
	return marketpkg.AlignLogReturns(series)
}

// snapshotView is the tool-facing shape of a stored snapshot: metadata and
// moments without the raw return series.
type snapshotView struct {
	snapshot.Meta
	Mu        map[string]float64 `json:"mu"`
	Sigma     map[string]float64 `json:"sigma"`
	Sentiment map[string]float64 `json:"sentiment,omitempty"`
}

// Results computed from a frozen snapshot echo its id, so callers can tell
// replayed inputs from a live fetch.
type correlationView struct {
	*analytics.CorrelationResult
	UsingSnapshot string `json:"using_snapshot"`
}

type riskView struct {
	*analytics.RiskResult
	UsingSnapshot string `json:"using_snapshot"`
}

type optimizeView struct {
	*optimize.Result
	UsingSnapshot string `json:"using_snapshot"`
}

type frontierView struct {
	*optimize.Frontier
	UsingSnapshot string `json:"using_snapshot"`
}

// snapshotInputs loads a stored snapshot and rebuilds its frozen return
// matrix, restricted to the requested tickers (the whole snapshot universe
// when empty). Snapshot tickers passed the availability gate at freeze time,
// so membership is checked against the snapshot instead.
func (svc *ServiceContext) snapshotInputs(ctx context.Context, id string, tickers []string) (*snapshot.Snapshot, *marketpkg.ReturnMatrix, error) {
	snap, err := svc.Snapshots.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if len(tickers) == 0 {
		tickers = snap.Tickers
	}
	var unknown []string
	for _, ticker := range tickers {
		if _, ok := snap.Mu[ticker]; !ok {
			unknown = append(unknown, ticker)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, nil, &fault.UnknownTickerError{Tickers: unknown, Universe: snap.Tickers}
	}
	if len(snap.Returns) == 0 {
		return nil, nil, &fault.InsufficientDataError{Need: 1, Got: 0, What: fmt.Sprintf("return series stored in snapshot %s", id)}
	}
	rm, err := snap.ReturnMatrix(tickers)
	if err != nil {
		return nil, nil, err
	}
	return snap, rm, nil
}

// annualizedMu rescales a snapshot's horizon expected log returns to annual
// terms for the optimizer, carrying scenario shocks into allocation.
func annualizedMu(snap *snapshot.Snapshot) map[string]float64 {
	horizon := snap.HorizonDays
	if horizon <= 0 {
		horizon = forecast.HorizonDays
	}
	scale := analytics.TradingDaysPerYear / float64(horizon)
	out := make(map[string]float64, len(snap.Mu))
	for ticker, mu := range snap.Mu {
		out[ticker] = mu * scale
	}
	return out
}

func (svc *ServiceContext) buildRegistry() *tools.Registry {
	r := tools.NewRegistry()

	r.Register("correlation_tool", "Pairwise correlation analysis across assets",
		[]tools.ParamSpec{
			{Name: "tickers", Type: "[]string", Description: "at least two supported tickers; defaults to the snapshot universe"},
			{Name: "snapshot_id", Type: "string", Description: "analyze a frozen snapshot's returns instead of live history"},
			{Name: "period_days", Type: "int", Default: defaultPeriodDays},
			{Name: "method", Type: "string", Default: "pearson", Description: "pearson, spearman or kendall"},
			{Name: "rolling_window", Type: "int", Description: "emit rolling correlations when > 10"},
		},
		func() any { return &tools.CorrelateParams{} },
		func(ctx context.Context, params any) (any, error) {
			p := params.(*tools.CorrelateParams)
			name := p.Method
			if name == "" {
				name = "pearson"
			}
			method, err := analytics.ParseMethod(name)
			if err != nil {
				return nil, err
			}
			if p.SnapshotID != "" {
				snap, rm, err := svc.snapshotInputs(ctx, p.SnapshotID, p.Tickers)
				if err != nil {
					return nil, err
				}
				res, err := svc.Correlation.Analyze(rm, method, p.RollingWindow)
				if err != nil {
					return nil, err
				}
				return &correlationView{res, snap.ID}, nil
			}
			if err := svc.Gate.Require(p.Tickers); err != nil {
				return nil, err
			}
			rm, err := svc.fetchReturns(ctx, p.Tickers, p.PeriodDays)
			if err != nil {
				return nil, err
			}
			return svc.Correlation.Analyze(rm, method, p.RollingWindow)
		},
	)

	r.Register("risk_analysis_tool", "Asset and portfolio tail risk: VaR, expected shortfall, drawdown, normality",
		[]tools.ParamSpec{
			{Name: "tickers", Type: "[]string", Description: "defaults to the snapshot universe"},
			{Name: "snapshot_id", Type: "string", Description: "analyze a frozen snapshot's returns instead of live history"},
			{Name: "weights", Type: "map[string]float64", Description: "defaults to equal weights"},
			{Name: "confidence_level", Type: "float64", Default: 0.95},
			{Name: "horizon_days", Type: "int", Default: 1},
			{Name: "period_days", Type: "int", Default: defaultPeriodDays},
		},
		func() any { return &tools.RiskParams{} },
		func(ctx context.Context, params any) (any, error) {
			p := params.(*tools.RiskParams)
			if p.SnapshotID != "" {
				snap, rm, err := svc.snapshotInputs(ctx, p.SnapshotID, p.Tickers)
				if err != nil {
					return nil, err
				}
				res, err := svc.Risk.Analyze(rm, p.Weights, p.ConfidenceLevel, p.HorizonDays)
				if err != nil {
					return nil, err
				}
				return &riskView{res, snap.ID}, nil
			}
			if err := svc.Gate.Require(p.Tickers); err != nil {
				return nil, err
			}
			rm, err := svc.fetchReturns(ctx, p.Tickers, p.PeriodDays)
			if err != nil {
				return nil, err
			}
			return svc.Risk.Analyze(rm, p.Weights, p.ConfidenceLevel, p.HorizonDays)
		},
	)

	r.Register("performance_tool", "Realized portfolio performance over a date range, with benchmark alpha and beta",
		[]tools.ParamSpec{
			{Name: "weights", Type: "map[string]float64", Required: true},
			{Name: "benchmark", Type: "string", Description: "benchmark ticker; defaults from config"},
			{Name: "start_date", Type: "string", Required: true, Description: "YYYY-MM-DD"},
			{Name: "end_date", Type: "string", Required: true, Description: "YYYY-MM-DD"},
		},
		func() any { return &tools.PerformanceParams{} },
		func(ctx context.Context, params any) (any, error) {
			p := params.(*tools.PerformanceParams)
			start, err := time.Parse("2006-01-02", p.StartDate)
			if err != nil {
				return nil, &fault.InvalidParameterError{Param: "start_date", Reason: err.Error()}
			}
			end, err := time.Parse("2006-01-02", p.EndDate)
			if err != nil {
				return nil, &fault.InvalidParameterError{Param: "end_date", Reason: err.Error()}
			}

			tickers := make([]string, 0, len(p.Weights))
			for ticker := range p.Weights {
				tickers = append(tickers, ticker)
			}
			// Unsupported tickers simply get no series; the engine drops
			// them from the portfolio and renormalizes.
			supported, _, err := svc.Gate.Filter(tickers)
			if err != nil {
				return nil, err
			}
			series := make(map[string]*marketpkg.PriceSeries, len(supported))
			for _, ticker := range supported {
				s, err := svc.Market.History(ctx, ticker, start, end)
				if err != nil {
					return nil, err
				}
				series[ticker] = s
			}

			benchTicker := p.Benchmark
			if benchTicker == "" {
				benchTicker = svc.Config.Benchmark
			}
			var benchmark *marketpkg.PriceSeries
			var benchmarkDropped string
			if benchTicker != "" {
				benchmark, err = svc.Market.History(ctx, benchTicker, start, end)
				if err != nil {
					logx.Errorf("svc: benchmark %s history: %v", benchTicker, err)
					benchmark = nil
					benchmarkDropped = benchTicker
				}
			}
			res, err := svc.Performance.Analyze(series, p.Weights, benchmark, start, end)
			if err != nil {
				return nil, err
			}
			res.BenchmarkDropped = benchmarkDropped
			return res, nil
		},
	)

	r.Register("forecast_tool", "Model-based return and volatility forecast over a one-quarter horizon",
		[]tools.ParamSpec{
			{Name: "tickers", Type: "[]string", Required: true},
			{Name: "freeze", Type: "bool", Description: "store the forecast as a snapshot"},
			{Name: "snapshot_id", Type: "string", Description: "replay a frozen forecast instead of computing"},
		},
		func() any { return &tools.ForecastParams{} },
		func(ctx context.Context, params any) (any, error) {
			p := params.(*tools.ForecastParams)
			if p.SnapshotID != "" {
				return svc.Forecaster.FromSnapshot(ctx, p.SnapshotID, p.Tickers)
			}
			return svc.Forecaster.Forecast(ctx, p.Tickers, p.Freeze)
		},
	)

	r.Register("optimize_tool", "Portfolio weight optimization: hrp, markowitz, black_litterman or target_return",
		[]tools.ParamSpec{
			{Name: "tickers", Type: "[]string", Description: "defaults to the snapshot universe"},
			{Name: "snapshot_id", Type: "string", Description: "optimize on a frozen snapshot's returns and shocked expectations"},
			{Name: "method", Type: "string", Required: true},
			{Name: "target_return", Type: "float64", Description: "annualized; target_return method only"},
			{Name: "max_weight", Type: "float64", Default: 1.0},
			{Name: "period_days", Type: "int", Default: defaultPeriodDays},
		},
		func() any { return &tools.OptimizeParams{} },
		func(ctx context.Context, params any) (any, error) {
			p := params.(*tools.OptimizeParams)
			method, err := optimize.ParseMethod(p.Method)
			if err != nil {
				return nil, err
			}
			if p.SnapshotID != "" {
				snap, rm, err := svc.snapshotInputs(ctx, p.SnapshotID, p.Tickers)
				if err != nil {
					return nil, err
				}
				res, err := svc.Optimizer.Optimize(rm, optimize.Request{
					Method:          method,
					TargetReturn:    p.TargetReturn,
					MaxWeight:       p.MaxWeight,
					ExpectedReturns: annualizedMu(snap),
				})
				if err != nil {
					return nil, err
				}
				return &optimizeView{res, snap.ID}, nil
			}
			if err := svc.Gate.Require(p.Tickers); err != nil {
				return nil, err
			}
			rm, err := svc.fetchReturns(ctx, p.Tickers, p.PeriodDays)
			if err != nil {
				return nil, err
			}
			return svc.Optimizer.Optimize(rm, optimize.Request{
				Method:       method,
				TargetReturn: p.TargetReturn,
				MaxWeight:    p.MaxWeight,
			})
		},
	)

	r.Register("efficient_frontier_tool", "Efficient frontier sweep between the min-vol and max-Sharpe anchors",
		[]tools.ParamSpec{
			{Name: "tickers", Type: "[]string", Description: "defaults to the snapshot universe"},
			{Name: "snapshot_id", Type: "string", Description: "sweep a frozen snapshot's returns and shocked expectations"},
			{Name: "num_portfolios", Type: "int", Default: 10},
			{Name: "max_weight", Type: "float64", Default: 1.0},
			{Name: "period_days", Type: "int", Default: defaultPeriodDays},
		},
		func() any { return &tools.FrontierParams{} },
		func(ctx context.Context, params any) (any, error) {
			p := params.(*tools.FrontierParams)
			num := p.NumPortfolios
			if num == 0 {
				num = 10
			}
			if p.SnapshotID != "" {
				snap, rm, err := svc.snapshotInputs(ctx, p.SnapshotID, p.Tickers)
				if err != nil {
					return nil, err
				}
				res, err := svc.Optimizer.BuildFrontier(rm, num, p.MaxWeight, annualizedMu(snap))
				if err != nil {
					return nil, err
				}
				return &frontierView{res, snap.ID}, nil
			}
			if err := svc.Gate.Require(p.Tickers); err != nil {
				return nil, err
			}
			rm, err := svc.fetchReturns(ctx, p.Tickers, p.PeriodDays)
			if err != nil {
				return nil, err
			}
			return svc.Optimizer.BuildFrontier(rm, num, p.MaxWeight, nil)
		},
	)

	r.Register("scenario_tool", "Derive a what-if snapshot by shocking expected returns",
		[]tools.ParamSpec{
			{Name: "snapshot_id", Type: "string", Required: true, Description: "base snapshot to shock"},
			{Name: "deltas", Type: "map[string]float64", Required: true, Description: "per-ticker price shocks, e.g. -0.2 for a 20% drop"},
		},
		func() any { return &tools.ScenarioParams{} },
		func(ctx context.Context, params any) (any, error) {
			p := params.(*tools.ScenarioParams)
			snap, err := svc.Scenarios.Apply(ctx, p.SnapshotID, p.Deltas)
			if err != nil {
				return nil, err
			}
			return viewOf(snap), nil
		},
	)

	r.Register("sentiment_tool", "News sentiment score for a ticker over a trailing window",
		[]tools.ParamSpec{
			{Name: "ticker", Type: "string", Required: true},
			{Name: "window_days", Type: "int", Default: defaultSentimentWindowDays},
		},
		func() any { return &tools.SentimentParams{} },
		func(ctx context.Context, params any) (any, error) {
			p := params.(*tools.SentimentParams)
			if err := svc.Gate.Require([]string{p.Ticker}); err != nil {
				return nil, err
			}
			window := p.WindowDays
			if window == 0 {
				window = defaultSentimentWindowDays
			}
			if svc.Persistence != nil {
				if cached, ok := svc.Persistence.LoadSentiment(ctx, p.Ticker, window, time.Now()); ok {
					return cached, nil
				}
			}
			result, err := svc.Sentiment.Score(ctx, p.Ticker, window)
			if err != nil {
				return nil, err
			}
			if svc.Persistence != nil {
				if err := svc.Persistence.RecordSentiment(ctx, result); err != nil {
					logx.Errorf("svc: record sentiment %s: %v", p.Ticker, err)
				}
			}
			return result, nil
		},
	)

	r.Register("index_composition_tool", "Constituents of a named index, split by model availability",
		[]tools.ParamSpec{
			{Name: "index", Type: "string", Required: true, Description: "e.g. sp500_top10, dow30, tech_giants"},
		},
		func() any { return &tools.IndexParams{} },
		func(ctx context.Context, params any) (any, error) {
			p := params.(*tools.IndexParams)
			return svc.Catalog.Composition(p.Index)
		},
	)

	r.Register("available_tickers", "Supported ticker universe and known index names",
		nil,
		func() any { return &tools.AvailableTickersParams{} },
		func(ctx context.Context, params any) (any, error) {
			supported, err := svc.Gate.Supported()
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"tickers": supported,
				"count":   len(supported),
				"indices": svc.Catalog.Indices(),
			}, nil
		},
	)

	r.Register("snapshot_tool", "Metadata and moments of a stored snapshot",
		[]tools.ParamSpec{
			{Name: "snapshot_id", Type: "string", Required: true},
		},
		func() any { return &tools.SnapshotParams{} },
		func(ctx context.Context, params any) (any, error) {
			p := params.(*tools.SnapshotParams)
			snap, err := svc.Snapshots.Get(ctx, p.SnapshotID)
			if err != nil {
				return nil, err
			}
			return viewOf(snap), nil
		},
	)

	r.Register("list_snapshots", "Ids of all stored snapshots in creation order",
		nil,
		func() any { return &tools.SnapshotListParams{} },
		func(ctx context.Context, params any) (any, error) {
			ids := svc.Snapshots.List()
			return map[string]any{"snapshot_ids": ids, "count": len(ids)}, nil
		},
	)

	return r
}

func viewOf(snap *snapshot.Snapshot) *snapshotView {
	return &snapshotView{
		Meta:      snap.Meta,
		Mu:        snap.Mu,
		Sigma:     snap.Sigma,
		Sentiment: snap.Sentiment,
	}
}
