package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"gonum.org/v1/gonum/stat"

	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/market"
)

// PerformanceConfig tunes the performance engine.
type PerformanceConfig struct {
	RiskFreeRate    float64 `json:",default=0.001"`
	MinObservations int     `json:",default=30"`
}

// BenchmarkStats reports the portfolio measured against a benchmark series.
// Alpha is annualized; beta is the regression slope of daily portfolio
// returns on daily benchmark returns.
type BenchmarkStats struct {
	Ticker           string  `json:"ticker"`
	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
}

// PerformanceResult is the performance engine output. When requested tickers
// had no usable history they are listed in DroppedTickers and the remaining
// weights are renormalized; the result is degraded but explicit about it.
// BenchmarkDropped names a benchmark whose history could not be fetched, so a
// missing Benchmark block is never silent.
type PerformanceResult struct {
	StartDate            time.Time          `json:"start_date"`
	EndDate              time.Time          `json:"end_date"`
	Observations         int                `json:"observations"`
	Weights              map[string]float64 `json:"weights"`
	DroppedTickers       []string           `json:"dropped_tickers,omitempty"`
	BenchmarkDropped     string             `json:"benchmark_dropped,omitempty"`
	TotalReturn          float64            `json:"total_return"`
	AnnualizedReturn     float64            `json:"annualized_return"`
	AnnualizedVolatility float64            `json:"annualized_volatility"`
	SharpeRatio          float64            `json:"sharpe_ratio"`
	MaxDrawdown          float64            `json:"max_drawdown"`
	Benchmark            *BenchmarkStats    `json:"benchmark,omitempty"`
}

// PerformanceEngine measures realized portfolio performance over a window.
type PerformanceEngine struct {
	cfg PerformanceConfig
}

// NewPerformanceEngine applies config defaults.
func NewPerformanceEngine(cfg PerformanceConfig) *PerformanceEngine {
	if cfg.RiskFreeRate == 0 {
		cfg.RiskFreeRate = 0.001
	}
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = 30
	}
	return &PerformanceEngine{cfg: cfg}
}

// Analyze measures the weighted portfolio over [start, end]. The series map
// may be missing tickers the caller asked for; those are dropped, reported,
// and the surviving weights renormalized. A benchmark series is optional.
func (e *PerformanceEngine) Analyze(series map[string]*market.PriceSeries, weights map[string]float64, benchmark *market.PriceSeries, start, end time.Time) (*PerformanceResult, error) {
	if len(weights) == 0 {
		return nil, &fault.InvalidParameterError{Param: "weights", Reason: "portfolio has no positions"}
	}
	if !start.Before(end) {
		return nil, &fault.InvalidParameterError{Param: "startDate", Reason: fmt.Sprintf("start %s must precede end %s", start.Format("2006-01-02"), end.Format("2006-01-02"))}
	}

	usable := make(map[string]*market.PriceSeries)
	var dropped []string
	for ticker := range weights {
		s, ok := series[ticker]
		if ok {
			s = s.Slice(start, end)
		}
		if !ok || len(s.Bars) < 2 {
			dropped = append(dropped, ticker)
			continue
		}
		usable[ticker] = s
	}
	if len(usable) == 0 {
		return nil, &fault.InsufficientDataError{Need: 1, Got: 0, What: "tickers with price history in the window"}
	}
	if len(dropped) > 0 {
		logx.Infof("performance: dropped %d of %d tickers for missing history: %v", len(dropped), len(weights), dropped)
	}

	rm, err := market.AlignLogReturns(usable)
	if err != nil {
		return nil, err
	}
	if rm.Observations() < e.cfg.MinObservations {
		return nil, &fault.InsufficientDataError{Need: e.cfg.MinObservations, Got: rm.Observations(), What: "overlapping return observations"}
	}

	kept := make(map[string]float64, len(usable))
	total := 0.0
	for ticker := range usable {
		w := weights[ticker]
		if w < 0 {
			return nil, &fault.InvalidParameterError{Param: "weights", Reason: fmt.Sprintf("negative weight for %s", ticker)}
		}
		kept[ticker] = w
		total += w
	}
	if total <= 0 {
		return nil, &fault.InvalidParameterError{Param: "weights", Reason: "surviving weights sum to zero"}
	}
	for ticker := range kept {
		kept[ticker] /= total
	}

	w := make([]float64, len(rm.Tickers))
	columns := make([][]float64, len(rm.Tickers))
	for i, ticker := range rm.Tickers {
		w[i] = kept[ticker]
		columns[i] = rm.Column(ticker)
	}
	portfolio := weightedReturns(columns, w)

	mean := stat.Mean(portfolio, nil)
	std := stat.StdDev(portfolio, nil)
	annReturn := AnnualizeReturn(mean)
	annVol := AnnualizeVolatility(std)

	result := &PerformanceResult{
		StartDate:            start,
		EndDate:              end,
		Observations:         rm.Observations(),
		Weights:              kept,
		DroppedTickers:       dropped,
		TotalReturn:          compound(portfolio),
		AnnualizedReturn:     annReturn,
		AnnualizedVolatility: annVol,
		MaxDrawdown:          maxDrawdown(portfolio),
	}
	if annVol > 0 {
		result.SharpeRatio = (annReturn - e.cfg.RiskFreeRate) / annVol
	}

	if benchmark != nil {
		bench, err := e.measureBenchmark(rm, portfolio, benchmark, start, end)
		if err != nil {
			return nil, err
		}
		result.Benchmark = bench
	}
	return result, nil
}

// measureBenchmark aligns benchmark returns with the portfolio dates and
// regresses portfolio on benchmark for CAPM alpha and beta.
func (e *PerformanceEngine) measureBenchmark(rm *market.ReturnMatrix, portfolio []float64, benchmark *market.PriceSeries, start, end time.Time) (*BenchmarkStats, error) {
	sliced := benchmark.Slice(start, end)
	if len(sliced.Bars) < 2 {
		return nil, &fault.InsufficientDataError{Need: 2, Got: len(sliced.Bars), What: "benchmark observations in the window"}
	}

	byDate := make(map[time.Time]float64, len(sliced.Bars)-1)
	for i := 1; i < len(sliced.Bars); i++ {
		d := sliced.Bars[i].Time.UTC().Truncate(24 * time.Hour)
		byDate[d] = math.Log(sliced.Bars[i].Close / sliced.Bars[i-1].Close)
	}

	var benchReturns, portReturns []float64
	for i, d := range rm.Dates {
		if r, ok := byDate[d]; ok {
			benchReturns = append(benchReturns, r)
			portReturns = append(portReturns, portfolio[i])
		}
	}
	if len(benchReturns) < e.cfg.MinObservations {
		return nil, &fault.InsufficientDataError{Need: e.cfg.MinObservations, Got: len(benchReturns), What: "portfolio/benchmark overlapping observations"}
	}

	alpha, beta := stat.LinearRegression(benchReturns, portReturns, nil, false)
	return &BenchmarkStats{
		Ticker:           benchmark.Ticker,
		TotalReturn:      compound(benchReturns),
		AnnualizedReturn: AnnualizeReturn(stat.Mean(benchReturns, nil)),
		Alpha:            AnnualizeReturn(alpha),
		Beta:             beta,
	}, nil
}

// compound turns a log-return series into a total simple return.
func compound(logReturns []float64) float64 {
	sum := 0.0
	for _, r := range logReturns {
		sum += r
	}
	return math.Expm1(sum)
}
