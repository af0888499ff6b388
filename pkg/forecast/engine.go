package forecast

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"
	"gonum.org/v1/gonum/stat"

	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/market"
	"pfolio-api/pkg/snapshot"
	"pfolio-api/pkg/universe"
)

// HorizonDays is the forecast horizon: one quarter of trading days.
const HorizonDays = 63

// Config tunes the forecast engine.
type Config struct {
	LookbackDays int `json:",default=756"` // three years of daily bars
}

// TickerForecast is the per-ticker output. Mu is the expected log return over
// the horizon; Sigma its standard deviation, estimated from the dispersion of
// historical 63-day return blocks.
type TickerForecast struct {
	Ticker   string             `json:"ticker"`
	Mu       float64            `json:"mu"`
	Sigma    float64            `json:"sigma"`
	Features map[string]float64 `json:"features,omitempty"`
}

// Result is a forecast for a ticker set.
type Result struct {
	HorizonDays int              `json:"horizon_days"`
	AsOf        time.Time        `json:"as_of"`
	Forecasts   []TickerForecast `json:"forecasts"`
	SnapshotID  string           `json:"snapshot_id,omitempty"`
}

// Engine produces forecasts from trained models, behind the availability
// gate.
type Engine struct {
	cfg      Config
	gate     *universe.Gate
	models   ModelSource
	provider market.Provider
	store    *snapshot.Store
	now      func() time.Time
}

// NewEngine wires the forecast engine. The snapshot store is optional; when
// present, Forecast can freeze its output for downstream engines.
func NewEngine(cfg Config, gate *universe.Gate, models ModelSource, provider market.Provider, store *snapshot.Store) *Engine {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 756
	}
	return &Engine{cfg: cfg, gate: gate, models: models, provider: provider, store: store, now: time.Now}
}

// Forecast predicts the horizon return distribution for each ticker. When
// freeze is set the result is stored as a snapshot and its id reported.
func (e *Engine) Forecast(ctx context.Context, tickers []string, freeze bool) (*Result, error) {
	if len(tickers) == 0 {
		return nil, &fault.InvalidParameterError{Param: "tickers", Reason: "no tickers requested"}
	}
	if err := e.gate.Require(tickers); err != nil {
		return nil, err
	}

	asOf := e.now().UTC()
	start := asOf.AddDate(0, 0, -e.cfg.LookbackDays)

	result := &Result{HorizonDays: HorizonDays, AsOf: asOf}
	payload := &snapshot.Payload{
		HorizonDays: HorizonDays,
		Mu:          make(map[string]float64, len(tickers)),
		Sigma:       make(map[string]float64, len(tickers)),
		Returns:     make(map[string][]float64, len(tickers)),
	}

	for _, ticker := range tickers {
		forecast, returns, err := e.forecastOne(ctx, ticker, start, asOf)
		if err != nil {
			return nil, err
		}
		result.Forecasts = append(result.Forecasts, *forecast)
		payload.Mu[ticker] = forecast.Mu
		payload.Sigma[ticker] = forecast.Sigma
		payload.Returns[ticker] = returns
	}

	if freeze && e.store != nil {
		snap, err := e.store.Create(ctx, payload)
		if err != nil {
			return nil, err
		}
		result.SnapshotID = snap.ID
		logx.Infof("forecast: froze %d tickers into snapshot %s", len(tickers), snap.ID)
	}
	return result, nil
}

// FromSnapshot serves a previously frozen forecast without recomputation.
// Tickers outside the snapshot universe fail as unknown.
func (e *Engine) FromSnapshot(ctx context.Context, snapshotID string, tickers []string) (*Result, error) {
	if e.store == nil {
		return nil, fmt.Errorf("forecast: no snapshot store configured")
	}
	snap, err := e.store.Get(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	if len(tickers) == 0 {
		tickers = snap.Tickers
	}
	result := &Result{HorizonDays: snap.HorizonDays, AsOf: snap.CreatedAt, SnapshotID: snap.ID}
	for _, ticker := range tickers {
		mu, ok := snap.Mu[ticker]
		if !ok {
			return nil, &fault.UnknownTickerError{Tickers: []string{ticker}, Universe: snap.Tickers}
		}
		result.Forecasts = append(result.Forecasts, TickerForecast{Ticker: ticker, Mu: mu, Sigma: snap.Sigma[ticker]})
	}
	return result, nil
}

func (e *Engine) forecastOne(ctx context.Context, ticker string, start, end time.Time) (*TickerForecast, []float64, error) {
	series, err := e.provider.History(ctx, ticker, start, end)
	if err != nil {
		return nil, nil, err
	}

	features, err := BuildFeatures(series)
	if err != nil {
		return nil, nil, err
	}

	model, err := e.models.Load(ticker)
	if err != nil {
		return nil, nil, err
	}

	returns := series.LogReturns()
	sigma, err := quarterlySigma(ticker, returns)
	if err != nil {
		return nil, nil, err
	}

	return &TickerForecast{
		Ticker:   ticker,
		Mu:       model.Predict(features),
		Sigma:    sigma,
		Features: FeatureMap(features),
	}, returns, nil
}

// quarterlySigma estimates the horizon return standard deviation from the
// dispersion of consecutive 63-day log-return blocks, most recent blocks
// first.
func quarterlySigma(ticker string, returns []float64) (float64, error) {
	blocks := len(returns) / HorizonDays
	if blocks < 2 {
		return 0, &fault.InsufficientDataError{
			Need: 2 * HorizonDays,
			Got:  len(returns),
			What: fmt.Sprintf("%s daily returns for quarterly variance", ticker),
		}
	}
	sums := make([]float64, 0, blocks)
	for b := 0; b < blocks; b++ {
		endIdx := len(returns) - b*HorizonDays
		var sum float64
		for _, r := range returns[endIdx-HorizonDays : endIdx] {
			sum += r
		}
		sums = append(sums, sum)
	}
	return stat.StdDev(sums, nil), nil
}
