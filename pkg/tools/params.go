// Package tools is the analytic entry point catalog: every engine operation
// is registered with a declarative parameter schema, caller input is
// validated against it before dispatch, and results and errors share one
// envelope shape.
package tools

// ParamSpec describes one parameter of a tool for discovery.
type ParamSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// The parameter structs below are the validation schemas for each analytic
// entry point. Validator tags carry the constraints; the Registry rejects
// input that violates them before any engine code runs.

// CorrelateParams drives the correlation engine. With a snapshot_id the
// frozen return series replace a live history fetch, and tickers default to
// the snapshot universe.
type CorrelateParams struct {
	Tickers       []string `json:"tickers" validate:"required_without=SnapshotID,omitempty,min=2,dive,required"`
	SnapshotID    string   `json:"snapshot_id" validate:"omitempty"`
	PeriodDays    int      `json:"period_days" validate:"omitempty,gt=0"`
	Method        string   `json:"method" validate:"omitempty,oneof=pearson spearman kendall"`
	RollingWindow int      `json:"rolling_window" validate:"omitempty,gt=0"`
}

// RiskParams drives the risk engine.
type RiskParams struct {
	Tickers         []string           `json:"tickers" validate:"required_without=SnapshotID,omitempty,min=1,dive,required"`
	SnapshotID      string             `json:"snapshot_id" validate:"omitempty"`
	Weights         map[string]float64 `json:"weights" validate:"omitempty,dive,gte=0"`
	ConfidenceLevel float64            `json:"confidence_level" validate:"omitempty,gt=0,lt=1"`
	HorizonDays     int                `json:"horizon_days" validate:"omitempty,gt=0"`
	PeriodDays      int                `json:"period_days" validate:"omitempty,gt=0"`
}

// PerformanceParams drives the performance engine.
type PerformanceParams struct {
	Weights   map[string]float64 `json:"weights" validate:"required,min=1,dive,gte=0"`
	Benchmark string             `json:"benchmark" validate:"omitempty"`
	StartDate string             `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string             `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// ForecastParams drives the forecast engine.
type ForecastParams struct {
	Tickers    []string `json:"tickers" validate:"required,min=1,dive,required"`
	Freeze     bool     `json:"freeze"`
	SnapshotID string   `json:"snapshot_id" validate:"omitempty"`
}

// OptimizeParams drives the optimization engine. With a snapshot_id the
// frozen returns and shocked expected returns replace live history, so
// what-if snapshots feed straight into allocation.
type OptimizeParams struct {
	Tickers      []string `json:"tickers" validate:"required_without=SnapshotID,omitempty,min=2,dive,required"`
	SnapshotID   string   `json:"snapshot_id" validate:"omitempty"`
	Method       string   `json:"method" validate:"required,oneof=hrp markowitz black_litterman target_return"`
	TargetReturn float64  `json:"target_return" validate:"omitempty"`
	MaxWeight    float64  `json:"max_weight" validate:"omitempty,gt=0,lte=1"`
	PeriodDays   int      `json:"period_days" validate:"omitempty,gt=0"`
}

// FrontierParams drives the efficient frontier builder.
type FrontierParams struct {
	Tickers       []string `json:"tickers" validate:"required_without=SnapshotID,omitempty,min=2,dive,required"`
	SnapshotID    string   `json:"snapshot_id" validate:"omitempty"`
	NumPortfolios int      `json:"num_portfolios" validate:"omitempty,gte=2"`
	MaxWeight     float64  `json:"max_weight" validate:"omitempty,gt=0,lte=1"`
	PeriodDays    int      `json:"period_days" validate:"omitempty,gt=0"`
}

// ScenarioParams drives the scenario engine.
type ScenarioParams struct {
	SnapshotID string             `json:"snapshot_id" validate:"required"`
	Deltas     map[string]float64 `json:"deltas" validate:"required,min=1,dive,gt=-1"`
}

// SentimentParams drives the sentiment engine.
type SentimentParams struct {
	Ticker     string `json:"ticker" validate:"required"`
	WindowDays int    `json:"window_days" validate:"omitempty,gt=0"`
}

// AvailableTickersParams lists the supported universe; it takes no input.
type AvailableTickersParams struct{}

// IndexParams resolves an index composition.
type IndexParams struct {
	Index string `json:"index" validate:"required"`
}

// SnapshotParams fetches a stored snapshot.
type SnapshotParams struct {
	SnapshotID string `json:"snapshot_id" validate:"required"`
}

// SnapshotListParams lists stored snapshot ids; it takes no input.
type SnapshotListParams struct{}
