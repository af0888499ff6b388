package analytics

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/market"
)

// Method selects the correlation estimator.
type Method string

const (
	Pearson  Method = "pearson"
	Spearman Method = "spearman"
	Kendall  Method = "kendall"
)

// ParseMethod validates a correlation method name.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case Pearson:
		return Pearson, nil
	case Spearman:
		return Spearman, nil
	case Kendall:
		return Kendall, nil
	default:
		return "", &fault.InvalidParameterError{
			Param:  "method",
			Reason: fmt.Sprintf("unknown correlation method %q (pearson, spearman, kendall)", s),
		}
	}
}

// minRollingWindow is the smallest window for which rolling correlations are
// produced; shorter windows are too noisy to report.
const minRollingWindow = 10

// CorrelationConfig tunes the correlation engine.
type CorrelationConfig struct {
	MinObservations    int       `json:",default=30"`
	StrengthThresholds []float64 `json:",optional"`
}

func (c CorrelationConfig) thresholds() []float64 {
	if len(c.StrengthThresholds) == 4 {
		return c.StrengthThresholds
	}
	return []float64{0.2, 0.4, 0.6, 0.8}
}

// PairCorrelation is one entry of the pairwise matrix, with its strength
// label and, when requested, the rolling series.
type PairCorrelation struct {
	A        string    `json:"ticker_a"`
	B        string    `json:"ticker_b"`
	Value    float64   `json:"correlation"`
	Strength string    `json:"strength"`
	Rolling  []float64 `json:"rolling,omitempty"`
}

// CorrelationSummary aggregates the off-diagonal correlations.
type CorrelationSummary struct {
	Mean      float64          `json:"mean"`
	Median    float64          `json:"median"`
	Min       float64          `json:"min"`
	Max       float64          `json:"max"`
	Strongest *PairCorrelation `json:"strongest_pair,omitempty"`
	Weakest   *PairCorrelation `json:"weakest_pair,omitempty"`
}

// CorrelationResult is the full engine output.
type CorrelationResult struct {
	Method       Method             `json:"method"`
	Tickers      []string           `json:"tickers"`
	Observations int                `json:"observations"`
	Matrix       [][]float64        `json:"matrix"`
	Pairs        []PairCorrelation  `json:"pairs"`
	Summary      CorrelationSummary `json:"summary"`
	Buckets      map[string]int     `json:"strength_buckets"`
}

// CorrelationEngine computes pairwise correlation structure over aligned
// return series.
type CorrelationEngine struct {
	cfg CorrelationConfig
}

// NewCorrelationEngine applies config defaults.
func NewCorrelationEngine(cfg CorrelationConfig) *CorrelationEngine {
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = 30
	}
	return &CorrelationEngine{cfg: cfg}
}

// Analyze computes the correlation matrix for the given method. When window
// exceeds the rolling minimum, each pair also carries a rolling correlation
// series over that window.
func (e *CorrelationEngine) Analyze(rm *market.ReturnMatrix, method Method, window int) (*CorrelationResult, error) {
	if len(rm.Tickers) < 2 {
		return nil, &fault.InvalidParameterError{Param: "tickers", Reason: "correlation needs at least two tickers"}
	}
	obs := rm.Observations()
	if obs < e.cfg.MinObservations {
		return nil, &fault.InsufficientDataError{
			Need: e.cfg.MinObservations,
			Got:  obs,
			What: "overlapping return observations",
		}
	}

	n := len(rm.Tickers)
	columns := make([][]float64, n)
	for i, ticker := range rm.Tickers {
		columns[i] = rm.Column(ticker)
	}

	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1
	}

	result := &CorrelationResult{
		Method:       method,
		Tickers:      append([]string(nil), rm.Tickers...),
		Observations: obs,
		Matrix:       matrix,
		Buckets:      make(map[string]int),
	}

	var offDiagonal []float64
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			value := correlate(method, columns[i], columns[j])
			matrix[i][j] = value
			matrix[j][i] = value

			pair := PairCorrelation{
				A:        rm.Tickers[i],
				B:        rm.Tickers[j],
				Value:    value,
				Strength: e.strength(value),
			}
			if window > minRollingWindow {
				pair.Rolling = rollingCorrelation(method, columns[i], columns[j], window)
			}
			result.Pairs = append(result.Pairs, pair)
			result.Buckets[pair.Strength]++
			offDiagonal = append(offDiagonal, value)
		}
	}

	result.Summary = summarizePairs(result.Pairs, offDiagonal)
	return result, nil
}

func correlate(method Method, x, y []float64) float64 {
	switch method {
	case Spearman:
		return stat.Correlation(ranks(x), ranks(y), nil)
	case Kendall:
		return stat.Kendall(x, y, nil)
	default:
		return stat.Correlation(x, y, nil)
	}
}

func rollingCorrelation(method Method, x, y []float64, window int) []float64 {
	if len(x) < window {
		return nil
	}
	out := make([]float64, 0, len(x)-window+1)
	for i := window; i <= len(x); i++ {
		out = append(out, correlate(method, x[i-window:i], y[i-window:i]))
	}
	return out
}

func (e *CorrelationEngine) strength(value float64) string {
	t := e.cfg.thresholds()
	abs := value
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs < t[0]:
		return "very weak"
	case abs < t[1]:
		return "weak"
	case abs < t[2]:
		return "moderate"
	case abs < t[3]:
		return "strong"
	default:
		return "very strong"
	}
}

func summarizePairs(pairs []PairCorrelation, values []float64) CorrelationSummary {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	summary := CorrelationSummary{
		Mean:   stat.Mean(values, nil),
		Median: stat.Quantile(0.5, stat.LinInterp, sorted, nil),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
	}
	for i := range pairs {
		p := &pairs[i]
		if summary.Strongest == nil || abs(p.Value) > abs(summary.Strongest.Value) {
			summary.Strongest = p
		}
		if summary.Weakest == nil || abs(p.Value) < abs(summary.Weakest.Value) {
			summary.Weakest = p
		}
	}
	return summary
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
