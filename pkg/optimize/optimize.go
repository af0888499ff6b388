// Package optimize implements the portfolio construction methods and the
// efficient frontier builder. Inputs are aligned daily log returns; expected
// returns and covariances are annualized with the 252-day convention before
// optimization.
package optimize

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"pfolio-api/pkg/analytics"
	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/market"
)

// Method selects the portfolio construction algorithm.
type Method string

const (
	HRP            Method = "hrp"
	Markowitz      Method = "markowitz"
	BlackLitterman Method = "black_litterman"
	TargetReturn   Method = "target_return"
)

// ParseMethod validates an optimization method name.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case HRP:
		return HRP, nil
	case Markowitz:
		return Markowitz, nil
	case BlackLitterman:
		return BlackLitterman, nil
	case TargetReturn:
		return TargetReturn, nil
	default:
		return "", &fault.InvalidParameterError{
			Param:  "method",
			Reason: fmt.Sprintf("unknown optimization method %q (hrp, markowitz, black_litterman, target_return)", s),
		}
	}
}

// Config tunes the optimization engine.
type Config struct {
	MinObservations int     `json:",default=30"`
	MaxWeight       float64 `json:",default=1.0"`
	RiskFreeRate    float64 `json:",default=0.001"`
	RiskAversion    float64 `json:",default=2.5"`
}

// Request describes one optimization run. ExpectedReturns, when set,
// replaces the historical mean estimate per ticker with an annualized view,
// typically the shocked expectations of a derived snapshot. Covariances are
// always estimated from the return matrix.
type Request struct {
	Method          Method
	TargetReturn    float64            // annualized; only for the target_return method
	MaxWeight       float64            // 0 means the configured default
	ExpectedReturns map[string]float64 // annualized per-ticker overrides
}

// Result is an optimized portfolio. Return, volatility and Sharpe are
// annualized.
type Result struct {
	Method         Method             `json:"method"`
	Weights        map[string]float64 `json:"weights"`
	ExpectedReturn float64            `json:"expected_return"`
	Volatility     float64            `json:"volatility"`
	SharpeRatio    float64            `json:"sharpe_ratio"`
}

// Engine dispatches optimization requests.
type Engine struct {
	cfg Config
}

// NewEngine applies config defaults.
func NewEngine(cfg Config) *Engine {
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = 30
	}
	if cfg.MaxWeight <= 0 || cfg.MaxWeight > 1 {
		cfg.MaxWeight = 1.0
	}
	if cfg.RiskFreeRate == 0 {
		cfg.RiskFreeRate = 0.001
	}
	if cfg.RiskAversion <= 0 {
		cfg.RiskAversion = 2.5
	}
	return &Engine{cfg: cfg}
}

// Optimize runs the requested method over the aligned return matrix.
func (e *Engine) Optimize(rm *market.ReturnMatrix, req Request) (*Result, error) {
	mom, err := e.moments(rm, req.MaxWeight, req.ExpectedReturns)
	if err != nil {
		return nil, err
	}

	var weights []float64
	switch req.Method {
	case HRP:
		weights, err = e.hrp(mom)
	case Markowitz:
		weights, err = e.maxSharpe(mom, mom.mu)
	case BlackLitterman:
		weights, err = e.blackLitterman(mom)
	case TargetReturn:
		weights, err = e.targetReturn(mom, req.TargetReturn)
	default:
		return nil, &fault.InvalidParameterError{Param: "method", Reason: fmt.Sprintf("unknown optimization method %q", req.Method)}
	}
	if err != nil {
		return nil, err
	}

	if err := checkWeights(req.Method, weights); err != nil {
		return nil, err
	}
	return e.describe(req.Method, mom, weights), nil
}

// moments converts daily log returns into annualized mean vector and
// covariance matrix, with the per-run bound resolved.
type momentSet struct {
	tickers   []string
	mu        []float64
	sigma     *mat.SymDense
	maxWeight float64
}

func (e *Engine) moments(rm *market.ReturnMatrix, maxWeight float64, expectedReturns map[string]float64) (*momentSet, error) {
	if len(rm.Tickers) < 2 {
		return nil, &fault.InvalidParameterError{Param: "tickers", Reason: "optimization needs at least two tickers"}
	}
	obs := rm.Observations()
	if obs < e.cfg.MinObservations {
		return nil, &fault.InsufficientDataError{Need: e.cfg.MinObservations, Got: obs, What: "return observations"}
	}
	if maxWeight == 0 {
		maxWeight = e.cfg.MaxWeight
	}
	if maxWeight <= 0 || maxWeight > 1 {
		return nil, &fault.InvalidParameterError{Param: "maxWeight", Reason: fmt.Sprintf("must be in (0, 1], got %g", maxWeight)}
	}
	n := len(rm.Tickers)
	if maxWeight*float64(n) < 1 {
		return nil, &fault.InvalidParameterError{
			Param:  "maxWeight",
			Reason: fmt.Sprintf("%d assets capped at %g cannot reach full investment", n, maxWeight),
		}
	}

	data := mat.NewDense(obs, n, nil)
	mu := make([]float64, n)
	for j, ticker := range rm.Tickers {
		col := rm.Column(ticker)
		mu[j] = analytics.AnnualizeReturn(stat.Mean(col, nil))
		if v, ok := expectedReturns[ticker]; ok {
			mu[j] = v
		}
		for i, v := range col {
			data.Set(i, j, v)
		}
	}

	sigma := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(sigma, data, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sigma.SetSym(i, j, sigma.At(i, j)*analytics.TradingDaysPerYear)
		}
	}

	return &momentSet{
		tickers:   append([]string(nil), rm.Tickers...),
		mu:        mu,
		sigma:     sigma,
		maxWeight: maxWeight,
	}, nil
}

func (e *Engine) describe(method Method, mom *momentSet, weights []float64) *Result {
	ret := portfolioReturn(mom.mu, weights)
	vol := math.Sqrt(portfolioVariance(mom.sigma, weights))
	res := &Result{
		Method:         method,
		Weights:        make(map[string]float64, len(weights)),
		ExpectedReturn: ret,
		Volatility:     vol,
	}
	for i, t := range mom.tickers {
		res.Weights[t] = weights[i]
	}
	if vol > 0 {
		res.SharpeRatio = (ret - e.cfg.RiskFreeRate) / vol
	}
	return res
}

// checkWeights enforces the full-investment invariant after solving. A NaN or
// a sum off by more than weightTolerance means the solver went wrong and the
// portfolio must not be returned.
const weightTolerance = 1e-6

func checkWeights(method Method, weights []float64) error {
	sum := 0.0
	for _, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return &fault.OptimizationFailedError{Method: string(method), Diagnostic: "solver produced a non-finite weight"}
		}
		sum += w
	}
	if math.Abs(sum-1) > weightTolerance {
		return &fault.OptimizationFailedError{
			Method:     string(method),
			Diagnostic: fmt.Sprintf("weights sum to %.8f, want 1 within %g", sum, weightTolerance),
		}
	}
	return nil
}

func portfolioReturn(mu, w []float64) float64 {
	var out float64
	for i := range w {
		out += mu[i] * w[i]
	}
	return out
}

func portfolioVariance(sigma *mat.SymDense, w []float64) float64 {
	var out float64
	n := len(w)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			out += w[i] * w[j] * sigma.At(i, j)
		}
	}
	return out
}

// feasibleReturnRange computes the attainable annualized return interval
// under the [0, maxWeight] bounds and full investment, by greedily loading
// the best and worst assets.
func feasibleReturnRange(mu []float64, maxWeight float64) (low, high float64) {
	idx := make([]int, len(mu))
	for i := range idx {
		idx[i] = i
	}

	load := func(order []int) float64 {
		remaining := 1.0
		total := 0.0
		for _, i := range order {
			w := math.Min(maxWeight, remaining)
			total += w * mu[i]
			remaining -= w
			if remaining <= 0 {
				break
			}
		}
		return total
	}

	sort.Slice(idx, func(a, b int) bool { return mu[idx[a]] < mu[idx[b]] })
	low = load(idx)
	sort.Slice(idx, func(a, b int) bool { return mu[idx[a]] > mu[idx[b]] })
	high = load(idx)
	return low, high
}
