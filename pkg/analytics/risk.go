package analytics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/market"
)

// RiskConfig tunes the risk engine.
type RiskConfig struct {
	MinObservations int     `json:",default=30"`
	Confidence      float64 `json:",default=0.95"`
	HorizonDays     int     `json:",default=1"`
}

// AssetRisk carries the per-series risk figures. VaR and ES are reported as
// positive loss fractions, estimated by historical simulation.
type AssetRisk struct {
	Ticker               string  `json:"ticker"`
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	DailyVaR             float64 `json:"daily_var"`
	DailyES              float64 `json:"daily_es"`
	HorizonVaR           float64 `json:"horizon_var"`
	HorizonES            float64 `json:"horizon_es"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	Skewness             float64 `json:"skewness"`
	ExcessKurtosis       float64 `json:"excess_kurtosis"`
	JarqueBera           float64 `json:"jarque_bera"`
	JarqueBeraP          float64 `json:"jarque_bera_p"`
}

// RiskResult is the full risk report. The portfolio block is computed on the
// weighted return series, so cross-asset correlation is captured and the
// portfolio VaR never exceeds the weighted sum of the asset VaRs.
type RiskResult struct {
	Confidence             float64            `json:"confidence"`
	HorizonDays            int                `json:"horizon_days"`
	Observations           int                `json:"observations"`
	Weights                map[string]float64 `json:"weights"`
	Assets                 []AssetRisk        `json:"assets"`
	Portfolio              AssetRisk          `json:"portfolio"`
	VaRLevels              map[string]float64 `json:"var_levels"`
	DiversificationBenefit float64            `json:"diversification_benefit"`
}

// RiskEngine estimates tail risk from historical return series.
type RiskEngine struct {
	cfg RiskConfig
}

// NewRiskEngine applies config defaults.
func NewRiskEngine(cfg RiskConfig) *RiskEngine {
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = 30
	}
	if cfg.Confidence == 0 {
		cfg.Confidence = 0.95
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = 1
	}
	return &RiskEngine{cfg: cfg}
}

// Analyze computes asset and portfolio risk at the given confidence and
// horizon. Nil weights mean an equal-weighted portfolio; provided weights must
// cover every ticker and sum to a positive total, and are renormalized.
func (e *RiskEngine) Analyze(rm *market.ReturnMatrix, weights map[string]float64, confidence float64, horizonDays int) (*RiskResult, error) {
	if confidence == 0 {
		confidence = e.cfg.Confidence
	}
	if horizonDays == 0 {
		horizonDays = e.cfg.HorizonDays
	}
	if confidence <= 0 || confidence >= 1 {
		return nil, &fault.InvalidParameterError{Param: "confidence", Reason: fmt.Sprintf("must be in (0, 1), got %g", confidence)}
	}
	if horizonDays < 0 {
		return nil, &fault.InvalidParameterError{Param: "horizonDays", Reason: "must be positive"}
	}
	obs := rm.Observations()
	if obs < e.cfg.MinObservations {
		return nil, &fault.InsufficientDataError{Need: e.cfg.MinObservations, Got: obs, What: "return observations"}
	}

	w, err := normalizeWeights(rm.Tickers, weights)
	if err != nil {
		return nil, err
	}

	result := &RiskResult{
		Confidence:   confidence,
		HorizonDays:  horizonDays,
		Observations: obs,
		Weights:      make(map[string]float64, len(rm.Tickers)),
	}

	columns := make([][]float64, len(rm.Tickers))
	weightedVaRSum := 0.0
	for i, ticker := range rm.Tickers {
		columns[i] = rm.Column(ticker)
		asset := e.assess(ticker, columns[i], confidence, horizonDays)
		result.Assets = append(result.Assets, asset)
		result.Weights[ticker] = w[i]
		weightedVaRSum += w[i] * asset.DailyVaR
	}

	portfolio := weightedReturns(columns, w)
	result.Portfolio = e.assess("PORTFOLIO", portfolio, confidence, horizonDays)
	result.DiversificationBenefit = weightedVaRSum - result.Portfolio.DailyVaR

	result.VaRLevels = map[string]float64{
		"90": historicalVaR(portfolio, 0.90),
		"95": historicalVaR(portfolio, 0.95),
		"99": historicalVaR(portfolio, 0.99),
	}
	return result, nil
}

func (e *RiskEngine) assess(ticker string, returns []float64, confidence float64, horizonDays int) AssetRisk {
	mean := stat.Mean(returns, nil)
	std := stat.StdDev(returns, nil)
	dailyVaR := historicalVaR(returns, confidence)
	dailyES := historicalES(returns, confidence)
	scale := math.Sqrt(float64(horizonDays))
	jb, jbP := jarqueBera(returns)

	return AssetRisk{
		Ticker:               ticker,
		AnnualizedReturn:     AnnualizeReturn(mean),
		AnnualizedVolatility: AnnualizeVolatility(std),
		DailyVaR:             dailyVaR,
		DailyES:              dailyES,
		HorizonVaR:           dailyVaR * scale,
		HorizonES:            dailyES * scale,
		MaxDrawdown:          maxDrawdown(returns),
		Skewness:             stat.Skew(returns, nil),
		ExcessKurtosis:       stat.ExKurtosis(returns, nil),
		JarqueBera:           jb,
		JarqueBeraP:          jbP,
	}
}

// normalizeWeights maps the weights onto the ticker order and rescales them to
// sum to one. Nil means equal weights.
func normalizeWeights(tickers []string, weights map[string]float64) ([]float64, error) {
	n := len(tickers)
	out := make([]float64, n)
	if weights == nil {
		for i := range out {
			out[i] = 1 / float64(n)
		}
		return out, nil
	}

	total := 0.0
	for i, t := range tickers {
		w, ok := weights[t]
		if !ok {
			return nil, &fault.InvalidParameterError{Param: "weights", Reason: fmt.Sprintf("missing weight for %s", t)}
		}
		if w < 0 {
			return nil, &fault.InvalidParameterError{Param: "weights", Reason: fmt.Sprintf("negative weight for %s", t)}
		}
		out[i] = w
		total += w
	}
	if total <= 0 {
		return nil, &fault.InvalidParameterError{Param: "weights", Reason: "weights sum to zero"}
	}
	for i := range out {
		out[i] /= total
	}
	return out, nil
}
