package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfolio-api/pkg/fault"
)

func TestRiskESAtLeastVaR(t *testing.T) {
	engine := NewRiskEngine(RiskConfig{})
	rm := matrixFrom(map[string][]float64{
		"AAA": noisyReturns(11, 252),
		"BBB": noisyReturns(12, 252),
	})

	res, err := engine.Analyze(rm, nil, 0.95, 1)
	require.NoError(t, err)

	for _, a := range res.Assets {
		assert.GreaterOrEqual(t, a.DailyES, a.DailyVaR, "%s: expected shortfall below VaR", a.Ticker)
	}
	assert.GreaterOrEqual(t, res.Portfolio.DailyES, res.Portfolio.DailyVaR)
}

func TestRiskPortfolioVaRSubAdditive(t *testing.T) {
	engine := NewRiskEngine(RiskConfig{})
	rm := matrixFrom(map[string][]float64{
		"AAA": noisyReturns(13, 252),
		"BBB": noisyReturns(14, 252),
		"CCC": noisyReturns(15, 252),
	})

	res, err := engine.Analyze(rm, nil, 0.95, 1)
	require.NoError(t, err)

	weightedSum := 0.0
	for _, a := range res.Assets {
		weightedSum += res.Weights[a.Ticker] * a.DailyVaR
	}
	assert.LessOrEqual(t, res.Portfolio.DailyVaR, weightedSum+1e-12,
		"historical portfolio VaR on the weighted series cannot exceed the weighted asset VaRs")
	assert.InDelta(t, weightedSum-res.Portfolio.DailyVaR, res.DiversificationBenefit, 1e-12)
}

func TestRiskVaRLevelsMonotone(t *testing.T) {
	engine := NewRiskEngine(RiskConfig{})
	rm := matrixFrom(map[string][]float64{
		"AAA": noisyReturns(16, 300),
		"BBB": noisyReturns(17, 300),
	})

	res, err := engine.Analyze(rm, nil, 0.95, 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.VaRLevels["90"], res.VaRLevels["95"])
	assert.LessOrEqual(t, res.VaRLevels["95"], res.VaRLevels["99"])
}

func TestRiskHorizonScaling(t *testing.T) {
	engine := NewRiskEngine(RiskConfig{})
	rm := matrixFrom(map[string][]float64{
		"AAA": noisyReturns(18, 252),
		"BBB": noisyReturns(19, 252),
	})

	res, err := engine.Analyze(rm, nil, 0.95, 4)
	require.NoError(t, err)
	assert.InDelta(t, res.Portfolio.DailyVaR*2, res.Portfolio.HorizonVaR, 1e-12, "4-day VaR scales by sqrt(4)")
}

func TestRiskRejectsBadConfidence(t *testing.T) {
	engine := NewRiskEngine(RiskConfig{})
	rm := matrixFrom(map[string][]float64{
		"AAA": noisyReturns(20, 60),
		"BBB": noisyReturns(21, 60),
	})

	for _, confidence := range []float64{-0.5, 1.0, 1.5} {
		_, err := engine.Analyze(rm, nil, confidence, 1)
		var invalid *fault.InvalidParameterError
		require.ErrorAs(t, err, &invalid, "confidence %g", confidence)
		assert.Equal(t, "confidence", invalid.Param)
	}
}

func TestRiskWeightsValidation(t *testing.T) {
	engine := NewRiskEngine(RiskConfig{})
	rm := matrixFrom(map[string][]float64{
		"AAA": noisyReturns(22, 60),
		"BBB": noisyReturns(23, 60),
	})

	_, err := engine.Analyze(rm, map[string]float64{"AAA": 1}, 0.95, 1)
	var invalid *fault.InvalidParameterError
	require.ErrorAs(t, err, &invalid, "missing weight must be rejected")

	res, err := engine.Analyze(rm, map[string]float64{"AAA": 3, "BBB": 1}, 0.95, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, res.Weights["AAA"], 1e-12, "weights renormalized to sum to one")
}

func TestRiskInsufficientData(t *testing.T) {
	engine := NewRiskEngine(RiskConfig{MinObservations: 30})
	rm := matrixFrom(map[string][]float64{
		"AAA": noisyReturns(24, 5),
		"BBB": noisyReturns(25, 5),
	})

	_, err := engine.Analyze(rm, nil, 0.95, 1)
	var insufficient *fault.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
}

func TestJarqueBeraNearNormal(t *testing.T) {
	stat, p := jarqueBera(noisyReturns(26, 1000))
	assert.GreaterOrEqual(t, stat, 0.0)
	assert.Greater(t, p, 0.001, "gaussian sample should not strongly reject normality")
}
