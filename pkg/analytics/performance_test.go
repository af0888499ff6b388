package analytics

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/market"
)

func priceSeries(ticker string, closes []float64) *market.PriceSeries {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &market.PriceSeries{Ticker: ticker}
	for i, c := range closes {
		s.Bars = append(s.Bars, market.Bar{Time: base.AddDate(0, 0, i), Close: c, Volume: 1000})
	}
	return s
}

func randomWalk(seed int64, n int, start float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	price := start
	for i := range out {
		price *= math.Exp(rng.NormFloat64() * 0.01)
		out[i] = price
	}
	return out
}

func perfWindow() (time.Time, time.Time) {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestPerformanceSingleAssetMatchesSeries(t *testing.T) {
	closes := randomWalk(31, 120, 100)
	engine := NewPerformanceEngine(PerformanceConfig{})
	start, end := perfWindow()

	res, err := engine.Analyze(
		map[string]*market.PriceSeries{"AAA": priceSeries("AAA", closes)},
		map[string]float64{"AAA": 1},
		nil, start, end,
	)
	require.NoError(t, err)

	expectedTotal := closes[len(closes)-1]/closes[0] - 1
	assert.InDelta(t, expectedTotal, res.TotalReturn, 1e-9)
	assert.Equal(t, 119, res.Observations)
	assert.Empty(t, res.DroppedTickers)
}

func TestPerformanceDropsMissingTickersAndRenormalizes(t *testing.T) {
	engine := NewPerformanceEngine(PerformanceConfig{})
	start, end := perfWindow()

	res, err := engine.Analyze(
		map[string]*market.PriceSeries{
			"AAA": priceSeries("AAA", randomWalk(32, 90, 100)),
			"BBB": priceSeries("BBB", randomWalk(33, 90, 50)),
		},
		map[string]float64{"AAA": 0.4, "BBB": 0.4, "GONE": 0.2},
		nil, start, end,
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"GONE"}, res.DroppedTickers)
	assert.InDelta(t, 0.5, res.Weights["AAA"], 1e-12, "surviving weights renormalized")
	assert.InDelta(t, 0.5, res.Weights["BBB"], 1e-12)
	assert.NotContains(t, res.Weights, "GONE")
}

func TestPerformanceRejectsInvertedWindow(t *testing.T) {
	engine := NewPerformanceEngine(PerformanceConfig{})
	start, end := perfWindow()

	_, err := engine.Analyze(
		map[string]*market.PriceSeries{"AAA": priceSeries("AAA", randomWalk(34, 60, 100))},
		map[string]float64{"AAA": 1},
		nil, end, start,
	)
	var invalid *fault.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "startDate", invalid.Param)
}

func TestPerformanceAllTickersMissing(t *testing.T) {
	engine := NewPerformanceEngine(PerformanceConfig{})
	start, end := perfWindow()

	_, err := engine.Analyze(
		map[string]*market.PriceSeries{},
		map[string]float64{"AAA": 1},
		nil, start, end,
	)
	var insufficient *fault.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
}

func TestPerformanceBenchmarkBetaOfItself(t *testing.T) {
	// A portfolio holding only the benchmark must regress to beta 1, alpha 0.
	closes := randomWalk(35, 150, 100)
	engine := NewPerformanceEngine(PerformanceConfig{})
	start, end := perfWindow()

	res, err := engine.Analyze(
		map[string]*market.PriceSeries{"SPY": priceSeries("SPY", closes)},
		map[string]float64{"SPY": 1},
		priceSeries("SPY", closes),
		start, end,
	)
	require.NoError(t, err)
	require.NotNil(t, res.Benchmark)
	assert.InDelta(t, 1.0, res.Benchmark.Beta, 1e-9)
	assert.InDelta(t, 0.0, res.Benchmark.Alpha, 1e-9)
	assert.InDelta(t, res.TotalReturn, res.Benchmark.TotalReturn, 1e-9)
}

func TestPerformanceSharpeUsesRiskFree(t *testing.T) {
	closes := randomWalk(36, 120, 100)
	start, end := perfWindow()

	low := NewPerformanceEngine(PerformanceConfig{RiskFreeRate: 0.001})
	high := NewPerformanceEngine(PerformanceConfig{RiskFreeRate: 0.05})

	series := map[string]*market.PriceSeries{"AAA": priceSeries("AAA", closes)}
	weights := map[string]float64{"AAA": 1}

	a, err := low.Analyze(series, weights, nil, start, end)
	require.NoError(t, err)
	b, err := high.Analyze(series, weights, nil, start, end)
	require.NoError(t, err)
	assert.Greater(t, a.SharpeRatio, b.SharpeRatio, "higher risk-free rate lowers Sharpe")
}
