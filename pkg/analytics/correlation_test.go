package analytics

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/market"
)

func matrixFrom(columns map[string][]float64) *market.ReturnMatrix {
	var n int
	var tickers []string
	for t, col := range columns {
		tickers = append(tickers, t)
		n = len(col)
	}
	dates := make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = base.AddDate(0, 0, i)
	}
	rm := &market.ReturnMatrix{Dates: dates, Data: columns}
	for _, t := range []string{"AAA", "BBB", "CCC"} {
		for _, have := range tickers {
			if have == t {
				rm.Tickers = append(rm.Tickers, t)
			}
		}
	}
	return rm
}

func noisyReturns(seed int64, n int) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.NormFloat64() * 0.01
	}
	return out
}

func TestCorrelationPerfectPair(t *testing.T) {
	a := noisyReturns(1, 60)
	b := make([]float64, len(a))
	inv := make([]float64, len(a))
	for i, v := range a {
		b[i] = 2 * v
		inv[i] = -v
	}

	engine := NewCorrelationEngine(CorrelationConfig{})
	res, err := engine.Analyze(matrixFrom(map[string][]float64{"AAA": a, "BBB": b, "CCC": inv}), Pearson, 0)
	require.NoError(t, err)

	assert.Equal(t, 60, res.Observations)
	require.Len(t, res.Pairs, 3)
	for _, p := range res.Pairs {
		switch {
		case p.A == "AAA" && p.B == "BBB":
			assert.InDelta(t, 1.0, p.Value, 1e-9)
			assert.Equal(t, "very strong", p.Strength)
		case p.A == "AAA" && p.B == "CCC":
			assert.InDelta(t, -1.0, p.Value, 1e-9)
			assert.Equal(t, "very strong", p.Strength, "strength uses absolute correlation")
		}
	}
	assert.InDelta(t, 1.0, res.Summary.Max, 1e-9)
	assert.InDelta(t, -1.0, res.Summary.Min, 1e-9)
	assert.Equal(t, 3, res.Buckets["very strong"])
}

func TestCorrelationMatrixIsSymmetric(t *testing.T) {
	engine := NewCorrelationEngine(CorrelationConfig{})
	res, err := engine.Analyze(matrixFrom(map[string][]float64{
		"AAA": noisyReturns(2, 45),
		"BBB": noisyReturns(3, 45),
	}), Pearson, 0)
	require.NoError(t, err)

	assert.Equal(t, res.Matrix[0][1], res.Matrix[1][0])
	assert.Equal(t, 1.0, res.Matrix[0][0])
	assert.Equal(t, 1.0, res.Matrix[1][1])
}

func TestCorrelationSpearmanMonotone(t *testing.T) {
	// Monotone but nonlinear relation: rank correlation must be exactly 1.
	a := make([]float64, 40)
	b := make([]float64, 40)
	for i := range a {
		a[i] = float64(i)
		b[i] = float64(i) * float64(i) * float64(i)
	}
	engine := NewCorrelationEngine(CorrelationConfig{})
	res, err := engine.Analyze(matrixFrom(map[string][]float64{"AAA": a, "BBB": b}), Spearman, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Pairs[0].Value, 1e-9)
}

func TestCorrelationRollingWindow(t *testing.T) {
	engine := NewCorrelationEngine(CorrelationConfig{})
	n := 50
	window := 20
	res, err := engine.Analyze(matrixFrom(map[string][]float64{
		"AAA": noisyReturns(4, n),
		"BBB": noisyReturns(5, n),
	}), Pearson, window)
	require.NoError(t, err)
	require.Len(t, res.Pairs, 1)
	assert.Len(t, res.Pairs[0].Rolling, n-window+1)

	res, err = engine.Analyze(matrixFrom(map[string][]float64{
		"AAA": noisyReturns(4, n),
		"BBB": noisyReturns(5, n),
	}), Pearson, 5)
	require.NoError(t, err)
	assert.Nil(t, res.Pairs[0].Rolling, "short windows do not produce rolling series")
}

func TestCorrelationInsufficientData(t *testing.T) {
	engine := NewCorrelationEngine(CorrelationConfig{MinObservations: 30})
	_, err := engine.Analyze(matrixFrom(map[string][]float64{
		"AAA": noisyReturns(6, 10),
		"BBB": noisyReturns(7, 10),
	}), Pearson, 0)

	var insufficient *fault.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 30, insufficient.Need)
	assert.Equal(t, 10, insufficient.Got)
}

func TestCorrelationNeedsTwoTickers(t *testing.T) {
	engine := NewCorrelationEngine(CorrelationConfig{})
	_, err := engine.Analyze(matrixFrom(map[string][]float64{"AAA": noisyReturns(8, 40)}), Pearson, 0)
	var invalid *fault.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "tickers", invalid.Param)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" Kendall ")
	require.NoError(t, err)
	assert.Equal(t, Kendall, m)

	_, err = ParseMethod("cosine")
	var invalid *fault.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
}
