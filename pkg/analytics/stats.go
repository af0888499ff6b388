// Package analytics implements the correlation, risk and performance engines.
// All of them consume aligned daily log-return series and report annualized
// figures using the 252 trading-day convention.
package analytics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization base for daily series.
const TradingDaysPerYear = 252

// AnnualizeReturn scales a mean daily return to a yearly figure.
func AnnualizeReturn(dailyMean float64) float64 {
	return dailyMean * TradingDaysPerYear
}

// AnnualizeVolatility scales a daily standard deviation to a yearly figure.
func AnnualizeVolatility(dailyStd float64) float64 {
	return dailyStd * math.Sqrt(TradingDaysPerYear)
}

// percentile returns the linearly interpolated p-quantile (p in [0,1]) of xs.
func percentile(xs []float64, p float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}

// historicalVaR is the loss threshold not exceeded with the given confidence,
// estimated by historical simulation. Positive values mean losses.
func historicalVaR(returns []float64, confidence float64) float64 {
	return -percentile(returns, 1-confidence)
}

// historicalES is the mean loss beyond the VaR threshold. When no observation
// breaches the threshold it degenerates to the VaR itself, keeping ES >= VaR.
func historicalES(returns []float64, confidence float64) float64 {
	threshold := -historicalVaR(returns, confidence)
	var sum float64
	var n int
	for _, r := range returns {
		if r <= threshold {
			sum += r
			n++
		}
	}
	if n == 0 {
		return historicalVaR(returns, confidence)
	}
	return -sum / float64(n)
}

// maxDrawdown computes the deepest peak-to-trough loss of the cumulative
// compounded return path. Returned as a positive fraction.
func maxDrawdown(returns []float64) float64 {
	equity := 1.0
	peak := 1.0
	worst := 0.0
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := 1 - equity/peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

// jarqueBera returns the JB normality statistic and its chi-squared(2)
// p-value for a return series.
func jarqueBera(returns []float64) (statistic, pValue float64) {
	n := float64(len(returns))
	if n < 4 {
		return 0, 1
	}
	skew := stat.Skew(returns, nil)
	exKurt := stat.ExKurtosis(returns, nil)
	statistic = n / 6 * (skew*skew + exKurt*exKurt/4)
	// Chi-squared survival with 2 degrees of freedom.
	pValue = math.Exp(-statistic / 2)
	return statistic, pValue
}

// ranks converts values to fractional ranks, averaging ties, for rank
// correlation.
func ranks(xs []float64) []float64 {
	n := len(xs)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })

	out := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

// weightedReturns collapses aligned per-asset return columns into a single
// portfolio return series.
func weightedReturns(columns [][]float64, weights []float64) []float64 {
	if len(columns) == 0 {
		return nil
	}
	n := len(columns[0])
	out := make([]float64, n)
	for j, col := range columns {
		for i, r := range col {
			out[i] += weights[j] * r
		}
	}
	return out
}
