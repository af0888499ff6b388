// Package forecast produces per-ticker return forecasts from trained linear
// models over technical indicator features.
package forecast

import (
	"fmt"
	"math"

	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/market"
	"pfolio-api/pkg/market/indicators"
)

// FeatureColumns is the canonical feature order. Model artifacts store their
// coefficients in this order and training used it too, so it must not change.
var FeatureColumns = []string{
	"ema_3", "ema_6", "ema_12", "ema_24",
	"rsi_3", "rsi_7", "rsi_14",
	"macd_fast", "macd_slow",
	"atr_7", "atr_14",
	"obv_short", "cmf_short",
	"vol_21d", "macd",
}

const (
	obvSmoothing = 10
	cmfWindow    = 20
	volWindow    = 21
)

// minFeatureBars is the shortest history that leaves every indicator defined
// at the last bar (the slow MACD EMA plus its signal warmup dominates).
const minFeatureBars = 60

// BuildFeatures computes the latest feature vector for a series, in
// FeatureColumns order.
func BuildFeatures(s *market.PriceSeries) ([]float64, error) {
	if len(s.Bars) < minFeatureBars {
		return nil, &fault.InsufficientDataError{Need: minFeatureBars, Got: len(s.Bars), What: fmt.Sprintf("%s price bars for feature extraction", s.Ticker)}
	}
	closes := s.Closes()
	last := len(closes) - 1

	macd, _, _ := indicators.MACD(closes)
	emaFast := indicators.EMA(closes, 12)
	emaSlow := indicators.EMA(closes, 26)
	obv := indicators.EMA(indicators.OBV(s.Bars), obvSmoothing)

	values := map[string]float64{
		"ema_3":     indicators.EMA(closes, 3)[last],
		"ema_6":     indicators.EMA(closes, 6)[last],
		"ema_12":    emaFast[last],
		"ema_24":    indicators.EMA(closes, 24)[last],
		"rsi_3":     indicators.RSI(closes, 3)[last],
		"rsi_7":     indicators.RSI(closes, 7)[last],
		"rsi_14":    indicators.RSI(closes, 14)[last],
		"macd_fast": emaFast[last],
		"macd_slow": emaSlow[last],
		"atr_7":     indicators.ATR(s.Bars, 7)[last],
		"atr_14":    indicators.ATR(s.Bars, 14)[last],
		"obv_short": obv[last],
		"cmf_short": indicators.CMF(s.Bars, cmfWindow)[last],
		"vol_21d":   indicators.Volatility(closes, volWindow)[last],
		"macd":      macd[last],
	}

	out := make([]float64, len(FeatureColumns))
	for i, name := range FeatureColumns {
		v := values[name]
		if math.IsNaN(v) {
			return nil, &fault.InsufficientDataError{
				Need: minFeatureBars,
				Got:  len(s.Bars),
				What: fmt.Sprintf("%s history to warm up feature %s", s.Ticker, name),
			}
		}
		out[i] = v
	}
	return out, nil
}

// FeatureMap pairs a feature vector with its column names for reporting.
func FeatureMap(vector []float64) map[string]float64 {
	out := make(map[string]float64, len(vector))
	for i, name := range FeatureColumns {
		if i < len(vector) {
			out[name] = vector[i]
		}
	}
	return out
}
