package market

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"
)

func init() {
	RegisterProvider("synthetic", func(name string, cfg *ProviderConfig) (Provider, error) {
		return NewSyntheticProvider(cfg.Seed), nil
	})
}

// SyntheticProvider generates deterministic pseudo-random walks per ticker.
// It backs development and test environments where no upstream data source
// is configured; the same (seed, ticker, range) always yields the same bars.
type SyntheticProvider struct {
	seed int64
}

// NewSyntheticProvider constructs a provider with the given base seed.
func NewSyntheticProvider(seed int64) *SyntheticProvider {
	return &SyntheticProvider{seed: seed}
}

// History generates weekday bars for [start, end).
func (p *SyntheticProvider) History(ctx context.Context, ticker string, start, end time.Time) (*PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(ticker))
	rng := rand.New(rand.NewSource(p.seed ^ int64(h.Sum64())))

	// Per-ticker annualized drift in [-5%, +15%] and vol in [12%, 42%].
	drift := -0.05 + 0.20*rng.Float64()
	vol := 0.12 + 0.30*rng.Float64()
	dailyMu := drift / 252
	dailySigma := vol / math.Sqrt(252)

	price := 20 + 180*rng.Float64()
	series := &PriceSeries{Ticker: ticker}
	for d := start.UTC().Truncate(24 * time.Hour); d.Before(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		ret := dailyMu + dailySigma*rng.NormFloat64()
		price *= math.Exp(ret)
		spread := price * dailySigma * math.Abs(rng.NormFloat64())
		series.Bars = append(series.Bars, Bar{
			Time:   d,
			Open:   price * math.Exp(-ret/2),
			High:   price + spread,
			Low:    math.Max(price-spread, price*0.5),
			Close:  price,
			Volume: math.Floor(1e6 * (0.5 + rng.Float64())),
		})
	}
	return series, nil
}
