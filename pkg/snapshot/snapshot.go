// Package snapshot provides immutable market snapshots and the store that
// tracks them. A snapshot fixes the expected returns, volatilities, raw
// return series and sentiment readings for a ticker set at a point in time,
// so every downstream engine sees the same frozen inputs.
package snapshot

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"pfolio-api/pkg/market"
)

// Meta carries snapshot identity and provenance. Derived snapshots record
// the base they came from and the adjustments applied.
type Meta struct {
	ID          string             `json:"id" msgpack:"id"`
	CreatedAt   time.Time          `json:"created_at" msgpack:"created_at"`
	HorizonDays int                `json:"horizon_days" msgpack:"horizon_days"`
	Tickers     []string           `json:"tickers" msgpack:"tickers"`
	BaseID      string             `json:"base_id,omitempty" msgpack:"base_id,omitempty"`
	Adjustments map[string]float64 `json:"adjustments,omitempty" msgpack:"adjustments,omitempty"`
}

// Snapshot is a frozen view of per-ticker expectations. Instances handed out
// by the store are deep copies; mutating one never affects the stored state.
type Snapshot struct {
	Meta      `msgpack:",inline"`
	Mu        map[string]float64   `json:"mu" msgpack:"mu"`
	Sigma     map[string]float64   `json:"sigma" msgpack:"sigma"`
	Returns   map[string][]float64 `json:"returns,omitempty" msgpack:"returns,omitempty"`
	Sentiment map[string]float64   `json:"sentiment,omitempty" msgpack:"sentiment,omitempty"`
}

// Payload is the mutable shape used to build a snapshot before the store
// freezes it.
type Payload struct {
	HorizonDays int
	Mu          map[string]float64
	Sigma       map[string]float64
	Returns     map[string][]float64
	Sentiment   map[string]float64
}

// Validate checks internal consistency: every ticker with a mu needs a sigma
// and vice versa.
func (p *Payload) Validate() error {
	if len(p.Mu) == 0 {
		return fmt.Errorf("snapshot: payload has no tickers")
	}
	for t := range p.Mu {
		if _, ok := p.Sigma[t]; !ok {
			return fmt.Errorf("snapshot: ticker %s has mu but no sigma", t)
		}
	}
	for t := range p.Sigma {
		if _, ok := p.Mu[t]; !ok {
			return fmt.Errorf("snapshot: ticker %s has sigma but no mu", t)
		}
	}
	return nil
}

func (p *Payload) tickers() []string {
	out := make([]string, 0, len(p.Mu))
	for t := range p.Mu {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NewID mints a snapshot identifier: UTC timestamp prefix for human ordering,
// uuid suffix for uniqueness.
func NewID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.UTC().Format("20060102T150405Z"), uuid.NewString())
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Meta: Meta{
			ID:          s.ID,
			CreatedAt:   s.CreatedAt,
			HorizonDays: s.HorizonDays,
			Tickers:     append([]string(nil), s.Tickers...),
			BaseID:      s.BaseID,
			Adjustments: cloneFloats(s.Adjustments),
		},
		Mu:        cloneFloats(s.Mu),
		Sigma:     cloneFloats(s.Sigma),
		Sentiment: cloneFloats(s.Sentiment),
	}
	if s.Returns != nil {
		out.Returns = make(map[string][]float64, len(s.Returns))
		for t, r := range s.Returns {
			out.Returns[t] = append([]float64(nil), r...)
		}
	}
	return out
}

// Payload converts a snapshot back into a mutable payload, deep-copied so the
// caller can transform it freely.
func (s *Snapshot) Payload() *Payload {
	c := s.Clone()
	return &Payload{
		HorizonDays: c.HorizonDays,
		Mu:          c.Mu,
		Sigma:       c.Sigma,
		Returns:     c.Returns,
		Sentiment:   c.Sentiment,
	}
}

// ReturnMatrix rebuilds the aligned return matrix captured at freeze time,
// restricted to the given tickers (all snapshot tickers when empty). The
// columns were aligned before freezing; synthetic daily dates ending at
// CreatedAt stand in for the original trading days.
func (s *Snapshot) ReturnMatrix(tickers []string) (*market.ReturnMatrix, error) {
	if len(s.Returns) == 0 {
		return nil, fmt.Errorf("snapshot: %s carries no return series", s.ID)
	}
	if len(tickers) == 0 {
		tickers = s.Tickers
	}
	sorted := append([]string(nil), tickers...)
	sort.Strings(sorted)

	n := -1
	data := make(map[string][]float64, len(sorted))
	for _, t := range sorted {
		col, ok := s.Returns[t]
		if !ok {
			return nil, fmt.Errorf("snapshot: %s has no returns for %s", s.ID, t)
		}
		if n == -1 {
			n = len(col)
		} else if len(col) != n {
			return nil, fmt.Errorf("snapshot: %s return series for %s has %d observations, want %d", s.ID, t, len(col), n)
		}
		data[t] = append([]float64(nil), col...)
	}

	dates := make([]time.Time, n)
	day := s.CreatedAt.UTC().Truncate(24 * time.Hour)
	for i := n - 1; i >= 0; i-- {
		dates[i] = day
		day = day.AddDate(0, 0, -1)
	}
	return &market.ReturnMatrix{Tickers: sorted, Dates: dates, Data: data}, nil
}

func cloneFloats(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
