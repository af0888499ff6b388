// Package scenario applies hypothetical price shocks to frozen snapshots and
// materializes the results as derived snapshots.
package scenario

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/snapshot"
)

// Engine derives shocked snapshots from a base snapshot.
type Engine struct {
	store *snapshot.Store
}

// NewEngine wires the scenario engine to a snapshot store.
func NewEngine(store *snapshot.Store) *Engine {
	return &Engine{store: store}
}

// Apply shocks the base snapshot with multiplicative price deltas, given as
// fractions (-0.2 shocks a ticker down 20%). Only tickers present in the base
// may be shocked. Shocking an already-derived snapshot collapses to its root:
// the incoming deltas compound with the base's adjustments and the result is
// derived from the root snapshot, so equivalent shock sets on the same root
// always share one deterministic id and re-running a scenario returns the
// already-derived snapshot.
func (e *Engine) Apply(ctx context.Context, baseID string, deltas map[string]float64) (*snapshot.Snapshot, error) {
	if len(deltas) == 0 {
		return nil, &fault.InvalidParameterError{Param: "deltas", Reason: "scenario has no adjustments"}
	}

	base, err := e.store.Get(ctx, baseID)
	if err != nil {
		return nil, err
	}

	var unknown []string
	for ticker, delta := range deltas {
		if _, ok := base.Mu[ticker]; !ok {
			unknown = append(unknown, ticker)
			continue
		}
		if delta <= -1 {
			return nil, &fault.InvalidParameterError{
				Param:  "deltas",
				Reason: fmt.Sprintf("%s shock %g wipes out the price; must be > -1", ticker, delta),
			}
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &fault.UnknownTickerError{Tickers: unknown, Universe: base.Tickers}
	}

	// Derived snapshots always point straight at their root, so one hop
	// reaches it.
	root := base
	if base.BaseID != "" {
		if root, err = e.store.Get(ctx, base.BaseID); err != nil {
			return nil, err
		}
	}
	merged := make(map[string]float64, len(base.Adjustments)+len(deltas))
	for ticker, delta := range base.Adjustments {
		merged[ticker] = delta
	}
	for ticker, delta := range deltas {
		if prev, ok := merged[ticker]; ok {
			// Successive price shocks compound multiplicatively.
			merged[ticker] = (1+prev)*(1+delta) - 1
		} else {
			merged[ticker] = delta
		}
	}

	id := root.ID + "-scn-" + hashDeltas(merged)
	derived, err := e.store.Derive(ctx, root.ID, id, merged, func(_ *snapshot.Snapshot, draft *snapshot.Payload) error {
		for ticker, delta := range merged {
			// A multiplicative price shock shifts the expected log
			// return by log(1+delta).
			draft.Mu[ticker] += math.Log1p(delta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logx.Infof("scenario: derived %s from %s with %d shocks", derived.ID, root.ID, len(merged))
	return derived, nil
}

// hashDeltas produces a short deterministic digest of the sorted delta map.
func hashDeltas(deltas map[string]float64) string {
	tickers := make([]string, 0, len(deltas))
	for t := range deltas {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	parts := make([]string, 0, len(tickers))
	for _, t := range tickers {
		parts = append(parts, fmt.Sprintf("%s=%.6f", t, deltas[t]))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:4])
}
