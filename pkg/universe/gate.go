// Package universe decides which tickers the engines may operate on and maps
// named indices to their constituents.
package universe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pfolio-api/pkg/fault"
)

// ModelStore reports the tickers that have a usable trained forecasting
// artifact. Implementations must return a stable, deduplicated list.
type ModelStore interface {
	Supported() ([]string, error)
}

// Gate filters ticker sets against the supported universe. Every engine calls
// the gate before ticker-specific computation.
type Gate struct {
	store ModelStore
}

// NewGate constructs a gate over the given model store.
func NewGate(store ModelStore) *Gate {
	return &Gate{store: store}
}

// Supported returns the sorted supported ticker set.
func (g *Gate) Supported() ([]string, error) {
	tickers, err := g.store.Supported()
	if err != nil {
		return nil, fmt.Errorf("universe: list supported tickers: %w", err)
	}
	out := make([]string, len(tickers))
	copy(out, tickers)
	sort.Strings(out)
	return out, nil
}

// IsSupported reports whether a single ticker has a trained model.
func (g *Gate) IsSupported(ticker string) (bool, error) {
	supported, err := g.Supported()
	if err != nil {
		return false, err
	}
	for _, t := range supported {
		if t == ticker {
			return true, nil
		}
	}
	return false, nil
}

// Filter splits tickers into supported and missing subsets, preserving input
// order.
func (g *Gate) Filter(tickers []string) (supported, missing []string, err error) {
	all, err := g.Supported()
	if err != nil {
		return nil, nil, err
	}
	set := make(map[string]struct{}, len(all))
	for _, t := range all {
		set[t] = struct{}{}
	}
	for _, t := range tickers {
		if _, ok := set[t]; ok {
			supported = append(supported, t)
		} else {
			missing = append(missing, t)
		}
	}
	return supported, missing, nil
}

// Require fails with an UnsupportedTickerError listing the offending tickers
// and the full supported set when any input ticker lacks a model. The engines
// never silently compute on a reduced set.
func (g *Gate) Require(tickers []string) error {
	_, missing, err := g.Filter(tickers)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		available, _ := g.Supported()
		return &fault.UnsupportedTickerError{Tickers: missing, Available: available}
	}
	return nil
}

// DirModelStore lists tickers by scanning a directory for model artifacts
// named <prefix><TICKER><ext>.
type DirModelStore struct {
	Dir    string
	Prefix string
	Ext    string
}

// NewDirModelStore builds a store over dir with the default artifact naming.
func NewDirModelStore(dir string) *DirModelStore {
	return &DirModelStore{Dir: dir, Prefix: "linear_", Ext: ".json"}
}

// Supported scans the artifact directory. A missing directory yields an empty
// universe, not an error.
func (s *DirModelStore) Supported() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("universe: read model dir %s: %w", s.Dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, s.Prefix) || filepath.Ext(name) != s.Ext {
			continue
		}
		ticker := strings.TrimSuffix(strings.TrimPrefix(name, s.Prefix), s.Ext)
		if ticker != "" {
			out = append(out, ticker)
		}
	}
	return out, nil
}

// StaticModelStore serves a fixed ticker list; used by tests and the
// synthetic environment.
type StaticModelStore struct {
	Tickers []string
}

func (s *StaticModelStore) Supported() ([]string, error) {
	return s.Tickers, nil
}
