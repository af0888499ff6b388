package universe

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed indices.yaml
var indicesYAML []byte

// Catalog maps named index and sector identifiers to constituent tickers,
// filtered through the availability gate on lookup.
type Catalog struct {
	gate         *Gate
	compositions map[string][]string
}

// Composition is the gate-filtered view of one index.
type Composition struct {
	Index       string   `json:"index"`
	Tickers     []string `json:"tickers"`
	Available   []string `json:"available_tickers"`
	Unavailable []string `json:"unavailable_tickers"`
}

// NewCatalog loads the embedded index definitions.
func NewCatalog(gate *Gate) (*Catalog, error) {
	compositions := make(map[string][]string)
	if err := yaml.Unmarshal(indicesYAML, &compositions); err != nil {
		return nil, fmt.Errorf("universe: parse index catalog: %w", err)
	}
	return &Catalog{gate: gate, compositions: compositions}, nil
}

// Indices returns the sorted list of known index names.
func (c *Catalog) Indices() []string {
	out := make([]string, 0, len(c.compositions))
	for name := range c.compositions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Composition resolves an index name to its constituents. Names are
// normalised the way callers tend to write them ("S&P500 Top10" variants).
func (c *Catalog) Composition(index string) (*Composition, error) {
	key := strings.ToLower(strings.TrimSpace(index))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	tickers, ok := c.compositions[key]
	if !ok {
		return nil, fmt.Errorf("universe: unknown index %q (available: %s)", index, strings.Join(c.Indices(), ", "))
	}

	available, unavailable, err := c.gate.Filter(tickers)
	if err != nil {
		return nil, err
	}
	return &Composition{
		Index:       key,
		Tickers:     tickers,
		Available:   available,
		Unavailable: unavailable,
	}, nil
}
