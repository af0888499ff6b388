package universe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfolio-api/pkg/fault"
)

func testGate(tickers ...string) *Gate {
	return NewGate(&StaticModelStore{Tickers: tickers})
}

func TestGateFilter(t *testing.T) {
	g := testGate("AAPL", "MSFT", "GOOGL")

	supported, missing, err := g.Filter([]string{"MSFT", "ZZZ", "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT", "AAPL"}, supported, "input order preserved")
	assert.Equal(t, []string{"ZZZ"}, missing)
}

func TestGateRequireReportsFullSupportedSet(t *testing.T) {
	g := testGate("AAPL", "MSFT")

	err := g.Require([]string{"AAPL", "ZZZ", "YYY"})
	require.Error(t, err)
	var unsupported *fault.UnsupportedTickerError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, []string{"YYY", "ZZZ"}, func() []string {
		out := append([]string(nil), unsupported.Tickers...)
		if out[0] > out[1] {
			out[0], out[1] = out[1], out[0]
		}
		return out
	}())
	assert.Equal(t, []string{"AAPL", "MSFT"}, unsupported.Available, "error carries the whole supported set")

	assert.NoError(t, g.Require([]string{"AAPL", "MSFT"}))
}

func TestDirModelStoreScansArtifacts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"linear_AAPL.json", "linear_MSFT.json", "notes.txt", "linear_.json"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}

	store := NewDirModelStore(dir)
	tickers, err := store.Supported()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, tickers)
}

func TestDirModelStoreMissingDirIsEmpty(t *testing.T) {
	store := NewDirModelStore(filepath.Join(t.TempDir(), "nope"))
	tickers, err := store.Supported()
	require.NoError(t, err)
	assert.Empty(t, tickers)
}

func TestCatalogComposition(t *testing.T) {
	g := testGate("AAPL", "MSFT", "JPM")
	catalog, err := NewCatalog(g)
	require.NoError(t, err)

	comp, err := catalog.Composition("tech giants")
	require.NoError(t, err)
	assert.Equal(t, "tech_giants", comp.Index)
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, comp.Available)
	assert.Contains(t, comp.Unavailable, "NVDA")

	_, err = catalog.Composition("ftse100")
	assert.Error(t, err, "unknown index must fail with the available list")

	assert.Contains(t, catalog.Indices(), "dow30")
}
