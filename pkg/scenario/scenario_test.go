package scenario

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfolio-api/pkg/fault"
	"pfolio-api/pkg/snapshot"
)

func baseSnapshot(t *testing.T, store *snapshot.Store) *snapshot.Snapshot {
	t.Helper()
	snap, err := store.Create(context.Background(), &snapshot.Payload{
		HorizonDays: 63,
		Mu:          map[string]float64{"AAPL": 0.05, "MSFT": 0.03},
		Sigma:       map[string]float64{"AAPL": 0.15, "MSFT": 0.12},
	})
	require.NoError(t, err)
	return snap
}

func TestApplyShiftsExpectedReturns(t *testing.T) {
	store := snapshot.NewStore()
	engine := NewEngine(store)
	base := baseSnapshot(t, store)
	ctx := context.Background()

	derived, err := engine.Apply(ctx, base.ID, map[string]float64{"AAPL": -0.20})
	require.NoError(t, err)

	assert.Equal(t, base.ID, derived.BaseID)
	assert.InDelta(t, 0.05+math.Log1p(-0.20), derived.Mu["AAPL"], 1e-12)
	assert.Equal(t, 0.03, derived.Mu["MSFT"], "unshocked tickers keep their forecast")
	assert.Equal(t, map[string]float64{"AAPL": -0.20}, derived.Adjustments)

	fresh, err := store.Get(ctx, base.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.05, fresh.Mu["AAPL"], "base snapshot must stay untouched")
}

func TestApplyDeterministicID(t *testing.T) {
	store := snapshot.NewStore()
	engine := NewEngine(store)
	base := baseSnapshot(t, store)
	ctx := context.Background()

	a, err := engine.Apply(ctx, base.ID, map[string]float64{"AAPL": -0.1, "MSFT": 0.05})
	require.NoError(t, err)
	b, err := engine.Apply(ctx, base.ID, map[string]float64{"MSFT": 0.05, "AAPL": -0.1})
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID, "delta order must not change the scenario id")
	assert.Equal(t, a, b)
	assert.Contains(t, a.ID, base.ID+"-scn-")

	c, err := engine.Apply(ctx, base.ID, map[string]float64{"AAPL": -0.1})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, c.ID, "different deltas derive different snapshots")
}

func TestApplyChainCollapsesToRoot(t *testing.T) {
	store := snapshot.NewStore()
	engine := NewEngine(store)
	base := baseSnapshot(t, store)
	ctx := context.Background()

	first, err := engine.Apply(ctx, base.ID, map[string]float64{"AAPL": -0.2})
	require.NoError(t, err)
	second, err := engine.Apply(ctx, first.ID, map[string]float64{"AAPL": -0.1, "MSFT": 0.05})
	require.NoError(t, err)

	assert.Equal(t, base.ID, second.BaseID, "re-shocking a derived snapshot collapses to the root")
	assert.Equal(t, 1, strings.Count(second.ID, "-scn-"), "ids never chain scenario suffixes")

	combined := map[string]float64{"AAPL": (1-0.2)*(1-0.1) - 1, "MSFT": 0.05}
	direct, err := engine.Apply(ctx, base.ID, combined)
	require.NoError(t, err)
	assert.Equal(t, direct.ID, second.ID, "equivalent shock sets on the same root share one id")
	assert.Equal(t, combined, second.Adjustments)
	assert.InDelta(t, 0.05+math.Log1p(combined["AAPL"]), second.Mu["AAPL"], 1e-12)
	assert.InDelta(t, 0.03+math.Log1p(0.05), second.Mu["MSFT"], 1e-12)
}

func TestApplyRejectsUnknownTicker(t *testing.T) {
	store := snapshot.NewStore()
	engine := NewEngine(store)
	base := baseSnapshot(t, store)

	_, err := engine.Apply(context.Background(), base.ID, map[string]float64{"TSLA": -0.3, "AAPL": 0.1})
	var unknown *fault.UnknownTickerError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"TSLA"}, unknown.Tickers)
	assert.Equal(t, base.Tickers, unknown.Universe)
}

func TestApplyRejectsTotalWipeout(t *testing.T) {
	store := snapshot.NewStore()
	engine := NewEngine(store)
	base := baseSnapshot(t, store)

	_, err := engine.Apply(context.Background(), base.ID, map[string]float64{"AAPL": -1})
	var invalid *fault.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
}

func TestApplyEmptyDeltas(t *testing.T) {
	store := snapshot.NewStore()
	engine := NewEngine(store)

	_, err := engine.Apply(context.Background(), "any", nil)
	var invalid *fault.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
}

func TestApplyMissingBase(t *testing.T) {
	store := snapshot.NewStore()
	engine := NewEngine(store)

	_, err := engine.Apply(context.Background(), "missing", map[string]float64{"AAPL": 0.1})
	var notFound *fault.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
