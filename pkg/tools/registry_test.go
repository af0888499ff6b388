package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pfolio-api/pkg/fault"
)

func testRegistry() *Registry {
	r := NewRegistry()
	r.Register("correlate", "pairwise correlation",
		[]ParamSpec{
			{Name: "tickers", Type: "[]string", Required: true},
			{Name: "method", Type: "string", Default: "pearson"},
		},
		func() any { return &CorrelateParams{} },
		func(ctx context.Context, params any) (any, error) {
			p := params.(*CorrelateParams)
			return map[string]any{"tickers": p.Tickers}, nil
		},
	)
	return r
}

func TestDispatchSuccess(t *testing.T) {
	r := testRegistry()

	env := r.Dispatch(context.Background(), "correlate", json.RawMessage(`{"tickers":["AAPL","MSFT"]}`))
	require.True(t, env.OK)
	assert.Equal(t, "correlate", env.Tool)
	assert.Nil(t, env.Err)
	assert.NotNil(t, env.Result)
}

func TestDispatchValidationReport(t *testing.T) {
	r := testRegistry()

	env := r.Dispatch(context.Background(), "correlate", json.RawMessage(`{"tickers":["AAPL"],"method":"cosine"}`))
	require.False(t, env.OK)
	require.NotNil(t, env.Err)
	assert.Equal(t, string(fault.CodeInvalidParameter), env.Err.Code)
	require.Len(t, env.Err.Violations, 2, "both the short ticker list and the bad method are reported")

	constraints := map[string]string{}
	for _, v := range env.Err.Violations {
		constraints[v.Field] = v.Constraint
	}
	assert.Equal(t, "min", constraints["Tickers"])
	assert.Equal(t, "oneof", constraints["Method"])
}

func TestDispatchMalformedJSON(t *testing.T) {
	r := testRegistry()

	env := r.Dispatch(context.Background(), "correlate", json.RawMessage(`{"tickers":`))
	require.False(t, env.OK)
	assert.Equal(t, string(fault.CodeInvalidParameter), env.Err.Code)
}

func TestDispatchUnknownTool(t *testing.T) {
	r := testRegistry()

	env := r.Dispatch(context.Background(), "nope", nil)
	require.False(t, env.OK)
	assert.Equal(t, string(fault.CodeNotFound), env.Err.Code)
	assert.Equal(t, "tool", env.Err.Fields["kind"])
}

func TestDispatchMapsEngineErrors(t *testing.T) {
	r := NewRegistry()
	r.Register("forecast", "forecast", nil,
		func() any { return &ForecastParams{} },
		func(ctx context.Context, params any) (any, error) {
			return nil, &fault.UnsupportedTickerError{Tickers: []string{"ZZZ"}, Available: []string{"AAPL", "MSFT"}}
		},
	)

	env := r.Dispatch(context.Background(), "forecast", json.RawMessage(`{"tickers":["ZZZ"]}`))
	require.False(t, env.OK)
	assert.Equal(t, string(fault.CodeUnsupportedTicker), env.Err.Code)
	assert.Equal(t, []string{"ZZZ"}, env.Err.Fields["unsupported_tickers"])
	assert.Equal(t, []string{"AAPL", "MSFT"}, env.Err.Fields["available_tickers"])
}

func TestDispatchPlainErrorStillEnveloped(t *testing.T) {
	r := NewRegistry()
	r.Register("boom", "always fails", nil,
		func() any { return &SnapshotParams{} },
		func(ctx context.Context, params any) (any, error) {
			return nil, errors.New("backend exploded")
		},
	)

	env := r.Dispatch(context.Background(), "boom", json.RawMessage(`{"snapshot_id":"x"}`))
	require.False(t, env.OK)
	assert.Equal(t, "backend exploded", env.Err.Error)
	assert.Empty(t, env.Err.Code, "errors outside the taxonomy carry no code")
}

func TestListSorted(t *testing.T) {
	r := NewRegistry()
	noop := func(ctx context.Context, params any) (any, error) { return nil, nil }
	r.Register("zeta", "", nil, func() any { return &IndexParams{} }, noop)
	r.Register("alpha", "", nil, func() any { return &IndexParams{} }, noop)

	specs := r.List()
	require.Len(t, specs, 2)
	assert.Equal(t, "alpha", specs[0].Name)
	assert.Equal(t, "zeta", specs[1].Name)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := testRegistry()
	assert.Panics(t, func() {
		r.Register("correlate", "", nil, func() any { return &CorrelateParams{} }, nil)
	})
}
