package market

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func seriesFromCloses(ticker string, closes []float64) *PriceSeries {
	s := &PriceSeries{Ticker: ticker}
	for i, c := range closes {
		s.Bars = append(s.Bars, Bar{Time: day(i), Close: c, High: c + 1, Low: c - 1, Volume: 1000})
	}
	return s
}

func TestPriceSeriesValidate(t *testing.T) {
	s := seriesFromCloses("AAA", []float64{100, 101, 102})
	require.NoError(t, s.Validate())

	dup := seriesFromCloses("AAA", []float64{100, 101})
	dup.Bars[1].Time = dup.Bars[0].Time
	assert.Error(t, dup.Validate(), "duplicate timestamps must be rejected")

	neg := seriesFromCloses("AAA", []float64{100, -1})
	assert.Error(t, neg.Validate(), "non-positive close must be rejected")
}

func TestLogReturnsLength(t *testing.T) {
	s := seriesFromCloses("AAA", []float64{100, 110, 121})
	rets := s.LogReturns()
	require.Len(t, rets, 2)
	assert.InDelta(t, math.Log(1.1), rets[0], 1e-12)
	assert.InDelta(t, math.Log(1.1), rets[1], 1e-12)
}

func TestAlignLogReturnsIntersectsDates(t *testing.T) {
	a := seriesFromCloses("AAA", []float64{100, 101, 102, 103})
	b := &PriceSeries{Ticker: "BBB"}
	// BBB misses day 1.
	for _, i := range []int{0, 2, 3} {
		b.Bars = append(b.Bars, Bar{Time: day(i), Close: 50 + float64(i)})
	}

	matrix, err := AlignLogReturns(map[string]*PriceSeries{"AAA": a, "BBB": b})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "BBB"}, matrix.Tickers)
	assert.Equal(t, 2, matrix.Observations(), "three common dates yield two returns")
	require.Len(t, matrix.Column("AAA"), 2)
	assert.InDelta(t, math.Log(102.0/100.0), matrix.Column("AAA")[0], 1e-12)
}

func TestAlignLogReturnsInsufficientOverlap(t *testing.T) {
	a := seriesFromCloses("AAA", []float64{100, 101})
	b := &PriceSeries{Ticker: "BBB", Bars: []Bar{{Time: day(10), Close: 50}}}
	_, err := AlignLogReturns(map[string]*PriceSeries{"AAA": a, "BBB": b})
	assert.Error(t, err)
}

func TestReturnMatrixTail(t *testing.T) {
	s := seriesFromCloses("AAA", []float64{100, 101, 102, 103, 104})
	matrix, err := AlignLogReturns(map[string]*PriceSeries{"AAA": s})
	require.NoError(t, err)
	tail := matrix.Tail(2)
	assert.Equal(t, 2, tail.Observations())
	assert.Len(t, tail.Column("AAA"), 2)
	// Tail beyond length is a no-op.
	assert.Equal(t, matrix, matrix.Tail(100))
}
