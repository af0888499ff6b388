package market

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Bar is one daily observation for a ticker.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries is an ordered daily price history for a single ticker.
// Timestamps must be strictly increasing with no duplicates.
type PriceSeries struct {
	Ticker string
	Bars   []Bar
}

// Validate checks the ordering invariant and that prices are positive.
func (s *PriceSeries) Validate() error {
	for i, b := range s.Bars {
		if b.Close <= 0 {
			return fmt.Errorf("market: %s bar %d has non-positive close %f", s.Ticker, i, b.Close)
		}
		if i > 0 && !s.Bars[i-1].Time.Before(b.Time) {
			return fmt.Errorf("market: %s timestamps not strictly increasing at index %d", s.Ticker, i)
		}
	}
	return nil
}

// Closes returns the close price series, oldest first.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// LogReturns returns period-over-period log returns; length = len(Bars)-1.
func (s *PriceSeries) LogReturns() []float64 {
	if len(s.Bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(s.Bars)-1)
	for i := 1; i < len(s.Bars); i++ {
		out = append(out, math.Log(s.Bars[i].Close/s.Bars[i-1].Close))
	}
	return out
}

// SimpleReturns returns period-over-period simple returns; length = len(Bars)-1.
func (s *PriceSeries) SimpleReturns() []float64 {
	if len(s.Bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(s.Bars)-1)
	for i := 1; i < len(s.Bars); i++ {
		out = append(out, s.Bars[i].Close/s.Bars[i-1].Close-1)
	}
	return out
}

// Slice returns the sub-series with bar times in [start, end]. A zero start
// or end leaves that side unbounded.
func (s *PriceSeries) Slice(start, end time.Time) *PriceSeries {
	out := &PriceSeries{Ticker: s.Ticker}
	for _, b := range s.Bars {
		if !start.IsZero() && b.Time.Before(start) {
			continue
		}
		if !end.IsZero() && b.Time.After(end) {
			continue
		}
		out.Bars = append(out.Bars, b)
	}
	return out
}

// ReturnMatrix holds aligned return series for several tickers.
type ReturnMatrix struct {
	Tickers []string
	Dates   []time.Time
	Data    map[string][]float64
}

// Observations reports the number of aligned return observations.
func (m *ReturnMatrix) Observations() int {
	return len(m.Dates)
}

// Column returns the return series for a ticker, or nil when absent.
func (m *ReturnMatrix) Column(ticker string) []float64 {
	return m.Data[ticker]
}

// Tail truncates the matrix to the most recent n observations.
func (m *ReturnMatrix) Tail(n int) *ReturnMatrix {
	if n <= 0 || n >= len(m.Dates) {
		return m
	}
	out := &ReturnMatrix{
		Tickers: m.Tickers,
		Dates:   m.Dates[len(m.Dates)-n:],
		Data:    make(map[string][]float64, len(m.Data)),
	}
	for t, col := range m.Data {
		out.Data[t] = col[len(col)-n:]
	}
	return out
}

// AlignLogReturns intersects the supplied histories on date and produces the
// aligned log-return matrix. Tickers come out sorted for deterministic order.
func AlignLogReturns(series map[string]*PriceSeries) (*ReturnMatrix, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("market: no series to align")
	}

	tickers := make([]string, 0, len(series))
	for t := range series {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	// Intersect trading days across all tickers.
	counts := make(map[time.Time]int)
	for _, t := range tickers {
		s := series[t]
		if err := s.Validate(); err != nil {
			return nil, err
		}
		for _, b := range s.Bars {
			counts[b.Time.UTC().Truncate(24*time.Hour)]++
		}
	}
	var dates []time.Time
	for d, n := range counts {
		if n == len(tickers) {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if len(dates) < 2 {
		return nil, fmt.Errorf("market: fewer than 2 overlapping observations across %d tickers", len(tickers))
	}

	index := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		index[d] = i
	}

	matrix := &ReturnMatrix{
		Tickers: tickers,
		Dates:   dates[1:],
		Data:    make(map[string][]float64, len(tickers)),
	}
	for _, t := range tickers {
		closes := make([]float64, len(dates))
		for _, b := range series[t].Bars {
			if i, ok := index[b.Time.UTC().Truncate(24*time.Hour)]; ok {
				closes[i] = b.Close
			}
		}
		col := make([]float64, len(dates)-1)
		for i := 1; i < len(dates); i++ {
			col[i-1] = math.Log(closes[i] / closes[i-1])
		}
		matrix.Data[t] = col
	}
	return matrix, nil
}
