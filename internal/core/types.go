package core

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the calendar date format used across the system.
const DateLayout = "2006-01-02"

// Day truncates a timestamp to its calendar date at UTC midnight.
// All date keys in the system are normalized through this function so
// that map lookups and comparisons ignore time of day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a normalized date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q (expected YYYY-MM-DD): %w", s, err)
	}
	return Day(t), nil
}

// PriceBar represents one ticker's OHLCV data for a single trading day.
type PriceBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// PriceSeries holds the ordered price history for one ticker.
// Bars are strictly increasing by date with no duplicates; an index
// allows O(1) close-price lookup by normalized date.
type PriceSeries struct {
	Ticker string
	bars   []PriceBar
	index  map[time.Time]int
}

// NewPriceSeries builds a series from bars, sorting by date and
// rejecting duplicate dates.
func NewPriceSeries(ticker string, bars []PriceBar) (*PriceSeries, error) {
	s := &PriceSeries{
		Ticker: ticker,
		bars:   make([]PriceBar, 0, len(bars)),
		index:  make(map[time.Time]int, len(bars)),
	}
	for _, b := range bars {
		b.Date = Day(b.Date)
		if _, dup := s.index[b.Date]; dup {
			return nil, fmt.Errorf("duplicate date %s in series for %s", b.Date.Format(DateLayout), ticker)
		}
		s.index[b.Date] = 0 // placeholder until sorted
		s.bars = append(s.bars, b)
	}
	sort.Slice(s.bars, func(i, j int) bool { return s.bars[i].Date.Before(s.bars[j].Date) })
	for i, b := range s.bars {
		s.index[b.Date] = i
	}
	return s, nil
}

// Len returns the number of bars in the series.
func (s *PriceSeries) Len() int {
	return len(s.bars)
}

// Bars returns the bars in ascending date order.
func (s *PriceSeries) Bars() []PriceBar {
	return s.bars
}

// At returns the bar at index i.
func (s *PriceSeries) At(i int) PriceBar {
	return s.bars[i]
}

// Bar returns the bar on the given date, if present.
func (s *PriceSeries) Bar(date time.Time) (PriceBar, bool) {
	i, ok := s.index[Day(date)]
	if !ok {
		return PriceBar{}, false
	}
	return s.bars[i], true
}

// Close returns the closing price on the given date, if present.
func (s *PriceSeries) Close(date time.Time) (float64, bool) {
	b, ok := s.Bar(date)
	if !ok {
		return 0, false
	}
	return b.Close, true
}

// Dates returns all dates in the series in ascending order.
func (s *PriceSeries) Dates() []time.Time {
	dates := make([]time.Time, len(s.bars))
	for i, b := range s.bars {
		dates[i] = b.Date
	}
	return dates
}

// Signal is a categorical trade signal for one (ticker, date) pair.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// SignalSeries maps normalized dates to signals for one ticker.
// Absent dates are read as HOLD by consumers.
type SignalSeries map[time.Time]Signal

// Get returns the signal for a date, defaulting to HOLD.
func (ss SignalSeries) Get(date time.Time) Signal {
	if sig, ok := ss[Day(date)]; ok {
		return sig
	}
	return SignalHold
}
