package ma_crossover

import (
	"fmt"

	"gotothemoon/internal/core"
	"gotothemoon/internal/indicator"
	"gotothemoon/internal/strategy"
)

// MACrossover implements a dual simple-moving-average crossover
// strategy: BUY when the short average crosses above the long one,
// SELL when it crosses below, HOLD otherwise.
type MACrossover struct {
	shortWindow int
	longWindow  int
}

// New creates a new MA crossover strategy. The short window must be
// positive and strictly less than the long window.
func New(shortWindow, longWindow int) (*MACrossover, error) {
	if shortWindow <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("short_window must be positive, got %d", shortWindow))
	}
	if shortWindow >= longWindow {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("short_window (%d) must be less than long_window (%d)", shortWindow, longWindow))
	}
	return &MACrossover{
		shortWindow: shortWindow,
		longWindow:  longWindow,
	}, nil
}

func (m *MACrossover) Name() string {
	return "ma_crossover"
}

func (m *MACrossover) Description() string {
	return fmt.Sprintf("SMA Crossover (%d/%d)", m.shortWindow, m.longWindow)
}

// GenerateSignals produces one signal per date in the series. A series
// shorter than the long window yields HOLD for every date: degraded
// output, not an error.
func (m *MACrossover) GenerateSignals(series *core.PriceSeries) (core.SignalSeries, error) {
	dates := series.Dates()

	if series.Len() < m.longWindow {
		signals := make(core.SignalSeries, len(dates))
		for _, d := range dates {
			signals[d] = core.SignalHold
		}
		return signals, nil
	}

	closes := make([]float64, series.Len())
	for i, bar := range series.Bars() {
		closes[i] = bar.Close
	}

	shortMA := indicator.SMA(closes, m.shortWindow)
	longMA := indicator.SMA(closes, m.longWindow)

	return strategy.CrossoverSignals(dates, shortMA, longMA, m.shortWindow, m.longWindow), nil
}
