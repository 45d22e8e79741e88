package ema_crossover

import (
	"fmt"

	"gotothemoon/internal/core"
	"gotothemoon/internal/indicator"
	"gotothemoon/internal/strategy"
)

// EMACrossover is the exponential-average variant of the crossover
// strategy. Signal semantics match ma_crossover; only the averaging
// differs.
type EMACrossover struct {
	shortWindow int
	longWindow  int
}

// New creates a new EMA crossover strategy.
func New(shortWindow, longWindow int) (*EMACrossover, error) {
	if shortWindow <= 0 {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("short_window must be positive, got %d", shortWindow))
	}
	if shortWindow >= longWindow {
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("short_window (%d) must be less than long_window (%d)", shortWindow, longWindow))
	}
	return &EMACrossover{
		shortWindow: shortWindow,
		longWindow:  longWindow,
	}, nil
}

func (e *EMACrossover) Name() string {
	return "ema_crossover"
}

func (e *EMACrossover) Description() string {
	return fmt.Sprintf("EMA Crossover (%d/%d)", e.shortWindow, e.longWindow)
}

func (e *EMACrossover) GenerateSignals(series *core.PriceSeries) (core.SignalSeries, error) {
	dates := series.Dates()

	if series.Len() < e.longWindow {
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

	shortMA := indicator.EMA(closes, e.shortWindow)
	longMA := indicator.EMA(closes, e.longWindow)

	return strategy.CrossoverSignals(dates, shortMA, longMA, e.shortWindow, e.longWindow), nil
}
