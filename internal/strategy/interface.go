package strategy

import (
	"gotothemoon/internal/core"
)

// Strategy defines the interface for signal generators. A strategy is
// a pure function of one ticker's price history: the signal for date D
// may only use data at or before D.
type Strategy interface {
	Name() string
	Description() string
	GenerateSignals(series *core.PriceSeries) (core.SignalSeries, error)
}
