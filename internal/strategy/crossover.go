package strategy

import (
	"time"

	"gotothemoon/internal/core"
)

// CrossoverSignals turns a pair of aligned moving averages into a
// signal series. short and long are trailing-window averages as
// produced by the indicator package: long[i] covers the window ending
// at series date index i+longWindow-1.
//
// The relative position is sign(short - long) at each date where both
// averages exist. Only a full sign flip between consecutive dates
// (delta of exactly ±2) emits a trade signal: -1 to +1 is BUY, +1 to
// -1 is SELL. A transition into or out of a tie (delta ±1) stays HOLD.
// Every date in the input maps to exactly one signal.
func CrossoverSignals(dates []time.Time, short, long []float64, shortWindow, longWindow int) core.SignalSeries {
	signals := make(core.SignalSeries, len(dates))
	for _, d := range dates {
		signals[d] = core.SignalHold
	}

	offset := longWindow - shortWindow // short MA starts earlier than long MA

	prev := 0
	prevDefined := false
	for i := longWindow - 1; i < len(dates); i++ {
		longIdx := i - longWindow + 1
		shortIdx := longIdx + offset
		if longIdx >= len(long) || shortIdx >= len(short) {
			break
		}

		pos := sign(short[shortIdx] - long[longIdx])
		if prevDefined {
			switch pos - prev {
			case 2:
				signals[dates[i]] = core.SignalBuy
			case -2:
				signals[dates[i]] = core.SignalSell
			}
		}
		prev = pos
		prevDefined = true
	}

	return signals
}

func sign(x float64) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
