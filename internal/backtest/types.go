package backtest

import (
	"fmt"
	"time"

	"gotothemoon/internal/core"
)

// Side is the direction of an executed trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is an immutable record of one executed trade. Trades are
// appended to the log in execution order and never mutated.
type Trade struct {
	Date   time.Time
	Ticker string
	Side   Side
	Shares int64
	Price  float64
}

// String renders the trade in the log format
// "<date>: BOUGHT|SOLD <shares> <ticker> @ <price>".
func (t Trade) String() string {
	verb := "BOUGHT"
	if t.Side == SideSell {
		verb = "SOLD"
	}
	return fmt.Sprintf("%s: %s %d %s @ %.2f", t.Date.Format(core.DateLayout), verb, t.Shares, t.Ticker, t.Price)
}

// Position tracks the holding in a single ticker. Shares never go
// negative; MarketValue is re-derived from the current close on every
// simulated day the ticker has a price row.
type Position struct {
	Shares      int64
	MarketValue float64
}

// Snapshot records total portfolio value (cash plus all position
// market values) on one simulated date. The ordered snapshot sequence
// is the equity curve.
type Snapshot struct {
	Date  time.Time
	Value float64
}

// Report is the read-only performance summary computed from a
// completed equity curve and trade log.
type Report struct {
	StartDate           time.Time
	EndDate             time.Time
	InitialCapital      float64
	FinalValue          float64
	TotalReturnPct      float64
	AnnualizedReturnPct float64
	MaxDrawdownPct      float64
	SharpeRatio         float64
	TotalTrades         int
	Trades              []Trade
	Snapshots           []Snapshot
}

// TradeLog returns the formatted trade log lines in execution order.
func (r *Report) TradeLog() []string {
	lines := make([]string, len(r.Trades))
	for i, t := range r.Trades {
		lines[i] = t.String()
	}
	return lines
}
