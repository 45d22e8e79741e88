package provider

import (
	"context"
	"time"

	"gotothemoon/internal/core"
)

// Provider supplies historical price data to the backtesting core.
// Tickers with no available data are simply absent keys in the result,
// not errors; the simulator treats them as having no rows.
type Provider interface {
	Name() string
	GetData(ctx context.Context, tickers []string, start, end time.Time) (map[string]*core.PriceSeries, error)
}
