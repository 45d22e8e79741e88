package strategy

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gotothemoon/internal/core"
)

// Engine manages registered strategies and precomputes signal lookups.
type Engine struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
	logger     *zap.Logger
}

// NewEngine creates a new strategy engine
func NewEngine(logger ...*zap.Logger) *Engine {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Engine{
		strategies: make(map[string]Strategy),
		logger:     l,
	}
}

// Register adds a strategy to the engine
func (e *Engine) Register(s Strategy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.strategies[s.Name()] = s
}

// Get retrieves a strategy by name
func (e *Engine) Get(name string) (Strategy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.strategies[name]
	return s, ok
}

// GetAll returns all registered strategies
func (e *Engine) GetAll() []Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]Strategy, 0, len(e.strategies))
	for _, s := range e.strategies {
		result = append(result, s)
	}
	return result
}

// Precompute runs the strategy over every ticker's full series and
// collects the results into a ticker-keyed signal lookup. Signal
// generation is a pure per-ticker function, so tickers run
// concurrently; the simulation loop only starts once all results are
// collected. A ticker whose generation fails is logged and left out
// of the lookup, which downstream reads as all-HOLD.
func (e *Engine) Precompute(ctx context.Context, strat Strategy, data map[string]*core.PriceSeries) (map[string]core.SignalSeries, error) {
	lookup := make(map[string]core.SignalSeries, len(data))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for ticker, series := range data {
		if series == nil || series.Len() == 0 {
			continue
		}
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			signals, err := strat.GenerateSignals(series)
			if err != nil {
				e.logger.Warn("signal generation failed",
					zap.String("strategy", strat.Name()),
					zap.String("ticker", ticker),
					zap.Error(err),
				)
				return nil
			}

			mu.Lock()
			lookup[ticker] = signals
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lookup, nil
}
