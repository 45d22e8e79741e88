package backtest

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"gotothemoon/internal/core"
)

// Default initial capital when none is configured.
const defaultInitialCapital = 100000

// Cash fraction invested on each BUY signal. Sizing recomputes against
// the cash balance at the moment of the trade, so same-day trades
// across tickers compound in ticker-iteration order.
const buyFraction = 0.10

// Config defines simulation parameters.
type Config struct {
	Tickers        []string
	InitialCapital float64
	StartDate      time.Time
	EndDate        time.Time
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = defaultInitialCapital
	}
	return cfg
}

// Simulator drives the day-by-day portfolio simulation. It exclusively
// owns cash, positions, the trade log and the snapshot sequence for
// the duration of one Run; concurrent backtests must use independent
// instances.
type Simulator struct {
	cfg    Config
	logger *zap.Logger

	cash      float64
	positions map[string]*Position
	trades    []Trade
	snapshots []Snapshot
}

// NewSimulator creates a simulator with the given configuration.
func NewSimulator(cfg Config, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.normalize()
	return &Simulator{
		cfg:       cfg,
		logger:    logger,
		cash:      cfg.InitialCapital,
		positions: make(map[string]*Position),
	}
}

// Run executes the simulation over the union calendar of all supplied
// series and returns the performance report. Empty price data yields
// core.ErrNoData, never a panic.
func (s *Simulator) Run(ctx context.Context, data map[string]*core.PriceSeries, signals map[string]core.SignalSeries) (*Report, error) {
	if !s.hasAnyRows(data) {
		s.logger.Warn("no price data for the given tickers and date range, aborting backtest")
		return nil, core.ErrNoData
	}

	tickers := s.tickerOrder(data)
	calendar := s.calendar(data)

	for _, date := range calendar {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		s.step(date, tickers, data, signals)
	}

	return Analyze(s.snapshots, s.trades, s.cfg.InitialCapital, s.cfg.StartDate, s.cfg.EndDate)
}

// step processes one calendar date: mark-to-market, trade execution
// per ticker in fixed order, then one snapshot.
func (s *Simulator) step(date time.Time, tickers []string, data map[string]*core.PriceSeries, signals map[string]core.SignalSeries) {
	// Snapshot value is start-of-day cash plus pre-trade position
	// values. Every executed trade exchanges cash for shares at the
	// same day's close, so the end-of-day figure is identical.
	dayValue := s.cash

	for _, ticker := range tickers {
		series, ok := data[ticker]
		if !ok {
			continue
		}
		price, ok := series.Close(date)
		if !ok {
			continue // no row for this ticker today
		}

		pos := s.position(ticker)
		pos.MarketValue = float64(pos.Shares) * price
		dayValue += pos.MarketValue

		switch signals[ticker].Get(date) {
		case core.SignalBuy:
			s.executeBuy(date, ticker, price, pos)
		case core.SignalSell:
			s.executeSell(date, ticker, price, pos)
		}
	}

	s.snapshots = append(s.snapshots, Snapshot{Date: date, Value: dayValue})
}

// executeBuy invests a fixed fraction of current cash, rounded down to
// whole shares. Too little cash for a single share means no trade and
// no error.
func (s *Simulator) executeBuy(date time.Time, ticker string, price float64, pos *Position) {
	if s.cash <= price {
		return
	}
	investment := s.cash * buyFraction
	sharesToBuy := int64(investment / price)
	if sharesToBuy <= 0 {
		return
	}

	cost := float64(sharesToBuy) * price
	s.cash -= cost
	pos.Shares += sharesToBuy
	s.trades = append(s.trades, Trade{Date: date, Ticker: ticker, Side: SideBuy, Shares: sharesToBuy, Price: price})

	s.logger.Debug("executed buy",
		zap.String("ticker", ticker),
		zap.Int64("shares", sharesToBuy),
		zap.Float64("price", price),
		zap.Float64("cash", s.cash),
	)
}

// executeSell liquidates the entire position, never a partial exit.
func (s *Simulator) executeSell(date time.Time, ticker string, price float64, pos *Position) {
	if pos.Shares <= 0 {
		return
	}
	shares := pos.Shares
	s.cash += float64(shares) * price
	pos.Shares = 0
	s.trades = append(s.trades, Trade{Date: date, Ticker: ticker, Side: SideSell, Shares: shares, Price: price})

	s.logger.Debug("executed sell",
		zap.String("ticker", ticker),
		zap.Int64("shares", shares),
		zap.Float64("price", price),
		zap.Float64("cash", s.cash),
	)
}

func (s *Simulator) position(ticker string) *Position {
	pos, ok := s.positions[ticker]
	if !ok {
		pos = &Position{}
		s.positions[ticker] = pos
	}
	return pos
}

func (s *Simulator) hasAnyRows(data map[string]*core.PriceSeries) bool {
	for _, series := range data {
		if series != nil && series.Len() > 0 {
			return true
		}
	}
	return false
}

// tickerOrder fixes the ticker iteration order for the whole run: the
// configured list when present, otherwise sorted data keys. The 10%
// sizing rule makes same-day outcomes order-dependent, so the order
// must be deterministic.
func (s *Simulator) tickerOrder(data map[string]*core.PriceSeries) []string {
	if len(s.cfg.Tickers) > 0 {
		return s.cfg.Tickers
	}
	tickers := make([]string, 0, len(data))
	for ticker := range data {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// calendar builds the simulated dates: the union of all dates present
// across the supplied series, filtered to the inclusive configured
// range, ascending. Zero start or end bounds are open.
func (s *Simulator) calendar(data map[string]*core.PriceSeries) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, series := range data {
		if series == nil {
			continue
		}
		for _, d := range series.Dates() {
			seen[d] = struct{}{}
		}
	}

	start := core.Day(s.cfg.StartDate)
	end := core.Day(s.cfg.EndDate)

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		if !s.cfg.StartDate.IsZero() && d.Before(start) {
			continue
		}
		if !s.cfg.EndDate.IsZero() && d.After(end) {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Cash returns the current cash balance.
func (s *Simulator) Cash() float64 {
	return s.cash
}

// PositionFor returns a copy of the current position in ticker.
func (s *Simulator) PositionFor(ticker string) Position {
	if pos, ok := s.positions[ticker]; ok {
		return *pos
	}
	return Position{}
}

// Trades returns a copy of the trade log in execution order.
func (s *Simulator) Trades() []Trade {
	return append([]Trade(nil), s.trades...)
}

// Snapshots returns a copy of the recorded equity curve.
func (s *Simulator) Snapshots() []Snapshot {
	return append([]Snapshot(nil), s.snapshots...)
}
