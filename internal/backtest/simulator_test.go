package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"gotothemoon/internal/core"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatalf("parsing date %s: %v", s, err)
	}
	return d
}

// mkSeries builds consecutive daily bars starting at startDate.
func mkSeries(t *testing.T, ticker, startDate string, closes ...float64) *core.PriceSeries {
	t.Helper()
	base := day(t, startDate)
	bars := make([]core.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = core.PriceBar{Date: base.AddDate(0, 0, i), Close: c}
	}
	s, err := core.NewPriceSeries(ticker, bars)
	if err != nil {
		t.Fatalf("building series: %v", err)
	}
	return s
}

func TestRun_EmptyDataReturnsNoData(t *testing.T) {
	sim := NewSimulator(Config{InitialCapital: 100000}, nil)

	report, err := sim.Run(context.Background(), map[string]*core.PriceSeries{}, nil)
	if !errors.Is(err, core.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
	if report != nil {
		t.Error("expected nil report for empty data")
	}
}

func TestRun_AllSeriesEmptyReturnsNoData(t *testing.T) {
	empty, err := core.NewPriceSeries("GME", nil)
	if err != nil {
		t.Fatalf("building series: %v", err)
	}
	sim := NewSimulator(Config{InitialCapital: 100000}, nil)

	_, err = sim.Run(context.Background(), map[string]*core.PriceSeries{"GME": empty}, nil)
	if !errors.Is(err, core.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestRun_BuyInvestsTenPercentOfCash(t *testing.T) {
	series := mkSeries(t, "GME", "2023-01-02", 25.30, 26.00)
	buyDate := day(t, "2023-01-02")
	signals := map[string]core.SignalSeries{
		"GME": {buyDate: core.SignalBuy},
	}

	sim := NewSimulator(Config{Tickers: []string{"GME"}, InitialCapital: 100000}, nil)
	_, err := sim.Run(context.Background(), map[string]*core.PriceSeries{"GME": series}, signals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	trades := sim.Trades()
	if len(trades) != 1 {
		t.Fatalf("trade count = %d, want 1", len(trades))
	}
	// 10% of 100000 = 10000; floor(10000 / 25.30) = 395 shares.
	if trades[0].Shares != 395 {
		t.Errorf("shares = %d, want 395", trades[0].Shares)
	}
	wantCash := 100000 - 395*25.30
	if math.Abs(sim.Cash()-wantCash) > 1e-9 {
		t.Errorf("cash = %v, want %v", sim.Cash(), wantCash)
	}
	if got := trades[0].String(); got != "2023-01-02: BOUGHT 395 GME @ 25.30" {
		t.Errorf("trade log line = %q", got)
	}
}

func TestRun_BuySkippedWhenCashBelowPrice(t *testing.T) {
	series := mkSeries(t, "GME", "2023-01-02", 500)
	signals := map[string]core.SignalSeries{
		"GME": {day(t, "2023-01-02"): core.SignalBuy},
	}

	sim := NewSimulator(Config{Tickers: []string{"GME"}, InitialCapital: 400}, nil)
	if _, err := sim.Run(context.Background(), map[string]*core.PriceSeries{"GME": series}, signals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sim.Trades()) != 0 {
		t.Error("expected no trade when cash <= price")
	}
	if sim.Cash() != 400 {
		t.Errorf("cash = %v, want unchanged 400", sim.Cash())
	}
}

func TestRun_BuySkippedWhenPositionSizeRoundsToZero(t *testing.T) {
	// cash > price, but 10% of cash buys less than one share.
	series := mkSeries(t, "GME", "2023-01-02", 50)
	signals := map[string]core.SignalSeries{
		"GME": {day(t, "2023-01-02"): core.SignalBuy},
	}

	sim := NewSimulator(Config{Tickers: []string{"GME"}, InitialCapital: 100}, nil)
	if _, err := sim.Run(context.Background(), map[string]*core.PriceSeries{"GME": series}, signals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sim.Trades()) != 0 {
		t.Error("expected no trade when shares_to_buy rounds to zero")
	}
	if sim.Cash() != 100 {
		t.Errorf("cash = %v, want unchanged 100", sim.Cash())
	}
}

func TestRun_SellLiquidatesEntirePosition(t *testing.T) {
	series := mkSeries(t, "GME", "2023-01-02", 10, 20)
	signals := map[string]core.SignalSeries{
		"GME": {
			day(t, "2023-01-02"): core.SignalBuy,
			day(t, "2023-01-03"): core.SignalSell,
		},
	}

	sim := NewSimulator(Config{Tickers: []string{"GME"}, InitialCapital: 1000}, nil)
	if _, err := sim.Run(context.Background(), map[string]*core.PriceSeries{"GME": series}, signals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	trades := sim.Trades()
	if len(trades) != 2 {
		t.Fatalf("trade count = %d, want 2", len(trades))
	}
	// Buy day: 10% of 1000 = 100 -> 10 shares at 10. Sell day: all 10 at 20.
	if trades[0].Side != SideBuy || trades[0].Shares != 10 {
		t.Errorf("trade[0] = %+v, want BUY 10", trades[0])
	}
	if trades[1].Side != SideSell || trades[1].Shares != 10 {
		t.Errorf("trade[1] = %+v, want SELL 10", trades[1])
	}
	if pos := sim.PositionFor("GME"); pos.Shares != 0 {
		t.Errorf("shares after sell = %d, want 0", pos.Shares)
	}
	wantCash := 1000.0 - 10*10 + 10*20
	if math.Abs(sim.Cash()-wantCash) > 1e-9 {
		t.Errorf("cash = %v, want %v", sim.Cash(), wantCash)
	}
}

func TestRun_SellWithZeroSharesIsNoop(t *testing.T) {
	series := mkSeries(t, "GME", "2023-01-02", 10)
	signals := map[string]core.SignalSeries{
		"GME": {day(t, "2023-01-02"): core.SignalSell},
	}

	sim := NewSimulator(Config{Tickers: []string{"GME"}, InitialCapital: 1000}, nil)
	if _, err := sim.Run(context.Background(), map[string]*core.PriceSeries{"GME": series}, signals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(sim.Trades()) != 0 {
		t.Error("expected no trade for SELL with zero shares")
	}
	if sim.Cash() != 1000 {
		t.Errorf("cash = %v, want unchanged 1000", sim.Cash())
	}
}

func TestRun_SameDaySizingCompoundsInTickerOrder(t *testing.T) {
	a := mkSeries(t, "AAA", "2023-01-02", 10)
	b := mkSeries(t, "BBB", "2023-01-02", 10)
	d := day(t, "2023-01-02")
	signals := map[string]core.SignalSeries{
		"AAA": {d: core.SignalBuy},
		"BBB": {d: core.SignalBuy},
	}
	data := map[string]*core.PriceSeries{"AAA": a, "BBB": b}

	sim := NewSimulator(Config{Tickers: []string{"AAA", "BBB"}, InitialCapital: 1000}, nil)
	if _, err := sim.Run(context.Background(), data, signals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	trades := sim.Trades()
	if len(trades) != 2 {
		t.Fatalf("trade count = %d, want 2", len(trades))
	}
	// First ticker sees 1000 cash (10 shares), second sees 900 (9 shares).
	if trades[0].Ticker != "AAA" || trades[0].Shares != 10 {
		t.Errorf("trade[0] = %+v, want AAA 10", trades[0])
	}
	if trades[1].Ticker != "BBB" || trades[1].Shares != 9 {
		t.Errorf("trade[1] = %+v, want BBB 9", trades[1])
	}

	// Reversed order reverses the share counts.
	sim2 := NewSimulator(Config{Tickers: []string{"BBB", "AAA"}, InitialCapital: 1000}, nil)
	if _, err := sim2.Run(context.Background(), data, signals); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	trades2 := sim2.Trades()
	if trades2[0].Ticker != "BBB" || trades2[0].Shares != 10 {
		t.Errorf("reversed trade[0] = %+v, want BBB 10", trades2[0])
	}
	if trades2[1].Ticker != "AAA" || trades2[1].Shares != 9 {
		t.Errorf("reversed trade[1] = %+v, want AAA 9", trades2[1])
	}
}

func TestRun_UnionCalendarSkipsMissingTickerDays(t *testing.T) {
	// Disjoint trading days: union calendar covers both.
	a := mkSeries(t, "AAA", "2023-01-02", 10, 11)
	b := mkSeries(t, "BBB", "2023-01-04", 20, 21)

	sim := NewSimulator(Config{Tickers: []string{"AAA", "BBB"}, InitialCapital: 1000}, nil)
	report, err := sim.Run(context.Background(), map[string]*core.PriceSeries{"AAA": a, "BBB": b}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Snapshots) != 4 {
		t.Fatalf("snapshot count = %d, want 4 (union of both calendars)", len(report.Snapshots))
	}
	for i := 1; i < len(report.Snapshots); i++ {
		if !report.Snapshots[i-1].Date.Before(report.Snapshots[i].Date) {
			t.Error("snapshots not in ascending date order")
		}
	}
}

func TestRun_DateRangeIsInclusive(t *testing.T) {
	series := mkSeries(t, "GME", "2023-01-02", 10, 11, 12, 13, 14)

	sim := NewSimulator(Config{
		Tickers:        []string{"GME"},
		InitialCapital: 1000,
		StartDate:      day(t, "2023-01-03"),
		EndDate:        day(t, "2023-01-05"),
	}, nil)
	report, err := sim.Run(context.Background(), map[string]*core.PriceSeries{"GME": series}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Snapshots) != 3 {
		t.Fatalf("snapshot count = %d, want 3", len(report.Snapshots))
	}
	if !report.Snapshots[0].Date.Equal(day(t, "2023-01-03")) {
		t.Errorf("first snapshot = %v, want 2023-01-03", report.Snapshots[0].Date)
	}
	if !report.Snapshots[2].Date.Equal(day(t, "2023-01-05")) {
		t.Errorf("last snapshot = %v, want 2023-01-05", report.Snapshots[2].Date)
	}
}

func TestRun_PortfolioValueInvariant(t *testing.T) {
	// Mixed buys and sells; verify cash and shares never go negative
	// and each snapshot equals cash plus marked-to-market positions.
	series := mkSeries(t, "GME", "2023-01-02", 10, 12, 8, 15, 14)
	signals := map[string]core.SignalSeries{
		"GME": {
			day(t, "2023-01-02"): core.SignalBuy,
			day(t, "2023-01-03"): core.SignalBuy,
			day(t, "2023-01-04"): core.SignalSell,
			day(t, "2023-01-05"): core.SignalBuy,
		},
	}

	sim := NewSimulator(Config{Tickers: []string{"GME"}, InitialCapital: 1000}, nil)
	report, err := sim.Run(context.Background(), map[string]*core.PriceSeries{"GME": series}, signals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Replay the trade log against the snapshots.
	cash := 1000.0
	var shares int64
	tradeIdx := 0
	for _, snap := range report.Snapshots {
		price, ok := series.Close(snap.Date)
		if !ok {
			t.Fatalf("no price on %v", snap.Date)
		}

		want := cash + float64(shares)*price
		if math.Abs(snap.Value-want) > 1e-6 {
			t.Errorf("snapshot %v = %v, want cash+positions = %v", snap.Date, snap.Value, want)
		}

		for tradeIdx < len(report.Trades) && report.Trades[tradeIdx].Date.Equal(snap.Date) {
			tr := report.Trades[tradeIdx]
			if tr.Side == SideBuy {
				cash -= float64(tr.Shares) * tr.Price
				shares += tr.Shares
			} else {
				cash += float64(tr.Shares) * tr.Price
				shares -= tr.Shares
			}
			if cash < 0 {
				t.Errorf("cash went negative after %v", tr)
			}
			if shares < 0 {
				t.Errorf("shares went negative after %v", tr)
			}
			tradeIdx++
		}
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	series := mkSeries(t, "GME", "2023-01-02", 10, 11, 12)
	sim := NewSimulator(Config{Tickers: []string{"GME"}, InitialCapital: 1000}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Run(ctx, map[string]*core.PriceSeries{"GME": series}, nil)
	if err == nil {
		t.Error("expected context cancellation error")
	}
}

func TestNewSimulator_DefaultsInitialCapital(t *testing.T) {
	sim := NewSimulator(Config{}, nil)
	if sim.Cash() != defaultInitialCapital {
		t.Errorf("cash = %v, want default %v", sim.Cash(), float64(defaultInitialCapital))
	}
}
