package backtest

import (
	"context"
	"math"
	"testing"

	"gotothemoon/internal/core"
	"gotothemoon/internal/strategy"
	"gotothemoon/internal/strategy/ma_crossover"
)

// End-to-end: two tickers, ten trading days, 2/5 crossover, $100k.
func TestBacktest_EndToEnd(t *testing.T) {
	gme := mkSeries(t, "GME", "2023-01-02", 100, 90, 80, 70, 60, 150, 160, 170, 180, 190)
	amc := mkSeries(t, "AMC", "2023-01-02", 50, 45, 40, 35, 30, 80, 80, 20, 20, 20)
	data := map[string]*core.PriceSeries{"GME": gme, "AMC": amc}

	strat, err := ma_crossover.New(2, 5)
	if err != nil {
		t.Fatalf("building strategy: %v", err)
	}

	engine := strategy.NewEngine()
	signals, err := engine.Precompute(context.Background(), strat, data)
	if err != nil {
		t.Fatalf("precomputing signals: %v", err)
	}

	sim := NewSimulator(Config{
		Tickers:        []string{"GME", "AMC"},
		InitialCapital: 100000,
		StartDate:      day(t, "2023-01-02"),
		EndDate:        day(t, "2023-01-11"),
	}, nil)

	report, err := sim.Run(context.Background(), data, signals)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The crossover fires BUY for both tickers on the recovery day and
	// SELL for AMC after its collapse.
	var buys, sells int
	for _, tr := range report.Trades {
		switch tr.Side {
		case SideBuy:
			buys++
		case SideSell:
			sells++
		}
	}
	if buys == 0 {
		t.Fatal("expected at least one BUY in the trade log")
	}
	if report.TotalTrades != 3 {
		t.Errorf("TotalTrades = %d, want 3 (GME buy, AMC buy, AMC sell)", report.TotalTrades)
	}

	// Same-day sizing in ticker order: GME sees the full $100k first.
	if tr := report.Trades[0]; tr.Ticker != "GME" || tr.Shares != 66 || tr.Price != 150 {
		t.Errorf("trade[0] = %+v, want GME 66 @ 150", tr)
	}
	if tr := report.Trades[1]; tr.Ticker != "AMC" || tr.Shares != 112 || tr.Price != 80 {
		t.Errorf("trade[1] = %+v, want AMC 112 @ 80", tr)
	}
	if tr := report.Trades[2]; tr.Ticker != "AMC" || tr.Side != SideSell || tr.Shares != 112 {
		t.Errorf("trade[2] = %+v, want AMC SELL 112", tr)
	}

	// Final equity must equal cash plus marked-to-market holdings.
	finalGME, _ := gme.Close(day(t, "2023-01-11"))
	finalAMC, _ := amc.Close(day(t, "2023-01-11"))
	want := sim.Cash() +
		float64(sim.PositionFor("GME").Shares)*finalGME +
		float64(sim.PositionFor("AMC").Shares)*finalAMC
	if math.Abs(report.FinalValue-want) > 1e-6 {
		t.Errorf("FinalValue = %v, want %v", report.FinalValue, want)
	}
	if math.Abs(report.FinalValue-95920) > 1e-6 {
		t.Errorf("FinalValue = %v, want 95920", report.FinalValue)
	}

	if len(report.Snapshots) != 10 {
		t.Errorf("snapshot count = %d, want 10", len(report.Snapshots))
	}
	if report.MaxDrawdownPct > 0 {
		t.Errorf("MaxDrawdownPct = %v, want <= 0", report.MaxDrawdownPct)
	}
}

// Concurrent runs with independent simulators share no state.
func TestBacktest_IndependentRuns(t *testing.T) {
	series := mkSeries(t, "GME", "2023-01-02", 10, 12, 14)
	data := map[string]*core.PriceSeries{"GME": series}
	signals := map[string]core.SignalSeries{
		"GME": {day(t, "2023-01-02"): core.SignalBuy},
	}

	done := make(chan *Report, 2)
	for i := 0; i < 2; i++ {
		go func() {
			sim := NewSimulator(Config{Tickers: []string{"GME"}, InitialCapital: 1000}, nil)
			report, err := sim.Run(context.Background(), data, signals)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			done <- report
		}()
	}

	a, b := <-done, <-done
	if a.FinalValue != b.FinalValue || a.TotalTrades != b.TotalTrades {
		t.Error("independent runs over identical inputs must agree")
	}
}
