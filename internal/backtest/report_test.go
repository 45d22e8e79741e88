package backtest

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"gotothemoon/internal/core"
)

func snaps(t *testing.T, startDate string, values ...float64) []Snapshot {
	t.Helper()
	base := day(t, startDate)
	out := make([]Snapshot, len(values))
	for i, v := range values {
		out[i] = Snapshot{Date: base.AddDate(0, 0, i), Value: v}
	}
	return out
}

func TestAnalyze_EmptySnapshotsFails(t *testing.T) {
	_, err := Analyze(nil, nil, 100000, time.Time{}, time.Time{})
	if !errors.Is(err, core.ErrEmptyHistory) {
		t.Fatalf("err = %v, want ErrEmptyHistory", err)
	}
}

func TestAnalyze_TotalReturn(t *testing.T) {
	report, err := Analyze(snaps(t, "2023-01-02", 100000, 105000, 110000), nil, 100000, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(report.TotalReturnPct-10) > 1e-9 {
		t.Errorf("TotalReturnPct = %v, want 10", report.TotalReturnPct)
	}
	if report.FinalValue != 110000 {
		t.Errorf("FinalValue = %v, want 110000", report.FinalValue)
	}
}

func TestAnalyze_AnnualizedReturnZeroForSingleDay(t *testing.T) {
	report, err := Analyze(snaps(t, "2023-01-02", 100000), nil, 100000, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.AnnualizedReturnPct != 0 {
		t.Errorf("AnnualizedReturnPct = %v, want 0 for zero elapsed time", report.AnnualizedReturnPct)
	}
}

func TestAnalyze_AnnualizedReturn(t *testing.T) {
	// Two snapshots one year apart (365 days), +10% total.
	first := Snapshot{Date: day(t, "2023-01-02"), Value: 100000}
	last := Snapshot{Date: day(t, "2024-01-02"), Value: 110000}

	report, err := Analyze([]Snapshot{first, last}, nil, 100000, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	years := 365.0 / 365.25
	want := (math.Pow(1.10, 1/years) - 1) * 100
	if math.Abs(report.AnnualizedReturnPct-want) > 1e-9 {
		t.Errorf("AnnualizedReturnPct = %v, want %v", report.AnnualizedReturnPct, want)
	}
}

func TestAnalyze_MaxDrawdown(t *testing.T) {
	// Peak 110000, trough 99000: drawdown = -10%.
	report, err := Analyze(snaps(t, "2023-01-02", 100000, 110000, 99000, 105000), nil, 100000, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(report.MaxDrawdownPct-(-10)) > 1e-9 {
		t.Errorf("MaxDrawdownPct = %v, want -10", report.MaxDrawdownPct)
	}
}

func TestAnalyze_MaxDrawdownZeroForMonotonicCurve(t *testing.T) {
	report, err := Analyze(snaps(t, "2023-01-02", 100, 100, 110, 120), nil, 100, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.MaxDrawdownPct != 0 {
		t.Errorf("MaxDrawdownPct = %v, want exactly 0", report.MaxDrawdownPct)
	}
}

func TestAnalyze_MaxDrawdownNeverPositive(t *testing.T) {
	curves := [][]float64{
		{100, 120, 90, 130},
		{100, 90, 80, 70},
		{100},
		{100, 100, 100},
	}
	for _, values := range curves {
		report, err := Analyze(snaps(t, "2023-01-02", values...), nil, 100, time.Time{}, time.Time{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.MaxDrawdownPct > 0 {
			t.Errorf("MaxDrawdownPct = %v for %v, want <= 0", report.MaxDrawdownPct, values)
		}
	}
}

func TestAnalyze_SharpeZeroForFlatCurve(t *testing.T) {
	report, err := Analyze(snaps(t, "2023-01-02", 100, 100, 100, 100), nil, 100, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.SharpeRatio != 0 {
		t.Errorf("SharpeRatio = %v, want exactly 0 for zero variance", report.SharpeRatio)
	}
	if math.IsNaN(report.SharpeRatio) || math.IsInf(report.SharpeRatio, 0) {
		t.Error("SharpeRatio must never be NaN or Inf")
	}
}

func TestAnalyze_SharpeZeroForIdenticalReturns(t *testing.T) {
	// Doubling every day: daily returns identical, stdev exactly 0.
	report, err := Analyze(snaps(t, "2023-01-02", 100, 200, 400, 800), nil, 100, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.SharpeRatio != 0 {
		t.Errorf("SharpeRatio = %v, want 0 for identical daily returns", report.SharpeRatio)
	}
}

func TestAnalyze_SharpeKnownValue(t *testing.T) {
	// Returns: +10%, -5%. Mean 0.025, sample stdev of {0.10, -0.05}.
	report, err := Analyze(snaps(t, "2023-01-02", 100, 110, 104.5), nil, 100, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mean := 0.025
	variance := (math.Pow(0.10-mean, 2) + math.Pow(-0.05-mean, 2)) / 1
	want := mean / math.Sqrt(variance) * math.Sqrt(252)
	if math.Abs(report.SharpeRatio-want) > 1e-9 {
		t.Errorf("SharpeRatio = %v, want %v", report.SharpeRatio, want)
	}
}

func TestAnalyze_ReportCarriesRunMetadata(t *testing.T) {
	start := day(t, "2023-01-02")
	end := day(t, "2023-02-28")
	trades := []Trade{
		{Date: start, Ticker: "GME", Side: SideBuy, Shares: 10, Price: 25.30},
		{Date: end, Ticker: "GME", Side: SideSell, Shares: 10, Price: 30},
	}

	report, err := Analyze(snaps(t, "2023-01-02", 100000, 101000), trades, 100000, start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !report.StartDate.Equal(start) || !report.EndDate.Equal(end) {
		t.Error("report should carry start and end dates")
	}
	if report.InitialCapital != 100000 {
		t.Errorf("InitialCapital = %v, want 100000", report.InitialCapital)
	}
	if report.TotalTrades != 2 {
		t.Errorf("TotalTrades = %v, want 2", report.TotalTrades)
	}

	log := report.TradeLog()
	if log[0] != "2023-01-02: BOUGHT 10 GME @ 25.30" {
		t.Errorf("trade log[0] = %q", log[0])
	}
	if log[1] != "2023-02-28: SOLD 10 GME @ 30.00" {
		t.Errorf("trade log[1] = %q", log[1])
	}
}

func TestAnalyze_IsPure(t *testing.T) {
	snapshots := snaps(t, "2023-01-02", 100000, 103000, 99000, 104000)
	trades := []Trade{{Date: day(t, "2023-01-02"), Ticker: "GME", Side: SideBuy, Shares: 5, Price: 20}}

	first, err := Analyze(snapshots, trades, 100000, day(t, "2023-01-02"), day(t, "2023-01-05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Analyze(snapshots, trades, 100000, day(t, "2023-01-02"), day(t, "2023-01-05"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("Analyze must yield identical reports for identical inputs")
	}
}
