package backtest

import (
	"math"
	"time"

	"gotothemoon/internal/core"
)

// Trading-day annualization factor for the Sharpe ratio.
const tradingDaysPerYear = 252

// Analyze computes the performance report from a completed equity
// curve and trade log. It is a pure function: identical inputs yield
// identical reports. An empty snapshot sequence is an explicit error,
// not a zero report.
func Analyze(snapshots []Snapshot, trades []Trade, initialCapital float64, start, end time.Time) (*Report, error) {
	if len(snapshots) == 0 {
		return nil, core.ErrEmptyHistory
	}

	finalValue := snapshots[len(snapshots)-1].Value
	totalReturnPct := (finalValue - initialCapital) / initialCapital * 100

	report := &Report{
		StartDate:           start,
		EndDate:             end,
		InitialCapital:      initialCapital,
		FinalValue:          finalValue,
		TotalReturnPct:      totalReturnPct,
		AnnualizedReturnPct: annualizedReturn(totalReturnPct, snapshots),
		MaxDrawdownPct:      maxDrawdown(snapshots) * 100,
		SharpeRatio:         sharpeRatio(dailyReturns(snapshots)),
		TotalTrades:         len(trades),
		Trades:              append([]Trade(nil), trades...),
		Snapshots:           append([]Snapshot(nil), snapshots...),
	}
	return report, nil
}

// annualizedReturn geometrically scales the total return to one year
// using 365.25-day years. Zero or negative elapsed time is defined as
// 0, an explicit guard rather than a division failure.
func annualizedReturn(totalReturnPct float64, snapshots []Snapshot) float64 {
	first := snapshots[0].Date
	last := snapshots[len(snapshots)-1].Date
	numYears := last.Sub(first).Hours() / 24 / 365.25
	if numYears <= 0 {
		return 0
	}
	return (math.Pow(1+totalReturnPct/100, 1/numYears) - 1) * 100
}

// maxDrawdown returns the most negative fractional decline from the
// running peak: always <= 0, and exactly 0 when the curve never dips
// below its peak.
func maxDrawdown(snapshots []Snapshot) float64 {
	peak := snapshots[0].Value
	minDD := 0.0
	for _, snap := range snapshots {
		if snap.Value > peak {
			peak = snap.Value
		}
		if peak == 0 {
			continue
		}
		dd := (snap.Value - peak) / peak
		if dd < minDD {
			minDD = dd
		}
	}
	return minDD
}

// dailyReturns is the percentage change between consecutive snapshot
// values. The first day has no defined return and is excluded.
func dailyReturns(snapshots []Snapshot) []float64 {
	if len(snapshots) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(snapshots)-1)
	for i := 1; i < len(snapshots); i++ {
		prev := snapshots[i-1].Value
		if prev == 0 {
			continue
		}
		returns = append(returns, snapshots[i].Value/prev-1)
	}
	return returns
}

// sharpeRatio annualizes mean over sample standard deviation of daily
// returns, assuming a zero risk-free rate. Zero variance (flat or
// single-point series) is defined as exactly 0.0, never NaN or Inf.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	stdDev := math.Sqrt(variance / float64(len(returns)-1))

	if stdDev == 0 {
		return 0
	}
	return mean / stdDev * math.Sqrt(tradingDaysPerYear)
}
