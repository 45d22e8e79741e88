package csv

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gotothemoon/internal/core"
)

// WriteFile writes price series to a wide CSV file in the layout this
// package reads back: one Date column followed by a five-column group
// per ticker. Dates are the sorted union across tickers; a ticker with
// no bar on a date gets blank cells.
func WriteFile(path string, tickers []string, data map[string]*core.PriceSeries) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating price data file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{"Date"}
	for _, ticker := range tickers {
		for _, suffix := range []string{"Open", "High", "Low", "Close", "Volume"} {
			header = append(header, ticker+"_"+suffix)
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, date := range unionDates(tickers, data) {
		record := []string{date.Format(core.DateLayout)}
		for _, ticker := range tickers {
			series, ok := data[ticker]
			if !ok {
				record = append(record, "", "", "", "", "")
				continue
			}
			bar, ok := series.Bar(date)
			if !ok {
				record = append(record, "", "", "", "", "")
				continue
			}
			record = append(record,
				formatPrice(bar.Open),
				formatPrice(bar.High),
				formatPrice(bar.Low),
				formatPrice(bar.Close),
				strconv.FormatInt(bar.Volume, 10),
			)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func unionDates(tickers []string, data map[string]*core.PriceSeries) []time.Time {
	seen := make(map[time.Time]struct{})
	var dates []time.Time
	for _, ticker := range tickers {
		series, ok := data[ticker]
		if !ok {
			continue
		}
		for _, d := range series.Dates() {
			if _, dup := seen[d]; dup {
				continue
			}
			seen[d] = struct{}{}
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
