// Package csv reads historical prices from a wide CSV file where each
// ticker contributes a column group: Date,GME_Open,GME_High,GME_Low,
// GME_Close,GME_Volume,AMC_Open,... as written by the fetch command.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"gotothemoon/internal/core"
)

type field string

const (
	fieldOpen   field = "Open"
	fieldHigh   field = "High"
	fieldLow    field = "Low"
	fieldClose  field = "Close"
	fieldVolume field = "Volume"
)

// Provider loads the whole file once at construction and serves
// GetData from memory.
type Provider struct {
	path   string
	logger *zap.Logger

	// ticker -> bars in file order
	bars map[string][]core.PriceBar
}

// New creates a CSV provider for the given file. A missing file is not
// an error: it logs a warning and serves empty data, matching how the
// rest of the system treats absent history.
func New(path string, logger *zap.Logger) (*Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{
		path:   path,
		logger: logger,
		bars:   make(map[string][]core.PriceBar),
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		logger.Warn("price data file not found, serving empty data", zap.String("path", path))
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening price data: %w", err)
	}
	defer f.Close()

	if err := p.load(f); err != nil {
		return nil, fmt.Errorf("loading price data from %s: %w", path, err)
	}
	return p, nil
}

func (p *Provider) Name() string {
	return "csv"
}

type column struct {
	ticker string
	field  field
}

func (p *Provider) load(f *os.File) error {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	header := records[0]
	if len(header) == 0 || header[0] != "Date" {
		return fmt.Errorf("first column must be Date, got %q", strings.Join(header, ","))
	}

	columns := make([]column, len(header))
	for i := 1; i < len(header); i++ {
		ticker, fieldName, ok := strings.Cut(header[i], "_")
		if !ok {
			return fmt.Errorf("column %q is not in TICKER_Field form", header[i])
		}
		columns[i] = column{ticker: ticker, field: field(fieldName)}
	}

	for _, record := range records[1:] {
		if len(record) == 0 || record[0] == "" {
			continue
		}
		date, err := core.ParseDate(record[0])
		if err != nil {
			return err
		}

		rowBars := make(map[string]*core.PriceBar)
		for i := 1; i < len(record) && i < len(columns); i++ {
			cell := strings.TrimSpace(record[i])
			if cell == "" {
				continue // ticker not traded that day
			}
			col := columns[i]

			bar, ok := rowBars[col.ticker]
			if !ok {
				bar = &core.PriceBar{Date: date}
				rowBars[col.ticker] = bar
			}

			if col.field == fieldVolume {
				v, err := strconv.ParseInt(cell, 10, 64)
				if err != nil {
					return fmt.Errorf("row %s column %s_%s: %w", record[0], col.ticker, col.field, err)
				}
				bar.Volume = v
				continue
			}

			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return fmt.Errorf("row %s column %s_%s: %w", record[0], col.ticker, col.field, err)
			}
			switch col.field {
			case fieldOpen:
				bar.Open = v
			case fieldHigh:
				bar.High = v
			case fieldLow:
				bar.Low = v
			case fieldClose:
				bar.Close = v
			}
		}

		for ticker, bar := range rowBars {
			p.bars[ticker] = append(p.bars[ticker], *bar)
		}
	}

	return nil
}

// GetData returns the requested tickers' series filtered to the
// inclusive date range. Unknown tickers are absent keys.
func (p *Provider) GetData(ctx context.Context, tickers []string, start, end time.Time) (map[string]*core.PriceSeries, error) {
	data := make(map[string]*core.PriceSeries)
	start = core.Day(start)
	end = core.Day(end)

	for _, ticker := range tickers {
		bars, ok := p.bars[ticker]
		if !ok {
			continue
		}

		var filtered []core.PriceBar
		for _, b := range bars {
			if !start.IsZero() && b.Date.Before(start) {
				continue
			}
			if !end.IsZero() && b.Date.After(end) {
				continue
			}
			filtered = append(filtered, b)
		}

		series, err := core.NewPriceSeries(ticker, filtered)
		if err != nil {
			return nil, core.WrapError(core.ErrProviderFailed, err)
		}
		data[ticker] = series
	}

	return data, nil
}

// Tickers lists every ticker present in the loaded file.
func (p *Provider) Tickers() []string {
	tickers := make([]string, 0, len(p.bars))
	for t := range p.bars {
		tickers = append(tickers, t)
	}
	return tickers
}
