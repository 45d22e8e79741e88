package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gotothemoon/internal/config"
	"gotothemoon/internal/core"
	"gotothemoon/internal/logger"
	csvprovider "gotothemoon/internal/provider/csv"
	"gotothemoon/internal/provider/yahoo"
)

var (
	fetchTickers []string
	fetchFrom    string
	fetchTo      string
	fetchOut     string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download historical prices to a CSV file",
	Long:  "Download daily bars from Yahoo Finance and write them to the CSV file the backtest command reads",
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchTickers, "tickers", nil, "Tickers to fetch (required)")
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "Start date YYYY-MM-DD (required)")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "End date YYYY-MM-DD (required)")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "Output path (defaults to configured csv_path)")

	fetchCmd.MarkFlagRequired("tickers")
	fetchCmd.MarkFlagRequired("from")
	fetchCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	from, err := core.ParseDate(fetchFrom)
	if err != nil {
		return fmt.Errorf("invalid from date (expected YYYY-MM-DD): %w", err)
	}
	to, err := core.ParseDate(fetchTo)
	if err != nil {
		return fmt.Errorf("invalid to date (expected YYYY-MM-DD): %w", err)
	}
	if to.Before(from) {
		return fmt.Errorf("end date must be after start date")
	}

	out := fetchOut
	if out == "" {
		cfg, err := loadConfig(log)
		if err != nil {
			return err
		}
		out = cfg.Data.CSVPath
		if out == "" {
			out = config.Defaults().Data.CSVPath
		}
	}

	p := yahoo.New(log)
	data, err := p.GetData(cmd.Context(), fetchTickers, from, to)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("no data returned for %v", fetchTickers)
	}

	if err := csvprovider.WriteFile(out, fetchTickers, data); err != nil {
		return err
	}

	bars := 0
	for _, series := range data {
		bars += series.Len()
	}
	log.Info("price data written",
		zap.String("path", out),
		zap.Int("tickers", len(data)),
		zap.Int("bars", bars))

	fmt.Printf("Wrote %d bars for %d tickers to %s\n", bars, len(data), out)
	return nil
}
