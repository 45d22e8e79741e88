package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gotothemoon/internal/app"
	"gotothemoon/internal/config"
	"gotothemoon/internal/core"
	"gotothemoon/internal/logger"
)

var (
	backtestStrategy string
	backtestTickers  []string
	backtestFrom     string
	backtestTo       string
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a strategy against historical data",
	Long:  "Run a strategy against historical data and show performance statistics",
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestStrategy, "strategy", "", "Strategy name (overrides config)")
	backtestCmd.Flags().StringSliceVar(&backtestTickers, "tickers", nil, "Tickers to backtest (overrides config)")
	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "Start date YYYY-MM-DD")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "End date YYYY-MM-DD")

	rootCmd.AddCommand(backtestCmd)
}

func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	log.Warn("no config file specified, using defaults")
	return config.Defaults(), nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	if backtestStrategy != "" {
		cfg.Backtest.Strategy = backtestStrategy
	}
	if len(backtestTickers) > 0 {
		cfg.Backtest.Tickers = backtestTickers
	}
	if backtestFrom != "" {
		cfg.Backtest.StartDate = backtestFrom
	}
	if backtestTo != "" {
		cfg.Backtest.EndDate = backtestTo
	}

	if cfg.Backtest.StartDate != "" && cfg.Backtest.EndDate != "" {
		from, err := core.ParseDate(cfg.Backtest.StartDate)
		if err != nil {
			return fmt.Errorf("invalid from date (expected YYYY-MM-DD): %w", err)
		}
		to, err := core.ParseDate(cfg.Backtest.EndDate)
		if err != nil {
			return fmt.Errorf("invalid to date (expected YYYY-MM-DD): %w", err)
		}
		if to.Before(from) {
			return fmt.Errorf("end date must be after start date")
		}
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Stop the run on Ctrl-C
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	if cfg.Metrics.Enabled {
		go serveMetrics(a, cfg, log)
	}

	result, err := a.Run(ctx)
	if err != nil {
		return err
	}

	printReport(cfg, result)
	return nil
}

func serveMetrics(a *app.App, cfg *config.Config, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, a.Metrics().Handler())
	log.Info("serving metrics", zap.String("listen", cfg.Metrics.Listen))
	if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
		log.Error("metrics server error", zap.Error(err))
	}
}

func printReport(cfg *config.Config, result *app.Result) {
	r := result.Report

	fmt.Println("=== Backtest Results ===")
	fmt.Printf("Run ID:    %s\n", result.RunID)
	fmt.Printf("Strategy:  %s\n", cfg.Backtest.Strategy)
	fmt.Printf("Tickers:   %s\n", strings.Join(cfg.Backtest.Tickers, ", "))
	fmt.Printf("Period:    %s to %s\n",
		r.StartDate.Format(core.DateLayout), r.EndDate.Format(core.DateLayout))
	fmt.Println()
	fmt.Printf("Initial capital:   %.2f\n", r.InitialCapital)
	fmt.Printf("Final value:       %.2f\n", r.FinalValue)
	fmt.Printf("Total return:      %.2f%%\n", r.TotalReturnPct)
	fmt.Printf("Annualized return: %.2f%%\n", r.AnnualizedReturnPct)
	fmt.Printf("Max drawdown:      %.2f%%\n", r.MaxDrawdownPct)
	fmt.Printf("Sharpe ratio:      %.2f\n", r.SharpeRatio)
	fmt.Printf("Total trades:      %d\n", r.TotalTrades)

	if len(r.Trades) > 0 {
		fmt.Println()
		fmt.Println("Trade log:")
		for _, line := range r.TradeLog() {
			fmt.Printf("  %s\n", line)
		}
	}
}
