// Package app wires configuration, data providers, strategies, the
// simulator and storage into a single backtest run.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gotothemoon/internal/backtest"
	"gotothemoon/internal/config"
	"gotothemoon/internal/core"
	"gotothemoon/internal/metrics"
	"gotothemoon/internal/provider"
	csvprovider "gotothemoon/internal/provider/csv"
	"gotothemoon/internal/provider/yahoo"
	"gotothemoon/internal/storage/archive"
	"gotothemoon/internal/storage/results"
	"gotothemoon/internal/strategy"
	"gotothemoon/internal/strategy/ema_crossover"
	"gotothemoon/internal/strategy/ma_crossover"
)

// Result is the outcome of one completed backtest run.
type Result struct {
	RunID  string
	Report *backtest.Report
}

// App is the application orchestrator for backtest runs.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	engine   *strategy.Engine
	provider provider.Provider
	store    *results.Store
	archive  archive.Storage
	metrics  *metrics.Registry
}

// New builds an App from configuration: it selects the data provider,
// registers the built-in strategies and opens the configured stores.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		engine:  strategy.NewEngine(logger),
		metrics: metrics.NewRegistry(),
	}

	if err := a.registerStrategies(); err != nil {
		return nil, err
	}

	switch cfg.Data.Provider {
	case "csv":
		p, err := csvprovider.New(cfg.Data.CSVPath, logger)
		if err != nil {
			return nil, err
		}
		a.provider = p
	case "yahoo":
		a.provider = yahoo.New(logger)
	}

	if cfg.Storage.Results.Enabled {
		store, err := results.Open(cfg.Storage.Results.Path, logger)
		if err != nil {
			return nil, err
		}
		a.store = store
	}

	if cfg.Storage.Archive.Enabled {
		backend, err := newArchive(cfg.Storage.Archive)
		if err != nil {
			return nil, err
		}
		a.archive = backend
	}

	return a, nil
}

func (a *App) registerStrategies() error {
	ma, err := ma_crossover.New(a.cfg.Backtest.ShortWindow, a.cfg.Backtest.LongWindow)
	if err != nil {
		return err
	}
	ema, err := ema_crossover.New(a.cfg.Backtest.ShortWindow, a.cfg.Backtest.LongWindow)
	if err != nil {
		return err
	}
	a.engine.Register(ma)
	a.engine.Register(ema)
	return nil
}

func newArchive(cfg config.ArchiveConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	case "localfs":
		return archive.NewLocalFS(cfg.Path)
	default:
		return nil, core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown archive type %q", cfg.Type))
	}
}

// Metrics returns the application's metrics registry.
func (a *App) Metrics() *metrics.Registry {
	return a.metrics
}

// Engine returns the strategy engine.
func (a *App) Engine() *strategy.Engine {
	return a.engine
}

// Close releases held resources.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// Run executes one full backtest: fetch data, generate signals,
// simulate the portfolio, analyze performance and persist the report.
func (a *App) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	result, err := a.run(ctx)
	if err != nil {
		a.metrics.RecordBacktest("failure", time.Since(started).Seconds())
		return nil, err
	}

	a.metrics.RecordBacktest("success", time.Since(started).Seconds())
	a.metrics.SetFinalValue(result.Report.FinalValue)
	return result, nil
}

func (a *App) run(ctx context.Context) (*Result, error) {
	bt := a.cfg.Backtest

	strat, ok := a.engine.Get(bt.Strategy)
	if !ok {
		return nil, core.WrapError(core.ErrStrategyNotFound,
			fmt.Errorf("strategy %q", bt.Strategy))
	}

	start, end, err := dateRange(bt)
	if err != nil {
		return nil, err
	}

	data, err := a.provider.GetData(ctx, bt.Tickers, start, end)
	if err != nil {
		return nil, err
	}

	signals, err := a.engine.Precompute(ctx, strat, data)
	if err != nil {
		return nil, err
	}
	a.recordSignals(strat.Name(), signals)

	sim := backtest.NewSimulator(backtest.Config{
		Tickers:        bt.Tickers,
		InitialCapital: bt.InitialCapital,
		StartDate:      start,
		EndDate:        end,
	}, a.logger)

	report, err := sim.Run(ctx, data, signals)
	if err != nil {
		return nil, err
	}
	for _, t := range report.Trades {
		a.metrics.RecordTrade(string(t.Side))
	}

	runID := uuid.NewString()
	a.logger.Info("backtest complete",
		zap.String("run_id", runID),
		zap.String("strategy", strat.Name()),
		zap.Float64("final_value", report.FinalValue),
		zap.Int("trades", report.TotalTrades))

	if err := a.persist(ctx, runID, strat.Name(), report); err != nil {
		return nil, err
	}

	return &Result{RunID: runID, Report: report}, nil
}

func (a *App) recordSignals(strategyName string, signals map[string]core.SignalSeries) {
	for _, series := range signals {
		for _, sig := range series {
			a.metrics.RecordSignal(strategyName, string(sig))
		}
	}
}

func (a *App) persist(ctx context.Context, runID, strategyName string, report *backtest.Report) error {
	if a.store != nil {
		tickers := strings.Join(a.cfg.Backtest.Tickers, ",")
		if err := a.store.SaveRun(ctx, runID, strategyName, tickers, report); err != nil {
			return err
		}
	}
	if a.archive != nil {
		if err := archive.SaveReport(ctx, a.archive, runID, report); err != nil {
			return err
		}
	}
	return nil
}

func dateRange(bt config.BacktestConfig) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if bt.StartDate != "" {
		start, err = core.ParseDate(bt.StartDate)
		if err != nil {
			return start, end, core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	if bt.EndDate != "" {
		end, err = core.ParseDate(bt.EndDate)
		if err != nil {
			return start, end, core.WrapError(core.ErrConfigInvalid, err)
		}
	}
	return start, end, nil
}
