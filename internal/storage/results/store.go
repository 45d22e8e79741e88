// Package results persists completed backtest runs and their trades to
// a SQLite database for later inspection.
package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"gotothemoon/internal/backtest"
	"gotothemoon/internal/core"
)

// Run is one persisted backtest run.
type Run struct {
	ID                  string
	Strategy            string
	Tickers             string
	StartDate           time.Time
	EndDate             time.Time
	InitialCapital      float64
	FinalValue          float64
	TotalReturnPct      float64
	AnnualizedReturnPct float64
	MaxDrawdownPct      float64
	SharpeRatio         float64
	TotalTrades         int
	CreatedAt           time.Time
}

// Store wraps a SQLite connection holding backtest results.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (or creates) the results database at path. An empty path
// opens an in-memory database, which is useful for tests.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("creating results directory: %w", err))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", dsn))
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("opening results database: %w", err))
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("enabling WAL mode: %w", err))
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			strategy TEXT NOT NULL,
			tickers TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			initial_capital REAL NOT NULL,
			final_value REAL NOT NULL,
			total_return_pct REAL NOT NULL,
			annualized_return_pct REAL NOT NULL,
			max_drawdown_pct REAL NOT NULL,
			sharpe_ratio REAL NOT NULL,
			total_trades INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			trade_date TEXT NOT NULL,
			ticker TEXT NOT NULL,
			side TEXT NOT NULL,
			shares INTEGER NOT NULL,
			price REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return core.WrapError(core.ErrStoreFailed, fmt.Errorf("initializing results schema: %w", err))
		}
	}
	return nil
}

// SaveRun persists a run summary and its trade log in one transaction.
func (s *Store) SaveRun(ctx context.Context, runID, strategy, tickers string, report *backtest.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.ErrStoreFailed, fmt.Errorf("beginning transaction: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, strategy, tickers, start_date, end_date, initial_capital,
			final_value, total_return_pct, annualized_return_pct, max_drawdown_pct,
			sharpe_ratio, total_trades, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, strategy, tickers,
		report.StartDate.Format(core.DateLayout), report.EndDate.Format(core.DateLayout),
		report.InitialCapital, report.FinalValue,
		report.TotalReturnPct, report.AnnualizedReturnPct,
		report.MaxDrawdownPct, report.SharpeRatio, report.TotalTrades,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return core.WrapError(core.ErrStoreFailed, fmt.Errorf("inserting run: %w", err))
	}

	for _, t := range report.Trades {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO trades (run_id, trade_date, ticker, side, shares, price)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			runID, t.Date.Format(core.DateLayout), t.Ticker, string(t.Side), t.Shares, t.Price,
		); err != nil {
			return core.WrapError(core.ErrStoreFailed, fmt.Errorf("inserting trade: %w", err))
		}
	}

	if err = tx.Commit(); err != nil {
		return core.WrapError(core.ErrStoreFailed, fmt.Errorf("committing run: %w", err))
	}

	s.logger.Info("saved backtest run",
		zap.String("run_id", runID),
		zap.String("strategy", strategy),
		zap.Int("trades", report.TotalTrades))
	return nil
}

// GetRun returns one run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, strategy, tickers, start_date, end_date, initial_capital,
			final_value, total_return_pct, annualized_return_pct, max_drawdown_pct,
			sharpe_ratio, total_trades, created_at
		 FROM runs WHERE id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("run %s not found: %w", runID, err))
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("querying run: %w", err))
	}
	return run, nil
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, strategy, tickers, start_date, end_date, initial_capital,
			final_value, total_return_pct, annualized_return_pct, max_drawdown_pct,
			sharpe_ratio, total_trades, created_at
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("querying runs: %w", err))
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("scanning run: %w", err))
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("iterating runs: %w", err))
	}
	return runs, nil
}

// GetTrades returns the trade log of one run in execution order.
func (s *Store) GetTrades(ctx context.Context, runID string) ([]backtest.Trade, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT trade_date, ticker, side, shares, price
		 FROM trades WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("querying trades: %w", err))
	}
	defer rows.Close()

	var trades []backtest.Trade
	for rows.Next() {
		var (
			dateStr string
			side    string
			t       backtest.Trade
		)
		if err := rows.Scan(&dateStr, &t.Ticker, &side, &t.Shares, &t.Price); err != nil {
			return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("scanning trade: %w", err))
		}
		date, err := core.ParseDate(dateStr)
		if err != nil {
			return nil, err
		}
		t.Date = date
		t.Side = backtest.Side(side)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("iterating trades: %w", err))
	}
	return trades, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run       Run
		startStr  string
		endStr    string
		createdAt string
	)
	if err := row.Scan(&run.ID, &run.Strategy, &run.Tickers, &startStr, &endStr,
		&run.InitialCapital, &run.FinalValue, &run.TotalReturnPct,
		&run.AnnualizedReturnPct, &run.MaxDrawdownPct, &run.SharpeRatio,
		&run.TotalTrades, &createdAt); err != nil {
		return nil, err
	}

	start, err := core.ParseDate(startStr)
	if err != nil {
		return nil, err
	}
	end, err := core.ParseDate(endStr)
	if err != nil {
		return nil, err
	}
	created, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, err
	}

	run.StartDate = start
	run.EndDate = end
	run.CreatedAt = created
	return &run, nil
}
