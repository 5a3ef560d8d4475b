package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tradingcase/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// migrations are applied in order; each entry runs once, tracked through
// PRAGMA user_version.
var migrations = []string{
	`CREATE TABLE runs (
		id                   TEXT PRIMARY KEY,
		symbol               TEXT NOT NULL,
		start_date           TEXT NOT NULL,
		end_date             TEXT NOT NULL,
		strategy             TEXT NOT NULL,
		fast_period          INTEGER NOT NULL,
		slow_period          INTEGER NOT NULL,
		commission_rate      REAL NOT NULL,
		report_strategy      TEXT NOT NULL,
		initial_cash         REAL NOT NULL,
		final_cash           REAL NOT NULL,
		profit_loss          REAL NOT NULL,
		profit_loss_percent  REAL NOT NULL,
		total_trades         INTEGER NOT NULL,
		winning_trades       INTEGER NOT NULL,
		losing_trades        INTEGER NOT NULL,
		max_drawdown         REAL NOT NULL,
		max_drawdown_percent REAL NOT NULL,
		bars                 INTEGER NOT NULL,
		open_position        TEXT,
		created_at           INTEGER NOT NULL
	);
	CREATE INDEX runs_created_at ON runs(created_at DESC);
	CREATE TABLE trades (
		run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq              INTEGER NOT NULL,
		opened_at        INTEGER NOT NULL,
		closed_at        INTEGER NOT NULL,
		entry_price      REAL NOT NULL,
		exit_price       REAL NOT NULL,
		size             REAL NOT NULL,
		gross_pnl        REAL NOT NULL,
		net_pnl          REAL NOT NULL,
		entry_commission REAL NOT NULL,
		exit_commission  REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	);`,
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies
// pending migrations and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection keeps pragmas consistent and serialises writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return err
	}
	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return err
	}
	for i := version; i < len(migrations); i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// RunStore implementation
// ---------------------------------------------------------------------------

// SaveRun inserts the run and its trade log in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.Run) error {
	var openPos sql.NullString
	if run.Report.OpenPosition != nil {
		data, err := json.Marshal(run.Report.OpenPosition)
		if err != nil {
			return err
		}
		openPos = sql.NullString{String: string(data), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	r := run.Report
	_, err = tx.ExecContext(ctx, `INSERT INTO runs (
		id, symbol, start_date, end_date, strategy, fast_period, slow_period, commission_rate,
		report_strategy, initial_cash, final_cash, profit_loss, profit_loss_percent,
		total_trades, winning_trades, losing_trades, max_drawdown, max_drawdown_percent,
		bars, open_position, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Symbol, run.StartDate, run.EndDate, run.Strategy, run.FastPeriod, run.SlowPeriod, run.CommissionRate,
		r.Strategy, r.InitialCash, r.FinalCash, r.ProfitLoss, r.ProfitLossPercent,
		r.TotalTrades, r.WinningTrades, r.LosingTrades, r.MaxDrawdown, r.MaxDrawdownPercent,
		r.Bars, openPos, run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trades (
		run_id, seq, opened_at, closed_at, entry_price, exit_price, size,
		gross_pnl, net_pnl, entry_commission, exit_commission
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range r.Trades {
		if _, err := stmt.ExecContext(ctx, run.ID, i, t.OpenedAt.UnixMilli(), t.ClosedAt.UnixMilli(),
			t.EntryPrice, t.ExitPrice, t.Size, t.GrossPnL, t.NetPnL, t.EntryCommission, t.ExitCommission); err != nil {
			return fmt.Errorf("inserting trade %d of run %s: %w", i, run.ID, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, symbol, start_date, end_date, strategy, fast_period, slow_period, commission_rate,
	report_strategy, initial_cash, final_cash, profit_loss, profit_loss_percent,
	total_trades, winning_trades, losing_trades, max_drawdown, max_drawdown_percent,
	bars, open_position, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var (
		run       domain.Run
		openPos   sql.NullString
		createdAt int64
	)
	r := &run.Report
	err := row.Scan(
		&run.ID, &run.Symbol, &run.StartDate, &run.EndDate, &run.Strategy, &run.FastPeriod, &run.SlowPeriod, &run.CommissionRate,
		&r.Strategy, &r.InitialCash, &r.FinalCash, &r.ProfitLoss, &r.ProfitLossPercent,
		&r.TotalTrades, &r.WinningTrades, &r.LosingTrades, &r.MaxDrawdown, &r.MaxDrawdownPercent,
		&r.Bars, &openPos, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	if openPos.Valid {
		var pos domain.Position
		if err := json.Unmarshal([]byte(openPos.String), &pos); err != nil {
			return nil, fmt.Errorf("decoding open position of run %s: %w", run.ID, err)
		}
		r.OpenPosition = &pos
	}
	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &run, nil
}

// GetRun returns a run with its trade log.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT opened_at, closed_at, entry_price, exit_price, size,
		gross_pnl, net_pnl, entry_commission, exit_commission
		FROM trades WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	run.Report.Trades = []domain.ClosedTrade{}
	for rows.Next() {
		var (
			t              domain.ClosedTrade
			opened, closed int64
		)
		if err := rows.Scan(&opened, &closed, &t.EntryPrice, &t.ExitPrice, &t.Size,
			&t.GrossPnL, &t.NetPnL, &t.EntryCommission, &t.ExitCommission); err != nil {
			return nil, err
		}
		t.OpenedAt = time.UnixMilli(opened).UTC()
		t.ClosedAt = time.UnixMilli(closed).UTC()
		run.Report.Trades = append(run.Report.Trades, t)
	}
	return run, rows.Err()
}

// ListRuns returns run summaries, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	var (
		where []string
		args  []any
	)
	if filter.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, strings.ToUpper(filter.Symbol))
	}
	if filter.Strategy != "" {
		where = append(where, "strategy = ?")
		args = append(args, filter.Strategy)
	}

	q := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
