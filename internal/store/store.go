// Package store defines storage interfaces for persisting and retrieving
// daily bars and backtest runs.
package store

import (
	"context"
	"errors"
	"time"

	"tradingcase/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end].
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols with stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// CoverageStore remembers which date ranges have been fully fetched for a
// symbol, so that gaps in stored bars (holidays) are not mistaken for
// missing data.
type CoverageStore interface {
	// MarkCovered records that [start, end] has been fetched for symbol.
	MarkCovered(ctx context.Context, symbol string, start, end time.Time) error

	// Covered reports whether a single recorded range contains [start, end].
	Covered(ctx context.Context, symbol string, start, end time.Time) (bool, error)
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Symbol   string
	Strategy string
	Limit    int
}

// RunStore persists backtest runs and their trade logs.
type RunStore interface {
	// SaveRun inserts a run with its closed trades.
	SaveRun(ctx context.Context, run *domain.Run) error

	// GetRun returns a run with its trade log, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*domain.Run, error)

	// ListRuns returns run summaries, newest first, without trade logs.
	ListRuns(ctx context.Context, filter RunFilter) ([]domain.Run, error)
}
