package marketdata

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tradingcase/internal/domain"
	"tradingcase/internal/store"
)

// barCache is what CachedSource needs from a store.
type barCache interface {
	store.BarStore
	store.CoverageStore
}

var _ barCache = (*store.ParquetStore)(nil)
var _ Source = (*CachedSource)(nil)

// CachedSource serves ranges already fetched from its store and fetches the
// rest from the wrapped source. Cache failures are logged and never fail a
// request.
type CachedSource struct {
	inner  Source
	cache  barCache
	logger *zap.Logger
	now    func() time.Time
}

// NewCachedSource wraps inner with a bar cache.
func NewCachedSource(inner Source, cache barCache, logger *zap.Logger) *CachedSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedSource{inner: inner, cache: cache, logger: logger, now: time.Now}
}

// Name returns the wrapped source's name with a "cached-" prefix.
func (c *CachedSource) Name() string { return "cached-" + c.inner.Name() }

// Bars implements Source.
func (c *CachedSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	covered, err := c.cache.Covered(ctx, sym, start, end)
	if err != nil {
		c.logger.Warn("bar cache coverage lookup failed", zap.String("symbol", sym), zap.Error(err))
	}
	if covered {
		bars, err := c.cache.ReadBars(ctx, sym, start, end)
		if err == nil {
			c.logger.Debug("bar cache hit", zap.String("symbol", sym), zap.Int("bars", len(bars)))
			return bars, nil
		}
		c.logger.Warn("bar cache read failed", zap.String("symbol", sym), zap.Error(err))
	}

	bars, err := c.inner.Bars(ctx, sym, start, end)
	if err != nil || len(bars) == 0 {
		return bars, err
	}

	if err := c.cache.WriteBars(ctx, bars); err != nil {
		c.logger.Warn("bar cache write failed", zap.String("symbol", sym), zap.Error(err))
		return bars, nil
	}

	// Only completed days count as covered; today's bar may still change.
	y, m, d := c.now().UTC().Date()
	yesterday := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	through := end
	if through.After(yesterday) {
		through = yesterday
	}
	if !through.Before(start) {
		if err := c.cache.MarkCovered(ctx, sym, start, through); err != nil {
			c.logger.Warn("bar cache coverage update failed", zap.String("symbol", sym), zap.Error(err))
		}
	}
	return bars, nil
}
