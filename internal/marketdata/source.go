// Package marketdata loads daily price series for a symbol and date range,
// from Alpaca, from a parquet cache, or from a deterministic generator.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tradingcase/internal/config"
	"tradingcase/internal/domain"
	"tradingcase/internal/store"
)

// Source produces the bars of one symbol within [start, end], both dates
// inclusive, sorted by date.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return "", fmt.Errorf("%w: symbol is required", domain.ErrInvalidConfiguration)
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// FallbackSource
// ---------------------------------------------------------------------------

var _ Source = (*FallbackSource)(nil)

// FallbackSource asks Primary first and Fallback when Primary fails or has no
// bars. Context cancellation is never masked.
type FallbackSource struct {
	Primary  Source
	Fallback Source
	Logger   *zap.Logger
}

// Name returns "primary>fallback".
func (f *FallbackSource) Name() string {
	return f.Primary.Name() + ">" + f.Fallback.Name()
}

// Bars implements Source.
func (f *FallbackSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := f.Primary.Bars(ctx, symbol, start, end)
	if err == nil && len(bars) > 0 {
		return bars, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	logger := f.Logger
	if logger == nil {
		logger = zap.L()
	}
	fields := []zap.Field{
		zap.String("symbol", symbol),
		zap.String("primary", f.Primary.Name()),
		zap.String("fallback", f.Fallback.Name()),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	logger.Warn("could not fetch real data, using fallback source", fields...)

	return f.Fallback.Bars(ctx, symbol, start, end)
}

// ---------------------------------------------------------------------------
// Construction from config
// ---------------------------------------------------------------------------

// NewSource builds the source chain selected by cfg.MarketData.Source. cache
// may be nil, in which case Alpaca responses are not cached.
func NewSource(cfg *config.Config, cache *store.ParquetStore, logger *zap.Logger) (Source, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("marketdata")
	synthetic := NewSyntheticSource()

	alpacaSource := func() Source {
		var src Source = NewAlpacaSource(cfg.Alpaca, cfg.MarketData.RateLimitPerMin, cfg.MarketData.MaxRetries)
		if cfg.MarketData.Cache && cache != nil {
			src = NewCachedSource(src, cache, logger)
		}
		return src
	}

	switch strings.ToLower(cfg.MarketData.Source) {
	case "synthetic":
		return synthetic, nil
	case "alpaca":
		if !cfg.Alpaca.HasCredentials() {
			return nil, fmt.Errorf("%w: alpaca market data needs an api key and secret", domain.ErrInvalidConfiguration)
		}
		return alpacaSource(), nil
	case "auto", "":
		if !cfg.Alpaca.HasCredentials() {
			logger.Info("no alpaca credentials, using synthetic market data")
			return synthetic, nil
		}
		return &FallbackSource{Primary: alpacaSource(), Fallback: synthetic, Logger: logger}, nil
	default:
		return nil, fmt.Errorf("%w: unknown market data source %q", domain.ErrInvalidConfiguration, cfg.MarketData.Source)
	}
}
