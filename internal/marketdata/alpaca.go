package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"tradingcase/internal/config"
	"tradingcase/internal/domain"
	"tradingcase/internal/util"
)

var _ Source = (*AlpacaSource)(nil)

// barsClient is the part of the Alpaca market data client AlpacaSource uses.
type barsClient interface {
	GetBars(symbol string, req alpacamd.GetBarsRequest) ([]alpacamd.Bar, error)
}

// AlpacaSource fetches daily bars from the Alpaca market data API. Requests
// are paced by a rate limiter and retried with exponential backoff.
type AlpacaSource struct {
	client     barsClient
	feed       string
	limiter    *util.RateLimiter
	maxRetries int
	retryDelay time.Duration
}

// NewAlpacaSource creates an AlpacaSource for the given credentials.
func NewAlpacaSource(cfg config.Alpaca, rateLimitPerMin, maxRetries int) *AlpacaSource {
	opts := alpacamd.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	return newAlpacaSource(alpacamd.NewClient(opts), cfg.Feed, rateLimitPerMin, maxRetries)
}

func newAlpacaSource(client barsClient, feed string, rateLimitPerMin, maxRetries int) *AlpacaSource {
	if feed == "" {
		feed = "iex"
	}
	return &AlpacaSource{
		client:     client,
		feed:       feed,
		limiter:    util.NewRateLimiter(rateLimitPerMin),
		maxRetries: max(maxRetries, 1),
		retryDelay: 500 * time.Millisecond,
	}
}

// Name returns "alpaca".
func (s *AlpacaSource) Name() string { return "alpaca" }

// Bars fetches daily bars for symbol. Timestamps are normalised to midnight
// UTC of the trading date.
func (s *AlpacaSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}

	req := alpacamd.GetBarsRequest{
		TimeFrame: alpacamd.OneDay,
		Start:     start,
		// End is inclusive of the whole last day.
		End:  end.AddDate(0, 0, 1).Add(-time.Second),
		Feed: alpacamd.Feed(s.feed),
	}

	var raw []alpacamd.Bar
	err = util.Retry(ctx, s.maxRetries, s.retryDelay, func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var ferr error
		raw, ferr = s.client.GetBars(sym, req)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca GetBars %s: %w", sym, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		y, m, d := ab.Timestamp.UTC().Date()
		bars = append(bars, domain.Bar{
			Symbol:    sym,
			Timestamp: time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
			Open:      ab.Open,
			High:      ab.High,
			Low:       ab.Low,
			Close:     ab.Close,
			Volume:    int64(ab.Volume),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}
