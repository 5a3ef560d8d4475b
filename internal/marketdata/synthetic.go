package marketdata

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"tradingcase/internal/domain"
	"tradingcase/internal/util"
)

var _ Source = (*SyntheticSource)(nil)

// Synthetic generation parameters.
const (
	syntheticSeed       = 42
	syntheticMeanReturn = 0.001
	syntheticVolatility = 0.02
	syntheticIntraday   = 0.015
	syntheticFloor      = 1.0
	syntheticTrendFrom  = -0.1
	syntheticTrendTo    = 0.15
	syntheticMinVolume  = 1_000_000
	syntheticMaxVolume  = 10_000_000
	defaultBasePrice    = 100.0
)

var basePrices = map[string]float64{
	"AAPL":  150,
	"MSFT":  300,
	"GOOGL": 2500,
	"TSLA":  800,
	"AMZN":  3000,
	"NVDA":  400,
}

// SyntheticSource generates a random-walk series with a mild upward trend,
// one bar per weekday. The generator is reseeded on every call, so the same
// request always yields the same bars.
type SyntheticSource struct {
	calendar *util.TradingCalendar
	seed     uint64
}

// NewSyntheticSource returns a SyntheticSource over a weekday calendar.
func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{calendar: util.NewTradingCalendar(), seed: syntheticSeed}
}

// Name returns "synthetic".
func (s *SyntheticSource) Name() string { return "synthetic" }

// BasePrice returns the first close generated for symbol.
func BasePrice(symbol string) float64 {
	if p, ok := basePrices[symbol]; ok {
		return p
	}
	return defaultBasePrice
}

// Bars implements Source.
func (s *SyntheticSource) Bars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	sym, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	days := s.calendar.TradingDays(start.UTC(), end.UTC())
	n := len(days)
	if n == 0 {
		return nil, fmt.Errorf("%w: no business days in the specified date range", domain.ErrInsufficientData)
	}

	rng := rand.New(rand.NewPCG(s.seed, 0))

	returns := make([]float64, n)
	for i := range returns {
		returns[i] = syntheticMeanReturn + syntheticVolatility*rng.NormFloat64() + trend(i, n)/float64(n)
	}

	closes := make([]float64, n)
	closes[0] = BasePrice(sym)
	for i := 1; i < n; i++ {
		closes[i] = math.Max(closes[i-1]*(1+returns[i]), syntheticFloor)
	}

	bars := make([]domain.Bar, n)
	for i, c := range closes {
		high := c * (1 + uniform(rng, 0, syntheticIntraday))
		low := c * (1 - uniform(rng, 0, syntheticIntraday))
		open := c * (1 + uniform(rng, -syntheticIntraday/2, syntheticIntraday/2))

		bars[i] = domain.Bar{
			Symbol:    sym,
			Timestamp: days[i],
			Open:      round2(open),
			High:      round2(max(high, c, open)),
			Low:       round2(min(low, c, open)),
			Close:     round2(c),
			Volume:    int64(uniform(rng, syntheticMinVolume, syntheticMaxVolume)),
		}
	}
	return bars, nil
}

// trend is point i of n evenly spaced values from syntheticTrendFrom to
// syntheticTrendTo.
func trend(i, n int) float64 {
	if n == 1 {
		return syntheticTrendFrom
	}
	step := (syntheticTrendTo - syntheticTrendFrom) / float64(n-1)
	return syntheticTrendFrom + float64(i)*step
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
