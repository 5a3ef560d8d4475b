package stats

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradingcase/internal/domain"
)

var t0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func sample(c *Collector, values ...float64) {
	for i, v := range values {
		c.SampleEquity(t0.AddDate(0, 0, i), v)
	}
}

func TestDrawdownTracksPeakToTrough(t *testing.T) {
	c := NewCollector()
	sample(c, 100, 120, 90, 110, 130, 117)

	s := c.Finalize()
	assert.InDelta(t, 30, s.MaxDrawdown, 1e-9)
	assert.InDelta(t, 25, s.MaxDrawdownPercent, 1e-9)
	assert.InDelta(t, 130, s.PeakEquity, 1e-9)
	assert.Len(t, c.EquityCurve(), 6)
}

func TestDrawdownMaximaAreIndependent(t *testing.T) {
	// 10 -> 5 is a 50% drawdown worth 5; 100 -> 80 is a 20% drawdown worth 20.
	c := NewCollector()
	sample(c, 10, 5, 100, 80)

	s := c.Finalize()
	assert.InDelta(t, 20, s.MaxDrawdown, 1e-9)
	assert.InDelta(t, 50, s.MaxDrawdownPercent, 1e-9)
}

func TestDrawdownFirstSampleSeedsPeak(t *testing.T) {
	c := NewCollector()
	sample(c, 100, 100, 100)
	s := c.Finalize()
	assert.Zero(t, s.MaxDrawdown)
	assert.Zero(t, s.MaxDrawdownPercent)

	empty := NewCollector().Finalize()
	assert.Zero(t, empty.MaxDrawdown)
	assert.Zero(t, empty.TotalTrades)
}

func TestDrawdownBoundsOnRandomCurves(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for run := 0; run < 200; run++ {
		c := NewCollector()
		v := 1000.0
		for i := 0; i < 250; i++ {
			v *= 1 + rng.NormFloat64()*0.05
			if rng.IntN(50) == 0 {
				v = 0
			}
			c.SampleEquity(t0.AddDate(0, 0, i), v)
		}
		s := c.Finalize()
		require.GreaterOrEqual(t, s.MaxDrawdown, 0.0)
		require.GreaterOrEqual(t, s.MaxDrawdownPercent, 0.0)
		require.LessOrEqual(t, s.MaxDrawdownPercent, 100.0)
	}
}

func TestTradeCounts(t *testing.T) {
	c := NewCollector()
	c.RecordTrade(domain.ClosedTrade{NetPnL: 12.5, EntryCommission: 0.1, ExitCommission: 0.1})
	c.RecordTrade(domain.ClosedTrade{NetPnL: -3})
	c.RecordTrade(domain.ClosedTrade{NetPnL: 0})
	c.RecordTrade(domain.ClosedTrade{NetPnL: 0.5})

	s := c.Finalize()
	assert.Equal(t, 4, s.TotalTrades)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 1, s.LosingTrades)
	assert.InDelta(t, 10, s.NetProfit, 1e-9)
	assert.InDelta(t, 13, s.GrossProfit, 1e-9)
	assert.InDelta(t, 3, s.GrossLoss, 1e-9)
	assert.InDelta(t, 0.2, s.Commission, 1e-9)
	assert.InDelta(t, 50, s.WinRate(), 1e-9)
}

func TestFromTradesRoundTrip(t *testing.T) {
	c := NewCollector()
	for _, pnl := range []float64{5, -2, 7, -1, 0, 3} {
		c.RecordTrade(domain.ClosedTrade{NetPnL: pnl})
	}
	first := c.Finalize()
	again := FromTrades(c.Trades())

	assert.Equal(t, first.TotalTrades, again.TotalTrades)
	assert.Equal(t, first.WinningTrades, again.WinningTrades)
	assert.Equal(t, first.LosingTrades, again.LosingTrades)
	assert.Equal(t, again, FromTrades(c.Trades()), "aggregation must be idempotent")
	assert.Zero(t, Stats{}.WinRate())
}
