package indicator

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thrasher-corp/gct-ta/indicators"

	"tradingcase/internal/domain"
)

func barsFromCloses(closes ...float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Timestamp: start.AddDate(0, 0, i), Close: c}
	}
	return bars
}

func feed(t *testing.T, c *Crossover, closes ...float64) []Signal {
	t.Helper()
	var out []Signal
	for _, b := range barsFromCloses(closes...) {
		out = append(out, c.Update(b))
	}
	return out
}

func TestNewCrossoverRejectsNonPositivePeriods(t *testing.T) {
	for _, p := range [][2]int{{0, 5}, {5, 0}, {-1, 3}} {
		_, err := NewCrossover(p[0], p[1])
		if !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Errorf("NewCrossover(%d, %d) error = %v, want ErrInvalidConfiguration", p[0], p[1], err)
		}
	}
}

func TestCrossoverSilentUntilReady(t *testing.T) {
	c, err := NewCrossover(2, 5)
	require.NoError(t, err)

	got := feed(t, c, 1, 2, 3, 4)
	for i, s := range got {
		assert.Equalf(t, SignalNone, s, "bar %d", i)
	}
	assert.False(t, c.Ready())
	_, ok := c.Slow()
	assert.False(t, ok, "slow average should be undefined before 5 bars")
	fast, ok := c.Fast()
	assert.True(t, ok)
	assert.Equal(t, 3.5, fast)
}

func TestCrossoverConstantSeriesNeverFires(t *testing.T) {
	c, err := NewCrossover(3, 7)
	require.NoError(t, err)

	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100.1
	}
	for i, s := range feed(t, c, closes...) {
		assert.Equalf(t, SignalNone, s, "bar %d", i)
	}
}

func TestCrossoverMonotonicSeries(t *testing.T) {
	up, err := NewCrossover(2, 4)
	require.NoError(t, err)
	got := feed(t, up, 1, 2, 3, 4, 5, 6, 7, 8)
	assert.Equal(t, []Signal{0, 0, 0, SignalUp, 0, 0, 0, 0}, got)

	down, err := NewCrossover(2, 4)
	require.NoError(t, err)
	got = feed(t, down, 8, 7, 6, 5, 4, 3, 2, 1)
	assert.Equal(t, []Signal{0, 0, 0, SignalDown, 0, 0, 0, 0}, got)
}

func TestCrossoverVShape(t *testing.T) {
	c, err := NewCrossover(2, 3)
	require.NoError(t, err)

	got := feed(t, c, 10, 9, 8, 7, 8, 9, 10)
	assert.Equal(t, []Signal{0, 0, SignalDown, 0, 0, SignalUp, 0}, got)
}

func TestCrossoverInvertedPeriodsStillComputed(t *testing.T) {
	// fast >= slow is nonsensical for trading but must not be a silent no-op.
	c, err := NewCrossover(4, 2)
	require.NoError(t, err)

	got := feed(t, c, 1, 2, 3, 4, 5)
	assert.Equal(t, SignalDown, got[3], "longer 'fast' window lags a rising series")
}

func TestCrossoverMatchesReferenceSMA(t *testing.T) {
	closes := []float64{
		101.2, 99.8, 100.4, 102.9, 103.1, 101.7, 100.2, 98.4, 97.9, 99.3,
		101.5, 104.2, 105.8, 104.9, 103.3, 102.1, 100.6, 101.9, 103.4, 106.1,
	}
	const fast, slow = 3, 8

	c, err := NewCrossover(fast, slow)
	require.NoError(t, err)

	for i, b := range barsFromCloses(closes...) {
		c.Update(b)
		if i+1 < slow {
			continue
		}
		wantFast := indicators.SMA(closes[:i+1], fast)
		wantSlow := indicators.SMA(closes[:i+1], slow)

		gotFast, ok := c.Fast()
		require.True(t, ok)
		gotSlow, ok := c.Slow()
		require.True(t, ok)

		assert.InDeltaf(t, wantFast[len(wantFast)-1], gotFast, 1e-9, "fast SMA at bar %d", i)
		assert.InDeltaf(t, wantSlow[len(wantSlow)-1], gotSlow, 1e-9, "slow SMA at bar %d", i)
	}
}

func TestSignalString(t *testing.T) {
	assert.Equal(t, "up", SignalUp.String())
	assert.Equal(t, "down", SignalDown.String())
	assert.Equal(t, "none", SignalNone.String())
}
