// Package indicator computes the moving-average crossover signal that drives
// the built-in strategies.
package indicator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradingcase/internal/domain"
)

// Signal is the sign of a fast/slow moving-average transition.
type Signal int

const (
	SignalDown Signal = -1
	SignalNone Signal = 0
	SignalUp   Signal = 1
)

// String returns "up", "down" or "none".
func (s Signal) String() string {
	switch s {
	case SignalUp:
		return "up"
	case SignalDown:
		return "down"
	default:
		return "none"
	}
}

// Crossover maintains fast and slow simple moving averages over a trailing
// window of closes and reports when the fast average crosses the slow one.
//
// Sums are kept in decimal so that a constant series produces exactly equal
// averages and never a spurious cross. Before both averages are defined the
// previous difference counts as zero, so a series whose fast average starts
// above the slow one fires an upward cross on the first defined bar.
type Crossover struct {
	fast, slow int

	window  []decimal.Decimal // ring buffer of the last max(fast, slow) closes
	count   int
	fastSum decimal.Decimal
	slowSum decimal.Decimal

	prevDiff decimal.Decimal
}

// NewCrossover returns a Crossover for the given periods. Periods must be
// positive; fast >= slow is accepted and computed faithfully.
func NewCrossover(fast, slow int) (*Crossover, error) {
	if fast <= 0 || slow <= 0 {
		return nil, fmt.Errorf("%w: moving average periods must be positive (fast=%d, slow=%d)",
			domain.ErrInvalidConfiguration, fast, slow)
	}
	return &Crossover{
		fast:   fast,
		slow:   slow,
		window: make([]decimal.Decimal, max(fast, slow)),
	}, nil
}

// Update feeds the bar's close into the window and returns the crossover
// signal for this bar.
func (c *Crossover) Update(bar domain.Bar) Signal {
	x := decimal.NewFromFloat(bar.Close)
	n := len(c.window)

	// Drop the values leaving each window before the slot is overwritten.
	if c.count >= c.fast {
		c.fastSum = c.fastSum.Sub(c.window[(c.count-c.fast)%n])
	}
	if c.count >= c.slow {
		c.slowSum = c.slowSum.Sub(c.window[(c.count-c.slow)%n])
	}
	c.window[c.count%n] = x
	c.fastSum = c.fastSum.Add(x)
	c.slowSum = c.slowSum.Add(x)
	c.count++

	if !c.Ready() {
		return SignalNone
	}

	diff := c.fastMA().Sub(c.slowMA())
	prev := c.prevDiff
	c.prevDiff = diff

	switch {
	case prev.Sign() <= 0 && diff.Sign() > 0:
		return SignalUp
	case prev.Sign() >= 0 && diff.Sign() < 0:
		return SignalDown
	default:
		return SignalNone
	}
}

// Ready reports whether both averages have a full period of observations.
func (c *Crossover) Ready() bool {
	return c.count >= c.fast && c.count >= c.slow
}

// Fast returns the current fast average and whether it is defined.
func (c *Crossover) Fast() (float64, bool) {
	if c.count < c.fast {
		return 0, false
	}
	return c.fastMA().InexactFloat64(), true
}

// Slow returns the current slow average and whether it is defined.
func (c *Crossover) Slow() (float64, bool) {
	if c.count < c.slow {
		return 0, false
	}
	return c.slowMA().InexactFloat64(), true
}

// Periods returns the configured fast and slow periods.
func (c *Crossover) Periods() (fast, slow int) {
	return c.fast, c.slow
}

func (c *Crossover) fastMA() decimal.Decimal {
	return c.fastSum.Div(decimal.NewFromInt(int64(c.fast)))
}

func (c *Crossover) slowMA() decimal.Decimal {
	return c.slowSum.Div(decimal.NewFromInt(int64(c.slow)))
}
