// Package stats aggregates closed trades and the equity curve of a run into
// the summary figures of a report.
package stats

import (
	"time"

	"tradingcase/internal/domain"
)

// Stats is the aggregate of one run.
type Stats struct {
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
	NetProfit     float64
	GrossProfit   float64
	GrossLoss     float64
	Commission    float64

	MaxDrawdown        float64
	MaxDrawdownPercent float64
	PeakEquity         float64
}

// WinRate returns winning trades over total trades in percent, or 0 without
// trades.
func (s Stats) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TotalTrades) * 100
}

// Collector accumulates trades and equity samples in a single forward pass.
// The money and percent drawdown maxima are tracked independently, so they
// may come from different troughs.
type Collector struct {
	trades []domain.ClosedTrade
	curve  []domain.EquityPoint

	seeded   bool
	peak     float64
	maxDD    float64
	maxDDPct float64
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordTrade appends a closed trade to the log.
func (c *Collector) RecordTrade(t domain.ClosedTrade) {
	c.trades = append(c.trades, t)
}

// SampleEquity records the account value at ts and updates the drawdown
// maxima. The first sample seeds the running peak.
func (c *Collector) SampleEquity(ts time.Time, value float64) {
	c.curve = append(c.curve, domain.EquityPoint{Timestamp: ts, Equity: value})

	if !c.seeded || value > c.peak {
		c.peak = value
		c.seeded = true
	}
	dd := c.peak - value
	if dd > c.maxDD {
		c.maxDD = dd
	}
	if c.peak > 0 {
		pct := min(dd/c.peak*100, 100)
		if pct > c.maxDDPct {
			c.maxDDPct = pct
		}
	}
}

// Trades returns a copy of the recorded trade log.
func (c *Collector) Trades() []domain.ClosedTrade {
	out := make([]domain.ClosedTrade, len(c.trades))
	copy(out, c.trades)
	return out
}

// EquityCurve returns a copy of the sampled equity curve.
func (c *Collector) EquityCurve() []domain.EquityPoint {
	out := make([]domain.EquityPoint, len(c.curve))
	copy(out, c.curve)
	return out
}

// Finalize returns the aggregate over everything recorded so far. It does not
// reset the collector and may be called repeatedly.
func (c *Collector) Finalize() Stats {
	s := FromTrades(c.trades)
	s.MaxDrawdown = c.maxDD
	s.MaxDrawdownPercent = c.maxDDPct
	s.PeakEquity = c.peak
	return s
}

// FromTrades aggregates trade counts and P&L from a trade log. A trade whose
// net P&L is exactly zero is neither a win nor a loss.
func FromTrades(trades []domain.ClosedTrade) Stats {
	var s Stats
	for _, t := range trades {
		s.TotalTrades++
		s.NetProfit += t.NetPnL
		s.Commission += t.Commission()
		switch {
		case t.NetPnL > 0:
			s.WinningTrades++
			s.GrossProfit += t.NetPnL
		case t.NetPnL < 0:
			s.LosingTrades++
			s.GrossLoss += -t.NetPnL
		}
	}
	return s
}
