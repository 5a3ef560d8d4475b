// Package builtins provides the strategy implementations that ship with
// tradingcase.
package builtins

import (
	"tradingcase/internal/domain"
	"tradingcase/internal/indicator"
	"tradingcase/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACrossName is the registry key of the moving-average crossover strategy.
const SMACrossName = "sma-cross"

// SMACross implements a simple moving average crossover strategy. It buys
// when the fast SMA crosses above the slow SMA and sells when it crosses
// below. The averages themselves are computed by the engine's indicator.
type SMACross struct{}

// NewSMACross creates a new SMACross strategy.
func NewSMACross() *SMACross {
	return &SMACross{}
}

// Name returns "sma-cross".
func (s *SMACross) Name() string {
	return SMACrossName
}

// Describe returns the listing entry for the crossover strategy.
func (s *SMACross) Describe() strategy.Info {
	return strategy.Info{
		Name:        SMACrossName,
		Label:       "MovingAverageCrossover",
		Description: "Buy when fast MA crosses above slow MA, sell when fast MA crosses below slow MA",
		Parameters: map[string]string{
			"fast_period": "Fast moving average period (default: 10)",
			"slow_period": "Slow moving average period (default: 30)",
		},
	}
}

// Decide maps the crossover signal to an order decision.
func (s *SMACross) Decide(_ domain.Bar, sig indicator.Signal, st strategy.State) strategy.Decision {
	switch {
	case st.OrderPending:
		return strategy.Hold
	case !st.PositionOpen && sig == indicator.SignalUp:
		return strategy.Buy
	case st.PositionOpen && sig == indicator.SignalDown:
		return strategy.Sell
	default:
		return strategy.Hold
	}
}
