// Package broker defines the Broker interface and the simulated ledger that
// fills the engine's market orders and tracks cash and the open position.
package broker

import (
	"errors"
	"fmt"

	"tradingcase/internal/domain"
)

var (
	// ErrOrderPending is returned when an order is submitted while another
	// one has not been acknowledged yet.
	ErrOrderPending = errors.New("an order is already pending")

	// ErrPositionOpen is returned for a buy while a position is open.
	ErrPositionOpen = errors.New("position already open")

	// ErrNoPosition is returned for a sell while flat.
	ErrNoPosition = errors.New("no open position")
)

// Sizing selects how many units a buy order takes.
type Sizing string

const (
	// SizingAllIn invests all available cash, commission included.
	SizingAllIn Sizing = "all-in"
	// SizingFixed buys a fixed number of units per entry.
	SizingFixed Sizing = "fixed"
)

// Config parameterises a simulated account.
type Config struct {
	InitialCash    float64
	CommissionRate float64
	Sizing         Sizing
	// Stake is the unit count for SizingFixed.
	Stake float64
}

// Validate rejects non-positive cash, a commission rate outside [0, 1) and
// unknown sizing modes.
func (c Config) Validate() error {
	if c.InitialCash <= 0 {
		return fmt.Errorf("%w: initial cash must be positive, got %v", domain.ErrInvalidConfiguration, c.InitialCash)
	}
	if c.CommissionRate < 0 || c.CommissionRate >= 1 {
		return fmt.Errorf("%w: commission rate must be in [0, 1), got %v", domain.ErrInvalidConfiguration, c.CommissionRate)
	}
	switch c.Sizing {
	case SizingAllIn, "":
	case SizingFixed:
		if c.Stake <= 0 {
			return fmt.Errorf("%w: fixed sizing needs a positive stake, got %v", domain.ErrInvalidConfiguration, c.Stake)
		}
	default:
		return fmt.Errorf("%w: unknown sizing %q", domain.ErrInvalidConfiguration, c.Sizing)
	}
	return nil
}

// Fill is the outcome of a submitted order.
type Fill struct {
	Order domain.Order
	// Trade is set when the fill closed the position.
	Trade *domain.ClosedTrade
}

// Broker abstracts order execution and account state for the simulation
// engine.
type Broker interface {
	// Name returns the broker identifier.
	Name() string

	// Submit creates a market order for side at the bar's close and fills it.
	Submit(side domain.OrderSide, barIndex int, bar domain.Bar) (Fill, error)

	// Pending reports whether an order is awaiting acknowledgement.
	Pending() bool

	// Position returns the open position, or the zero Position when flat.
	Position() domain.Position

	// Cash returns the available cash balance.
	Cash() float64

	// Value returns cash plus the position marked at price.
	Value(price float64) float64
}
