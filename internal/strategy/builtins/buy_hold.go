package builtins

import (
	"tradingcase/internal/domain"
	"tradingcase/internal/indicator"
	"tradingcase/internal/strategy"
)

var _ strategy.Strategy = (*BuyAndHold)(nil)

// BuyAndHoldName is the registry key of the buy-and-hold benchmark.
const BuyAndHoldName = "buy-and-hold"

// BuyAndHold enters once on the first bar it can and never exits. It ignores
// the crossover signal and serves as a benchmark.
type BuyAndHold struct{}

// NewBuyAndHold creates a new BuyAndHold strategy.
func NewBuyAndHold() *BuyAndHold {
	return &BuyAndHold{}
}

// Name returns "buy-and-hold".
func (b *BuyAndHold) Name() string {
	return BuyAndHoldName
}

// Describe returns the listing entry for the benchmark strategy.
func (b *BuyAndHold) Describe() strategy.Info {
	return strategy.Info{
		Name:        BuyAndHoldName,
		Label:       "BuyAndHold",
		Description: "Buy on the first bar with all available cash and hold until the end of the series",
		Parameters:  map[string]string{},
	}
}

func (b *BuyAndHold) Decide(_ domain.Bar, _ indicator.Signal, st strategy.State) strategy.Decision {
	if st.OrderPending || st.PositionOpen || st.Entries > 0 {
		return strategy.Hold
	}
	return strategy.Buy
}

// Register adds every built-in strategy to r.
func Register(r *strategy.Registry) {
	r.Register(NewSMACross())
	r.Register(NewBuyAndHold())
}

// NewRegistry returns a registry populated with the built-in strategies.
func NewRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	Register(r)
	return r
}
