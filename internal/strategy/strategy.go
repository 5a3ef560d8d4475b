// Package strategy defines the Strategy interface for trading strategies and
// provides a Registry for managing multiple strategy implementations.
package strategy

import (
	"fmt"
	"sort"

	"tradingcase/internal/domain"
	"tradingcase/internal/indicator"
)

// Decision is what a strategy wants the engine to do on the current bar.
type Decision int

const (
	Hold Decision = iota
	Buy
	Sell
)

// String returns "hold", "buy" or "sell".
func (d Decision) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

// State is the engine state a strategy decides against. Strategies keep no
// state of their own; everything they need is passed in here.
type State struct {
	PositionOpen bool
	OrderPending bool
	// Entries is the number of buy orders filled so far in the run.
	Entries int
}

// Info describes a strategy for listings.
type Info struct {
	Name        string            `json:"name"`
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters"`
}

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Describe returns the human-facing description of the strategy.
	Describe() Info

	// Decide is called once per bar after the crossover indicator has been
	// updated with that bar.
	Decide(bar domain.Bar, sig indicator.Signal, st State) Decision
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (Strategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// Lookup is Get with an ErrInvalidConfiguration error for unknown names.
func (r *Registry) Lookup(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown strategy %q (available: %v)",
			domain.ErrInvalidConfiguration, name, r.List())
	}
	return s, nil
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Infos returns Describe() for every registered strategy, sorted by name.
func (r *Registry) Infos() []Info {
	names := r.List()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		out = append(out, r.strategies[name].Describe())
	}
	return out
}
