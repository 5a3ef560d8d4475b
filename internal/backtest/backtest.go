// Package backtest runs a strategy over a price series. Run is the pure entry
// point; Service adds request validation, market data loading, concurrency
// limits and run history on top of it.
package backtest

import (
	"context"

	"go.uber.org/zap"

	"tradingcase/internal/broker"
	"tradingcase/internal/config"
	"tradingcase/internal/domain"
	"tradingcase/internal/engine"
	"tradingcase/internal/strategy"
	"tradingcase/internal/strategy/builtins"
)

// Params are the inputs of one run besides the price series.
type Params struct {
	Strategy       string
	InitialCash    float64
	FastPeriod     int
	SlowPeriod     int
	CommissionRate float64
	Sizing         broker.Sizing
	Stake          float64
	EndOfSeries    engine.EndOfSeries
	Risk           *engine.RiskManager

	// Verbose logs every order to Logger.
	Verbose bool
	Logger  *zap.Logger
}

// DefaultParams mirrors config.Default().Backtest.
func DefaultParams() Params {
	return ParamsFromConfig(config.Default().Backtest)
}

// ParamsFromConfig converts the backtest section of the configuration.
func ParamsFromConfig(b config.Backtest) Params {
	p := Params{
		Strategy:       b.Strategy,
		InitialCash:    b.InitialCash,
		FastPeriod:     b.FastPeriod,
		SlowPeriod:     b.SlowPeriod,
		CommissionRate: b.CommissionRate,
		Sizing:         broker.Sizing(b.Sizing),
		Stake:          b.Stake,
		EndOfSeries:    engine.EndOfSeries(b.EndOfSeries),
		Verbose:        b.Verbose,
	}
	if b.Risk.HaltDrawdownPct > 0 || b.Risk.MinTradeCash > 0 {
		p.Risk = engine.NewRiskManager(b.Risk.HaltDrawdownPct, b.Risk.MinTradeCash)
	}
	if p.Strategy == "" {
		p.Strategy = builtins.SMACrossName
	}
	return p
}

func (p Params) engineOptions() engine.Options {
	return engine.Options{
		FastPeriod: p.FastPeriod,
		SlowPeriod: p.SlowPeriod,
		Account: broker.Config{
			InitialCash:    p.InitialCash,
			CommissionRate: p.CommissionRate,
			Sizing:         p.Sizing,
			Stake:          p.Stake,
		},
		EndOfSeries: p.EndOfSeries,
		Risk:        p.Risk,
		Verbose:     p.Verbose,
		Logger:      p.Logger,
	}
}

var defaultRegistry = builtins.NewRegistry()

// Run replays series through the strategy named in p using the built-in
// strategies. The result depends only on its inputs.
func Run(ctx context.Context, series []domain.Bar, p Params) (*domain.Report, error) {
	return RunWith(ctx, defaultRegistry, series, p)
}

// RunWith is Run with an explicit strategy registry.
func RunWith(ctx context.Context, reg *strategy.Registry, series []domain.Bar, p Params) (*domain.Report, error) {
	s, err := reg.Lookup(p.Strategy)
	if err != nil {
		return nil, err
	}
	e, err := engine.NewEngine(s, p.engineOptions())
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, series)
}
