// Package engine replays a price series bar by bar through a strategy,
// routing its decisions to the simulated broker and collecting statistics.
package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"tradingcase/internal/broker"
	"tradingcase/internal/domain"
	"tradingcase/internal/indicator"
	"tradingcase/internal/stats"
	"tradingcase/internal/strategy"
)

// Phase is the engine's position/order state.
type Phase int

const (
	Idle Phase = iota
	HoldingNoPosition
	HoldingPosition
	PendingOrder
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case HoldingNoPosition:
		return "holding-no-position"
	case HoldingPosition:
		return "holding-position"
	case PendingOrder:
		return "pending-order"
	default:
		return "idle"
	}
}

// EndOfSeries decides what happens to a position still open after the last
// bar.
type EndOfSeries string

const (
	// MarkToMarket leaves the position open and values it at the last close.
	// Its unrealized P&L is part of the final value but it is not a trade.
	MarkToMarket EndOfSeries = "mark-to-market"
	// ClosePosition sells at the last close and counts the trade.
	ClosePosition EndOfSeries = "close"
)

// Options configures a single engine run.
type Options struct {
	FastPeriod  int
	SlowPeriod  int
	Account     broker.Config
	EndOfSeries EndOfSeries
	Risk        *RiskManager

	// Verbose logs every close, order and closed trade at info level. The
	// ending value is logged regardless.
	Verbose bool
	Logger  *zap.Logger
}

// Engine orchestrates one backtest. An Engine is single use; build a new one
// per run.
type Engine struct {
	strategy  strategy.Strategy
	crossover *indicator.Crossover
	broker    broker.Broker
	collector *stats.Collector
	risk      *RiskManager
	eos       EndOfSeries
	verbose   bool
	logger    *zap.Logger

	fastPeriod int
	slowPeriod int

	initialCash float64
	phase       Phase
	entries     int
	peak        float64
	used        bool
}

// NewEngine creates an Engine for s with its own broker, indicator and
// collector.
func NewEngine(s strategy.Strategy, opts Options) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: no strategy", domain.ErrInvalidConfiguration)
	}
	cross, err := indicator.NewCrossover(opts.FastPeriod, opts.SlowPeriod)
	if err != nil {
		return nil, err
	}
	if opts.FastPeriod >= opts.SlowPeriod {
		return nil, fmt.Errorf("%w: fast period %d must be less than slow period %d",
			domain.ErrInvalidConfiguration, opts.FastPeriod, opts.SlowPeriod)
	}
	b, err := broker.NewSimulatorBroker(opts.Account)
	if err != nil {
		return nil, err
	}
	switch opts.EndOfSeries {
	case "":
		opts.EndOfSeries = MarkToMarket
	case MarkToMarket, ClosePosition:
	default:
		return nil, fmt.Errorf("%w: unknown end-of-series policy %q", domain.ErrInvalidConfiguration, opts.EndOfSeries)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		strategy:    s,
		crossover:   cross,
		broker:      b,
		collector:   stats.NewCollector(),
		risk:        opts.Risk,
		eos:         opts.EndOfSeries,
		verbose:     opts.Verbose,
		logger:      logger.Named("engine").With(zap.String("strategy", s.Name())),
		fastPeriod:  opts.FastPeriod,
		slowPeriod:  opts.SlowPeriod,
		initialCash: opts.Account.InitialCash,
	}, nil
}

// Phase returns the current engine phase.
func (e *Engine) Phase() Phase {
	return e.phase
}

// Run replays bars and returns the report. Bars must be non-empty and
// strictly increasing by date. ctx is checked once per bar.
func (e *Engine) Run(ctx context.Context, bars []domain.Bar) (*domain.Report, error) {
	if e.used {
		return nil, errors.New("engine: Run called twice")
	}
	e.used = true

	if err := domain.ValidateSeries(bars); err != nil {
		return nil, err
	}

	e.phase = HoldingNoPosition
	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest interrupted at bar %d: %w", i, err)
		}
		e.logBar("CLOSE", i, bar, zap.Float64("close", bar.Close))
		if err := e.step(i, bar); err != nil {
			return nil, err
		}
		if i == len(bars)-1 && e.eos == ClosePosition && e.phase == HoldingPosition {
			if err := e.sell(i, bar); err != nil {
				return nil, err
			}
		}
		e.sample(bar)
	}

	r := e.report(bars)
	e.logger.Info("ENDING VALUE",
		zap.Int("fast_period", e.fastPeriod),
		zap.Int("slow_period", e.slowPeriod),
		zap.Float64("value", r.FinalCash),
	)
	return r, nil
}

func (e *Engine) step(i int, bar domain.Bar) error {
	sig := e.crossover.Update(bar)
	st := e.state()

	switch e.strategy.Decide(bar, sig, st) {
	case strategy.Buy:
		if st.PositionOpen || st.OrderPending {
			return nil
		}
		equity := e.broker.Value(bar.Close)
		if err := e.risk.CheckEntry(e.broker.Cash(), equity, max(e.peak, equity)); err != nil {
			e.logger.Debug("entry refused", zap.Int("bar", i), zap.Error(err))
			return nil
		}
		return e.buy(i, bar)
	case strategy.Sell:
		if !st.PositionOpen || st.OrderPending {
			return nil
		}
		return e.sell(i, bar)
	}
	return nil
}

func (e *Engine) state() strategy.State {
	return strategy.State{
		PositionOpen: e.phase == HoldingPosition,
		OrderPending: e.phase == PendingOrder || e.broker.Pending(),
		Entries:      e.entries,
	}
}

func (e *Engine) buy(i int, bar domain.Bar) error {
	e.logBar("BUY CREATE", i, bar, zap.Float64("close", bar.Close))

	prev := e.phase
	e.phase = PendingOrder
	fill, err := e.broker.Submit(domain.OrderSideBuy, i, bar)
	if err != nil {
		e.phase = prev
		return err
	}
	e.phase = HoldingPosition
	e.entries++

	o := fill.Order
	e.logBar("BUY EXECUTED", i, bar,
		zap.Float64("price", o.Price),
		zap.Float64("size", o.Size),
		zap.Float64("cost", o.Notional()),
		zap.Float64("commission", o.Commission),
	)
	return nil
}

func (e *Engine) sell(i int, bar domain.Bar) error {
	e.logBar("SELL CREATE", i, bar, zap.Float64("close", bar.Close))

	prev := e.phase
	e.phase = PendingOrder
	fill, err := e.broker.Submit(domain.OrderSideSell, i, bar)
	if err != nil {
		e.phase = prev
		return err
	}
	e.phase = HoldingNoPosition

	o := fill.Order
	e.logBar("SELL EXECUTED", i, bar,
		zap.Float64("price", o.Price),
		zap.Float64("size", o.Size),
		zap.Float64("value", o.Notional()),
		zap.Float64("commission", o.Commission),
	)
	if fill.Trade != nil {
		e.collector.RecordTrade(*fill.Trade)
		e.logBar("OPERATION PROFIT", i, bar,
			zap.Float64("gross", fill.Trade.GrossPnL),
			zap.Float64("net", fill.Trade.NetPnL),
		)
	}
	return nil
}

func (e *Engine) sample(bar domain.Bar) {
	v := e.broker.Value(bar.Close)
	if v > e.peak {
		e.peak = v
	}
	e.collector.SampleEquity(bar.Timestamp, v)
}

func (e *Engine) logBar(msg string, i int, bar domain.Bar, fields ...zap.Field) {
	if !e.verbose {
		return
	}
	fields = append([]zap.Field{
		zap.Int("bar", i),
		zap.String("date", bar.Timestamp.Format("2006-01-02")),
	}, fields...)
	e.logger.Info(msg, fields...)
}

func (e *Engine) report(bars []domain.Bar) *domain.Report {
	last := bars[len(bars)-1]
	s := e.collector.Finalize()
	final := e.broker.Value(last.Close)
	pl := final - e.initialCash

	r := &domain.Report{
		Strategy:           e.strategy.Describe().Label,
		InitialCash:        e.initialCash,
		FinalCash:          final,
		ProfitLoss:         pl,
		ProfitLossPercent:  pl / e.initialCash * 100,
		TotalTrades:        s.TotalTrades,
		WinningTrades:      s.WinningTrades,
		LosingTrades:       s.LosingTrades,
		MaxDrawdown:        s.MaxDrawdown,
		MaxDrawdownPercent: s.MaxDrawdownPercent,
		Bars:               len(bars),
		Trades:             e.collector.Trades(),
		EquityCurve:        e.collector.EquityCurve(),
	}
	if pos := e.broker.Position(); pos.IsOpen() {
		r.OpenPosition = &pos
	}
	return r
}
