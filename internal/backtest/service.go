package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"tradingcase/internal/domain"
	"tradingcase/internal/marketdata"
	"tradingcase/internal/store"
	"tradingcase/internal/strategy"
	"tradingcase/internal/strategy/builtins"
)

// ErrHistoryDisabled is returned by run history lookups when the service has
// no run store.
var ErrHistoryDisabled = errors.New("run history is disabled")

// Backtester is the operation set shared by Service and its decorators.
type Backtester interface {
	Run(ctx context.Context, req Request) (*domain.Run, error)
	Strategies() []strategy.Info
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]domain.Run, error)
}

var _ Backtester = (*Service)(nil)

// ServiceOptions configures a Service. Source is required; the rest have
// defaults.
type ServiceOptions struct {
	Source   marketdata.Source
	Runs     store.RunStore
	Registry *strategy.Registry
	Defaults Params

	// MaxConcurrentRuns caps simultaneous engine runs. Zero means 1.
	MaxConcurrentRuns int
	Logger            *zap.Logger
}

// Service executes backtest requests against a market data source and keeps
// a history of completed runs.
type Service struct {
	source   marketdata.Source
	runs     store.RunStore
	registry *strategy.Registry
	defaults Params
	sem      *semaphore.Weighted
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates a Service.
func NewService(opts ServiceOptions) (*Service, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: backtest service needs a market data source", domain.ErrInvalidConfiguration)
	}
	if opts.Registry == nil {
		opts.Registry = builtins.NewRegistry()
	}
	if opts.Defaults == (Params{}) {
		opts.Defaults = DefaultParams()
	}
	if _, err := opts.Registry.Lookup(opts.Defaults.Strategy); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Service{
		source:   opts.Source,
		runs:     opts.Runs,
		registry: opts.Registry,
		defaults: opts.Defaults,
		sem:      semaphore.NewWeighted(int64(max(opts.MaxConcurrentRuns, 1))),
		logger:   opts.Logger.Named("backtest"),
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// NewRequest returns a Request prefilled with the service defaults.
func (s *Service) NewRequest() Request {
	return NewRequest(s.defaults)
}

// Defaults returns the parameters applied to every request.
func (s *Service) Defaults() Params {
	return s.defaults
}

// Run validates req, loads its price series, runs the engine and records the
// run. A failure to record is logged and does not fail the run.
func (s *Service) Run(ctx context.Context, req Request) (*domain.Run, error) {
	start, end, err := req.Validate()
	if err != nil {
		return nil, err
	}
	symbol, _ := marketdata.NormalizeSymbol(req.Symbol)

	p := s.defaults
	p.InitialCash = req.InitialCash
	p.FastPeriod = req.FastPeriod
	p.SlowPeriod = req.SlowPeriod
	if req.Strategy != "" {
		p.Strategy = req.Strategy
	}
	if p.Logger == nil {
		p.Logger = s.logger
	}
	if _, err := s.registry.Lookup(p.Strategy); err != nil {
		return nil, err
	}

	bars, err := s.source.Bars(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no data available for symbol %s in the specified date range",
			domain.ErrInsufficientData, symbol)
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	report, err := RunWith(ctx, s.registry, bars, p)
	s.sem.Release(1)
	if err != nil {
		return nil, err
	}

	run := &domain.Run{
		ID:             s.newID(),
		Symbol:         symbol,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Strategy:       p.Strategy,
		FastPeriod:     p.FastPeriod,
		SlowPeriod:     p.SlowPeriod,
		CommissionRate: p.CommissionRate,
		Report:         *report,
		CreatedAt:      s.now().UTC(),
	}

	if s.runs != nil {
		if err := s.runs.SaveRun(ctx, run); err != nil {
			s.logger.Warn("saving run failed", zap.String("run_id", run.ID), zap.Error(err))
		}
	}
	return run, nil
}

// Strategies describes every registered strategy.
func (s *Service) Strategies() []strategy.Info {
	return s.registry.Infos()
}

// GetRun returns a recorded run with its trade log.
func (s *Service) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	if s.runs == nil {
		return nil, ErrHistoryDisabled
	}
	return s.runs.GetRun(ctx, id)
}

// ListRuns returns recorded runs, newest first. Without a run store the list
// is empty.
func (s *Service) ListRuns(ctx context.Context, filter store.RunFilter) ([]domain.Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.ListRuns(ctx, filter)
}
