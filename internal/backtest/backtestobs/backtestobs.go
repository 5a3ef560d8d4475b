// Package backtestobs wraps a backtest.Backtester with tracing spans and
// structured start/finish logs.
package backtestobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"tradingcase/internal/backtest"
	"tradingcase/internal/domain"
	"tradingcase/internal/store"
	"tradingcase/internal/strategy"
	"tradingcase/internal/trace"
)

type observableBacktester struct {
	next   backtest.Backtester
	logger *zap.Logger
}

var _ backtest.Backtester = (*observableBacktester)(nil)

// Wrap returns next with observability added.
func Wrap(next backtest.Backtester, logger *zap.Logger) backtest.Backtester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &observableBacktester{next: next, logger: logger.Named("backtest")}
}

func (o *observableBacktester) Run(ctx context.Context, req backtest.Request) (*domain.Run, error) {
	ctx, span := trace.StartSpan(ctx, "backtest.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", req.Symbol),
		attribute.String("strategy", req.Strategy),
		attribute.String("start_date", req.StartDate),
		attribute.String("end_date", req.EndDate),
		attribute.Int("fast_period", req.FastPeriod),
		attribute.Int("slow_period", req.SlowPeriod),
	)

	start := time.Now()
	fields := []zap.Field{
		zap.String("symbol", req.Symbol),
		zap.String("strategy", req.Strategy),
		zap.String("start_date", req.StartDate),
		zap.String("end_date", req.EndDate),
	}
	if traceID, _, ok := trace.IDs(ctx); ok {
		fields = append(fields, zap.String("trace_id", traceID))
	}
	logger := o.logger.With(fields...)
	logger.Info("starting backtest")

	run, err := o.next.Run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("backtest failed", zap.Error(err), zap.Int64("duration_ms", time.Since(start).Milliseconds()))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("run_id", run.ID),
		attribute.Int("bars", run.Report.Bars),
		attribute.Int("total_trades", run.Report.TotalTrades),
	)
	logger.Info("backtest completed",
		zap.String("run_id", run.ID),
		zap.Int("bars", run.Report.Bars),
		zap.Int("total_trades", run.Report.TotalTrades),
		zap.Float64("profit_loss", run.Report.ProfitLoss),
		zap.Float64("max_drawdown_percent", run.Report.MaxDrawdownPercent),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return run, nil
}

func (o *observableBacktester) Strategies() []strategy.Info {
	return o.next.Strategies()
}

func (o *observableBacktester) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	ctx, span := trace.StartSpan(ctx, "backtest.GetRun")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", id))

	run, err := o.next.GetRun(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return run, err
}

func (o *observableBacktester) ListRuns(ctx context.Context, filter store.RunFilter) ([]domain.Run, error) {
	ctx, span := trace.StartSpan(ctx, "backtest.ListRuns")
	defer span.End()

	runs, err := o.next.ListRuns(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Warn("listing runs failed", zap.Error(err))
	}
	return runs, err
}
