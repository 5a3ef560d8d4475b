package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"tradingcase/internal/backtest"
	"tradingcase/internal/domain"
)

// BacktestServiceName is the fully qualified gRPC service name.
const BacktestServiceName = "tradingcase.v1.BacktestService"

const (
	runMethod            = "/" + BacktestServiceName + "/Run"
	listStrategiesMethod = "/" + BacktestServiceName + "/ListStrategies"
)

// BacktestServiceServer is the server side of tradingcase.v1.BacktestService.
// Messages are google.protobuf.Struct carrying the same JSON documents as the
// HTTP API.
type BacktestServiceServer interface {
	Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ListStrategies(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// RegisterBacktestServiceServer registers srv on s.
func RegisterBacktestServiceServer(s grpc.ServiceRegistrar, srv BacktestServiceServer) {
	s.RegisterService(&backtestServiceDesc, srv)
}

var backtestServiceDesc = grpc.ServiceDesc{
	ServiceName: BacktestServiceName,
	HandlerType: (*BacktestServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: runHandler},
		{MethodName: "ListStrategies", Handler: listStrategiesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tradingcase/v1/backtest.proto",
}

func runHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestServiceServer).Run(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: runMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestServiceServer).Run(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listStrategiesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BacktestServiceServer).ListStrategies(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listStrategiesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BacktestServiceServer).ListStrategies(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ---------------------------------------------------------------------------
// Server implementation
// ---------------------------------------------------------------------------

type grpcService struct {
	svc      backtest.Backtester
	defaults backtest.Request
}

var _ BacktestServiceServer = (*grpcService)(nil)

func newGRPCService(svc backtest.Backtester, defaults backtest.Request) *grpcService {
	return &grpcService{svc: svc, defaults: defaults}
}

func (g *grpcService) Run(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req := g.defaults
	raw, err := protojson.Marshal(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "Invalid request: %v", err)
	}

	run, err := g.svc.Run(ctx, req)
	if err != nil {
		return nil, grpcError(err)
	}
	return toStruct(NewBacktestResponse(run))
}

func (g *grpcService) ListStrategies(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return toStruct(map[string]any{"strategies": g.svc.Strategies()})
}

// grpcError maps a backtest error to a status the same way errorStatus maps
// it to HTTP.
func grpcError(err error) error {
	var verr *backtest.ValidationError
	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Msg)
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrInsufficientData):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, "Backtest execution failed: "+err.Error())
	}
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func grpcLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("rpc",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		)
		return resp, err
	}
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// BacktestServiceClient calls tradingcase.v1.BacktestService.
type BacktestServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewBacktestServiceClient wraps a client connection.
func NewBacktestServiceClient(cc grpc.ClientConnInterface) *BacktestServiceClient {
	return &BacktestServiceClient{cc: cc}
}

// Run submits a backtest. Absent request fields take the server defaults.
func (c *BacktestServiceClient) Run(ctx context.Context, req map[string]any, opts ...grpc.CallOption) (*BacktestResponse, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, runMethod, in, out, opts...); err != nil {
		return nil, err
	}
	var resp BacktestResponse
	if err := fromStruct(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListStrategies returns the raw strategy listing.
func (c *BacktestServiceClient) ListStrategies(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listStrategiesMethod, &structpb.Struct{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func fromStruct(in *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
