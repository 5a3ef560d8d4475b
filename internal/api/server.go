// Package api exposes the backtest service over HTTP (gin) and gRPC.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"tradingcase/internal/backtest"
	"tradingcase/internal/config"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Server is the main API server that hosts HTTP and gRPC endpoints.
type Server struct {
	cfg      *config.Config
	svc      backtest.Backtester
	defaults backtest.Request
	logger   *zap.Logger

	engine     *gin.Engine
	httpServer *http.Server
	grpcServer *grpc.Server
	httpAddr   string
	grpcAddr   string
}

// NewServer creates a new Server configured from the given Config. A zero
// gRPC port disables the gRPC listener.
func NewServer(cfg *config.Config, svc backtest.Backtester, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(recoveryMiddleware(logger))
	engine.Use(corsMiddleware())
	engine.Use(loggerMiddleware(logger))

	s := &Server{
		cfg:      cfg,
		svc:      svc,
		defaults: backtest.NewRequest(backtest.ParamsFromConfig(cfg.Backtest)),
		logger:   logger,
		engine:   engine,
		httpAddr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              s.httpAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.Server.GRPCPort > 0 {
		s.grpcAddr = fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort)
		s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(grpcLoggingInterceptor(logger)))
		RegisterBacktestServiceServer(s.grpcServer, newGRPCService(svc, s.defaults))
	}
	return s
}

// Handler returns the HTTP handler with all middleware attached.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// GRPCServer returns the gRPC server, or nil when gRPC is disabled.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// ListenAndServe starts the HTTP and gRPC listeners and blocks until the
// context is cancelled or a fatal error occurs. Cancelling ctx shuts both
// servers down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var grpcLis net.Listener
	if s.grpcServer != nil {
		lis, err := net.Listen("tcp", s.grpcAddr)
		if err != nil {
			return fmt.Errorf("grpc listen %s: %w", s.grpcAddr, err)
		}
		grpcLis = lis
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http listening", zap.String("addr", s.httpAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcLis != nil {
		g.Go(func() error {
			s.logger.Info("grpc listening", zap.String("addr", s.grpcAddr))
			if err := s.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown performs a graceful shutdown of the HTTP and gRPC servers. gRPC
// connections still open when ctx expires are closed forcibly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	err := s.httpServer.Shutdown(ctx)

	if s.grpcServer != nil {
		done := make(chan struct{})
		go func() {
			s.grpcServer.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			s.grpcServer.Stop()
		}
	}
	return err
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func recoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic serving request",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	})
}
