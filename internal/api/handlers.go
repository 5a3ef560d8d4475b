package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tradingcase/internal/backtest"
	"tradingcase/internal/domain"
	"tradingcase/internal/store"
)

const defaultRunsLimit = 20

// BacktestResponse is the summary returned for a completed backtest. Money
// and percent figures are rounded to cents.
type BacktestResponse struct {
	Symbol             string  `json:"symbol"`
	StartDate          string  `json:"start_date"`
	EndDate            string  `json:"end_date"`
	InitialCash        float64 `json:"initial_cash"`
	FinalCash          float64 `json:"final_cash"`
	ProfitLoss         float64 `json:"profit_loss"`
	ProfitLossPercent  float64 `json:"profit_loss_percent"`
	TotalTrades        int     `json:"total_trades"`
	WinningTrades      int     `json:"winning_trades"`
	LosingTrades       int     `json:"losing_trades"`
	MaxDrawdown        float64 `json:"max_drawdown"`
	MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
	Strategy           string  `json:"strategy"`
	FastPeriod         int     `json:"fast_period"`
	SlowPeriod         int     `json:"slow_period"`
	RunID              string  `json:"run_id"`
}

// NewBacktestResponse summarises a run.
func NewBacktestResponse(run *domain.Run) BacktestResponse {
	r := run.Report
	return BacktestResponse{
		Symbol:             run.Symbol,
		StartDate:          run.StartDate,
		EndDate:            run.EndDate,
		InitialCash:        r.InitialCash,
		FinalCash:          r.FinalCash,
		ProfitLoss:         round2(r.ProfitLoss),
		ProfitLossPercent:  round2(r.ProfitLossPercent),
		TotalTrades:        r.TotalTrades,
		WinningTrades:      r.WinningTrades,
		LosingTrades:       r.LosingTrades,
		MaxDrawdown:        round2(math.Abs(r.MaxDrawdown)),
		MaxDrawdownPercent: round2(r.MaxDrawdownPercent),
		Strategy:           r.Strategy,
		FastPeriod:         run.FastPeriod,
		SlowPeriod:         run.SlowPeriod,
		RunID:              run.ID,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// setupRoutes registers all API routes.
func (s *Server) setupRoutes() {
	s.engine.GET("/", s.handleRoot)

	api := s.engine.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/strategies", s.handleStrategies)
		api.POST("/backtest", s.handleBacktest)
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Trading Case API is running", "version": Version})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "trading-case-api"})
}

func (s *Server) handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": s.svc.Strategies()})
}

func (s *Server) handleBacktest(c *gin.Context) {
	req := s.defaults
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
		return
	}

	run, err := s.svc.Run(c.Request.Context(), req)
	if err != nil {
		status, msg := errorStatus(err)
		writeError(c, status, msg)
		return
	}
	c.JSON(http.StatusOK, NewBacktestResponse(run))
}

func (s *Server) handleListRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := s.svc.ListRuns(c.Request.Context(), store.RunFilter{
		Symbol:   c.Query("symbol"),
		Strategy: c.Query("strategy"),
		Limit:    limit,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.svc.GetRun(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(c, http.StatusNotFound, "Run not found")
	case errors.Is(err, backtest.ErrHistoryDisabled):
		writeError(c, http.StatusNotFound, "Run history is disabled")
	case err != nil:
		writeError(c, http.StatusInternalServerError, err.Error())
	default:
		c.JSON(http.StatusOK, run)
	}
}

// errorStatus maps a backtest error to an HTTP status and the message shown
// to the caller.
func errorStatus(err error) (int, string) {
	var verr *backtest.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Msg
	case errors.Is(err, domain.ErrInvalidConfiguration):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrInsufficientData):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "Backtest execution failed: " + err.Error()
	}
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}
