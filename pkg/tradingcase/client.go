// Package tradingcase is a Go SDK for the tradingcase-server HTTP API.
package tradingcase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client provides a Go SDK for interacting with the tradingcase-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new tradingcase API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// BacktestRequest is the body of POST /api/backtest. Zero numeric fields and
// an empty strategy are omitted so the server defaults apply.
type BacktestRequest struct {
	Symbol      string  `json:"symbol"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	InitialCash float64 `json:"initial_cash,omitempty"`
	FastPeriod  int     `json:"fast_period,omitempty"`
	SlowPeriod  int     `json:"slow_period,omitempty"`
	Strategy    string  `json:"strategy,omitempty"`
}

// BacktestResponse is the summary of a completed backtest.
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

// Strategy is one entry of the strategy listing.
type Strategy struct {
	Name        string            `json:"name"`
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters"`
}

// Trade is a closed round trip of a stored run.
type Trade struct {
	OpenedAt   time.Time `json:"opened_at"`
	ClosedAt   time.Time `json:"closed_at"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	NetPnL     float64   `json:"net_pnl"`
}

// Run is a stored backtest.
type Run struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	Strategy   string    `json:"strategy"`
	FastPeriod int       `json:"fast_period"`
	SlowPeriod int       `json:"slow_period"`
	CreatedAt  time.Time `json:"created_at"`
	Report     struct {
		FinalCash          float64 `json:"final_cash"`
		ProfitLoss         float64 `json:"profit_loss"`
		TotalTrades        int     `json:"total_trades"`
		MaxDrawdownPercent float64 `json:"max_drawdown_percent"`
		Trades             []Trade `json:"trades"`
	} `json:"report"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tradingcase: %d: %s", e.StatusCode, e.Detail)
}

// Health calls GET /api/health and returns the reported status.
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// Strategies lists the server's strategies.
func (c *Client) Strategies(ctx context.Context) ([]Strategy, error) {
	var out struct {
		Strategies []Strategy `json:"strategies"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/strategies", nil, &out); err != nil {
		return nil, err
	}
	return out.Strategies, nil
}

// Backtest runs a backtest on the server.
func (c *Client) Backtest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	var out BacktestResponse
	if err := c.do(ctx, http.MethodPost, "/api/backtest", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetRun fetches a stored run with its trades.
func (c *Client) GetRun(ctx context.Context, id string) (*Run, error) {
	var out Run
	if err := c.do(ctx, http.MethodGet, "/api/runs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRuns returns up to limit stored runs, newest first. A non-positive
// limit uses the server default.
func (c *Client) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	path := "/api/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Runs []Run `json:"runs"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Detail string `json:"detail"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &e) != nil || e.Detail == "" {
			e.Detail = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: e.Detail}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
