package tradingcase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8000/"
	c := NewClient(baseURL)

	if c == nil {
		t.Fatal("expected non-nil client")
	}
	if c.baseURL != "http://localhost:8000" {
		t.Errorf("expected trailing slash trimmed, got %q", c.baseURL)
	}
	if c.httpClient == nil {
		t.Fatal("expected non-nil httpClient")
	}
}

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","service":"trading-case-api"}`))
	})
	mux.HandleFunc("GET /api/strategies", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"strategies":[{"name":"sma-cross","label":"MovingAverageCrossover","parameters":{"fast_period":"x"}}]}`))
	})
	mux.HandleFunc("POST /api/backtest", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if _, ok := body["initial_cash"]; ok {
			t.Errorf("zero initial_cash should be omitted, got %v", body)
		}
		if body["start_date"] == body["end_date"] {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Start date must be before end date"}`))
			return
		}
		_, _ = w.Write([]byte(`{"symbol":"AAPL","total_trades":3,"profit_loss":12.34,"run_id":"abc"}`))
	})
	mux.HandleFunc("GET /api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "abc" {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"abc","symbol":"AAPL","report":{"total_trades":1,"trades":[{"net_pnl":5}]}}`))
	})
	mux.HandleFunc("GET /api/runs", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit = %q, want 2", got)
		}
		_, _ = w.Write([]byte(`{"runs":[{"id":"a"},{"id":"b"}],"count":2}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientCalls(t *testing.T) {
	c := NewClient(fakeServer(t).URL)
	ctx := context.Background()

	status, err := c.Health(ctx)
	if err != nil || status != "healthy" {
		t.Fatalf("Health() = %q, %v; want healthy", status, err)
	}

	strategies, err := c.Strategies(ctx)
	if err != nil {
		t.Fatalf("Strategies: %v", err)
	}
	if len(strategies) != 1 || strategies[0].Label != "MovingAverageCrossover" {
		t.Errorf("Strategies() = %+v", strategies)
	}

	resp, err := c.Backtest(ctx, BacktestRequest{Symbol: "AAPL", StartDate: "2023-01-01", EndDate: "2023-12-31"})
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if resp.RunID != "abc" || resp.TotalTrades != 3 || resp.ProfitLoss != 12.34 {
		t.Errorf("Backtest() = %+v", resp)
	}

	run, err := c.GetRun(ctx, "abc")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if len(run.Report.Trades) != 1 || run.Report.Trades[0].NetPnL != 5 {
		t.Errorf("GetRun() trades = %+v", run.Report.Trades)
	}

	runs, err := c.ListRuns(ctx, 2)
	if err != nil || len(runs) != 2 {
		t.Errorf("ListRuns() = %d runs, %v; want 2", len(runs), err)
	}
}

func TestClientErrors(t *testing.T) {
	c := NewClient(fakeServer(t).URL)
	ctx := context.Background()

	_, err := c.Backtest(ctx, BacktestRequest{Symbol: "AAPL", StartDate: "2023-01-01", EndDate: "2023-01-01"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Detail != "Start date must be before end date" {
		t.Errorf("got %d %q", apiErr.StatusCode, apiErr.Detail)
	}

	_, err = c.GetRun(ctx, "missing")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Detail != "gone" {
		t.Errorf("GetRun(missing) = %v", err)
	}
}
