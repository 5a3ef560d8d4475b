// Package domain holds the value types shared by the simulation core, the
// market data layer, the stores and the API surfaces.
package domain

import "time"

// Bar is one day's OHLCV record. Bars are immutable once produced.
type Bar struct {
	Symbol    string    `json:"symbol,omitempty"`
	Timestamp time.Time `json:"date"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    int64     `json:"volume"`
}

// OrderSide is the direction of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus tracks an order through its (short) lifecycle.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "new"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
)

// Order is an immediate-fill market order. It is created from a strategy
// decision and filled at the close of the same bar.
type Order struct {
	Side       OrderSide   `json:"side"`
	BarIndex   int         `json:"bar_index"`
	Timestamp  time.Time   `json:"timestamp"`
	Price      float64     `json:"price"`
	Size       float64     `json:"size"`
	Commission float64     `json:"commission"`
	Status     OrderStatus `json:"status"`
}

// Notional returns price times size.
func (o Order) Notional() float64 {
	return o.Price * o.Size
}

// Position is the single open long position of a run.
type Position struct {
	Size            float64   `json:"size"`
	EntryPrice      float64   `json:"entry_price"`
	EntryCommission float64   `json:"entry_commission"`
	OpenedAt        time.Time `json:"opened_at"`
	EntryBar        int       `json:"entry_bar"`
}

// IsOpen reports whether the position holds any units.
func (p Position) IsOpen() bool {
	return p.Size > 0
}

// ClosedTrade is a completed buy-then-sell round trip.
type ClosedTrade struct {
	OpenedAt        time.Time `json:"opened_at"`
	ClosedAt        time.Time `json:"closed_at"`
	EntryPrice      float64   `json:"entry_price"`
	ExitPrice       float64   `json:"exit_price"`
	Size            float64   `json:"size"`
	GrossPnL        float64   `json:"gross_pnl"`
	NetPnL          float64   `json:"net_pnl"`
	EntryCommission float64   `json:"entry_commission"`
	ExitCommission  float64   `json:"exit_commission"`
}

// Commission returns the total commission paid on both legs.
func (t ClosedTrade) Commission() float64 {
	return t.EntryCommission + t.ExitCommission
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Timestamp time.Time `json:"date"`
	Equity    float64   `json:"equity"`
}

// Report is the outcome of a single backtest run.
type Report struct {
	Strategy           string        `json:"strategy"`
	InitialCash        float64       `json:"initial_cash"`
	FinalCash          float64       `json:"final_cash"`
	ProfitLoss         float64       `json:"profit_loss"`
	ProfitLossPercent  float64       `json:"profit_loss_percent"`
	TotalTrades        int           `json:"total_trades"`
	WinningTrades      int           `json:"winning_trades"`
	LosingTrades       int           `json:"losing_trades"`
	MaxDrawdown        float64       `json:"max_drawdown"`
	MaxDrawdownPercent float64       `json:"max_drawdown_percent"`
	Bars               int           `json:"bars"`
	Trades             []ClosedTrade `json:"trades"`
	OpenPosition       *Position     `json:"open_position,omitempty"`
	EquityCurve        []EquityPoint `json:"equity_curve,omitempty"`
}

// Run is a persisted backtest invocation together with its report.
type Run struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	Strategy       string    `json:"strategy"`
	FastPeriod     int       `json:"fast_period"`
	SlowPeriod     int       `json:"slow_period"`
	CommissionRate float64   `json:"commission_rate"`
	Report         Report    `json:"report"`
	CreatedAt      time.Time `json:"created_at"`
}
