package backtest

import (
	"time"

	"tradingcase/internal/domain"
	"tradingcase/internal/marketdata"
)

// DateLayout is the format of Request dates.
const DateLayout = "2006-01-02"

// Request is a backtest as submitted by an API or CLI caller.
type Request struct {
	Symbol      string  `json:"symbol"`
	StartDate   string  `json:"start_date"`
	EndDate     string  `json:"end_date"`
	InitialCash float64 `json:"initial_cash"`
	FastPeriod  int     `json:"fast_period"`
	SlowPeriod  int     `json:"slow_period"`
	Strategy    string  `json:"strategy,omitempty"`
}

// NewRequest returns a Request carrying the defaults from p. Decoding JSON
// into it keeps the defaults for absent fields.
func NewRequest(p Params) Request {
	return Request{
		InitialCash: p.InitialCash,
		FastPeriod:  p.FastPeriod,
		SlowPeriod:  p.SlowPeriod,
		Strategy:    p.Strategy,
	}
}

// ValidationError is a rejected Request. Its message is meant for the caller
// as is.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Unwrap makes every ValidationError match domain.ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return domain.ErrInvalidConfiguration }

// Validate checks the request and returns the parsed date range. Failures
// are *ValidationError.
func (r Request) Validate() (start, end time.Time, err error) {
	invalid := func(msg string) (time.Time, time.Time, error) {
		return time.Time{}, time.Time{}, &ValidationError{Msg: msg}
	}

	if _, err := marketdata.NormalizeSymbol(r.Symbol); err != nil {
		return invalid("Symbol is required")
	}
	start, err1 := time.Parse(DateLayout, r.StartDate)
	end, err2 := time.Parse(DateLayout, r.EndDate)
	if err1 != nil || err2 != nil {
		return invalid("Invalid date format. Use YYYY-MM-DD")
	}
	if !start.Before(end) {
		return invalid("Start date must be before end date")
	}
	if r.InitialCash <= 0 {
		return invalid("Initial cash must be positive")
	}
	if r.FastPeriod >= r.SlowPeriod {
		return invalid("Fast period must be less than slow period")
	}
	if r.FastPeriod <= 0 {
		return invalid("Moving average periods must be positive")
	}
	return start, end, nil
}
