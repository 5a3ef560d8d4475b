package util

import "time"

const dateLayout = "2006-01-02"

// TradingCalendar knows which calendar days are trading days: weekdays that
// are not listed holidays.
type TradingCalendar struct {
	holidays map[string]struct{}
}

// NewTradingCalendar creates a TradingCalendar with the given holidays.
func NewTradingCalendar(holidays ...time.Time) *TradingCalendar {
	tc := &TradingCalendar{holidays: make(map[string]struct{}, len(holidays))}
	for _, h := range holidays {
		tc.holidays[h.Format(dateLayout)] = struct{}{}
	}
	return tc
}

// IsTradingDay reports whether t falls on a trading day.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := tc.holidays[t.Format(dateLayout)]
	return !holiday
}

// NextTradingDay returns the first trading day strictly after t, at midnight
// in t's location.
func (tc *TradingCalendar) NextTradingDay(t time.Time) time.Time {
	d := truncateDay(t).AddDate(0, 0, 1)
	for !tc.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// TradingDays returns every trading day in [start, end], both inclusive, at
// midnight in start's location.
func (tc *TradingCalendar) TradingDays(start, end time.Time) []time.Time {
	var out []time.Time
	last := truncateDay(end)
	for d := truncateDay(start); !d.After(last); d = d.AddDate(0, 0, 1) {
		if tc.IsTradingDay(d) {
			out = append(out, d)
		}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
