package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when a price series is empty or too
	// short for the requested operation.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidSeries is returned when bars are not in strictly increasing
	// date order. It is a kind of ErrInsufficientData.
	ErrInvalidSeries = fmt.Errorf("%w: bars must have strictly increasing dates", ErrInsufficientData)

	// ErrInsufficientFunds is returned when a fill would overdraw cash.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidConfiguration is returned for invalid run parameters.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ValidateSeries checks that bars is non-empty and strictly increasing by
// date.
func ValidateSeries(bars []Bar) error {
	if len(bars) == 0 {
		return fmt.Errorf("%w: price series has no bars", ErrInsufficientData)
	}
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("%w (bar %d at %s follows %s)", ErrInvalidSeries, i,
				bars[i].Timestamp.Format("2006-01-02"), bars[i-1].Timestamp.Format("2006-01-02"))
		}
	}
	return nil
}
