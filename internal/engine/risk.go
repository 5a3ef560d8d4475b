package engine

import (
	"errors"
	"fmt"
)

// ErrRiskLimit is returned by RiskManager when a new entry is refused. The
// engine treats it as a hold, not as a failed run.
var ErrRiskLimit = errors.New("risk limit reached")

// RiskManager enforces pre-trade rules on new entries. Exits are never
// blocked. A zero threshold disables the corresponding rule.
type RiskManager struct {
	haltDrawdownPct float64
	minTradeCash    float64
}

// NewRiskManager creates a RiskManager with the specified thresholds.
//
//   - haltDrawdownPct: refuse new entries while equity is more than this many
//     percent below its running peak (e.g. 25 for 25%).
//   - minTradeCash: refuse new entries when available cash is below this
//     amount.
func NewRiskManager(haltDrawdownPct, minTradeCash float64) *RiskManager {
	return &RiskManager{
		haltDrawdownPct: haltDrawdownPct,
		minTradeCash:    minTradeCash,
	}
}

// CheckEntry evaluates whether a buy may be placed given the current cash,
// equity and running equity peak.
func (rm *RiskManager) CheckEntry(cash, equity, peak float64) error {
	if rm == nil {
		return nil
	}
	if rm.minTradeCash > 0 && cash < rm.minTradeCash {
		return fmt.Errorf("%w: cash %.2f below minimum %.2f", ErrRiskLimit, cash, rm.minTradeCash)
	}
	if rm.haltDrawdownPct > 0 && peak > 0 {
		dd := (peak - equity) / peak * 100
		if dd > rm.haltDrawdownPct {
			return fmt.Errorf("%w: drawdown %.2f%% exceeds %.2f%%", ErrRiskLimit, dd, rm.haltDrawdownPct)
		}
	}
	return nil
}
