package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/evdnx/gosizer/config"
	"github.com/evdnx/gosizer/equity"
)

var (
	// ErrInvalidParameter flags misconfiguration: non-positive risk
	// percent, negative equity basis, non-finite inputs.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInvalidStop is returned when a long entry's stop is not below price.
	ErrInvalidStop = errors.New("invalid stop")
	// ErrInvalidRiskPerLot is returned when stop distance × point value is
	// not positive.
	ErrInvalidRiskPerLot = errors.New("invalid risk per lot")
)

// lotTolerance is relative: it absorbs the last bits of float noise
// (2.9999999999999996 floors to 3) without rounding up a value that is
// genuinely below the next lot.
const lotTolerance = 1e-12

// Budget is the currency amount that may be risked on the next decision:
// basis × pct / 100.
func Budget(equityBasis, riskPercent float64) (float64, error) {
	if !finite(equityBasis) || !finite(riskPercent) {
		return 0, fmt.Errorf("%w: non-finite basis %v or percent %v", ErrInvalidParameter, equityBasis, riskPercent)
	}
	if riskPercent <= 0 {
		return 0, fmt.Errorf("%w: risk percent %v must be positive", ErrInvalidParameter, riskPercent)
	}
	if equityBasis < 0 {
		return 0, fmt.Errorf("%w: equity basis %v is negative", ErrInvalidParameter, equityBasis)
	}
	return equityBasis * riskPercent / 100, nil
}

// EquityBasis picks the equity figure named by basis.
func EquityBasis(t *equity.Tracker, basis string) (float64, error) {
	switch basis {
	case config.BasisCurrent:
		return t.CurrentEquity(), nil
	case config.BasisHighWaterMark:
		return t.HighWaterMark(), nil
	case config.BasisRealized:
		return t.RealizedEquity(), nil
	}
	return 0, fmt.Errorf("%w: unknown equity basis %q", ErrInvalidParameter, basis)
}

// floorLots floors a fractional lot count, never rounding up.
func floorLots(v float64) int {
	if !finite(v) || v <= 0 {
		return 0
	}
	return int(math.Floor(v * (1 + lotTolerance)))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
