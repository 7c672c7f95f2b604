package risk

import (
	"fmt"
	"math"

	"github.com/evdnx/gosizer/config"
	"github.com/evdnx/gosizer/instrument"
	"github.com/evdnx/gosizer/types"
)

// Sizer turns signals into lot counts. It holds configuration only and
// never mutates anything it is given.
type Sizer struct {
	cfg config.SizerConfig
}

// NewSizer validates cfg and returns a Sizer bound to it.
func NewSizer(cfg config.SizerConfig) (*Sizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sizer{cfg: cfg}, nil
}

// Config returns the parameters the sizer runs with.
func (s *Sizer) Config() config.SizerConfig { return s.cfg }

// SizeBaseEntry sizes the first leg of a new trade.
//
// Percent-risk: lots = (budget / ((price - stop) × point value)) × ER,
// capped by available margin / margin per lot.
// Percent-volatility: lots = budget / (ATR × point value), same margin cap.
// The result is floored, lifted to at least 1 and clamped to MaxLots.
func (s *Sizer) SizeBaseEntry(sig types.Signal, acct types.Account, equityBasis float64, inst instrument.Spec) (types.SizingDecision, error) {
	riskAmount, err := Budget(equityBasis, s.cfg.RiskPercent)
	if err != nil {
		return types.SizingDecision{}, err
	}
	if !finite(sig.EfficiencyRatio) || !finite(sig.ATR) || !finite(acct.AvailableMargin) {
		return types.SizingDecision{}, fmt.Errorf("%w: non-finite signal or account input", ErrInvalidParameter)
	}

	values := make(map[types.Constraint]float64, 2)
	var (
		lots  float64
		label types.Constraint
	)
	switch s.cfg.SizingMethod {
	case config.MethodPercentVolatility:
		if sig.ATR <= 0 || inst.PointValue <= 0 {
			return types.SizingDecision{
				Lots:       1,
				Constraint: types.ConstraintVolatility,
				RiskAmount: riskAmount,
				Reason:     "atr not positive, minimum lot",
			}, nil
		}
		lots = riskAmount / (sig.ATR * inst.PointValue)
		label = types.ConstraintVolatility
	default:
		stopDistance := sig.Price - sig.Stop
		if stopDistance <= 0 {
			return types.SizingDecision{}, fmt.Errorf("%w: stop %v not below entry %v", ErrInvalidStop, sig.Stop, sig.Price)
		}
		riskPerLot := stopDistance * inst.PointValue
		if riskPerLot <= 0 {
			return types.SizingDecision{}, fmt.Errorf("%w: %v", ErrInvalidRiskPerLot, riskPerLot)
		}
		lots = riskAmount / riskPerLot * clampUnit(sig.EfficiencyRatio)
		label = types.ConstraintRisk
	}
	values[label] = lots

	// margin per lot <= 0 leaves the margin constraint out
	if inst.MarginPerLot > 0 {
		marginLots := math.Max(acct.AvailableMargin, 0) / inst.MarginPerLot
		values[types.ConstraintMargin] = marginLots
		if marginLots < lots {
			lots = marginLots
			label = types.ConstraintMargin
		}
	}

	final := floorLots(lots)
	if final < 1 {
		final = 1
	}
	if final > s.cfg.MaxLots {
		final = s.cfg.MaxLots
		label = types.ConstraintMaxLots
	}
	return types.SizingDecision{
		Lots:       final,
		Constraint: label,
		Values:     values,
		RiskAmount: riskAmount,
	}, nil
}

func clampUnit(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
