package risk

import (
	"fmt"
	"math"

	"github.com/evdnx/gosizer/equity"
	"github.com/evdnx/gosizer/instrument"
	"github.com/evdnx/gosizer/stop"
	"github.com/evdnx/gosizer/types"
)

// PyramidRequest is everything EvaluatePyramid reads. Positions are the
// legs of the open trade; closed legs are ignored.
type PyramidRequest struct {
	Positions       []types.Position
	Equity          equity.State
	Instrument      instrument.Spec
	Price           float64
	CandidateStop   float64
	ATR             float64
	AvailableMargin float64
}

// BaseRisk is the open risk of the base leg at its current stop, floored at
// zero once the stop has trailed past entry.
func BaseRisk(base types.Position) float64 {
	return math.Max(stop.CurrentRisk(base), 0)
}

// EvaluatePyramid decides whether another leg may be added and how big.
//
// Checks run in order and the first failure returns zero lots:
// pyramid count, ATR spacing since the last entry, then the profit gate
// (accumulated profit must exceed the base leg's current risk). With the
// gate open the size is the smallest of the margin, ratio and risk-budget
// constraints; ties go to margin, then ratio, then risk.
func (s *Sizer) EvaluatePyramid(req PyramidRequest) types.SizingDecision {
	base, last, ok := splitTrade(req.Positions)
	if !ok {
		return types.Block(types.ConstraintGateBlocked, "no open base position")
	}

	level := last.PyramidIndex + 1
	if level > s.cfg.MaxPyramids {
		return types.Block(types.ConstraintMaxPyramids,
			fmt.Sprintf("level %d exceeds max pyramids %d", level, s.cfg.MaxPyramids))
	}

	threshold := s.cfg.ATRPyramidThreshold
	if req.Instrument.ATRPyramidThreshold > 0 {
		threshold = req.Instrument.ATRPyramidThreshold
	}
	if threshold > 0 {
		if !finite(req.ATR) || req.ATR <= 0 {
			return types.Block(types.ConstraintATRMove, "atr not positive, move cannot be measured")
		}
		move := (req.Price - last.EntryPrice) / req.ATR
		if move < threshold {
			d := types.Block(types.ConstraintATRMove,
				fmt.Sprintf("moved %.2f ATR since last entry, need %.2f", move, threshold))
			d.Values = map[types.Constraint]float64{types.ConstraintATRMove: move}
			return d
		}
	}

	profit := req.Equity.AccumulatedProfit()
	baseRisk := BaseRisk(base)
	if profit <= baseRisk {
		d := types.Block(types.ConstraintGateBlocked, "accumulated profit does not cover base risk")
		d.AccumulatedProfit = profit
		d.BaseRisk = baseRisk
		return d
	}

	values := make(map[types.Constraint]float64, 3)
	lots := math.MaxInt
	label := types.ConstraintGateBlocked
	consider := func(c types.Constraint, raw float64) {
		values[c] = raw
		if n := floorLots(raw); n < lots {
			lots = n
			label = c
		}
	}

	// +Inf margin and margin per lot <= 0 leave the margin constraint out
	if mpl := req.Instrument.MarginPerLot; mpl > 0 && !math.IsInf(req.AvailableMargin, 1) {
		if math.IsNaN(req.AvailableMargin) {
			d := types.Block(types.ConstraintMargin, "available margin is not a number")
			d.AccumulatedProfit = profit
			d.BaseRisk = baseRisk
			return d
		}
		free := req.AvailableMargin - marginUsed(req.Positions, mpl)
		consider(types.ConstraintMargin, free/mpl)
	}

	consider(types.ConstraintRatio, float64(base.InitialLots)*math.Pow(s.cfg.PyramidSizeRatio, float64(level)))

	surplus := profit - baseRisk
	riskPerLot := (req.Price - req.CandidateStop) * req.Instrument.PointValue
	if !finite(riskPerLot) || riskPerLot <= 0 {
		riskPerLot = 1
	}
	riskAmount := surplus * s.cfg.ReserveFraction
	consider(types.ConstraintRisk, riskAmount/riskPerLot)

	if lots < 0 {
		lots = 0
	}
	return types.SizingDecision{
		Lots:              lots,
		Constraint:        label,
		Values:            values,
		RiskAmount:        riskAmount,
		AccumulatedProfit: profit,
		BaseRisk:          baseRisk,
	}
}

// splitTrade finds the open base leg and the most recent entry, which may
// already have been stopped out.
func splitTrade(legs []types.Position) (base, last types.Position, ok bool) {
	found := false
	for _, p := range legs {
		if p.PyramidIndex == 0 && p.IsOpen() {
			base, ok = p, true
		}
		if !found || p.PyramidIndex > last.PyramidIndex {
			last, found = p, true
		}
	}
	return base, last, ok
}

func marginUsed(legs []types.Position, perLot float64) float64 {
	var used float64
	for _, p := range legs {
		if p.IsOpen() {
			used += float64(p.Lots) * perLot
		}
	}
	return used
}
