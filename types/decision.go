package types

// Constraint labels the rule that produced a SizingDecision's lot count.
type Constraint string

const (
	ConstraintRisk        Constraint = "RISK"
	ConstraintVolatility  Constraint = "VOLATILITY"
	ConstraintMargin      Constraint = "MARGIN"
	ConstraintRatio       Constraint = "FIFTY_PERCENT_RULE"
	ConstraintGateBlocked Constraint = "GATE_BLOCKED"
	ConstraintMaxLots     Constraint = "MAX_LOTS"
	ConstraintMaxPyramids Constraint = "MAX_PYRAMIDS"
	ConstraintATRMove     Constraint = "ATR_MOVE"
	ConstraintExit        Constraint = "EXIT"
)

// SizingDecision is the output of one sizing computation. Values holds the
// intermediate (unfloored) constraint figures that were actually computed.
type SizingDecision struct {
	Lots       int                    `json:"lots"`
	Constraint Constraint             `json:"constraint"`
	Values     map[Constraint]float64 `json:"values,omitempty"`
	RiskAmount float64                `json:"risk_amount,omitempty"`
	// gate inputs, pyramids only
	AccumulatedProfit float64 `json:"accumulated_profit,omitempty"`
	BaseRisk          float64 `json:"base_risk,omitempty"`
	Reason            string  `json:"reason,omitempty"`
}

// Block returns a zero-lot decision for a short-circuiting check.
func Block(c Constraint, reason string) SizingDecision {
	return SizingDecision{Constraint: c, Reason: reason}
}

// Blocked reports whether the decision trades nothing.
func (d SizingDecision) Blocked() bool { return d.Lots <= 0 }
