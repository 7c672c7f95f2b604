// Package equity tracks the account's capital across a run.
//
// Two figures matter: realized equity (initial capital plus closed-trade
// P&L) and current equity (realized plus open mark-to-market). The
// high-water-mark follows realized equity only. Open gains never raise it.
package equity

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for NaN or infinite inputs.
var ErrInvalidAmount = errors.New("invalid amount")

// State is the serialisable form of a Tracker.
type State struct {
	InitialCapital decimal.Decimal `json:"initial_capital"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnL  decimal.Decimal `json:"unrealized_pnl"`
	HighWaterMark  decimal.Decimal `json:"high_water_mark"`
}

func (s State) RealizedEquity() decimal.Decimal {
	return s.InitialCapital.Add(s.RealizedPnL)
}

func (s State) CurrentEquity() decimal.Decimal {
	return s.RealizedEquity().Add(s.UnrealizedPnL)
}

// AccumulatedProfit is current equity over initial capital, open legs
// included.
func (s State) AccumulatedProfit() float64 {
	return s.CurrentEquity().Sub(s.InitialCapital).InexactFloat64()
}

// Tracker is not safe for concurrent use; the owner serialises access.
type Tracker struct {
	st State
}

// NewTracker starts a run with the high-water-mark at initial capital.
func NewTracker(initialCapital float64) (*Tracker, error) {
	if err := checkFinite(initialCapital); err != nil {
		return nil, err
	}
	if initialCapital <= 0 {
		return nil, fmt.Errorf("%w: initial capital must be positive", ErrInvalidAmount)
	}
	c := decimal.NewFromFloat(initialCapital)
	return &Tracker{st: State{
		InitialCapital: c,
		RealizedPnL:    decimal.Zero,
		UnrealizedPnL:  decimal.Zero,
		HighWaterMark:  c,
	}}, nil
}

// Restore rebuilds a tracker from a snapshot. A mark below realized equity
// or initial capital cannot be produced by RecordRealizedPnL, so it is
// raised to the larger of the two.
func Restore(s State) (*Tracker, error) {
	if !s.InitialCapital.IsPositive() {
		return nil, fmt.Errorf("%w: initial capital must be positive", ErrInvalidAmount)
	}
	s.HighWaterMark = decimal.Max(s.HighWaterMark, s.InitialCapital, s.RealizedEquity())
	return &Tracker{st: s}, nil
}

// RecordRealizedPnL books one closed trade's net result and ratchets the
// high-water-mark against realized equity.
func (t *Tracker) RecordRealizedPnL(delta float64) error {
	if err := checkFinite(delta); err != nil {
		return err
	}
	t.st.RealizedPnL = t.st.RealizedPnL.Add(decimal.NewFromFloat(delta))
	if re := t.st.RealizedEquity(); re.GreaterThan(t.st.HighWaterMark) {
		t.st.HighWaterMark = re
	}
	return nil
}

// RecordUnrealizedPnL replaces the open mark-to-market total.
func (t *Tracker) RecordUnrealizedPnL(total float64) error {
	if err := checkFinite(total); err != nil {
		return err
	}
	t.st.UnrealizedPnL = decimal.NewFromFloat(total)
	return nil
}

func (t *Tracker) InitialCapital() float64 { return t.st.InitialCapital.InexactFloat64() }
func (t *Tracker) RealizedPnL() float64    { return t.st.RealizedPnL.InexactFloat64() }
func (t *Tracker) UnrealizedPnL() float64  { return t.st.UnrealizedPnL.InexactFloat64() }
func (t *Tracker) RealizedEquity() float64 { return t.st.RealizedEquity().InexactFloat64() }
func (t *Tracker) CurrentEquity() float64  { return t.st.CurrentEquity().InexactFloat64() }
func (t *Tracker) HighWaterMark() float64  { return t.st.HighWaterMark.InexactFloat64() }

func (t *Tracker) AccumulatedProfit() float64 { return t.st.AccumulatedProfit() }

// Drawdown is the distance of realized equity below the high-water-mark.
func (t *Tracker) Drawdown() float64 {
	return t.st.HighWaterMark.Sub(t.st.RealizedEquity()).InexactFloat64()
}

// DrawdownPct is Drawdown as a percentage of the high-water-mark.
func (t *Tracker) DrawdownPct() float64 {
	return t.st.HighWaterMark.Sub(t.st.RealizedEquity()).
		Div(t.st.HighWaterMark).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()
}

// State returns a copy of the ledger.
func (t *Tracker) State() State { return t.st }

func checkFinite(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidAmount, v)
	}
	return nil
}
