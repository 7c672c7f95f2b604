package types

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"
)

var t0 = time.Date(2025, time.June, 2, 9, 30, 0, 0, time.UTC)

func validSignal() Signal {
	return Signal{
		Type:            BaseEntry,
		Instrument:      "BANK_NIFTY",
		Price:           50_000,
		Stop:            49_500,
		ATR:             400,
		EfficiencyRatio: 0.6,
		Timestamp:       t0,
	}
}

func TestSignalValidate(t *testing.T) {
	if err := validSignal().Validate(); err != nil {
		t.Fatalf("valid signal rejected: %v", err)
	}
	cases := map[string]func(*Signal){
		"unknown type":  func(s *Signal) { s.Type = "SCALE_OUT" },
		"no instrument": func(s *Signal) { s.Instrument = "  " },
		"no timestamp":  func(s *Signal) { s.Timestamp = time.Time{} },
		"nan atr":       func(s *Signal) { s.ATR = math.NaN() },
		"inf stop":      func(s *Signal) { s.Stop = math.Inf(1) },
		"zero price":    func(s *Signal) { s.Price = 0 },
	}
	for name, mutate := range cases {
		s := validSignal()
		mutate(&s)
		if err := s.Validate(); !errors.Is(err, ErrInvalidSignal) {
			t.Fatalf("%s: expected ErrInvalidSignal, got %v", name, err)
		}
	}
}

func TestSizingDecisionRoundTrip(t *testing.T) {
	d := SizingDecision{
		Lots:       2,
		Constraint: ConstraintRatio,
		Values: map[Constraint]float64{
			ConstraintMargin: 14.370370370370371,
			ConstraintRatio:  2.5,
			ConstraintRisk:   3.75,
		},
		RiskAmount:        65_625,
		AccumulatedProfit: 175_000,
		BaseRisk:          43_750,
	}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var got SizingDecision
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(d, got) {
		t.Fatalf("round trip changed decision:\nwant %+v\ngot  %+v", d, got)
	}
}

func TestBlockIsBlocked(t *testing.T) {
	d := Block(ConstraintGateBlocked, "profit below base risk")
	if !d.Blocked() || d.Lots != 0 || d.Constraint != ConstraintGateBlocked {
		t.Fatalf("unexpected block decision: %+v", d)
	}
}

func TestPositionCloseLifecycle(t *testing.T) {
	p := Position{EntryPrice: 50_000, Stop: 49_500, InitialLots: 5, Lots: 5, PointValue: 35, Status: StatusOpen}

	pnl, err := p.Close(2, 50_400, t0)
	if err != nil {
		t.Fatalf("partial close failed: %v", err)
	}
	// 400 × 2 × 35
	if pnl != 28_000 || p.Lots != 3 || p.Status != StatusPartial || !p.IsOpen() {
		t.Fatalf("after partial close: pnl %v %+v", pnl, p)
	}
	if _, err := p.Close(4, 50_400, t0); !errors.Is(err, ErrInvalidClose) {
		t.Fatalf("expected ErrInvalidClose for oversize close, got %v", err)
	}
	if _, err := p.Close(3, 49_900, t0.Add(time.Hour)); err != nil {
		t.Fatalf("final close failed: %v", err)
	}
	// 28,000 - 100 × 3 × 35
	if p.Status != StatusClosed || p.IsOpen() || p.RealizedPnL != 17_500 {
		t.Fatalf("after final close: %+v", p)
	}
	if !p.ExitTime.Equal(t0.Add(time.Hour)) || p.ExitPrice != 49_900 {
		t.Fatalf("exit not recorded: %+v", p)
	}
}
