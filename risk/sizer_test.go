package risk

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/evdnx/gosizer/config"
	"github.com/evdnx/gosizer/equity"
	"github.com/evdnx/gosizer/instrument"
	"github.com/evdnx/gosizer/types"
)

var bankNifty = instrument.Spec{
	ID:           instrument.BankNifty,
	LotSize:      35,
	PointValue:   35,
	MarginPerLot: 270_000,
}

func newSizer(t *testing.T, mutate func(*config.SizerConfig)) *Sizer {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewSizer(cfg)
	if err != nil {
		t.Fatalf("NewSizer failed: %v", err)
	}
	return s
}

func baseSignal(price, stop, atr, er float64) types.Signal {
	return types.Signal{
		Type:            types.BaseEntry,
		Instrument:      instrument.BankNifty,
		Price:           price,
		Stop:            stop,
		ATR:             atr,
		EfficiencyRatio: er,
		Timestamp:       time.Date(2025, time.June, 2, 15, 15, 0, 0, time.UTC),
	}
}

func TestBudget(t *testing.T) {
	got, err := Budget(10_000_000, 2)
	if err != nil || got != 200_000 {
		t.Fatalf("Budget = %v, %v; want 200000", got, err)
	}
	for _, pct := range []float64{-1, 0, math.NaN()} {
		if _, err := Budget(10_000_000, pct); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("pct %v: expected ErrInvalidParameter, got %v", pct, err)
		}
	}
	if _, err := Budget(-5, 2); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("negative basis: expected ErrInvalidParameter, got %v", err)
	}
}

func TestEquityBasisSelectsFigure(t *testing.T) {
	tr, _ := equity.NewTracker(1_000_000)
	_ = tr.RecordRealizedPnL(100_000)
	_ = tr.RecordRealizedPnL(-50_000)
	_ = tr.RecordUnrealizedPnL(300_000)
	cases := map[string]float64{
		config.BasisCurrent:       1_350_000,
		config.BasisHighWaterMark: 1_100_000,
		config.BasisRealized:      1_050_000,
	}
	for basis, want := range cases {
		got, err := EquityBasis(tr, basis)
		if err != nil || got != want {
			t.Fatalf("%s: got %v, %v; want %v", basis, got, err, want)
		}
	}
	if _, err := EquityBasis(tr, "peak"); err == nil {
		t.Fatal("expected error for unknown basis")
	}
}

// 1,00,00,000 × 2 % = 2,00,000 at risk; 650 points × 35 = 22,750 per lot;
// 8.79 lots × ER 0.85 = 7.47 → 7.
func TestSizeBaseEntryPercentRisk(t *testing.T) {
	s := newSizer(t, nil)
	d, err := s.SizeBaseEntry(baseSignal(58_000, 57_350, 400, 0.85),
		types.Account{AvailableMargin: 5_000_000_000}, 10_000_000, bankNifty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Lots != 7 {
		t.Fatalf("expected 7 lots, got %d", d.Lots)
	}
	if d.Constraint != types.ConstraintRisk {
		t.Fatalf("expected RISK, got %s", d.Constraint)
	}
	if math.Abs(d.Values[types.ConstraintRisk]-7.4725) > 1e-3 {
		t.Fatalf("unexpected risk-based lots %v", d.Values[types.ConstraintRisk])
	}
	if d.RiskAmount != 200_000 {
		t.Fatalf("unexpected risk amount %v", d.RiskAmount)
	}
}

func TestSizeBaseEntryMarginBinds(t *testing.T) {
	s := newSizer(t, nil)
	// 4.2 lots of margin against 7.47 risk lots
	d, err := s.SizeBaseEntry(baseSignal(58_000, 57_350, 400, 0.85),
		types.Account{AvailableMargin: 1_134_000}, 10_000_000, bankNifty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Lots != 4 || d.Constraint != types.ConstraintMargin {
		t.Fatalf("expected 4 lots MARGIN, got %d %s", d.Lots, d.Constraint)
	}
}

func TestSizeBaseEntryMinimumOneLot(t *testing.T) {
	s := newSizer(t, nil)
	d, err := s.SizeBaseEntry(baseSignal(58_000, 57_350, 400, 0),
		types.Account{AvailableMargin: 0}, 10_000_000, bankNifty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Lots != 1 {
		t.Fatalf("expected floor of 1 lot, got %d", d.Lots)
	}
}

func TestSizeBaseEntryClampsToMaxLots(t *testing.T) {
	s := newSizer(t, func(c *config.SizerConfig) { c.MaxLots = 5 })
	d, err := s.SizeBaseEntry(baseSignal(58_000, 57_990, 400, 1),
		types.Account{AvailableMargin: 5_000_000_000}, 10_000_000, bankNifty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Lots != 5 || d.Constraint != types.ConstraintMaxLots {
		t.Fatalf("expected 5 lots MAX_LOTS, got %d %s", d.Lots, d.Constraint)
	}
}

func TestSizeBaseEntryInvalidStop(t *testing.T) {
	s := newSizer(t, nil)
	for _, st := range []float64{58_000, 58_100} {
		_, err := s.SizeBaseEntry(baseSignal(58_000, st, 400, 0.85),
			types.Account{AvailableMargin: 1e9}, 10_000_000, bankNifty)
		if !errors.Is(err, ErrInvalidStop) {
			t.Fatalf("stop %v: expected ErrInvalidStop, got %v", st, err)
		}
	}
}

func TestSizeBaseEntryInvalidRiskPerLot(t *testing.T) {
	s := newSizer(t, nil)
	flat := bankNifty
	flat.PointValue = 0
	_, err := s.SizeBaseEntry(baseSignal(58_000, 57_350, 400, 0.85),
		types.Account{AvailableMargin: 1e9}, 10_000_000, flat)
	if !errors.Is(err, ErrInvalidRiskPerLot) {
		t.Fatalf("expected ErrInvalidRiskPerLot, got %v", err)
	}
}

func TestSizeBaseEntryRejectsBadRiskPercent(t *testing.T) {
	s := newSizer(t, nil)
	_, err := s.SizeBaseEntry(baseSignal(58_000, 57_350, 400, 0.85),
		types.Account{AvailableMargin: 1e9}, -1, bankNifty)
	if !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestSizeBaseEntryPercentVolatility(t *testing.T) {
	s := newSizer(t, func(c *config.SizerConfig) { c.SizingMethod = config.MethodPercentVolatility })
	// 2,00,000 / (400 × 35) = 14.28 → 14
	d, err := s.SizeBaseEntry(baseSignal(58_000, 57_350, 400, 0.85),
		types.Account{AvailableMargin: 5_000_000_000}, 10_000_000, bankNifty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Lots != 14 || d.Constraint != types.ConstraintVolatility {
		t.Fatalf("expected 14 lots VOLATILITY, got %d %s", d.Lots, d.Constraint)
	}
}

func TestSizeBaseEntryZeroATRFallsBackToOneLot(t *testing.T) {
	s := newSizer(t, func(c *config.SizerConfig) { c.SizingMethod = config.MethodPercentVolatility })
	d, err := s.SizeBaseEntry(baseSignal(58_000, 57_350, 0, 0.85),
		types.Account{AvailableMargin: 5_000_000_000}, 10_000_000, bankNifty)
	if err != nil {
		t.Fatalf("ATR=0 must not error, got %v", err)
	}
	if d.Lots != 1 {
		t.Fatalf("expected 1 lot, got %d", d.Lots)
	}
}

// Lots are floored: 2.999 risk lots never become 3.
func TestSizeBaseEntryFloorsNeverRounds(t *testing.T) {
	s := newSizer(t, nil)
	// risk per lot 100 × 35 = 3,500; budget 10,496.5 → 2.999 lots
	d, err := s.SizeBaseEntry(baseSignal(58_000, 57_900, 400, 1),
		types.Account{AvailableMargin: 1e9}, 524_825, bankNifty)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Lots != 2 {
		t.Fatalf("expected floor to 2, got %d", d.Lots)
	}
}

func TestFloorLotsTolerance(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{2.9999999999999996, 3}, // float noise
		{0.3 / 0.1, 3},
		{6.9999999995, 6},
		{2.999, 2},
		{0, 0},
		{-1, 0},
	}
	for _, c := range cases {
		if got := floorLots(c.in); got != c.want {
			t.Fatalf("floorLots(%v): expected %d, got %d", c.in, c.want, got)
		}
	}
}
