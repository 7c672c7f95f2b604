package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func TestValidateSuccess(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateFailsOnBadRisk(t *testing.T) {
	cfg := Default()
	cfg.RiskPercent = -1 // invalid
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for negative RiskPercent")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.RiskPercent = 0
	cfg.EquityBasis = "peak"
	cfg.PyramidSizeRatio = 1.5
	cfg.StopMode = "chandelier"
	err := cfg.Validate()
	if got := len(multierr.Errors(err)); got != 4 {
		t.Fatalf("expected 4 aggregated errors, got %d: %v", got, err)
	}
}

func TestValidateATRTrailingNeedsMultiplier(t *testing.T) {
	cfg := Default()
	cfg.StopMode = StopATRTrailing
	cfg.ATRTrailMultiplier = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero ATR multiplier")
	}
}

func TestValidateLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown log level")
	}
	cfg.LogLevel = "warn"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("warn should be accepted, got %v", err)
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestLoadYAMLWithInstrumentOverride(t *testing.T) {
	p := writeFile(t, "sizer.yaml", `
initial_capital: 5000000
risk_percent: 1.5
equity_basis: High_Water_Mark
max_pyramids: 5
stop_mode: atr_trailing
log_level: WARN
instruments:
  - id: BANK_NIFTY
    point_value_per_unit: 1
    margin_per_lot: 300000
    default_lot_size: 100
    atr_pyramid_threshold: 0.6
    timeline:
      - effective_from: "2025-04-25"
        lot_size: 35
      - effective_from: "2023-07-01"
        lot_size: 15
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log level warn, got %q", cfg.LogLevel)
	}
	if cfg.InitialCapital != 5_000_000 || cfg.RiskPercent != 1.5 || cfg.MaxPyramids != 5 {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if cfg.EquityBasis != BasisHighWaterMark {
		t.Fatalf("expected normalised basis, got %q", cfg.EquityBasis)
	}
	// untouched keys keep their defaults
	if cfg.PyramidSizeRatio != 0.5 || cfg.MaxLots != 100 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	reg, err := cfg.Registry()
	if err != nil {
		t.Fatalf("Registry failed: %v", err)
	}
	m, _ := reg.MarginPerLot("BANK_NIFTY")
	if m != 300_000 {
		t.Fatalf("expected overridden margin, got %v", m)
	}
	lot, _ := reg.LotSize("BANK_NIFTY", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if lot != 15 {
		t.Fatalf("expected 15 from the file timeline, got %d", lot)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GOSIZER_RISK_PERCENT", "0.75")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.RiskPercent != 0.75 {
		t.Fatalf("expected env override 0.75, got %v", cfg.RiskPercent)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	p := writeFile(t, "bad.yaml", "risk_percent: 80\nsizing_method: kelly\n")
	_, err := Load(p)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "SizingMethod") {
		t.Fatalf("expected SizingMethod in error, got %v", err)
	}
}
