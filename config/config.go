package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/evdnx/gosizer/instrument"
)

// Equity bases for the risk budget.
const (
	BasisCurrent       = "current"
	BasisHighWaterMark = "high_water_mark"
	BasisRealized      = "realized"
)

// Sizing methods for base entries.
const (
	MethodPercentRisk       = "percent_risk"
	MethodPercentVolatility = "percent_volatility"
)

// Stop modes.
const (
	StopFixedTrend  = "fixed_trend"
	StopTrailToNext = "trail_to_next"
	StopATRTrailing = "atr_trailing"
)

// SizerConfig holds every tunable of the sizing core.
type SizerConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`

	// Risk parameters
	RiskPercent  float64 `mapstructure:"risk_percent"`  // e.g. 2 = 2 % of the basis
	EquityBasis  string  `mapstructure:"equity_basis"`  // current | high_water_mark | realized
	SizingMethod string  `mapstructure:"sizing_method"` // percent_risk | percent_volatility
	MaxLots      int     `mapstructure:"max_lots"`      // clamp on base entries

	// Pyramiding
	PyramidSizeRatio    float64 `mapstructure:"pyramid_size_ratio"`    // default 0.5
	ReserveFraction     float64 `mapstructure:"reserve_fraction"`      // share of the profit surplus put at risk
	MaxPyramids         int     `mapstructure:"max_pyramids"`          // additional levels beyond the base
	ATRPyramidThreshold float64 `mapstructure:"atr_pyramid_threshold"` // ATRs of move required since last entry

	// Stops
	StopMode           string  `mapstructure:"stop_mode"`
	ATRTrailMultiplier float64 `mapstructure:"atr_trail_multiplier"`

	LogLevel string `mapstructure:"log_level"`

	// Instruments override or extend instrument.Defaults by id.
	Instruments []instrument.Config `mapstructure:"instruments"`
}

// Default returns the documented defaults.
func Default() SizerConfig {
	return SizerConfig{
		InitialCapital:      10_000_000,
		RiskPercent:         2,
		EquityBasis:         BasisCurrent,
		SizingMethod:        MethodPercentRisk,
		MaxLots:             100,
		PyramidSizeRatio:    0.5,
		ReserveFraction:     0.5,
		MaxPyramids:         3,
		ATRPyramidThreshold: 0.75,
		StopMode:            StopFixedTrend,
		ATRTrailMultiplier:  2,
		LogLevel:            "info",
	}
}

// Validate checks every field and reports all problems at once, so a
// broken config file is fixed in one pass.
func (c *SizerConfig) Validate() error {
	var err error
	if !finite(c.InitialCapital) || c.InitialCapital <= 0 {
		err = multierr.Append(err, fmt.Errorf("InitialCapital (%f) must be positive", c.InitialCapital))
	}
	if !finite(c.RiskPercent) || c.RiskPercent <= 0 || c.RiskPercent > 50 {
		err = multierr.Append(err, fmt.Errorf("RiskPercent (%f) must be >0 and <=50", c.RiskPercent))
	}
	switch c.EquityBasis {
	case BasisCurrent, BasisHighWaterMark, BasisRealized:
	default:
		err = multierr.Append(err, fmt.Errorf("EquityBasis %q is not one of current, high_water_mark, realized", c.EquityBasis))
	}
	switch c.SizingMethod {
	case MethodPercentRisk, MethodPercentVolatility:
	default:
		err = multierr.Append(err, fmt.Errorf("SizingMethod %q is not one of percent_risk, percent_volatility", c.SizingMethod))
	}
	if c.MaxLots <= 0 {
		err = multierr.Append(err, errors.New("MaxLots must be positive"))
	}
	if !finite(c.PyramidSizeRatio) || c.PyramidSizeRatio <= 0 || c.PyramidSizeRatio > 1 {
		err = multierr.Append(err, fmt.Errorf("PyramidSizeRatio (%f) must be >0 and <=1", c.PyramidSizeRatio))
	}
	if !finite(c.ReserveFraction) || c.ReserveFraction <= 0 || c.ReserveFraction > 1 {
		err = multierr.Append(err, fmt.Errorf("ReserveFraction (%f) must be >0 and <=1", c.ReserveFraction))
	}
	if c.MaxPyramids < 0 {
		err = multierr.Append(err, errors.New("MaxPyramids cannot be negative"))
	}
	if !finite(c.ATRPyramidThreshold) || c.ATRPyramidThreshold < 0 {
		err = multierr.Append(err, fmt.Errorf("ATRPyramidThreshold (%f) cannot be negative", c.ATRPyramidThreshold))
	}
	switch c.StopMode {
	case StopFixedTrend, StopTrailToNext:
	case StopATRTrailing:
		if !finite(c.ATRTrailMultiplier) || c.ATRTrailMultiplier <= 0 {
			err = multierr.Append(err, errors.New("ATRTrailMultiplier must be positive for atr_trailing"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("StopMode %q is not one of fixed_trend, trail_to_next, atr_trailing", c.StopMode))
	}
	if _, e := zapcore.ParseLevel(c.LogLevel); e != nil {
		err = multierr.Append(err, fmt.Errorf("LogLevel %q is not a zap level", c.LogLevel))
	}
	for _, ic := range c.Instruments {
		if e := ic.Validate(); e != nil {
			err = multierr.Append(err, e)
		}
	}
	return err
}

// Registry builds the instrument registry: defaults first, then overrides.
func (c *SizerConfig) Registry() (*instrument.Registry, error) {
	return instrument.NewRegistry(append(instrument.Defaults(), c.Instruments...)...)
}

// normalize lower-cases the enum-like fields so "ATR_Trailing" in a file
// still matches.
func (c *SizerConfig) normalize() {
	c.EquityBasis = strings.ToLower(strings.TrimSpace(c.EquityBasis))
	c.SizingMethod = strings.ToLower(strings.TrimSpace(c.SizingMethod))
	c.StopMode = strings.ToLower(strings.TrimSpace(c.StopMode))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
