package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/evdnx/gosizer/instrument"
)

// EnvPrefix namespaces environment overrides, e.g. GOSIZER_RISK_PERCENT.
const EnvPrefix = "GOSIZER"

// Load reads a config file (format from its extension), applies environment
// overrides on top and validates the result. An empty path loads defaults
// plus environment only.
func Load(path string) (SizerConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return SizerConfig{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg SizerConfig
	hook := viper.DecodeHook(mapstructure.DecodeHookFuncType(effectiveDateHook))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return SizerConfig{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return SizerConfig{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("initial_capital", d.InitialCapital)
	v.SetDefault("risk_percent", d.RiskPercent)
	v.SetDefault("equity_basis", d.EquityBasis)
	v.SetDefault("sizing_method", d.SizingMethod)
	v.SetDefault("max_lots", d.MaxLots)
	v.SetDefault("pyramid_size_ratio", d.PyramidSizeRatio)
	v.SetDefault("reserve_fraction", d.ReserveFraction)
	v.SetDefault("max_pyramids", d.MaxPyramids)
	v.SetDefault("atr_pyramid_threshold", d.ATRPyramidThreshold)
	v.SetDefault("stop_mode", d.StopMode)
	v.SetDefault("atr_trail_multiplier", d.ATRTrailMultiplier)
	v.SetDefault("log_level", d.LogLevel)
}

// effectiveDateHook decodes timeline dates written as plain strings.
func effectiveDateHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if f.Kind() != reflect.String || t != reflect.TypeOf(time.Time{}) {
		return data, nil
	}
	return instrument.ParseEffectiveDate(data.(string))
}
