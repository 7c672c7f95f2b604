// Package instrument holds the static trading constants of each tradable
// contract. Lot sizes of exchange-traded index futures are revised by
// circular, so an instrument may carry a dated lot-size timeline.
package instrument

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnknownInstrument is returned for lookups of an unregistered id.
var ErrUnknownInstrument = errors.New("unknown instrument")

// LotSizeStep is one entry of a lot-size timeline.
type LotSizeStep struct {
	EffectiveFrom time.Time `json:"effective_from" mapstructure:"effective_from"`
	LotSize       int       `json:"lot_size" mapstructure:"lot_size"`
}

// Config is the static parameter set of one instrument.
type Config struct {
	ID string `json:"id" mapstructure:"id"`
	// LotSize applies when the timeline is empty.
	LotSize int `json:"lot_size" mapstructure:"lot_size"`
	// PointValuePerUnit is the currency value of a one-point move for one
	// unit; the value per lot is LotSize × PointValuePerUnit.
	PointValuePerUnit float64 `json:"point_value_per_unit" mapstructure:"point_value_per_unit"`
	MarginPerLot      float64 `json:"margin_per_lot" mapstructure:"margin_per_lot"`
	// Timeline is ordered newest to oldest.
	Timeline []LotSizeStep `json:"timeline,omitempty" mapstructure:"timeline"`
	// DefaultLotSize answers dates older than every timeline step.
	DefaultLotSize int `json:"default_lot_size,omitempty" mapstructure:"default_lot_size"`
	// ATRPyramidThreshold overrides the global pyramid spacing (in ATRs)
	// when positive.
	ATRPyramidThreshold float64 `json:"atr_pyramid_threshold,omitempty" mapstructure:"atr_pyramid_threshold"`
}

// Spec is a Config resolved against one date.
type Spec struct {
	ID                  string  `json:"id"`
	LotSize             int     `json:"lot_size"`
	PointValue          float64 `json:"point_value"`
	MarginPerLot        float64 `json:"margin_per_lot"`
	ATRPyramidThreshold float64 `json:"atr_pyramid_threshold,omitempty"`
}

// Validate checks the invariants every instrument must hold.
func (c Config) Validate() error {
	if c.ID == "" {
		return errors.New("instrument id is empty")
	}
	if c.LotSize <= 0 && len(c.Timeline) == 0 {
		return fmt.Errorf("%s: lot size must be positive", c.ID)
	}
	if c.PointValuePerUnit <= 0 {
		return fmt.Errorf("%s: point value per unit must be positive", c.ID)
	}
	if c.MarginPerLot <= 0 {
		return fmt.Errorf("%s: margin per lot must be positive", c.ID)
	}
	if c.ATRPyramidThreshold < 0 {
		return fmt.Errorf("%s: atr pyramid threshold cannot be negative", c.ID)
	}
	for i, s := range c.Timeline {
		if s.LotSize <= 0 {
			return fmt.Errorf("%s: timeline step %d has non-positive lot size", c.ID, i)
		}
		if i > 0 && !s.EffectiveFrom.Before(c.Timeline[i-1].EffectiveFrom) {
			return fmt.Errorf("%s: timeline must be ordered newest to oldest", c.ID)
		}
	}
	if len(c.Timeline) > 0 && c.DefaultLotSize <= 0 {
		return fmt.Errorf("%s: dated instruments need a positive default lot size", c.ID)
	}
	return nil
}

// lotSize walks the timeline newest to oldest and returns the first step in
// force at asOf. A zero asOf means "now".
func (c Config) lotSize(asOf time.Time) int {
	if len(c.Timeline) == 0 {
		return c.LotSize
	}
	if asOf.IsZero() {
		return c.Timeline[0].LotSize
	}
	for _, s := range c.Timeline {
		if !s.EffectiveFrom.After(asOf) {
			return s.LotSize
		}
	}
	return c.DefaultLotSize
}

// Resolve pins the config to a date.
func (c Config) Resolve(asOf time.Time) Spec {
	lot := c.lotSize(asOf)
	return Spec{
		ID:                  c.ID,
		LotSize:             lot,
		PointValue:          float64(lot) * c.PointValuePerUnit,
		MarginPerLot:        c.MarginPerLot,
		ATRPyramidThreshold: c.ATRPyramidThreshold,
	}
}

// Registry is an immutable lookup table keyed by instrument id.
type Registry struct {
	byID map[string]Config
}

// NewRegistry validates and indexes the configs. Later entries with the same
// id replace earlier ones, which is how file overrides land on the defaults.
func NewRegistry(configs ...Config) (*Registry, error) {
	r := &Registry{byID: make(map[string]Config, len(configs))}
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		c.Timeline = append([]LotSizeStep(nil), c.Timeline...)
		r.byID[c.ID] = c
	}
	return r, nil
}

func (r *Registry) get(id string) (Config, error) {
	c, ok := r.byID[id]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, id)
	}
	return c, nil
}

// Resolve returns the instrument's parameters in force at asOf.
func (r *Registry) Resolve(id string, asOf time.Time) (Spec, error) {
	c, err := r.get(id)
	if err != nil {
		return Spec{}, err
	}
	return c.Resolve(asOf), nil
}

func (r *Registry) LotSize(id string, asOf time.Time) (int, error) {
	c, err := r.get(id)
	if err != nil {
		return 0, err
	}
	return c.lotSize(asOf), nil
}

func (r *Registry) PointValue(id string, asOf time.Time) (float64, error) {
	s, err := r.Resolve(id, asOf)
	if err != nil {
		return 0, err
	}
	return s.PointValue, nil
}

func (r *Registry) MarginPerLot(id string) (float64, error) {
	c, err := r.get(id)
	if err != nil {
		return 0, err
	}
	return c.MarginPerLot, nil
}

// IDs lists the registered instruments in lexical order.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.byID))
	for id := range r.byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
