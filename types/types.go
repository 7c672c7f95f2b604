package types

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrInvalidSignal is returned by Signal.Validate.
var ErrInvalidSignal = errors.New("invalid signal")

type SignalType string

const (
	BaseEntry SignalType = "BASE_ENTRY"
	Pyramid   SignalType = "PYRAMID"
	Exit      SignalType = "EXIT"
	// Price is a mark-only update: trail stops and close stopped-out legs,
	// without sizing anything.
	Price SignalType = "PRICE"
)

// Signal is one alert delivered by the charting side. Field names follow the
// alert payload.
type Signal struct {
	Type            SignalType `json:"type"`
	Instrument      string     `json:"instrument"`
	Price           float64    `json:"price"`
	Stop            float64    `json:"stop"`
	ATR             float64    `json:"atr"`
	EfficiencyRatio float64    `json:"efficiency_ratio"`
	Timestamp       time.Time  `json:"timestamp"`
}

// Validate checks the shape of the signal, not its trading sense. A stop
// above price is a sizing error, reported by the risk package.
func (s Signal) Validate() error {
	switch s.Type {
	case BaseEntry, Pyramid, Exit, Price:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSignal, s.Type)
	}
	if strings.TrimSpace(s.Instrument) == "" {
		return fmt.Errorf("%w: empty instrument", ErrInvalidSignal)
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidSignal)
	}
	for name, v := range map[string]float64{
		"price":            s.Price,
		"stop":             s.Stop,
		"atr":              s.ATR,
		"efficiency_ratio": s.EfficiencyRatio,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidSignal, name)
		}
	}
	if s.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidSignal)
	}
	return nil
}

// Account is the broker-side view refreshed by the caller before each signal.
type Account struct {
	Equity          float64 `json:"equity"`
	AvailableMargin float64 `json:"available_margin"`
}

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Order is what the engine hands to an executor once a decision yields lots.
type Order struct {
	ID         string    `json:"id"`
	Instrument string    `json:"instrument"`
	Side       Side      `json:"side"`
	Lots       int       `json:"lots"`
	Price      float64   `json:"price"` // limit price; 0 = market
	Time       time.Time `json:"time"`
	// meta
	Comment string `json:"comment,omitempty"`
}

// Fill confirms how much of an order actually traded.
type Fill struct {
	OrderID string    `json:"order_id"`
	Lots    int       `json:"lots"`
	Price   float64   `json:"price"`
	Time    time.Time `json:"time"`
}
