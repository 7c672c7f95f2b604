package portfolio

import (
	"time"

	"github.com/evdnx/gosizer/types"
)

// Trade is one logical position: a base leg plus its pyramid legs, opened
// and exited together.
type Trade struct {
	ID         string           `json:"id"`
	Instrument string           `json:"instrument"`
	OpenedAt   time.Time        `json:"opened_at"`
	ClosedAt   time.Time        `json:"closed_at,omitzero"`
	Legs       []types.Position `json:"legs"`
}

// IsOpen reports whether any leg still carries lots.
func (t *Trade) IsOpen() bool {
	for _, l := range t.Legs {
		if l.IsOpen() {
			return true
		}
	}
	return false
}

// OpenLots sums the lots of open legs.
func (t *Trade) OpenLots() int {
	n := 0
	for _, l := range t.Legs {
		if l.IsOpen() {
			n += l.Lots
		}
	}
	return n
}

// UnrealizedPnL marks every open leg at price.
func (t *Trade) UnrealizedPnL(price float64) float64 {
	var pnl float64
	for _, l := range t.Legs {
		pnl += l.UnrealizedPnL(price)
	}
	return pnl
}

// RealizedPnL sums what closed (or partially closed) legs have locked in.
func (t *Trade) RealizedPnL() float64 {
	var pnl float64
	for _, l := range t.Legs {
		pnl += l.RealizedPnL
	}
	return pnl
}

func (t *Trade) clone() Trade {
	c := *t
	c.Legs = append([]types.Position(nil), t.Legs...)
	return c
}
