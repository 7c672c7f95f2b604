package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidClose is returned when a close asks for more lots than are open.
var ErrInvalidClose = errors.New("invalid close")

type PositionStatus string

const (
	StatusOpen    PositionStatus = "open"
	StatusPartial PositionStatus = "partial"
	StatusClosed  PositionStatus = "closed"
)

// Position is one leg of a trade: the base entry (PyramidIndex 0) or one
// pyramid level. Legs of the same trade share TradeID.
//
// PointValue is captured at entry so a later lot-size change never
// re-prices an open leg.
type Position struct {
	ID           string         `json:"id"`
	TradeID      string         `json:"trade_id"`
	Instrument   string         `json:"instrument"`
	PyramidIndex int            `json:"pyramid_index"`
	EntryPrice   float64        `json:"entry_price"`
	EntryTime    time.Time      `json:"entry_time"`
	InitialStop  float64        `json:"initial_stop"`
	Stop         float64        `json:"stop"`
	InitialLots  int            `json:"initial_lots"`
	Lots         int            `json:"lots"`
	PointValue   float64        `json:"point_value"`
	HighestPrice float64        `json:"highest_price"`
	Status       PositionStatus `json:"status"`
	RealizedPnL  float64        `json:"realized_pnl"`
	ExitPrice    float64        `json:"exit_price,omitempty"`
	ExitTime     time.Time      `json:"exit_time,omitzero"`
}

// IsOpen reports whether the leg still carries lots.
func (p Position) IsOpen() bool {
	return p.Status != StatusClosed && p.Lots > 0
}

// UnrealizedPnL marks the open lots at price.
func (p Position) UnrealizedPnL(price float64) float64 {
	if !p.IsOpen() {
		return 0
	}
	return (price - p.EntryPrice) * float64(p.Lots) * p.PointValue
}

// Close takes lots off the leg at price and returns the P&L locked in by
// this close. Closing fewer lots than are open leaves the leg partial.
func (p *Position) Close(lots int, price float64, at time.Time) (float64, error) {
	if lots <= 0 || lots > p.Lots {
		return 0, fmt.Errorf("%w: %d lots requested, %d open", ErrInvalidClose, lots, p.Lots)
	}
	pnl := (price - p.EntryPrice) * float64(lots) * p.PointValue
	p.Lots -= lots
	p.RealizedPnL += pnl
	p.ExitPrice = price
	p.ExitTime = at
	if p.Lots == 0 {
		p.Status = StatusClosed
	} else {
		p.Status = StatusPartial
	}
	return pnl, nil
}
