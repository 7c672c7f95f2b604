// Package stop moves trailing stops and measures the risk left on open legs.
//
// Stops only ratchet up (long-only system). Each stop mode proposes a
// candidate per leg; UpdateStop decides whether the candidate is an
// improvement.
package stop

import (
	"fmt"
	"math"
	"strings"

	"github.com/evdnx/gosizer/types"
)

// Mode selects how candidates are proposed.
type Mode int

const (
	// FixedTrend follows the stop carried by the signal (the trend line).
	FixedTrend Mode = iota
	// TrailToNext lifts each leg to the initial stop of the entry after it.
	TrailToNext
	// ATRTrailing hangs the stop a multiple of ATR below the highest price
	// seen since entry.
	ATRTrailing
)

func (m Mode) String() string {
	switch m {
	case FixedTrend:
		return "fixed_trend"
	case TrailToNext:
		return "trail_to_next"
	case ATRTrailing:
		return "atr_trailing"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps a config string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed_trend", "":
		return FixedTrend, nil
	case "trail_to_next":
		return TrailToNext, nil
	case "atr_trailing":
		return ATRTrailing, nil
	}
	return 0, fmt.Errorf("unknown stop mode %q", s)
}

// Input is the per-signal market data a trailer may use.
type Input struct {
	Price      float64
	SignalStop float64
	ATR        float64
}

// Trailer proposes a stop for one leg of a trade. A non-positive candidate
// means "no proposal".
type Trailer interface {
	Mode() Mode
	Candidate(leg types.Position, trade []types.Position, in Input) float64
}

// NewTrailer returns the trailer for mode. atrMultiplier is only read by
// ATRTrailing.
func NewTrailer(mode Mode, atrMultiplier float64) Trailer {
	switch mode {
	case TrailToNext:
		return trailToNext{}
	case ATRTrailing:
		return atrTrailing{mult: atrMultiplier}
	default:
		return fixedTrend{}
	}
}

type fixedTrend struct{}

func (fixedTrend) Mode() Mode { return FixedTrend }

func (fixedTrend) Candidate(_ types.Position, _ []types.Position, in Input) float64 {
	return in.SignalStop
}

type trailToNext struct{}

func (trailToNext) Mode() Mode { return TrailToNext }

func (trailToNext) Candidate(leg types.Position, trade []types.Position, in Input) float64 {
	next := -1
	var cand float64
	for _, p := range trade {
		if p.PyramidIndex <= leg.PyramidIndex {
			continue
		}
		if next == -1 || p.PyramidIndex < next {
			next = p.PyramidIndex
			cand = p.InitialStop
		}
	}
	if next == -1 {
		// newest leg follows the trend line
		return in.SignalStop
	}
	return cand
}

type atrTrailing struct{ mult float64 }

func (atrTrailing) Mode() Mode { return ATRTrailing }

func (a atrTrailing) Candidate(leg types.Position, _ []types.Position, in Input) float64 {
	if in.ATR <= 0 || a.mult <= 0 {
		return 0
	}
	high := math.Max(leg.HighestPrice, in.Price)
	return high - a.mult*in.ATR
}

// UpdateStop applies a candidate to a leg: the stop becomes the larger of
// the current stop and the candidate. Non-finite or non-positive
// candidates are ignored.
func UpdateStop(pos types.Position, candidate float64) types.Position {
	if math.IsNaN(candidate) || math.IsInf(candidate, 0) || candidate <= 0 {
		return pos
	}
	if candidate > pos.Stop {
		pos.Stop = candidate
	}
	return pos
}

// Trail runs the trailer over every open leg of a trade and returns the
// updated legs in the same order. Candidates are computed against the
// trade as it was before this call.
func Trail(t Trailer, trade []types.Position, in Input) []types.Position {
	out := make([]types.Position, len(trade))
	for i, leg := range trade {
		if !leg.IsOpen() {
			out[i] = leg
			continue
		}
		out[i] = UpdateStop(leg, t.Candidate(leg, trade, in))
	}
	return out
}

// CurrentRisk is what the leg loses if its current stop is hit. It turns
// negative once the stop sits above entry.
func CurrentRisk(pos types.Position) float64 {
	return (pos.EntryPrice - pos.Stop) * float64(pos.Lots) * pos.PointValue
}

// RiskAtOpen is the risk the leg carried when it was entered.
func RiskAtOpen(pos types.Position) float64 {
	return (pos.EntryPrice - pos.InitialStop) * float64(pos.InitialLots) * pos.PointValue
}

// Hit reports whether price has reached the leg's stop.
func Hit(pos types.Position, price float64) bool {
	return pos.IsOpen() && pos.Stop > 0 && price <= pos.Stop
}
