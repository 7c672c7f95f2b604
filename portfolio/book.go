// Package portfolio keeps the open trades of the account and the history
// of closed ones. It is the only place legs are created, trailed and
// closed.
package portfolio

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evdnx/gosizer/stop"
	"github.com/evdnx/gosizer/types"
)

var (
	// ErrTradeOpen is returned when a base entry arrives for an instrument
	// that already has an open trade.
	ErrTradeOpen = errors.New("trade already open")
	// ErrNoTrade is returned when a leg operation targets an instrument
	// without an open trade.
	ErrNoTrade = errors.New("no open trade")
)

// Entry describes a confirmed fill to be booked as a new leg.
type Entry struct {
	Instrument string
	Fill       types.Fill
	Stop       float64
	PointValue float64
}

// Book holds at most one open trade per instrument.
type Book struct {
	mu      sync.RWMutex
	open    map[string]*Trade
	history []Trade
	marks   map[string]float64
}

func NewBook() *Book {
	return &Book{
		open:  make(map[string]*Trade),
		marks: make(map[string]float64),
	}
}

// OpenBase starts a new trade with its base leg.
func (b *Book) OpenBase(e Entry) (types.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.open[e.Instrument]; ok && t.IsOpen() {
		return types.Position{}, fmt.Errorf("%w: %s", ErrTradeOpen, e.Instrument)
	}
	if err := checkEntry(e); err != nil {
		return types.Position{}, err
	}
	t := &Trade{
		ID:         uuid.NewString(),
		Instrument: e.Instrument,
		OpenedAt:   e.Fill.Time,
	}
	leg := newLeg(t, 0, e)
	t.Legs = append(t.Legs, leg)
	b.open[e.Instrument] = t
	b.markLocked(e.Instrument, e.Fill.Price)
	return leg, nil
}

// AddPyramid appends the next pyramid leg to the open trade.
func (b *Book) AddPyramid(e Entry) (types.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.open[e.Instrument]
	if !ok || !t.IsOpen() {
		return types.Position{}, fmt.Errorf("%w: %s", ErrNoTrade, e.Instrument)
	}
	if err := checkEntry(e); err != nil {
		return types.Position{}, err
	}
	level := 0
	for _, l := range t.Legs {
		if l.PyramidIndex >= level {
			level = l.PyramidIndex + 1
		}
	}
	leg := newLeg(t, level, e)
	t.Legs = append(t.Legs, leg)
	b.markLocked(e.Instrument, e.Fill.Price)
	return leg, nil
}

func checkEntry(e Entry) error {
	if e.Fill.Lots <= 0 {
		return fmt.Errorf("fill for %s has %d lots", e.Instrument, e.Fill.Lots)
	}
	if e.PointValue <= 0 || math.IsNaN(e.PointValue) {
		return fmt.Errorf("fill for %s has point value %v", e.Instrument, e.PointValue)
	}
	return nil
}

func newLeg(t *Trade, level int, e Entry) types.Position {
	return types.Position{
		ID:           uuid.NewString(),
		TradeID:      t.ID,
		Instrument:   e.Instrument,
		PyramidIndex: level,
		EntryPrice:   e.Fill.Price,
		EntryTime:    e.Fill.Time,
		InitialStop:  e.Stop,
		Stop:         e.Stop,
		InitialLots:  e.Fill.Lots,
		Lots:         e.Fill.Lots,
		PointValue:   e.PointValue,
		HighestPrice: e.Fill.Price,
		Status:       types.StatusOpen,
	}
}

// Legs returns a copy of every leg of the open trade, closed legs included.
func (b *Book) Legs(instrument string) []types.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.open[instrument]
	if !ok {
		return nil
	}
	return append([]types.Position(nil), t.Legs...)
}

// HasOpenTrade reports whether instrument has a trade with open lots.
func (b *Book) HasOpenTrade(instrument string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.open[instrument]
	return ok && t.IsOpen()
}

// Mark records the latest price and lifts each open leg's highest price.
func (b *Book) Mark(instrument string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.markLocked(instrument, price)
}

func (b *Book) markLocked(instrument string, price float64) {
	b.marks[instrument] = price
	t, ok := b.open[instrument]
	if !ok {
		return
	}
	for i := range t.Legs {
		if t.Legs[i].IsOpen() && price > t.Legs[i].HighestPrice {
			t.Legs[i].HighestPrice = price
		}
	}
}

// UnrealizedPnL marks every open trade at its last recorded price.
func (b *Book) UnrealizedPnL() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var pnl float64
	for inst, t := range b.open {
		pnl += t.UnrealizedPnL(b.marks[inst])
	}
	return pnl
}

// OpenLegCount counts open legs for instrument.
func (b *Book) OpenLegCount(instrument string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.open[instrument]
	if !ok {
		return 0
	}
	n := 0
	for _, l := range t.Legs {
		if l.IsOpen() {
			n++
		}
	}
	return n
}

// Trail moves the stops of the open trade with the given trailer.
func (b *Book) Trail(instrument string, t stop.Trailer, in stop.Input) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tr, ok := b.open[instrument]
	if !ok {
		return
	}
	tr.Legs = stop.Trail(t, tr.Legs, in)
}

// Stopped returns the open legs whose stop price has been reached.
func (b *Book) Stopped(instrument string, price float64) []types.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.open[instrument]
	if !ok {
		return nil
	}
	var out []types.Position
	for _, l := range t.Legs {
		if stop.Hit(l, price) {
			out = append(out, l)
		}
	}
	return out
}

// CloseLots takes lots off the legs named by ids at price, newest leg
// first, and returns the realized P&L. Fewer lots than the legs hold leaves
// the oldest touched leg partial. A trade with no open lots left moves to
// history.
func (b *Book) CloseLots(instrument string, ids []string, lots int, price float64, at time.Time) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.open[instrument]
	if !ok || !t.IsOpen() {
		return 0, fmt.Errorf("%w: %s", ErrNoTrade, instrument)
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	idx := make([]int, 0, len(ids))
	for i, l := range t.Legs {
		if want[l.ID] && l.IsOpen() {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, c int) bool {
		return t.Legs[idx[a]].PyramidIndex > t.Legs[idx[c]].PyramidIndex
	})

	var realized float64
	for _, i := range idx {
		if lots <= 0 {
			break
		}
		n := t.Legs[i].Lots
		if n > lots {
			n = lots
		}
		pnl, err := t.Legs[i].Close(n, price, at)
		if err != nil {
			return realized, err
		}
		realized += pnl
		lots -= n
	}
	b.marks[instrument] = price
	if !t.IsOpen() {
		t.ClosedAt = at
		b.history = append(b.history, t.clone())
		delete(b.open, instrument)
	}
	return realized, nil
}

// OpenLots is the number of lots still held on instrument.
func (b *Book) OpenLots(instrument string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.open[instrument]
	if !ok {
		return 0
	}
	return t.OpenLots()
}

// OpenLegIDs lists the ids of the open legs of instrument's trade.
func (b *Book) OpenLegIDs(instrument string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.open[instrument]
	if !ok {
		return nil
	}
	var ids []string
	for _, l := range t.Legs {
		if l.IsOpen() {
			ids = append(ids, l.ID)
		}
	}
	return ids
}

// History returns closed trades, oldest first.
func (b *Book) History() []Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Trade, len(b.history))
	for i := range b.history {
		out[i] = b.history[i].clone()
	}
	return out
}
