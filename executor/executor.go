package executor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/evdnx/gosizer/types"
)

// ErrInsufficientPosition is returned when a sell exceeds the lots held.
var ErrInsufficientPosition = errors.New("insufficient position")

// Executor places orders and confirms what filled. A fill with fewer lots
// than ordered is a partial fill; zero lots means nothing traded.
type Executor interface {
	Submit(o types.Order) (types.Fill, error)
}

// PaperExecutor fills every order in full at its price. No slippage.
type PaperExecutor struct {
	mu        sync.Mutex
	positions map[string]int // net lots per instrument
	fills     []types.Fill
	now       func() time.Time
}

func NewPaperExecutor() *PaperExecutor {
	return &PaperExecutor{
		positions: make(map[string]int),
		now:       time.Now,
	}
}

func (p *PaperExecutor) Submit(o types.Order) (types.Fill, error) {
	if o.Lots <= 0 {
		return types.Fill{OrderID: o.ID}, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch o.Side {
	case types.Buy:
		p.positions[o.Instrument] += o.Lots
	case types.Sell:
		if held := p.positions[o.Instrument]; o.Lots > held {
			return types.Fill{}, fmt.Errorf("%w: sell %d %s, hold %d", ErrInsufficientPosition, o.Lots, o.Instrument, held)
		}
		p.positions[o.Instrument] -= o.Lots
	default:
		return types.Fill{}, fmt.Errorf("unknown side %q", o.Side)
	}
	at := o.Time
	if at.IsZero() {
		at = p.now()
	}
	f := types.Fill{OrderID: o.ID, Lots: o.Lots, Price: o.Price, Time: at}
	p.fills = append(p.fills, f)
	return f, nil
}

// Position returns the net lots held in instrument.
func (p *PaperExecutor) Position(instrument string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positions[instrument]
}

// Fills returns a copy of every fill so far.
func (p *PaperExecutor) Fills() []types.Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.Fill(nil), p.fills...)
}
