package testutils

import (
	"sync"

	"github.com/evdnx/gosizer/types"
)

// MockExecutor implements the Executor interface in‑memory. FillRatio
// scales the filled lots (1 = full fill); Err, when set, fails every
// submit.
type MockExecutor struct {
	mu        sync.RWMutex
	positions map[string]int
	orders    []types.Order // captured for assertions
	FillRatio float64
	Err       error
}

// NewMockExecutor creates an executor that fills everything in full.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		positions: make(map[string]int),
		FillRatio: 1,
	}
}

// Submit records the order and fills int(lots × FillRatio) at the order price.
func (m *MockExecutor) Submit(o types.Order) (types.Fill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, o)
	if m.Err != nil {
		return types.Fill{}, m.Err
	}
	lots := int(float64(o.Lots) * m.FillRatio)
	if o.Side == types.Buy {
		m.positions[o.Instrument] += lots
	} else {
		m.positions[o.Instrument] -= lots
	}
	return types.Fill{OrderID: o.ID, Lots: lots, Price: o.Price, Time: o.Time}, nil
}

// Position returns net lots for an instrument.
func (m *MockExecutor) Position(instrument string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.positions[instrument]
}

// Orders returns a copy of all submitted orders (useful for assertions).
func (m *MockExecutor) Orders() []types.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Order, len(m.orders))
	copy(out, m.orders)
	return out
}
