package portfolio

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/evdnx/gosizer/equity"
)

// Snapshot is the full persisted state of an account: the equity ledger,
// open trades, closed history and last marks.
type Snapshot struct {
	Equity  equity.State       `json:"equity"`
	Open    []Trade            `json:"open"`
	History []Trade            `json:"history,omitempty"`
	Marks   map[string]float64 `json:"marks,omitempty"`
}

// Snapshot copies the book alongside the given equity state. Open trades are
// ordered by instrument.
func (b *Book) Snapshot(eq equity.State) Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{
		Equity: eq,
		Open:   make([]Trade, 0, len(b.open)),
		Marks:  make(map[string]float64, len(b.marks)),
	}
	for _, t := range b.open {
		s.Open = append(s.Open, t.clone())
	}
	sort.Slice(s.Open, func(i, j int) bool { return s.Open[i].Instrument < s.Open[j].Instrument })
	for _, t := range b.history {
		s.History = append(s.History, t.clone())
	}
	for k, v := range b.marks {
		s.Marks[k] = v
	}
	return s
}

// Restore rebuilds a book and its equity tracker from a snapshot.
func Restore(s Snapshot) (*Book, *equity.Tracker, error) {
	tr, err := equity.Restore(s.Equity)
	if err != nil {
		return nil, nil, err
	}
	b := NewBook()
	for _, t := range s.Open {
		if _, dup := b.open[t.Instrument]; dup {
			return nil, nil, fmt.Errorf("snapshot holds two open trades for %s", t.Instrument)
		}
		c := t.clone()
		b.open[t.Instrument] = &c
	}
	for _, t := range s.History {
		b.history = append(b.history, t.clone())
	}
	for k, v := range s.Marks {
		b.marks[k] = v
	}
	return b, tr, nil
}

// Marshal encodes the snapshot as indented JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Unmarshal decodes a snapshot produced by Marshal.
func Unmarshal(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
