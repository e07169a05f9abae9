// Package memory is an in-process Mirror, used when no spreadsheet is
// configured and in tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"ledgerq/internal/core"
	"ledgerq/internal/sheets"
)

var (
	_ sheets.Mirror    = (*Mirror)(nil)
	_ sheets.RowLister = (*Mirror)(nil)
)

// Mirror keeps one row slice per year, in append order.
type Mirror struct {
	mu    sync.Mutex
	years map[int][]core.Expense
	calls int
}

func New() *Mirror {
	return &Mirror{years: make(map[int][]core.Expense)}
}

// Apply appends added records not yet present and drops deleted ones.
func (m *Mirror) Apply(_ context.Context, d core.LedgerDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	year := d.Record.Date.Year()
	rows := m.years[year]
	i := slices.IndexFunc(rows, func(e core.Expense) bool { return e.ID == d.Record.ID })
	switch d.Op {
	case core.DeltaAdded:
		if i < 0 {
			m.years[year] = append(rows, d.Record)
		}
	case core.DeltaDeleted:
		if i >= 0 {
			m.years[year] = slices.Delete(rows, i, i+1)
		}
	}
	return nil
}

// IDs lists the mirrored ids for year.
func (m *Mirror) IDs(_ context.Context, year int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.years[year]))
	for i, e := range m.years[year] {
		out[i] = e.ID
	}
	return out, nil
}

// Calls reports how many deltas were applied.
func (m *Mirror) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
