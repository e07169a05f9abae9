// Package sheets mirrors the ledger into a spreadsheet for people who would
// rather read it there. The mirror is write-only; the ledger store stays the
// source of truth.
package sheets

import (
	"context"

	"ledgerq/internal/core"
)

// Ports for outbound adapters.
type (
	// Mirror applies one committed delta. Applying the same delta twice
	// must leave the sheet unchanged.
	Mirror interface {
		Apply(ctx context.Context, d core.LedgerDelta) error
	}

	// RowLister reads back the mirrored ids of one year's sheet.
	RowLister interface {
		IDs(ctx context.Context, year int) ([]string, error)
	}
)

// Header is the first row of every mirrored sheet.
var Header = []any{"ID", "Date", "Description", "Amount", "Category", "Created"}

// Row renders a record in Header order.
func Row(e core.Expense) []any {
	return []any{
		e.ID,
		e.Date.String(),
		e.Description,
		e.Amount.Decimal().StringFixed(2),
		e.Category,
		e.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}
