// Package ledger owns month-scoped access to expense records: the store port,
// the per-month lock discipline and the archive boundary.
package ledger

import (
	"context"

	"ledgerq/internal/core"
)

// Ports for ledger persistence.
type (
	// Store persists month ledgers. Append and DeleteByIDs return only after
	// the change is durable.
	Store interface {
		// Load returns the month's records in insertion order.
		Load(ctx context.Context, month core.MonthKey) ([]core.Expense, error)
		Append(ctx context.Context, month core.MonthKey, e core.Expense) error
		// DeleteByIDs removes the given records and reports how many existed.
		DeleteByIDs(ctx context.Context, month core.MonthKey, ids []string) (int, error)
		// IsArchived reports a month explicitly frozen by the store. Months
		// other than the current one are archived regardless.
		IsArchived(ctx context.Context, month core.MonthKey) (bool, error)
		// Months lists every month holding at least one record.
		Months(ctx context.Context) ([]core.MonthKey, error)
	}

	// BatchAppender is implemented by stores that can append several records
	// in one transaction.
	BatchAppender interface {
		AppendBatch(ctx context.Context, month core.MonthKey, es []core.Expense) error
	}
)
