package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ledgerq/internal/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func expense(id string, d core.Date, cents int64) core.Expense {
	return core.Expense{
		ID: id, Date: d, Description: "item " + id, Amount: core.Money{Cents: cents},
		Category: "dining", CreatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	oct := core.MonthKey{Year: 2026, Month: 10}

	if err := s.Append(ctx, oct, expense("b", core.NewDate(2026, 10, 5), 500)); err != nil {
		t.Fatalf("append: %v", err)
	}
	batch := []core.Expense{expense("a", core.NewDate(2026, 10, 1), 100), expense("c", core.NewDate(2026, 10, 31), 300)}
	if err := s.AppendBatch(ctx, oct, batch); err != nil {
		t.Fatalf("append batch: %v", err)
	}

	recs, err := s.Load(ctx, oct)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(recs) != 3 || recs[0].ID != "b" || recs[1].ID != "a" || recs[2].ID != "c" {
		t.Fatalf("records must come back in insertion order: %+v", recs)
	}
	if !recs[2].Date.Equal(core.NewDate(2026, 10, 31)) || recs[0].Category != "dining" || recs[0].CreatedAt.IsZero() {
		t.Fatalf("fields not preserved: %+v", recs[2])
	}

	n, err := s.DeleteByIDs(ctx, oct, []string{"a", "c", "zzz"})
	if err != nil || n != 2 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	n, _ = s.DeleteByIDs(ctx, oct, []string{"a", "c"})
	if n != 0 {
		t.Fatalf("second delete must remove nothing, removed %d", n)
	}
}

func TestSQLiteStoreRejectsForeignMonth(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	oct := core.MonthKey{Year: 2026, Month: 10}
	batch := []core.Expense{expense("a", core.NewDate(2026, 10, 1), 100), expense("x", core.NewDate(2026, 9, 30), 1)}
	if err := s.AppendBatch(ctx, oct, batch); err == nil {
		t.Fatalf("expected month mismatch")
	}
	recs, _ := s.Load(ctx, oct)
	if len(recs) != 0 {
		t.Fatalf("failed batch must leave no records, got %d", len(recs))
	}
}

func TestSQLiteStoreArchiveAndMonths(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	sep := core.MonthKey{Year: 2026, Month: 9}
	oct := core.MonthKey{Year: 2026, Month: 10}
	_ = s.Append(ctx, oct, expense("a", core.NewDate(2026, 10, 1), 100))
	_ = s.Append(ctx, sep, expense("b", core.NewDate(2026, 9, 1), 100))

	months, err := s.Months(ctx)
	if err != nil || len(months) != 2 || months[0] != sep || months[1] != oct {
		t.Fatalf("months = %v err=%v", months, err)
	}

	if archived, _ := s.IsArchived(ctx, sep); archived {
		t.Fatalf("not archived yet")
	}
	if err := s.Archive(ctx, sep, time.Now()); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if err := s.Archive(ctx, sep, time.Now()); err != nil {
		t.Fatalf("archive must be idempotent: %v", err)
	}
	if archived, _ := s.IsArchived(ctx, sep); !archived {
		t.Fatalf("expected archived")
	}
}
