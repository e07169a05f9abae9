package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"ledgerq/internal/core"
)

func TestMemoryStoreAppendLoadDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	month := core.MonthKey{Year: 2026, Month: 10}
	e := core.Expense{ID: "a", Date: core.NewDate(2026, 10, 3), Description: "t", Amount: core.Money{Cents: 123}}
	if err := s.Append(ctx, month, e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, core.MonthKey{Year: 2026, Month: 9}, e); err == nil {
		t.Fatalf("expected month mismatch error")
	}
	recs, _ := s.Load(ctx, month)
	if len(recs) != 1 || recs[0].ID != "a" {
		t.Fatalf("unexpected load %v", recs)
	}
	n, err := s.DeleteByIDs(ctx, month, []string{"a", "missing"})
	if err != nil || n != 1 {
		t.Fatalf("delete: n=%d err=%v", n, err)
	}
	months, _ := s.Months(ctx)
	if len(months) != 0 {
		t.Fatalf("empty months must not be listed: %v", months)
	}
}

func TestNewFromFileSeeds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.txt")
	body := "# date;amount;description\n2026-09-01;12.50;lunch\n\n2026-10-02;40;groceries\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFromFile(path, core.DefaultCategoryTable())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	months, _ := s.Months(context.Background())
	if len(months) != 2 || months[0].String() != "2026-09" {
		t.Fatalf("unexpected months %v", months)
	}
	recs, _ := s.Load(context.Background(), months[0])
	if recs[0].Amount.Cents != 1250 || recs[0].Category != "dining" {
		t.Fatalf("unexpected record %+v", recs[0])
	}

	if _, err := NewFromFile(filepath.Join(dir, "none.txt"), nil); err != nil {
		t.Fatalf("missing seed file must give an empty store: %v", err)
	}
	bad := filepath.Join(dir, "bad.txt")
	_ = os.WriteFile(bad, []byte("2026-10-02;x;lunch\n"), 0o644)
	if _, err := NewFromFile(bad, nil); err == nil {
		t.Fatalf("expected error for bad amount")
	}
}
