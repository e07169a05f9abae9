package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ledgerq/internal/core"
	"ledgerq/internal/ledger/memory"
)

var (
	october   = core.MonthKey{Year: 2026, Month: 10}
	september = core.MonthKey{Year: 2026, Month: 9}
)

func rec(id string, day int, cents int64) core.Expense {
	return core.Expense{ID: id, Date: core.NewDate(2026, 10, day), Description: id, Amount: core.Money{Cents: cents}}
}

// countingStore records how many loads reach the backing store.
type countingStore struct {
	*memory.Store
	loads atomic.Int32
}

func (c *countingStore) Load(ctx context.Context, m core.MonthKey) ([]core.Expense, error) {
	c.loads.Add(1)
	return c.Store.Load(ctx, m)
}

// blockingStore holds every Append until release is closed. Embedding the
// Store interface hides the memory store's AppendBatch.
type blockingStore struct {
	Store
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, m core.MonthKey, e core.Expense) error {
	s.entered <- struct{}{}
	<-s.release
	return s.Store.Append(ctx, m, e)
}

// failingStore rejects the append of one record id.
type failingStore struct {
	Store
	failID string
}

func (s *failingStore) Append(ctx context.Context, m core.MonthKey, e core.Expense) error {
	if e.ID == s.failID {
		return errors.New("disk full")
	}
	return s.Store.Append(ctx, m, e)
}

func TestMutateAppliesAndVersions(t *testing.T) {
	ctx := context.Background()
	b := NewBook(memory.New(), nil)

	deltas, err := b.Mutate(ctx, october, october, func(tx *Tx) error {
		if err := tx.Add(rec("a", 1, 100)); err != nil {
			return err
		}
		return tx.Add(rec("b", 2, 200))
	})
	if err != nil || len(deltas) != 2 {
		t.Fatalf("mutate: deltas=%v err=%v", deltas, err)
	}
	snap, err := b.Snapshot(ctx, october)
	if err != nil || len(snap.Records) != 2 || snap.Version == 0 {
		t.Fatalf("snapshot: %+v err=%v", snap, err)
	}

	deltas, err = b.Mutate(ctx, october, october, func(tx *Tx) error {
		tx.Delete("a", "nope")
		return nil
	})
	if err != nil || len(deltas) != 1 || deltas[0].Op != core.DeltaDeleted || deltas[0].Record.ID != "a" {
		t.Fatalf("delete deltas=%v err=%v", deltas, err)
	}
	stored, _ := b.Store().Load(ctx, october)
	if len(stored) != 1 || stored[0].ID != "b" {
		t.Fatalf("store not updated: %v", stored)
	}
}

func TestMutateRejectsArchivedBeforeLock(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_ = store.Append(ctx, september, core.Expense{ID: "s", Date: core.NewDate(2026, 9, 9), Description: "x", Amount: core.Money{Cents: 1}})
	b := NewBook(store, nil)

	called := false
	_, err := b.Mutate(ctx, september, october, func(tx *Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, core.ErrArchiveWrite) {
		t.Fatalf("expected archive violation, got %v", err)
	}
	if called {
		t.Fatalf("mutation function must not run for archived months")
	}
	recs, _ := store.Load(ctx, september)
	if len(recs) != 1 {
		t.Fatalf("archived month changed: %v", recs)
	}

	store.Archive(october)
	if _, err := b.Mutate(ctx, october, october, func(tx *Tx) error { return nil }); !errors.Is(err, core.ErrArchiveWrite) {
		t.Fatalf("explicitly archived current month must be rejected, got %v", err)
	}
}

func TestTxAddRejectsForeignMonth(t *testing.T) {
	b := NewBook(memory.New(), nil)
	_, err := b.Mutate(context.Background(), october, october, func(tx *Tx) error {
		return tx.Add(core.Expense{ID: "x", Date: core.NewDate(2026, 11, 1), Description: "x", Amount: core.Money{Cents: 1}})
	})
	if !errors.Is(err, core.ErrMonthMismatch) {
		t.Fatalf("expected month mismatch, got %v", err)
	}
}

func TestConcurrentFirstLoadIsShared(t *testing.T) {
	store := &countingStore{Store: memory.New()}
	_ = store.Append(context.Background(), october, rec("a", 1, 100))
	b := NewBook(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := b.Snapshot(context.Background(), october); err != nil {
				t.Errorf("snapshot: %v", err)
			}
		}()
	}
	wg.Wait()
	// Later reads hit the in-memory ledger.
	_, _ = b.Snapshot(context.Background(), october)
	if n := store.loads.Load(); n < 1 || n > 16 {
		t.Fatalf("unexpected load count %d", n)
	}
	before := store.loads.Load()
	_, _ = b.Snapshot(context.Background(), october)
	if store.loads.Load() != before {
		t.Fatalf("loaded ledger must not be reloaded")
	}
}

func TestSnapshotMonthsKeepsOrder(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_ = store.Append(ctx, october, rec("a", 1, 100))
	_ = store.Append(ctx, september, core.Expense{ID: "s", Date: core.NewDate(2026, 9, 9), Description: "x", Amount: core.Money{Cents: 1}})
	b := NewBook(store, nil)

	snaps, err := b.SnapshotMonths(ctx, []core.MonthKey{october, september})
	if err != nil || len(snaps) != 2 || snaps[0].Month != october || snaps[1].Records[0].ID != "s" {
		t.Fatalf("unexpected snapshots %+v err=%v", snaps, err)
	}
	months, _ := b.Months(ctx)
	if len(months) != 2 || months[0] != september {
		t.Fatalf("unexpected months %v", months)
	}
}

func TestReadersNeverSeeHalfAppliedMutation(t *testing.T) {
	ctx := context.Background()
	b := NewBook(memory.New(), nil)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap, err := b.Snapshot(ctx, october)
			if err != nil {
				t.Errorf("snapshot: %v", err)
				return
			}
			if len(snap.Records)%3 != 0 {
				t.Errorf("observed %d records mid-mutation", len(snap.Records))
				return
			}
		}
	}()
	for i := 0; i < 20; i++ {
		_, err := b.Mutate(ctx, october, october, func(tx *Tx) error {
			for j := 0; j < 3; j++ {
				if err := tx.Add(rec(string(rune('a'+i))+string(rune('0'+j)), 1, 1)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("mutate: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestMonthsDoesNotStallOtherMonths(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	_ = mem.Append(ctx, september, core.Expense{ID: "s", Date: core.NewDate(2026, 9, 9), Description: "x", Amount: core.Money{Cents: 1}})
	store := &blockingStore{Store: mem, entered: make(chan struct{}, 1), release: make(chan struct{})}
	b := NewBook(store, nil)
	if _, err := b.Snapshot(ctx, september); err != nil {
		t.Fatalf("preload september: %v", err)
	}

	mutated := make(chan error, 1)
	go func() {
		_, err := b.Mutate(ctx, october, october, func(tx *Tx) error { return tx.Add(rec("a", 1, 100)) })
		mutated <- err
	}()
	<-store.entered

	listed := make(chan []core.MonthKey, 1)
	go func() {
		months, _ := b.Months(ctx)
		listed <- months
	}()
	// let Months reach the october lock
	time.Sleep(50 * time.Millisecond)

	read := make(chan error, 1)
	go func() {
		_, err := b.Snapshot(ctx, september)
		read <- err
	}()
	select {
	case err := <-read:
		if err != nil {
			t.Fatalf("snapshot september: %v", err)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("september snapshot blocked behind an october mutation")
	}

	close(store.release)
	if err := <-mutated; err != nil {
		t.Fatalf("mutate: %v", err)
	}
	months := <-listed
	if len(months) != 2 || months[0] != september || months[1] != october {
		t.Fatalf("unexpected months %v", months)
	}
}

func TestPartialAppendReportsWrittenRecords(t *testing.T) {
	ctx := context.Background()
	b := NewBook(&failingStore{Store: memory.New(), failID: "b"}, nil)

	deltas, err := b.Mutate(ctx, october, october, func(tx *Tx) error {
		for _, e := range []core.Expense{rec("a", 1, 100), rec("b", 2, 200), rec("c", 3, 300)} {
			if err := tx.Add(e); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		t.Fatalf("expected append failure")
	}
	if len(deltas) != 1 || deltas[0].Record.ID != "a" {
		t.Fatalf("written records must be reported, got %v", deltas)
	}
	snap, _ := b.Snapshot(ctx, october)
	if len(snap.Records) != 1 || snap.Records[0].ID != "a" {
		t.Fatalf("ledger out of step with store: %v", snap.Records)
	}
}
