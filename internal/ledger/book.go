package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"ledgerq/internal/core"
	"ledgerq/internal/log"
)

// maxParallelLoads bounds concurrent store loads for multi-month reads.
const maxParallelLoads = 4

// Book is the in-process view of every month ledger. Each month has its own
// RWMutex: reads share it, a mutation holds it exclusively for
// validation plus apply.
type Book struct {
	store  Store
	logger *log.Logger

	mu     sync.Mutex
	months map[core.MonthKey]*monthLedger

	loads singleflight.Group
}

type monthLedger struct {
	mu      sync.RWMutex
	loaded  bool
	records []core.Expense
	version uint64
}

// Snapshot is a consistent copy of one month taken under its read lock.
type Snapshot struct {
	Month   core.MonthKey
	Records []core.Expense
	Version uint64
}

// NewBook wraps a store.
func NewBook(store Store, logger *log.Logger) *Book {
	if logger == nil {
		logger = log.Discard()
	}
	return &Book{
		store:  store,
		logger: logger.WithComponent(log.ComponentLedger),
		months: make(map[core.MonthKey]*monthLedger),
	}
}

// Store returns the backing store.
func (b *Book) Store() Store { return b.store }

func (b *Book) ledger(month core.MonthKey) *monthLedger {
	b.mu.Lock()
	defer b.mu.Unlock()
	ml, ok := b.months[month]
	if !ok {
		ml = &monthLedger{}
		b.months[month] = ml
	}
	return ml
}

// ensureLoaded populates a month ledger on first access. Concurrent first
// accesses share a single store load.
func (b *Book) ensureLoaded(ctx context.Context, month core.MonthKey, ml *monthLedger) error {
	ml.mu.RLock()
	loaded := ml.loaded
	ml.mu.RUnlock()
	if loaded {
		return nil
	}
	_, err, _ := b.loads.Do(month.String(), func() (any, error) {
		recs, err := b.store.Load(ctx, month)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			if r.Month() != month {
				return nil, fmt.Errorf("record %s dated %s in ledger %s: %w", r.ID, r.Date, month, core.ErrMonthMismatch)
			}
		}
		ml.mu.Lock()
		if !ml.loaded {
			ml.records = recs
			ml.loaded = true
		}
		ml.mu.Unlock()
		b.logger.DebugContext(ctx, "Month ledger loaded",
			log.NewFields().WithMonth(month.String()).WithOperation(log.OpLoad).ToSlice()...)
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("load ledger %s: %w", month, err)
	}
	return nil
}

// Snapshot returns a copy of the month's records.
func (b *Book) Snapshot(ctx context.Context, month core.MonthKey) (Snapshot, error) {
	ml := b.ledger(month)
	if err := b.ensureLoaded(ctx, month, ml); err != nil {
		return Snapshot{}, err
	}
	ml.mu.RLock()
	defer ml.mu.RUnlock()
	return Snapshot{Month: month, Records: slices.Clone(ml.records), Version: ml.version}, nil
}

// SnapshotMonths reads several months concurrently. The result keeps the
// order of months.
func (b *Book) SnapshotMonths(ctx context.Context, months []core.MonthKey) ([]Snapshot, error) {
	out := make([]Snapshot, len(months))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, m := range months {
		g.Go(func() error {
			snap, err := b.Snapshot(gctx, m)
			if err != nil {
				return err
			}
			out[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Months lists months known to the store or touched in this process, oldest
// first.
func (b *Book) Months(ctx context.Context) ([]core.MonthKey, error) {
	stored, err := b.store.Months(ctx)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	seen := make(map[core.MonthKey]bool, len(stored))
	for _, m := range stored {
		seen[m] = true
	}
	// Month locks are taken only after b.mu is released, so a mutation in
	// flight on one month never stalls lookups of another.
	b.mu.Lock()
	touched := make(map[core.MonthKey]*monthLedger, len(b.months))
	for m, ml := range b.months {
		if !seen[m] {
			touched[m] = ml
		}
	}
	b.mu.Unlock()
	for m, ml := range touched {
		ml.mu.RLock()
		nonEmpty := len(ml.records) > 0
		ml.mu.RUnlock()
		if nonEmpty {
			seen[m] = true
		}
	}
	out := make([]core.MonthKey, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, c core.MonthKey) int {
		switch {
		case a.Before(c):
			return -1
		case c.Before(a):
			return 1
		}
		return 0
	})
	return out, nil
}

// IsArchived applies the archive boundary: every month other than current
// is read-only, and the store may freeze more.
func (b *Book) IsArchived(ctx context.Context, month, current core.MonthKey) (bool, error) {
	if month != current {
		return true, nil
	}
	archived, err := b.store.IsArchived(ctx, month)
	if err != nil {
		return false, fmt.Errorf("archive status %s: %w", month, err)
	}
	return archived, nil
}

// Tx is the lock handle a mutation works through. It is valid only inside
// the function passed to Mutate.
type Tx struct {
	Month   core.MonthKey
	ml      *monthLedger
	adds    []core.Expense
	deletes []string
}

// Records returns the month's records as of lock acquisition plus staged
// changes.
func (tx *Tx) Records() []core.Expense {
	out := make([]core.Expense, 0, len(tx.ml.records)+len(tx.adds))
	for _, r := range tx.ml.records {
		if !slices.Contains(tx.deletes, r.ID) {
			out = append(out, r)
		}
	}
	return append(out, tx.adds...)
}

// Add stages a record. Its date must fall inside the locked month.
func (tx *Tx) Add(e core.Expense) error {
	if e.Month() != tx.Month {
		return fmt.Errorf("record dated %s in ledger %s: %w", e.Date, tx.Month, core.ErrMonthMismatch)
	}
	tx.adds = append(tx.adds, e)
	return nil
}

// Delete stages removal of existing records by id; unknown ids are ignored.
func (tx *Tx) Delete(ids ...string) {
	for _, id := range ids {
		for _, r := range tx.ml.records {
			if r.ID == id && !slices.Contains(tx.deletes, id) {
				tx.deletes = append(tx.deletes, id)
				break
			}
		}
	}
}

// Mutate runs fn with the month exclusively locked and applies whatever fn
// staged as one unit. Archived months are rejected before any lock is taken.
func (b *Book) Mutate(ctx context.Context, month, current core.MonthKey, fn func(tx *Tx) error) ([]core.LedgerDelta, error) {
	archived, err := b.IsArchived(ctx, month, current)
	if err != nil {
		return nil, err
	}
	if archived {
		return nil, core.NewError(core.KindArchiveWrite, month.String(), fmt.Sprintf("%s is archived and read-only", month.Label()))
	}

	ml := b.ledger(month)
	if err := b.ensureLoaded(ctx, month, ml); err != nil {
		return nil, err
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()

	tx := &Tx{Month: month, ml: ml}
	if err := fn(tx); err != nil {
		return nil, err
	}
	if len(tx.adds) == 0 && len(tx.deletes) == 0 {
		return nil, nil
	}
	return b.apply(ctx, tx)
}

func (b *Book) apply(ctx context.Context, tx *Tx) ([]core.LedgerDelta, error) {
	ml := tx.ml
	var deltas []core.LedgerDelta

	if len(tx.deletes) > 0 {
		if _, err := b.store.DeleteByIDs(ctx, tx.Month, tx.deletes); err != nil {
			return nil, fmt.Errorf("delete from %s: %w", tx.Month, err)
		}
		kept := ml.records[:0:0]
		for _, r := range ml.records {
			if slices.Contains(tx.deletes, r.ID) {
				deltas = append(deltas, core.LedgerDelta{Op: core.DeltaDeleted, Month: tx.Month, Record: r})
				continue
			}
			kept = append(kept, r)
		}
		ml.records = kept
		ml.version++
	}

	if len(tx.adds) > 0 {
		if ba, ok := b.store.(BatchAppender); ok {
			if err := ba.AppendBatch(ctx, tx.Month, tx.adds); err != nil {
				return deltas, fmt.Errorf("append to %s: %w", tx.Month, err)
			}
			ml.records = append(ml.records, tx.adds...)
			for _, e := range tx.adds {
				deltas = append(deltas, core.LedgerDelta{Op: core.DeltaAdded, Month: tx.Month, Record: e})
			}
		} else {
			for _, e := range tx.adds {
				if err := b.store.Append(ctx, tx.Month, e); err != nil {
					ml.version++
					return deltas, fmt.Errorf("append to %s: %w", tx.Month, err)
				}
				ml.records = append(ml.records, e)
				deltas = append(deltas, core.LedgerDelta{Op: core.DeltaAdded, Month: tx.Month, Record: e})
			}
		}
		ml.version++
	}

	b.logger.InfoContext(ctx, "Ledger mutation applied",
		log.NewFields().WithMonth(tx.Month.String()).WithOperation(log.OpCommit).
			WithMutation(len(tx.adds), len(tx.deletes), 0).ToSlice()...)
	return deltas, nil
}
