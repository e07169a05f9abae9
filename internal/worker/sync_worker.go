// Package worker applies ledger deltas from the broker to the spreadsheet
// mirror and periodically reconciles the mirror against the store.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerq/internal/amqp"
	"ledgerq/internal/core"
	"ledgerq/internal/ledger"
	"ledgerq/internal/log"
	"ledgerq/internal/sheets"
)

const maxParallelLoads = 4

// Config holds the reconcile loop settings.
type Config struct {
	// ReconcileInterval is how often the mirror is compared with the store
	// (default: 15m). Zero disables the loop; Start still reconciles once.
	ReconcileInterval time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{ReconcileInterval: 15 * time.Minute}
}

// MirrorWorker keeps a sheets.Mirror in step with a ledger.Store.
type MirrorWorker struct {
	store  ledger.Store
	mirror sheets.Mirror
	config Config
	logger *log.Logger
	now    func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewMirrorWorker(store ledger.Store, mirror sheets.Mirror, config Config, logger *log.Logger) *MirrorWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &MirrorWorker{
		store:  store,
		mirror: mirror,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// HandleDelta applies one broker message to the mirror. Errors make the
// consumer requeue the message.
func (w *MirrorWorker) HandleDelta(ctx context.Context, msg *amqp.DeltaMessage) error {
	d, err := msg.Delta()
	if err != nil {
		return fmt.Errorf("decode delta: %w", err)
	}
	w.logger.InfoContext(ctx, "Processing ledger delta",
		log.FieldExpenseID, d.Record.ID,
		log.FieldMonth, d.Month.String(),
		"op", d.Op)

	if err := w.mirror.Apply(ctx, d); err != nil {
		return fmt.Errorf("apply %s %s: %w", d.Op, d.Record.ID, err)
	}
	return nil
}

// Reconcile replays every stored record of year as an added delta, then
// clears mirrored ids the store no longer holds when the mirror can list
// them. Mirror adds are idempotent so replaying is safe.
func (w *MirrorWorker) Reconcile(ctx context.Context, year int) error {
	months, err := w.store.Months(ctx)
	if err != nil {
		return fmt.Errorf("list months: %w", err)
	}
	var inYear []core.MonthKey
	for _, m := range months {
		if m.Year == year {
			inYear = append(inYear, m)
		}
	}

	loaded := make([][]core.Expense, len(inYear))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLoads)
	for i, m := range inYear {
		g.Go(func() error {
			rs, err := w.store.Load(gctx, m)
			if err != nil {
				return fmt.Errorf("load %s: %w", m, err)
			}
			loaded[i] = rs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stored := make(map[string]bool)
	applied, failed := 0, 0
	for i, rs := range loaded {
		for _, e := range rs {
			stored[e.ID] = true
			if err := w.mirror.Apply(ctx, core.LedgerDelta{Op: core.DeltaAdded, Month: inYear[i], Record: e}); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logger.ErrorContext(ctx, "Failed to mirror record",
					log.FieldExpenseID, e.ID, log.FieldError, err)
				failed++
				continue
			}
			applied++
		}
	}

	removed := 0
	if lister, ok := w.mirror.(sheets.RowLister); ok {
		ids, err := lister.IDs(ctx, year)
		if err != nil {
			return fmt.Errorf("list mirrored ids: %w", err)
		}
		for _, id := range ids {
			if stored[id] {
				continue
			}
			stale := core.Expense{ID: id, Date: core.NewDate(year, 1, 1)}
			if err := w.mirror.Apply(ctx, core.LedgerDelta{Op: core.DeltaDeleted, Month: stale.Month(), Record: stale}); err != nil {
				w.logger.ErrorContext(ctx, "Failed to clear stale row",
					log.FieldExpenseID, id, log.FieldError, err)
				failed++
				continue
			}
			removed++
		}
	}

	w.logger.InfoContext(ctx, "Reconcile completed",
		"year", year,
		"months", len(inYear),
		"mirrored", applied,
		"removed", removed,
		"errors", failed)
	if failed > 0 {
		return fmt.Errorf("reconcile %d: %d records failed", year, failed)
	}
	return nil
}

// Start reconciles the current year once, then on every tick. Returns an
// error if already running.
func (w *MirrorWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("mirror worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	w.logger.InfoContext(ctx, "Mirror worker started", "reconcile_interval", w.config.ReconcileInterval)
	return nil
}

// Stop signals the loop and waits for it to finish or ctx to end.
func (w *MirrorWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		w.logger.InfoContext(ctx, "Mirror worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Mirror worker stop timed out")
		return ctx.Err()
	}
}

func (w *MirrorWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *MirrorWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	w.reconcileNow(ctx)
	if w.config.ReconcileInterval <= 0 {
		return
	}

	ticker := time.NewTicker(w.config.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcileNow(ctx)
		}
	}
}

func (w *MirrorWorker) reconcileNow(ctx context.Context) {
	if err := w.Reconcile(ctx, w.now().Year()); err != nil {
		w.logger.ErrorContext(ctx, "Reconcile failed", log.FieldError, err)
	}
}
