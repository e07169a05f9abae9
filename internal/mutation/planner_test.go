package mutation

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerq/internal/core"
	"ledgerq/internal/intent"
	"ledgerq/internal/ledger"
	"ledgerq/internal/ledger/memory"
	"ledgerq/internal/nlp"
)

var (
	today     = core.NewDate(2026, 10, 17)
	october   = core.MonthKey{Year: 2026, Month: 10}
	september = core.MonthKey{Year: 2026, Month: 9}
	table     = core.DefaultCategoryTable()
	rc        = core.RequestContext{Today: today}
)

type fixture struct {
	store   *memory.Store
	book    *ledger.Book
	planner *Planner
}

func setup(t *testing.T, policy Policy) *fixture {
	t.Helper()
	store := memory.New()
	book := ledger.NewBook(store, nil)
	p := NewPlanner(book, table, policy, nil)
	n := 0
	p.newID = func() string {
		n++
		return fmt.Sprintf("%08x-0000", n)
	}
	return &fixture{store: store, book: book, planner: p}
}

func (f *fixture) run(t *testing.T, text string) Outcome {
	t.Helper()
	q := nlp.Parse(text, today, table)
	in := intent.New(intent.DefaultThreshold).Classify(q).Intent
	require.True(t, in.IsMutation(), "%q classified as %s", text, in)
	out, err := f.planner.Commit(context.Background(), f.planner.Plan(in, q.Entities, rc))
	require.NoError(t, err)
	return out
}

func (f *fixture) count(t *testing.T, m core.MonthKey) int {
	t.Helper()
	recs, err := f.store.Load(context.Background(), m)
	require.NoError(t, err)
	return len(recs)
}

// flakyStore fails the failAt-th append. Embedding the interface hides the
// memory store's batch path so records are written one by one.
type flakyStore struct {
	ledger.Store
	appends int
	failAt  int
}

func (s *flakyStore) Append(ctx context.Context, m core.MonthKey, e core.Expense) error {
	s.appends++
	if s.appends == s.failAt {
		return errors.New("connection reset")
	}
	return s.Store.Append(ctx, m, e)
}

func TestBatchAdd(t *testing.T) {
	f := setup(t, Partial)
	out := f.run(t, "Add $50 groceries, $30 gas, $20 lunch")

	require.Len(t, out.Added, 3)
	assert.Empty(t, out.Rejected)
	assert.Len(t, out.Deltas, 3)
	want := []struct {
		cents int64
		desc  string
	}{{5000, "groceries"}, {3000, "gas"}, {2000, "lunch"}}
	for i, w := range want {
		assert.Equal(t, w.cents, out.Added[i].Amount.Cents)
		assert.Equal(t, w.desc, out.Added[i].Description)
		assert.True(t, out.Added[i].Date.Equal(today))
	}
	assert.Equal(t, "groceries", out.Added[0].Category)
	assert.Equal(t, "transport", out.Added[1].Category)
	assert.Equal(t, 3, f.count(t, october))
}

func TestFailedAppendStillReportsWrittenRecords(t *testing.T) {
	store := &flakyStore{Store: memory.New(), failAt: 2}
	p := NewPlanner(ledger.NewBook(store, nil), table, Partial, nil)
	q := nlp.Parse("Add $50 groceries, $30 gas, $20 lunch", today, table)

	out, err := p.Commit(context.Background(), p.Plan(intent.MutateAdd, q.Entities, rc))
	require.Error(t, err)
	require.Len(t, out.Deltas, 1)
	require.Len(t, out.Added, 1)
	assert.Equal(t, "groceries", out.Added[0].Description)

	recs, err := store.Load(context.Background(), october)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestUnreadableAmountAddsNothing(t *testing.T) {
	f := setup(t, Partial)
	out := f.run(t, "Add $abc for groceries")
	require.NotNil(t, out.Failure())
	assert.Equal(t, core.KindParse, out.Failure().Kind)
	assert.Equal(t, 0, f.count(t, october))
}

func TestPartialCommitKeepsValidSiblings(t *testing.T) {
	f := setup(t, Partial)
	out := f.run(t, "add $10 coffee, groceries, $5 tea")
	assert.Len(t, out.Added, 2)
	require.Len(t, out.Rejected, 1)
	assert.Equal(t, "groceries", out.Rejected[0].Segment)
	assert.Equal(t, core.KindValidation, out.Rejected[0].Err.Kind)
	assert.Nil(t, out.Failure())
}

func TestAllOrNothingCommitsNothingOnFailure(t *testing.T) {
	f := setup(t, AllOrNothing)
	out := f.run(t, "add $10 coffee, groceries, $5 tea")
	assert.Empty(t, out.Added)
	assert.Len(t, out.Rejected, 3)
	assert.Equal(t, 0, f.count(t, october))
}

func TestZeroAmountIsRejected(t *testing.T) {
	f := setup(t, Partial)
	out := f.run(t, "add $0 coffee")
	require.NotNil(t, out.Failure())
	assert.Equal(t, "amount must be greater than zero", out.Failure().Reason)
}

func TestOversizedAmountIsRejected(t *testing.T) {
	f := setup(t, Partial)
	out := f.run(t, "add $20000000 coffee, $5 tea")
	require.Len(t, out.Rejected, 1)
	assert.Equal(t, core.KindValidation, out.Rejected[0].Err.Kind)
	assert.Equal(t, "amount is too large (max $10,000,000.00)", out.Rejected[0].Err.Reason)
	assert.Len(t, out.Added, 1)
	assert.Equal(t, 1, f.count(t, october))
}

func TestDeleteByPredicateIsIdempotent(t *testing.T) {
	f := setup(t, Partial)
	f.run(t, "add $150 flight, $20 lunch, $101 shoes")

	out := f.run(t, "Delete expenses over $100")
	assert.Len(t, out.Deleted, 2)
	out = f.run(t, "Delete expenses over $100")
	assert.Empty(t, out.Deleted)
	assert.Nil(t, out.Failure())
	assert.Equal(t, 1, f.count(t, october))
}

func TestDeleteIntersectsAmountBounds(t *testing.T) {
	f := setup(t, Partial)
	f.run(t, "add $50 groceries, $30 gas, $20 lunch")

	out := f.run(t, "delete expenses over $25 and under $40")
	require.Len(t, out.Deleted, 1)
	assert.Equal(t, "gas", out.Deleted[0].Description)
	assert.Equal(t, 2, f.count(t, october))
}

func TestDeleteWithContradictoryAmountsIsRefused(t *testing.T) {
	f := setup(t, Partial)
	f.run(t, "add $50 groceries, $30 gas")

	out := f.run(t, "delete expenses over $100 and under $20")
	require.NotNil(t, out.Failure())
	assert.Equal(t, core.KindParse, out.Failure().Kind)
	assert.Empty(t, out.Deleted)
	assert.Equal(t, 2, f.count(t, october))
}

func TestDeletePredicateIsEvaluatedAtCommit(t *testing.T) {
	f := setup(t, Partial)
	ctx := context.Background()
	q := nlp.Parse("delete coffee expenses", today, table)
	plan := f.planner.Plan(intent.MutateDelete, q.Entities, rc)

	f.run(t, "add $4 coffee")
	out, err := f.planner.Commit(ctx, plan)
	require.NoError(t, err)
	assert.Len(t, out.Deleted, 1, "records added after planning must be seen by the delete")
}

func TestDeleteNeedsAConstraint(t *testing.T) {
	f := setup(t, Partial)
	f.run(t, "add $4 coffee")
	out := f.run(t, "delete expenses")
	require.NotNil(t, out.Failure())
	assert.Equal(t, core.KindValidation, out.Failure().Kind)
	assert.Equal(t, 1, f.count(t, october))

	out = f.run(t, "delete all expenses")
	assert.Len(t, out.Deleted, 1)
}

func TestDeleteBiggest(t *testing.T) {
	f := setup(t, Partial)
	f.run(t, "add $150 flight, $20 lunch")
	out := f.run(t, "remove my biggest expense")
	require.Len(t, out.Deleted, 1)
	assert.Equal(t, "flight", out.Deleted[0].Description)
}

func TestDeleteByID(t *testing.T) {
	f := setup(t, Partial)
	added := f.run(t, "add $4 coffee, $6 bagel").Added
	require.Len(t, added, 2)

	out := f.run(t, "delete expense "+added[1].ID[:8])
	require.Len(t, out.Deleted, 1)
	assert.Equal(t, "bagel", out.Deleted[0].Description)

	out = f.run(t, "delete expense deadbeef")
	require.NotNil(t, out.Failure())
	assert.Equal(t, core.KindValidation, out.Failure().Kind)
}

func TestArchivedMonthsAreReadOnly(t *testing.T) {
	f := setup(t, Partial)
	ctx := context.Background()
	old := core.Expense{ID: "0ld00000-1", Date: core.NewDate(2026, 9, 20), Description: "coffee", Amount: core.Money{Cents: 300}}
	require.NoError(t, f.store.Append(ctx, september, old))

	out := f.run(t, "add $5 coffee on 9/21")
	require.NotNil(t, out.Failure())
	assert.Equal(t, core.KindArchiveWrite, out.Failure().Kind)

	out = f.run(t, "delete coffee expenses in september")
	require.NotNil(t, out.Err)
	assert.Equal(t, core.KindArchiveWrite, out.Err.Kind)

	out = f.run(t, "delete all coffee expenses ever")
	require.NotNil(t, out.Err)
	assert.Equal(t, core.KindArchiveWrite, out.Err.Kind)

	assert.Equal(t, 1, f.count(t, september))
}

func TestStoreArchivedCurrentMonth(t *testing.T) {
	f := setup(t, Partial)
	f.store.Archive(october)
	out := f.run(t, "add $5 coffee")
	require.NotNil(t, out.Failure())
	assert.Equal(t, core.KindArchiveWrite, out.Failure().Kind)
	assert.Equal(t, 0, f.count(t, october))
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, AllOrNothing, ParsePolicy("all-or-nothing"))
	assert.Equal(t, Partial, ParsePolicy("partial"))
	assert.Equal(t, Partial, ParsePolicy(""))
}
