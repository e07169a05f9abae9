package mutation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ledgerq/internal/analytics"
	"ledgerq/internal/core"
	"ledgerq/internal/intent"
	"ledgerq/internal/ledger"
	"ledgerq/internal/log"
	"ledgerq/internal/nlp"
)

// minIDPrefix is the shortest id prefix accepted for delete-by-id.
const minIDPrefix = 8

// Planner builds and commits mutation plans.
type Planner struct {
	book   *ledger.Book
	table  *core.CategoryTable
	policy Policy
	logger *log.Logger
	newID  func() string
}

// NewPlanner returns a planner writing through book.
func NewPlanner(book *ledger.Book, table *core.CategoryTable, policy Policy, logger *log.Logger) *Planner {
	if logger == nil {
		logger = log.Discard()
	}
	return &Planner{
		book:   book,
		table:  table,
		policy: policy,
		logger: logger.WithComponent(log.ComponentMutation),
		newID:  uuid.NewString,
	}
}

// Plan validates the entities of a mutating intent. Nothing is read from or
// written to the ledger here.
func (p *Planner) Plan(in intent.Intent, e nlp.Entities, rc core.RequestContext) Plan {
	plan := Plan{Policy: p.policy, Month: rc.CurrentMonth()}
	switch in {
	case intent.MutateAdd:
		plan.Ops = p.planAdds(e, rc)
	case intent.MutateDelete:
		plan.Ops = []Op{p.planDelete(e, rc)}
	}
	return plan
}

func (p *Planner) planAdds(e nlp.Entities, rc core.RequestContext) []Op {
	if len(e.Items) == 0 {
		return []Op{{Kind: OpAdd, Err: core.NewError(core.KindValidation, "", "amount is missing")}}
	}
	current := rc.CurrentMonth()
	ops := make([]Op, 0, len(e.Items))
	for i, it := range e.Items {
		op := Op{Kind: OpAdd, Index: i, Segment: it.Segment}
		if it.Err != nil {
			op.Err = it.Err
			ops = append(ops, op)
			continue
		}
		op.Record = core.Expense{
			ID:          p.newID(),
			Date:        it.Date,
			Description: it.Description,
			Amount:      it.Amount,
			Category:    p.table.Categorize(it.Description),
			CreatedAt:   rc.Timestamp(),
		}
		if err := op.Record.Validate(); err != nil {
			op.Err = core.ValidationFromErr(err)
			op.Err.Token = it.Segment
		} else if m := op.Record.Month(); m != current {
			op.Err = core.NewError(core.KindArchiveWrite, it.DateToken,
				fmt.Sprintf("%s is archived and read-only", m.Label()))
		}
		ops = append(ops, op)
	}
	return ops
}

func (p *Planner) planDelete(e nlp.Entities, rc core.RequestContext) Op {
	op := Op{Kind: OpDeleteWhere}
	if len(e.Failures) > 0 {
		op.Err = e.Failures[0]
		return op
	}
	if len(e.IDs) > 0 {
		op.Kind = OpDeleteIDs
		op.IDs = e.IDs
		for _, id := range e.IDs {
			if len(strings.TrimSuffix(id, "-")) < minIDPrefix {
				op.Err = core.NewError(core.KindValidation, id, "expense ids need at least 8 characters")
			}
		}
		return op
	}

	pred := Predicate{
		Scope:  analytics.ResolveScope(intent.MutateDelete, e, rc.Today),
		Filter: analytics.FilterFrom(e),
	}
	switch e.Aggregation {
	case nlp.AggMax, nlp.AggMin:
		pred.Select, pred.N = e.Aggregation, 1
	case nlp.AggTopN:
		if !e.TopCategories {
			pred.Select, pred.N = nlp.AggTopN, e.TopN
		}
	}
	op.Predicate = pred
	if pred.Filter.Empty() && len(e.Dates) == 0 && !e.All && pred.Select == nlp.AggNone {
		op.Err = core.NewError(core.KindValidation, "", "say which expenses to delete, or say all")
	}
	return op
}

// Commit applies the valid operations of plan. Adds and deletes each run as
// one atomic unit against the current month ledger.
func (p *Planner) Commit(ctx context.Context, plan Plan) (Outcome, error) {
	var out Outcome
	invalid := plan.Invalid()
	for _, o := range invalid {
		out.Rejected = append(out.Rejected, Rejection{Index: o.Index, Segment: o.Segment, Err: o.Err})
	}
	if plan.Policy == AllOrNothing && len(invalid) > 0 {
		for _, o := range plan.Ops {
			if o.Valid() {
				out.Rejected = append(out.Rejected, Rejection{Index: o.Index, Segment: o.Segment,
					Err: core.NewError(core.KindValidation, o.Segment, "not saved because another item failed")})
			}
		}
		p.log(ctx, plan, out)
		return out, nil
	}

	var adds []Op
	for _, o := range plan.Ops {
		if !o.Valid() {
			continue
		}
		switch o.Kind {
		case OpAdd:
			adds = append(adds, o)
		case OpDeleteWhere:
			if err := p.deleteWhere(ctx, plan.Month, o.Predicate, &out); err != nil {
				return out, err
			}
		case OpDeleteIDs:
			if err := p.deleteIDs(ctx, plan.Month, o, &out); err != nil {
				return out, err
			}
		}
	}
	if len(adds) > 0 {
		if err := p.add(ctx, plan.Month, adds, &out); err != nil {
			return out, err
		}
	}
	p.log(ctx, plan, out)
	return out, nil
}

func (p *Planner) add(ctx context.Context, month core.MonthKey, ops []Op, out *Outcome) error {
	deltas, err := p.book.Mutate(ctx, month, month, func(tx *ledger.Tx) error {
		for _, o := range ops {
			if err := tx.Add(o.Record); err != nil {
				return err
			}
		}
		return nil
	})
	// a store failure part way through still leaves earlier records written
	out.record(deltas)
	if ce := archiveError(err); ce != nil {
		for _, o := range ops {
			out.Rejected = append(out.Rejected, Rejection{Index: o.Index, Segment: o.Segment, Err: ce})
		}
		return nil
	}
	return err
}

func (p *Planner) deleteWhere(ctx context.Context, current core.MonthKey, pred Predicate, out *Outcome) error {
	months := pred.Scope.Months()
	if pred.Scope.AllTime {
		all, err := p.book.Months(ctx)
		if err != nil {
			return err
		}
		months = all
	}
	for _, m := range months {
		archived, err := p.book.IsArchived(ctx, m, current)
		if err != nil {
			return err
		}
		if archived {
			out.Err = core.NewError(core.KindArchiveWrite, m.String(), fmt.Sprintf("%s is archived and read-only", m.Label()))
			return nil
		}
	}
	if len(months) == 0 {
		return nil
	}

	deltas, err := p.book.Mutate(ctx, current, current, func(tx *ledger.Tx) error {
		matches := analytics.Apply(tx.Records(), pred.Scope, pred.Filter, p.table)
		switch pred.Select {
		case nlp.AggMax, nlp.AggTopN:
			matches = analytics.TopN(matches, pred.N)
		case nlp.AggMin:
			if r, ok := analytics.Min(matches); ok {
				matches = []core.Expense{r}
			}
		}
		for _, r := range matches {
			tx.Delete(r.ID)
		}
		return nil
	})
	out.record(deltas)
	if ce := archiveError(err); ce != nil {
		out.Err = ce
		return nil
	}
	if err != nil {
		return err
	}
	return nil
}

func (p *Planner) deleteIDs(ctx context.Context, current core.MonthKey, op Op, out *Outcome) error {
	var missing []string
	deltas, err := p.book.Mutate(ctx, current, current, func(tx *ledger.Tx) error {
		recs := tx.Records()
		missing = missing[:0]
		for _, id := range op.IDs {
			var hits []string
			for _, r := range recs {
				if r.ID == id || strings.HasPrefix(r.ID, id) {
					hits = append(hits, r.ID)
				}
			}
			switch len(hits) {
			case 0:
				missing = append(missing, id)
			case 1:
				tx.Delete(hits[0])
			default:
				out.Rejected = append(out.Rejected, Rejection{Index: op.Index, Segment: id,
					Err: core.NewError(core.KindValidation, id, "more than one expense starts with that id")})
			}
		}
		return nil
	})
	out.record(deltas)
	if ce := archiveError(err); ce != nil {
		out.Err = ce
		return nil
	}
	if err != nil {
		return err
	}

	for _, id := range missing {
		rej := Rejection{Index: op.Index, Segment: id,
			Err: core.NewError(core.KindValidation, id, "no expense this month has that id")}
		if m, ok, err := p.findArchived(ctx, current, id); err != nil {
			return err
		} else if ok {
			rej.Err = core.NewError(core.KindArchiveWrite, id, fmt.Sprintf("%s is archived and read-only", m.Label()))
		}
		out.Rejected = append(out.Rejected, rej)
	}
	return nil
}

// findArchived looks for id in months other than current.
func (p *Planner) findArchived(ctx context.Context, current core.MonthKey, id string) (core.MonthKey, bool, error) {
	months, err := p.book.Months(ctx)
	if err != nil {
		return core.MonthKey{}, false, err
	}
	for _, m := range months {
		if m == current {
			continue
		}
		snap, err := p.book.Snapshot(ctx, m)
		if err != nil {
			return core.MonthKey{}, false, err
		}
		for _, r := range snap.Records {
			if r.ID == id || strings.HasPrefix(r.ID, id) {
				return m, true, nil
			}
		}
	}
	return core.MonthKey{}, false, nil
}

func (o *Outcome) record(deltas []core.LedgerDelta) {
	for _, d := range deltas {
		switch d.Op {
		case core.DeltaAdded:
			o.Added = append(o.Added, d.Record)
		case core.DeltaDeleted:
			o.Deleted = append(o.Deleted, d.Record)
		}
	}
	o.Deltas = append(o.Deltas, deltas...)
}

func archiveError(err error) *core.Error {
	if err == nil || !errors.Is(err, core.ErrArchiveWrite) {
		return nil
	}
	return core.AsError(err)
}

func (p *Planner) log(ctx context.Context, plan Plan, out Outcome) {
	fields := log.NewFields().
		WithRequestID(log.RequestID(ctx)).
		WithMonth(plan.Month.String()).
		WithOperation(log.OpCommit).
		WithMutation(len(out.Added), len(out.Deleted), len(out.Rejected))
	if out.Err != nil {
		fields = fields.WithError(out.Err)
		p.logger.WarnContext(ctx, "Mutation refused", fields.ToSlice()...)
		return
	}
	p.logger.InfoContext(ctx, "Mutation committed", fields.ToSlice()...)
}
