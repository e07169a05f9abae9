// Package mutation turns add and delete intents into validated plans and
// commits them against the month ledger under its exclusive lock.
package mutation

import (
	"ledgerq/internal/analytics"
	"ledgerq/internal/core"
	"ledgerq/internal/nlp"
)

// OpKind is the kind of one planned operation.
type OpKind string

const (
	OpAdd         OpKind = "add-one"
	OpDeleteWhere OpKind = "delete-by-predicate"
	OpDeleteIDs   OpKind = "delete-by-id"
)

// Policy decides what happens to valid operations when a sibling fails.
type Policy string

const (
	// Partial commits every valid operation.
	Partial Policy = "partial"
	// AllOrNothing commits nothing unless every operation is valid.
	AllOrNothing Policy = "all-or-nothing"
)

// ParsePolicy maps a configuration value to a Policy, defaulting to Partial.
func ParsePolicy(s string) Policy {
	if Policy(s) == AllOrNothing {
		return AllOrNothing
	}
	return Partial
}

// Predicate selects the records a delete removes. It is evaluated against
// the ledger at commit time, not when the plan is built.
type Predicate struct {
	Scope  analytics.Scope
	Filter analytics.Filter
	// Select narrows the matches to the largest, smallest or top N.
	Select nlp.Aggregation
	N      int
}

// Op is one planned operation and its validation outcome.
type Op struct {
	Kind      OpKind
	Index     int
	Segment   string
	Record    core.Expense
	Predicate Predicate
	IDs       []string
	// Err is nil for a valid operation.
	Err *core.Error
}

// Valid reports whether the operation passed validation.
func (o Op) Valid() bool { return o.Err == nil }

// Plan is the ordered set of operations for one utterance.
type Plan struct {
	Ops    []Op
	Policy Policy
	// Month is the only ledger the plan may write.
	Month core.MonthKey
}

// Invalid returns the operations that failed validation.
func (p Plan) Invalid() []Op {
	var out []Op
	for _, o := range p.Ops {
		if !o.Valid() {
			out = append(out, o)
		}
	}
	return out
}

// Rejection explains why one operation was not applied.
type Rejection struct {
	Index   int
	Segment string
	Err     *core.Error
}

// Outcome is what a commit did.
type Outcome struct {
	Added    []core.Expense
	Deleted  []core.Expense
	Rejected []Rejection
	Deltas   []core.LedgerDelta
	// Err is set when the whole plan was refused, e.g. a delete touching
	// an archived month.
	Err *core.Error
}

// Applied reports whether anything changed.
func (o Outcome) Applied() bool { return len(o.Added)+len(o.Deleted) > 0 }

// Failure returns the error to surface when nothing was applied and at
// least one operation failed. A delete that matched nothing is not a
// failure.
func (o Outcome) Failure() *core.Error {
	if o.Err != nil {
		return o.Err
	}
	if o.Applied() || len(o.Rejected) == 0 {
		return nil
	}
	return o.Rejected[0].Err
}
