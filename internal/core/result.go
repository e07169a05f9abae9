package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResultKind is the shape of a QueryResult payload.
type ResultKind string

const (
	ResultScalar    ResultKind = "scalar"
	ResultList      ResultKind = "list"
	ResultNarrative ResultKind = "narrative"
	ResultNoData    ResultKind = "no-data"
	ResultError     ResultKind = "error"
)

// Source tells whether a result was computed or generated.
type Source string

const (
	SourceDeterministic Source = "deterministic"
	SourceFallback      Source = "fallback"
)

// Unit says how a scalar is rendered.
type Unit string

const (
	UnitMoney   Unit = "money"
	UnitCount   Unit = "count"
	UnitPercent Unit = "percent"
	UnitRatio   Unit = "ratio"
)

// Scalar is one labelled number. Value is exact; rounding happens when it is
// rendered.
type Scalar struct {
	Label string
	Value decimal.Decimal
	Unit  Unit
	// Defined is false when the value has no meaning, e.g. a percent
	// change against a zero baseline.
	Defined bool
}

// QueryResult is what every pipeline branch produces.
type QueryResult struct {
	Kind       ResultKind
	Source     Source
	Confidence float64
	// Metric names the computation ("sum", "median", "list", "trend", ...).
	Metric string
	// Scope describes the records considered, e.g. "October 2026".
	Scope   string
	Scalars []Scalar
	Records []Expense
	Text    string
	Err     *Error
}

// ErrorResult wraps any error as a QueryResult of kind error.
func ErrorResult(err error) QueryResult {
	return QueryResult{Kind: ResultError, Source: SourceDeterministic, Err: AsError(err)}
}

// NoData reports an empty filtered set.
func NoData(metric, scope string) QueryResult {
	return QueryResult{Kind: ResultNoData, Source: SourceDeterministic, Metric: metric, Scope: scope}
}

// DeltaOp is the kind of change a LedgerDelta records.
type DeltaOp string

const (
	DeltaAdded   DeltaOp = "added"
	DeltaDeleted DeltaOp = "deleted"
)

// LedgerDelta tells presentation layers what to refresh after a commit.
type LedgerDelta struct {
	Op     DeltaOp
	Month  MonthKey
	Record Expense
}

// RequestContext is supplied by the caller for every query; the pipeline
// never reads the live clock.
type RequestContext struct {
	Today Date
	// Now stamps CreatedAt on new records. Zero means Today at midnight.
	Now time.Time
	// RequestID correlates logs; optional.
	RequestID string
}

// CurrentMonth is the only month the mutation pipeline may write.
func (rc RequestContext) CurrentMonth() MonthKey {
	return MonthOf(rc.Today)
}

// Timestamp returns the creation time for new records.
func (rc RequestContext) Timestamp() time.Time {
	if rc.Now.IsZero() {
		return rc.Today.Time
	}
	return rc.Now
}
