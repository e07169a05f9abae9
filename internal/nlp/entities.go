package nlp

import (
	"math"

	"ledgerq/internal/core"
)

// Comparator is the relation in an amount constraint.
type Comparator string

const (
	OpEqual        Comparator = "="
	OpGreater      Comparator = ">"
	OpGreaterEqual Comparator = ">="
	OpLess         Comparator = "<"
	OpLessEqual    Comparator = "<="
	OpBetween      Comparator = "between"
)

// AmountConstraint filters records by amount. Between is inclusive on both
// ends; every other operator compares against Value.
type AmountConstraint struct {
	Op    Comparator
	Value core.Money
	Max   core.Money
	Token string
}

// Matches reports whether m satisfies the constraint.
func (a AmountConstraint) Matches(m core.Money) bool {
	c := m.Cents
	switch a.Op {
	case OpEqual:
		return c == a.Value.Cents
	case OpGreater:
		return c > a.Value.Cents
	case OpGreaterEqual:
		return c >= a.Value.Cents
	case OpLess:
		return c < a.Value.Cents
	case OpLessEqual:
		return c <= a.Value.Cents
	case OpBetween:
		return c >= a.Value.Cents && c <= a.Max.Cents
	}
	return false
}

// bounds returns the inclusive cent interval the constraint accepts.
func (a AmountConstraint) bounds() (lo, hi int64) {
	v := a.Value.Cents
	switch a.Op {
	case OpEqual:
		return v, v
	case OpGreater:
		return v + 1, math.MaxInt64
	case OpGreaterEqual:
		return v, math.MaxInt64
	case OpLess:
		return math.MinInt64, v - 1
	case OpLessEqual:
		return math.MinInt64, v
	case OpBetween:
		return v, a.Max.Cents
	}
	return 1, 0
}

// MatchAmounts applies every constraint joined by comb. No constraints
// accept every amount.
func MatchAmounts(cs []AmountConstraint, comb Combinator, m core.Money) bool {
	if len(cs) == 0 {
		return true
	}
	if comb == CombineOr {
		for _, c := range cs {
			if c.Matches(m) {
				return true
			}
		}
		return false
	}
	for _, c := range cs {
		if !c.Matches(m) {
			return false
		}
	}
	return true
}

// DateEntity is a resolved date or date range with the text it came from.
type DateEntity struct {
	Range core.DateRange
	Token string
	// Single is true for one calendar day.
	Single bool
	pos    int
}

// Combinator joins filter terms.
type Combinator string

const (
	CombineAnd Combinator = "and"
	CombineOr  Combinator = "or"
)

// FilterTerm is a category or description filter.
type FilterTerm struct {
	Term   string
	Quoted bool
}

// Aggregation is the statistic a query asks for.
type Aggregation string

const (
	AggNone         Aggregation = ""
	AggSum          Aggregation = "sum"
	AggCount        Aggregation = "count"
	AggMean         Aggregation = "mean"
	AggMedian       Aggregation = "median"
	AggMode         Aggregation = "mode-category"
	AggPercentage   Aggregation = "percentage"
	AggMax          Aggregation = "max"
	AggMin          Aggregation = "min"
	AggRatio        Aggregation = "max-min-ratio"
	AggStdDev       Aggregation = "stdev"
	AggWeekdaySplit Aggregation = "weekday-weekend"
	AggTopN         Aggregation = "top-n"
)

// Item is one "<amount> <description>" group of an add utterance. Err is set
// when the group cannot become a record.
type Item struct {
	Amount      core.Money
	AmountToken string
	HasAmount   bool
	Description string
	Date        core.Date
	DateToken   string
	Segment     string
	Err         *core.Error
}

// Entities is everything the extractor pulled from one utterance.
type Entities struct {
	// Amounts join with AmountCombinator; the result intersects with the
	// category filters, which join with Combinator.
	Amounts          []AmountConstraint
	AmountCombinator Combinator
	Dates            []DateEntity
	Filters          []FilterTerm
	Combinator       Combinator

	Aggregation   Aggregation
	TopN          int
	TopCategories bool

	// AllTime widens the default scope from the current month to every month.
	AllTime bool
	// All marks an explicit "all"/"everything", required for unconstrained deletes.
	All bool
	IDs []string

	Items []Item

	// Failures lists tokens that looked like amounts or dates but could not
	// be read.
	Failures []*core.Error
}

// HasFilters reports whether any amount, date or category filter is present.
func (e Entities) HasFilters() bool {
	return len(e.Amounts) > 0 || len(e.Dates) > 0 || len(e.Filters) > 0
}

// HasFailures reports whether any token failed to parse.
func (e Entities) HasFailures() bool { return len(e.Failures) > 0 }

// FilterStrings returns the filter terms as plain strings.
func (e Entities) FilterStrings() []string {
	out := make([]string, len(e.Filters))
	for i, f := range e.Filters {
		out[i] = f.Term
	}
	return out
}

// Query is one utterance after normalization and extraction.
type Query struct {
	Raw        string
	Normalized string
	Today      core.Date
	Entities   Entities
}
