package analytics

import (
	"ledgerq/internal/core"
	"ledgerq/internal/nlp"
)

// Filter is the amount and category/description part of a predicate. The
// date part lives in Scope. Queries and delete predicates both go through
// Filter so there is one definition of "matches".
type Filter struct {
	Amounts          []nlp.AmountConstraint
	AmountCombinator nlp.Combinator
	Terms            []string
	Combinator       nlp.Combinator
}

// FilterFrom takes the non-date filters out of extracted entities.
func FilterFrom(e nlp.Entities) Filter {
	return Filter{
		Amounts:          e.Amounts,
		AmountCombinator: e.AmountCombinator,
		Terms:            e.FilterStrings(),
		Combinator:       e.Combinator,
	}
}

// Empty reports whether the filter accepts everything.
func (f Filter) Empty() bool { return len(f.Amounts) == 0 && len(f.Terms) == 0 }

// Match applies the amount constraints and then the terms, each group joined
// by its own combinator; the two groups intersect.
func (f Filter) Match(r core.Expense, table *core.CategoryTable) bool {
	if !nlp.MatchAmounts(f.Amounts, f.AmountCombinator, r.Amount) {
		return false
	}
	if len(f.Terms) == 0 {
		return true
	}
	if f.Combinator == nlp.CombineOr {
		for _, t := range f.Terms {
			if table.Matches(r, t) {
				return true
			}
		}
		return false
	}
	for _, t := range f.Terms {
		if !table.Matches(r, t) {
			return false
		}
	}
	return true
}

// Apply keeps the records inside scope that match f, preserving order.
func Apply(rs []core.Expense, scope Scope, f Filter, table *core.CategoryTable) []core.Expense {
	var out []core.Expense
	for _, r := range rs {
		if scope.Contains(r.Date) && f.Match(r, table) {
			out = append(out, r)
		}
	}
	return out
}

// InRange keeps the records whose date is inside r.
func InRange(rs []core.Expense, r core.DateRange) []core.Expense {
	var out []core.Expense
	for _, e := range rs {
		if r.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}
