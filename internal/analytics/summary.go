package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ledgerq/internal/core"
)

// Summary is the compact, precomputed view of a ledger slice handed to the
// fallback model instead of raw records.
type Summary struct {
	Scope      string
	Count      int
	Total      core.Money
	Mean       decimal.Decimal
	Median     decimal.Decimal
	Largest    core.Money
	Smallest   core.Money
	Split      Split
	ByCategory []core.CategoryAmount
	ByMonth    []core.MonthOverview
}

// Summarize computes a Summary over rs. ByMonth lists months oldest first.
func Summarize(rs []core.Expense, scope string, table *core.CategoryTable) Summary {
	s := Summary{Scope: scope, Count: len(rs), Total: Sum(rs), Split: WeekdaySplit(rs)}
	if len(rs) == 0 {
		return s
	}
	s.Mean, _ = Mean(rs)
	s.Median, _ = Median(rs)
	hi, _ := Max(rs)
	lo, _ := Min(rs)
	s.Largest, s.Smallest = hi.Amount, lo.Amount
	s.ByCategory = ByCategory(rs, table)

	months := make(map[core.MonthKey][]core.Expense)
	var keys []core.MonthKey
	for _, r := range rs {
		k := r.Month()
		if _, ok := months[k]; !ok {
			keys = append(keys, k)
		}
		months[k] = append(months[k], r)
	}
	sortKeys(keys)
	for _, k := range keys {
		s.ByMonth = append(s.ByMonth, Overview(k, months[k], false, table))
	}
	return s
}

// Overview builds the per-month summary shown by presentation layers.
func Overview(k core.MonthKey, rs []core.Expense, archived bool, table *core.CategoryTable) core.MonthOverview {
	return core.MonthOverview{
		Year:       k.Year,
		Month:      int(k.Month),
		Total:      Sum(rs),
		Count:      len(rs),
		Archived:   archived,
		ByCategory: ByCategory(rs, table),
	}
}

// Render formats the summary as plain lines for a prompt. It contains only
// aggregates, never individual records.
func (s Summary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scope: %s\n", s.Scope)
	fmt.Fprintf(&b, "Expenses: %d\n", s.Count)
	if s.Count == 0 {
		return b.String()
	}
	fmt.Fprintf(&b, "Total: %s\n", s.Total.Decimal().StringFixed(2))
	fmt.Fprintf(&b, "Average: %s\n", core.RoundHalfUp(s.Mean).StringFixed(2))
	fmt.Fprintf(&b, "Median: %s\n", core.RoundHalfUp(s.Median).StringFixed(2))
	fmt.Fprintf(&b, "Largest: %s, smallest: %s\n", s.Largest.Decimal().StringFixed(2), s.Smallest.Decimal().StringFixed(2))
	fmt.Fprintf(&b, "Weekdays: %s over %d, weekends: %s over %d\n",
		s.Split.Weekday.Decimal().StringFixed(2), s.Split.WeekdayCount,
		s.Split.Weekend.Decimal().StringFixed(2), s.Split.WeekendCount)
	if len(s.ByCategory) > 0 {
		b.WriteString("By category:\n")
		for _, c := range s.ByCategory {
			fmt.Fprintf(&b, "- %s: %s (%d)\n", c.Name, c.Amount.Decimal().StringFixed(2), c.Count)
		}
	}
	if len(s.ByMonth) > 1 {
		b.WriteString("By month:\n")
		for _, m := range s.ByMonth {
			k := core.MonthKey{Year: m.Year, Month: time.Month(m.Month)}
			fmt.Fprintf(&b, "- %s: %s (%d)\n", k.Label(), m.Total.Decimal().StringFixed(2), m.Count)
		}
	}
	return b.String()
}
