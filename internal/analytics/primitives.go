// Package analytics computes exact statistics over ledger records.
//
// Every reduction works on integer cents or exact decimals and sorts its own
// copy of the input where order matters, so results do not depend on the
// order records were inserted. Rounding to cents happens only when a result
// is rendered.
package analytics

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"ledgerq/internal/core"
)

// Uncategorized labels records no category keyword matches.
const Uncategorized = "uncategorized"

var hundred = decimal.NewFromInt(100)

// Sum adds amounts in cents.
func Sum(rs []core.Expense) core.Money {
	var total int64
	for _, r := range rs {
		total += r.Amount.Cents
	}
	return core.Money{Cents: total}
}

// Mean returns the unrounded arithmetic mean; false on empty input.
func Mean(rs []core.Expense) (decimal.Decimal, bool) {
	if len(rs) == 0 {
		return decimal.Zero, false
	}
	return Sum(rs).Decimal().Div(decimal.NewFromInt(int64(len(rs)))), true
}

func sortedCents(rs []core.Expense) []int64 {
	cents := make([]int64, len(rs))
	for i, r := range rs {
		cents[i] = r.Amount.Cents
	}
	sort.Slice(cents, func(i, j int) bool { return cents[i] < cents[j] })
	return cents
}

// Median returns the middle amount, averaging the two middle values of an
// even-sized set.
func Median(rs []core.Expense) (decimal.Decimal, bool) {
	if len(rs) == 0 {
		return decimal.Zero, false
	}
	c := sortedCents(rs)
	mid := len(c) / 2
	if len(c)%2 == 1 {
		return decimal.New(c[mid], -2), true
	}
	pair := decimal.NewFromInt(c[mid-1] + c[mid])
	return pair.Div(decimal.NewFromInt(2)).Div(hundred), true
}

// StdDev is the population standard deviation over the whole set.
func StdDev(rs []core.Expense) (decimal.Decimal, bool) {
	if len(rs) == 0 {
		return decimal.Zero, false
	}
	n := decimal.NewFromInt(int64(len(rs)))
	sum, sumSq := decimal.Zero, decimal.Zero
	for _, r := range rs {
		x := decimal.NewFromInt(r.Amount.Cents)
		sum = sum.Add(x)
		sumSq = sumSq.Add(x.Mul(x))
	}
	variance := n.Mul(sumSq).Sub(sum.Mul(sum)).Div(n.Mul(n))
	v, _ := variance.Float64()
	if v <= 0 {
		return decimal.Zero, true
	}
	return decimal.NewFromFloat(math.Sqrt(v)).Div(hundred), true
}

// less orders records by amount, then date, then id, so ties break the same
// way whatever the input order.
func less(a, b core.Expense) bool {
	if a.Amount.Cents != b.Amount.Cents {
		return a.Amount.Cents < b.Amount.Cents
	}
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	return a.ID < b.ID
}

// Max returns the largest expense; ties go to the earliest.
func Max(rs []core.Expense) (core.Expense, bool) {
	if len(rs) == 0 {
		return core.Expense{}, false
	}
	best := rs[0]
	for _, r := range rs[1:] {
		if r.Amount.Cents > best.Amount.Cents || (r.Amount.Cents == best.Amount.Cents && less(r, best)) {
			best = r
		}
	}
	return best, true
}

// Min returns the smallest expense; ties go to the earliest.
func Min(rs []core.Expense) (core.Expense, bool) {
	if len(rs) == 0 {
		return core.Expense{}, false
	}
	best := rs[0]
	for _, r := range rs[1:] {
		if less(r, best) {
			best = r
		}
	}
	return best, true
}

// MaxMinRatio divides the largest amount by the smallest. ok is false on
// empty input and defined is false when the smallest amount is zero.
func MaxMinRatio(rs []core.Expense) (ratio decimal.Decimal, ok, defined bool) {
	hi, ok := Max(rs)
	if !ok {
		return decimal.Zero, false, false
	}
	lo, _ := Min(rs)
	if lo.Amount.Cents == 0 {
		return decimal.Zero, true, false
	}
	return decimal.NewFromInt(hi.Amount.Cents).Div(decimal.NewFromInt(lo.Amount.Cents)), true, true
}

// Percentage returns part as a percent of total; false when total is zero.
func Percentage(part, total core.Money) (decimal.Decimal, bool) {
	if total.Cents == 0 {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(part.Cents).Mul(hundred).Div(decimal.NewFromInt(total.Cents)), true
}

// TopN returns the n largest expenses, largest first.
func TopN(rs []core.Expense, n int) []core.Expense {
	out := append([]core.Expense(nil), rs...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[j], out[i]) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// ByCategory totals records per category, largest total first with ties
// broken alphabetically.
func ByCategory(rs []core.Expense, table *core.CategoryTable) []core.CategoryAmount {
	idx := make(map[string]int)
	var out []core.CategoryAmount
	for _, r := range rs {
		name := table.CategoryOf(r)
		if name == "" {
			name = Uncategorized
		}
		i, ok := idx[name]
		if !ok {
			i = len(out)
			idx[name] = i
			out = append(out, core.CategoryAmount{Name: name})
		}
		out[i].Amount.Cents += r.Amount.Cents
		out[i].Count++
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount.Cents != out[j].Amount.Cents {
			return out[i].Amount.Cents > out[j].Amount.Cents
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// TopCategories returns the n categories with the largest totals; n <= 0
// returns all of them.
func TopCategories(rs []core.Expense, table *core.CategoryTable, n int) []core.CategoryAmount {
	cats := ByCategory(rs, table)
	if n > 0 && len(cats) > n {
		cats = cats[:n]
	}
	return cats
}

// ModeCategory returns the category with the most records, ties broken
// alphabetically.
func ModeCategory(rs []core.Expense, table *core.CategoryTable) (core.CategoryAmount, bool) {
	cats := ByCategory(rs, table)
	if len(cats) == 0 {
		return core.CategoryAmount{}, false
	}
	best := cats[0]
	for _, c := range cats[1:] {
		if c.Count > best.Count || (c.Count == best.Count && c.Name < best.Name) {
			best = c
		}
	}
	return best, true
}

// Split holds weekday and weekend totals.
type Split struct {
	Weekday, Weekend           core.Money
	WeekdayCount, WeekendCount int
}

// WeekdaySplit partitions records by whether they fall on a weekend.
func WeekdaySplit(rs []core.Expense) Split {
	var s Split
	for _, r := range rs {
		if r.Date.IsWeekend() {
			s.Weekend.Cents += r.Amount.Cents
			s.WeekendCount++
		} else {
			s.Weekday.Cents += r.Amount.Cents
			s.WeekdayCount++
		}
	}
	return s
}

// Change compares two window totals.
type Change struct {
	Earlier, Later core.Money
	Delta          core.Money
	// Percent is relative to Earlier and undefined when Earlier is zero.
	Percent        decimal.Decimal
	PercentDefined bool
}

// Trend computes the delta and percent change from earlier to later.
func Trend(earlier, later []core.Expense) Change {
	c := Change{Earlier: Sum(earlier), Later: Sum(later)}
	c.Delta = core.Money{Cents: c.Later.Cents - c.Earlier.Cents}
	if c.Earlier.Cents != 0 {
		c.Percent = decimal.NewFromInt(c.Delta.Cents).Mul(hundred).Div(decimal.NewFromInt(c.Earlier.Cents))
		c.PercentDefined = true
	}
	return c
}
