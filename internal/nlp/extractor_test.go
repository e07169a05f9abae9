package nlp

import (
	"reflect"
	"testing"

	"ledgerq/internal/core"
)

var table = core.DefaultCategoryTable()

func extract(in string) Entities { return Parse(in, ref, table).Entities }

func TestExtractAmount(t *testing.T) {
	cases := []struct {
		in       string
		op       Comparator
		lo, hi   int64
		noAmount bool
	}{
		{in: "expenses over $100", op: OpGreater, lo: 10000},
		{in: "under $50", op: OpLess, lo: 5000},
		{in: "exactly $100", op: OpEqual, lo: 10000},
		{in: "100 dollars", op: OpEqual, lo: 10000},
		{in: "at least $20.5", op: OpGreaterEqual, lo: 2050},
		{in: "no more than 15", op: OpLessEqual, lo: 1500},
		{in: "between $50 and $200", op: OpBetween, lo: 5000, hi: 20000},
		{in: "between 200 and 50", op: OpBetween, lo: 5000, hi: 20000},
		{in: "> 30", op: OpGreater, lo: 3000},
		{in: "what did i spend", noAmount: true},
	}
	for _, tc := range cases {
		e := extract(tc.in)
		if tc.noAmount {
			if len(e.Amounts) != 0 {
				t.Fatalf("%q: unexpected amounts %+v", tc.in, e.Amounts)
			}
			continue
		}
		if len(e.Amounts) != 1 {
			t.Fatalf("%q: got %d amounts, want 1", tc.in, len(e.Amounts))
		}
		a := e.Amounts[0]
		if a.Op != tc.op || a.Value.Cents != tc.lo || a.Max.Cents != tc.hi {
			t.Fatalf("%q: got %+v", tc.in, a)
		}
	}
}

func TestExtractSeveralAmounts(t *testing.T) {
	cases := []struct {
		in   string
		ops  []Comparator
		comb Combinator
	}{
		{in: "delete expenses over $25 and under $40", ops: []Comparator{OpGreater, OpLess}, comb: CombineAnd},
		{in: "expenses under $10 or over $100", ops: []Comparator{OpLess, OpGreater}, comb: CombineOr},
		{in: "at least $5, at most $20", ops: []Comparator{OpGreaterEqual, OpLessEqual}, comb: CombineAnd},
		{in: "between $10 and $20 or over $500", ops: []Comparator{OpBetween, OpGreater}, comb: CombineOr},
	}
	for _, tc := range cases {
		e := extract(tc.in)
		if len(e.Failures) != 0 {
			t.Fatalf("%q: unexpected failures %v", tc.in, e.Failures)
		}
		var ops []Comparator
		for _, a := range e.Amounts {
			ops = append(ops, a.Op)
		}
		if !reflect.DeepEqual(ops, tc.ops) || e.AmountCombinator != tc.comb {
			t.Fatalf("%q: got %v (%s), want %v (%s)", tc.in, ops, e.AmountCombinator, tc.ops, tc.comb)
		}
	}
}

func TestContradictoryAmountsAreAFailure(t *testing.T) {
	e := extract("delete expenses over $100 and under $50")
	if len(e.Failures) != 1 || e.Failures[0].Kind != core.KindParse {
		t.Fatalf("failures = %v, want one ParseError", e.Failures)
	}
}

func TestMatchAmounts(t *testing.T) {
	over := AmountConstraint{Op: OpGreater, Value: core.Money{Cents: 2500}}
	under := AmountConstraint{Op: OpLess, Value: core.Money{Cents: 4000}}
	cs := []AmountConstraint{over, under}
	for cents, want := range map[int64]bool{2000: false, 2500: false, 3000: true, 4000: false, 5000: false} {
		if got := MatchAmounts(cs, CombineAnd, core.Money{Cents: cents}); got != want {
			t.Fatalf("and: MatchAmounts(%d) = %v", cents, got)
		}
	}
	if !MatchAmounts(cs, CombineOr, core.Money{Cents: 5000}) {
		t.Fatal("or: 5000 should match over $25")
	}
	if !MatchAmounts(nil, CombineAnd, core.Money{Cents: 1}) {
		t.Fatal("no constraints should accept everything")
	}
}

func TestAmountConstraintMatchesInclusiveRange(t *testing.T) {
	c := AmountConstraint{Op: OpBetween, Value: core.Money{Cents: 5000}, Max: core.Money{Cents: 20000}}
	for cents, want := range map[int64]bool{4999: false, 5000: true, 12000: true, 20000: true, 20001: false} {
		if got := c.Matches(core.Money{Cents: cents}); got != want {
			t.Fatalf("Matches(%d) = %v", cents, got)
		}
	}
}

func TestMalformedAmountIsReportedPerToken(t *testing.T) {
	e := extract("show expenses over $abc this month")
	if len(e.Failures) != 1 {
		t.Fatalf("expected one failure, got %v", e.Failures)
	}
	if e.Failures[0].Kind != core.KindParse || e.Failures[0].Token != "$abc" {
		t.Fatalf("unexpected failure %+v", e.Failures[0])
	}
	if len(e.Dates) != 1 {
		t.Fatalf("date extraction should survive a bad amount")
	}
}

func TestExtractAggregation(t *testing.T) {
	cases := map[string]Aggregation{
		"what's my average expense?":                 AggMean,
		"what's my total":                            AggSum,
		"how much did i spend on coffee":             AggSum,
		"how many expenses last week":                AggCount,
		"median spending":                            AggMedian,
		"standard deviation of my expenses":          AggStdDev,
		"ratio of biggest to smallest expense":       AggRatio,
		"what percentage of total is food":           AggPercentage,
		"weekday vs weekend spending":                AggWeekdaySplit,
		"most common category":                       AggMode,
		"biggest expense this month":                 AggMax,
		"cheapest purchase":                          AggMin,
		"top 3 expenses":                             AggTopN,
		"which category did i spend the most on":     AggTopN,
		"list expenses over $20":                     AggNone,
	}
	for in, want := range cases {
		if got := extract(in).Aggregation; got != want {
			t.Fatalf("%q: aggregation %q, want %q", in, got, want)
		}
	}
}

func TestExtractTopN(t *testing.T) {
	cases := []struct {
		in         string
		n          int
		categories bool
	}{
		{"top 3 expenses", 3, false},
		{"top five expenses", 5, false},
		{"10 biggest purchases", 10, false},
		{"top categories", DefaultTopN, true},
		{"top category this month", 1, true},
		{"which category did i spend the most on", 1, true},
		{"spending by category", 0, true},
	}
	for _, tc := range cases {
		e := extract(tc.in)
		if e.Aggregation != AggTopN || e.TopN != tc.n || e.TopCategories != tc.categories {
			t.Fatalf("%q: got agg=%q n=%d categories=%v", tc.in, e.Aggregation, e.TopN, e.TopCategories)
		}
	}
}

func TestExtractFilters(t *testing.T) {
	cases := []struct {
		in   string
		want []string
		comb Combinator
	}{
		{"how much on food this month", []string{"food"}, CombineAnd},
		{"how much did i spend on coffee", []string{"coffee"}, CombineAnd},
		{"show me uber or lyft expenses", []string{"uber", "lyft"}, CombineOr},
		{"groceries or dining over $20", []string{"groceries", "dining"}, CombineOr},
		{`expenses matching "whole foods"`, []string{"whole foods"}, CombineAnd},
		{"show whole foods purchases", []string{"whole foods"}, CombineAnd},
		{"what's my average expense?", nil, CombineAnd},
		{"show me", nil, CombineAnd},
	}
	for _, tc := range cases {
		e := extract(tc.in)
		got := e.FilterStrings()
		if len(got) == 0 {
			got = nil
		}
		if !reflect.DeepEqual(got, tc.want) || e.Combinator != tc.comb {
			t.Fatalf("%q: filters %v (%s), want %v (%s)", tc.in, got, e.Combinator, tc.want, tc.comb)
		}
	}
}

func TestExtractFlags(t *testing.T) {
	if e := extract("total spending of all time"); !e.AllTime {
		t.Fatalf("expected all-time scope")
	}
	if e := extract("delete all expenses"); !e.All || e.AllTime {
		t.Fatalf("expected explicit all without all-time, got %+v", e)
	}
	e := extract("delete expense 3f2a9c1e-77aa")
	if !reflect.DeepEqual(e.IDs, []string{"3f2a9c1e-77aa"}) {
		t.Fatalf("unexpected ids %v", e.IDs)
	}
	if len(e.Filters) != 0 {
		t.Fatalf("id text leaked into filters: %v", e.FilterStrings())
	}
}

func TestParseKeepsRawAndNormalized(t *testing.T) {
	q := Parse("What's my TOTAL?", ref, table)
	if q.Raw != "What's my TOTAL?" || q.Normalized != "whats my total" || !q.Today.Equal(ref) {
		t.Fatalf("unexpected query %+v", q)
	}
}
