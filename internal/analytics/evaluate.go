package analytics

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"ledgerq/internal/core"
	"ledgerq/internal/intent"
	"ledgerq/internal/nlp"
)

// ErrUnresolved means the query is analytical but the entities do not pin
// down a computation; callers hand it to the fallback path.
var ErrUnresolved = errors.New("analytics: query cannot be resolved deterministically")

// Metric names reported on results.
const (
	MetricList       = "list"
	MetricLookup     = "lookup"
	MetricSum        = "total"
	MetricCount      = "count"
	MetricMean       = "average"
	MetricMedian     = "median"
	MetricStdDev     = "standard deviation"
	MetricMode       = "most common category"
	MetricPercentage = "share of total"
	MetricMax        = "largest expense"
	MetricMin        = "smallest expense"
	MetricRatio      = "largest to smallest ratio"
	MetricSplit      = "weekday vs weekend"
	MetricTopN       = "top expenses"
	MetricTopCats    = "top categories"
	MetricTrend      = "trend"
)

// Request is one analytical query with the records of every month its
// scope touches.
type Request struct {
	Intent   intent.Intent
	Entities nlp.Entities
	Scope    Scope
	Records  []core.Expense
}

// Analyzer evaluates requests against a category table.
type Analyzer struct {
	table *core.CategoryTable
}

// New returns an Analyzer using table for category filters.
func New(table *core.CategoryTable) *Analyzer {
	return &Analyzer{table: table}
}

// Evaluate applies every filter and then at most one aggregation. An empty
// filtered set yields a no-data result, never an error.
func (a *Analyzer) Evaluate(req Request) (core.QueryResult, error) {
	f := FilterFrom(req.Entities)
	if req.Intent == intent.Trend {
		return a.trend(req, f)
	}
	if req.Intent == intent.Lookup && f.Empty() && len(req.Entities.Dates) == 0 {
		return core.QueryResult{}, ErrUnresolved
	}

	rs := Apply(req.Records, req.Scope, f, a.table)
	agg := req.Entities.Aggregation
	metric := metricFor(req.Intent, agg, req.Entities)
	if len(rs) == 0 {
		return core.NoData(metric, req.Scope.Label), nil
	}
	res := core.QueryResult{
		Kind:   core.ResultScalar,
		Source: core.SourceDeterministic,
		Metric: metric,
		Scope:  req.Scope.Label,
	}

	if req.Intent == intent.Lookup || agg == nlp.AggNone {
		res.Kind = core.ResultList
		res.Records = byDate(rs)
		return res, nil
	}

	switch agg {
	case nlp.AggSum:
		res.Scalars = []core.Scalar{money("total", Sum(rs).Decimal())}
	case nlp.AggCount:
		res.Scalars = []core.Scalar{count("expenses", len(rs))}
	case nlp.AggMean:
		m, _ := Mean(rs)
		res.Scalars = []core.Scalar{money("average", m)}
	case nlp.AggMedian:
		m, _ := Median(rs)
		res.Scalars = []core.Scalar{money("median", m)}
	case nlp.AggStdDev:
		sd, _ := StdDev(rs)
		res.Scalars = []core.Scalar{money("standard deviation", sd)}
	case nlp.AggMode:
		c, _ := ModeCategory(rs, a.table)
		res.Scalars = []core.Scalar{count(c.Name, c.Count)}
	case nlp.AggMax:
		r, _ := Max(rs)
		res.Scalars = []core.Scalar{money(r.Description, r.Amount.Decimal())}
		res.Records = []core.Expense{r}
	case nlp.AggMin:
		r, _ := Min(rs)
		res.Scalars = []core.Scalar{money(r.Description, r.Amount.Decimal())}
		res.Records = []core.Expense{r}
	case nlp.AggRatio:
		ratio, _, defined := MaxMinRatio(rs)
		res.Scalars = []core.Scalar{{Label: "largest to smallest", Value: ratio, Unit: core.UnitRatio, Defined: defined}}
	case nlp.AggWeekdaySplit:
		s := WeekdaySplit(rs)
		res.Scalars = []core.Scalar{money("weekdays", s.Weekday.Decimal()), money("weekends", s.Weekend.Decimal())}
	case nlp.AggPercentage:
		return a.percentage(req, f, rs, res)
	case nlp.AggTopN:
		if req.Entities.TopCategories {
			for _, c := range TopCategories(rs, a.table, req.Entities.TopN) {
				res.Scalars = append(res.Scalars, money(c.Name, c.Amount.Decimal()))
			}
			return res, nil
		}
		res.Kind = core.ResultList
		res.Records = TopN(rs, req.Entities.TopN)
	default:
		return core.QueryResult{}, ErrUnresolved
	}
	return res, nil
}

// percentage reports the filtered total as a share of everything in scope.
// Without a filter it breaks the scope down by category instead.
func (a *Analyzer) percentage(req Request, f Filter, rs []core.Expense, res core.QueryResult) (core.QueryResult, error) {
	all := Apply(req.Records, req.Scope, Filter{}, a.table)
	total := Sum(all)
	if f.Empty() {
		for _, c := range ByCategory(all, a.table) {
			p, ok := Percentage(c.Amount, total)
			res.Scalars = append(res.Scalars, core.Scalar{Label: c.Name, Value: p, Unit: core.UnitPercent, Defined: ok})
		}
		return res, nil
	}
	p, ok := Percentage(Sum(rs), total)
	res.Scalars = []core.Scalar{{Label: "share", Value: p, Unit: core.UnitPercent, Defined: ok}}
	return res, nil
}

func (a *Analyzer) trend(req Request, f Filter) (core.QueryResult, error) {
	if len(req.Scope.Windows) != 2 || req.Scope.Windows[0].Range.Overlaps(req.Scope.Windows[1].Range) {
		return core.QueryResult{}, ErrUnresolved
	}
	early, late := req.Scope.Windows[0], req.Scope.Windows[1]
	rs := Apply(req.Records, Scope{AllTime: true}, f, a.table)
	e, l := InRange(rs, early.Range), InRange(rs, late.Range)
	if len(e) == 0 && len(l) == 0 {
		return core.NoData(MetricTrend, req.Scope.Label), nil
	}
	c := Trend(e, l)
	return core.QueryResult{
		Kind:   core.ResultScalar,
		Source: core.SourceDeterministic,
		Metric: MetricTrend,
		Scope:  req.Scope.Label,
		Scalars: []core.Scalar{
			money(early.Label, c.Earlier.Decimal()),
			money(late.Label, c.Later.Decimal()),
			money("change", c.Delta.Decimal()),
			{Label: "percent change", Value: c.Percent, Unit: core.UnitPercent, Defined: c.PercentDefined},
		},
	}, nil
}

func metricFor(in intent.Intent, agg nlp.Aggregation, e nlp.Entities) string {
	if in == intent.Lookup {
		return MetricLookup
	}
	switch agg {
	case nlp.AggSum:
		return MetricSum
	case nlp.AggCount:
		return MetricCount
	case nlp.AggMean:
		return MetricMean
	case nlp.AggMedian:
		return MetricMedian
	case nlp.AggStdDev:
		return MetricStdDev
	case nlp.AggMode:
		return MetricMode
	case nlp.AggPercentage:
		return MetricPercentage
	case nlp.AggMax:
		return MetricMax
	case nlp.AggMin:
		return MetricMin
	case nlp.AggRatio:
		return MetricRatio
	case nlp.AggWeekdaySplit:
		return MetricSplit
	case nlp.AggTopN:
		if e.TopCategories {
			return MetricTopCats
		}
		return MetricTopN
	}
	return MetricList
}

func money(label string, v decimal.Decimal) core.Scalar {
	return core.Scalar{Label: label, Value: v, Unit: core.UnitMoney, Defined: true}
}

func count(label string, n int) core.Scalar {
	return core.Scalar{Label: label, Value: decimal.NewFromInt(int64(n)), Unit: core.UnitCount, Defined: true}
}

// byDate orders records by date, keeping insertion order within a day.
func byDate(rs []core.Expense) []core.Expense {
	out := append([]core.Expense(nil), rs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
