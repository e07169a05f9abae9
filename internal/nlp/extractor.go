package nlp

import (
	"regexp"
	"strconv"
	"strings"

	"ledgerq/internal/core"
)

type aggregationRule struct {
	agg Aggregation
	re  *regexp.Regexp
}

// aggregationRules are checked in order; the first match wins, so more
// specific statistics come before "total".
var aggregationRules = []aggregationRule{
	{AggStdDev, regexp.MustCompile(`\b(?:std ?dev|standard deviation|deviation|variance|spread)\b`)},
	{AggMedian, regexp.MustCompile(`\bmedian\b`)},
	{AggRatio, regexp.MustCompile(`\bratio\b`)},
	{AggWeekdaySplit, regexp.MustCompile(`\bweek ?days?\b|\bweek ?ends?\b`)},
	{AggPercentage, regexp.MustCompile(`\bpercent(?:age)?\b|%|\bshare\b|\bproportion\b|\bfraction\b`)},
	{AggMode, regexp.MustCompile(`\bmode\b|\bmost (?:common|frequent)\b|\bmost often\b|\busually\b`)},
	{AggTopN, regexp.MustCompile(`\btop\b|\b\d+\s+(?:biggest|largest|highest|most expensive|priciest)\b|\b(?:by|per) category\b|\bbreakdown\b`)},
	{AggMean, regexp.MustCompile(`\b(?:average|avg|mean|typical)\b`)},
	{AggMax, regexp.MustCompile(`\b(?:max|maximum|biggest|largest|highest|most expensive|priciest|costliest)\b|\bspen[dt] (?:the )?most\b`)},
	{AggMin, regexp.MustCompile(`\b(?:min|minimum|smallest|lowest|cheapest|least expensive)\b`)},
	{AggCount, regexp.MustCompile(`\b(?:how many|count|number of)\b`)},
	{AggSum, regexp.MustCompile(`\b(?:total|sum|how much|altogether)\b`)},
}

var (
	topNRe     = regexp.MustCompile(`\btop\s+(\d+|one|two|three|four|five|six|seven|eight|nine|ten)\b|\b(\d+|two|three|four|five|six|seven|eight|nine|ten)\s+(?:biggest|largest|highest|most expensive|priciest)\b`)
	categoryRe = regexp.MustCompile(`\bcategor(?:y|ies)\b`)
	singularRe = regexp.MustCompile(`\btop (?:category|expense|purchase)\b`)
	allTimeRe  = regexp.MustCompile(`\b(?:all time|of all time|overall|ever|all months|every month)\b`)
	allRe      = regexp.MustCompile(`\b(?:all|everything|every)\b`)
	idRe       = regexp.MustCompile(`(?:\bexpense|\brecord|\bid|#)\s*#?([0-9a-f]{8}[0-9a-f-]*)\b`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// DefaultTopN is used when "top" carries no count.
const DefaultTopN = 5

// Parse normalizes raw text and extracts its entities against ref.
func Parse(raw string, ref core.Date, table *core.CategoryTable) Query {
	n := Normalize(raw)
	return Query{Raw: raw, Normalized: n, Today: ref, Entities: Extract(n, ref, table)}
}

// Extract pulls every entity out of normalized text. Add utterances yield
// Items; everything else yields filters, an aggregation and flags.
func Extract(s string, ref core.Date, table *core.CategoryTable) Entities {
	e := Entities{Combinator: CombineAnd, AmountCombinator: CombineAnd}
	if HasAddVerb(s) {
		e.Items = extractItems(s, ref)
		return e
	}

	masked := s
	for _, loc := range idRe.FindAllStringSubmatchIndex(masked, -1) {
		e.IDs = append(e.IDs, masked[loc[2]:loc[3]])
		masked = maskSpan(masked, loc[0], loc[1])
	}

	dates, fails, masked := extractDates(masked, ref)
	e.Dates = dates
	e.Failures = append(e.Failures, fails...)

	amts, acomb, afails, masked := extractAmounts(masked)
	e.Amounts, e.AmountCombinator = amts, acomb
	e.Failures = append(e.Failures, afails...)

	for _, r := range aggregationRules {
		if r.re.MatchString(masked) {
			e.Aggregation = r.agg
			break
		}
	}
	switch {
	case e.Aggregation == AggTopN:
		e.TopCategories = categoryRe.MatchString(masked)
		e.TopN = topN(masked)
	case e.Aggregation == AggMax && categoryRe.MatchString(masked):
		// "which category did I spend the most on"
		e.Aggregation, e.TopCategories, e.TopN = AggTopN, true, 1
	}

	e.AllTime = allTimeRe.MatchString(masked)
	e.All = allRe.MatchString(masked)
	e.Filters, e.Combinator = extractFilters(masked, table)
	return e
}

func topN(s string) int {
	m := topNRe.FindStringSubmatch(s)
	if m == nil {
		if singularRe.MatchString(s) {
			return 1
		}
		if strings.Contains(s, "by category") || strings.Contains(s, "per category") || strings.Contains(s, "breakdown") {
			return 0
		}
		return DefaultTopN
	}
	w := m[1]
	if w == "" {
		w = m[2]
	}
	if n, ok := numberWords[w]; ok {
		return n
	}
	n, err := strconv.Atoi(w)
	if err != nil || n < 1 {
		return DefaultTopN
	}
	return n
}
