// Package intent assigns one of a fixed set of intents to a parsed query.
//
// Classification is a dispatch table: each Rule is a named predicate with a
// fixed weight. Every matching rule is collected, the heaviest wins and the
// confidence is the margin over the heaviest rule that voted for a
// different intent. Mutation rules are compared only against each other so
// a delete verb always beats analytical keywords in the same sentence.
package intent

import (
	"math"
	"regexp"

	"ledgerq/internal/nlp"
)

// Intent is the classified purpose of a query.
type Intent string

const (
	MutateAdd    Intent = "mutate-add"
	MutateDelete Intent = "mutate-delete"
	Stat         Intent = "stat-query"
	Filter       Intent = "filter-query"
	Trend        Intent = "trend-query"
	Lookup       Intent = "lookup-query"
	Ambiguous    Intent = "ambiguous"
)

// IsMutation reports whether the intent changes the ledger.
func (i Intent) IsMutation() bool { return i == MutateAdd || i == MutateDelete }

// IsAnalytical reports whether the deterministic engine can answer it.
func (i Intent) IsAnalytical() bool {
	return i == Stat || i == Filter || i == Trend || i == Lookup
}

// Reasons attached to an ambiguous classification.
const (
	ReasonNoMatch       = "no rule matched"
	ReasonLowConfidence = "low confidence"
	ReasonInterpretive  = "interpretive"
)

// DefaultThreshold is the minimum margin between the winning rule and the
// runner-up before a classification is trusted.
const DefaultThreshold = 0.15

// Rule is one row of the dispatch table.
type Rule struct {
	Name     string
	Intent   Intent
	Weight   float64
	Mutation bool
	Match    func(q nlp.Query) bool
}

var (
	trendRe        = regexp.MustCompile(`\b(?:trends?|trending|compare|compared|comparison|vs|versus|increased?|decreased?|went (?:up|down)|gone (?:up|down)|than last (?:week|month|year)|over time|month over month)\b`)
	lookupRe       = regexp.MustCompile(`^(?:(?:is|are|was|were) there|did i|have i|when did i)\b|\bfind (?:the|my|an?) (?:expenses?|record|purchase|payment)\b|\bdo i have (?:an?|any)\b`)
	interpretiveRe = regexp.MustCompile(`\b(?:interesting|insights?|advice|tips?|suggest(?:ions?)?|recommend(?:ations?)?|should i|why|analy[sz]e|opinion|how am i doing|doing ok|save more|budget(?:ing)? help)\b`)
	listRe         = regexp.MustCompile(`\b(?:list|show|display|see|what are)\b(?:\s+(?:me|all|my|the|every))*\s+(?:expenses|purchases|transactions|spending|records|entries)\b|\bwhat did i (?:spend|buy)\b`)
)

// DefaultRules is the production rule table, mutation verbs first.
var DefaultRules = []Rule{
	{Name: "add-verb", Intent: MutateAdd, Weight: 1.0, Mutation: true, Match: func(q nlp.Query) bool {
		return nlp.HasAddVerb(q.Normalized)
	}},
	{Name: "delete-verb", Intent: MutateDelete, Weight: 1.0, Mutation: true, Match: func(q nlp.Query) bool {
		return nlp.HasDeleteVerb(q.Normalized)
	}},
	{Name: "statistic", Intent: Stat, Weight: 0.6, Match: func(q nlp.Query) bool {
		return q.Entities.Aggregation != nlp.AggNone
	}},
	{Name: "filter", Intent: Filter, Weight: 0.4, Match: func(q nlp.Query) bool {
		return q.Entities.HasFilters() || listRe.MatchString(q.Normalized)
	}},
	{Name: "trend", Intent: Trend, Weight: 0.95, Match: func(q nlp.Query) bool {
		return trendRe.MatchString(q.Normalized)
	}},
	{Name: "lookup", Intent: Lookup, Weight: 0.8, Match: func(q nlp.Query) bool {
		return lookupRe.MatchString(q.Normalized)
	}},
	{Name: "interpretive", Intent: Ambiguous, Weight: 0.85, Match: func(q nlp.Query) bool {
		return interpretiveRe.MatchString(q.Normalized)
	}},
}

// Classification is the classifier's verdict on one query.
type Classification struct {
	Intent     Intent
	Confidence float64
	Rule       string
	Reason     string
	Matched    []string
}

// Classifier runs a rule table with a confidence threshold.
type Classifier struct {
	rules     []Rule
	threshold float64
}

// New builds a classifier; with no rules it uses DefaultRules.
func New(threshold float64, rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules, threshold: threshold}
}

// Threshold returns the configured minimum margin.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Classify evaluates every rule against q.
func (c *Classifier) Classify(q nlp.Query) Classification {
	var matched, mutations []Rule
	for _, r := range c.rules {
		if r.Match(q) {
			matched = append(matched, r)
			if r.Mutation {
				mutations = append(mutations, r)
			}
		}
	}
	out := Classification{Intent: Ambiguous, Reason: ReasonNoMatch}
	for _, r := range matched {
		out.Matched = append(out.Matched, r.Name)
	}

	pool := matched
	if len(mutations) > 0 {
		pool = mutations
	}
	if len(pool) == 0 {
		return out
	}

	top := pool[0]
	for _, r := range pool[1:] {
		if r.Weight > top.Weight {
			top = r
		}
	}
	runnerUp := 0.0
	for _, r := range pool {
		if r.Intent != top.Intent && r.Weight > runnerUp {
			runnerUp = r.Weight
		}
	}

	out.Rule = top.Name
	out.Confidence = math.Round((top.Weight-runnerUp)*100) / 100
	out.Intent = top.Intent
	out.Reason = ""

	switch {
	case top.Intent == Ambiguous:
		out.Reason = ReasonInterpretive
	case out.Confidence < c.threshold:
		out.Intent = Ambiguous
		out.Reason = ReasonLowConfidence
	}
	return out
}
