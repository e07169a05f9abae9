package nlp

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"ledgerq/internal/core"
)

const number = `(\d+(?:\.\d+)?)`

var (
	betweenRe    = regexp.MustCompile(`\bbetween\s+\$?` + number + `\s+(?:and|to|-)\s+\$?` + number + `\b`)
	fromToRe     = regexp.MustCompile(`\bfrom\s+\$` + number + `\s+(?:to|-)\s+\$?` + number + `\b`)
	comparatorRe = regexp.MustCompile(`(?:\b(over|above|more than|greater than|exceeding|at least|no less than|under|below|less than|at most|no more than|exactly|equal to|equals|of exactly)|(>=|<=|>|<|=))\s*\$?` + number + `\b`)
	exactRe      = regexp.MustCompile(`\$` + number + `\b`)
	dollarToken  = regexp.MustCompile(`\$[^\s,]*`)
	wellFormed   = regexp.MustCompile(`^\$\d+(?:\.\d+)?\.?$`)
)

var comparatorWords = map[string]Comparator{
	"over": OpGreater, "above": OpGreater, "more than": OpGreater, "greater than": OpGreater, "exceeding": OpGreater, ">": OpGreater,
	"at least": OpGreaterEqual, "no less than": OpGreaterEqual, ">=": OpGreaterEqual,
	"under": OpLess, "below": OpLess, "less than": OpLess, "<": OpLess,
	"at most": OpLessEqual, "no more than": OpLessEqual, "<=": OpLessEqual,
	"exactly": OpEqual, "equal to": OpEqual, "equals": OpEqual, "of exactly": OpEqual, "=": OpEqual,
}

// parseMoney reads a number token; failures carry the token.
func parseMoney(tok string) (core.Money, *core.Error) {
	cents, err := core.ParseCents(strings.TrimPrefix(tok, "$"))
	if err != nil {
		return core.Money{}, core.NewError(core.KindParse, tok, "not a valid amount")
	}
	return core.Money{Cents: cents}, nil
}

// malformedAmounts reports "$" tokens that are not numbers, e.g. "$abc".
func malformedAmounts(s string) []*core.Error {
	var fails []*core.Error
	for _, tok := range dollarToken.FindAllString(s, -1) {
		if wellFormed.MatchString(tok) {
			continue
		}
		fails = append(fails, core.NewError(core.KindParse, tok, "not a valid amount"))
	}
	return fails
}

type amountSpan struct {
	c          AmountConstraint
	start, end int
}

var orWord = regexp.MustCompile(`\bor\b`)

// extractAmounts finds every amount constraint: ranges first, then
// comparators, and a plain "$N" (equality) only when neither is present.
// Each consumed span is masked in the returned text. Constraints join with
// "or" when any gap between them says so, otherwise they intersect; an
// intersection that no amount can satisfy is reported as a failure.
func extractAmounts(s string) ([]AmountConstraint, Combinator, []*core.Error, string) {
	fails := malformedAmounts(s)
	var spans []amountSpan

	for _, re := range []*regexp.Regexp{betweenRe, fromToRe} {
		for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
			m := submatches(s, loc)
			lo, err1 := parseMoney(m[1])
			hi, err2 := parseMoney(m[2])
			if err1 != nil || err2 != nil {
				fails = append(fails, core.NewError(core.KindParse, m[0], "not a valid amount range"))
			} else {
				if hi.Cents < lo.Cents {
					lo, hi = hi, lo
				}
				spans = append(spans, amountSpan{AmountConstraint{Op: OpBetween, Value: lo, Max: hi, Token: m[0]}, loc[0], loc[1]})
			}
			s = maskSpan(s, loc[0], loc[1])
		}
	}

	for _, loc := range comparatorRe.FindAllStringSubmatchIndex(s, -1) {
		m := submatches(s, loc)
		word := m[1]
		if word == "" {
			word = m[2]
		}
		if v, err := parseMoney(m[3]); err != nil {
			fails = append(fails, err)
		} else {
			spans = append(spans, amountSpan{AmountConstraint{Op: comparatorWords[word], Value: v, Token: m[0]}, loc[0], loc[1]})
		}
		s = maskSpan(s, loc[0], loc[1])
	}

	if len(spans) == 0 {
		for _, loc := range exactRe.FindAllStringSubmatchIndex(s, -1) {
			m := submatches(s, loc)
			if v, err := parseMoney(m[1]); err != nil {
				fails = append(fails, err)
			} else {
				spans = append(spans, amountSpan{AmountConstraint{Op: OpEqual, Value: v, Token: m[0]}, loc[0], loc[1]})
			}
			s = maskSpan(s, loc[0], loc[1])
		}
	}
	if len(spans) == 0 {
		return nil, CombineAnd, fails, s
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := make([]AmountConstraint, len(spans))
	comb := CombineAnd
	for i, sp := range spans {
		out[i] = sp.c
		if i > 0 && orWord.MatchString(s[spans[i-1].end:sp.start]) {
			comb = CombineOr
		}
	}
	if comb == CombineAnd && len(out) > 1 {
		if _, _, ok := intersect(out); !ok {
			tokens := make([]string, len(out))
			for i, c := range out {
				tokens[i] = c.Token
			}
			fails = append(fails, core.NewError(core.KindParse, strings.Join(tokens, " and "), "no amount can satisfy all of these"))
		}
	}
	return out, comb, fails, s
}

// intersect narrows every constraint to one inclusive cent interval.
func intersect(cs []AmountConstraint) (lo, hi int64, ok bool) {
	lo, hi = math.MinInt64, math.MaxInt64
	for _, c := range cs {
		l, h := c.bounds()
		lo, hi = max(lo, l), min(hi, h)
	}
	return lo, hi, lo <= hi
}
