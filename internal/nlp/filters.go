package nlp

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"ledgerq/internal/core"
)

var quotedRe = regexp.MustCompile(`"([^"]+)"`)

// stopwords never become filter terms.
var stopwords = toSet(`a an the my me i im ive we our all any some show list display give get tell find see what whats which
who when where why how much many did do does done is are was were be been there their it its that this those these
expense expenses spending spend spent spends purchase purchases transaction transactions cost costs item items record records
payment payments bill entry entries in on for at from of to and or over under above below than more less exactly between
equal equals least most no not with by per each every everything total sum sums average avg mean median mode count number
max maximum min minimum highest lowest biggest largest smallest cheapest expensive priciest stdev std deviation standard
ratio percent percentage share proportion weekday weekdays weekend weekends top trend trends compare compared comparison
versus vs increase decrease change changed went up down so far overall ever time lately recently last this past previous
next current day days week weeks month months year years today yesterday tonight delete remove erase add log insert
please can could would you your let lets now then than just only also category categories money dollars typical common
frequent often usually one two three four five six seven eight nine ten have has had any anything something interesting
insight insights breakdown summary summarize`)

func toSet(words string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		out[w] = true
	}
	return out
}

var (
	prepositions = toSet("on for at from")
	recordNouns  = toSet("expense expenses purchase purchases spending transactions costs payments")
)

func candidate(w string) bool {
	if len(w) < 2 || stopwords[w] || strings.ContainsAny(w, "|$") {
		return false
	}
	r := []rune(w)[0]
	return unicode.IsLetter(r)
}

// extractFilters pulls category and description terms out of the residual
// text (amounts and dates already masked). Quoted strings come first, then
// terms the category table knows, then words after a preposition or before
// a record noun. A captured term extends across "x or y" and "x, y" lists.
func extractFilters(s string, table *core.CategoryTable) ([]FilterTerm, Combinator) {
	type found struct {
		FilterTerm
		pos int
	}
	var terms []found
	seen := make(map[string]bool)
	add := func(t FilterTerm, pos int) {
		if t.Term == "" || seen[t.Term] {
			return
		}
		seen[t.Term] = true
		terms = append(terms, found{t, pos})
	}

	for _, m := range quotedRe.FindAllStringSubmatch(s, -1) {
		add(FilterTerm{Term: strings.TrimSpace(m[1]), Quoted: true}, -1)
	}
	s = quotedRe.ReplaceAllString(s, " | ")

	toks := strings.Fields(strings.ReplaceAll(s, ",", " , "))
	consumed := make([]bool, len(toks))
	take := func(i int) {
		add(FilterTerm{Term: toks[i]}, i)
		consumed[i] = true
	}

	for i := 0; i < len(toks); i++ {
		if i+1 < len(toks) && table.Known(toks[i]+" "+toks[i+1]) {
			add(FilterTerm{Term: toks[i] + " " + toks[i+1]}, i)
			consumed[i], consumed[i+1] = true, true
			i++
			continue
		}
		if !stopwords[toks[i]] && table.Known(toks[i]) {
			take(i)
		}
	}

	for i := 0; i < len(toks); i++ {
		if prepositions[toks[i]] && i+1 < len(toks) && !consumed[i+1] && candidate(toks[i+1]) {
			take(i + 1)
		}
		if i+1 < len(toks) && recordNouns[toks[i+1]] && !consumed[i] && candidate(toks[i]) {
			take(i)
		}
	}

	for changed := true; changed; {
		changed = false
		for i := range toks {
			if !consumed[i] {
				continue
			}
			for _, j := range []int{i - 2, i + 2} {
				if j < 0 || j >= len(toks) || consumed[j] {
					continue
				}
				if sep := toks[(i+j)/2]; (sep == "or" || sep == "and" || sep == ",") && candidate(toks[j]) {
					take(j)
					changed = true
				}
			}
		}
	}

	sort.SliceStable(terms, func(i, j int) bool { return terms[i].pos < terms[j].pos })
	out := make([]FilterTerm, len(terms))
	for i, t := range terms {
		out[i] = t.FilterTerm
	}

	comb := CombineAnd
	if len(out) > 1 {
		for _, t := range toks {
			if t == "or" {
				comb = CombineOr
				break
			}
		}
	}
	return out, comb
}
