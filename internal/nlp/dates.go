package nlp

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"ledgerq/internal/core"
)

const monthAlt = `(january|february|march|april|may|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec)`

var monthNames = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday, "sunday": time.Sunday,
}

const ordinal = `(?:st|nd|rd|th)?`

// dateRule resolves one date phrase shape. Rules run in order; text a rule
// consumes is masked so later rules cannot reinterpret it.
type dateRule struct {
	name    string
	re      *regexp.Regexp
	resolve func(m []string, ref core.Date) (core.DateRange, error)
}

var dateRules = []dateRule{
	{"iso-range", regexp.MustCompile(`\b(\d{4}-\d{1,2}-\d{1,2})\s+(?:to|through|thru|until|till)\s+(\d{4}-\d{1,2}-\d{1,2})\b`), resolveISORange},
	{"month-range", regexp.MustCompile(`\b` + monthAlt + `\s+(\d{1,2})` + ordinal + `\s*(?:to|-|through|thru|until|till)\s*(?:` + monthAlt + `\s+)?(\d{1,2})` + ordinal + `(?:,?\s+(\d{4}))?\b`), resolveMonthRange},
	{"week-of-month", regexp.MustCompile(`\b(first|second|third|fourth|last|1st|2nd|3rd|4th)\s+week\s+(?:of|in)\s+` + monthAlt + `(?:\s+(\d{4}))?\b`), resolveWeekOfMonth},
	{"last-n", regexp.MustCompile(`\b(?:last|past|previous)\s+(\d{1,3})\s+(days|weeks|months)\b`), resolveLastN},
	{"relative-period", regexp.MustCompile(`\b(this|current|last|previous|past)\s+(week|month|year)\b`), resolveRelativePeriod},
	{"day-before-yesterday", regexp.MustCompile(`\bday before yesterday\b`), func(_ []string, ref core.Date) (core.DateRange, error) {
		return day(ref.AddDays(-2)), nil
	}},
	{"relative-day", regexp.MustCompile(`\b(today|tonight|yesterday)\b`), resolveRelativeDay},
	{"weekday", regexp.MustCompile(`\b(on|last|this)\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`), resolveWeekday},
	{"iso", regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`), resolveISO},
	{"slash", regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`), resolveSlash},
	{"month-day", regexp.MustCompile(`\b` + monthAlt + `\s+(\d{1,2})` + ordinal + `(?:,?\s+(\d{4}))?\b`), resolveMonthDay},
	{"day-month", regexp.MustCompile(`\b(\d{1,2})` + ordinal + `\s+(?:of\s+)?` + monthAlt + `(?:,?\s+(\d{4}))?\b`), resolveDayMonth},
	{"month", regexp.MustCompile(`\b(?:(in|during|for|of|since|from)\s+)?` + monthAlt + `(?:\s+(\d{4}))?\b`), resolveMonth},
}

// extractDates resolves every date phrase in s against ref. It returns the
// entities in order of appearance, per-token failures and s with every
// consumed span masked.
func extractDates(s string, ref core.Date) ([]DateEntity, []*core.Error, string) {
	var (
		ents  []DateEntity
		fails []*core.Error
	)
	for _, rule := range dateRules {
		for _, loc := range rule.re.FindAllStringSubmatchIndex(s, -1) {
			if loc[0] > 0 && (s[loc[0]-1] == '$' || s[loc[0]-1] == '.') {
				continue
			}
			if strings.Contains(s[loc[0]:loc[1]], "|") {
				continue
			}
			m := submatches(s, loc)
			token := strings.TrimSpace(m[0])
			r, err := rule.resolve(m, ref)
			if err != nil {
				if rule.name == "month" {
					// a bare month word that does not read as a date is left for filters
					continue
				}
				fails = append(fails, core.NewError(core.KindParse, token, err.Error()))
			} else {
				ents = append(ents, DateEntity{Range: r, Token: token, Single: r.From.Equal(r.To), pos: loc[0]})
			}
			s = maskSpan(s, loc[0], loc[1])
		}
	}
	sort.SliceStable(ents, func(i, j int) bool { return ents[i].pos < ents[j].pos })
	return ents, fails, s
}

func submatches(s string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}

func maskSpan(s string, start, end int) string {
	return s[:start] + strings.Repeat("|", end-start) + s[end:]
}

func day(d core.Date) core.DateRange { return core.DateRange{From: d, To: d} }

// yearFor picks the most recent occurrence of month not after ref's month
// unless an explicit year is given.
func yearFor(month time.Month, explicit string, ref core.Date) (int, error) {
	if explicit != "" {
		y, err := strconv.Atoi(explicit)
		if err != nil {
			return 0, fmt.Errorf("unreadable year")
		}
		if y < 100 {
			y += 2000
		}
		return y, nil
	}
	if int(month) > ref.Month() {
		return ref.Year() - 1, nil
	}
	return ref.Year(), nil
}

// calendarDay validates a day-of-month instead of letting it roll over.
func calendarDay(year int, month time.Month, d int) (core.Date, error) {
	if month < time.January || month > time.December {
		return core.Date{}, fmt.Errorf("there is no month %d", int(month))
	}
	last := core.MonthKey{Year: year, Month: month}.Last().Day()
	if d < 1 || d > last {
		return core.Date{}, fmt.Errorf("%s has no day %d", month, d)
	}
	return core.NewDate(year, int(month), d), nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func resolveISORange(m []string, _ core.Date) (core.DateRange, error) {
	from, err := core.ParseDate(m[1])
	if err != nil {
		return core.DateRange{}, fmt.Errorf("not a calendar date")
	}
	to, err := core.ParseDate(m[2])
	if err != nil {
		return core.DateRange{}, fmt.Errorf("not a calendar date")
	}
	return ordered(from, to)
}

func ordered(from, to core.Date) (core.DateRange, error) {
	if to.Before(from) {
		return core.DateRange{}, fmt.Errorf("range ends before it starts")
	}
	return core.DateRange{From: from, To: to}, nil
}

func resolveMonthRange(m []string, ref core.Date) (core.DateRange, error) {
	m1 := monthNames[m[1]]
	m2 := m1
	if m[3] != "" {
		m2 = monthNames[m[3]]
	}
	y1, err := yearFor(m1, m[5], ref)
	if err != nil {
		return core.DateRange{}, err
	}
	y2 := y1
	if m2 < m1 {
		y2++
	}
	from, err := calendarDay(y1, m1, atoi(m[2]))
	if err != nil {
		return core.DateRange{}, err
	}
	to, err := calendarDay(y2, m2, atoi(m[4]))
	if err != nil {
		return core.DateRange{}, err
	}
	return ordered(from, to)
}

func resolveWeekOfMonth(m []string, ref core.Date) (core.DateRange, error) {
	month := monthNames[m[2]]
	y, err := yearFor(month, m[3], ref)
	if err != nil {
		return core.DateRange{}, err
	}
	key := core.MonthKey{Year: y, Month: month}
	var start int
	switch m[1] {
	case "first", "1st":
		start = 1
	case "second", "2nd":
		start = 8
	case "third", "3rd":
		start = 15
	case "fourth", "4th":
		start = 22
	case "last":
		start = key.Last().Day() - 6
	}
	from := core.NewDate(y, int(month), start)
	return core.DateRange{From: from, To: from.AddDays(6)}, nil
}

func resolveLastN(m []string, ref core.Date) (core.DateRange, error) {
	n := atoi(m[1])
	if n < 1 {
		return core.DateRange{}, fmt.Errorf("period must be at least one")
	}
	switch m[2] {
	case "weeks":
		return core.DateRange{From: ref.AddDays(-7*n + 1), To: ref}, nil
	case "months":
		first := core.NewDate(ref.Year(), ref.Month()-(n-1), 1)
		return core.DateRange{From: first, To: ref}, nil
	}
	return core.DateRange{From: ref.AddDays(-n + 1), To: ref}, nil
}

// mondayOf returns the Monday starting d's week.
func mondayOf(d core.Date) core.Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

func resolveRelativePeriod(m []string, ref core.Date) (core.DateRange, error) {
	previous := m[1] == "last" || m[1] == "previous" || m[1] == "past"
	switch m[2] {
	case "week":
		mon := mondayOf(ref)
		if previous {
			mon = mon.AddDays(-7)
		}
		return core.DateRange{From: mon, To: mon.AddDays(6)}, nil
	case "month":
		k := core.MonthOf(ref)
		if previous {
			k = k.Prev()
		}
		return k.Range(), nil
	default:
		y := ref.Year()
		if previous {
			y--
		}
		return core.DateRange{From: core.NewDate(y, 1, 1), To: core.NewDate(y, 12, 31)}, nil
	}
}

func resolveRelativeDay(m []string, ref core.Date) (core.DateRange, error) {
	if m[1] == "yesterday" {
		return day(ref.AddDays(-1)), nil
	}
	return day(ref), nil
}

func resolveWeekday(m []string, ref core.Date) (core.DateRange, error) {
	want := weekdays[m[2]]
	back := (int(ref.Weekday()) - int(want) + 7) % 7
	if m[1] == "last" && back == 0 {
		back = 7
	}
	return day(ref.AddDays(-back)), nil
}

func resolveISO(m []string, _ core.Date) (core.DateRange, error) {
	d, err := calendarDay(atoi(m[1]), time.Month(atoi(m[2])), atoi(m[3]))
	if err != nil {
		return core.DateRange{}, err
	}
	return day(d), nil
}

func resolveSlash(m []string, ref core.Date) (core.DateRange, error) {
	month := time.Month(atoi(m[1]))
	if month < time.January || month > time.December {
		return core.DateRange{}, fmt.Errorf("there is no month %d", int(month))
	}
	y, err := yearFor(month, m[3], ref)
	if err != nil {
		return core.DateRange{}, err
	}
	d, err := calendarDay(y, month, atoi(m[2]))
	if err != nil {
		return core.DateRange{}, err
	}
	return day(d), nil
}

func resolveMonthDay(m []string, ref core.Date) (core.DateRange, error) {
	month := monthNames[m[1]]
	y, err := yearFor(month, m[3], ref)
	if err != nil {
		return core.DateRange{}, err
	}
	d, err := calendarDay(y, month, atoi(m[2]))
	if err != nil {
		return core.DateRange{}, err
	}
	return day(d), nil
}

func resolveDayMonth(m []string, ref core.Date) (core.DateRange, error) {
	return resolveMonthDay([]string{m[0], m[2], m[1], m[3]}, ref)
}

func resolveMonth(m []string, ref core.Date) (core.DateRange, error) {
	prep, name := m[1], m[2]
	// "may" and "march" double as ordinary words
	if (name == "may" || name == "march" || name == "mar") && prep == "" && m[3] == "" {
		return core.DateRange{}, fmt.Errorf("not a month reference")
	}
	month := monthNames[name]
	y, err := yearFor(month, m[3], ref)
	if err != nil {
		return core.DateRange{}, err
	}
	k := core.MonthKey{Year: y, Month: month}
	if prep == "since" {
		return core.DateRange{From: k.First(), To: ref}, nil
	}
	return k.Range(), nil
}
