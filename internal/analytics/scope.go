package analytics

import (
	"sort"
	"strings"

	"ledgerq/internal/core"
	"ledgerq/internal/intent"
	"ledgerq/internal/nlp"
)

// Window is one inclusive date range a query reads.
type Window struct {
	Range core.DateRange
	Label string
}

// Scope is the part of the ledger a query considers. Without explicit dates
// a query reads the current month; AllTime reads every month.
type Scope struct {
	Windows []Window
	AllTime bool
	Label   string
}

// Contains reports whether d falls in any window.
func (s Scope) Contains(d core.Date) bool {
	if s.AllTime {
		return true
	}
	for _, w := range s.Windows {
		if w.Range.Contains(d) {
			return true
		}
	}
	return false
}

// Months lists the month ledgers the scope touches, oldest first. It is nil
// for an all-time scope; callers then load every month.
func (s Scope) Months() []core.MonthKey {
	if s.AllTime {
		return nil
	}
	seen := make(map[core.MonthKey]bool)
	var out []core.MonthKey
	for _, w := range s.Windows {
		for _, k := range w.Range.Months() {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	sortKeys(out)
	return out
}

// ResolveScope picks the windows for a query. Trend queries always get two
// windows, earlier first: the first two dates mentioned, one date against
// the current month, or last month against this month.
func ResolveScope(in intent.Intent, e nlp.Entities, today core.Date) Scope {
	current := core.MonthOf(today)
	if in == intent.Trend {
		var a, b core.DateRange
		switch len(e.Dates) {
		case 0:
			a, b = current.Prev().Range(), current.Range()
		case 1:
			a, b = e.Dates[0].Range, current.Range()
		default:
			a, b = e.Dates[0].Range, e.Dates[1].Range
		}
		if b.From.Before(a.From) {
			a, b = b, a
		}
		wa, wb := window(a), window(b)
		return Scope{Windows: []Window{wa, wb}, Label: wa.Label + " vs " + wb.Label}
	}

	if len(e.Dates) > 0 {
		s := Scope{}
		labels := make([]string, 0, len(e.Dates))
		for _, d := range e.Dates {
			w := window(d.Range)
			s.Windows = append(s.Windows, w)
			labels = append(labels, w.Label)
		}
		s.Label = strings.Join(labels, " and ")
		return s
	}
	if e.AllTime {
		return Scope{AllTime: true, Label: "all time"}
	}
	w := window(current.Range())
	return Scope{Windows: []Window{w}, Label: w.Label}
}

func window(r core.DateRange) Window {
	return Window{Range: r, Label: Describe(r)}
}

// Describe renders a range for people: a whole month by name, otherwise
// the first and last day.
func Describe(r core.DateRange) string {
	k := core.MonthOf(r.From)
	switch {
	case r.From.Equal(k.First()) && r.To.Equal(k.Last()):
		return k.Label()
	case r.From.Equal(r.To):
		return r.From.Format("Jan 2, 2006")
	case r.From.Year() == r.To.Year():
		return r.From.Format("Jan 2") + " to " + r.To.Format("Jan 2, 2006")
	default:
		return r.From.Format("Jan 2, 2006") + " to " + r.To.Format("Jan 2, 2006")
	}
}

func sortKeys(keys []core.MonthKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
}
