package format

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ledgerq/internal/analytics"
	"ledgerq/internal/core"
	"ledgerq/internal/mutation"
)

// GenericMessage is shown whenever the question could not be answered and
// there is nothing more specific worth saying.
const GenericMessage = "I couldn't determine that, try rephrasing."

// maxListed caps how many records a list answer spells out.
const maxListed = 20

// Formatter turns results into narratives. It is safe for concurrent use.
type Formatter struct {
	lang language.Tag
}

// New returns a Formatter for English output.
func New() *Formatter {
	return &Formatter{lang: language.English}
}

// title capitalizes category names. Casers are stateful, so each call gets
// its own.
func (f *Formatter) title(s string) string {
	return cases.Title(f.lang).String(s)
}

// Result renders any QueryResult.
func (f *Formatter) Result(r core.QueryResult) string {
	switch r.Kind {
	case core.ResultError:
		return f.Error(r.Err)
	case core.ResultNoData:
		return f.noData(r)
	case core.ResultNarrative:
		if strings.TrimSpace(r.Text) == "" {
			return GenericMessage
		}
		return strings.TrimSpace(r.Text)
	case core.ResultList:
		return f.list(r)
	case core.ResultScalar:
		return f.scalar(r)
	}
	return GenericMessage
}

func (f *Formatter) noData(r core.QueryResult) string {
	if r.Scope == "" {
		return "There are no matching expenses, so there is nothing to report yet."
	}
	return fmt.Sprintf("There are no matching expenses in %s, so there is nothing to report yet.", r.Scope)
}

func in(scope string) string {
	if scope == "" || scope == "all time" {
		return ""
	}
	return " in " + scope
}

func (f *Formatter) scalar(r core.QueryResult) string {
	if len(r.Scalars) == 0 {
		return GenericMessage
	}
	s := r.Scalars[0]
	where := in(r.Scope)
	switch r.Metric {
	case analytics.MetricSum:
		if r.Scope == "all time" {
			return fmt.Sprintf("Your total across all time is %s.", Amount(s.Value))
		}
		return fmt.Sprintf("Your total%s is %s.", where, Amount(s.Value))
	case analytics.MetricCount:
		return fmt.Sprintf("You have %s%s.", Count(int(s.Value.IntPart()), "expense"), where)
	case analytics.MetricMean:
		return fmt.Sprintf("Your average expense%s is %s.", where, Amount(s.Value))
	case analytics.MetricMedian:
		return fmt.Sprintf("Your median expense%s is %s.", where, Amount(s.Value))
	case analytics.MetricStdDev:
		return fmt.Sprintf("The standard deviation of your expenses%s is %s.", where, Amount(s.Value))
	case analytics.MetricMode:
		return fmt.Sprintf("Your most common category%s is %s, with %s.", where, f.title(s.Label), Count(int(s.Value.IntPart()), "expense"))
	case analytics.MetricMax, analytics.MetricMin:
		size := "largest"
		if r.Metric == analytics.MetricMin {
			size = "smallest"
		}
		msg := fmt.Sprintf("Your %s expense%s is %s for %s", size, where, Amount(s.Value), s.Label)
		if len(r.Records) > 0 {
			msg += " on " + Day(r.Records[0].Date)
		}
		return msg + "."
	case analytics.MetricRatio:
		if !s.Defined {
			return fmt.Sprintf("The ratio can't be computed%s because your smallest expense is zero.", where)
		}
		return fmt.Sprintf("Your largest expense%s is %sx your smallest.", where, core.RoundHalfUp(s.Value).String())
	case analytics.MetricSplit:
		if len(r.Scalars) < 2 {
			return GenericMessage
		}
		return fmt.Sprintf("%s you spent %s on weekdays and %s on weekends.",
			f.sentenceStart(where), Amount(r.Scalars[0].Value), Amount(r.Scalars[1].Value))
	case analytics.MetricPercentage:
		if len(r.Scalars) == 1 && r.Scalars[0].Label == "share" {
			if !s.Defined {
				return fmt.Sprintf("There is no spending%s to compare against.", where)
			}
			return fmt.Sprintf("That is %s of your spending%s.", Percent(s.Value), where)
		}
		parts := make([]string, 0, len(r.Scalars))
		for _, c := range r.Scalars {
			parts = append(parts, fmt.Sprintf("%s %s", f.title(c.Label), Percent(c.Value)))
		}
		return fmt.Sprintf("%s your spending splits as: %s.", f.sentenceStart(where), strings.Join(parts, ", "))
	case analytics.MetricTopCats:
		if len(r.Scalars) == 1 {
			return fmt.Sprintf("Your top category%s is %s at %s.", where, f.title(s.Label), Amount(s.Value))
		}
		parts := make([]string, 0, len(r.Scalars))
		for _, c := range r.Scalars {
			parts = append(parts, fmt.Sprintf("%s %s", f.title(c.Label), Amount(c.Value)))
		}
		return fmt.Sprintf("Your top categories%s: %s.", where, strings.Join(parts, ", "))
	case analytics.MetricTrend:
		return f.trend(r)
	}
	return fmt.Sprintf("%s%s: %s.", f.title(r.Metric), where, Amount(s.Value))
}

func (f *Formatter) sentenceStart(where string) string {
	if where == "" {
		return "Overall"
	}
	return "In" + strings.TrimPrefix(where, " in")
}

func (f *Formatter) trend(r core.QueryResult) string {
	if len(r.Scalars) < 4 {
		return GenericMessage
	}
	early, late, delta, pct := r.Scalars[0], r.Scalars[1], r.Scalars[2], r.Scalars[3]
	msg := fmt.Sprintf("You spent %s in %s compared with %s in %s", Amount(late.Value), late.Label, Amount(early.Value), early.Label)
	switch {
	case delta.Value.IsZero():
		return msg + ", exactly the same."
	case delta.Value.IsPositive():
		msg += ", up " + Amount(delta.Value)
	default:
		msg += ", down " + Amount(delta.Value.Neg())
	}
	if !pct.Defined {
		return msg + " (there was no spending in " + early.Label + " to compare against)."
	}
	return msg + " (" + Percent(pct.Value.Abs()) + ")."
}

func (f *Formatter) list(r core.QueryResult) string {
	n := len(r.Records)
	var head string
	switch r.Metric {
	case analytics.MetricLookup:
		head = fmt.Sprintf("Yes, I found %s%s:", Count(n, "matching expense"), in(r.Scope))
	case analytics.MetricTopN:
		head = fmt.Sprintf("Your top %s%s:", Count(n, "expense"), in(r.Scope))
	default:
		head = fmt.Sprintf("Found %s%s:", Count(n, "expense"), in(r.Scope))
	}
	var b strings.Builder
	b.WriteString(head)
	for i, e := range r.Records {
		if i == maxListed {
			fmt.Fprintf(&b, "\n...and %d more.", n-maxListed)
			break
		}
		fmt.Fprintf(&b, "\n- %s: %s %s", Day(e.Date), Money(e.Amount), e.Description)
	}
	return b.String()
}

// Mutation renders a commit outcome: how many records changed and every
// rejected item with its reason.
func (f *Formatter) Mutation(o mutation.Outcome) string {
	if o.Err != nil {
		return f.Error(o.Err)
	}
	var parts []string
	switch len(o.Added) {
	case 0:
	case 1:
		parts = append(parts, fmt.Sprintf("Added %s %s.", Money(o.Added[0].Amount), o.Added[0].Description))
	default:
		items := make([]string, len(o.Added))
		for i, e := range o.Added {
			items[i] = Money(e.Amount) + " " + e.Description
		}
		parts = append(parts, fmt.Sprintf("Added %s: %s.", Count(len(o.Added), "expense"), strings.Join(items, ", ")))
	}
	if len(o.Deleted) > 0 {
		var total core.Money
		for _, e := range o.Deleted {
			total = total.Add(e.Amount)
		}
		parts = append(parts, fmt.Sprintf("Deleted %s totalling %s.", Count(len(o.Deleted), "expense"), Money(total)))
	}
	if len(o.Rejected) > 0 {
		if len(o.Added)+len(o.Deleted) == 0 && len(o.Rejected) == 1 {
			return f.Error(o.Rejected[0].Err)
		}
		lines := make([]string, len(o.Rejected))
		for i, r := range o.Rejected {
			lines[i] = fmt.Sprintf("- %q: %s", r.Segment, r.Err.Reason)
		}
		parts = append(parts, fmt.Sprintf("Couldn't apply %s:\n%s", Count(len(o.Rejected), "item"), strings.Join(lines, "\n")))
	}
	if len(parts) == 0 {
		return "No expenses matched, so nothing was changed."
	}
	return strings.Join(parts, " ")
}

// Error maps every error kind to a short, non-technical sentence.
func (f *Formatter) Error(e *core.Error) string {
	if e == nil {
		return GenericMessage
	}
	switch e.Kind {
	case core.KindParse:
		if e.Token == "" {
			return "I couldn't make sense of part of that. Nothing was changed."
		}
		return fmt.Sprintf("I couldn't make sense of %q (%s). Nothing was changed.", e.Token, e.Reason)
	case core.KindValidation:
		if e.Token == "" {
			return capitalize(e.Reason) + "."
		}
		return fmt.Sprintf("Couldn't use %q: %s.", e.Token, e.Reason)
	case core.KindArchiveWrite:
		return capitalize(e.Reason) + ". Only the current month can be changed."
	case core.KindAmbiguousIntent, core.KindFallbackTimeout, core.KindFallbackMalformed:
		return GenericMessage
	}
	return "Something went wrong while handling that. Please try again."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
