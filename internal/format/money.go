// Package format renders pipeline results as the single narrative string a
// caller shows the user.
package format

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"ledgerq/internal/core"
)

// Money renders cents as "$1,234.50"; negative amounts get a leading minus.
func Money(m core.Money) string {
	c := m.Cents
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(c/100), c%100)
}

// Amount rounds an exact value half-up to cents and renders it as Money.
func Amount(d decimal.Decimal) string {
	return Money(core.MoneyFromDecimal(d))
}

// Percent renders a percentage with at most two decimals.
func Percent(d decimal.Decimal) string {
	return core.RoundHalfUp(d).String() + "%"
}

// Count renders "1 expense" or "3 expenses".
func Count(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return humanize.Comma(int64(n)) + " " + plural(noun)
}

func plural(noun string) string {
	switch {
	case strings.HasSuffix(noun, "y"):
		return strings.TrimSuffix(noun, "y") + "ies"
	case strings.HasSuffix(noun, "s"):
		return noun
	}
	return noun + "s"
}

// Day renders a record date like "Oct 3".
func Day(d core.Date) string { return d.Format("Jan 2") }
