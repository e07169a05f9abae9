// Package nlp turns free text into normalized text and structured entities.
// Nothing here reads the clock: relative dates resolve against a caller
// supplied reference date.
package nlp

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// amounts written with a trailing unit: "100 dollars", "20 bucks", "5€"
	trailingCurrency = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:dollars?|bucks|usd|euros?|eur)\b`)
	trailingSymbol   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*[€£]`)
	spacedMarker     = regexp.MustCompile(`\$\s+(\d)`)
	thousands        = regexp.MustCompile(`(\d),(\d{3})(\D|$)`)
	spacedDash       = regexp.MustCompile(`\s+-\s+`)
	commaSpacing     = regexp.MustCompile(`\s*,[\s,]*`)
	strayPeriod      = regexp.MustCompile(`\.(\D|$)|(^|\D)\.`)
	spaces           = regexp.MustCompile(`\s+`)
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize case-folds raw text, strips diacritics and punctuation noise,
// unifies currency to a leading "$" and keeps relative date words intact.
func Normalize(raw string) string {
	s, _, err := transform.String(stripMarks, raw)
	if err != nil {
		s = raw
	}
	s = strings.ToLower(s)
	s = trailingSymbol.ReplaceAllString(s, "$$$1 ")
	s = strings.NewReplacer(
		"’", "", "'", "", "`", "",
		"€", "$", "£", "$",
		"“", `"`, "”", `"`,
		"&", " and ", "+", " and ",
	).Replace(s)

	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsSpace(r):
			return r
		case strings.ContainsRune(`$.,/-%:#"<>=`, r):
			return r
		default:
			return ' '
		}
	}, s)

	for thousands.MatchString(s) {
		s = thousands.ReplaceAllString(s, "$1$2$3")
	}
	s = trailingCurrency.ReplaceAllString(s, "$$$1 ")
	s = spacedMarker.ReplaceAllString(s, "$$$1")
	s = strings.ReplaceAll(s, "$$", "$")
	s = spacedDash.ReplaceAllString(s, " to ")
	for strayPeriod.MatchString(s) {
		s = strayPeriod.ReplaceAllString(s, "$2 $1")
	}
	s = commaSpacing.ReplaceAllString(s, ", ")
	s = spaces.ReplaceAllString(s, " ")
	s = strings.Trim(s, " ,")
	return s
}
