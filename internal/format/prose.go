package format

import (
	"regexp"
	"strings"
	"unicode"

	"ledgerq/internal/core"
)

var (
	codeLine  = regexp.MustCompile(`^\s*(?:func|def|class|import|package|return|var|const|let|select|insert|#include|public|private)\b|[;{}]\s*$|=>|:=`)
	tableLine = regexp.MustCompile(`\|.*\|`)
	csvLine   = regexp.MustCompile(`^[^,\s]*(?:,[^,\s]*){2,}$`)
)

// CheckProse rejects generated text that is empty, code, or a structured
// dump instead of sentences. The returned error is a
// FallbackMalformedResponse naming what was wrong.
func CheckProse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return core.NewError(core.KindFallbackMalformed, "", "empty response")
	}
	if strings.Contains(s, "```") {
		return core.NewError(core.KindFallbackMalformed, "", "response contains a code block")
	}
	switch s[0] {
	case '{', '[', '<':
		return core.NewError(core.KindFallbackMalformed, "", "response is structured data")
	}

	lines := strings.Split(s, "\n")
	var code, table, nonBlank int
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		nonBlank++
		if codeLine.MatchString(l) {
			code++
		}
		if tableLine.MatchString(l) || csvLine.MatchString(strings.TrimSpace(l)) {
			table++
		}
	}
	if code*2 >= nonBlank && code > 0 {
		return core.NewError(core.KindFallbackMalformed, "", "response looks like code")
	}
	if table*2 >= nonBlank && table > 0 {
		return core.NewError(core.KindFallbackMalformed, "", "response looks like a table dump")
	}

	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters*2 < len([]rune(s)) {
		return core.NewError(core.KindFallbackMalformed, "", "response is mostly symbols")
	}
	return nil
}
