package nlp

import (
	"regexp"
	"strings"

	"ledgerq/internal/core"
)

var (
	addVerbRe     = regexp.MustCompile(`^(?:(?:please|can you|could you|i want to|i need to|lets|let me|go ahead and)\s+)*(?:add|log|record|insert)\b`)
	deleteVerbRe  = regexp.MustCompile(`\b(?:delete|remove|erase)\b`)
	itemSep       = regexp.MustCompile(`\s*,\s*|\s+(?:and|plus)\s+`)
	bareNumber    = regexp.MustCompile(`(?:^|\s)(\d+(?:\.\d+)?)(?:\s|$)`)
	leadingNoise  = regexp.MustCompile(`^(?:(?:an?|the|my|new|expenses?|of|for|on|at|to|in|worth|spent|some)\s+)+`)
	trailingNoise = regexp.MustCompile(`(?:\s+(?:for|on|at|to|in|of|worth|spent|expenses?))+$`)
)

// HasAddVerb reports whether the utterance opens with an add-style verb.
func HasAddVerb(s string) bool { return addVerbRe.MatchString(s) }

// HasDeleteVerb reports whether the utterance contains a delete-style verb.
func HasDeleteVerb(s string) bool { return deleteVerbRe.MatchString(s) }

// extractItems splits an add utterance into "<amount> <description>"
// groups. After "and" or "plus" a group with no amount continues the
// previous description, so "add $12 fish and chips" stays one item.
func extractItems(s string, ref core.Date) []Item {
	loc := addVerbRe.FindStringIndex(s)
	if loc == nil {
		return nil
	}
	body := strings.TrimSpace(s[loc[1]:])
	if body == "" {
		return []Item{{Date: ref, Err: core.NewError(core.KindValidation, "", "amount is missing")}}
	}

	var (
		items []Item
		segs  []string
		seps  []string
		last  int
	)
	for _, sl := range itemSep.FindAllStringIndex(body, -1) {
		segs = append(segs, body[last:sl[0]])
		seps = append(seps, body[sl[0]:sl[1]])
		last = sl[1]
	}
	segs = append(segs, body[last:])

	for i, seg := range segs {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		it := parseItem(seg, ref)
		sep := " "
		if i > 0 {
			sep = seps[i-1]
		}
		// only "and"/"plus" can join words of one description
		if !it.HasAmount && it.Err == nil && len(items) > 0 && !strings.Contains(sep, ",") {
			prev := &items[len(items)-1]
			if it.Description != "" {
				prev.Description = strings.TrimSpace(prev.Description + sep + it.Description)
			}
			prev.Segment += sep + seg
			if it.DateToken != "" && prev.DateToken == "" {
				prev.Date, prev.DateToken = it.Date, it.DateToken
			}
			continue
		}
		if !it.HasAmount && it.Err == nil {
			it.Err = core.NewError(core.KindValidation, seg, "amount is missing")
		}
		items = append(items, it)
	}
	return items
}

func parseItem(seg string, ref core.Date) Item {
	it := Item{Segment: seg, Date: ref}

	dates, fails, masked := extractDates(seg, ref)
	if len(fails) > 0 {
		it.Err = fails[0]
	}
	if len(dates) > 0 {
		d := dates[0]
		it.DateToken = d.Token
		if !d.Single {
			it.Err = core.NewError(core.KindParse, d.Token, "a new expense needs a single day, not a range")
		} else {
			it.Date = d.Range.From
		}
	}

	if loc := dollarToken.FindStringIndex(masked); loc != nil {
		tok := masked[loc[0]:loc[1]]
		if !wellFormed.MatchString(tok) {
			if it.Err == nil {
				it.Err = core.NewError(core.KindParse, tok, "not a valid amount")
			}
		} else if m, err := parseMoney(strings.TrimSuffix(tok, ".")); err != nil {
			if it.Err == nil {
				it.Err = err
			}
		} else {
			it.Amount, it.AmountToken, it.HasAmount = m, tok, true
		}
		masked = maskSpan(masked, loc[0], loc[1])
	} else if loc := bareNumber.FindStringSubmatchIndex(masked); loc != nil {
		tok := masked[loc[2]:loc[3]]
		if m, err := parseMoney(tok); err == nil {
			it.Amount, it.AmountToken, it.HasAmount = m, tok, true
			masked = maskSpan(masked, loc[2], loc[3])
		}
	}

	it.Description = cleanDescription(masked)
	return it
}

func cleanDescription(masked string) string {
	d := strings.Join(strings.Fields(strings.ReplaceAll(masked, "|", " ")), " ")
	d = strings.Trim(d, ` "`)
	d = leadingNoise.ReplaceAllString(d, "")
	d = trailingNoise.ReplaceAllString(d, "")
	return strings.TrimSpace(d)
}
