// Package menu extracts selectable digit options from IVR prompt text
// using layered pattern rules. Parsing is pure and total: malformed input
// yields an empty result, never an error.
package menu

import (
	"regexp"
	"strings"

	"github.com/sells-group/ivrmap/internal/model"
	"github.com/sells-group/ivrmap/internal/transcript"
)

const (
	digitPat = `([0-9*#]|zero|one|two|three|four|five|six|seven|eight|nine|star|pound|hash)`
	sepPat   = `(?:[\s,.!?;:]|$)`
	pressPat = `(?:please\s+)?(?:press(?:es|ed|ing)?|dial(?:s|ed|ing)?)`
)

var (
	// (a) "<label> ... press D" — e.g. "For sales, press 1".
	labelFirstRe = regexp.MustCompile(`(?i)^(.*?\S)\s*[,:]?\s+` + pressPat + `\s+` + digitPat + sepPat)
	// (b) "press D for/to <label>" — e.g. "Press 2 to speak with support".
	digitFirstRe = regexp.MustCompile(`(?i)\b` + pressPat + `\s+` + digitPat + `[\s,]*(?:for|to|if|when)\s+(.+)$`)
	// (c) bare "press D" — label synthesized from the sentence remainder.
	barePressRe = regexp.MustCompile(`(?i)\b` + pressPat + `\s+` + digitPat + sepPat)

	pressVerbRe = regexp.MustCompile(`(?i)\b(?:press|dial)`)
	pressedRe   = regexp.MustCompile(`(?i)\b` + pressPat + `\s+(?:button\s+|key\s+)?` + digitPat + `(?:[\s,.!?;:\])>]|$)`)
	sentenceRe  = regexp.MustCompile(`[.!?;\n]+`)
	clauseSepRe = regexp.MustCompile(`(?i),\s*|\s+or\s+|\s+and\s+`)

	leadingNoiseRe  = regexp.MustCompile(`(?i)^(?:if|for|to|or|and|please|say)\s+`)
	trailingPunctRe = regexp.MustCompile(`[\s.,:;!?-]+$`)
)

// wordDigits maps spoken digit words from speech-to-text onto key tokens.
var wordDigits = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"star": "*", "pound": "#", "hash": "#",
}

// ParseOptions extracts (digit, label) candidates from a single utterance.
// Each sentence-like unit is tried against the layered patterns in order;
// the first pattern that yields both a digit and a derivable label wins for
// that unit. Results are deduplicated by (digit, lowercased label) with
// input order preserved.
func ParseOptions(text string) []model.Option {
	text = transcript.Clean(text)
	if text == "" {
		return nil
	}

	var out []model.Option
	seen := map[string]bool{}
	for _, unit := range splitUnits(text) {
		opt, ok := parseUnit(unit)
		if !ok {
			continue
		}
		key := opt.Digit + "\x00" + strings.ToLower(opt.Label)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, opt)
	}
	return out
}

// PressedDigit reports the key an agent-side utterance presses, if any.
// It matches both spoken intent ("I'll press 2") and action markers
// ("[Presses 1]"); the first press phrase in the text wins.
func PressedDigit(text string) (string, bool) {
	if m := pressedRe.FindStringSubmatch(transcript.Clean(text)); m != nil {
		if d := normalizeDigit(m[1]); d != "" {
			return d, true
		}
	}
	return "", false
}

// parseUnit applies patterns (a), (b), (c) to one sentence-like unit.
func parseUnit(unit string) (model.Option, bool) {
	if m := labelFirstRe.FindStringSubmatch(unit); m != nil {
		digit := normalizeDigit(m[2])
		label := cleanLabel(m[1])
		if digit != "" && label != "" {
			return model.Option{Digit: digit, Label: label}, true
		}
	}
	if m := digitFirstRe.FindStringSubmatch(unit); m != nil {
		digit := normalizeDigit(m[1])
		label := cleanLabel(m[2])
		if digit != "" && label != "" {
			return model.Option{Digit: digit, Label: label}, true
		}
	}
	if loc := barePressRe.FindStringSubmatchIndex(unit); loc != nil {
		digit := normalizeDigit(unit[loc[2]:loc[3]])
		if digit == "" {
			return model.Option{}, false
		}
		// Remainder of the sentence minus the press phrase becomes the label.
		label := cleanLabel(strings.TrimSpace(unit[:loc[0]] + " " + unit[loc[1]:]))
		if label == "" {
			label = "Option " + digit
		}
		return model.Option{Digit: digit, Label: label}, true
	}
	return model.Option{}, false
}

// splitUnits breaks text into sentence-like units. Sentences are split on
// terminal punctuation; a sentence chaining several options with commas or
// "or"/"and" ("for sales press 1, for support press 2") is further split so
// each press phrase gets its own unit. A connective whose right side holds
// no press verb stays attached ("press 1 for sales and service").
func splitUnits(text string) []string {
	var units []string
	for _, part := range sentenceRe.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		seps := clauseSepRe.FindAllStringIndex(part, -1)
		if len(seps) == 0 {
			units = append(units, part)
			continue
		}

		// Clause boundaries: [start, end) around each separator.
		type span struct{ start, end int }
		var clauses []span
		prev := 0
		for _, s := range seps {
			clauses = append(clauses, span{prev, s[0]})
			prev = s[1]
		}
		clauses = append(clauses, span{prev, len(part)})

		start := clauses[0].start
		for i, c := range clauses {
			segment := part[start:c.end]
			rest := ""
			if i+1 < len(clauses) {
				rest = part[clauses[i+1].start:]
			}
			if rest == "" || (pressVerbRe.MatchString(segment) && pressVerbRe.MatchString(rest)) {
				if s := strings.TrimSpace(segment); s != "" {
					units = append(units, s)
				}
				if i+1 < len(clauses) {
					start = clauses[i+1].start
				}
			}
		}
	}
	return units
}

// cleanLabel trims connective noise off a candidate label: leading
// "if "/"for "/"to " chains, trailing punctuation, surrounding space.
func cleanLabel(s string) string {
	s = strings.TrimSpace(s)
	for {
		t := leadingNoiseRe.ReplaceAllString(s, "")
		if t == s {
			break
		}
		s = t
	}
	s = trailingPunctRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// normalizeDigit canonicalizes a matched digit token to a single key
// symbol, or "" when the token is not a recognizable key.
func normalizeDigit(tok string) string {
	tok = strings.ToLower(strings.TrimSpace(tok))
	if len(tok) == 1 && (tok == "*" || tok == "#" || (tok >= "0" && tok <= "9")) {
		return tok
	}
	return wordDigits[tok]
}
