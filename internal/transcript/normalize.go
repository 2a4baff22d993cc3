// Package transcript turns raw call dialogue from the telephony provider
// into an ordered sequence of role-tagged utterances.
package transcript

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/ivrmap/internal/model"
)

// Line is one provider-labeled dialogue entry before role normalization.
type Line struct {
	Speaker string
	Text    string
}

// agentSpeakers are provider labels for our side of the call. Anything
// else (user, human, customer, unknown) is the called phone system.
var agentSpeakers = map[string]bool{
	"assistant":    true,
	"agent":        true,
	"agent-action": true,
	"ai":           true,
	"robot":        true,
	"bot":          true,
	"caller":       true,
}

// knownSpeakers are the role tags recognized when parsing a flattened
// transcript. A line whose leading "word:" is not in this set is treated
// as untagged menu speech rather than losing its first word.
var knownSpeakers = map[string]bool{
	"user":     true,
	"human":    true,
	"customer": true,
	"callee":   true,
	"system":   true,
}

func init() {
	for s := range agentSpeakers {
		knownSpeakers[s] = true
	}
}

// Normalize maps provider speaker labels onto menu/agent roles, cleans
// the text, and drops control markers. Order is preserved.
func Normalize(lines []Line) []model.Utterance {
	var out []model.Utterance
	for _, l := range lines {
		text := Clean(l.Text)
		if text == "" || isControlMarker(text) {
			continue
		}
		out = append(out, model.Utterance{Role: roleFor(l.Speaker), Text: text})
	}
	return out
}

var roleTagRe = regexp.MustCompile(`^([A-Za-z][A-Za-z -]{0,15}):\s*(.*)$`)

// ParseConcatenated is the fallback for providers that only return a single
// flattened transcript string. It splits on line boundaries, extracts a
// leading role tag when one is present, and discards waiting/control
// markers. Untagged lines are attributed to the menu, which is the
// dominant speaker on an unattended call.
func ParseConcatenated(raw string) []model.Utterance {
	var lines []Line
	for _, rawLine := range strings.Split(raw, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		speaker := ""
		text := line
		if m := roleTagRe.FindStringSubmatch(line); m != nil {
			tag := strings.ToLower(strings.TrimSpace(m[1]))
			if knownSpeakers[tag] {
				speaker = tag
				text = m[2]
			}
		}
		lines = append(lines, Line{Speaker: speaker, Text: text})
	}
	return Normalize(lines)
}

var spaceRe = regexp.MustCompile(`\s+`)

// Clean applies NFC normalization and collapses whitespace runs so that
// speech-to-text artifacts (smart quotes, combining marks, odd spacing)
// do not break downstream pattern matching.
func Clean(text string) string {
	text = norm.NFC.String(text)
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func roleFor(speaker string) model.Role {
	if agentSpeakers[strings.ToLower(strings.TrimSpace(speaker))] {
		return model.RoleAgent
	}
	return model.RoleMenu
}

// controlWords are marker bodies that carry no dialogue: provider
// placeholders emitted while the line is silent or ringing.
var controlWords = map[string]bool{
	"waiting":    true,
	"waiting...": true,
	"silence":    true,
	"pause":      true,
	"noise":      true,
	"music":      true,
	"hold music": true,
	"ringing":    true,
	"beep":       true,
}

// isControlMarker reports whether the cleaned text is a control marker,
// optionally wrapped in a single layer of brackets. Bracketed text with
// real content (e.g. "[Presses 1]") is kept.
func isControlMarker(text string) bool {
	core := text
	if len(core) >= 2 {
		open, close := core[0], core[len(core)-1]
		if (open == '<' && close == '>') || (open == '[' && close == ']') || (open == '(' && close == ')') {
			core = strings.TrimSpace(core[1 : len(core)-1])
		}
	}
	core = strings.ToLower(core)
	return controlWords[core] || strings.HasPrefix(core, "waiting ")
}
