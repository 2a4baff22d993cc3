// Package enrich is the optional LLM extraction/summarization pass. It
// runs after the deterministic merge and its output is advisory only: a
// failure here is logged and swallowed, never escalated to the discovery
// loop.
package enrich

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ivrmap/internal/cost"
	"github.com/sells-group/ivrmap/internal/graph"
	"github.com/sells-group/ivrmap/internal/model"
	"github.com/sells-group/ivrmap/pkg/anthropic"
)

// ExtractedNode is one typed node from the LLM's flat read of a call.
type ExtractedNode struct {
	ID         string `json:"id"`
	Type       string `json:"type"` // menu | option | end | message
	Label      string `json:"label"`
	Digit      string `json:"digit,omitempty"`
	ParentID   string `json:"parent_id,omitempty"`
	Confidence int    `json:"confidence"` // 1..100
}

// Plan is the LLM's suggested next step for the traversal.
type Plan struct {
	Summary      string     `json:"summary"`
	NextPath     model.Path `json:"next_path"`
	TerminalType string     `json:"terminal_type,omitempty"`
}

// Extraction is the full enrichment result for one call.
type Extraction struct {
	Nodes []ExtractedNode `json:"nodes"`
	Plan  *Plan           `json:"plan,omitempty"`
}

// Extractor is the capability consumed by the discovery loop. A nil
// Extractor disables enrichment entirely.
type Extractor interface {
	Extract(ctx context.Context, utterances []model.Utterance, treeText string) (*Extraction, error)
}

// Enricher implements Extractor against the Anthropic API.
type Enricher struct {
	ai    anthropic.Client
	model string
	calc  *cost.Calculator
}

// New creates an Enricher.
func New(ai anthropic.Client, modelName string, calc *cost.Calculator) *Enricher {
	return &Enricher{ai: ai, model: modelName, calc: calc}
}

const systemPrompt = `You analyze transcripts of calls made to automated phone menus (IVR systems).
Given a call transcript and the menu tree discovered so far, respond with JSON only, no prose:
{
  "nodes": [{"id": "<digit path joined by '-', or 'root'>", "type": "menu|option|end|message",
             "label": "<short label>", "digit": "<pressed key if type is option>",
             "parent_id": "<id of parent>", "confidence": <1-100>}],
  "plan": {"summary": "<one sentence on what this call learned>",
           "next_path": ["<digit>", ...],
           "terminal_type": "<operator|voicemail|message|hangup, when the call ended a branch>"}
}`

// Extract asks the model for a flat node list and a short plan. The raw
// response is parsed tolerantly: a JSON body wrapped in a markdown code
// fence is unwrapped before decoding.
func (e *Enricher) Extract(ctx context.Context, utterances []model.Utterance, treeText string) (*Extraction, error) {
	var dialogue strings.Builder
	for _, u := range utterances {
		dialogue.WriteString(string(u.Role))
		dialogue.WriteString(": ")
		dialogue.WriteString(u.Text)
		dialogue.WriteByte('\n')
	}

	prompt := "Current menu tree:\n" + treeText + "\nCall transcript:\n" + dialogue.String()

	resp, err := e.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 2048,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create message")
	}

	resp.Usage.LogUsage(e.model, "enrich")
	if e.calc != nil {
		zap.L().Debug("enrichment cost",
			zap.Float64("usd", e.calc.Claude(e.model, resp.Usage.InputTokens, resp.Usage.OutputTokens)),
		)
	}

	extraction, err := parseExtraction(resp.Text())
	if err != nil {
		return nil, err
	}
	return extraction, nil
}

// parseExtraction decodes the model's JSON, stripping a surrounding
// markdown code fence if present.
func parseExtraction(raw string) (*Extraction, error) {
	body := strings.TrimSpace(raw)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		if i := strings.LastIndex(body, "```"); i >= 0 {
			body = body[:i]
		}
		body = strings.TrimSpace(body)
	}

	var ex Extraction
	if err := json.Unmarshal([]byte(body), &ex); err != nil {
		return nil, eris.Wrap(err, "enrich: parse extraction")
	}
	return &ex, nil
}

// Apply merges an extraction into the tree and the session's most recent
// call record. Both effects are advisory: node confidences are raised
// (never lowered) where the extraction agrees on an id, and the plan
// fields are attached to the call record for the next planning step.
func Apply(root *model.Node, rec *model.CallRecord, ex *Extraction) {
	if ex == nil {
		return
	}
	for _, en := range ex.Nodes {
		if en.Confidence <= 0 {
			continue
		}
		if n := graph.Find(root, en.ID); n != nil {
			c := float64(en.Confidence) / 100
			if c > 1 {
				c = 1
			}
			if c > n.Confidence {
				n.Confidence = c
			}
		}
	}
	if ex.Plan != nil && rec != nil {
		rec.PlanSummary = ex.Plan.Summary
		rec.PlanNextPath = ex.Plan.NextPath.Clone()
		rec.TerminalType = ex.Plan.TerminalType
	}
}
