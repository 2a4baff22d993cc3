package model

import "time"

// CallStatus is the provider-reported lifecycle state of a placed call.
type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusCanceled   CallStatus = "canceled"
)

// Terminal reports whether the status is final; polling stops once the
// provider reports one of these.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusCanceled:
		return true
	}
	return false
}

// Role tags a transcript utterance with its speaker.
type Role string

const (
	// RoleMenu is the called phone system (the voice reading menus).
	RoleMenu Role = "menu"
	// RoleAgent is our calling agent (speech and key presses).
	RoleAgent Role = "agent"
)

// Utterance is a single role-tagged line of call dialogue.
type Utterance struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// CallRecord is one placed call in a session's ledger. Records are
// append-only and immutable once written, except that the enrichment pass
// may attach its plan fields to the most recent record before the session
// is persisted.
type CallRecord struct {
	CallID                 string      `json:"call_id"`
	Status                 CallStatus  `json:"status"`
	AnsweredBy             string      `json:"answered_by,omitempty"`
	Price                  float64     `json:"price"`
	PriceEstimated         bool        `json:"price_estimated,omitempty"`
	StartedAt              time.Time   `json:"started_at"`
	EndedAt                time.Time   `json:"ended_at"`
	TargetPath             Path        `json:"target_path,omitempty"`
	Transcript             []Utterance `json:"transcript,omitempty"`
	ConcatenatedTranscript string      `json:"concatenated_transcript,omitempty"`

	// Post-hoc plan fields from the best-effort enrichment pass.
	PlanSummary  string `json:"plan_summary,omitempty"`
	PlanNextPath Path   `json:"plan_next_path,omitempty"`
	TerminalType string `json:"terminal_type,omitempty"`
}
