package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrValidation marks malformed input to a public entry point. Callers get
// it back immediately, before any side effect.
var ErrValidation = eris.New("invalid input")

// Session is the durable record of one discovery target: every call placed,
// every tree snapshot, the current tree, and the running cost. It is the
// only state that survives restarts; a re-invoked run resumes from LastRoot.
type Session struct {
	Identity  string       `json:"identity"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	MinCalls  int          `json:"min_calls"`
	MaxCalls  int          `json:"max_calls"`
	Calls     []CallRecord `json:"calls"`
	Snapshots []Snapshot   `json:"snapshots"`
	LastRoot  *Node        `json:"last_root,omitempty"`
	TotalCost float64      `json:"total_cost"`
}

// Snapshot captures the whole tree after one call. The snapshot log is
// append-only so a session's growth can be replayed and audited.
type Snapshot struct {
	TakenAt time.Time `json:"taken_at"`
	Root    *Node     `json:"root"`
}

// Key returns the storage key for the session's identity.
func (s *Session) Key() string {
	return SessionKey(s.Identity)
}

// SessionKey canonicalizes an identity into a filesystem- and
// database-safe key: the digits of the phone number, nothing else.
// "+1 (555) 123-4567" and "15551234567" address the same session.
func SessionKey(identity string) string {
	var b strings.Builder
	for _, r := range identity {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AppendCall records a completed iteration: the call, a snapshot of the
// tree after merging, and the call's price added to the running total.
// TotalCost only ever grows.
func (s *Session) AppendCall(rec CallRecord, root *Node) {
	s.Calls = append(s.Calls, rec)
	s.Snapshots = append(s.Snapshots, Snapshot{TakenAt: time.Now().UTC(), Root: root.Clone()})
	s.LastRoot = root
	if rec.Price > 0 {
		s.TotalCost += rec.Price
	}
	s.UpdatedAt = time.Now().UTC()
}

// LastCall returns a pointer to the most recent call record, or nil.
// The enrichment pass uses it to attach plan fields before persisting.
func (s *Session) LastCall() *CallRecord {
	if len(s.Calls) == 0 {
		return nil
	}
	return &s.Calls[len(s.Calls)-1]
}

// RecentPlannedPaths collects planner-produced next paths from the most
// recent calls, newest first, capped at limit. The traversal planner uses
// them to keep momentum on a branch instead of restarting at the root.
func (s *Session) RecentPlannedPaths(limit int) []Path {
	var out []Path
	for i := len(s.Calls) - 1; i >= 0 && len(out) < limit; i-- {
		if p := s.Calls[i].PlanNextPath; len(p) > 0 {
			out = append(out, p.Clone())
		}
	}
	return out
}
