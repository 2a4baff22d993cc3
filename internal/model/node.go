package model

import (
	"sort"
	"strconv"
	"strings"
)

// RootID is the sentinel id of the root menu node. All other node ids are
// derived from the digit path that reaches them, so re-deriving the same
// path always addresses the same node and merges stay idempotent.
const RootID = "root"

// Node is a discovered state in a phone menu: the prompt heard there plus
// the digit options it offers. A node with no options is a terminal state
// (operator, voicemail, informational message).
type Node struct {
	ID         string   `json:"id"`
	ParentID   string   `json:"parent_id,omitempty"`
	Path       Path     `json:"path,omitempty"`
	PromptText string   `json:"prompt_text,omitempty"`
	Confidence float64  `json:"confidence"`
	Options    []Option `json:"options,omitempty"`
	Children   []*Node  `json:"children,omitempty"`
}

// Option is a selectable digit at a node. TargetNodeID points at the child
// reached by pressing it; an empty TargetNodeID means the branch is still
// pending (unexplored). Options never own nodes — the tree is addressed by
// child-list membership so a missing target never dangles.
type Option struct {
	Digit        string `json:"digit"`
	Label        string `json:"label"`
	TargetNodeID string `json:"target_node_id,omitempty"`
}

// Path is the ordered digit sequence from the root to a node.
type Path []string

// NodeID derives the stable node id for a digit path.
func NodeID(path Path) string {
	if len(path) == 0 {
		return RootID
	}
	return strings.Join(path, "-")
}

// PathFromID reconstructs the digit path encoded in a derived node id.
// It is the legacy fallback for nodes persisted before Path became an
// explicit field; prefer Node.Path when it is populated.
func PathFromID(id string) Path {
	if id == "" || id == RootID {
		return nil
	}
	return Path(strings.Split(id, "-"))
}

// Key returns the canonical string form of the path ("" for the root).
func (p Path) Key() string {
	return strings.Join(p, "-")
}

// Equal reports whether two paths contain the same digits in order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no backing storage with p.
func (p Path) Clone() Path {
	if p == nil {
		return nil
	}
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// Child appends a digit, returning a new path.
func (p Path) Child(digit string) Path {
	out := make(Path, 0, len(p)+1)
	out = append(out, p...)
	return append(out, digit)
}

// PathList is an ordered collection of paths, used for the derived
// visited/pending sets.
type PathList []Path

// Contains reports whether the list holds a path equal to target.
func (l PathList) Contains(target Path) bool {
	for _, p := range l {
		if p.Equal(target) {
			return true
		}
	}
	return false
}

// NewRoot returns an empty root node with the placeholder prompt used
// before any call has been made.
func NewRoot() *Node {
	return &Node{
		ID:         RootID,
		PromptText: "Main menu",
		Confidence: 0.5,
	}
}

// FindChild returns the direct child with the given id, or nil.
func (n *Node) FindChild(id string) *Node {
	for _, c := range n.Children {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// FindOption returns the option for a digit, or nil.
func (n *Node) FindOption(digit string) *Option {
	for i := range n.Options {
		if n.Options[i].Digit == digit {
			return &n.Options[i]
		}
	}
	return nil
}

// AddOption unions opt into the node's option list, keyed by
// (digit, lowercased label). A re-observed option is a no-op, so merging
// the same transcript twice cannot duplicate entries.
func (n *Node) AddOption(opt Option) {
	for _, existing := range n.Options {
		if existing.Digit == opt.Digit && strings.EqualFold(existing.Label, opt.Label) {
			return
		}
	}
	n.Options = append(n.Options, opt)
}

// SortedOptions returns the node's options in planner order: numeric digits
// ascending first, then non-numeric digits lexicographically.
func (n *Node) SortedOptions() []Option {
	out := make([]Option, len(n.Options))
	copy(out, n.Options)
	sort.SliceStable(out, func(i, j int) bool {
		return DigitLess(out[i].Digit, out[j].Digit)
	})
	return out
}

// DigitLess orders option digits numerically when both parse as integers;
// numeric digits sort before non-numeric ones ("*", "#"), which fall back
// to lexicographic order among themselves.
func DigitLess(a, b string) bool {
	ai, aerr := strconv.Atoi(a)
	bi, berr := strconv.Atoi(b)
	switch {
	case aerr == nil && berr == nil:
		return ai < bi
	case aerr == nil:
		return true
	case berr == nil:
		return false
	default:
		return a < b
	}
}

// Clone deep-copies the subtree rooted at n. Snapshots store clones so a
// later merge can never mutate an already-persisted tree state.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		ID:         n.ID,
		ParentID:   n.ParentID,
		Path:       n.Path.Clone(),
		PromptText: n.PromptText,
		Confidence: n.Confidence,
	}
	if len(n.Options) > 0 {
		out.Options = make([]Option, len(n.Options))
		copy(out.Options, n.Options)
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, c.Clone())
	}
	return out
}

// CountNodes returns the number of nodes in the subtree rooted at n.
func (n *Node) CountNodes() int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += c.CountNodes()
	}
	return total
}
