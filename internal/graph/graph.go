// Package graph builds and maintains the discovered menu tree: merging
// normalized call transcripts into it, deriving visited/pending path sets,
// and rendering it as text for call instructions and diagnostics.
package graph

import (
	"github.com/sells-group/ivrmap/internal/menu"
	"github.com/sells-group/ivrmap/internal/model"
)

const (
	menuConfidence     = 0.9
	terminalConfidence = 0.7
)

// Merge walks a normalized utterance sequence against root and returns the
// updated tree. The input tree is cloned first, so callers keep an unmodified
// copy; a nil root starts a new tree. Merging never discards structure:
// options are unioned, prompts are only replaced by non-empty text, and
// confidence never regresses. Node ids derive from digit paths, so merging
// the same transcript twice is a no-op.
func Merge(root *model.Node, utterances []model.Utterance) *model.Node {
	seeded := root != nil
	if root == nil {
		root = model.NewRoot()
	} else {
		root = root.Clone()
	}

	cursor := root
	path := cursor.Path.Clone()

	// Backtrack stack mirrors the nesting of the conversation: each press
	// pushes the pre-move position, each terminal utterance pops it.
	type frame struct {
		node *model.Node
		path model.Path
	}
	var stack []frame

	for _, u := range utterances {
		if u.Role == model.RoleAgent {
			digit, ok := menu.PressedDigit(u.Text)
			if !ok {
				continue
			}
			childPath := path.Child(digit)
			childID := model.NodeID(childPath)
			child := cursor.FindChild(childID)
			if child == nil {
				child = &model.Node{
					ID:         childID,
					ParentID:   cursor.ID,
					Path:       childPath,
					Confidence: terminalConfidence,
				}
				cursor.Children = append(cursor.Children, child)
			}
			opt := cursor.FindOption(digit)
			if opt == nil {
				cursor.AddOption(model.Option{Digit: digit, Label: "Option " + digit})
				opt = cursor.FindOption(digit)
			}
			opt.TargetNodeID = childID

			stack = append(stack, frame{node: cursor, path: path})
			cursor = child
			path = childPath
			continue
		}

		// The first menu line of a brand-new tree seeds the root prompt
		// even when it parses as a terminal message.
		if !seeded {
			if t := u.Text; t != "" {
				root.PromptText = t
			}
			seeded = true
		}

		opts := menu.ParseOptions(u.Text)
		if len(opts) > 0 {
			if u.Text != "" {
				cursor.PromptText = u.Text
			}
			for _, o := range opts {
				cursor.AddOption(o)
			}
			if cursor.Confidence < menuConfidence {
				cursor.Confidence = menuConfidence
			}
			continue
		}

		// No parsable options: a terminal utterance ends this branch.
		if u.Text != "" {
			cursor.PromptText = u.Text
		}
		if cursor.Confidence < terminalConfidence {
			cursor.Confidence = terminalConfidence
		}
		if n := len(stack); n > 0 {
			cursor = stack[n-1].node
			path = stack[n-1].path
			stack = stack[:n-1]
		} else {
			cursor = root
			path = root.Path.Clone()
		}
	}

	return root
}

// Walk derives the visited and pending path sets from a full-tree walk.
// At each node the options are visited in planner digit order; an option
// with a target contributes its path to visited, one without to pending.
// Options at a node are collected before descending into its children, so
// shallow pending work is listed ahead of deeper work.
func Walk(root *model.Node) (visited, pending model.PathList) {
	if root == nil {
		return nil, nil
	}
	var walk func(n *model.Node, base model.Path)
	walk = func(n *model.Node, base model.Path) {
		sorted := n.SortedOptions()
		for _, opt := range sorted {
			p := base.Child(opt.Digit)
			if opt.TargetNodeID == "" {
				pending = append(pending, p)
			} else {
				visited = append(visited, p)
			}
		}
		for _, opt := range sorted {
			if opt.TargetNodeID == "" {
				continue
			}
			if child := n.FindChild(opt.TargetNodeID); child != nil {
				walk(child, base.Child(opt.Digit))
			}
		}
	}
	walk(root, root.Path.Clone())
	return visited, pending
}

// IsComplete reports whether every option reachable in the tree has been
// resolved to a child. An empty tree is not complete: nothing has been
// observed yet.
func IsComplete(root *model.Node) bool {
	if root == nil {
		return false
	}
	_, pending := Walk(root)
	return len(pending) == 0
}

// Find returns the node with the given id anywhere in the tree, or nil.
func Find(root *model.Node, id string) *model.Node {
	if root == nil {
		return nil
	}
	if root.ID == id {
		return root
	}
	for _, c := range root.Children {
		if n := Find(c, id); n != nil {
			return n
		}
	}
	return nil
}
