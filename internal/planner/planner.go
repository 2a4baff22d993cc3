// Package planner chooses the next digit path to explore. It is a pure
// function of the tree and the call history: identical inputs always
// produce the identical plan, which keeps discovery runs reproducible.
package planner

import (
	"github.com/sells-group/ivrmap/internal/model"
)

// NextPath computes the next digit path to pursue. Priority order:
//
//  1. a caller-supplied override path, if it is still pending;
//  2. the most recently planned path that is still pending, so a run keeps
//     momentum on a branch instead of restarting at the root each call;
//  3. a depth-first scan of the tree with options in digit order, returning
//     the path to the first unresolved option. Resolved lower-digit
//     branches are descended before higher-digit options are considered.
//
// A path already in visited is never returned. An empty result means
// nothing is left to explore.
func NextPath(root *model.Node, visited, pending model.PathList, recent []model.Path, override model.Path) model.Path {
	if len(override) > 0 && pending.Contains(override) && !visited.Contains(override) {
		return override.Clone()
	}

	for _, p := range recent {
		if len(p) > 0 && pending.Contains(p) && !visited.Contains(p) {
			return p.Clone()
		}
	}

	if root == nil {
		return nil
	}
	if p := scan(root, root.Path.Clone(), visited); p != nil {
		return p
	}
	return nil
}

// scan is the depth-first search: at each node options are tried in digit
// order, a pending option ends the search, a resolved one is descended
// into before the next digit is tried.
func scan(n *model.Node, base model.Path, visited model.PathList) model.Path {
	for _, opt := range n.SortedOptions() {
		p := base.Child(opt.Digit)
		if opt.TargetNodeID == "" {
			if !visited.Contains(p) {
				return p
			}
			continue
		}
		if child := n.FindChild(opt.TargetNodeID); child != nil {
			if found := scan(child, p, visited); found != nil {
				return found
			}
		}
	}
	return nil
}
