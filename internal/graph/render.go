package graph

import (
	"fmt"
	"strings"

	"github.com/sells-group/ivrmap/internal/model"
)

// Render produces an indented text view of the tree, one node per line with
// its options beneath it. The same rendering feeds the call instructions,
// the enrichment prompt, and the CLI tree command, so it stays plain ASCII
// and deterministic (options in digit order, children in option order).
func Render(root *model.Node) string {
	if root == nil {
		return "(no tree discovered yet)\n"
	}
	var b strings.Builder
	renderNode(&b, root, 0)
	return b.String()
}

func renderNode(b *strings.Builder, n *model.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	prompt := n.PromptText
	if prompt == "" {
		prompt = "(no prompt observed)"
	}
	fmt.Fprintf(b, "%s[%s] %s (confidence %.2f)\n", indent, n.ID, prompt, n.Confidence)

	sorted := n.SortedOptions()
	for _, opt := range sorted {
		state := "PENDING"
		if opt.TargetNodeID != "" {
			state = "explored"
		}
		fmt.Fprintf(b, "%s  press %s: %s [%s]\n", indent, opt.Digit, opt.Label, state)
	}
	for _, opt := range sorted {
		if opt.TargetNodeID == "" {
			continue
		}
		if child := n.FindChild(opt.TargetNodeID); child != nil {
			renderNode(b, child, depth+1)
		}
	}
}

// RenderPaths formats a path set as one dash-joined path per line, for the
// visited/pending sections of the call instructions.
func RenderPaths(paths model.PathList) string {
	if len(paths) == 0 {
		return "(none)\n"
	}
	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p.Key())
		b.WriteByte('\n')
	}
	return b.String()
}
