package discovery

import (
	"strings"

	"github.com/sells-group/ivrmap/internal/graph"
	"github.com/sells-group/ivrmap/internal/model"
)

// BuildInstructions renders the task prompt handed to the calling agent
// for one call: how to navigate to the target path, then what to listen
// for and read back. The known tree and the visited/pending sets are
// included so the agent does not waste time re-describing explored
// branches.
func BuildInstructions(target model.Path, root *model.Node, visited, pending model.PathList) string {
	var b strings.Builder

	b.WriteString("You are mapping an automated phone menu system. Stay silent unless spoken to; never press a key before the menu finishes speaking.\n\n")

	if len(target) == 0 {
		b.WriteString("Task: listen to the entire main menu without pressing anything. ")
	} else {
		b.WriteString("Task: navigate to a specific branch, then map it.\n")
		b.WriteString("Navigation steps, in order:\n")
		for i, digit := range target {
			b.WriteString("  ")
			b.WriteString(ordinal(i + 1))
			b.WriteString(": wait for the menu to finish speaking, then press ")
			b.WriteString(digit)
			b.WriteString(" and say \"Pressing ")
			b.WriteString(digit)
			b.WriteString(" now.\"\n")
		}
		b.WriteString("After the final press, listen to everything the system says. ")
	}

	b.WriteString("Repeat each option you hear out loud, word for word, including the digit to press. ")
	b.WriteString("If you reach a person, a voicemail, or a recorded message with no options, say what you reached and hang up. ")
	b.WriteString("Do not press any key that is not in your navigation steps.\n")

	if root != nil {
		b.WriteString("\nMenu structure discovered so far:\n")
		b.WriteString(graph.Render(root))
	}
	if len(visited) > 0 {
		b.WriteString("\nAlready explored key sequences:\n")
		b.WriteString(graph.RenderPaths(visited))
		b.WriteByte('\n')
	}
	if len(pending) > 0 {
		b.WriteString("\nKey sequences still unexplored:\n")
		b.WriteString(graph.RenderPaths(pending))
		b.WriteByte('\n')
	}

	return b.String()
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "First"
	case 2:
		return "Second"
	case 3:
		return "Third"
	case 4:
		return "Fourth"
	case 5:
		return "Fifth"
	}
	return "Next"
}
