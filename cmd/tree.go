package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ivrmap/internal/graph"
	"github.com/sells-group/ivrmap/internal/model"
)

var (
	treeID      = color.New(color.FgCyan).SprintFunc()
	treeDim     = color.New(color.Faint).SprintFunc()
	treePending = color.New(color.FgYellow, color.Bold).SprintFunc()
	treeDone    = color.New(color.FgGreen).SprintFunc()
)

var treeCmd = &cobra.Command{
	Use:   "tree <phone>",
	Short: "Print the discovered menu tree for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initInspectStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		session, err := st.LoadSession(cmd.Context(), model.SessionKey(args[0]))
		if err != nil {
			return err
		}
		if session == nil {
			return eris.Errorf("no session for %s", args[0])
		}
		if session.LastRoot == nil {
			fmt.Println("Session exists but no tree has been discovered yet.")
			return nil
		}

		printTree(session.LastRoot, 0)

		_, pending := graph.Walk(session.LastRoot)
		fmt.Println()
		if len(pending) == 0 {
			fmt.Println(treeDone("Tree complete: every option explored."))
		} else {
			fmt.Printf("%s %d branch(es) unexplored\n", treePending("Incomplete:"), len(pending))
		}
		fmt.Printf("%d call(s), $%.2f total\n", len(session.Calls), session.TotalCost)
		return nil
	},
}

func printTree(n *model.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%s %s %s\n",
		indent, treeID("["+n.ID+"]"), n.PromptText,
		treeDim(fmt.Sprintf("(confidence %.2f)", n.Confidence)))

	for _, opt := range n.SortedOptions() {
		if opt.TargetNodeID == "" {
			fmt.Printf("%s  %s %s: %s\n", indent, treePending("?"), opt.Digit, opt.Label)
			continue
		}
		fmt.Printf("%s  %s %s: %s\n", indent, treeDone("+"), opt.Digit, opt.Label)
		if child := n.FindChild(opt.TargetNodeID); child != nil {
			printTree(child, depth+1)
		}
	}
}

func init() {
	rootCmd.AddCommand(treeCmd)
}
