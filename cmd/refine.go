package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/ivrmap/internal/discovery"
	"github.com/sells-group/ivrmap/internal/graph"
	"github.com/sells-group/ivrmap/internal/model"
)

var refineMaxCalls int

var refineCmd = &cobra.Command{
	Use:   "refine <phone> <node-id>",
	Short: "Re-explore one branch of a discovered menu",
	Long:  "Places a short run of calls targeted at a single node of an existing session's tree, to firm up a low-confidence or stale branch.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "discover")
		if err != nil {
			return err
		}
		defer env.Close()

		session, err := env.Store.LoadSession(ctx, model.SessionKey(args[0]))
		if err != nil {
			return err
		}
		if session == nil {
			return eris.Errorf("no session for %s; run 'ivrmap discover %s' first", args[0], args[0])
		}

		node := graph.Find(session.LastRoot, args[1])
		if node == nil {
			return eris.Errorf("node %s not found in session tree", args[1])
		}
		path := node.Path
		if len(path) == 0 && node.ID != model.RootID {
			path = model.PathFromID(node.ID)
		}

		maxCalls := refineMaxCalls
		if maxCalls == 0 {
			maxCalls = cfg.Discovery.RefineMaxCalls
		}

		session, err = env.Engine.Run(ctx, discovery.RunOptions{
			Identity:     session.Identity,
			MinCalls:     1,
			MaxCalls:     maxCalls,
			OverridePath: path,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Refined node %s: session now has %d call(s), $%.2f total.\n",
			args[1], len(session.Calls), session.TotalCost)
		return nil
	},
}

func init() {
	refineCmd.Flags().IntVar(&refineMaxCalls, "max-calls", 0, "maximum calls for the refinement (default from config)")
	rootCmd.AddCommand(refineCmd)
}
