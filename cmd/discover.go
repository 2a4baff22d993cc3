package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ivrmap/internal/discovery"
	"github.com/sells-group/ivrmap/internal/model"
)

var (
	discoverMinCalls int
	discoverMaxCalls int
	discoverPath     string
)

var discoverCmd = &cobra.Command{
	Use:   "discover <phone>",
	Short: "Map a phone menu by placing discovery calls",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "discover")
		if err != nil {
			return err
		}
		defer env.Close()

		opts := discovery.RunOptions{
			Identity:     args[0],
			MinCalls:     discoverMinCalls,
			MaxCalls:     discoverMaxCalls,
			OverridePath: parsePathFlag(discoverPath),
		}
		if opts.MinCalls == 0 {
			opts.MinCalls = cfg.Discovery.MinCalls
		}
		if opts.MaxCalls == 0 {
			opts.MaxCalls = cfg.Discovery.MaxCalls
		}

		session, err := env.Engine.Run(ctx, opts)
		if err != nil {
			return err
		}

		zap.L().Info("discovery run finished",
			zap.String("session", session.Key()),
			zap.Int("calls", len(session.Calls)),
			zap.Float64("total_cost", session.TotalCost),
		)
		fmt.Printf("Session %s: %d call(s), $%.2f total. Run 'ivrmap tree %s' to view the menu.\n",
			session.Key(), len(session.Calls), session.TotalCost, session.Key())
		return nil
	},
}

// parsePathFlag turns "1-2" (or "1,2") into a digit path.
func parsePathFlag(raw string) model.Path {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, ",", "-")
	var path model.Path
	for _, tok := range strings.Split(raw, "-") {
		if tok = strings.TrimSpace(tok); tok != "" {
			path = append(path, tok)
		}
	}
	return path
}

func init() {
	discoverCmd.Flags().IntVar(&discoverMinCalls, "min-calls", 0, "minimum calls this run (default from config)")
	discoverCmd.Flags().IntVar(&discoverMaxCalls, "max-calls", 0, "maximum calls this run (default from config)")
	discoverCmd.Flags().StringVar(&discoverPath, "path", "", "force the first call to this digit path, e.g. 1-2")
	rootCmd.AddCommand(discoverCmd)
}
