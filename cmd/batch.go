package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/ivrmap/internal/discovery"
	"github.com/sells-group/ivrmap/internal/model"
)

var (
	batchFile  string
	batchLimit int
)

// batchTarget is one entry of the batch targets file.
type batchTarget struct {
	Phone    string `yaml:"phone"`
	MinCalls int    `yaml:"min_calls"`
	MaxCalls int    `yaml:"max_calls"`
}

type batchSpec struct {
	Targets []batchTarget `yaml:"targets"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Discover multiple phone menus from a targets file",
	Long:  "Runs discovery for each phone number in a yaml targets file. Distinct numbers run concurrently up to the configured limit; each number's calls remain strictly sequential.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(batchFile)
		if err != nil {
			return eris.Wrap(err, "read targets file")
		}
		targets, err := parseBatchTargets(data)
		if err != nil {
			return err
		}

		limit := batchLimit
		if limit == 0 {
			limit = cfg.Batch.MaxConcurrentTargets
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)

		var succeeded, failed atomic.Int64

		for _, target := range targets {
			g.Go(func() error {
				log := zap.L().With(zap.String("phone", target.Phone))

				session, err := env.Engine.Run(gctx, discovery.RunOptions{
					Identity: target.Phone,
					MinCalls: target.MinCalls,
					MaxCalls: target.MaxCalls,
				})
				if err != nil {
					failed.Add(1)
					log.Error("discovery failed", zap.Error(err))
					return nil // one bad number must not abort the batch
				}

				succeeded.Add(1)
				log.Info("discovery finished",
					zap.Int("calls", len(session.Calls)),
					zap.Float64("total_cost", session.TotalCost),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		fmt.Printf("Batch done: %d succeeded, %d failed of %d target(s).\n",
			succeeded.Load(), failed.Load(), len(targets))
		return nil
	},
}

// parseBatchTargets decodes the targets file, applies config defaults
// for unset call bounds, and rejects duplicate phone numbers: the batch
// guarantees one session writer per identity.
func parseBatchTargets(data []byte) ([]batchTarget, error) {
	var spec batchSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, eris.Wrap(err, "parse targets file")
	}
	if len(spec.Targets) == 0 {
		return nil, eris.New("targets file has no targets")
	}

	seen := map[string]bool{}
	for i := range spec.Targets {
		t := &spec.Targets[i]
		if t.Phone == "" {
			return nil, eris.Errorf("target %d has no phone", i+1)
		}
		key := model.SessionKey(t.Phone)
		if seen[key] {
			return nil, eris.Errorf("duplicate target %s", t.Phone)
		}
		seen[key] = true
		if t.MinCalls == 0 {
			t.MinCalls = cfg.Discovery.MinCalls
		}
		if t.MaxCalls == 0 {
			t.MaxCalls = cfg.Discovery.MaxCalls
		}
	}
	return spec.Targets, nil
}

func init() {
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "targets.yaml", "yaml file of phone numbers to map")
	batchCmd.Flags().IntVar(&batchLimit, "concurrency", 0, "max concurrent targets (default from config)")
	rootCmd.AddCommand(batchCmd)
}
