package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ivrmap/internal/cost"
	"github.com/sells-group/ivrmap/internal/dialer"
	"github.com/sells-group/ivrmap/internal/discovery"
	"github.com/sells-group/ivrmap/internal/enrich"
	"github.com/sells-group/ivrmap/internal/store"
	anthropicpkg "github.com/sells-group/ivrmap/pkg/anthropic"
	"github.com/sells-group/ivrmap/pkg/bland"
)

// engineEnv holds the initialized store and engine shared by the
// discover/refine/batch/serve commands.
type engineEnv struct {
	Store  store.Store
	Engine *discovery.Engine
}

// Close releases resources held by the environment.
func (e *engineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured session ledger backend and migrates it.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initEngine sets up the store, provider clients, and the discovery
// engine for commands that place calls. Callers should defer env.Close().
func initEngine(ctx context.Context, mode string) (*engineEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	provider := bland.NewClient(cfg.Bland.Key,
		bland.WithBaseURL(cfg.Bland.BaseURL),
		bland.WithRateLimit(cfg.Bland.RateLimitRPS, cfg.Bland.RateLimitBurst),
	)
	d := dialer.New(provider, dialer.Options{
		PollInterval:       time.Duration(cfg.Discovery.PollIntervalSecs) * time.Second,
		PollCap:            time.Duration(cfg.Discovery.PollCapSecs) * time.Second,
		PollTimeout:        time.Duration(cfg.Discovery.PollTimeoutSecs) * time.Second,
		MaxCallDuration:    cfg.Discovery.MaxCallDurationMins,
		WaitForGreeting:    cfg.Discovery.WaitForGreeting,
		VoicemailDetection: cfg.Discovery.VoicemailDetection,
		Record:             cfg.Discovery.Record,
	})

	calc := cost.NewCalculator(cfg.Pricing)

	// Enrichment is optional: no Anthropic key, no extraction pass.
	var extractor enrich.Extractor
	if cfg.Anthropic.Key != "" {
		extractor = enrich.New(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model, calc)
	} else {
		zap.L().Debug("IVRMAP_ANTHROPIC_KEY not set, transcript enrichment disabled")
	}

	engine := discovery.NewEngine(st, d, extractor, calc)
	engine.SetRecentWindow(cfg.Discovery.RecentPlanWindow)

	return &engineEnv{
		Store:  st,
		Engine: engine,
	}, nil
}

// initInspectStore is initEngine for read-only commands: store access,
// no provider credentials required.
func initInspectStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("inspect"); err != nil {
		return nil, err
	}
	return initStore(ctx)
}
