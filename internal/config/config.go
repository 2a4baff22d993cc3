// Package config loads application configuration from an optional yaml
// file and IVRMAP_-prefixed environment variables, and initializes the
// global zap logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/ivrmap/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Bland     BlandConfig     `yaml:"bland" mapstructure:"bland"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Pricing   cost.Rates      `yaml:"pricing" mapstructure:"pricing"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the session ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// BlandConfig holds telephony provider settings.
type BlandConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
}

// AnthropicConfig holds enrichment model settings. An empty key disables
// the enrichment pass.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// DiscoveryConfig tunes the discovery loop and call polling.
type DiscoveryConfig struct {
	MinCalls            int  `yaml:"min_calls" mapstructure:"min_calls"`
	MaxCalls            int  `yaml:"max_calls" mapstructure:"max_calls"`
	RefineMaxCalls      int  `yaml:"refine_max_calls" mapstructure:"refine_max_calls"`
	PollIntervalSecs    int  `yaml:"poll_interval_secs" mapstructure:"poll_interval_secs"`
	PollCapSecs         int  `yaml:"poll_cap_secs" mapstructure:"poll_cap_secs"`
	PollTimeoutSecs     int  `yaml:"poll_timeout_secs" mapstructure:"poll_timeout_secs"`
	MaxCallDurationMins int  `yaml:"max_call_duration_mins" mapstructure:"max_call_duration_mins"`
	RecentPlanWindow    int  `yaml:"recent_plan_window" mapstructure:"recent_plan_window"`
	WaitForGreeting     bool `yaml:"wait_for_greeting" mapstructure:"wait_for_greeting"`
	VoicemailDetection  bool `yaml:"voicemail_detection" mapstructure:"voicemail_detection"`
	Record              bool `yaml:"record" mapstructure:"record"`
}

// BatchConfig configures multi-target batch discovery.
type BatchConfig struct {
	MaxConcurrentTargets int `yaml:"max_concurrent_targets" mapstructure:"max_concurrent_targets"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("IVRMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ivrmap.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("bland.base_url", "https://api.bland.ai/v1")
	v.SetDefault("bland.rate_limit_rps", 5)
	v.SetDefault("bland.rate_limit_burst", 5)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("discovery.min_calls", 1)
	v.SetDefault("discovery.max_calls", 10)
	v.SetDefault("discovery.refine_max_calls", 2)
	v.SetDefault("discovery.poll_interval_secs", 1)
	v.SetDefault("discovery.poll_cap_secs", 20)
	v.SetDefault("discovery.poll_timeout_secs", 600)
	v.SetDefault("discovery.max_call_duration_mins", 8)
	v.SetDefault("discovery.recent_plan_window", 3)
	v.SetDefault("discovery.wait_for_greeting", true)
	v.SetDefault("discovery.voicemail_detection", true)
	v.SetDefault("discovery.record", true)
	v.SetDefault("batch.max_concurrent_targets", 3)
	v.SetDefault("pricing.call.per_minute", 0.09)
	v.SetDefault("pricing.call.connection", 0.0)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if len(cfg.Pricing.Anthropic) == 0 {
		cfg.Pricing.Anthropic = cost.DefaultRates().Anthropic
	}

	return &cfg, nil
}

// Validate checks the configuration for the given command mode. Inspection
// commands ("inspect") only need a store; anything that places calls also
// needs provider credentials.
func (c *Config) Validate(mode string) error {
	var problems []string
	check := func(bad bool, msg string) {
		if bad {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "discover", "batch":
		check(c.Bland.Key == "", "bland.key is required")
	case "serve":
		check(c.Bland.Key == "", "bland.key is required")
		check(c.Server.Port <= 0, "server.port must be > 0")
	case "inspect":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	check(c.Store.Driver != "sqlite" && c.Store.Driver != "postgres",
		"store.driver must be sqlite or postgres")
	check(c.Store.DatabaseURL == "", "store.database_url is required")
	check(c.Discovery.MinCalls < 1, "discovery.min_calls must be >= 1")
	check(c.Discovery.MaxCalls < c.Discovery.MinCalls,
		"discovery.max_calls must be >= discovery.min_calls")
	check(c.Batch.MaxConcurrentTargets < 1 || c.Batch.MaxConcurrentTargets > 20,
		"batch.max_concurrent_targets must be between 1 and 20")

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
