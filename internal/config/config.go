package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Aggregate AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
}

// StoreConfig configures the run store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AggregateConfig configures placement bucketing and report column mapping.
type AggregateConfig struct {
	NonSearchMarkers   []string `yaml:"non_search_markers" mapstructure:"non_search_markers"`
	RetargetingMarkers []string `yaml:"retargeting_markers" mapstructure:"retargeting_markers"`
	ColumnMapPath      string   `yaml:"column_map_path" mapstructure:"column_map_path"`
}

// ScorerConfig holds the exclusion-scoring thresholds.
type ScorerConfig struct {
	TargetROAS     float64 `yaml:"target_roas" mapstructure:"target_roas"`
	MinSpend       float64 `yaml:"min_spend" mapstructure:"min_spend"`
	MinClicks      int64   `yaml:"min_clicks" mapstructure:"min_clicks"`
	CPCCritical    float64 `yaml:"cpc_critical" mapstructure:"cpc_critical"`
	CPCVeryHigh    float64 `yaml:"cpc_very_high" mapstructure:"cpc_very_high"`
	ClicksCritical int64   `yaml:"clicks_critical" mapstructure:"clicks_critical"`
	ClicksHigh     int64   `yaml:"clicks_high" mapstructure:"clicks_high"`
	TierMinMembers int     `yaml:"tier_min_members" mapstructure:"tier_min_members"`
	MaxReasons     int     `yaml:"max_reasons" mapstructure:"max_reasons"`
}

// BatchConfig configures multi-file batch runs.
type BatchConfig struct {
	MaxConcurrentFiles int `yaml:"max_concurrent_files" mapstructure:"max_concurrent_files"`
	TimeoutSecs        int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings for narrative insights.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ADKEYWORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "adkeyword.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 10)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("aggregate.non_search_markers", []string{"비검색", "non-search"})
	v.SetDefault("aggregate.retargeting_markers", []string{"리타겟팅", "retargeting"})
	v.SetDefault("scorer.target_roas", 400)
	v.SetDefault("scorer.min_spend", 5000)
	v.SetDefault("scorer.min_clicks", 10)
	v.SetDefault("scorer.cpc_critical", 500)
	v.SetDefault("scorer.cpc_very_high", 800)
	v.SetDefault("scorer.clicks_critical", 30)
	v.SetDefault("scorer.clicks_high", 15)
	v.SetDefault("scorer.tier_min_members", 3)
	v.SetDefault("scorer.max_reasons", 3)
	v.SetDefault("batch.max_concurrent_files", 4)
	v.SetDefault("batch.timeout_secs", 120)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1500)

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

	return &cfg, nil
}

// Validate checks the fields a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "store":
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port must be between 1 and 65535 (got %d)", c.Server.Port))
		}
		if c.Server.MaxUploadMB <= 0 {
			errs = append(errs, "server.max_upload_mb must be > 0")
		}
	case "analyze":
		if len(c.Aggregate.NonSearchMarkers) == 0 {
			errs = append(errs, "aggregate.non_search_markers must not be empty")
		}
		if len(c.Aggregate.RetargetingMarkers) == 0 {
			errs = append(errs, "aggregate.retargeting_markers must not be empty")
		}
	case "batch":
		if c.Batch.MaxConcurrentFiles <= 0 {
			errs = append(errs, "batch.max_concurrent_files must be > 0")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
