package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds settings shared by the statistics server and the sweep tools.
// Values come from defaults, then an optional config file, then the
// environment.
type Config struct {
	Port string `mapstructure:"PORT"`

	PrimaryDatabaseURL   string        `mapstructure:"PRIMARY_DATABASE_URL"`
	SecondaryDatabaseURL string        `mapstructure:"SECONDARY_DATABASE_URL"`
	RedisURL             string        `mapstructure:"REDIS_URL"`
	CacheTTL             time.Duration `mapstructure:"CACHE_TTL"`
	ArbiterFailover      string        `mapstructure:"ARBITER_FAILOVER"`

	ResultsDatabaseURL string `mapstructure:"RESULTS_DATABASE_URL"`

	StatsPrimaryURL   string        `mapstructure:"STATS_PRIMARY_URL"`
	StatsSecondaryURL string        `mapstructure:"STATS_SECONDARY_URL"`
	StatsTimeout      time.Duration `mapstructure:"STATS_TIMEOUT"`

	StockfishPath  string        `mapstructure:"STOCKFISH_PATH"`
	SearchMoveTime time.Duration `mapstructure:"SEARCH_MOVE_TIME"`
	EvalDepth      int           `mapstructure:"EVAL_DEPTH"`
}

var defaults = map[string]any{
	"PORT":                   "5554",
	"PRIMARY_DATABASE_URL":   "",
	"SECONDARY_DATABASE_URL": "",
	"REDIS_URL":              "",
	"CACHE_TTL":              "10m",
	"ARBITER_FAILOVER":       "primary",
	"RESULTS_DATABASE_URL":   "",
	"STATS_PRIMARY_URL":      "http://localhost:5554/datasets/primary",
	"STATS_SECONDARY_URL":    "http://localhost:5554/datasets/secondary",
	"STATS_TIMEOUT":          "5s",
	"STOCKFISH_PATH":         "/usr/bin/stockfish",
	"SEARCH_MOVE_TIME":       "50ms",
	"EVAL_DEPTH":             1,
}

// Load reads configuration. path names an optional YAML, TOML or JSON file;
// an empty path uses defaults and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.EvalDepth < 1 {
		return nil, fmt.Errorf("EVAL_DEPTH must be >= 1, got %d", cfg.EvalDepth)
	}
	return &cfg, nil
}
