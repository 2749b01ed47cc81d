package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	Sync     SyncConfig     `yaml:"sync" mapstructure:"sync"`
	Query    QueryConfig    `yaml:"query" mapstructure:"query"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// OverpassConfig configures the remote geodata API.
type OverpassConfig struct {
	URL              string  `yaml:"url" mapstructure:"url"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	QueryTimeoutSecs int     `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// SyncConfig configures the region sync engine and its schedule.
type SyncConfig struct {
	Interval      time.Duration `yaml:"interval" mapstructure:"interval"`
	Pacing        time.Duration `yaml:"pacing" mapstructure:"pacing"`
	Regions       []string      `yaml:"regions" mapstructure:"regions"`
	FetchAttempts int           `yaml:"fetch_attempts" mapstructure:"fetch_attempts"`
	OnStart       bool          `yaml:"on_start" mapstructure:"on_start"`
}

// QueryConfig bounds the read API.
type QueryConfig struct {
	DefaultLimit int `yaml:"default_limit" mapstructure:"default_limit"`
	MaxLimit     int `yaml:"max_limit" mapstructure:"max_limit"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("PHARMADIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pharmacies.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("overpass.url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.user_agent", "pharmadir/1.0")
	v.SetDefault("overpass.timeout_secs", 30)
	v.SetDefault("overpass.query_timeout_secs", 25)
	v.SetDefault("overpass.rate_per_sec", 1.0)
	v.SetDefault("sync.interval", "24h")
	v.SetDefault("sync.pacing", "1s")
	v.SetDefault("sync.regions", []string{})
	v.SetDefault("sync.fetch_attempts", 1)
	v.SetDefault("sync.on_start", true)
	v.SetDefault("query.default_limit", 300)
	v.SetDefault("query.max_limit", 1000)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings the given command depends on. Mode is one of
// "serve", "sync", or "query"; unknown modes only get the store checks.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if mode == "serve" || mode == "sync" {
		if c.Overpass.URL == "" {
			problems = append(problems, "overpass.url is required")
		}
		if c.Overpass.TimeoutSecs <= 0 {
			problems = append(problems, "overpass.timeout_secs must be positive")
		}
		if c.Overpass.RatePerSec <= 0 {
			problems = append(problems, "overpass.rate_per_sec must be positive")
		}
		if c.Sync.Pacing < 0 {
			problems = append(problems, "sync.pacing must not be negative")
		}
		if c.Sync.FetchAttempts < 1 {
			problems = append(problems, "sync.fetch_attempts must be at least 1")
		}
	}

	if mode == "serve" {
		if c.Sync.Interval <= 0 {
			problems = append(problems, "sync.interval must be positive")
		}
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, fmt.Sprintf("server.port must be between 1 and 65535 (got %d)", c.Server.Port))
		}
	}

	if mode == "serve" || mode == "query" {
		if c.Query.DefaultLimit <= 0 {
			problems = append(problems, "query.default_limit must be positive")
		}
		if c.Query.MaxLimit < c.Query.DefaultLimit {
			problems = append(problems, "query.max_limit must be at least query.default_limit")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
