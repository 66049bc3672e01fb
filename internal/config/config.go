// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobradar/vacancy-scraper/internal/scraper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Auth      AuthConfig       `mapstructure:"auth"`
	Scraper   ScraperConfig    `mapstructure:"scraper"`
	HTTP      HTTPConfig       `mapstructure:"http"`
	DB        DBConfig         `mapstructure:"db"`
	Archive   ArchiveConfig    `mapstructure:"archive"`
	Publisher PublisherConfig  `mapstructure:"publisher"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Sources   []scraper.Source `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScraperConfig governs the scheduler and worker pool.
type ScraperConfig struct {
	Workers            int     `mapstructure:"workers"`
	QueueDepth         int     `mapstructure:"queue_depth"`
	MaxRunDurationSec  int     `mapstructure:"max_run_duration_seconds"`
	MaxRunRetries      int     `mapstructure:"max_run_retries"`
	RetryBackoffBaseMs int     `mapstructure:"retry_backoff_base_ms"`
	RetryBackoffMaxMs  int     `mapstructure:"retry_backoff_max_ms"`
	UserAgent          string  `mapstructure:"user_agent"`
	DefaultRPS         float64 `mapstructure:"default_rps"`
	DefaultBurst       int     `mapstructure:"default_burst"`
	StatsWindow        int     `mapstructure:"stats_window"`
}

// HTTPConfig configures page fetch retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Provider        string `mapstructure:"provider"`
	DSN             string `mapstructure:"dsn"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	ConnLifetimeSec int    `mapstructure:"conn_lifetime_seconds"`
}

// ArchiveConfig sets the raw page snapshot destination.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// PublisherConfig holds metadata for record-change notifications.
type PublisherConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.workers", 4)
	v.SetDefault("scraper.queue_depth", 64)
	v.SetDefault("scraper.max_run_duration_seconds", 300)
	v.SetDefault("scraper.max_run_retries", 2)
	v.SetDefault("scraper.retry_backoff_base_ms", 5000)
	v.SetDefault("scraper.retry_backoff_max_ms", 120000)
	v.SetDefault("scraper.user_agent", "jobradar-bot/0.1")
	v.SetDefault("scraper.default_rps", 1.0)
	v.SetDefault("scraper.default_burst", 1)
	v.SetDefault("scraper.stats_window", 20)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_seconds", 1800)
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("publisher.provider", "memory")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.Workers <= 0 {
		return fmt.Errorf("scraper.workers must be > 0")
	}
	if c.Scraper.QueueDepth <= 0 {
		return fmt.Errorf("scraper.queue_depth must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.DB.Provider {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.provider is postgres")
		}
	default:
		return fmt.Errorf("db.provider must be memory or postgres")
	}
	switch c.Archive.Provider {
	case "noop":
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set when archive.provider is gcs")
		}
	default:
		return fmt.Errorf("archive.provider must be noop or gcs")
	}
	switch c.Publisher.Provider {
	case "memory":
	case "pubsub":
		if c.Publisher.ProjectID == "" || c.Publisher.TopicName == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic_name must be set when publisher.provider is pubsub")
		}
	default:
		return fmt.Errorf("publisher.provider must be memory or pubsub")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d].id must be set", i)
		}
		if _, dup := seen[src.ID]; dup {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = struct{}{}
		if src.BaseURL == "" {
			return fmt.Errorf("source %q: base_url must be set", src.ID)
		}
		if len(src.Profile.Listing) == 0 {
			return fmt.Errorf("source %q: profile.listing must have at least one selector", src.ID)
		}
		if len(src.Profile.Title) == 0 || len(src.Profile.Company) == 0 {
			return fmt.Errorf("source %q: profile must define title and company cascades", src.ID)
		}
	}
	return nil
}

// RunBudget converts the run duration config into a duration.
func (c Config) RunBudget() time.Duration {
	return time.Duration(c.Scraper.MaxRunDurationSec) * time.Second
}
