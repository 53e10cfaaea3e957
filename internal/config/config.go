// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	DB      DBConfig      `mapstructure:"db"`
	Queue   QueueConfig   `mapstructure:"queue"`
	YouTube YouTubeConfig `mapstructure:"youtube"`
	Probe   ProbeConfig   `mapstructure:"probe"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Logging LoggingConfig `mapstructure:"logging"`
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

// DBConfig controls access to the catalog database. Provider is either
// "postgres" or "memory".
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// QueueConfig selects and names the broker. Provider is either "pubsub"
// or "memory". The topic/routing-key/subscription names mirror the broker
// topology the upload and processing services have always shared.
type QueueConfig struct {
	Provider     string `mapstructure:"provider"`
	Depth        int    `mapstructure:"depth"`
	MaxAttempts  int    `mapstructure:"max_attempts"`
	ProjectID    string `mapstructure:"project_id"`
	Topic        string `mapstructure:"topic"`
	RoutingKey   string `mapstructure:"routing_key"`
	Subscription string `mapstructure:"subscription"`
}

// YouTubeConfig points the fetcher at the metadata provider.
type YouTubeConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`

	// QuotaRPS paces provider requests across the worker pool; zero
	// disables pacing.
	QuotaRPS   float64 `mapstructure:"quota_rps"`
	QuotaBurst int     `mapstructure:"quota_burst"`
}

// ProbeConfig selects the existence probe. Mode "store" asks the local
// catalog store directly; mode "http" calls a remote catalog service.
type ProbeConfig struct {
	Mode           string `mapstructure:"mode"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// WorkerConfig governs the consumer pool.
type WorkerConfig struct {
	Concurrency         int `mapstructure:"concurrency"`
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds"`
}

// ArchiveConfig controls the raw provider-response archive. Provider is
// "gcs", "memory", or "" to disable archiving.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INGEST")
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
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("queue.provider", "memory")
	v.SetDefault("queue.depth", 64)
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.topic", "video.exchange")
	v.SetDefault("queue.routing_key", "video.id")
	v.SetDefault("queue.subscription", "video.id.queue")
	v.SetDefault("youtube.base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("youtube.timeout_seconds", 10)
	v.SetDefault("youtube.quota_rps", 0)
	v.SetDefault("youtube.quota_burst", 1)
	v.SetDefault("probe.mode", "store")
	v.SetDefault("probe.timeout_seconds", 5)
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.fetch_timeout_seconds", 15)
	v.SetDefault("archive.prefix", "responses")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker.concurrency must be > 0")
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be > 0")
	}
	switch c.DB.Provider {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when db.provider is postgres")
		}
	default:
		return fmt.Errorf("unknown db.provider %q", c.DB.Provider)
	}
	switch c.Queue.Provider {
	case "memory":
		if c.Queue.Depth <= 0 {
			return fmt.Errorf("queue.depth must be > 0")
		}
	case "pubsub":
		if c.Queue.ProjectID == "" {
			return fmt.Errorf("queue.project_id must be set when queue.provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown queue.provider %q", c.Queue.Provider)
	}
	if c.Probe.Mode == "http" && c.Probe.BaseURL == "" {
		return fmt.Errorf("probe.base_url must be set when probe.mode is http")
	}
	if c.Archive.Provider == "gcs" && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket must be set when archive.provider is gcs")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FetchTimeout converts the worker fetch budget into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Worker.FetchTimeoutSeconds) * time.Second
}
