// Package config defines the top-level configuration for the matchfeed
// service and provides validation helpers.
package config

import (
	"fmt"
	"time"

	"github.com/monachad/matchfeed/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MATCHFEED_* environment
// variables.
type Config struct {
	Match    MatchConfig   `toml:"match"`
	Relay    RelayConfig   `toml:"relay"`
	Redis    RedisConfig   `toml:"redis"`
	Archive  ArchiveConfig `toml:"archive"`
	S3       S3Config      `toml:"s3"`
	Server   ServerConfig  `toml:"server"`
	LogLevel string        `toml:"log_level"`
}

// MatchConfig identifies the match this instance aggregates and the viewer
// identity used to partition the "mine" views.
type MatchConfig struct {
	ID string `toml:"id"`

	// Enabled gates the relay connection. When false the service serves
	// whatever was hydrated from durable slots but never connects.
	Enabled bool `toml:"enabled"`

	// ViewerAddress is the connected wallet's address. Optional; when empty
	// the mine-shadow view stays empty.
	ViewerAddress string `toml:"viewer_address"`

	// FollowedMonachad is the address of the Monachad being followed.
	// Optional; when empty the mine-original view stays empty.
	FollowedMonachad string `toml:"followed_monachad"`

	// MaxWindow bounds the "all" views. Zero means the default (30).
	MaxWindow int `toml:"max_window"`

	// Dedupe drops relay redeliveries by transaction hash within the bounded
	// window. Off by default to match the original client's behavior.
	Dedupe bool `toml:"dedupe"`
}

// RelayConfig holds the match relay endpoint.
type RelayConfig struct {
	WsURL string `toml:"ws_url"`
}

// RedisConfig holds Redis connection parameters for the durable slot store.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	SlotTTL    duration `toml:"slot_ttl"`
}

// ArchiveConfig holds PostgreSQL parameters for the durable trade archive.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds object storage parameters for the eviction archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds the HTTP view API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration wraps time.Duration so TOML values like "72h" parse naturally.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Defaults returns the built-in configuration that a TOML file and
// environment overrides are merged on top of.
func Defaults() Config {
	return Config{
		Match: MatchConfig{
			Enabled:   true,
			MaxWindow: 30,
		},
		Relay: RelayConfig{
			WsURL: "ws://localhost:3000/ws",
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
			SlotTTL:    duration{7 * 24 * time.Hour},
		},
		Archive: ArchiveConfig{
			Port:          5432,
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for inconsistencies. It is called by the
// entry point after Load.
func (c *Config) Validate() error {
	if c.Match.Enabled && c.Match.ID == "" {
		return fmt.Errorf("config: match.id is required when the feed is enabled")
	}
	if c.Match.MaxWindow < 0 {
		return fmt.Errorf("config: match.max_window must not be negative")
	}
	if c.Match.ViewerAddress != "" && !domain.ValidAddress(c.Match.ViewerAddress) {
		return fmt.Errorf("config: match.viewer_address %q is not a valid address", c.Match.ViewerAddress)
	}
	if c.Match.FollowedMonachad != "" && !domain.ValidAddress(c.Match.FollowedMonachad) {
		return fmt.Errorf("config: match.followed_monachad %q is not a valid address", c.Match.FollowedMonachad)
	}

	if c.Match.Enabled && c.Relay.WsURL == "" {
		return fmt.Errorf("config: relay.ws_url is required when the feed is enabled")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}

	if c.Archive.Enabled && c.Archive.DSN == "" && c.Archive.Host == "" {
		return fmt.Errorf("config: archive.dsn or archive.host is required when the archive is enabled")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			return fmt.Errorf("config: s3.bucket is required when s3 is enabled")
		}
		if c.S3.Region == "" {
			return fmt.Errorf("config: s3.region is required when s3 is enabled")
		}
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		return fmt.Errorf("config: server.port %d is out of range", c.Server.Port)
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log_level %q", c.LogLevel)
	}

	return nil
}
