package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MATCHFEED_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MATCHFEED_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Match ──
	setStr(&cfg.Match.ID, "MATCHFEED_MATCH_ID")
	setBool(&cfg.Match.Enabled, "MATCHFEED_MATCH_ENABLED")
	setStr(&cfg.Match.ViewerAddress, "MATCHFEED_MATCH_VIEWER_ADDRESS")
	setStr(&cfg.Match.FollowedMonachad, "MATCHFEED_MATCH_FOLLOWED_MONACHAD")
	setInt(&cfg.Match.MaxWindow, "MATCHFEED_MATCH_MAX_WINDOW")
	setBool(&cfg.Match.Dedupe, "MATCHFEED_MATCH_DEDUPE")

	// ── Relay ──
	setStr(&cfg.Relay.WsURL, "MATCHFEED_RELAY_WS_URL")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "MATCHFEED_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "MATCHFEED_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MATCHFEED_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MATCHFEED_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MATCHFEED_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MATCHFEED_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MATCHFEED_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.SlotTTL, "MATCHFEED_REDIS_SLOT_TTL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "MATCHFEED_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.DSN, "MATCHFEED_ARCHIVE_DSN")
	setStr(&cfg.Archive.Host, "MATCHFEED_ARCHIVE_HOST")
	setInt(&cfg.Archive.Port, "MATCHFEED_ARCHIVE_PORT")
	setStr(&cfg.Archive.Database, "MATCHFEED_ARCHIVE_DATABASE")
	setStr(&cfg.Archive.User, "MATCHFEED_ARCHIVE_USER")
	setStr(&cfg.Archive.Password, "MATCHFEED_ARCHIVE_PASSWORD")
	setStr(&cfg.Archive.SSLMode, "MATCHFEED_ARCHIVE_SSL_MODE")
	setInt(&cfg.Archive.PoolMaxConns, "MATCHFEED_ARCHIVE_POOL_MAX_CONNS")
	setInt(&cfg.Archive.PoolMinConns, "MATCHFEED_ARCHIVE_POOL_MIN_CONNS")
	setBool(&cfg.Archive.RunMigrations, "MATCHFEED_ARCHIVE_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MATCHFEED_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MATCHFEED_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MATCHFEED_S3_REGION")
	setStr(&cfg.S3.Bucket, "MATCHFEED_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MATCHFEED_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MATCHFEED_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MATCHFEED_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MATCHFEED_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MATCHFEED_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MATCHFEED_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MATCHFEED_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "MATCHFEED_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
