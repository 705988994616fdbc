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
// built-in defaults, applies ORDERPOOL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ORDERPOOL_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file. Per-chain tables have no env form; they live in TOML only.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "ORDERPOOL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ORDERPOOL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ORDERPOOL_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "ORDERPOOL_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "ORDERPOOL_SERVER_RATE_LIMIT_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ORDERPOOL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ORDERPOOL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ORDERPOOL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ORDERPOOL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ORDERPOOL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ORDERPOOL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ORDERPOOL_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ORDERPOOL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ORDERPOOL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ORDERPOOL_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ORDERPOOL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ORDERPOOL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ORDERPOOL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ORDERPOOL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ORDERPOOL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ORDERPOOL_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.QuoteTTL, "ORDERPOOL_REDIS_QUOTE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ORDERPOOL_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ORDERPOOL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ORDERPOOL_S3_REGION")
	setStr(&cfg.S3.Bucket, "ORDERPOOL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ORDERPOOL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ORDERPOOL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ORDERPOOL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ORDERPOOL_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.EventBatchSize, "ORDERPOOL_S3_EVENT_BATCH_SIZE")
	setDuration(&cfg.S3.FlushInterval, "ORDERPOOL_S3_FLUSH_INTERVAL")
	setBool(&cfg.S3.ArchiveEnabled, "ORDERPOOL_S3_ARCHIVE_ENABLED")

	// ── Lifecycle ──
	setBool(&cfg.Lifecycle.Enabled, "ORDERPOOL_LIFECYCLE_ENABLED")
	setStr(&cfg.Lifecycle.Region, "ORDERPOOL_LIFECYCLE_REGION")
	setStr(&cfg.Lifecycle.AccessKey, "ORDERPOOL_LIFECYCLE_ACCESS_KEY")
	setStr(&cfg.Lifecycle.SecretKey, "ORDERPOOL_LIFECYCLE_SECRET_KEY")
	setStr(&cfg.Lifecycle.Endpoint, "ORDERPOOL_LIFECYCLE_ENDPOINT")

	// ── Cosigner ──
	setStr(&cfg.Cosigner.PrivateKey, "ORDERPOOL_COSIGNER_PRIVATE_KEY")
	setStr(&cfg.Cosigner.EncryptedKeyPath, "ORDERPOOL_COSIGNER_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Cosigner.KeyPassword, "ORDERPOOL_COSIGNER_KEY_PASSWORD")

	// ── Admission ──
	setInt(&cfg.Admission.DefaultLimit, "ORDERPOOL_ADMISSION_DEFAULT_LIMIT")
	setInt(&cfg.Admission.ElevatedLimit, "ORDERPOOL_ADMISSION_ELEVATED_LIMIT")
	setStringSlice(&cfg.Admission.ElevatedAddrs, "ORDERPOOL_ADMISSION_ELEVATED_ADDRS")
	setInt(&cfg.Admission.RelayLimit, "ORDERPOOL_ADMISSION_RELAY_LIMIT")

	// ── Validation ──
	setDuration(&cfg.Validation.MaxDeadline, "ORDERPOOL_VALIDATION_MAX_DEADLINE")
	setBool(&cfg.Validation.SkipDecayStartTime, "ORDERPOOL_VALIDATION_SKIP_DECAY_START_TIME")
	setDuration(&cfg.Validation.OnChainTimeout, "ORDERPOOL_VALIDATION_ON_CHAIN_TIMEOUT")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ORDERPOOL_LOG_LEVEL")
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
