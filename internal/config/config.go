// Package config defines the top-level configuration for the order intake
// service and provides validation helpers.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ORDERPOOL_* environment variables.
type Config struct {
	Server     ServerConfig           `toml:"server"`
	Postgres   PostgresConfig         `toml:"postgres"`
	Redis      RedisConfig            `toml:"redis"`
	S3         S3Config               `toml:"s3"`
	Lifecycle  LifecycleConfig        `toml:"lifecycle"`
	Cosigner   CosignerConfig         `toml:"cosigner"`
	Admission  AdmissionConfig        `toml:"admission"`
	Validation ValidationConfig       `toml:"validation"`
	Chains     map[string]ChainConfig `toml:"chains"`
	LogLevel   string                 `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	QuoteTTL   duration `toml:"quote_ttl"`
}

// S3Config holds S3-compatible object storage parameters for analytics
// events and order archives.
type S3Config struct {
	Enabled        bool     `toml:"enabled"`
	Endpoint       string   `toml:"endpoint"`
	Region         string   `toml:"region"`
	Bucket         string   `toml:"bucket"`
	AccessKey      string   `toml:"access_key"`
	SecretKey      string   `toml:"secret_key"`
	UseSSL         bool     `toml:"use_ssl"`
	ForcePathStyle bool     `toml:"force_path_style"`
	EventBatchSize int      `toml:"event_batch_size"`
	FlushInterval  duration `toml:"flush_interval"`
	ArchiveEnabled bool     `toml:"archive_enabled"`
}

// LifecycleConfig holds the Step Functions client parameters for the
// lifecycle kickoff.
type LifecycleConfig struct {
	Enabled          bool              `toml:"enabled"`
	Region           string            `toml:"region"`
	AccessKey        string            `toml:"access_key"`
	SecretKey        string            `toml:"secret_key"`
	Endpoint         string            `toml:"endpoint"`
	StateMachineARNs map[string]string `toml:"state_machine_arns"`
}

// CosignerConfig holds the cosigner signing key. Either a raw hex key or an
// encrypted key file plus password.
type CosignerConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// AdmissionConfig holds the per-offerer open-order ceilings.
type AdmissionConfig struct {
	DefaultLimit  int      `toml:"default_limit"`
	ElevatedLimit int      `toml:"elevated_limit"`
	ElevatedAddrs []string `toml:"elevated_addrs"`
	RelayLimit    int      `toml:"relay_limit"`
}

// ValidationConfig tunes the off-chain and on-chain validators.
type ValidationConfig struct {
	MaxDeadline        duration `toml:"max_deadline"`
	SkipDecayStartTime bool     `toml:"skip_decay_start_time"`
	OnChainTimeout     duration `toml:"on_chain_timeout"`
}

// ChainConfig holds per-chain parameters, keyed in TOML by the decimal chain
// id ([chains.1], [chains.8453], ...).
type ChainConfig struct {
	RPCURL            string `toml:"rpc_url"`
	Quoter            string `toml:"quoter"`
	RelayQuoter       string `toml:"relay_quoter"`
	TargetBlockBuffer uint64 `toml:"target_block_buffer"`
	DecayStartBuffer  int64  `toml:"decay_start_buffer"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"*"},
			RateLimit:       0,
			RateLimitWindow: duration{time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "orderpool",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			QuoteTTL:   duration{15 * time.Minute},
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "orderpool-data",
			UseSSL:         false,
			ForcePathStyle: true,
			EventBatchSize: 100,
			FlushInterval:  duration{30 * time.Second},
			ArchiveEnabled: false,
		},
		Lifecycle: LifecycleConfig{
			Enabled:          false,
			Region:           "us-east-1",
			StateMachineARNs: map[string]string{},
		},
		Admission: AdmissionConfig{
			DefaultLimit:  50,
			ElevatedLimit: 200,
			RelayLimit:    50,
		},
		Validation: ValidationConfig{
			MaxDeadline:        duration{24 * time.Hour},
			SkipDecayStartTime: false,
			OnChainTimeout:     duration{5 * time.Second},
		},
		Chains:   map[string]ChainConfig{},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var addrRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.EventBatchSize < 1 {
			errs = append(errs, "s3: event_batch_size must be >= 1")
		}
	}

	// Lifecycle
	if c.Lifecycle.Enabled {
		if c.Lifecycle.Region == "" {
			errs = append(errs, "lifecycle: region must not be empty when enabled")
		}
		if len(c.Lifecycle.StateMachineARNs) == 0 {
			errs = append(errs, "lifecycle: state_machine_arns must not be empty when enabled")
		}
		for id := range c.Lifecycle.StateMachineARNs {
			if _, ok := c.Chains[id]; !ok {
				errs = append(errs, fmt.Sprintf("lifecycle: state machine configured for unknown chain %s", id))
			}
		}
	}

	// All standard-route services handle cosigned variants, so a cosigner
	// key source is mandatory.
	if c.Cosigner.PrivateKey == "" && c.Cosigner.EncryptedKeyPath == "" {
		errs = append(errs, "cosigner: either private_key or encrypted_key_path must be set")
	}
	if c.Cosigner.EncryptedKeyPath != "" && c.Cosigner.KeyPassword == "" {
		errs = append(errs, "cosigner: key_password is required when encrypted_key_path is set")
	}

	// Admission
	if c.Admission.DefaultLimit < 0 {
		errs = append(errs, "admission: default_limit must be >= 0")
	}
	if c.Admission.ElevatedLimit < 0 {
		errs = append(errs, "admission: elevated_limit must be >= 0")
	}
	if c.Admission.RelayLimit < 0 {
		errs = append(errs, "admission: relay_limit must be >= 0")
	}
	for _, a := range c.Admission.ElevatedAddrs {
		if !addrRe.MatchString(a) {
			errs = append(errs, fmt.Sprintf("admission: elevated_addrs entry %q is not a hex address", a))
		}
	}

	// Validation
	if c.Validation.MaxDeadline.Duration <= 0 {
		errs = append(errs, "validation: max_deadline must be positive")
	}
	if c.Validation.OnChainTimeout.Duration <= 0 {
		errs = append(errs, "validation: on_chain_timeout must be positive")
	}

	// Chains
	if len(c.Chains) == 0 {
		errs = append(errs, "chains: at least one chain must be configured")
	}
	for id, chain := range c.Chains {
		if _, err := parseChainID(id); err != nil {
			errs = append(errs, fmt.Sprintf("chains: key %q is not a decimal chain id", id))
		}
		if chain.RPCURL == "" {
			errs = append(errs, fmt.Sprintf("chains.%s: rpc_url must not be empty", id))
		}
		if !addrRe.MatchString(chain.Quoter) {
			errs = append(errs, fmt.Sprintf("chains.%s: quoter %q is not a hex address", id, chain.Quoter))
		}
		// relay_quoter is optional; chains without one reject relay orders.
		if chain.RelayQuoter != "" && !addrRe.MatchString(chain.RelayQuoter) {
			errs = append(errs, fmt.Sprintf("chains.%s: relay_quoter %q is not a hex address", id, chain.RelayQuoter))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ChainIDs returns the configured chain ids in numeric form.
func (c *Config) ChainIDs() ([]uint64, error) {
	ids := make([]uint64, 0, len(c.Chains))
	for id := range c.Chains {
		n, err := parseChainID(id)
		if err != nil {
			return nil, err
		}
		ids = append(ids, n)
	}
	return ids, nil
}

// ChainByID returns the chain config for a numeric chain id.
func (c *Config) ChainByID(chainID uint64) (ChainConfig, bool) {
	chain, ok := c.Chains[fmt.Sprintf("%d", chainID)]
	return chain, ok
}

func parseChainID(s string) (uint64, error) {
	var n uint64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, fmt.Errorf("config: chain id %q: %w", s, err)
	}
	return n, nil
}
