// Package config loads configuration from defaults, an optional TOML file and
// environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pendergraft/delegation-deployments/internal/chains"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "deployments.toml"

// Config holds all configuration for the CLI and the server
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Auth       AuthConfig       `toml:"auth"`
	Cache      CacheConfig      `toml:"cache"`
	Logging    LoggingConfig    `toml:"logging"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
	Proxy      ProxyConfig      `toml:"proxy"`
	Metrics    MetricsConfig    `toml:"metrics"`
	Validation ValidationConfig `toml:"validation"`
	RPC        RPCConfig        `toml:"rpc"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int    `toml:"port"`
	Host           string `toml:"host"`
	ReadTimeout    int    `toml:"read_timeout"`    // seconds
	WriteTimeout   int    `toml:"write_timeout"`   // seconds
	IdleTimeout    int    `toml:"idle_timeout"`    // seconds
	RequestTimeout int    `toml:"request_timeout"` // seconds
	MaxBodyKB      int    `toml:"max_body_kb"`
	URL            string `toml:"url"` // used by CLI run queries
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string         `toml:"type"` // "sqlite" or "postgres"
	Postgres PostgresConfig `toml:"postgres"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string `toml:"url"`
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// AuthConfig holds authentication settings. An empty APIKey disables auth.
type AuthConfig struct {
	APIKey string `toml:"api_key"`
}

// CacheConfig holds the latest-run cache settings
type CacheConfig struct {
	Enabled bool          `toml:"enabled"`
	TTL     time.Duration `toml:"ttl"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json", "text" or "console"; empty picks per binary
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool `toml:"enabled"`
	RequestsPerMin int  `toml:"requests_per_min"`
	BurstSize      int  `toml:"burst_size"`
	CleanupMinutes int  `toml:"cleanup_minutes"`
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool     `toml:"trust_proxy"`
	TrustedProxies []string `toml:"trusted_proxies"` // CIDR notation
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// ValidationConfig tunes the deployment validator
type ValidationConfig struct {
	Concurrency              int           `toml:"concurrency"`
	ContractConcurrency      int           `toml:"contract_concurrency"`
	CallTimeout              time.Duration `toml:"call_timeout"`
	CheckContractsOnMismatch bool          `toml:"check_contracts_on_mismatch"`
	// Interval schedules periodic validation in the server. Zero disables it.
	Interval time.Duration `toml:"interval"`
}

// RPCConfig holds RPC endpoint overrides keyed by decimal chain id
type RPCConfig struct {
	Overrides map[string]string `toml:"overrides"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			ReadTimeout:    30,
			WriteTimeout:   300,
			IdleTimeout:    120,
			RequestTimeout: 300,
			MaxBodyKB:      64,
			URL:            "http://localhost:8080",
		},
		Storage: StorageConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "./data/deployments.db"},
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 300,
			BurstSize:      50,
			CleanupMinutes: 10,
		},
		Proxy: ProxyConfig{
			TrustedProxies: []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		},
		Metrics: MetricsConfig{
			Port: 9090,
		},
		Validation: ValidationConfig{
			Concurrency:         8,
			ContractConcurrency: 4,
			CallTimeout:         30 * time.Second,
		},
		RPC: RPCConfig{
			Overrides: map[string]string{},
		},
	}
}

// Load loads configuration from environment variables over defaults
func Load() (*Config, error) {
	return LoadWithFile("")
}

// LoadWithFile loads defaults, overlays the TOML file at path (if path is
// empty, DefaultFile when present) and then environment variables.
func LoadWithFile(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	if err := cfg.overlayFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg.overlayEnv()

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && os.Getenv("STORAGE_TYPE") == "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayEnv() {
	c.Server.Port = getEnvInt("PORT", c.Server.Port)
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.ReadTimeout = getEnvInt("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvInt("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvInt("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.RequestTimeout = getEnvInt("SERVER_REQUEST_TIMEOUT", c.Server.RequestTimeout)
	c.Server.MaxBodyKB = getEnvInt("SERVER_MAX_BODY_KB", c.Server.MaxBodyKB)
	c.Server.URL = getEnv("DEPLOYMENTS_SERVER", c.Server.URL)

	c.Storage.Type = getEnv("STORAGE_TYPE", c.Storage.Type)
	c.Storage.Postgres.URL = getEnv("DATABASE_URL", c.Storage.Postgres.URL)
	c.Storage.SQLite.Path = getEnv("SQLITE_PATH", c.Storage.SQLite.Path)

	c.Auth.APIKey = getEnv("AUTH_API_KEY", c.Auth.APIKey)

	c.Cache.Enabled = getEnvBool("CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.TTL = getEnvDuration("CACHE_TTL", c.Cache.TTL)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)

	c.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RequestsPerMin = getEnvInt("RATE_LIMIT_RPM", c.RateLimit.RequestsPerMin)
	c.RateLimit.BurstSize = getEnvInt("RATE_LIMIT_BURST", c.RateLimit.BurstSize)
	c.RateLimit.CleanupMinutes = getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", c.RateLimit.CleanupMinutes)

	c.Proxy.TrustProxy = getEnvBool("TRUST_PROXY", c.Proxy.TrustProxy)
	c.Proxy.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", c.Proxy.TrustedProxies)

	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Port = getEnvInt("METRICS_PORT", c.Metrics.Port)

	c.Validation.Concurrency = getEnvInt("VALIDATE_CONCURRENCY", c.Validation.Concurrency)
	c.Validation.ContractConcurrency = getEnvInt("VALIDATE_CONTRACT_CONCURRENCY", c.Validation.ContractConcurrency)
	c.Validation.CallTimeout = getEnvDuration("VALIDATE_CALL_TIMEOUT", c.Validation.CallTimeout)
	c.Validation.CheckContractsOnMismatch = getEnvBool("VALIDATE_CHECK_ON_MISMATCH", c.Validation.CheckContractsOnMismatch)
	c.Validation.Interval = getEnvDuration("VALIDATE_INTERVAL", c.Validation.Interval)

	// RPC_OVERRIDES="1=https://...,56=https://..."
	for _, pair := range getEnvStringSlice("RPC_OVERRIDES", nil) {
		id, url, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if c.RPC.Overrides == nil {
			c.RPC.Overrides = map[string]string{}
		}
		c.RPC.Overrides[strings.TrimSpace(id)] = strings.TrimSpace(url)
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "sqlite":
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			return errors.New("storage: postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("storage: unsupported type %q", c.Storage.Type)
	}

	switch c.Logging.Format {
	case "", "json", "text", "console":
	default:
		return fmt.Errorf("logging: unsupported format %q", c.Logging.Format)
	}

	if c.Validation.Concurrency < 1 || c.Validation.ContractConcurrency < 1 {
		return errors.New("validation: concurrency must be at least 1")
	}
	if c.Validation.CallTimeout < 0 {
		return errors.New("validation: call timeout cannot be negative")
	}

	if _, err := c.RPCOverrides(); err != nil {
		return err
	}
	return nil
}

// RPCOverrides parses the configured overrides.
func (c *Config) RPCOverrides() (chains.Overrides, error) {
	keys := make([]string, 0, len(c.RPC.Overrides))
	for k := range c.RPC.Overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+c.RPC.Overrides[k])
	}
	o, err := chains.ParseOverrides(pairs)
	if err != nil {
		return nil, fmt.Errorf("rpc: %w", err)
	}
	return o, nil
}

// EffectiveOverrides layers the configured overrides over the built-in ones.
func (c *Config) EffectiveOverrides() (chains.Overrides, error) {
	base, err := chains.DefaultOverrides()
	if err != nil {
		return nil, err
	}
	configured, err := c.RPCOverrides()
	if err != nil {
		return nil, err
	}
	return base.Merge(configured), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
