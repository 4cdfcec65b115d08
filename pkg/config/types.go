// Package config loads the cache proxy configuration with env > file >
// default precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/soa-response-cache/pkg/cache"
	"github.com/Sternrassler/soa-response-cache/pkg/logging"
)

// Shared backends understood by the proxy.
const (
	BackendNone   = "none"
	BackendRedis  = "redis"
	BackendValkey = "valkey"
	BackendSQLite = "sqlite"
)

// Config is the complete proxy configuration.
type Config struct {
	Server       ServerConfig  `koanf:"server"`
	Logging      LoggingConfig `koanf:"logging"`
	Local        LocalConfig   `koanf:"local"`
	Shared       SharedConfig  `koanf:"shared"`
	StripHeaders []string      `koanf:"stripHeaders"`
	Rules        []RuleConfig  `koanf:"rules"`
}

// ServerConfig holds the HTTP listener and upstream settings.
type ServerConfig struct {
	ListenAddress          string `koanf:"listenAddress"`
	Origin                 string `koanf:"origin"`
	Dev                    bool   `koanf:"dev"`
	MaxBodyBytes           int    `koanf:"maxBodyBytes"`
	ShutdownTimeoutSeconds int    `koanf:"shutdownTimeoutSeconds"`

	// CacheGatewayErrors lets rules store 502, 503 and 504 responses, which
	// usually come from an unreachable origin rather than the origin itself.
	CacheGatewayErrors bool `koanf:"cacheGatewayErrors"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// LocalConfig sizes the in-process store.
type LocalConfig struct {
	MaxEntries             int `koanf:"maxEntries"`
	TTLSeconds             int `koanf:"ttlSeconds"`
	CleanupIntervalSeconds int `koanf:"cleanupIntervalSeconds"`
}

// SharedConfig selects and tunes the shared store.
type SharedConfig struct {
	Backend            string       `koanf:"backend"`
	Prefix             string       `koanf:"prefix"`
	Coalesce           bool         `koanf:"coalesce"`
	WriteTimeoutMillis int          `koanf:"writeTimeoutMillis"`
	Redis              RedisConfig  `koanf:"redis"`
	SQLite             SQLiteConfig `koanf:"sqlite"`
	Guard              GuardConfig  `koanf:"guard"`
}

// RedisConfig addresses a Redis or Valkey server.
type RedisConfig struct {
	Address  string    `koanf:"address"`
	Username string    `koanf:"username"`
	Password string    `koanf:"password"`
	DB       int       `koanf:"db"`
	TLS      TLSConfig `koanf:"tls"`
}

// TLSConfig enables TLS towards the shared store.
type TLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// GuardConfig bounds shared store calls.
type GuardConfig struct {
	TimeoutMillis      int `koanf:"timeoutMillis"`
	Retries            int `koanf:"retries"`
	RetryBackoffMillis int `koanf:"retryBackoffMillis"`
	MaxFailures        int `koanf:"maxFailures"`
	CooldownSeconds    int `koanf:"cooldownSeconds"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	guard := cache.DefaultGuardConfig()
	return Config{
		Server: ServerConfig{
			ListenAddress:          ":8080",
			MaxBodyBytes:           8 << 20,
			ShutdownTimeoutSeconds: 15,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Local: LocalConfig{
			MaxEntries:             cache.DefaultMaxEntries,
			TTLSeconds:             int(cache.DefaultLocalTTL / time.Second),
			CleanupIntervalSeconds: 60,
		},
		Shared: SharedConfig{
			Backend:            BackendNone,
			Prefix:             cache.DefaultPrefix,
			WriteTimeoutMillis: 1000,
			Redis: RedisConfig{
				Address: "localhost:6379",
			},
			SQLite: SQLiteConfig{
				Path: "respcache.db",
			},
			Guard: GuardConfig{
				TimeoutMillis:      int(guard.Timeout / time.Millisecond),
				Retries:            guard.Retries,
				RetryBackoffMillis: int(guard.RetryBackoff / time.Millisecond),
				MaxFailures:        guard.MaxFailures,
				CooldownSeconds:    int(guard.Cooldown / time.Second),
			},
		},
	}
}

// Validate checks server level settings and compiles every rule.
func (c Config) Validate() error {
	var issues []string

	if !logging.KnownLevel(logging.LogLevel(c.Logging.Level)) {
		issues = append(issues, fmt.Sprintf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		issues = append(issues, fmt.Sprintf("logging.format %q must be json or console", c.Logging.Format))
	}

	if c.Server.MaxBodyBytes < 0 {
		issues = append(issues, "server.maxBodyBytes must not be negative")
	}
	if c.Local.MaxEntries <= 0 {
		issues = append(issues, "local.maxEntries must be positive")
	}
	if c.Local.TTLSeconds <= 0 {
		issues = append(issues, "local.ttlSeconds must be positive")
	}

	switch strings.ToLower(c.Shared.Backend) {
	case "", BackendNone:
	case BackendRedis, BackendValkey:
		if strings.TrimSpace(c.Shared.Redis.Address) == "" {
			issues = append(issues, "shared.redis.address required for backend "+c.Shared.Backend)
		}
	case BackendSQLite:
		if strings.TrimSpace(c.Shared.SQLite.Path) == "" {
			issues = append(issues, "shared.sqlite.path required for backend sqlite")
		}
	default:
		issues = append(issues, fmt.Sprintf("shared.backend %q must be one of none, redis, valkey, sqlite", c.Shared.Backend))
	}

	for i, r := range c.Rules {
		if _, err := r.Compile(); err != nil {
			issues = append(issues, fmt.Sprintf("rules[%d]: %v", i, err))
		}
	}

	if len(issues) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(issues, "; "))
	}
	return nil
}

// SharedBackend returns the normalized backend name.
func (c Config) SharedBackend() string {
	b := strings.ToLower(strings.TrimSpace(c.Shared.Backend))
	if b == "" {
		return BackendNone
	}
	return b
}

// MemoryConfig converts the local settings for cache.NewMemoryStore.
func (c Config) MemoryConfig() cache.MemoryConfig {
	return cache.MemoryConfig{
		MaxEntries:      c.Local.MaxEntries,
		DefaultTTL:      time.Duration(c.Local.TTLSeconds) * time.Second,
		CleanupInterval: time.Duration(c.Local.CleanupIntervalSeconds) * time.Second,
	}
}

// GuardConfig converts the guard settings for cache.NewGuardedStore.
func (c Config) GuardConfig() cache.GuardConfig {
	g := c.Shared.Guard
	return cache.GuardConfig{
		Name:         c.SharedBackend(),
		Timeout:      time.Duration(g.TimeoutMillis) * time.Millisecond,
		Retries:      g.Retries,
		RetryBackoff: time.Duration(g.RetryBackoffMillis) * time.Millisecond,
		MaxFailures:  g.MaxFailures,
		Cooldown:     time.Duration(g.CooldownSeconds) * time.Second,
	}
}

// ValkeyConfig converts the redis settings for cache.NewValkeyStore.
func (c Config) ValkeyConfig() cache.ValkeyConfig {
	r := c.Shared.Redis
	return cache.ValkeyConfig{
		Address:  r.Address,
		Username: r.Username,
		Password: r.Password,
		DB:       r.DB,
		TLS:      cache.ValkeyTLSConfig{Enabled: r.TLS.Enabled, CAFile: r.TLS.CAFile},
	}
}

// SharedWriteTimeout returns the bound for background shared writes.
func (c Config) SharedWriteTimeout() time.Duration {
	return time.Duration(c.Shared.WriteTimeoutMillis) * time.Millisecond
}

// ShutdownTimeout returns how long shutdown may take.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
