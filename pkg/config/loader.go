package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix prefixes environment overrides, e.g.
// RESPCACHE_SHARED__REDIS__ADDRESS.
const DefaultEnvPrefix = "RESPCACHE"

// Loader reads the configuration with env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader creates a loader. Empty file paths are ignored.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// Load merges defaults, files and environment and validates the result.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultsMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		if err := k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// canonicalKeys restores the camelCase of keys that env variables lowercase.
var canonicalKeys = map[string]string{
	"server.listenaddress":            "server.listenAddress",
	"server.maxbodybytes":             "server.maxBodyBytes",
	"server.shutdowntimeoutseconds":   "server.shutdownTimeoutSeconds",
	"server.cachegatewayerrors":       "server.cacheGatewayErrors",
	"local.maxentries":                "local.maxEntries",
	"local.ttlseconds":                "local.ttlSeconds",
	"local.cleanupintervalseconds":    "local.cleanupIntervalSeconds",
	"shared.writetimeoutmillis":       "shared.writeTimeoutMillis",
	"shared.redis.tls.cafile":         "shared.redis.tls.caFile",
	"shared.guard.timeoutmillis":      "shared.guard.timeoutMillis",
	"shared.guard.retrybackoffmillis": "shared.guard.retryBackoffMillis",
	"shared.guard.maxfailures":        "shared.guard.maxFailures",
	"shared.guard.cooldownseconds":    "shared.guard.cooldownSeconds",
	"stripheaders":                    "stripHeaders",
}

// envKey maps RESPCACHE_SHARED__REDIS__ADDRESS to shared.redis.address.
func (l *Loader) envKey(s string) string {
	key := strings.TrimPrefix(s, l.envPrefix+"_")
	key = strings.ReplaceAll(key, "__", ".")
	key = strings.ToLower(key)
	if mapped, ok := canonicalKeys[key]; ok {
		return mapped
	}
	return strings.ReplaceAll(key, "_", "")
}

// defaultsMap converts DefaultConfig into a map for the confmap provider.
func defaultsMap(cfg Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"listenAddress":          cfg.Server.ListenAddress,
			"origin":                 cfg.Server.Origin,
			"dev":                    cfg.Server.Dev,
			"maxBodyBytes":           cfg.Server.MaxBodyBytes,
			"shutdownTimeoutSeconds": cfg.Server.ShutdownTimeoutSeconds,
			"cacheGatewayErrors":     cfg.Server.CacheGatewayErrors,
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"format": cfg.Logging.Format,
		},
		"local": map[string]any{
			"maxEntries":             cfg.Local.MaxEntries,
			"ttlSeconds":             cfg.Local.TTLSeconds,
			"cleanupIntervalSeconds": cfg.Local.CleanupIntervalSeconds,
		},
		"shared": map[string]any{
			"backend":            cfg.Shared.Backend,
			"prefix":             cfg.Shared.Prefix,
			"coalesce":           cfg.Shared.Coalesce,
			"writeTimeoutMillis": cfg.Shared.WriteTimeoutMillis,
			"redis": map[string]any{
				"address":  cfg.Shared.Redis.Address,
				"username": cfg.Shared.Redis.Username,
				"password": cfg.Shared.Redis.Password,
				"db":       cfg.Shared.Redis.DB,
				"tls": map[string]any{
					"enabled": cfg.Shared.Redis.TLS.Enabled,
					"caFile":  cfg.Shared.Redis.TLS.CAFile,
				},
			},
			"sqlite": map[string]any{
				"path": cfg.Shared.SQLite.Path,
			},
			"guard": map[string]any{
				"timeoutMillis":      cfg.Shared.Guard.TimeoutMillis,
				"retries":            cfg.Shared.Guard.Retries,
				"retryBackoffMillis": cfg.Shared.Guard.RetryBackoffMillis,
				"maxFailures":        cfg.Shared.Guard.MaxFailures,
				"cooldownSeconds":    cfg.Shared.Guard.CooldownSeconds,
			},
		},
	}
}
