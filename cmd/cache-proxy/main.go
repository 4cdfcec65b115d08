// Command cache-proxy is a caching reverse proxy in front of a single origin.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/soa-response-cache/pkg/cache"
	"github.com/Sternrassler/soa-response-cache/pkg/config"
	"github.com/Sternrassler/soa-response-cache/pkg/coordinator"
	"github.com/Sternrassler/soa-response-cache/pkg/httpcache"
	"github.com/Sternrassler/soa-response-cache/pkg/logging"
	"github.com/Sternrassler/soa-response-cache/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "cache-proxy: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cache-proxy", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the YAML configuration file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.NewLoader(config.DefaultEnvPrefix, *configPath).Load(ctx)
	if err != nil {
		return err
	}

	logger := logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.Logging.Level),
		Format:  logging.Format(cfg.Logging.Format),
		Output:  os.Stderr,
		Service: "cache-proxy",
	})

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return err
	}
	defer app.close()

	server := &http.Server{
		Addr:              cfg.Server.ListenAddress,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Server.ListenAddress).
			Str("origin", cfg.Server.Origin).
			Str("shared", cfg.SharedBackend()).
			Int("rules", app.coord.Rules().Len()).
			Bool("dev", cfg.Server.Dev).
			Msg("Starting cache proxy")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("HTTP shutdown incomplete")
	}
	if err := app.coord.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Pending shared writes dropped")
	}
	return nil
}

// app holds everything the proxy needs while serving.
type app struct {
	coord   *coordinator.Coordinator
	handler http.Handler
	closers []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	if cfg.Server.Origin == "" {
		return nil, errors.New("server.origin is required")
	}
	origin, err := url.Parse(cfg.Server.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("server.origin %q is not an absolute URL", cfg.Server.Origin)
	}

	a := &app{}

	local := cache.NewMemoryStore(cfg.MemoryConfig())
	a.closers = append(a.closers, local.Close)

	shared, closeShared, err := newSharedStore(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	if closeShared != nil {
		a.closers = append(a.closers, closeShared)
	}

	ccfg := coordinator.DefaultConfig(local, nil)
	if shared != nil {
		ccfg.Shared = cache.NewGuardedStore(shared, cfg.GuardConfig(), logger)
	}
	ccfg.Logger = &logger
	ccfg.StripHeaders = cfg.StripHeaders
	ccfg.Disabled = cfg.Server.Dev
	ccfg.CoalesceSharedLookups = cfg.Shared.Coalesce
	ccfg.SharedWriteTimeout = cfg.SharedWriteTimeout()

	coord, err := coordinator.New(ccfg)
	if err != nil {
		a.close()
		return nil, err
	}

	defs, err := cfg.CompileRules()
	if err != nil {
		a.close()
		return nil, err
	}
	if err := coord.RegisterAll(defs); err != nil {
		a.close()
		return nil, err
	}

	a.coord = coord
	a.handler = newRouter(coord, httputil.NewSingleHostReverseProxy(origin), cfg, logger)
	return a, nil
}

// newSharedStore builds the configured shared backend. It returns a nil
// store for backend "none".
func newSharedStore(ctx context.Context, cfg config.Config) (cache.SharedStore, func() error, error) {
	prefix := cfg.Shared.Prefix

	switch cfg.SharedBackend() {
	case config.BackendNone:
		return nil, nil, nil

	case config.BackendRedis:
		r := cfg.Shared.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     r.Address,
			Username: r.Username,
			Password: r.Password,
			DB:       r.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %w", r.Address, err)
		}
		return cache.NewRedisStore(client, prefix), client.Close, nil

	case config.BackendValkey:
		store, err := cache.NewValkeyStore(cfg.ValkeyConfig(), prefix)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.BackendSQLite:
		store, err := cache.NewSQLiteStore(ctx, cfg.Shared.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown shared backend %q", cfg.Shared.Backend)
	}
}

func newRouter(coord *coordinator.Coordinator, upstream http.Handler, cfg config.Config, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.AccessLog(logger.With().Str("component", "proxy").Logger()))

	r.Get("/health", healthHandler)
	r.Handle("/metrics", metrics.Handler())

	mw := httpcache.MiddlewareWithConfig(coord, httpcache.Config{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	r.Handle("/*", mw(upstream))
	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
