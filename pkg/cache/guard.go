package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// GuardConfig bounds how long and how often a shared store is tried.
type GuardConfig struct {
	// Name labels the breaker in logs and metrics
	Name string

	// Timeout applies to each attempt
	Timeout time.Duration

	// Retries is the number of extra attempts after a failed one
	Retries int

	// RetryBackoff is the pause between attempts
	RetryBackoff time.Duration

	// MaxFailures consecutive failures open the breaker
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing again
	Cooldown time.Duration
}

// DefaultGuardConfig returns the default guard settings.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Name:         "shared",
		Timeout:      250 * time.Millisecond,
		Retries:      1,
		RetryBackoff: 25 * time.Millisecond,
		MaxFailures:  5,
		Cooldown:     30 * time.Second,
	}
}

// GuardedStore wraps a SharedStore with a per-attempt timeout, bounded retry
// and a circuit breaker. Cache misses pass through untouched; they are not
// retried and do not count as failures.
type GuardedStore struct {
	inner   SharedStore
	cfg     GuardConfig
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewGuardedStore wraps inner. Zero fields in cfg take their defaults.
func NewGuardedStore(inner SharedStore, cfg GuardConfig, logger zerolog.Logger) *GuardedStore {
	if inner == nil {
		panic("shared store cannot be nil")
	}

	def := DefaultGuardConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}

	g := &GuardedStore{
		inner:  inner,
		cfg:    cfg,
		logger: logger.With().Str("component", "shared-cache").Str("breaker", cfg.Name).Logger(),
	}

	maxFailures := uint32(cfg.MaxFailures)
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			BreakerState.WithLabelValues(name).Set(float64(to))
			g.logger.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("shared cache breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCacheMiss)
		},
	})
	BreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))

	return g
}

// Get looks up key in the wrapped store.
// Returns ErrCacheMiss on a miss and an ErrBackendUnavailable wrap on any failure.
func (g *GuardedStore) Get(ctx context.Context, key string) (*Entry, error) {
	return g.do(ctx, "get", func(attemptCtx context.Context) (*Entry, error) {
		return g.inner.Get(attemptCtx, key)
	})
}

// Set writes entry to the wrapped store.
// Any failure is returned as an ErrBackendUnavailable wrap.
func (g *GuardedStore) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	_, err := g.do(ctx, "set", func(attemptCtx context.Context) (*Entry, error) {
		return nil, g.inner.Set(attemptCtx, key, entry, ttl)
	})
	return err
}

// State reports the breaker state.
func (g *GuardedStore) State() gobreaker.State {
	return g.breaker.State()
}

type attemptFunc func(context.Context) (*Entry, error)

type attemptResult struct {
	entry *Entry
	err   error
}

func (g *GuardedStore) do(ctx context.Context, op string, fn attemptFunc) (*Entry, error) {
	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.retry(ctx, fn)
	})
	if err == nil {
		entry, _ := res.(*Entry)
		return entry, nil
	}
	if errors.Is(err, ErrCacheMiss) {
		return nil, err
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		CacheErrors.WithLabelValues("circuit_open").Inc()
		return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		CacheErrors.WithLabelValues("timeout").Inc()
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, op, err)
}

func (g *GuardedStore) retry(ctx context.Context, fn attemptFunc) (*Entry, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(g.cfg.RetryBackoff), uint64(g.cfg.Retries)),
		ctx,
	)

	var entry *Entry
	err := backoff.Retry(func() error {
		e, err := g.attempt(ctx, fn)
		if err == nil {
			entry = e
			return nil
		}
		if errors.Is(err, ErrCacheMiss) || errors.Is(err, ErrInvalidEntry) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// attempt runs fn with the per-attempt timeout. The select returns as soon as
// the deadline passes even if the client library ignores the context.
func (g *GuardedStore) attempt(ctx context.Context, fn attemptFunc) (*Entry, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		entry, err := fn(attemptCtx)
		done <- attemptResult{entry: entry, err: err}
	}()

	select {
	case res := <-done:
		return res.entry, res.err
	case <-attemptCtx.Done():
		return nil, attemptCtx.Err()
	}
}

var _ SharedStore = (*GuardedStore)(nil)
