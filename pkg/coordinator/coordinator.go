package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/soa-response-cache/pkg/cache"
	"github.com/Sternrassler/soa-response-cache/pkg/logging"
	"github.com/Sternrassler/soa-response-cache/pkg/rules"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Config holds the coordinator configuration.
type Config struct {
	// Local is the process-local store (required)
	Local cache.LocalStore

	// Shared is the optional networked store. Wrap it in cache.GuardedStore
	// so a slow backend cannot stall requests.
	Shared cache.SharedStore

	// Logger receives cache decisions and backend faults (default: global logger)
	Logger *zerolog.Logger

	// StripHeaders lists response headers dropped before storing, in addition
	// to cache.IdentityHeaders
	StripHeaders []string

	// Disabled makes every request pass through untouched
	Disabled bool

	// CoalesceSharedLookups merges concurrent shared lookups of the same key
	CoalesceSharedLookups bool

	// SharedWriteTimeout bounds each background shared write
	SharedWriteTimeout time.Duration
}

// DefaultConfig returns a configuration with the given stores and defaults
// for everything else.
func DefaultConfig(local cache.LocalStore, shared cache.SharedStore) Config {
	return Config{
		Local:              local,
		Shared:             shared,
		SharedWriteTimeout: time.Second,
	}
}

// Coordinator runs the lookup and capture state machine.
type Coordinator struct {
	table  *rules.Table
	local  cache.LocalStore
	shared cache.SharedStore
	config Config
	logger zerolog.Logger
	flight singleflight.Group

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// New creates a coordinator with an empty rule table.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Local == nil {
		return nil, ErrLocalStoreRequired
	}
	if cfg.SharedWriteTimeout <= 0 {
		cfg.SharedWriteTimeout = time.Second
	}

	logger := logging.NewLogger("coordinator")
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "coordinator").Logger()
	}

	return &Coordinator{
		table:  rules.NewTable(),
		local:  cfg.Local,
		shared: cfg.Shared,
		config: cfg,
		logger: logger,
	}, nil
}

// Register adds a caching rule. See rules.Table.Register.
func (c *Coordinator) Register(method string, matcher rules.PathMatcher, opts rules.Options) error {
	if err := c.table.Register(method, matcher, opts); err != nil {
		return err
	}
	c.logger.Debug().
		Str("method", rules.NormalizeMethod(method)).
		Str("matcher", matcher.String()).
		Msg("Registered cache rule")
	return nil
}

// RegisterAll registers defs in order and stops at the first failure.
func (c *Coordinator) RegisterAll(defs []rules.Definition) error {
	for _, d := range defs {
		if err := c.Register(d.Method, d.Matcher, d.Options); err != nil {
			return err
		}
	}
	return nil
}

// Rules returns the rule table.
func (c *Coordinator) Rules() *rules.Table {
	return c.table
}

// OnRequest handles one request. It either serves a stored response through
// resp or calls proceed exactly once.
func (c *Coordinator) OnRequest(req Request, resp Response, proceed func()) Outcome {
	outcome := c.handle(req, resp, proceed)
	requestsTotal.WithLabelValues(outcome.String()).Inc()
	return outcome
}

func (c *Coordinator) handle(req Request, resp Response, proceed func()) Outcome {
	if c.config.Disabled {
		proceed()
		return OutcomePassedThrough
	}

	rule, ok := c.table.Match(req.Method(), req.Path())
	if !ok {
		proceed()
		return OutcomePassedThrough
	}

	admission, err := rule.Admit(req)
	if err != nil {
		c.logger.Error().Err(err).Str("rule", rule.String()).Msg("Rule admission failed")
		proceed()
		return OutcomePassedThrough
	}
	if !admission.Eligible {
		c.logger.Debug().
			Str("rule", rule.String()).
			Str("rejected_by", admission.RejectedBy).
			Msg("Request not cacheable")
		proceed()
		return OutcomePassedThrough
	}

	k := cache.Key{
		Method:   req.Method(),
		Path:     req.Path(),
		Query:    req.Query(),
		Material: admission.Material,
	}
	if rule.UsesLanguage() {
		k.Language = req.Language()
	}
	key := k.String()

	if entry, ok := c.local.Get(key); ok {
		cache.CacheHits.WithLabelValues("local").Inc()
		c.logger.Debug().Str("key", key).Str("rule", rule.String()).Msg("Local cache hit")
		serve(resp, entry)
		return OutcomeServedLocal
	}
	cache.CacheMisses.WithLabelValues("local").Inc()

	if c.shared != nil {
		if entry, ok := c.lookupShared(req.Context(), key); ok {
			// Promoted entries take the local store's default TTL.
			c.local.Set(key, entry, 0)
			cache.CacheStores.WithLabelValues("local").Inc()
			c.logger.Debug().Str("key", key).Str("rule", rule.String()).Msg("Shared cache hit")
			serve(resp, entry)
			return OutcomeServedShared
		}
	}

	c.watch(req.Context(), resp, rule, key)
	proceed()
	return OutcomePassedThrough
}

// lookupShared returns the shared entry for key. Any backend failure is
// logged and reported as a miss.
func (c *Coordinator) lookupShared(ctx context.Context, key string) (*cache.Entry, bool) {
	start := time.Now()
	defer func() {
		sharedLookupDuration.Observe(time.Since(start).Seconds())
	}()

	var entry *cache.Entry
	var err error
	if c.config.CoalesceSharedLookups {
		var v interface{}
		// The lookup outlives any single caller; the shared store bounds it.
		flightCtx := context.WithoutCancel(ctx)
		v, err, _ = c.flight.Do(key, func() (interface{}, error) {
			return c.shared.Get(flightCtx, key)
		})
		if err == nil {
			// Coalesced callers must not share one entry.
			entry = v.(*cache.Entry).Clone()
		}
	} else {
		entry, err = c.shared.Get(ctx, key)
	}

	switch {
	case err == nil && entry != nil:
		cache.CacheHits.WithLabelValues("shared").Inc()
		return entry, true
	case err == nil || errors.Is(err, cache.ErrCacheMiss):
		cache.CacheMisses.WithLabelValues("shared").Inc()
	default:
		cache.CacheMisses.WithLabelValues("shared").Inc()
		c.logger.Warn().Err(err).Str("key", key).Msg("Shared cache lookup failed, treating as miss")
	}
	return nil, false
}

// watch registers the one-shot completion callback for a passed-through request.
func (c *Coordinator) watch(ctx context.Context, resp Response, rule *rules.Rule, key string) {
	var once sync.Once
	resp.OnComplete(func(done Completion) {
		fired := false
		once.Do(func() {
			fired = true
			if ctx.Err() != nil {
				captureSkipsTotal.WithLabelValues(skipCancelled).Inc()
				return
			}
			c.capture(rule, key, done)
		})
		if !fired {
			captureSkipsTotal.WithLabelValues(skipDuplicate).Inc()
		}
	})
}

func (c *Coordinator) capture(rule *rules.Rule, key string, done Completion) {
	if rule.Excludes(done.Status) {
		captureSkipsTotal.WithLabelValues(skipStatus).Inc()
		c.logger.Debug().Str("key", key).Int("status", done.Status).Msg("Status excluded from caching")
		return
	}

	entry := cache.NewEntry(done.Status, done.Header, done.Body, done.Compressed, c.config.StripHeaders...)
	ttl := rule.TTL()

	c.local.Set(key, entry, ttl)
	cache.CacheStores.WithLabelValues("local").Inc()
	c.logger.Debug().
		Str("key", key).
		Str("rule", rule.String()).
		Int("status", done.Status).
		Int("bytes", entry.Size()).
		Dur("ttl", ttl).
		Msg("Cached response")

	if c.shared == nil {
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), c.config.SharedWriteTimeout)
		defer cancel()

		if err := c.shared.Set(ctx, key, entry, ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Shared cache write failed")
			return
		}
		cache.CacheStores.WithLabelValues("shared").Inc()
	}()
}

// serve replays entry through resp with its stored headers and status.
func serve(resp Response, entry *cache.Entry) {
	body := make([]byte, len(entry.Body))
	copy(body, entry.Body)

	if entry.Compressed {
		resp.SendCompressed(body, entry.Header.Clone(), entry.StatusCode)
		return
	}
	resp.SendUncompressed(body, entry.Header.Clone(), entry.StatusCode)
}

// Close stops scheduling shared writes and waits for pending ones until ctx
// is done.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
