package cache

import (
	"context"
	"errors"
	"time"
)

// DefaultPrefix namespaces keys written to shared stores.
const DefaultPrefix = "respcache:"

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrBackendUnavailable indicates the shared store failed, timed out or is
	// short-circuited. Callers treat it as a miss.
	ErrBackendUnavailable = errors.New("shared cache unavailable")
)

// LocalStore is the process-local tier. Implementations must be safe for
// concurrent use and must never fail.
type LocalStore interface {
	Has(key string) bool
	Get(key string) (*Entry, bool)
	// Set stores entry for ttl. A ttl <= 0 means the store's default TTL.
	Set(key string, entry *Entry, ttl time.Duration)
}

// SharedStore is the networked tier shared across processes.
// Get returns ErrCacheMiss when the key is not present.
type SharedStore interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
}
