package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryConfig controls capacity and expiry of the memory store.
type MemoryConfig struct {
	// MaxEntries bounds the store; the least recently used entry is evicted
	// first. Zero or less means DefaultMaxEntries.
	MaxEntries int

	// DefaultTTL applies when Set is called without a TTL.
	DefaultTTL time.Duration

	// CleanupInterval is how often expired entries are swept. Zero disables
	// the sweep; expired entries are still dropped lazily on access.
	CleanupInterval time.Duration

	// Now is the clock used for expiry (default: time.Now)
	Now func() time.Time
}

const (
	// DefaultMaxEntries is the default memory store capacity.
	DefaultMaxEntries = 10000

	// DefaultLocalTTL is the default memory store TTL.
	DefaultLocalTTL = 300 * time.Second
)

// DefaultMemoryConfig returns the default memory store configuration.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxEntries:      DefaultMaxEntries,
		DefaultTTL:      DefaultLocalTTL,
		CleanupInterval: time.Minute,
	}
}

// MemoryStore is a concurrency-safe LRU store with per-entry TTL.
// A map gives O(1) lookup; the list keeps recency order (front = most recent).
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*list.Element
	lru   *list.List

	maxEntries int
	defaultTTL time.Duration
	now        func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

type memoryItem struct {
	key       string
	entry     *Entry
	expiresAt time.Time
}

// NewMemoryStore creates a memory store and starts the sweep loop if enabled.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultLocalTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &MemoryStore{
		items:      make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: cfg.MaxEntries,
		defaultTTL: cfg.DefaultTTL,
		now:        cfg.Now,
		cancel:     cancel,
	}

	if cfg.CleanupInterval > 0 {
		s.wg.Add(1)
		go s.sweepLoop(ctx, cfg.CleanupInterval)
	}
	return s
}

// Has reports whether key holds a live entry. It does not touch recency.
func (s *MemoryStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return false
	}
	if s.expiredLocked(el, s.now()) {
		s.removeLocked(el)
		return false
	}
	return true
}

// Get returns a copy of the live entry stored under key.
func (s *MemoryStore) Get(key string) (*Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		return nil, false
	}
	if s.expiredLocked(el, s.now()) {
		s.removeLocked(el)
		return nil, false
	}

	s.lru.MoveToFront(el)
	return el.Value.(*memoryItem).entry.Clone(), true
}

// Set stores a copy of entry. A ttl <= 0 means the configured default TTL.
func (s *MemoryStore) Set(key string, entry *Entry, ttl time.Duration) {
	if entry == nil {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	now := s.now()
	item := &memoryItem{key: key, entry: entry.Clone(), expiresAt: now.Add(ttl)}

	if el, ok := s.items[key]; ok {
		el.Value = item
		s.lru.MoveToFront(el)
	} else {
		s.items[key] = s.lru.PushFront(item)
	}

	s.evictLocked()
	LocalEntries.Set(float64(len(s.items)))
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Close stops the sweep loop. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) sweepLoop(ctx context.Context, every time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			s.sweepLocked(s.now())
			LocalEntries.Set(float64(len(s.items)))
			s.mu.Unlock()
		}
	}
}

func (s *MemoryStore) evictLocked() {
	if len(s.items) <= s.maxEntries {
		return
	}
	// Dead entries go first so live ones keep their LRU position.
	s.sweepLocked(s.now())
	for len(s.items) > s.maxEntries {
		el := s.lru.Back()
		if el == nil {
			return
		}
		s.removeLocked(el)
	}
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	for _, el := range s.items {
		if s.expiredLocked(el, now) {
			s.removeLocked(el)
		}
	}
}

func (s *MemoryStore) expiredLocked(el *list.Element, now time.Time) bool {
	return !el.Value.(*memoryItem).expiresAt.After(now)
}

func (s *MemoryStore) removeLocked(el *list.Element) {
	item := el.Value.(*memoryItem)
	delete(s.items, item.key)
	s.lru.Remove(el)
}

var _ LocalStore = (*MemoryStore)(nil)
