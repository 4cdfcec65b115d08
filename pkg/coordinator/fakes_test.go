package coordinator

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/soa-response-cache/pkg/cache"
)

type fakeRequest struct {
	method   string
	path     string
	query    string
	language string
	headers  map[string]string
	ctx      context.Context
}

func newRequest(method, path string, headers map[string]string) *fakeRequest {
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[strings.ToLower(k)] = v
	}
	return &fakeRequest{method: method, path: path, headers: h, ctx: context.Background()}
}

func (r *fakeRequest) Method() string   { return r.method }
func (r *fakeRequest) Path() string     { return r.path }
func (r *fakeRequest) Query() string    { return r.query }
func (r *fakeRequest) Language() string { return r.language }

func (r *fakeRequest) Header(name string) (string, bool) {
	v, ok := r.headers[strings.ToLower(name)]
	return v, ok
}

func (r *fakeRequest) Context() context.Context { return r.ctx }

type sent struct {
	body       []byte
	header     http.Header
	status     int
	compressed bool
}

type fakeResponse struct {
	mu       sync.Mutex
	sent     []sent
	watchers []func(Completion)
}

func (r *fakeResponse) SendCompressed(body []byte, header http.Header, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{body: body, header: header, status: status, compressed: true})
}

func (r *fakeResponse) SendUncompressed(body []byte, header http.Header, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sent{body: body, header: header, status: status})
}

func (r *fakeResponse) OnComplete(fn func(Completion)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.watchers = append(r.watchers, fn)
}

func (r *fakeResponse) complete(c Completion) {
	r.mu.Lock()
	watchers := append([]func(Completion){}, r.watchers...)
	r.mu.Unlock()
	for _, fn := range watchers {
		fn(c)
	}
}

func (r *fakeResponse) watcherCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watchers)
}

// proceedCounter counts downstream invocations.
type proceedCounter struct {
	n atomic.Int32
}

func (p *proceedCounter) fn() func() {
	return func() { p.n.Add(1) }
}

func (p *proceedCounter) count() int {
	return int(p.n.Load())
}

// fakeShared is an in-memory SharedStore with optional delay and failure.
type fakeShared struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry
	ttls    map[string]time.Duration
	delay   time.Duration
	getErr  error
	setErr  error
	gets    atomic.Int32
	sets    atomic.Int32
}

func newFakeShared() *fakeShared {
	return &fakeShared{
		entries: make(map[string]*cache.Entry),
		ttls:    make(map[string]time.Duration),
	}
}

func (s *fakeShared) Get(ctx context.Context, key string) (*cache.Entry, error) {
	s.gets.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return e.Clone(), nil
}

func (s *fakeShared) Set(ctx context.Context, key string, entry *cache.Entry, ttl time.Duration) error {
	s.sets.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.setErr != nil {
		return s.setErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry.Clone()
	s.ttls[key] = ttl
	return nil
}

func (s *fakeShared) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
