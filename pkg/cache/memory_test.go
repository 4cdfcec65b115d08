package cache

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"
)

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

func testEntry(body string) *Entry {
	return &Entry{
		Body:       []byte(body),
		Header:     http.Header{"Content-Type": {"text/plain"}},
		StatusCode: http.StatusOK,
	}
}

func newTestMemoryStore(t *testing.T, maxEntries int, clock *fakeClock) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(MemoryConfig{
		MaxEntries: maxEntries,
		DefaultTTL: time.Minute,
		Now:        clock.Now,
	})
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMemoryStore_SetGet(t *testing.T) {
	s := newTestMemoryStore(t, 10, newFakeClock())

	if _, ok := s.Get("k"); ok {
		t.Fatal("Get() on empty store should miss")
	}

	s.Set("k", testEntry("x"), 0)
	if !s.Has("k") {
		t.Fatal("Has() = false after Set")
	}

	got, ok := s.Get("k")
	if !ok {
		t.Fatal("Get() = miss after Set")
	}
	if string(got.Body) != "x" || got.StatusCode != http.StatusOK {
		t.Errorf("Get() = %+v", got)
	}
}

func TestMemoryStore_IndependentCopies(t *testing.T) {
	s := newTestMemoryStore(t, 10, newFakeClock())

	in := testEntry("abc")
	s.Set("k", in, 0)
	in.Body[0] = 'z'

	out, _ := s.Get("k")
	out.Body[1] = 'z'

	again, _ := s.Get("k")
	if string(again.Body) != "abc" {
		t.Errorf("stored body = %q, want abc", again.Body)
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		advance time.Duration
		wantHit bool
	}{
		{name: "within rule ttl", ttl: 60 * time.Second, advance: 59 * time.Second, wantHit: true},
		{name: "past rule ttl", ttl: 60 * time.Second, advance: 61 * time.Second, wantHit: false},
		{name: "default ttl applies", ttl: 0, advance: 30 * time.Second, wantHit: true},
		{name: "default ttl expires", ttl: 0, advance: 2 * time.Minute, wantHit: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			s := newTestMemoryStore(t, 10, clock)

			s.Set("k", testEntry("v"), tt.ttl)
			clock.Advance(tt.advance)

			if got := s.Has("k"); got != tt.wantHit {
				t.Errorf("Has() = %v, want %v", got, tt.wantHit)
			}
			if _, got := s.Get("k"); got != tt.wantHit {
				t.Errorf("Get() hit = %v, want %v", got, tt.wantHit)
			}
		})
	}
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	s := newTestMemoryStore(t, 2, newFakeClock())

	s.Set("a", testEntry("a"), 0)
	s.Set("b", testEntry("b"), 0)

	// Touch "a" so "b" becomes least recently used.
	s.Get("a")
	s.Set("c", testEntry("c"), 0)

	if !s.Has("a") {
		t.Error("recently used entry evicted")
	}
	if s.Has("b") {
		t.Error("least recently used entry survived")
	}
	if !s.Has("c") {
		t.Error("newest entry missing")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestMemoryStore_EvictsExpiredFirst(t *testing.T) {
	clock := newFakeClock()
	s := newTestMemoryStore(t, 2, clock)

	s.Set("short", testEntry("1"), time.Second)
	s.Set("long", testEntry("2"), time.Hour)
	s.Get("short")

	clock.Advance(2 * time.Second)
	s.Set("new", testEntry("3"), time.Hour)

	if !s.Has("long") || !s.Has("new") {
		t.Error("live entries evicted while an expired one was present")
	}
}

func TestMemoryStore_Overwrite(t *testing.T) {
	s := newTestMemoryStore(t, 10, newFakeClock())

	s.Set("k", testEntry("old"), 0)
	s.Set("k", testEntry("new"), 0)

	got, _ := s.Get("k")
	if string(got.Body) != "new" {
		t.Errorf("Body = %q, want new", got.Body)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestMemoryStore_NilEntryIgnored(t *testing.T) {
	s := newTestMemoryStore(t, 10, newFakeClock())
	s.Set("k", nil, 0)
	if s.Has("k") {
		t.Error("nil entry stored")
	}
}

func TestMemoryStore_SweepLoop(t *testing.T) {
	s := NewMemoryStore(MemoryConfig{
		MaxEntries:      10,
		DefaultTTL:      time.Millisecond,
		CleanupInterval: 5 * time.Millisecond,
	})
	defer s.Close()

	s.Set("k", testEntry("v"), 0)

	deadline := time.Now().Add(time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("sweep loop did not remove expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryStore_CloseIdempotent(t *testing.T) {
	s := NewMemoryStore(DefaultMemoryConfig())
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	s.Set("k", testEntry("v"), 0)
	if s.Has("k") {
		t.Error("Set after Close stored an entry")
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := newTestMemoryStore(t, 50, newFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				key := fmt.Sprintf("k%d", (i*j)%80)
				s.Set(key, testEntry(key), 0)
				s.Get(key)
				s.Has(key)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() > 50 {
		t.Errorf("Len() = %d exceeds capacity", s.Len())
	}
}
