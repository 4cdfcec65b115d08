// Package testutil provides a scriptable origin server for cache tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock origin path.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOrigin is a configurable upstream server that counts requests per path.
type MockOrigin struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string]MockResponse
	counts    map[string]int
	total     int
	lastHdr   http.Header
}

// NewMockOrigin starts a mock origin. Unknown paths answer 404.
func NewMockOrigin() *MockOrigin {
	m := &MockOrigin{
		responses: make(map[string]MockResponse),
		counts:    make(map[string]int),
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

func (m *MockOrigin) serve(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.total++
	m.counts[r.URL.Path]++
	m.lastHdr = r.Header.Clone()
	resp, ok := m.responses[r.URL.Path]
	m.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// URL returns the origin base URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Close shuts down the origin.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// SetResponse configures the response for path.
func (m *MockOrigin) SetResponse(path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = resp
}

// Hits returns how many requests reached path.
func (m *MockOrigin) Hits(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[path]
}

// RequestCount returns the total number of requests served.
func (m *MockOrigin) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockOrigin) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHdr.Clone()
}

