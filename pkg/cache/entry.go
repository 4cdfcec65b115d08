package cache

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Entry represents a captured response.
type Entry struct {
	// Body is the response body exactly as it was sent
	Body []byte `json:"body"`

	// Header holds the response headers minus the identity headers
	Header http.Header `json:"headers"`

	// Compressed reports whether Body is already content-encoded
	Compressed bool `json:"compressed"`

	// StatusCode is the HTTP status code of the captured response
	StatusCode int `json:"status_code"`

	// StoredAt is when the response was captured
	StoredAt time.Time `json:"stored_at"`
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Body != nil {
		out.Body = make([]byte, len(e.Body))
		copy(out.Body, e.Body)
	}
	out.Header = e.Header.Clone()
	return &out
}

// Size approximates the memory held by the entry.
func (e *Entry) Size() int {
	n := len(e.Body)
	for name, values := range e.Header {
		n += len(name)
		for _, v := range values {
			n += len(v)
		}
	}
	return n
}

func encodeEntry(e *Entry) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("cache entry cannot be nil")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.StatusCode == 0 {
		return nil, fmt.Errorf("%w: missing status code", ErrInvalidEntry)
	}
	return &entry, nil
}
