package cache

import (
	"net/http"
	"strings"
	"time"
)

// IdentityHeaders describe one transmission rather than the resource and are
// never stored.
var IdentityHeaders = []string{"content-length", "date", "server"}

// StripHeaders returns a copy of h without the identity headers and without
// any of the extra header names. Names are compared case-insensitively.
func StripHeaders(h http.Header, extra ...string) http.Header {
	drop := make(map[string]struct{}, len(IdentityHeaders)+len(extra))
	for _, name := range IdentityHeaders {
		drop[name] = struct{}{}
	}
	for _, name := range extra {
		drop[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}

	out := make(http.Header, len(h))
	for name, values := range h {
		if _, ok := drop[strings.ToLower(name)]; ok {
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}

// NewEntry builds an entry from a completed response. The header map is
// copied and stripped; body is copied.
func NewEntry(status int, header http.Header, body []byte, compressed bool, extraStrip ...string) *Entry {
	data := make([]byte, len(body))
	copy(data, body)
	return &Entry{
		Body:       data,
		Header:     StripHeaders(header, extraStrip...),
		Compressed: compressed,
		StatusCode: status,
		StoredAt:   time.Now().UTC(),
	}
}
