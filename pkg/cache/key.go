package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Key identifies a cacheable response variant.
type Key struct {
	// Method is the request method; it is trimmed and lowercased
	Method string

	// Language is the request language tag, empty unless the rule keys on it
	Language string

	// Path is the request path; an empty path is treated as "/"
	Path string

	// Query is the raw query string, used verbatim
	Query string

	// Material maps header names to the values selected by the rule
	Material map[string]string
}

// String derives the cache key: the lowercase hex SHA-256 of the method,
// language, path, query and the key material sorted by header name.
//
// Every component is length-prefixed before hashing, so distinct inputs never
// share a pre-image (e.g. values "a","bc" vs "ab","c").
func (k Key) String() string {
	h := sha256.New()

	writeField(h, strings.ToLower(strings.TrimSpace(k.Method)))
	writeField(h, k.Language)

	path := k.Path
	if path == "" {
		path = "/"
	}
	writeField(h, path)
	writeField(h, k.Query)

	names := make([]string, 0, len(k.Material))
	for name := range k.Material {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		writeField(h, strings.ToLower(name))
		writeField(h, k.Material[name])
	}

	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, s string) {
	io.WriteString(w, strconv.Itoa(len(s)))
	io.WriteString(w, ":")
	io.WriteString(w, s)
}
