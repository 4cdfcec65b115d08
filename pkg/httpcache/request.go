package httpcache

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

// request adapts *http.Request to coordinator.Request.
type request struct {
	r *http.Request
}

func (q request) Method() string { return q.r.Method }

func (q request) Path() string { return q.r.URL.Path }

func (q request) Query() string { return q.r.URL.RawQuery }

// Language returns the most preferred tag of Accept-Language, or "".
func (q request) Language() string {
	return preferredLanguage(q.r.Header.Get("Accept-Language"))
}

// Header reports the named request header. net/http moves Host out of the
// header map, so it is looked up separately.
func (q request) Header(name string) (string, bool) {
	if strings.EqualFold(name, "host") {
		return q.r.Host, q.r.Host != ""
	}
	values := q.r.Header.Values(name)
	if len(values) == 0 {
		return "", false
	}
	return strings.Join(values, ", "), true
}

func (q request) Context() context.Context { return q.r.Context() }

func preferredLanguage(header string) string {
	if header == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return ""
	}
	if tags[0] == language.Und {
		return ""
	}
	return tags[0].String()
}
