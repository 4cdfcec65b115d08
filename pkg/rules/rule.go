package rules

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultTTL is the lifetime of a captured response when a rule sets none.
const DefaultTTL = 300 * time.Second

type matcherKind int

const (
	matcherInvalid matcherKind = iota
	matcherPath
	matcherPattern
)

// PathMatcher selects the request paths a rule applies to. It is either a
// literal path (see Path) or a pattern (see Pattern). The zero value is invalid.
type PathMatcher struct {
	kind    matcherKind
	path    string
	pattern *regexp.Regexp
}

// Path matches exactly one path, compared case-insensitively.
func Path(p string) PathMatcher {
	return PathMatcher{kind: matcherPath, path: strings.ToLower(p)}
}

// Pattern matches every path re matches. A nil re yields an invalid matcher.
func Pattern(re *regexp.Regexp) PathMatcher {
	if re == nil {
		return PathMatcher{}
	}
	return PathMatcher{kind: matcherPattern, pattern: re}
}

// IsPattern reports whether m is a pattern matcher.
func (m PathMatcher) IsPattern() bool { return m.kind == matcherPattern }

func (m PathMatcher) String() string {
	switch m.kind {
	case matcherPath:
		return m.path
	case matcherPattern:
		return "~" + m.pattern.String()
	default:
		return "<invalid>"
	}
}

// Options are the caching policy attached to a registered matcher.
type Options struct {
	// Headers are evaluated in order. A nil slice means the rule never caches.
	Headers []HeaderRule

	// TTL is the lifetime of captured responses. Zero means DefaultTTL.
	TTL time.Duration

	// Status lists response status codes that are never cached.
	Status []int

	// Language adds the request language tag to the cache key.
	Language bool
}

// Rule is an immutable registered caching rule.
type Rule struct {
	method   string
	matcher  PathMatcher
	headers  []HeaderRule
	ttl      time.Duration
	excluded map[int]struct{}
	language bool
}

func newRule(method string, matcher PathMatcher, opts Options) (*Rule, error) {
	if matcher.kind != matcherPath && matcher.kind != matcherPattern {
		return nil, ErrInvalidMatcherKind
	}
	if matcher.kind == matcherPattern && matcher.pattern == nil {
		return nil, ErrInvalidMatcherKind
	}

	var headers []HeaderRule
	if opts.Headers != nil {
		headers = make([]HeaderRule, 0, len(opts.Headers))
		for _, h := range opts.Headers {
			if err := h.validate(); err != nil {
				return nil, fmt.Errorf("rule %s %s: %w", method, matcher, err)
			}
			headers = append(headers, h)
		}
	}

	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	var excluded map[int]struct{}
	if len(opts.Status) > 0 {
		excluded = make(map[int]struct{}, len(opts.Status))
		for _, code := range opts.Status {
			excluded[code] = struct{}{}
		}
	}

	return &Rule{
		method:   method,
		matcher:  matcher,
		headers:  headers,
		ttl:      ttl,
		excluded: excluded,
		language: opts.Language,
	}, nil
}

// Method returns the normalized method the rule is registered for.
func (r *Rule) Method() string { return r.method }

// Matcher returns the path matcher of the rule.
func (r *Rule) Matcher() PathMatcher { return r.matcher }

// TTL returns the lifetime of responses captured under this rule.
func (r *Rule) TTL() time.Duration { return r.ttl }

// UsesLanguage reports whether the request language enters the cache key.
func (r *Rule) UsesLanguage() bool { return r.language }

// Excludes reports whether responses with the given status must not be cached.
func (r *Rule) Excludes(status int) bool {
	_, ok := r.excluded[status]
	return ok
}

// Admit evaluates the rule's header rules against src.
// Rejection is not an error; an error means the rule itself is malformed.
func (r *Rule) Admit(src HeaderSource) (Admission, error) {
	return evaluate(r.headers, src)
}

// String identifies the rule in logs.
func (r *Rule) String() string {
	return r.method + " " + r.matcher.String()
}

// Definition is a rule waiting to be registered.
type Definition struct {
	Method  string
	Matcher PathMatcher
	Options Options
}

// NormalizeMethod returns the form in which methods are stored and looked up.
func NormalizeMethod(method string) string {
	return strings.ToLower(strings.TrimSpace(method))
}
