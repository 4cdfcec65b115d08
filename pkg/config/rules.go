package config

import (
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/Sternrassler/soa-response-cache/pkg/rules"
)

// RuleConfig is a caching rule as written in the config file.
type RuleConfig struct {
	Method     string         `koanf:"method"`
	Path       string         `koanf:"path"`
	Pattern    string         `koanf:"pattern"`
	TTLSeconds int            `koanf:"ttlSeconds"`
	Status     []int          `koanf:"status"`
	Language   bool           `koanf:"language"`
	Headers    []HeaderConfig `koanf:"headers"`
}

// HeaderConfig is one header rule. Value true keys on the header, false
// requires it to be absent and a string requires that exact value. Pattern
// requires a regular expression match.
type HeaderConfig struct {
	Name    string `koanf:"name"`
	Value   any    `koanf:"value"`
	Pattern string `koanf:"pattern"`
}

// Compile turns the rule into a registrable definition.
func (r RuleConfig) Compile() (rules.Definition, error) {
	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "GET"
	}

	var matcher rules.PathMatcher
	switch {
	case r.Path != "" && r.Pattern != "":
		return rules.Definition{}, fmt.Errorf("%w: path and pattern are mutually exclusive", rules.ErrInvalidMatcherKind)
	case r.Path != "":
		matcher = rules.Path(r.Path)
	case r.Pattern != "":
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return rules.Definition{}, fmt.Errorf("%w: pattern %q: %v", rules.ErrInvalidMatcherKind, r.Pattern, err)
		}
		matcher = rules.Pattern(re)
	default:
		return rules.Definition{}, fmt.Errorf("%w: path or pattern required", rules.ErrInvalidMatcherKind)
	}

	if r.TTLSeconds < 0 {
		return rules.Definition{}, fmt.Errorf("%w: ttlSeconds must not be negative", rules.ErrConfiguration)
	}

	var headers []rules.HeaderRule
	if r.Headers != nil {
		headers = make([]rules.HeaderRule, 0, len(r.Headers))
		for _, h := range r.Headers {
			hr, err := h.compile()
			if err != nil {
				return rules.Definition{}, err
			}
			headers = append(headers, hr)
		}
	}

	return rules.Definition{
		Method:  method,
		Matcher: matcher,
		Options: rules.Options{
			Headers:  headers,
			TTL:      time.Duration(r.TTLSeconds) * time.Second,
			Status:   append([]int(nil), r.Status...),
			Language: r.Language,
		},
	}, nil
}

func (h HeaderConfig) compile() (rules.HeaderRule, error) {
	name := strings.TrimSpace(h.Name)
	if name == "" {
		return rules.HeaderRule{}, fmt.Errorf("%w: header name required", rules.ErrInvalidHeaderMatcher)
	}

	if h.Pattern != "" {
		if h.Value != nil {
			return rules.HeaderRule{}, fmt.Errorf("%w: header %q sets both value and pattern", rules.ErrInvalidHeaderMatcher, name)
		}
		re, err := regexp.Compile(h.Pattern)
		if err != nil {
			return rules.HeaderRule{}, fmt.Errorf("%w: header %q pattern: %v", rules.ErrInvalidHeaderMatcher, name, err)
		}
		return rules.MustMatch(name, re), nil
	}

	switch v := h.Value.(type) {
	case bool:
		if v {
			return rules.KeyOn(name), nil
		}
		return rules.MustBeAbsent(name), nil
	case string:
		return rules.MustEqual(name, v), nil
	default:
		return rules.HeaderRule{}, fmt.Errorf("%w: header %q value must be true, false or a string, got %T", rules.ErrInvalidHeaderMatcher, name, h.Value)
	}
}

// GatewayErrorStatus lists the statuses CompileRules excludes unless
// server.cacheGatewayErrors is set.
var GatewayErrorStatus = []int{http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout}

// CompileRules compiles every configured rule in order.
func (c Config) CompileRules() ([]rules.Definition, error) {
	defs := make([]rules.Definition, 0, len(c.Rules))
	for i, r := range c.Rules {
		d, err := r.Compile()
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		if !c.Server.CacheGatewayErrors {
			d.Options.Status = withStatus(d.Options.Status, GatewayErrorStatus...)
		}
		defs = append(defs, d)
	}
	return defs, nil
}

func withStatus(status []int, extra ...int) []int {
	for _, code := range extra {
		if !slices.Contains(status, code) {
			status = append(status, code)
		}
	}
	return status
}
