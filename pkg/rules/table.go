package rules

import (
	"strings"
	"sync"
)

type methodRules struct {
	exact    map[string]*Rule
	patterns []*Rule
}

// Table holds the registered rules, grouped per method.
// It is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	methods map[string]*methodRules
}

// NewTable creates an empty rule table.
func NewTable() *Table {
	return &Table{methods: make(map[string]*methodRules)}
}

// Register adds a rule for method. A literal path replaces any rule previously
// registered for the same method and path; a pattern is appended after all
// earlier patterns of the method.
func (t *Table) Register(method string, matcher PathMatcher, opts Options) error {
	method = NormalizeMethod(method)

	rule, err := newRule(method, matcher, opts)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	group, ok := t.methods[method]
	if !ok {
		group = &methodRules{exact: make(map[string]*Rule)}
		t.methods[method] = group
	}

	if matcher.kind == matcherPath {
		group.exact[matcher.path] = rule
	} else {
		group.patterns = append(group.patterns, rule)
	}
	return nil
}

// RegisterAll registers defs in order and stops at the first failure.
func (t *Table) RegisterAll(defs []Definition) error {
	for _, d := range defs {
		if err := t.Register(d.Method, d.Matcher, d.Options); err != nil {
			return err
		}
	}
	return nil
}

// Match returns the rule that applies to a request. Literal paths are tried
// first, then patterns in registration order.
func (t *Table) Match(method, path string) (*Rule, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	group, ok := t.methods[NormalizeMethod(method)]
	if !ok {
		return nil, false
	}

	if rule, ok := group.exact[strings.ToLower(path)]; ok {
		return rule, true
	}

	for _, rule := range group.patterns {
		if rule.matcher.pattern.MatchString(path) {
			return rule, true
		}
	}
	return nil, false
}

// Len returns the number of registered rules.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := 0
	for _, group := range t.methods {
		n += len(group.exact) + len(group.patterns)
	}
	return n
}
