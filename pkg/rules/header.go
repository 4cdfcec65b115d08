package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// ConstraintKind identifies how a header rule treats a request header.
type ConstraintKind int

const (
	constraintInvalid ConstraintKind = iota

	// ConstraintKey records the header value into the cache key and never rejects.
	ConstraintKey

	// ConstraintAbsent rejects the request when the header is present.
	ConstraintAbsent

	// ConstraintEqual records the value and rejects unless it equals the
	// configured literal, ignoring case and surrounding whitespace.
	ConstraintEqual

	// ConstraintPattern records the value and rejects unless it matches the pattern.
	ConstraintPattern
)

// String returns the configuration name of the kind.
func (k ConstraintKind) String() string {
	switch k {
	case ConstraintKey:
		return "key"
	case ConstraintAbsent:
		return "absent"
	case ConstraintEqual:
		return "equal"
	case ConstraintPattern:
		return "pattern"
	default:
		return "invalid"
	}
}

// Constraint is the requirement a header rule places on one request header.
// The zero value is invalid and is rejected at registration.
type Constraint struct {
	kind    ConstraintKind
	literal string
	pattern *regexp.Regexp
}

// Key returns a constraint that keys on the header value.
func Key() Constraint { return Constraint{kind: ConstraintKey} }

// Absent returns a constraint that requires the header to be missing.
func Absent() Constraint { return Constraint{kind: ConstraintAbsent} }

// Equal returns a constraint that requires the header to equal value.
func Equal(value string) Constraint {
	return Constraint{kind: ConstraintEqual, literal: normalizeValue(value)}
}

// Matches returns a constraint that requires the header to match re.
// A nil re yields an invalid constraint.
func Matches(re *regexp.Regexp) Constraint {
	if re == nil {
		return Constraint{}
	}
	return Constraint{kind: ConstraintPattern, pattern: re}
}

// Kind reports the constraint kind.
func (c Constraint) Kind() ConstraintKind { return c.kind }

// HeaderRule binds a constraint to a header name.
type HeaderRule struct {
	Name       string
	Constraint Constraint
}

// KeyOn keys the cache on the named header.
func KeyOn(name string) HeaderRule { return HeaderRule{Name: name, Constraint: Key()} }

// MustBeAbsent makes requests carrying the named header ineligible.
func MustBeAbsent(name string) HeaderRule { return HeaderRule{Name: name, Constraint: Absent()} }

// MustEqual requires the named header to equal value.
func MustEqual(name, value string) HeaderRule {
	return HeaderRule{Name: name, Constraint: Equal(value)}
}

// MustMatch requires the named header to match re.
func MustMatch(name string, re *regexp.Regexp) HeaderRule {
	return HeaderRule{Name: name, Constraint: Matches(re)}
}

func (h HeaderRule) validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return fmt.Errorf("%w: empty header name", ErrInvalidHeaderMatcher)
	}
	switch h.Constraint.kind {
	case ConstraintKey, ConstraintAbsent, ConstraintEqual:
		return nil
	case ConstraintPattern:
		if h.Constraint.pattern == nil {
			return fmt.Errorf("%w: header %q has no pattern", ErrInvalidHeaderMatcher, h.Name)
		}
		return nil
	default:
		return fmt.Errorf("%w: header %q", ErrInvalidHeaderMatcher, h.Name)
	}
}

// HeaderSource exposes the current headers of a request.
type HeaderSource interface {
	Header(name string) (value string, ok bool)
}

// Admission is the outcome of evaluating a rule's header rules.
type Admission struct {
	// Eligible reports whether the request may be served from or stored in the cache.
	Eligible bool

	// Material maps lowercased header names to the values that enter the cache key.
	Material map[string]string

	// RejectedBy names the header that made the request ineligible.
	RejectedBy string
}

func evaluate(headers []HeaderRule, src HeaderSource) (Admission, error) {
	if headers == nil {
		return Admission{}, nil
	}

	material := make(map[string]string, len(headers))
	for _, h := range headers {
		name := strings.ToLower(strings.TrimSpace(h.Name))
		value, present := src.Header(name)

		switch h.Constraint.kind {
		case ConstraintKey:
			material[name] = value
		case ConstraintAbsent:
			if present && value != "" {
				return Admission{RejectedBy: name}, nil
			}
		case ConstraintEqual:
			material[name] = value
			if normalizeValue(value) != h.Constraint.literal {
				return Admission{RejectedBy: name}, nil
			}
		case ConstraintPattern:
			material[name] = value
			if h.Constraint.pattern == nil || !h.Constraint.pattern.MatchString(value) {
				return Admission{RejectedBy: name}, nil
			}
		default:
			return Admission{}, fmt.Errorf("%w: header %q", ErrInvalidHeaderMatcher, name)
		}
	}

	return Admission{Eligible: true, Material: material}, nil
}

func normalizeValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
