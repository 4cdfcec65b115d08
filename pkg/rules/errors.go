package rules

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is the root of all registration-time errors.
	ErrConfiguration = errors.New("rules: configuration error")

	// ErrInvalidMatcherKind indicates a path matcher that is neither a literal path nor a pattern.
	ErrInvalidMatcherKind = fmt.Errorf("%w: path matcher must be a literal path or a pattern", ErrConfiguration)

	// ErrInvalidHeaderMatcher indicates a header rule whose constraint is not one of
	// key, absent, literal or pattern.
	ErrInvalidHeaderMatcher = fmt.Errorf("%w: header matcher must be key, absent, literal or pattern", ErrConfiguration)
)
