// Package rules holds the caching rules of the response cache and decides,
// per request, which rule applies and whether the request is admitted.
//
// Rules are registered per HTTP method either for a literal path or for a
// pattern:
//
//	table := rules.NewTable()
//	err := table.Register("GET", rules.Path("/items"), rules.Options{
//		Headers: []rules.HeaderRule{
//			rules.KeyOn("accept-language"),
//			rules.MustBeAbsent("authorization"),
//		},
//		TTL: time.Minute,
//	})
//
// # Matching
//
// Literal paths are compared case-insensitively and always win over
// patterns. Patterns are tried in registration order and the first one that
// matches is selected.
//
// # Admission
//
// A matched rule admits a request only when every header rule passes. Header
// rules are evaluated in the order they were declared and evaluation stops at
// the first rejection. Values of keying headers become key material for the
// cache key. A rule without any header rules never admits a request.
package rules
