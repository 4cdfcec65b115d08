// Package coordinator drives the two-tier response cache for a single
// request: it matches the request against the registered rules, admits it,
// looks the derived key up in the local and the shared store and either
// serves the stored response or lets the request proceed and captures the
// completed response.
//
// The coordinator is transport-agnostic. A transport adapts its request and
// response objects to Request and Response; pkg/httpcache does this for
// net/http.
//
// # Request Flow
//
//	no rule / not admitted  -> proceed
//	local hit               -> serve
//	shared hit              -> promote into local, serve
//	miss                    -> watch completion, proceed
//
// A shared store that fails or times out behaves like a miss. The shared
// store is never allowed to fail a request.
//
// # Capture
//
// When a watched response completes, its status is checked against the
// rule's exclusions, identity headers are stripped and the entry is written
// to the local store with the rule TTL. The shared write runs in the
// background; Close waits for pending writes.
//
// # Metrics
//
//   - respcache_requests_total{outcome} - Request outcomes
//   - respcache_capture_skips_total{reason} - Completed responses not stored
package coordinator
