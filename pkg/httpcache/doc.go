// Package httpcache plugs the response cache into net/http.
//
//	coord, _ := coordinator.New(coordinator.DefaultConfig(local, shared))
//	coord.Register("GET", rules.Path("/items"), rules.Options{
//		Headers: []rules.HeaderRule{rules.KeyOn("accept-language")},
//	})
//	http.ListenAndServe(":8080", httpcache.Middleware(coord)(handler))
//
// Responses passed through to the wrapped handler are teed into a buffer
// while they are written to the client. When the handler returns, the
// buffered response is handed to the coordinator for storage.
//
// Stored content-encoded bodies are replayed as-is to clients that accept
// the encoding. Gzip bodies are inflated for clients that do not.
//
// Every response carries a Cache-Status header (RFC 9211).
package httpcache
