package httpcache

import (
	"net/http"

	"github.com/Sternrassler/soa-response-cache/pkg/coordinator"
	"github.com/rs/zerolog/log"
)

// Config holds the middleware configuration.
type Config struct {
	// MaxBodyBytes caps the size of a response that is captured. Larger
	// responses are served normally but not stored. Zero means no cap.
	MaxBodyBytes int

	// CacheStatusName identifies this cache in the Cache-Status header
	CacheStatusName string
}

// DefaultConfig returns the default middleware configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:    8 << 20,
		CacheStatusName: "respcache",
	}
}

// Middleware routes requests through c using the default configuration.
func Middleware(c *coordinator.Coordinator) func(http.Handler) http.Handler {
	return MiddlewareWithConfig(c, DefaultConfig())
}

// MiddlewareWithConfig routes requests through c.
func MiddlewareWithConfig(c *coordinator.Coordinator, cfg Config) func(http.Handler) http.Handler {
	if cfg.CacheStatusName == "" {
		cfg.CacheStatusName = DefaultConfig().CacheStatusName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isConditional(r) {
				w.Header().Set("Cache-Status", cfg.CacheStatusName+"; fwd=bypass")
				next.ServeHTTP(w, r)
				return
			}

			resp := &response{w: w, r: r, statusName: cfg.CacheStatusName}

			c.OnRequest(request{r: r}, resp, func() {
				proceed(next, w, r, resp, cfg)
			})
		})
	}
}

func proceed(next http.Handler, w http.ResponseWriter, r *http.Request, resp *response, cfg Config) {
	reason := "bypass"
	if resp.watched() {
		reason = "miss"
	}
	w.Header().Set("Cache-Status", cfg.CacheStatusName+"; fwd="+reason)

	if !resp.watched() {
		next.ServeHTTP(w, r)
		return
	}

	cw := newCapturingWriter(w, cfg.MaxBodyBytes)
	next.ServeHTTP(cw, r)

	if cw.overflow {
		log.Debug().Str("path", r.URL.Path).Int("max_bytes", cfg.MaxBodyBytes).Msg("Response too large to cache")
		return
	}

	if status := cw.StatusCode(); !storableStatus(status) {
		log.Debug().Str("path", r.URL.Path).Int("status", status).Msg("Partial or not-modified response not cached")
		return
	}

	header := w.Header().Clone()
	header.Del("Cache-Status")

	resp.complete(coordinator.Completion{
		Status:     cw.StatusCode(),
		Body:       cw.Body(),
		Compressed: isEncoded(header),
		Header:     header,
	})
}

// conditionalHeaders make the origin answer with a partial or not-modified
// response that cannot stand in for the full representation.
var conditionalHeaders = []string{"Range", "If-Range", "If-None-Match", "If-Modified-Since"}

func isConditional(r *http.Request) bool {
	for _, name := range conditionalHeaders {
		if r.Header.Get(name) != "" {
			return true
		}
	}
	return false
}

func storableStatus(status int) bool {
	return status != http.StatusPartialContent && status != http.StatusNotModified
}
