package httpcache

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/Sternrassler/soa-response-cache/pkg/coordinator"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

// response adapts an http.ResponseWriter to coordinator.Response.
type response struct {
	w          http.ResponseWriter
	r          *http.Request
	statusName string
	watchers   []func(coordinator.Completion)
}

// SendCompressed replays a content-encoded body. Clients that do not accept
// the stored gzip encoding receive the inflated body instead.
func (s *response) SendCompressed(body []byte, header http.Header, status int) {
	encoding := header.Get("Content-Encoding")
	if encoding == "" || acceptsEncoding(s.r.Header.Get("Accept-Encoding"), encoding) {
		s.write(body, header, status)
		return
	}

	if strings.EqualFold(encoding, "gzip") {
		plain, err := gunzip(body)
		if err == nil {
			header.Del("Content-Encoding")
			s.write(plain, header, status)
			return
		}
		log.Warn().Err(err).Str("path", s.r.URL.Path).Msg("Failed to inflate stored response")
	}
	s.write(body, header, status)
}

// SendUncompressed replays a plain body.
func (s *response) SendUncompressed(body []byte, header http.Header, status int) {
	s.write(body, header, status)
}

// OnComplete registers fn to run after the wrapped handler returns.
func (s *response) OnComplete(fn func(coordinator.Completion)) {
	s.watchers = append(s.watchers, fn)
}

func (s *response) watched() bool {
	return len(s.watchers) > 0
}

func (s *response) complete(c coordinator.Completion) {
	for _, fn := range s.watchers {
		fn(c)
	}
}

func (s *response) write(body []byte, header http.Header, status int) {
	dst := s.w.Header()
	for name, values := range header {
		dst[name] = values
	}
	dst.Set("Content-Length", strconv.Itoa(len(body)))
	dst.Set("Cache-Status", s.statusName+"; hit")

	s.w.WriteHeader(status)
	if s.r.Method != http.MethodHead {
		s.w.Write(body)
	}
}

// acceptsEncoding reports whether an Accept-Encoding header value allows
// encoding. A q of 0 excludes a coding; "*" matches any coding.
func acceptsEncoding(accept, encoding string) bool {
	wildcard := false
	for _, part := range strings.Split(accept, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		allowed := true
		for _, p := range strings.Split(params, ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(p), "=")
			if ok && strings.EqualFold(strings.TrimSpace(key), "q") {
				if q, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && q == 0 {
					allowed = false
				}
			}
		}

		if strings.EqualFold(name, encoding) {
			return allowed
		}
		if name == "*" {
			wildcard = allowed
		}
	}
	return wildcard
}

func gunzip(body []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

// isEncoded reports whether the response body carries a content coding.
func isEncoded(h http.Header) bool {
	enc := strings.TrimSpace(h.Get("Content-Encoding"))
	return enc != "" && !strings.EqualFold(enc, "identity")
}
