package httpcache

import (
	"bytes"
	"net/http"
)

// capturingWriter tees a response into a buffer while writing it through.
type capturingWriter struct {
	rw          http.ResponseWriter
	b           *bytes.Buffer
	status      int
	wroteHeader bool
	maxBody     int
	overflow    bool
}

func newCapturingWriter(w http.ResponseWriter, maxBody int) *capturingWriter {
	return &capturingWriter{
		rw:      w,
		b:       &bytes.Buffer{},
		maxBody: maxBody,
	}
}

// Implementation of http.ResponseWriter
func (t *capturingWriter) Header() http.Header {
	return t.rw.Header()
}

// Implementation of http.ResponseWriter
func (t *capturingWriter) WriteHeader(statusCode int) {
	if t.wroteHeader {
		return
	}
	t.wroteHeader = true
	t.status = statusCode
	t.rw.WriteHeader(statusCode)
}

// Implementation of http.ResponseWriter
func (t *capturingWriter) Write(b []byte) (int, error) {
	if !t.wroteHeader {
		t.WriteHeader(http.StatusOK)
	}
	if !t.overflow {
		if t.maxBody > 0 && t.b.Len()+len(b) > t.maxBody {
			// Too large to store; stop buffering but keep serving.
			t.overflow = true
			t.b = &bytes.Buffer{}
		} else {
			t.b.Write(b)
		}
	}
	return t.rw.Write(b)
}

// Flush implements http.Flusher when the underlying writer does.
func (t *capturingWriter) Flush() {
	if f, ok := t.rw.(http.Flusher); ok {
		if !t.wroteHeader {
			t.WriteHeader(http.StatusOK)
		}
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (t *capturingWriter) Unwrap() http.ResponseWriter {
	return t.rw
}

// StatusCode returns the status written, defaulting to 200.
func (t *capturingWriter) StatusCode() int {
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}

// Body returns the buffered body.
func (t *capturingWriter) Body() []byte {
	return t.b.Bytes()
}
