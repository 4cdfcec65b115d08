package coordinator

import (
	"context"
	"net/http"
)

// Request is the view of an inbound request the coordinator needs.
type Request interface {
	Method() string
	Path() string

	// Query is the raw query string. It is part of the cache key but not of
	// rule matching.
	Query() string

	// Language is the request's language tag, or "" if unknown.
	Language() string

	// Header returns the value of the named header and whether it was sent.
	Header(name string) (string, bool)

	// Context is cancelled when the client goes away.
	Context() context.Context
}

// Response is the view of the outbound response the coordinator needs.
type Response interface {
	// SendCompressed writes an already content-encoded body.
	SendCompressed(body []byte, header http.Header, status int)

	// SendUncompressed writes a plain body.
	SendUncompressed(body []byte, header http.Header, status int)

	// OnComplete registers fn to run once the downstream response has been
	// fully produced.
	OnComplete(fn func(Completion))
}

// Completion carries the final state of a passed-through response. The
// callback owns Body and Header.
type Completion struct {
	Status     int
	Body       []byte
	Compressed bool
	Header     http.Header
}

// Outcome is the terminal state of OnRequest.
type Outcome int

const (
	// OutcomePassedThrough means downstream handled the request.
	OutcomePassedThrough Outcome = iota

	// OutcomeServedLocal means the response came from the local store.
	OutcomeServedLocal

	// OutcomeServedShared means the response came from the shared store.
	OutcomeServedShared
)

func (o Outcome) String() string {
	switch o {
	case OutcomeServedLocal:
		return "served_local"
	case OutcomeServedShared:
		return "served_shared"
	default:
		return "passed_through"
	}
}
