package http

import (
	"github.com/indigo-web/uweb/bounded"
	"github.com/indigo-web/uweb/http/mime"
	"github.com/indigo-web/uweb/http/status"
	"github.com/indigo-web/uweb/stream"
)

// DefaultContentType is the Content-Type of every response, unless overridden.
const DefaultContentType = mime.Plain

// Response is filled by the responder. The engine resets it to defaults before every
// request: status 200, text/plain, no extra headers and the session's body buffer in
// the Body slot.
type Response struct {
	Status      status.Code
	ContentType bounded.String
	// ExtraHeaders are appended to the head verbatim. Each header must end with CRLF.
	ExtraHeaders string
	// Body is the stream the response body is read from. It may be replaced with any other
	// stream, e.g. a file. Its TotalSize is sent as the Content-Length when known, otherwise
	// the number of available bytes is.
	Body *stream.Stream

	buffer *stream.Buffer
}

// NewResponse returns a response using the passed buffer as the default body slot.
func NewResponse(contentType int, buffer *stream.Buffer) *Response {
	resp := &Response{
		ContentType: bounded.New(contentType),
		buffer:      buffer,
	}
	resp.Reset()

	return resp
}

// Write appends to the body slot. It's a shorthand for resp.Body.Write.
func (r *Response) Write(b []byte) (int, error) {
	return r.Body.Write(b)
}

// String is the same as Write, but accepts a string.
func (r *Response) String(str string) (int, error) {
	return r.Body.Write([]byte(str))
}

// Header appends an extra header line.
func (r *Response) Header(key, value string) *Response {
	r.ExtraHeaders += key + ": " + value + "\r\n"
	return r
}

// Buffer returns the session's default body slot, even if Body was replaced.
func (r *Response) Buffer() *stream.Buffer {
	return r.buffer
}

// Reset restores defaults.
func (r *Response) Reset() {
	r.Status = status.OK
	r.ContentType.Set(DefaultContentType)
	r.ExtraHeaders = ""
	if r.buffer != nil {
		r.buffer.Reset()
		r.Body = &r.buffer.Stream
	} else {
		r.Body = stream.Discard()
	}
}

// Fragment is for responses being emitted in chunks: it empties the default body slot
// before the responder is pulled for the next fragment. Headers are already sent by then,
// so only the Body matters.
func (r *Response) Fragment() {
	if r.buffer != nil {
		r.buffer.Reset()
	}
}

// OutcomeKind enumerates responder results.
type OutcomeKind uint8

const (
	// KindComplete means the response is entirely in the Body.
	KindComplete OutcomeKind = iota
	// KindMorePending means the Body holds just a fragment and the responder must be
	// called again for the next one.
	KindMorePending
	// KindRedirect means the response is a redirect to the URL carried by the outcome.
	KindRedirect
)

func (k OutcomeKind) String() string {
	switch k {
	case KindComplete:
		return "complete"
	case KindMorePending:
		return "more pending"
	case KindRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Outcome is what the responder returns.
type Outcome struct {
	kind    OutcomeKind
	url     string
	written int
}

// Complete returns an outcome telling the response is ready.
func Complete() Outcome {
	return Outcome{kind: KindComplete}
}

// MorePending returns an outcome telling the Body holds a fragment of the response.
// A fragment of zero bytes finishes the response.
func MorePending() Outcome {
	return Outcome{kind: KindMorePending}
}

// Redirect records the url in the request and returns an outcome causing 303 See Other.
func Redirect(req *RequestHeader, url string) Outcome {
	req.RedirectionURL = url
	return Outcome{kind: KindRedirect, url: url}
}

func (o Outcome) Kind() OutcomeKind {
	return o.kind
}

// URL returns the redirection target. It's empty unless the kind is KindRedirect.
func (o Outcome) URL() string {
	return o.url
}

// Written returns the number of body bytes emitted for the response. It's filled
// by the engine.
func (o Outcome) Written() int {
	return o.written
}

// WithWritten returns a copy of the outcome carrying the number of written bytes.
func (o Outcome) WithWritten(n int) Outcome {
	o.written = n
	return o
}
