package http

import (
	"github.com/indigo-web/uweb/bounded"
	"github.com/indigo-web/uweb/config"
	"github.com/indigo-web/uweb/http/method"
	"github.com/indigo-web/uweb/http/mime"
	"github.com/indigo-web/uweb/http/proto"
	"github.com/indigo-web/utils/strcomp"
)

const multipartPrefix = "multipart/"

// RequestHeader is the parsed head of a request. It's allocated once per session and
// reused for every request, therefore values must not be retained past the responder call.
type RequestHeader struct {
	// Method is an enum representing the request method. method.Unknown marks a method
	// the engine doesn't support.
	Method method.Method
	// Resource is the raw request-target: the path together with the query. It isn't
	// percent-decoded, see the urlencoded package.
	Resource bounded.String
	// Proto is the protocol version of the request line, or proto.Unknown.
	Proto       proto.Proto
	Host        bounded.String
	ContentType bounded.String
	// Connection is reported as is, the engine itself closes the output after every response.
	Connection bounded.String
	// ContentLength is the declared body length. It has no meaning when Chunked is set.
	ContentLength uint64
	// HasContentLength tells whether the Content-Length header was present at all.
	HasContentLength bool
	// Chunked marks the body as transfer-encoded with chunked coding. It wins over
	// the Content-Length.
	Chunked bool
	// ChunkNbr is the number of chunks delivered so far.
	ChunkNbr uint32
	// Multipart describes the multipart section currently being delivered.
	Multipart Multipart
	// RedirectionURL is set by Redirect.
	RedirectionURL string
}

// Multipart holds the header fields of the current multipart section. They're overwritten
// as soon as the next section begins.
type Multipart struct {
	// Nbr is the ordinal of the current section, starting from 1.
	Nbr                uint32
	ContentType        bounded.String
	ContentDisposition bounded.String
}

// NewRequestHeader allocates every bounded field with capacities from the config.
func NewRequestHeader(bounds config.Bounds) *RequestHeader {
	return &RequestHeader{
		Resource:    bounded.New(bounds.Resource),
		Host:        bounded.New(bounds.Host),
		ContentType: bounded.New(bounds.ContentType),
		Connection:  bounded.New(bounds.Connection),
		Multipart: Multipart{
			ContentType:        bounded.New(bounds.ContentType),
			ContentDisposition: bounded.New(bounds.ContentDisposition),
		},
	}
}

// Boundary returns the multipart boundary from the Content-Type, or an empty string if
// the body isn't multipart.
func (r *RequestHeader) Boundary() string {
	value := r.ContentType.Unsafe()
	media, _ := mime.CutParams(value)
	if len(media) < len(multipartPrefix) || !strcomp.EqualFold(media[:len(multipartPrefix)], multipartPrefix) {
		return ""
	}

	boundary, _ := mime.Param(value, "boundary")
	return boundary
}

// HasBody tells whether the request declares a body, even an empty one. Requests that
// don't are never passed to the data receiver.
func (r *RequestHeader) HasBody() bool {
	return r.Chunked || r.HasContentLength
}

// Truncated tells whether any of the bounded fields had to drop bytes.
func (r *RequestHeader) Truncated() bool {
	return r.Resource.Truncated() || r.Host.Truncated() || r.ContentType.Truncated() ||
		r.Connection.Truncated() || r.Multipart.ContentType.Truncated() ||
		r.Multipart.ContentDisposition.Truncated()
}

// Reset prepares the header for the next request.
func (r *RequestHeader) Reset() {
	r.Method = method.Unknown
	r.Resource.Reset()
	r.Proto = proto.Unknown
	r.Host.Reset()
	r.ContentType.Reset()
	r.Connection.Reset()
	r.ContentLength = 0
	r.HasContentLength = false
	r.Chunked = false
	r.ChunkNbr = 0
	r.Multipart.Reset()
	r.RedirectionURL = ""
}

// Reset clears the section fields and the ordinal.
func (m *Multipart) Reset() {
	m.Nbr = 0
	m.ContentType.Reset()
	m.ContentDisposition.Reset()
}
