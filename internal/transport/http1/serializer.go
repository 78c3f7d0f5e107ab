package http1

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/indigo-web/uweb/config"
	"github.com/indigo-web/uweb/http"
	"github.com/indigo-web/uweb/http/method"
	"github.com/indigo-web/uweb/http/mime"
	"github.com/indigo-web/uweb/http/status"
	"github.com/indigo-web/uweb/stream"
	"github.com/indigo-web/utils/uf"
)

// ErrShortFragment is returned when a response body yields fewer bytes than it announced
// as available, so the chunk framing can't be completed.
var ErrShortFragment = errors.New("response body is shorter than announced")

var (
	crlf             = []byte("\r\n")
	chunkZeroTrailer = []byte("0\r\n\r\n")
)

// Serializer renders responses into the transmit buffer, flushing it into the output stream
// whenever it's full. After the first failed write, everything is discarded and the error
// is reported by Flush.
type Serializer struct {
	buff     []byte
	out      *stream.Stream
	name     string
	messages config.Messages
	err      error
}

func NewSerializer(buff []byte, cfg *config.Config) *Serializer {
	return &Serializer{
		buff:     buff[:0],
		name:     cfg.Server.Name,
		messages: cfg.Messages,
	}
}

// Reset binds the serializer to the output stream and discards any pending data.
func (s *Serializer) Reset(out *stream.Stream) {
	s.out = out
	s.buff = s.buff[:0]
	s.err = nil
}

// Write emits the response the outcome describes. A response being emitted in chunks
// pulls the responder for the next fragment until an empty one or until it's completed.
// The returned outcome carries the number of body bytes written.
func (s *Serializer) Write(
	req *http.RequestHeader, resp *http.Response, outcome http.Outcome, responder http.Responder,
) (http.Outcome, error) {
	var written int

	switch outcome.Kind() {
	case http.KindRedirect:
		s.redirect(req.RedirectionURL, resp.ExtraHeaders)
	case http.KindMorePending:
		written = s.chunked(req, resp, responder)
	default:
		written = s.complete(req, resp)
	}

	if err := resp.Body.Close(); err != nil && s.err == nil {
		s.err = fmt.Errorf("close response body: %w", err)
	}

	return outcome.WithWritten(written), s.Flush()
}

// Fault renders a canned response corresponding to the code, bypassing the responder.
func (s *Serializer) Fault(code status.Code) error {
	var message string

	switch code {
	case status.RequestTimeout:
		message = s.messages.Timeout
	case status.NotImplemented:
		message = s.messages.NotImplemented
	default:
		code, message = status.BadRequest, s.messages.BadRequest
	}

	s.statusLine(code)
	s.header("Content-Type", mime.Plain)
	s.contentLength(len(message))
	s.write(crlf)
	s.writeString(message)

	return s.Flush()
}

// Flush writes everything pending into the output stream.
func (s *Serializer) Flush() error {
	if s.err == nil && len(s.buff) > 0 {
		if err := s.out.WriteAll(s.buff); err != nil {
			s.err = fmt.Errorf("write response: %w", err)
		}
	}

	s.buff = s.buff[:0]
	return s.err
}

func (s *Serializer) complete(req *http.RequestHeader, resp *http.Response) int {
	length := resp.Body.TotalSize
	if length < 0 {
		length = resp.Body.Available()
	}

	s.statusLine(resp.Status)
	s.header("Content-Type", resp.ContentType.Unsafe())
	s.contentLength(length)
	s.writeString(resp.ExtraHeaders)
	s.write(crlf)

	if req.Method == method.HEAD {
		return 0
	}

	return s.pump(resp.Body, length)
}

func (s *Serializer) chunked(req *http.RequestHeader, resp *http.Response, responder http.Responder) (written int) {
	s.statusLine(resp.Status)
	s.header("Content-Type", resp.ContentType.Unsafe())
	s.header("Transfer-Encoding", "chunked")
	s.writeString(resp.ExtraHeaders)
	s.write(crlf)

	if req.Method == method.HEAD {
		return 0
	}

	outcome := http.MorePending()

	for s.err == nil {
		size := resp.Body.Available()
		if size <= 0 {
			break
		}

		s.writeUint(uint64(size), 16)
		s.write(crlf)
		n := s.pump(resp.Body, size)
		written += n
		if n < size {
			if s.err == nil {
				s.err = ErrShortFragment
			}

			break
		}

		s.write(crlf)

		if outcome.Kind() != http.KindMorePending {
			// the last fragment was passed together with the completion
			break
		}

		resp.Fragment()
		outcome = responder.Respond(req, resp)
	}

	s.write(chunkZeroTrailer)

	return written
}

func (s *Serializer) redirect(url, extraHeaders string) {
	s.statusLine(status.SeeOther)
	s.header("Location", url)
	s.contentLength(0)
	s.writeString(extraHeaders)
	s.write(crlf)
}

// pump moves up to n bytes from the body into the output, reading directly into the
// free space of the transmit buffer.
func (s *Serializer) pump(body *stream.Stream, n int) (written int) {
	for s.err == nil && written < n {
		if len(s.buff) == cap(s.buff) {
			_ = s.Flush()
			continue
		}

		free := s.buff[len(s.buff):cap(s.buff)]
		if rest := n - written; len(free) > rest {
			free = free[:rest]
		}

		read, err := body.Read(free)
		s.buff = s.buff[:len(s.buff)+read]
		written += read

		switch {
		case errors.Is(err, io.EOF):
			return written
		case err != nil:
			s.err = fmt.Errorf("read response body: %w", err)
		case read == 0:
			// the body turned out to be shorter than announced. There's nothing to
			// fill the gap with.
			return written
		}
	}

	return written
}

// statusLine renders the status line and the Server header. A code which can't be
// rendered as three digits is replaced with 500.
func (s *Serializer) statusLine(code status.Code) {
	if !status.Valid(code) {
		code = status.InternalServerError
	}

	s.writeString("HTTP/1.1 ")
	s.writeUint(uint64(code), 10)
	s.writeString(" ")
	s.writeString(string(status.Text(code)))
	s.write(crlf)
	s.header("Server", s.name)
}

func (s *Serializer) header(key, value string) {
	s.writeString(key)
	s.writeString(": ")
	s.writeString(value)
	s.write(crlf)
}

func (s *Serializer) contentLength(length int) {
	s.writeString("Content-Length: ")
	s.writeUint(uint64(length), 10)
	s.write(crlf)
}

func (s *Serializer) writeUint(n uint64, base int) {
	var digits [20]byte
	s.write(strconv.AppendUint(digits[:0], n, base))
}

func (s *Serializer) writeString(str string) {
	s.write(uf.S2B(str))
}

// write appends to the transmit buffer, flushing it as soon as it's full, so data longer
// than the buffer is passed in pieces.
func (s *Serializer) write(b []byte) {
	for s.err == nil && len(b) > 0 {
		n := copy(s.buff[len(s.buff):cap(s.buff)], b)
		s.buff = s.buff[:len(s.buff)+n]
		b = b[n:]

		if len(s.buff) == cap(s.buff) {
			_ = s.Flush()
		}
	}
}
