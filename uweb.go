// Package uweb is a minimal HTTP/1.1 engine for hosts where memory is counted in kilobytes.
// Every buffer is allocated once, when a session is created, and is reused for every
// request the session serves.
package uweb

import (
	"errors"
	"fmt"
	"io"

	"github.com/indigo-web/uweb/config"
	"github.com/indigo-web/uweb/http"
	"github.com/indigo-web/uweb/http/method"
	"github.com/indigo-web/uweb/http/status"
	"github.com/indigo-web/uweb/internal/transport"
	"github.com/indigo-web/uweb/internal/transport/http1"
	"github.com/indigo-web/uweb/stream"
	"go.uber.org/zap"
)

// State is the stage of the request processing.
type State uint8

const (
	AwaitingRequestLine State = iota
	ParsingHeaders
	StreamingBody
	NoBody
	AwaitingResponse
	EmittingFullResponse
	EmittingChunkedResponse
	EmittingRedirect
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingRequestLine:
		return "awaiting request line"
	case ParsingHeaders:
		return "parsing headers"
	case StreamingBody:
		return "streaming body"
	case NoBody:
		return "no body"
	case AwaitingResponse:
		return "awaiting response"
	case EmittingFullResponse:
		return "emitting full response"
	case EmittingChunkedResponse:
		return "emitting chunked response"
	case EmittingRedirect:
		return "emitting redirect"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Engine bundles the configuration with both callbacks. It's immutable, so a single
// engine may serve any number of sessions concurrently.
type Engine struct {
	cfg       *config.Config
	responder http.Responder
	receiver  http.DataReceiver
	logger    *zap.Logger
}

type Option func(e *Engine)

// WithLogger sets the logger. By default, nothing is logged.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New returns an engine. Zero fields of the config are filled with defaults; nil config
// means defaults entirely. Nil receiver discards all the bodies.
func New(cfg *config.Config, responder http.Responder, receiver http.DataReceiver, opts ...Option) *Engine {
	if responder == nil {
		panic("uweb: responder must not be nil")
	}

	if receiver == nil {
		receiver = http.DiscardData
	}

	e := &Engine{
		cfg:       config.Fill(cfg),
		responder: responder,
		receiver:  receiver,
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Config returns the effective config. It must not be modified.
func (e *Engine) Config() *config.Config {
	return e.cfg
}

// Logger returns the logger the engine was built with.
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}

// NewSession allocates everything a single connection needs.
func (e *Engine) NewSession() *Session {
	bounds := e.cfg.Bounds
	request := http.NewRequestHeader(bounds)

	return &Session{
		engine:     e,
		request:    request,
		response:   http.NewResponse(bounds.ContentType, stream.NewBuffer(make([]byte, bounds.Body))),
		parser:     http1.NewParser(request, bounds),
		body:       http1.NewBody(request, e.receiver, bounds),
		serializer: http1.NewSerializer(make([]byte, 0, bounds.Transmit), e.cfg),
		scratch:    make([]byte, bounds.Scratch),
		logger:     e.logger,
	}
}

// Session processes requests of a single connection, one at a time. It must not be
// used by several goroutines simultaneously.
type Session struct {
	engine     *Engine
	request    *http.RequestHeader
	response   *http.Response
	parser     *http1.Parser
	body       *http1.Body
	serializer *http1.Serializer
	scratch    []byte
	logger     *zap.Logger
	state      State
}

// State returns the stage of the current request.
func (s *Session) State() State {
	return s.state
}

// Request returns the header of the current request. It's valid until the next request.
func (s *Session) Request() *http.RequestHeader {
	return s.request
}

// Parse processes a single request: reads it from the input, delivering the body to the
// data receiver, and writes the response into the output, which is closed afterwards. If
// the input is exhausted before the request is complete, 400 Bad Request is responded.
//
// Errors of the input stream are returned as is, leaving the output open, so the caller
// decides whether to call Timeout or just to give up. Protocol errors are returned after
// the corresponding fault response is written.
func (s *Session) Parse(in, out *stream.Stream) error {
	s.begin(out)

	var data []byte

	for {
		switch s.state {
		case AwaitingRequestLine, ParsingHeaders:
			if len(data) == 0 {
				n, err := s.read(in)
				if err != nil {
					return err
				}

				if n == 0 {
					return s.fault(out, status.ErrBadRequest)
				}

				data = s.scratch[:n]
			}

			state, extra, err := s.parser.Parse(data)
			switch state {
			case transport.Pending:
				data = nil
				if !s.parser.InRequestLine() {
					s.state = ParsingHeaders
				}

				continue
			case transport.Error:
				return s.fault(out, err)
			}

			data = extra
			if err = s.headersCompleted(); err != nil {
				return s.fault(out, err)
			}
		case StreamingBody:
			if len(data) == 0 {
				n, err := s.read(in)
				if err != nil {
					return err
				}

				if n == 0 {
					return s.fault(out, status.ErrBodyTooShort)
				}

				data = s.scratch[:n]
			}

			done, extra, err := s.body.Feed(data)
			if err != nil {
				return s.fault(out, err)
			}

			data = nil
			if done {
				if len(extra) > 0 {
					s.logger.Debug("discarding data past the request", zap.Int("bytes", len(extra)))
				}

				s.state = AwaitingResponse
			}
		default:
			return s.respond(out)
		}
	}
}

// Timeout answers with 408 Request Timeout and closes the output, whatever stage the
// current request is at. The caller is the one to decide when the time is out. Only
// errors of writing the response or closing the output are returned.
func (s *Session) Timeout(out *stream.Stream) error {
	s.serializer.Reset(out)
	s.logger.Debug("timeout", zap.Stringer("state", s.state))

	return s.render(out, status.RequestTimeout)
}

func (s *Session) begin(out *stream.Stream) {
	s.request.Reset()
	s.response.Reset()
	s.parser.Reset()
	s.serializer.Reset(out)
	s.state = AwaitingRequestLine
}

// read reads into the scratch buffer. Zero bytes read mean the input is exhausted.
func (s *Session) read(in *stream.Stream) (n int, err error) {
	if in.Available() <= 0 {
		return 0, nil
	}

	n, err = in.Read(s.scratch)
	switch {
	case errors.Is(err, io.EOF):
		return n, nil
	case err != nil:
		s.logger.Debug("reading request", zap.Error(err))
		return 0, fmt.Errorf("read request: %w", err)
	}

	return n, nil
}

func (s *Session) headersCompleted() error {
	request := s.request
	if request.Truncated() {
		s.logger.Debug("request header truncated", zap.String("resource", request.Resource.Unsafe()))
	}

	if request.Method == method.Unknown {
		// the body isn't consumed, as the output is closed right after the fault response
		return status.ErrMethodNotImplemented
	}

	if !request.HasBody() {
		s.state = AwaitingResponse
		return nil
	}

	if err := s.body.Reset(); err != nil {
		return err
	}

	if !s.body.Empty() {
		s.logger.Debug("streaming body",
			zap.Bool("chunked", request.Chunked),
			zap.Uint64("length", request.ContentLength),
			zap.Bool("multipart", s.body.Multipart()),
		)
		s.state = StreamingBody
		return nil
	}

	// the body is declared empty, so the receiver only gets the terminal call
	s.state = NoBody
	if _, _, err := s.body.Feed(nil); err != nil {
		return err
	}

	s.state = AwaitingResponse
	return nil
}

func (s *Session) respond(out *stream.Stream) error {
	responder := s.engine.responder
	outcome := responder.Respond(s.request, s.response)

	switch outcome.Kind() {
	case http.KindRedirect:
		s.state = EmittingRedirect
	case http.KindMorePending:
		s.state = EmittingChunkedResponse
	default:
		s.state = EmittingFullResponse
	}

	outcome, err := s.serializer.Write(s.request, s.response, outcome, responder)
	s.logger.Debug("responded",
		zap.String("method", s.request.Method.String()),
		zap.String("resource", s.request.Resource.Unsafe()),
		zap.Uint16("status", uint16(s.response.Status)),
		zap.Stringer("outcome", outcome.Kind()),
		zap.Int("written", outcome.Written()),
	)

	return s.close(out, err)
}

// fault renders the canned response the error corresponds to. The error is returned
// together with the I/O errors, if any.
func (s *Session) fault(out *stream.Stream, err error) error {
	code := status.CodeOf(err)
	s.logger.Debug("fault",
		zap.Uint16("status", uint16(code)),
		zap.Stringer("state", s.state),
		zap.Error(err),
	)

	if ioerr := s.render(out, code); ioerr != nil {
		return errors.Join(err, ioerr)
	}

	return err
}

// render writes the canned response and closes the output.
func (s *Session) render(out *stream.Stream, code status.Code) (err error) {
	s.parser.Reset()
	err = s.serializer.Fault(code)

	if cerr := s.close(out, nil); cerr != nil {
		err = errors.Join(err, cerr)
	}

	return err
}

func (s *Session) close(out *stream.Stream, err error) error {
	s.state = Closed

	if cerr := out.Close(); cerr != nil {
		s.logger.Warn("closing output", zap.Error(cerr))
		if err == nil {
			err = fmt.Errorf("close output: %w", cerr)
		}
	}

	return err
}
