package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/indigo-web/uweb"
	"github.com/indigo-web/uweb/stream"
	"go.uber.org/zap"
)

// pending is the AvailSize of a connection input until the peer closes its side. The real
// amount of bytes isn't known until they are read.
const pending = 1

type connection struct {
	conn    net.Conn
	timeout time.Duration
}

// ConnStreams wraps the connection into an input and output stream pair. Every read from
// the input is limited by the timeout, if it's positive; exceeding it results in an error
// matching os.ErrDeadlineExceeded. Closing the output shuts down the writing side of the
// connection, if supported.
func ConnStreams(conn net.Conn, timeout time.Duration) (in, out *stream.Stream) {
	c := &connection{conn: conn, timeout: timeout}

	in = &stream.Stream{
		Handle:    c,
		TotalSize: stream.UnknownSize,
		AvailSize: pending,
		ReadFunc:  readConn,
	}

	out = &stream.Stream{
		Handle:    c,
		TotalSize: stream.UnknownSize,
		WriteFunc: writeConn,
		CloseFunc: closeConn,
	}

	return in, out
}

func readConn(s *stream.Stream, dst []byte) (int, error) {
	c := s.Handle.(*connection)
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return 0, err
		}
	}

	n, err := c.conn.Read(dst)
	if errors.Is(err, io.EOF) {
		s.AvailSize = 0
	}

	return n, err
}

func writeConn(s *stream.Stream, src []byte) (int, error) {
	return s.Handle.(*connection).conn.Write(src)
}

func closeConn(s *stream.Stream) error {
	type closeWriter interface {
		CloseWrite() error
	}

	if cw, ok := s.Handle.(*connection).conn.(closeWriter); ok {
		return cw.CloseWrite()
	}

	return nil
}

// Serve runs a single request cycle of the session over the connection. The session must
// belong to the engine. If the peer stays silent for longer than the configured read
// timeout, 408 Request Timeout is responded, and only a failure to deliver it is
// returned.
func Serve(engine *uweb.Engine, session *uweb.Session, conn net.Conn) error {
	logger := engine.Logger().With(zap.Stringer("remote", conn.RemoteAddr()))
	in, out := ConnStreams(conn, engine.Config().NET.ReadTimeout)

	err := session.Parse(in, out)
	if isTimeout(err) {
		logger.Debug("read timeout", zap.Stringer("state", session.State()))
		return session.Timeout(out)
	}

	if err != nil {
		logger.Debug("request failed", zap.Error(err))
	}

	return err
}

// Handle returns a connection handler serving the engine.
func Handle(engine *uweb.Engine) Handler {
	return func(conn net.Conn) {
		_ = Serve(engine, engine.NewSession(), conn)
	}
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
