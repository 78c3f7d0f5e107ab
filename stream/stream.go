// Package stream defines the duplex byte stream the engine reads requests from and writes
// responses into. Streams are created and destroyed by the transport layer; the engine only
// borrows them for one request cycle.
package stream

import "errors"

// UnknownSize is the TotalSize of a stream whose size isn't known in advance.
const UnknownSize = -1

// ErrClosed is returned by operations on a closed stream.
var ErrClosed = errors.New("stream is closed")

type (
	ReadFunc  func(s *Stream, dst []byte) (int, error)
	WriteFunc func(s *Stream, src []byte) (int, error)
	CloseFunc func(s *Stream) error
)

// Stream is the byte stream handle. Hooks are supplied by the owner; a nil ReadFunc reads
// nothing and a nil WriteFunc swallows everything, so a stream with both of them nil is a
// valid discarding stream.
type Stream struct {
	// Handle is an opaque user value, e.g. a connection or a file.
	Handle any
	// TotalSize is the total size of the content the stream describes, or UnknownSize. It's
	// consulted when the response body is sent unchunked.
	TotalSize int
	// AvailSize is the number of bytes currently available to read. ReadFunc implementations
	// must keep it up to date. When responding with chunked data, zero means the fragment
	// is empty and therefore the response is over.
	AvailSize int
	// ReadOffset and WriteOffset are advanced on every Read and Write respectively. They
	// aren't used otherwise, so the owner may repurpose them.
	ReadOffset  int
	WriteOffset int

	ReadFunc  ReadFunc
	WriteFunc WriteFunc
	CloseFunc CloseFunc

	closed bool
}

// Read reads into dst, advancing the read offset.
func (s *Stream) Read(dst []byte) (n int, err error) {
	if s.closed {
		return 0, ErrClosed
	}

	if s.ReadFunc == nil || len(dst) == 0 {
		return 0, nil
	}

	n, err = s.ReadFunc(s, dst)
	if n > 0 {
		s.ReadOffset += n
	}

	return n, err
}

// Write writes src, advancing the write offset.
func (s *Stream) Write(src []byte) (n int, err error) {
	if s.closed {
		return 0, ErrClosed
	}

	if s.WriteFunc == nil {
		s.WriteOffset += len(src)
		return len(src), nil
	}

	n, err = s.WriteFunc(s, src)
	if n > 0 {
		s.WriteOffset += n
	}

	return n, err
}

// WriteAll writes src entirely, treating a short write without an error as a failure.
func (s *Stream) WriteAll(src []byte) error {
	for len(src) > 0 {
		n, err := s.Write(src)
		if err != nil {
			return err
		}

		if n <= 0 {
			return ErrShortWrite
		}

		src = src[n:]
	}

	return nil
}

// ErrShortWrite is returned by WriteAll when the stream stops accepting bytes.
var ErrShortWrite = errors.New("stream accepts no more bytes")

// Close flushes and closes the stream. CloseFunc is invoked at most once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	if s.CloseFunc == nil {
		return nil
	}

	return s.CloseFunc(s)
}

// Closed tells whether Close was called.
func (s *Stream) Closed() bool {
	return s.closed
}

// Available returns the number of bytes available to read.
func (s *Stream) Available() int {
	return s.AvailSize
}

// Reopen clears the closed mark and the offsets, so the stream can be reused for the
// next request cycle.
func (s *Stream) Reopen() {
	s.closed = false
	s.ReadOffset, s.WriteOffset = 0, 0
}
