package stream

import "errors"

// ErrFull is returned when a memory-backed stream has no free space left.
var ErrFull = errors.New("stream buffer is full")

// Discard returns a stream that reads nothing and swallows everything written.
func Discard() *Stream {
	return &Stream{TotalSize: UnknownSize}
}

// FromBytes returns a readable stream over data. Its AvailSize always equals the number of
// unread bytes.
func FromBytes(data []byte) *Stream {
	return Chunks(data)
}

// Chunks returns a readable stream yielding at most one piece per Read call. It's handy for
// emulating input arriving in several network packets.
func Chunks(pieces ...[]byte) *Stream {
	c := &chunks{pieces: pieces}
	total := 0
	for _, piece := range pieces {
		total += len(piece)
	}

	return &Stream{
		Handle:    c,
		TotalSize: total,
		AvailSize: total,
		ReadFunc:  c.read,
	}
}

type chunks struct {
	pieces [][]byte
}

func (c *chunks) read(s *Stream, dst []byte) (int, error) {
	for len(c.pieces) > 0 && len(c.pieces[0]) == 0 {
		c.pieces = c.pieces[1:]
	}

	if len(c.pieces) == 0 {
		return 0, nil
	}

	n := copy(dst, c.pieces[0])
	c.pieces[0] = c.pieces[0][n:]
	s.AvailSize -= n

	return n, nil
}

// Buffer is a fixed-capacity pipe: bytes written to it become available for reading. It
// serves as the default response body slot.
type Buffer struct {
	Stream
	memory     []byte
	head, tail int
}

// NewBuffer returns a pipe over the passed memory. The memory is never grown.
func NewBuffer(memory []byte) *Buffer {
	b := &Buffer{memory: memory[:cap(memory)]}
	b.Stream = Stream{
		Handle:    b,
		TotalSize: UnknownSize,
		ReadFunc:  readBuffer,
		WriteFunc: writeBuffer,
	}

	return b
}

// Bytes returns unread bytes without consuming them.
func (b *Buffer) Bytes() []byte {
	return b.memory[b.head:b.tail]
}

// Reset discards the content and reopens the stream.
func (b *Buffer) Reset() {
	b.head, b.tail = 0, 0
	b.Stream.Handle = b
	b.Stream.TotalSize = UnknownSize
	b.Stream.AvailSize = 0
	b.Stream.ReadFunc = readBuffer
	b.Stream.WriteFunc = writeBuffer
	b.Stream.CloseFunc = nil
	b.Stream.Reopen()
}

func readBuffer(s *Stream, dst []byte) (int, error) {
	b := s.Handle.(*Buffer)
	n := copy(dst, b.memory[b.head:b.tail])
	b.head += n
	if b.head == b.tail {
		b.head, b.tail = 0, 0
	}

	s.AvailSize = b.tail - b.head

	return n, nil
}

func writeBuffer(s *Stream, src []byte) (n int, err error) {
	b := s.Handle.(*Buffer)
	n = copy(b.memory[b.tail:], src)
	b.tail += n
	s.AvailSize = b.tail - b.head
	if n < len(src) {
		err = ErrFull
	}

	return n, err
}

// Sink is a write-only stream capturing everything written into a fixed memory region.
type Sink struct {
	Stream
	memory []byte
}

// NewSink returns a sink writing into memory, limited by its capacity.
func NewSink(memory []byte) *Sink {
	sink := &Sink{memory: memory[:0]}
	sink.Stream = Stream{
		Handle:    sink,
		TotalSize: UnknownSize,
		AvailSize: cap(memory),
		WriteFunc: writeSink,
	}

	return sink
}

// Bytes returns everything written so far.
func (s *Sink) Bytes() []byte {
	return s.memory
}

// String returns a copy of everything written so far.
func (s *Sink) String() string {
	return string(s.memory)
}

func writeSink(s *Stream, src []byte) (n int, err error) {
	sink := s.Handle.(*Sink)
	free := cap(sink.memory) - len(sink.memory)
	if len(src) > free {
		src, err = src[:free], ErrFull
	}

	sink.memory = append(sink.memory, src...)
	s.AvailSize = cap(sink.memory) - len(sink.memory)

	return len(src), err
}
