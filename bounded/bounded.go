// Package bounded implements fixed-capacity strings. The storage is allocated once and
// never grows: values exceeding the capacity are truncated, and the truncation is recorded.
package bounded

import (
	"github.com/indigo-web/utils/strcomp"
	"github.com/indigo-web/utils/uf"
)

// String is a fixed-capacity byte string. One byte of the capacity is reserved for the
// NUL terminator, which is always kept right after the logical content, so the value
// can be handed to C-like consumers as is.
type String struct {
	memory    []byte
	length    int
	truncated bool
}

// New allocates a string of the given capacity. Capacities below 1 are raised to 1,
// leaving room for the terminator only.
func New(capacity int) String {
	if capacity < 1 {
		capacity = 1
	}

	return String{memory: make([]byte, capacity)}
}

// Append writes as much of b as fits and reports whether all of it did. Once a string
// is truncated, it stays truncated until Reset.
func (s *String) Append(b []byte) (ok bool) {
	free := s.Max() - s.length
	if free < 0 {
		free = 0
	}

	ok = len(b) <= free
	if !ok {
		b = b[:free]
		s.truncated = true
	}

	s.length += copy(s.memory[s.length:], b)
	s.terminate()

	return ok
}

// AppendByte writes a single byte, if it fits.
func (s *String) AppendByte(c byte) (ok bool) {
	if s.length >= s.Max() {
		s.truncated = true
		return false
	}

	s.memory[s.length] = c
	s.length++
	s.terminate()

	return true
}

// Set replaces the content.
func (s *String) Set(str string) (ok bool) {
	s.Reset()
	return s.Append(uf.S2B(str))
}

// TrimRight drops trailing bytes for which the predicate holds.
func (s *String) TrimRight(predicate func(c byte) bool) {
	for s.length > 0 && predicate(s.memory[s.length-1]) {
		s.length--
	}

	s.terminate()
}

// Reset empties the string and clears the truncation mark.
func (s *String) Reset() {
	s.length = 0
	s.truncated = false
	s.terminate()
}

// Bytes returns the logical content. The slice is valid until the next modification.
func (s *String) Bytes() []byte {
	return s.memory[:s.length]
}

// CString returns the content together with the trailing NUL byte.
func (s *String) CString() []byte {
	if len(s.memory) == 0 {
		return nil
	}

	return s.memory[:s.length+1]
}

// String returns a copy of the content.
func (s *String) String() string {
	return string(s.Bytes())
}

// Unsafe returns the content as a string without copying. The returned value changes
// together with the String, so it must not outlive the current request.
func (s *String) Unsafe() string {
	return uf.B2S(s.Bytes())
}

// EqualFold compares the content with str case-insensitively.
func (s *String) EqualFold(str string) bool {
	return strcomp.EqualFold(s.Unsafe(), str)
}

// Len returns the length of the content.
func (s *String) Len() int {
	return s.length
}

// Cap returns the declared capacity, including the terminator.
func (s *String) Cap() int {
	return len(s.memory)
}

// Max returns the longest content the string can hold.
func (s *String) Max() int {
	return len(s.memory) - 1
}

// Truncated tells whether any bytes were dropped since the last Reset.
func (s *String) Truncated() bool {
	return s.truncated
}

func (s *String) terminate() {
	if s.length < len(s.memory) {
		s.memory[s.length] = 0
	}
}
