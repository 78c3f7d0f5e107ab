// Package urlencoded implements percent-encoding over bounded buffers. The functions
// are pure: they never allocate and never write past the destination.
package urlencoded

import (
	"github.com/indigo-web/uweb/bounded"
	"github.com/indigo-web/uweb/http/status"
	"github.com/indigo-web/uweb/internal/hexconv"
)

// Decode decodes src into dst and returns the number of bytes written. When dst is too
// small, the result is truncated and status.ErrTruncated is returned. dst may share memory
// with src (e.g. src[:0:cap(src)]), as the decoded form is never longer than the encoded one.
func Decode(dst, src []byte) (n int, err error) {
	return decode(dst, src, false)
}

// ExtendedDecode is the same as Decode, but on top also decodes + as spaces, as
// application/x-www-form-urlencoded requires.
func ExtendedDecode(dst, src []byte) (n int, err error) {
	return decode(dst, src, true)
}

func decode(dst, src []byte, plus bool) (n int, err error) {
	for i := 0; i < len(src); i++ {
		c := src[i]

		switch {
		case c == '%':
			if len(src)-i < 3 {
				return n, status.ErrURLDecoding
			}

			a, b := hexconv.Halfbyte[src[i+1]], hexconv.Halfbyte[src[i+2]]
			if a|b > 0x0f {
				return n, status.ErrURLDecoding
			}

			c = (a << 4) | b
			i += 2
		case c == '+' && plus:
			c = ' '
		}

		if n >= len(dst) {
			return n, status.ErrTruncated
		}

		dst[n] = c
		n++
	}

	return n, nil
}

// Encode escapes every byte of src except unreserved characters (RFC 3986, 2.3) and
// returns the number of bytes written into dst. An escape sequence is never split: when it
// doesn't fit, encoding stops and status.ErrTruncated is returned.
func Encode(dst, src []byte) (n int, err error) {
	for _, c := range src {
		if Unreserved(c) {
			if n >= len(dst) {
				return n, status.ErrTruncated
			}

			dst[n] = c
			n++
			continue
		}

		if len(dst)-n < 3 {
			return n, status.ErrTruncated
		}

		dst[n] = '%'
		dst[n+1] = hexconv.Upper[c>>4]
		dst[n+2] = hexconv.Upper[c&0x0f]
		n += 3
	}

	return n, nil
}

// EncodedLen returns the length src would take when encoded.
func EncodedLen(src []byte) (n int) {
	for _, c := range src {
		if Unreserved(c) {
			n++
		} else {
			n += 3
		}
	}

	return n
}

// Unreserved tells whether the character is allowed in a URI without escaping.
func Unreserved(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	default:
		return false
	}
}

// DecodeInto decodes src, replacing the content of the bounded string. Overflowing bytes
// are dropped and reported via the string's Truncated mark.
func DecodeInto(into *bounded.String, src []byte) error {
	into.Reset()

	for i := 0; i < len(src); i++ {
		c := src[i]
		if c == '%' {
			if len(src)-i < 3 {
				return status.ErrURLDecoding
			}

			a, b := hexconv.Halfbyte[src[i+1]], hexconv.Halfbyte[src[i+2]]
			if a|b > 0x0f {
				return status.ErrURLDecoding
			}

			c = (a << 4) | b
			i += 2
		}

		into.AppendByte(c)
	}

	return nil
}
