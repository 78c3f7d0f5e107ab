package method

import "github.com/indigo-web/utils/uf"

//go:generate stringer -type=Method
type Method uint8

const (
	// Unknown is any token that isn't one of the supported methods. It isn't rejected while
	// parsing, but answered with 501 Not Implemented once the headers are complete.
	Unknown Method = iota
	GET
	HEAD
	POST
	PUT
	DELETE
	CONNECT
	OPTIONS
	TRACE
	PATCH
)

// Parse matches the token case-sensitively, as method names are case-sensitive.
func Parse(str string) Method {
	switch len(str) {
	case 3:
		if str == "GET" {
			return GET
		} else if str == "PUT" {
			return PUT
		}
	case 4:
		if str == "POST" {
			return POST
		} else if str == "HEAD" {
			return HEAD
		}
	case 5:
		if str == "PATCH" {
			return PATCH
		} else if str == "TRACE" {
			return TRACE
		}
	case 6:
		if str == "DELETE" {
			return DELETE
		}
	case 7:
		if str == "CONNECT" {
			return CONNECT
		} else if str == "OPTIONS" {
			return OPTIONS
		}
	}

	return Unknown
}

// ParseBytes is Parse for raw tokens.
func ParseBytes(token []byte) Method {
	return Parse(uf.B2S(token))
}
