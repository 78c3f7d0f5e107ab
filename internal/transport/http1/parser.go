package http1

import (
	"bytes"
	"fmt"
	"math"

	"github.com/indigo-web/uweb/bounded"
	"github.com/indigo-web/uweb/config"
	"github.com/indigo-web/uweb/http"
	"github.com/indigo-web/uweb/http/method"
	"github.com/indigo-web/uweb/http/proto"
	"github.com/indigo-web/uweb/http/status"
	"github.com/indigo-web/uweb/internal/transport"
)

// Parser is a stream-based http requests parser. It fills the request header by pointer,
// keeping only the fields it recognizes, so the memory it needs never depends on the
// input. When headers are parsed, the parser returns transport.HeadersCompleted, attaching
// all the pending data as an extra. Body must be processed separately.
type Parser struct {
	request *http.RequestHeader
	// token accumulates the method, the protocol version, header names and transfer codings.
	token          bounded.String
	value          *bounded.String
	contentLength  uint64
	hasDigits      bool
	digitsEnded    bool
	codingParams   bool
	rejectOverflow bool
	state          parserState
}

func NewParser(request *http.RequestHeader, bounds config.Bounds) *Parser {
	return &Parser{
		request:        request,
		token:          bounded.New(bounds.Token),
		rejectOverflow: bounds.RejectOverflow,
		state:          eMethod,
	}
}

func (p *Parser) Parse(data []byte) (state transport.RequestState, extra []byte, err error) {
	request := p.request

	switch p.state {
	case eMethod:
		goto method
	case eResource:
		goto resource
	case eProto:
		goto protocol
	case eHeaderKey:
		goto headerKey
	case eHeaderValue:
		goto headerValue
	case eContentLength:
		goto contentLength
	case eTransferEncoding:
		goto transferEncoding
	case eSkipHeaderValue:
		goto skipHeaderValue
	case eHeadersCR:
		goto headersCR
	default:
		panic(fmt.Sprintf("BUG: unexpected state: %v", p.state))
	}

method:
	for i := 0; i < len(data); i++ {
		switch char := data[i]; char {
		case ' ':
			if p.token.Len() == 0 {
				return transport.Error, nil, status.ErrBadRequestLine
			}

			request.Method = method.ParseBytes(p.token.Bytes())
			p.token.Reset()
			data = data[i+1:]
			p.state = eResource
			goto resource
		case '\r', '\n':
			if p.token.Len() == 0 {
				// empty lines preceding the request line
				continue
			}

			return transport.Error, nil, status.ErrBadRequestLine
		default:
			if isControl(char) {
				return transport.Error, nil, status.ErrBadRequestLine
			}

			// the longest known method fits the token, so a truncated one is just unknown
			p.token.AppendByte(char)
		}
	}

	p.state = eMethod
	return transport.Pending, nil, nil

resource:
	for i := 0; i < len(data); i++ {
		switch char := data[i]; char {
		case ' ':
			if isEmpty(&request.Resource) {
				continue
			}

			if p.rejectOverflow && request.Resource.Truncated() {
				return transport.Error, nil, status.ErrTruncated
			}

			data = data[i+1:]
			p.state = eProto
			goto protocol
		case '\r', '\n':
			// either the request-target or the version is missing
			return transport.Error, nil, status.ErrBadRequestLine
		default:
			if isControl(char) {
				return transport.Error, nil, status.ErrBadRequestLine
			}

			request.Resource.AppendByte(char)
		}
	}

	return transport.Pending, nil, nil

protocol:
	for i := 0; i < len(data); i++ {
		switch char := data[i]; char {
		case '\r', ' ', '\t':
		case '\n':
			if p.token.Len() == 0 {
				return transport.Error, nil, status.ErrBadRequestLine
			}

			request.Proto = proto.FromBytes(p.token.Bytes())
			p.token.Reset()
			data = data[i+1:]
			p.state = eHeaderKey
			goto headerKey
		default:
			p.token.AppendByte(char)
		}
	}

	return transport.Pending, nil, nil

headerKey:
	for i := 0; i < len(data); i++ {
		switch char := data[i]; char {
		case ':':
			kind := p.recognize()
			p.token.Reset()
			data = data[i+1:]

			switch kind {
			case hHost:
				p.value = &request.Host
			case hContentType:
				p.value = &request.ContentType
			case hConnection:
				p.value = &request.Connection
			case hContentLength:
				p.contentLength = 0
				p.hasDigits, p.digitsEnded = false, false
				p.state = eContentLength
				goto contentLength
			case hTransferEncoding:
				p.codingParams = false
				p.state = eTransferEncoding
				goto transferEncoding
			default:
				p.state = eSkipHeaderValue
				goto skipHeaderValue
			}

			p.value.Reset()
			p.state = eHeaderValue
			goto headerValue
		case '\r':
			if !isEmpty(&p.token) {
				return transport.Error, nil, status.ErrBadHeader
			}

			data = data[i+1:]
			p.state = eHeadersCR
			goto headersCR
		case '\n':
			if !isEmpty(&p.token) {
				return transport.Error, nil, status.ErrBadHeader
			}

			p.reset()
			return transport.HeadersCompleted, data[i+1:], nil
		default:
			p.token.AppendByte(char)
		}
	}

	p.state = eHeaderKey
	return transport.Pending, nil, nil

headerValue:
	for i := 0; i < len(data); i++ {
		if char := data[i]; char != '\n' {
			appendValueByte(p.value, char)
			continue
		}

		p.value.TrimRight(isBlank)
		if p.rejectOverflow && p.value.Truncated() {
			return transport.Error, nil, status.ErrTruncated
		}

		data = data[i+1:]
		p.state = eHeaderKey
		goto headerKey
	}

	return transport.Pending, nil, nil

contentLength:
	for i := 0; i < len(data); i++ {
		switch char := data[i]; char {
		case ' ', '\t', '\r':
			p.digitsEnded = p.hasDigits
		case '\n':
			if !p.hasDigits {
				return transport.Error, nil, status.ErrBadContentLength
			}

			request.ContentLength = p.contentLength
			request.HasContentLength = true
			data = data[i+1:]
			p.state = eHeaderKey
			goto headerKey
		default:
			if char < '0' || char > '9' || p.digitsEnded {
				return transport.Error, nil, status.ErrBadContentLength
			}

			digit := uint64(char - '0')
			if p.contentLength > (math.MaxUint64-digit)/10 {
				return transport.Error, nil, status.ErrBadContentLength
			}

			p.contentLength = p.contentLength*10 + digit
			p.hasDigits = true
		}
	}

	return transport.Pending, nil, nil

transferEncoding:
	for i := 0; i < len(data); i++ {
		switch char := data[i]; char {
		case ' ', '\t', '\r':
		case ';':
			p.codingParams = true
		case ',':
			p.coding()
		case '\n':
			p.coding()
			data = data[i+1:]
			p.state = eHeaderKey
			goto headerKey
		default:
			if !p.codingParams {
				p.token.AppendByte(char)
			}
		}
	}

	return transport.Pending, nil, nil

skipHeaderValue:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			return transport.Pending, nil, nil
		}

		data = data[lf+1:]
		p.state = eHeaderKey
		goto headerKey
	}

headersCR:
	if len(data) == 0 {
		return transport.Pending, nil, nil
	}

	if data[0] != '\n' {
		return transport.Error, nil, status.ErrBadHeader
	}

	p.reset()
	return transport.HeadersCompleted, data[1:], nil
}

// recognize tells which of the stored headers the token names. Names that didn't fit
// the token can't be any of them.
func (p *Parser) recognize() headerKind {
	if p.token.Truncated() {
		return hUnknown
	}

	switch p.token.Len() {
	case len("host"):
		if p.token.EqualFold("host") {
			return hHost
		}
	case len("connection"):
		if p.token.EqualFold("connection") {
			return hConnection
		}
	case len("content-type"):
		if p.token.EqualFold("content-type") {
			return hContentType
		}
	case len("content-length"):
		if p.token.EqualFold("content-length") {
			return hContentLength
		}
	case len("transfer-encoding"):
		if p.token.EqualFold("transfer-encoding") {
			return hTransferEncoding
		}
	}

	return hUnknown
}

// coding completes a single transfer coding of the Transfer-Encoding value.
func (p *Parser) coding() {
	if !p.token.Truncated() && p.token.EqualFold("chunked") {
		p.request.Chunked = true
	}

	p.token.Reset()
	p.codingParams = false
}

// InRequestLine tells whether the request line is still being parsed.
func (p *Parser) InRequestLine() bool {
	return p.state == eMethod || p.state == eResource || p.state == eProto
}

// Reset drops the state of an unfinished request.
func (p *Parser) Reset() {
	p.reset()
}

func (p *Parser) reset() {
	p.token.Reset()
	p.value = nil
	p.contentLength = 0
	p.hasDigits, p.digitsEnded = false, false
	p.codingParams = false
	p.state = eMethod
}

// appendValueByte appends a byte of a header value, dropping leading blanks and CRs.
// Trailing blanks are expected to be trimmed when the line ends. A blank that doesn't fit
// doesn't mark the value as truncated, as it might turn out to be a trailing one.
func appendValueByte(value *bounded.String, char byte) {
	switch char {
	case '\r':
	case ' ', '\t':
		if value.Len() > 0 && value.Len() < value.Max() {
			value.AppendByte(char)
		}
	default:
		value.AppendByte(char)
	}
}

func isEmpty(str *bounded.String) bool {
	return str.Len() == 0 && !str.Truncated()
}

func isBlank(char byte) bool {
	return char == ' ' || char == '\t' || char == '\r'
}

func isControl(char byte) bool {
	return char < 0x20 || char == 0x7f
}
