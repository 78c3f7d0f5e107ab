package http1

import (
	"bytes"
	"fmt"

	"github.com/indigo-web/uweb/bounded"
	"github.com/indigo-web/uweb/config"
	"github.com/indigo-web/uweb/http"
	"github.com/indigo-web/uweb/http/status"
	"github.com/indigo-web/utils/uf"
)

// maxBoundaryLength is the limit set by RFC 2046, 5.1.1.
const maxBoundaryLength = 70

// delimiterPrefix precedes the boundary in every delimiter. The first delimiter may come
// without the CRLF, if there's no preamble.
var delimiterPrefix = []byte("\r\n--")

// multipartParser demultiplexes a multipart body, already decoded from its transfer framing.
// The delimiter is matched byte by byte, so a delimiter spread over several pieces of data
// needs no buffering: when a partial match fails, the matched bytes are re-emitted from
// the delimiter itself.
type multipartParser struct {
	request  *http.RequestHeader
	receiver http.DataReceiver
	boundary []byte
	token    bounded.String
	value    *bounded.String
	// matched is the number of delimiter bytes matched so far.
	matched        int
	offset         uint64
	rejectOverflow bool
	state          multipartState
}

func newMultipartParser(
	request *http.RequestHeader, receiver http.DataReceiver, bounds config.Bounds,
) multipartParser {
	return multipartParser{
		request:        request,
		receiver:       receiver,
		token:          bounded.New(bounds.Token),
		rejectOverflow: bounds.RejectOverflow,
	}
}

// Reset prepares the parser for a new body. The boundary must stay valid until the body
// is parsed.
func (m *multipartParser) Reset(boundary string) error {
	if len(boundary) > maxBoundaryLength || bytes.ContainsAny(uf.S2B(boundary), "\r\n") {
		return status.ErrBadMultipart
	}

	m.boundary = uf.S2B(boundary)
	m.token.Reset()
	m.value = nil
	m.offset = 0
	m.state = eMultipartPreamble
	// skip the CRLF, as the first delimiter may be at the very beginning
	m.matched = 2

	return nil
}

// Feed consumes the next piece of the body.
func (m *multipartParser) Feed(data []byte) error {
	switch m.state {
	case eMultipartPreamble:
		goto preamble
	case eMultipartDelimiterEnd:
		goto delimiterEnd
	case eMultipartCloseDash:
		goto closeDash
	case eMultipartDelimiterCR:
		goto delimiterCR
	case eMultipartHeaderKey:
		goto headerKey
	case eMultipartHeaderValue:
		goto headerValue
	case eMultipartSkipHeaderValue:
		goto skipHeaderValue
	case eMultipartHeadersCR:
		goto headersCR
	case eMultipartBody:
		goto body
	case eMultipartEpilogue:
		return nil
	default:
		panic(fmt.Sprintf("BUG: unexpected state: %v", m.state))
	}

preamble:
	for i := 0; i < len(data); i++ {
		if m.match(data[i]) {
			data = data[i+1:]
			m.state = eMultipartDelimiterEnd
			goto delimiterEnd
		}
	}

	return nil

delimiterEnd:
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case ' ', '\t':
			// transport padding
		case '-':
			data = data[i+1:]
			m.state = eMultipartCloseDash
			goto closeDash
		case '\r':
			data = data[i+1:]
			m.state = eMultipartDelimiterCR
			goto delimiterCR
		case '\n':
			data = data[i+1:]
			m.beginPart()
			goto headerKey
		default:
			return status.ErrBadMultipart
		}
	}

	return nil

closeDash:
	if len(data) == 0 {
		return nil
	}

	if data[0] != '-' {
		return status.ErrBadMultipart
	}

	// the epilogue is discarded
	m.state = eMultipartEpilogue
	return nil

delimiterCR:
	if len(data) == 0 {
		return nil
	}

	if data[0] != '\n' {
		return status.ErrBadMultipart
	}

	data = data[1:]
	m.beginPart()
	goto headerKey

headerKey:
	for i := 0; i < len(data); i++ {
		switch char := data[i]; char {
		case ':':
			m.value = m.recognize()
			m.token.Reset()
			data = data[i+1:]

			if m.value == nil {
				m.state = eMultipartSkipHeaderValue
				goto skipHeaderValue
			}

			m.value.Reset()
			m.state = eMultipartHeaderValue
			goto headerValue
		case '\r':
			if !isEmpty(&m.token) {
				return status.ErrBadMultipart
			}

			data = data[i+1:]
			m.state = eMultipartHeadersCR
			goto headersCR
		case '\n':
			if !isEmpty(&m.token) {
				return status.ErrBadMultipart
			}

			data = data[i+1:]
			m.state = eMultipartBody
			goto body
		default:
			m.token.AppendByte(char)
		}
	}

	m.state = eMultipartHeaderKey
	return nil

headerValue:
	for i := 0; i < len(data); i++ {
		if char := data[i]; char != '\n' {
			appendValueByte(m.value, char)
			continue
		}

		m.value.TrimRight(isBlank)
		if m.rejectOverflow && m.value.Truncated() {
			return status.ErrTruncated
		}

		data = data[i+1:]
		m.state = eMultipartHeaderKey
		goto headerKey
	}

	return nil

skipHeaderValue:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			return nil
		}

		data = data[lf+1:]
		m.state = eMultipartHeaderKey
		goto headerKey
	}

headersCR:
	if len(data) == 0 {
		return nil
	}

	if data[0] != '\n' {
		return status.ErrBadMultipart
	}

	data = data[1:]
	m.state = eMultipartBody
	goto body

body:
	{
		// start is the beginning of the data which is neither emitted yet nor matched
		start := 0

		for i := 0; i < len(data); i++ {
			char := data[i]
			if char == m.delimiterAt(m.matched) {
				if m.matched == 0 {
					m.emit(data[start:i])
				}

				if m.matched++; m.matched == m.delimiterLen() {
					m.matched = 0
					m.receiver.OnData(m.request, http.DataMultipart, 0, nil)
					data = data[i+1:]
					m.state = eMultipartDelimiterEnd
					goto delimiterEnd
				}

				continue
			}

			if m.matched > 0 {
				m.emitMatched()
				m.matched = 0
				start = i

				if char == m.delimiterAt(0) {
					m.matched = 1
				}
			}
		}

		if m.matched == 0 {
			m.emit(data[start:])
		}

		return nil
	}
}

// Finish reports whether the body ended where it was supposed to.
func (m *multipartParser) Finish() error {
	if m.state != eMultipartEpilogue {
		return status.ErrBadMultipart
	}

	return nil
}

func (m *multipartParser) beginPart() {
	m.request.Multipart.Nbr++
	m.request.Multipart.ContentType.Reset()
	m.request.Multipart.ContentDisposition.Reset()
	m.token.Reset()
	m.offset = 0
	m.state = eMultipartHeaderKey
}

func (m *multipartParser) recognize() *bounded.String {
	if m.token.Truncated() {
		return nil
	}

	switch {
	case m.token.EqualFold("content-type"):
		return &m.request.Multipart.ContentType
	case m.token.EqualFold("content-disposition"):
		return &m.request.Multipart.ContentDisposition
	default:
		return nil
	}
}

// match advances the delimiter matching without emitting anything.
func (m *multipartParser) match(char byte) (found bool) {
	if char != m.delimiterAt(m.matched) {
		m.matched = 0
		if char != m.delimiterAt(0) {
			return false
		}
	}

	if m.matched++; m.matched == m.delimiterLen() {
		m.matched = 0
		return true
	}

	return false
}

// delimiterAt returns the i-th byte of the delimiter. As the boundary is guaranteed to
// contain no CR, a failed partial match can only restart at the current byte.
func (m *multipartParser) delimiterAt(i int) byte {
	if i < len(delimiterPrefix) {
		return delimiterPrefix[i]
	}

	return m.boundary[i-len(delimiterPrefix)]
}

func (m *multipartParser) delimiterLen() int {
	return len(delimiterPrefix) + len(m.boundary)
}

// emitMatched emits the bytes of a partial match, which turned out to be the part's data.
func (m *multipartParser) emitMatched() {
	if m.matched <= len(delimiterPrefix) {
		m.emit(delimiterPrefix[:m.matched])
		return
	}

	m.emit(delimiterPrefix)
	m.emit(m.boundary[:m.matched-len(delimiterPrefix)])
}

func (m *multipartParser) emit(data []byte) {
	if len(data) == 0 {
		return
	}

	m.receiver.OnData(m.request, http.DataMultipart, m.offset, data)
	m.offset += uint64(len(data))
}
