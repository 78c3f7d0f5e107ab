package http1

import (
	"io"

	"github.com/indigo-web/uweb/config"
	"github.com/indigo-web/uweb/http"
)

// Body ingests the request body, delivering it to the data receiver. The framing is
// chosen by the request header: chunked coding wins over the Content-Length, and
// multipart data is demultiplexed on top of either of them.
type Body struct {
	request   *http.RequestHeader
	receiver  http.DataReceiver
	chunked   chunkedParser
	multipart multipartParser
	// isMultipart is cached, as the boundary lookup isn't free.
	isMultipart bool
	remaining   uint64
	offset      uint64
}

func NewBody(request *http.RequestHeader, receiver http.DataReceiver, bounds config.Bounds) *Body {
	return &Body{
		request:   request,
		receiver:  receiver,
		chunked:   newChunkedParser(),
		multipart: newMultipartParser(request, receiver, bounds),
	}
}

// Reset prepares the ingestion of a new body. Must be called right after the headers
// were parsed.
func (b *Body) Reset() error {
	b.chunked.reset()
	b.remaining = b.request.ContentLength
	b.offset = 0
	b.isMultipart = false

	if b.Empty() {
		return nil
	}

	if boundary := b.request.Boundary(); len(boundary) > 0 {
		if err := b.multipart.Reset(boundary); err != nil {
			return err
		}

		b.isMultipart = true
	}

	return nil
}

// Empty tells whether there's no body at all. It must still be fed once in order
// to deliver the terminal call.
func (b *Body) Empty() bool {
	return !b.request.Chunked && b.request.ContentLength == 0
}

// Multipart tells whether the body is being demultiplexed.
func (b *Body) Multipart() bool {
	return b.isMultipart
}

// Feed consumes the next piece of the body. When the body is complete, done is set and
// everything past it is returned as an extra.
func (b *Body) Feed(data []byte) (done bool, extra []byte, err error) {
	if b.request.Chunked {
		return b.feedChunked(data)
	}

	return b.feedContent(data)
}

func (b *Body) feedContent(data []byte) (done bool, extra []byte, err error) {
	n := min(b.remaining, uint64(len(data)))
	b.remaining -= n

	if err = b.deliver(http.DataContent, b.offset, data[:n]); err != nil {
		return false, nil, err
	}

	b.offset += n
	if b.remaining > 0 {
		return false, nil, nil
	}

	return true, data[n:], b.finish(http.DataContent)
}

func (b *Body) feedChunked(data []byte) (done bool, extra []byte, err error) {
	for len(data) > 0 {
		chunk, offset, rest, err := b.chunked.Parse(data)
		switch err {
		case nil:
		case io.EOF:
			return true, rest, b.finish(http.DataChunk)
		default:
			return false, nil, err
		}

		if len(chunk) > 0 && offset == 0 {
			b.request.ChunkNbr++
		}

		if err = b.deliver(http.DataChunk, offset, chunk); err != nil {
			return false, nil, err
		}

		data = rest
	}

	return false, nil, nil
}

func (b *Body) deliver(typ http.DataType, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	if b.isMultipart {
		return b.multipart.Feed(data)
	}

	b.receiver.OnData(b.request, typ, offset, data)
	return nil
}

// finish delivers the terminal call. Multipart bodies have one per section instead,
// so there's only to check that the closing delimiter was met.
func (b *Body) finish(typ http.DataType) error {
	if b.isMultipart {
		return b.multipart.Finish()
	}

	b.receiver.OnData(b.request, typ, 0, nil)
	return nil
}
