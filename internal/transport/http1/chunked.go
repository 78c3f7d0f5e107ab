package http1

import (
	"bytes"
	"io"

	"github.com/indigo-web/uweb/http/status"
	"github.com/indigo-web/uweb/internal/hexconv"
)

// maxChunkLengthDigits sets the implicit limit of a single chunk length to 4GiB, which
// is supposedly should be enough.
const maxChunkLengthDigits = 8

type chunkedParser struct {
	state        chunkedParserState
	lengthDigits uint8
	chunkLength  uint64
	delivered    uint64
}

func newChunkedParser() chunkedParser {
	return chunkedParser{state: eChunkLength}
}

// Parse returns a piece of chunk data as soon as any is available, together with its
// offset relative to the chunk, so zero offset marks the beginning of a new chunk. io.EOF
// signals that the body is complete. The parser resets automatically.
func (c *chunkedParser) Parse(data []byte) (chunk []byte, offset uint64, extra []byte, err error) {
	switch c.state {
	case eChunkLength:
		goto chunkLength
	case eChunkExt:
		goto chunkExt
	case eChunkLengthCR:
		goto chunkLengthCR
	case eChunkBody:
		goto chunkBody
	case eChunkBodyDone:
		goto chunkBodyDone
	case eChunkBodyCRLF:
		goto chunkBodyCRLF
	case eChunkTrailer:
		goto trailer
	case eChunkTrailerCRLF:
		goto chunkTrailerCRLF
	case eChunkTrailerFieldLine:
		goto chunkTrailerFieldLine
	default:
		panic("unreachable code")
	}

chunkLength:
	for i := 0; i < len(data); i++ {
		switch char := data[i]; char {
		case '\r':
			if c.lengthDigits == 0 {
				return nil, 0, nil, status.ErrBadChunk
			}

			data = data[i+1:]
			goto chunkLengthCR
		case '\n':
			if c.lengthDigits == 0 {
				return nil, 0, nil, status.ErrBadChunk
			}

			data = data[i:]
			goto chunkLengthCR
		case ';', ' ', '\t':
			if c.lengthDigits == 0 {
				return nil, 0, nil, status.ErrBadChunk
			}

			data = data[i+1:]
			goto chunkExt
		default:
			val := hexconv.Halfbyte[char]
			if val == 0xFF {
				return nil, 0, nil, status.ErrBadChunk
			}

			c.chunkLength = (c.chunkLength << 4) | uint64(val)
			if c.lengthDigits++; c.lengthDigits > maxChunkLengthDigits {
				return nil, 0, nil, status.ErrBadChunk
			}
		}
	}

	c.state = eChunkLength
	return nil, 0, nil, nil

chunkExt:
	{
		// chunk extensions aren't supported, therefore completely ignored.
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			c.state = eChunkExt
			return nil, 0, nil, nil
		}

		data = data[lf+1:]
		if c.chunkLength == 0 {
			goto trailer
		}

		c.delivered = 0
		goto chunkBody
	}

chunkLengthCR:
	if len(data) == 0 {
		c.state = eChunkLengthCR
		return nil, 0, nil, nil
	}

	if data[0] != '\n' {
		return nil, 0, nil, status.ErrBadChunk
	}

	data = data[1:]

	if c.chunkLength == 0 {
		goto trailer
	}

	c.delivered = 0
	goto chunkBody

chunkBody:
	{
		n := min(c.chunkLength, uint64(len(data)))
		c.chunkLength -= n
		chunk, offset = data[:n], c.delivered
		c.delivered += n

		if c.chunkLength == 0 {
			c.state = eChunkBodyDone
		} else {
			c.state = eChunkBody
		}

		return chunk, offset, data[n:], nil
	}

chunkBodyDone:
	// omit len(data) == 0 check, as we only jump here from the dispatch, which in turn is executed
	// on new data, which is implied to never be empty.
	c.lengthDigits = 0
	switch data[0] {
	case '\r':
		data = data[1:]
		goto chunkBodyCRLF
	case '\n':
		data = data[1:]
		goto chunkLength
	default:
		return nil, 0, nil, status.ErrBadChunk
	}

chunkBodyCRLF:
	if len(data) == 0 {
		c.state = eChunkBodyCRLF
		return nil, 0, nil, nil
	}

	if data[0] != '\n' {
		return nil, 0, nil, status.ErrBadChunk
	}

	data = data[1:]
	goto chunkLength

trailer:
	if len(data) == 0 {
		c.state = eChunkTrailer
		return nil, 0, nil, nil
	}

	switch data[0] {
	case '\r':
		data = data[1:]
		goto chunkTrailerCRLF
	case '\n':
		c.reset()
		return nil, 0, data[1:], io.EOF
	default:
		// trailer field lines are skipped
		goto chunkTrailerFieldLine
	}

chunkTrailerCRLF:
	if len(data) == 0 {
		c.state = eChunkTrailerCRLF
		return nil, 0, nil, nil
	}

	if data[0] != '\n' {
		return nil, 0, nil, status.ErrBadChunk
	}

	c.reset()
	return nil, 0, data[1:], io.EOF

chunkTrailerFieldLine:
	{
		lf := bytes.IndexByte(data, '\n')
		if lf == -1 {
			c.state = eChunkTrailerFieldLine
			return nil, 0, nil, nil
		}

		data = data[lf+1:]
		goto trailer
	}
}

func (c *chunkedParser) reset() {
	*c = newChunkedParser()
}
