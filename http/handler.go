package http

// DataType tags the body data passed to a DataReceiver.
type DataType uint8

const (
	// DataContent is a plain body, delimited by the Content-Length.
	DataContent DataType = iota
	// DataChunk is a chunk of a chunked body.
	DataChunk
	// DataMultipart is the body of a multipart section.
	DataMultipart
)

func (d DataType) String() string {
	switch d {
	case DataContent:
		return "content"
	case DataChunk:
		return "chunk"
	case DataMultipart:
		return "multipart"
	default:
		return "unknown"
	}
}

// Responder produces the response. It's called once all the body was delivered. When
// MorePending is returned, it's called again for every next fragment.
type Responder interface {
	Respond(req *RequestHeader, resp *Response) Outcome
}

// ResponderFunc adapts an ordinary function to the Responder interface.
type ResponderFunc func(req *RequestHeader, resp *Response) Outcome

func (r ResponderFunc) Respond(req *RequestHeader, resp *Response) Outcome {
	return r(req, resp)
}

// DataReceiver consumes the body. The offset is relative to the whole body for DataContent,
// and to the current chunk or section otherwise. The last call for a body (or for a
// multipart section) carries nil data and zero offset.
//
// Data is only valid until the call returns.
type DataReceiver interface {
	OnData(req *RequestHeader, typ DataType, offset uint64, data []byte)
}

// DataFunc adapts an ordinary function to the DataReceiver interface.
type DataFunc func(req *RequestHeader, typ DataType, offset uint64, data []byte)

func (d DataFunc) OnData(req *RequestHeader, typ DataType, offset uint64, data []byte) {
	d(req, typ, offset, data)
}

// DiscardData drops every body.
var DiscardData DataReceiver = DataFunc(func(*RequestHeader, DataType, uint64, []byte) {})
