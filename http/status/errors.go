package status

import "errors"

type HTTPError struct {
	Message string
	Code    Code
}

func NewError(code Code, message string) error {
	return HTTPError{
		Code:    code,
		Message: message,
	}
}

func (h HTTPError) Error() string {
	return h.Message
}

var (
	ErrBadRequest       = NewError(BadRequest, "bad request")
	ErrBadRequestLine   = NewError(BadRequest, "malformed request line")
	ErrBadHeader        = NewError(BadRequest, "malformed header line")
	ErrBadContentLength = NewError(BadRequest, "malformed content length")
	ErrBadChunk         = NewError(BadRequest, "malformed chunk-encoded data")
	ErrBadMultipart     = NewError(BadRequest, "malformed multipart data")
	ErrBodyTooShort     = NewError(BadRequest, "request body is shorter than declared")
	ErrURLDecoding      = NewError(BadRequest, "invalid urlencoded sequence")
	// ErrTruncated is returned only when rejecting values exceeding their bounds is enabled,
	// otherwise they're silently truncated.
	ErrTruncated            = NewError(BadRequest, "value exceeds its bounds")
	ErrMethodNotImplemented = NewError(NotImplemented, "request method is not supported")
	ErrRequestTimeout       = NewError(RequestTimeout, "request timeout")
)

// CodeOf returns the status code the error must be answered with. Errors other than
// HTTPError are considered to be caused by malformed input.
func CodeOf(err error) Code {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	return BadRequest
}
