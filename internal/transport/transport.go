// Package transport holds definitions shared by protocol implementations.
package transport

// RequestState represents the state of the request's parsing
type RequestState uint8

const (
	Pending RequestState = iota + 1
	HeadersCompleted
	Error
)

func (r RequestState) String() string {
	switch r {
	case Pending:
		return "pending"
	case HeadersCompleted:
		return "headers completed"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}
