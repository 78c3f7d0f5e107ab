package http1

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/indigo-web/chunkedbody"
	"github.com/indigo-web/uweb/config"
	"github.com/indigo-web/uweb/http"
	"github.com/indigo-web/uweb/http/method"
	"github.com/indigo-web/uweb/http/mime"
	"github.com/indigo-web/uweb/http/status"
	"github.com/indigo-web/uweb/stream"
	"github.com/stretchr/testify/require"
)

func getSerializer(transmit int) (*Serializer, *stream.Sink) {
	sink := stream.NewSink(make([]byte, 0, 1<<20))
	serializer := NewSerializer(make([]byte, 0, transmit), config.Default())
	serializer.Reset(&sink.Stream)

	return serializer, sink
}

func newResponse() *http.Response {
	return http.NewResponse(64, stream.NewBuffer(make([]byte, 256)))
}

func newRequest(m method.Method) *http.RequestHeader {
	req := http.NewRequestHeader(config.Default().Bounds)
	req.Method = m
	return req
}

// script is a responder writing the next fragment on every call.
type script struct {
	fragments []string
	outcomes  []http.Outcome
	calls     int
}

func (s *script) Respond(_ *http.RequestHeader, resp *http.Response) http.Outcome {
	i := s.calls
	s.calls++
	if i > 0 {
		// must have no effect, as headers are already sent
		resp.Status = status.InternalServerError
		resp.ContentType.Set(mime.JSON)
	}

	_, _ = resp.String(s.fragments[i])
	return s.outcomes[i]
}

func drive(
	t *testing.T, serializer *Serializer, req *http.RequestHeader, resp *http.Response, responder http.Responder,
) http.Outcome {
	outcome, err := serializer.Write(req, resp, responder.Respond(req, resp), responder)
	require.NoError(t, err)
	return outcome
}

func decodeChunked(t *testing.T, data []byte) string {
	parser := chunkedbody.NewParser(chunkedbody.DefaultSettings())
	var body []byte

	for len(data) > 0 {
		chunk, extra, err := parser.Parse(data, false)
		if err != nil {
			require.EqualError(t, err, io.EOF.Error())
			return string(body)
		}

		body = append(body, chunk...)
		data = extra
	}

	t.Fatal("no final chunk")
	return ""
}

func TestSerializerComplete(t *testing.T) {
	t.Run("hello world", func(t *testing.T) {
		serializer, sink := getSerializer(2048)
		responder := http.ResponderFunc(func(_ *http.RequestHeader, resp *http.Response) http.Outcome {
			_, _ = resp.String("Hello, world!")
			return http.Complete()
		})

		outcome := drive(t, serializer, newRequest(method.GET), newResponse(), responder)
		require.Equal(t, 13, outcome.Written())
		require.Equal(t,
			"HTTP/1.1 200 OK\r\n"+
				"Server: uWeb\r\n"+
				"Content-Type: text/plain\r\n"+
				"Content-Length: 13\r\n"+
				"\r\n"+
				"Hello, world!",
			sink.String(),
		)
	})

	t.Run("custom status and headers", func(t *testing.T) {
		serializer, sink := getSerializer(2048)
		responder := http.ResponderFunc(func(_ *http.RequestHeader, resp *http.Response) http.Outcome {
			resp.Status = status.NotFound
			resp.ContentType.Set(mime.HTML)
			resp.Header("Cache-Control", "no-cache").Header("X-Powered-By", "uweb")
			return http.Complete()
		})

		drive(t, serializer, newRequest(method.GET), newResponse(), responder)
		require.Equal(t,
			"HTTP/1.1 404 Not Found\r\n"+
				"Server: uWeb\r\n"+
				"Content-Type: text/html\r\n"+
				"Content-Length: 0\r\n"+
				"Cache-Control: no-cache\r\n"+
				"X-Powered-By: uweb\r\n"+
				"\r\n",
			sink.String(),
		)
	})

	t.Run("unknown status code", func(t *testing.T) {
		serializer, sink := getSerializer(2048)
		responder := http.ResponderFunc(func(_ *http.RequestHeader, resp *http.Response) http.Outcome {
			resp.Status = 599
			return http.Complete()
		})

		drive(t, serializer, newRequest(method.GET), newResponse(), responder)
		require.True(t, strings.HasPrefix(sink.String(), "HTTP/1.1 599 Unknown Status Code\r\n"))
	})

	t.Run("status code out of range", func(t *testing.T) {
		serializer, sink := getSerializer(2048)
		responder := http.ResponderFunc(func(_ *http.RequestHeader, resp *http.Response) http.Outcome {
			resp.Status = 4242
			_, _ = resp.String("oops")
			return http.Complete()
		})

		drive(t, serializer, newRequest(method.GET), newResponse(), responder)
		require.True(t, strings.HasPrefix(sink.String(), "HTTP/1.1 500 Internal Server Error\r\n"))
		require.True(t, strings.HasSuffix(sink.String(), "\r\n\r\noops"))
	})

	t.Run("HEAD", func(t *testing.T) {
		serializer, sink := getSerializer(2048)
		responder := http.ResponderFunc(func(_ *http.RequestHeader, resp *http.Response) http.Outcome {
			_, _ = resp.String("Hello, world!")
			return http.Complete()
		})

		outcome := drive(t, serializer, newRequest(method.HEAD), newResponse(), responder)
		require.Zero(t, outcome.Written())
		head, body, found := strings.Cut(sink.String(), "\r\n\r\n")
		require.True(t, found)
		require.Contains(t, head, "Content-Length: 13")
		require.Empty(t, body)
	})

	t.Run("own stream into small buffer", func(t *testing.T) {
		const transmit = 64
		payload := strings.Repeat("abcdefgh", 10*transmit)
		serializer, sink := getSerializer(transmit)
		responder := http.ResponderFunc(func(_ *http.RequestHeader, resp *http.Response) http.Outcome {
			resp.Body = stream.Chunks([]byte(payload[:100]), []byte(payload[100:]))
			resp.ExtraHeaders = strings.Repeat("X-Long: value\r\n", 10)
			return http.Complete()
		})

		outcome := drive(t, serializer, newRequest(method.GET), newResponse(), responder)
		require.Equal(t, len(payload), outcome.Written())
		head, body, found := strings.Cut(sink.String(), "\r\n\r\n")
		require.True(t, found)
		require.Contains(t, head, "Content-Length: 5120\r\n")
		require.Equal(t, payload, body)
	})

	t.Run("body is closed", func(t *testing.T) {
		var closed bool
		serializer, _ := getSerializer(2048)
		responder := http.ResponderFunc(func(_ *http.RequestHeader, resp *http.Response) http.Outcome {
			resp.Body = stream.FromBytes([]byte("data"))
			resp.Body.CloseFunc = func(*stream.Stream) error {
				closed = true
				return nil
			}

			return http.Complete()
		})

		drive(t, serializer, newRequest(method.GET), newResponse(), responder)
		require.True(t, closed)
	})
}

func TestSerializerChunked(t *testing.T) {
	const head = "HTTP/1.1 200 OK\r\n" +
		"Server: uWeb\r\n" +
		"Content-Type: text/plain\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"\r\n"

	t.Run("until empty fragment", func(t *testing.T) {
		serializer, sink := getSerializer(2048)
		responder := &script{
			fragments: []string{"a", "b", ""},
			outcomes:  []http.Outcome{http.MorePending(), http.MorePending(), http.MorePending()},
		}

		outcome := drive(t, serializer, newRequest(method.GET), newResponse(), responder)
		require.Equal(t, http.KindMorePending, outcome.Kind())
		require.Equal(t, 2, outcome.Written())
		require.Equal(t, 3, responder.calls)
		require.Equal(t, head+"1\r\na\r\n1\r\nb\r\n0\r\n\r\n", sink.String())
		require.Equal(t, 1, strings.Count(sink.String(), "HTTP/1.1"))
	})

	t.Run("until completed", func(t *testing.T) {
		serializer, sink := getSerializer(2048)
		responder := &script{
			fragments: []string{"x", "yz"},
			outcomes:  []http.Outcome{http.MorePending(), http.Complete()},
		}

		drive(t, serializer, newRequest(method.GET), newResponse(), responder)
		require.Equal(t, 2, responder.calls)
		require.Equal(t, head+"1\r\nx\r\n2\r\nyz\r\n0\r\n\r\n", sink.String())
	})

	t.Run("empty first fragment", func(t *testing.T) {
		serializer, sink := getSerializer(2048)
		responder := &script{
			fragments: []string{""},
			outcomes:  []http.Outcome{http.MorePending()},
		}

		drive(t, serializer, newRequest(method.GET), newResponse(), responder)
		require.Equal(t, 1, responder.calls)
		require.Equal(t, head+"0\r\n\r\n", sink.String())
	})

	t.Run("HEAD", func(t *testing.T) {
		serializer, sink := getSerializer(2048)
		responder := &script{
			fragments: []string{"a"},
			outcomes:  []http.Outcome{http.MorePending()},
		}

		drive(t, serializer, newRequest(method.HEAD), newResponse(), responder)
		require.Equal(t, 1, responder.calls)
		require.Equal(t, head, sink.String())
	})

	t.Run("large fragments into small buffer", func(t *testing.T) {
		const transmit = 64
		fragment := strings.Repeat("abcdefgh", 25)
		serializer, sink := getSerializer(transmit)
		responder := &script{
			fragments: []string{fragment, fragment, fragment, ""},
			outcomes: []http.Outcome{
				http.MorePending(), http.MorePending(), http.MorePending(), http.MorePending(),
			},
		}

		outcome := drive(t, serializer, newRequest(method.GET), newResponse(), responder)
		require.Equal(t, 3*len(fragment), outcome.Written())
		gotHead, body, found := strings.Cut(sink.String(), "\r\n\r\n")
		require.True(t, found)
		require.Equal(t, head, gotHead+"\r\n\r\n")
		require.Equal(t, strings.Repeat(fragment, 3), decodeChunked(t, []byte(body)))
	})

	t.Run("short fragment", func(t *testing.T) {
		serializer, _ := getSerializer(2048)
		responder := http.ResponderFunc(func(_ *http.RequestHeader, resp *http.Response) http.Outcome {
			resp.Body = &stream.Stream{AvailSize: 10}
			return http.MorePending()
		})

		req, resp := newRequest(method.GET), newResponse()
		_, err := serializer.Write(req, resp, responder.Respond(req, resp), responder)
		require.ErrorIs(t, err, ErrShortFragment)
	})
}

func TestSerializerRedirect(t *testing.T) {
	serializer, sink := getSerializer(2048)
	responder := http.ResponderFunc(func(req *http.RequestHeader, resp *http.Response) http.Outcome {
		_, _ = resp.String("ignored")
		return http.Redirect(req, "/index.html")
	})

	outcome := drive(t, serializer, newRequest(method.GET), newResponse(), responder)
	require.Equal(t, http.KindRedirect, outcome.Kind())
	require.Equal(t, "/index.html", outcome.URL())
	require.Equal(t,
		"HTTP/1.1 303 See Other\r\n"+
			"Server: uWeb\r\n"+
			"Location: /index.html\r\n"+
			"Content-Length: 0\r\n"+
			"\r\n",
		sink.String(),
	)
}

func TestSerializerFault(t *testing.T) {
	for _, tc := range []struct {
		Code status.Code
		Want string
	}{
		{
			status.RequestTimeout,
			"HTTP/1.1 408 Request Timeout\r\nServer: uWeb\r\nContent-Type: text/plain\r\n" +
				"Content-Length: 18\r\n\r\nRequest timed out\n",
		},
		{
			status.BadRequest,
			"HTTP/1.1 400 Bad Request\r\nServer: uWeb\r\nContent-Type: text/plain\r\n" +
				"Content-Length: 12\r\n\r\nBad request\n",
		},
		{
			status.NotImplemented,
			"HTTP/1.1 501 Not Implemented\r\nServer: uWeb\r\nContent-Type: text/plain\r\n" +
				"Content-Length: 16\r\n\r\nNot implemented\n",
		},
		{
			// anything else is considered a bad request
			status.InternalServerError,
			"HTTP/1.1 400 Bad Request\r\nServer: uWeb\r\nContent-Type: text/plain\r\n" +
				"Content-Length: 12\r\n\r\nBad request\n",
		},
	} {
		serializer, sink := getSerializer(2048)
		require.NoError(t, serializer.Fault(tc.Code))
		require.Equal(t, tc.Want, sink.String())
	}
}

func TestSerializerWriteError(t *testing.T) {
	errBroken := errors.New("broken pipe")
	var writes int
	out := &stream.Stream{WriteFunc: func(*stream.Stream, []byte) (int, error) {
		writes++
		return 0, errBroken
	}}

	serializer := NewSerializer(make([]byte, 0, 64), config.Default())
	serializer.Reset(out)
	responder := http.ResponderFunc(func(_ *http.RequestHeader, resp *http.Response) http.Outcome {
		_, _ = resp.String(strings.Repeat("x", 200))
		return http.Complete()
	})

	req, resp := newRequest(method.GET), newResponse()
	_, err := serializer.Write(req, resp, responder.Respond(req, resp), responder)
	require.ErrorIs(t, err, errBroken)
	require.Equal(t, 1, writes)
}

func BenchmarkSerializer(b *testing.B) {
	serializer := NewSerializer(make([]byte, 0, 2048), config.Default())
	serializer.Reset(stream.Discard())
	req, resp := newRequest(method.GET), newResponse()
	responder := http.ResponderFunc(func(_ *http.RequestHeader, resp *http.Response) http.Outcome {
		_, _ = resp.String("Hello, world!")
		return http.Complete()
	})

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		resp.Reset()
		_, _ = serializer.Write(req, resp, responder.Respond(req, resp), responder)
	}
}
