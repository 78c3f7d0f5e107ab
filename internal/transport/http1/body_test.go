package http1

import (
	"strconv"
	"strings"
	"testing"

	"github.com/indigo-web/uweb/config"
	"github.com/indigo-web/uweb/http"
	"github.com/indigo-web/uweb/http/status"
	"github.com/stretchr/testify/require"
)

type call struct {
	Type      http.DataType
	Offset    uint64
	Data      string
	Terminal  bool
	ChunkNbr  uint32
	PartNbr   uint32
	PartType  string
	PartDispo string
}

// recorder collects every call of the data receiver.
type recorder struct {
	calls []call
}

func (r *recorder) OnData(req *http.RequestHeader, typ http.DataType, offset uint64, data []byte) {
	r.calls = append(r.calls, call{
		Type:      typ,
		Offset:    offset,
		Data:      string(data),
		Terminal:  data == nil,
		ChunkNbr:  req.ChunkNbr,
		PartNbr:   req.Multipart.Nbr,
		PartType:  req.Multipart.ContentType.String(),
		PartDispo: req.Multipart.ContentDisposition.String(),
	})
}

// payload concatenates all the non-terminal calls.
func (r *recorder) payload() string {
	var sb strings.Builder
	for _, c := range r.calls {
		sb.WriteString(c.Data)
	}

	return sb.String()
}

func (r *recorder) terminals() (n int) {
	for _, c := range r.calls {
		if c.Terminal {
			n++
		}
	}

	return n
}

func getBody(bounds config.Bounds) (*Body, *http.RequestHeader, *recorder) {
	request := http.NewRequestHeader(bounds)
	rec := new(recorder)

	return NewBody(request, rec, bounds), request, rec
}

func feedBodyPartially(body *Body, raw []byte, n int) (done bool, extra []byte, err error) {
	for _, piece := range splitIntoParts(raw, n) {
		done, extra, err = body.Feed(piece)
		if err != nil || done {
			return done, extra, err
		}
	}

	return false, nil, nil
}

func TestBodyContent(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		body, _, rec := getBody(defaultBounds())
		require.NoError(t, body.Reset())
		require.True(t, body.Empty())

		done, extra, err := body.Feed(nil)
		require.NoError(t, err)
		require.True(t, done)
		require.Empty(t, extra)
		require.Equal(t, []call{{Type: http.DataContent, Terminal: true}}, rec.calls)
	})

	t.Run("partially", func(t *testing.T) {
		const payload = "Hello, world! How are you doing?"

		for n := 1; n <= len(payload); n++ {
			body, request, rec := getBody(defaultBounds())
			request.ContentLength = uint64(len(payload))
			require.NoError(t, body.Reset())

			done, extra, err := feedBodyPartially(body, []byte(payload+"GET /"), n)
			require.NoError(t, err)
			require.True(t, done)
			require.True(t, strings.HasPrefix("GET /", string(extra)))
			require.Equal(t, payload, rec.payload())
			require.Equal(t, 1, rec.terminals())

			var offset uint64
			for _, c := range rec.calls[:len(rec.calls)-1] {
				require.Equal(t, http.DataContent, c.Type)
				require.Equal(t, offset, c.Offset)
				offset += uint64(len(c.Data))
			}

			require.True(t, rec.calls[len(rec.calls)-1].Terminal)
		}
	})

	t.Run("short", func(t *testing.T) {
		body, request, rec := getBody(defaultBounds())
		request.ContentLength = 10
		require.NoError(t, body.Reset())

		done, _, err := body.Feed([]byte("hello"))
		require.NoError(t, err)
		require.False(t, done)
		require.Zero(t, rec.terminals())
	})
}

func TestBodyChunked(t *testing.T) {
	t.Run("wiki", func(t *testing.T) {
		body, request, rec := getBody(defaultBounds())
		request.Chunked = true
		require.NoError(t, body.Reset())

		done, extra, err := body.Feed([]byte("4\r\nWiki\r\n0\r\n\r\n"))
		require.NoError(t, err)
		require.True(t, done)
		require.Empty(t, extra)
		require.Equal(t, []call{
			{Type: http.DataChunk, Data: "Wiki", ChunkNbr: 1},
			{Type: http.DataChunk, Terminal: true, ChunkNbr: 1},
		}, rec.calls)
	})

	t.Run("chunked wins over content length", func(t *testing.T) {
		body, request, rec := getBody(defaultBounds())
		request.Chunked = true
		request.ContentLength = 3
		require.NoError(t, body.Reset())

		done, _, err := body.Feed([]byte("5\r\nHello\r\n0\r\n\r\n"))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, "Hello", rec.payload())
	})

	t.Run("partially", func(t *testing.T) {
		raw := "7\r\nMozilla\r\n11;name=value\r\nDeveloper Network\n0\r\nTrailer: x\r\n\r\n"
		chunks := []string{"Mozilla", "Developer Network"}

		for n := 1; n <= len(raw); n++ {
			body, request, rec := getBody(defaultBounds())
			request.Chunked = true
			require.NoError(t, body.Reset())

			done, _, err := feedBodyPartially(body, []byte(raw), n)
			require.NoError(t, err, n)
			require.True(t, done, n)
			require.Equal(t, strings.Join(chunks, ""), rec.payload())
			require.Equal(t, 1, rec.terminals())
			require.Equal(t, uint32(2), request.ChunkNbr)

			// reassemble chunks by their offsets
			got := make([]string, 2)
			for _, c := range rec.calls {
				if c.Terminal {
					continue
				}

				require.Equal(t, http.DataChunk, c.Type)
				require.Equal(t, uint64(len(got[c.ChunkNbr-1])), c.Offset)
				got[c.ChunkNbr-1] += c.Data
			}

			require.Equal(t, chunks, got)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		for _, raw := range []string{
			"x\r\nWiki\r\n0\r\n\r\n",
			"\r\nWiki\r\n0\r\n\r\n",
			"4\rWiki\r\n0\r\n\r\n",
			"4\r\nWikipedia\r\n0\r\n\r\n",
			"123456789\r\n",
			"0\r\n\rx",
		} {
			body, request, rec := getBody(defaultBounds())
			request.Chunked = true
			require.NoError(t, body.Reset())

			_, _, err := body.Feed([]byte(raw))
			require.ErrorIs(t, err, status.ErrBadChunk, raw)
			require.Zero(t, rec.terminals())
		}
	})
}

const multipartBody = "preamble to be ignored\r\n" +
	"--xyz\r\n" +
	"Content-Disposition: form-data; name=\"text\"\r\n" +
	"\r\n" +
	"plain text with \r\n-- and \r\n--xy inside\r\n" +
	"--xyz  \r\n" +
	"Content-Type: text/plain\r\n" +
	"Content-Disposition: form-data; name=\"file\"; filename=\"a.txt\"\r\n" +
	"X-Ignored: yes\r\n" +
	"\r\n" +
	"\r\r\n\r\n-\r\n--\r\n--x" +
	"\r\n--xyz\n" +
	"\n" +
	"\r\n--xyz--\r\n" +
	"epilogue to be ignored"

var multipartParts = []struct {
	Data, ContentType, ContentDisposition string
}{
	{"plain text with \r\n-- and \r\n--xy inside", "", `form-data; name="text"`},
	{"\r\r\n\r\n-\r\n--\r\n--x", "text/plain", `form-data; name="file"; filename="a.txt"`},
	{"", "", ""},
}

func checkMultipart(t *testing.T, rec *recorder) {
	var part int
	var data string
	var offset uint64

	for _, c := range rec.calls {
		require.Equal(t, http.DataMultipart, c.Type)
		require.Equal(t, uint32(part+1), c.PartNbr)

		if c.Terminal {
			want := multipartParts[part]
			require.Equal(t, want.Data, data)
			require.Equal(t, want.ContentType, c.PartType)
			require.Equal(t, want.ContentDisposition, c.PartDispo)
			part++
			data, offset = "", 0
			continue
		}

		require.Equal(t, offset, c.Offset)
		offset += uint64(len(c.Data))
		data += c.Data
	}

	require.Equal(t, len(multipartParts), part)
	require.Equal(t, len(multipartParts), rec.terminals())
}

func TestBodyMultipart(t *testing.T) {
	t.Run("over content length", func(t *testing.T) {
		for n := 1; n <= len(multipartBody); n++ {
			body, request, rec := getBody(defaultBounds())
			request.ContentType.Set(`multipart/form-data; boundary="xyz"`)
			request.ContentLength = uint64(len(multipartBody))
			require.NoError(t, body.Reset())
			require.True(t, body.Multipart())

			done, _, err := feedBodyPartially(body, []byte(multipartBody), n)
			require.NoError(t, err, n)
			require.True(t, done, n)
			checkMultipart(t, rec)
		}
	})

	t.Run("over chunked", func(t *testing.T) {
		body, request, rec := getBody(defaultBounds())
		request.ContentType.Set("multipart/form-data; boundary=xyz")
		request.Chunked = true
		require.NoError(t, body.Reset())

		var sb strings.Builder
		for _, piece := range splitIntoParts([]byte(multipartBody), 10) {
			sb.WriteString(strings.ToUpper(strconv.FormatInt(int64(len(piece)), 16)) + "\r\n" + string(piece) + "\r\n")
		}
		sb.WriteString("0\r\n\r\n")

		done, _, err := feedBodyPartially(body, []byte(sb.String()), 7)
		require.NoError(t, err)
		require.True(t, done)
		checkMultipart(t, rec)
		require.NotZero(t, request.ChunkNbr)
	})

	t.Run("no preamble", func(t *testing.T) {
		raw := "--b\r\n\r\nhello\r\n--b--"
		body, request, rec := getBody(defaultBounds())
		request.ContentType.Set("multipart/mixed; boundary=b")
		request.ContentLength = uint64(len(raw))
		require.NoError(t, body.Reset())

		done, _, err := body.Feed([]byte(raw))
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, []call{
			{Type: http.DataMultipart, Data: "hello", PartNbr: 1},
			{Type: http.DataMultipart, Terminal: true, PartNbr: 1},
		}, rec.calls)
	})

	t.Run("truncated part headers", func(t *testing.T) {
		bounds := defaultBounds()
		bounds.ContentDisposition = 10
		raw := "--b\r\nContent-Disposition: form-data; name=\"long\"\r\n\r\nx\r\n--b--"

		body, request, rec := getBody(bounds)
		request.ContentType.Set("multipart/form-data; boundary=b")
		request.ContentLength = uint64(len(raw))
		require.NoError(t, body.Reset())
		_, _, err := body.Feed([]byte(raw))
		require.NoError(t, err)
		require.Equal(t, "form-data", rec.calls[len(rec.calls)-1].PartDispo)

		bounds.RejectOverflow = true
		body, request, rec = getBody(bounds)
		request.ContentType.Set("multipart/form-data; boundary=b")
		request.ContentLength = uint64(len(raw))
		require.NoError(t, body.Reset())
		_, _, err = body.Feed([]byte(raw))
		require.ErrorIs(t, err, status.ErrTruncated)
		require.Empty(t, rec.calls)
	})

	t.Run("malformed", func(t *testing.T) {
		for _, tc := range []struct {
			Name, ContentType, Raw string
			Err                    error
		}{
			{"unterminated", "multipart/form-data; boundary=b", "--b\r\n\r\nhello", status.ErrBadMultipart},
			{"no delimiter", "multipart/form-data; boundary=b", "hello", status.ErrBadMultipart},
			{"garbage after delimiter", "multipart/form-data; boundary=b", "--bx\r\n\r\n--b--", status.ErrBadMultipart},
			{"header without colon", "multipart/form-data; boundary=b", "--b\r\nbroken\r\n\r\n--b--", status.ErrBadMultipart},
			{
				"boundary too long", "multipart/form-data; boundary=" + strings.Repeat("b", 71),
				"--b\r\n\r\n--b--", status.ErrBadMultipart,
			},
		} {
			t.Run(tc.Name, func(t *testing.T) {
				body, request, _ := getBody(defaultBounds())
				request.ContentType.Set(tc.ContentType)
				request.ContentLength = uint64(len(tc.Raw))

				err := body.Reset()
				if err == nil {
					_, _, err = body.Feed([]byte(tc.Raw))
				}

				require.ErrorIs(t, err, tc.Err)
			})
		}
	})

	t.Run("empty body is not demultiplexed", func(t *testing.T) {
		body, request, rec := getBody(defaultBounds())
		request.ContentType.Set("multipart/form-data; boundary=b")
		require.NoError(t, body.Reset())
		require.False(t, body.Multipart())

		done, _, err := body.Feed(nil)
		require.NoError(t, err)
		require.True(t, done)
		require.Equal(t, 1, rec.terminals())
	})
}
