package main

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indigo-web/uweb/http"
	"github.com/indigo-web/uweb/http/method"
	"github.com/indigo-web/uweb/http/mime"
	"github.com/indigo-web/uweb/http/status"
	"github.com/indigo-web/uweb/http/urlencoded"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// countTo is how many numbers /count streams, one per chunk.
const countTo = 10

type part struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Bytes       uint64 `json:"bytes"`
}

type upload struct {
	Bytes  uint64 `json:"bytes"`
	Chunks uint32 `json:"chunks"`
	Parts  []part `json:"parts,omitempty"`
}

// progress is everything remembered about a request between the callbacks. Sessions
// reuse their request headers, so the header pointer identifies the request in flight.
type progress struct {
	upload  upload
	counted int
}

type app struct {
	name     string
	started  time.Time
	requests atomic.Uint64

	mu       sync.Mutex
	inflight map[*http.RequestHeader]*progress
}

func newApp(name string) *app {
	return &app{
		name:     name,
		started:  time.Now(),
		inflight: make(map[*http.RequestHeader]*progress),
	}
}

func (a *app) progress(req *http.RequestHeader) *progress {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, found := a.inflight[req]
	if !found {
		p = new(progress)
		a.inflight[req] = p
	}

	return p
}

func (a *app) done(req *http.RequestHeader) {
	a.mu.Lock()
	delete(a.inflight, req)
	a.mu.Unlock()
}

func (a *app) OnData(req *http.RequestHeader, typ http.DataType, _ uint64, data []byte) {
	p := a.progress(req)
	u := &p.upload
	u.Bytes += uint64(len(data))

	switch typ {
	case http.DataChunk:
		u.Chunks = req.ChunkNbr
	case http.DataMultipart:
		if int(req.Multipart.Nbr) > len(u.Parts) {
			name, _ := mime.Param(req.Multipart.ContentDisposition.Unsafe(), "name")
			u.Parts = append(u.Parts, part{
				Name:        strings.Clone(name),
				ContentType: req.Multipart.ContentType.String(),
			})
		}

		u.Parts[len(u.Parts)-1].Bytes += uint64(len(data))
	}
}

func (a *app) Respond(req *http.RequestHeader, resp *http.Response) http.Outcome {
	path, query, _ := strings.Cut(req.Resource.Unsafe(), "?")

	switch path {
	case "/":
		if req.Method != method.GET && req.Method != method.HEAD {
			return a.finish(req, notAllowed(resp))
		}

		return a.finish(req, greet(resp, query))
	case "/status":
		return a.finish(req, a.status(resp))
	case "/count":
		return a.count(req, resp)
	case "/old":
		return a.finish(req, http.Redirect(req, "/"))
	case "/upload":
		if req.Method != method.POST {
			return a.finish(req, notAllowed(resp))
		}

		return a.finish(req, a.report(req, resp))
	default:
		resp.Status = status.NotFound
		_, _ = resp.String("Not Found\n")
		return a.finish(req, http.Complete())
	}
}

func (a *app) finish(req *http.RequestHeader, outcome http.Outcome) http.Outcome {
	a.requests.Add(1)
	a.done(req)

	return outcome
}

func greet(resp *http.Response, query string) http.Outcome {
	name := "world"
	if value, found := queryParam(query, "name"); found {
		buff := make([]byte, len(value))
		n, err := urlencoded.ExtendedDecode(buff, []byte(value))
		if err != nil {
			resp.Status = status.BadRequest
			_, _ = resp.String("Malformed name\n")
			return http.Complete()
		}

		name = string(buff[:n])
	}

	_, _ = resp.String("Hello, " + name + "!\n")
	return http.Complete()
}

func (a *app) status(resp *http.Response) http.Outcome {
	resp.ContentType.Set(string(mime.JSON))
	resp.Header("Cache-Control", "no-store")

	_ = json.NewEncoder(resp).Encode(struct {
		Server   string  `json:"server"`
		Uptime   float64 `json:"uptime"`
		Requests uint64  `json:"requests"`
	}{
		Server:   a.name,
		Uptime:   time.Since(a.started).Seconds(),
		Requests: a.requests.Load(),
	})

	return http.Complete()
}

func (a *app) count(req *http.RequestHeader, resp *http.Response) http.Outcome {
	p := a.progress(req)
	if p.counted == countTo {
		return a.finish(req, http.Complete())
	}

	p.counted++
	_, _ = resp.Write(strconv.AppendInt(nil, int64(p.counted), 10))
	_, _ = resp.String("\n")

	return http.MorePending()
}

func (a *app) report(req *http.RequestHeader, resp *http.Response) http.Outcome {
	resp.ContentType.Set(string(mime.JSON))
	_ = json.NewEncoder(resp).Encode(a.progress(req).upload)

	return http.Complete()
}

func notAllowed(resp *http.Response) http.Outcome {
	resp.Status = status.MethodNotAllowed
	_, _ = resp.String("Method Not Allowed\n")

	return http.Complete()
}

func queryParam(query, name string) (value string, found bool) {
	for len(query) > 0 {
		var pair string
		pair, query, _ = strings.Cut(query, "&")
		key, value, _ := strings.Cut(pair, "=")
		if key == name {
			return value, true
		}
	}

	return "", false
}
