package config

import (
	"fmt"
	"os"
	"time"

	json "github.com/json-iterator/go"
)

type (
	// Bounds are capacities of every fixed-size buffer the engine owns. Each string
	// capacity includes one byte reserved for the NUL terminator, so the longest value
	// stored is the capacity minus one.
	Bounds struct {
		// Resource is the capacity of the request-target (path and query).
		Resource int
		// Host is the capacity of the Host header value.
		Host int
		// ContentType is the capacity of both the request Content-Type and the Content-Type
		// of a multipart section. Keep in mind that the multipart boundary is extracted from
		// the request's Content-Type, so it must fit there.
		ContentType int
		// Connection is the capacity of the Connection header value.
		Connection int
		// ContentDisposition is the capacity of a multipart section's Content-Disposition.
		ContentDisposition int
		// Token limits header names and the version token. Headers with longer names
		// cannot be recognized and are therefore skipped.
		Token int
		// Scratch is the size of the buffer the input stream is read into.
		Scratch int
		// Transmit is the size of the buffer the response is rendered into. Response
		// bodies are read straight into its free space and flushed whenever it's full.
		Transmit int
		// Body is the capacity of the default response body slot handed to the responder.
		Body int
		// RejectOverflow fails the request with 400 Bad Request instead of silently
		// truncating a value that doesn't fit its bounded field.
		RejectOverflow bool `test:"nullable"`
	}

	Server struct {
		// Name is sent in the Server header of every response.
		Name string
	}

	// Messages are bodies of canned responses, emitted without consulting the responder.
	Messages struct {
		Timeout        string
		BadRequest     string
		NotImplemented string
	}

	NET struct {
		// ReadTimeout controls the maximal lifetime of IDLE connections. If no data was
		// received in this period of time, the timeout response is sent and the connection
		// is closed.
		ReadTimeout time.Duration
		// AcceptLoopInterruptPeriod controls how often will the Accept() call be interrupted
		// in order to check whether it's time to stop. Defaults to 5 seconds.
		AcceptLoopInterruptPeriod time.Duration
	}
)

// Config holds the bounds and canned values used by the engine, and the network settings
// used by the bundled transport.
//
// You must ALWAYS modify defaults (returned via Default()) and NEVER try to initialize the
// config manually, because zero capacities result in every field being truncated to nothing.
type Config struct {
	Bounds   Bounds
	Server   Server
	Messages Messages
	NET      NET
}

// Default returns default config. The bounds are tuned for small embedded hosts.
func Default() *Config {
	return &Config{
		Bounds: Bounds{
			Resource:           256,
			Host:               64,
			ContentType:        128,
			Connection:         64,
			ContentDisposition: 256,
			Token:              32,
			Scratch:            512,
			Transmit:           2048,
			Body:               2048,
		},
		Server: Server{
			Name: "uWeb",
		},
		Messages: Messages{
			Timeout:        "Request timed out\n",
			BadRequest:     "Bad request\n",
			NotImplemented: "Not implemented\n",
		},
		NET: NET{
			ReadTimeout:               90 * time.Second,
			AcceptLoopInterruptPeriod: 5 * time.Second,
		},
	}
}

// minimalTransmit must be enough to fit the longest status line together with the
// Content-Length header.
const minimalTransmit = 64

// Fill replaces zero values of the passed config with defaults. Bounds below the minimal
// workable size are raised.
func Fill(cfg *Config) *Config {
	if cfg == nil {
		return Default()
	}

	def := Default()
	fill(&cfg.Bounds.Resource, def.Bounds.Resource)
	fill(&cfg.Bounds.Host, def.Bounds.Host)
	fill(&cfg.Bounds.ContentType, def.Bounds.ContentType)
	fill(&cfg.Bounds.Connection, def.Bounds.Connection)
	fill(&cfg.Bounds.ContentDisposition, def.Bounds.ContentDisposition)
	fill(&cfg.Bounds.Token, def.Bounds.Token)
	fill(&cfg.Bounds.Scratch, def.Bounds.Scratch)
	fill(&cfg.Bounds.Transmit, def.Bounds.Transmit)
	fill(&cfg.Bounds.Body, def.Bounds.Body)
	cfg.Bounds.Transmit = max(cfg.Bounds.Transmit, minimalTransmit)
	// "content-disposition" is the longest name we need to recognize
	cfg.Bounds.Token = max(cfg.Bounds.Token, len("content-disposition")+1)

	fill(&cfg.Server.Name, def.Server.Name)
	fill(&cfg.Messages.Timeout, def.Messages.Timeout)
	fill(&cfg.Messages.BadRequest, def.Messages.BadRequest)
	fill(&cfg.Messages.NotImplemented, def.Messages.NotImplemented)
	fill(&cfg.NET.ReadTimeout, def.NET.ReadTimeout)
	fill(&cfg.NET.AcceptLoopInterruptPeriod, def.NET.AcceptLoopInterruptPeriod)

	return cfg
}

func fill[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// Load reads a JSON config file on top of defaults. Durations are expected in nanoseconds.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := Default()
	if err = json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}

	return Fill(cfg), nil
}
