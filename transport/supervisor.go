package transport

import (
	"net"
	"sync/atomic"

	"github.com/indigo-web/uweb/config"
)

// Handler serves a single accepted connection.
type Handler func(conn net.Conn)

type Transport interface {
	Bind(addr string) error
	Listen(cfg config.NET, handler Handler) error
	Stop()
	Close()
	Wait()
}

// Supervisor runs several transports at once. When any of them exits, the rest are
// stopped and the first exit reason is returned.
type Supervisor struct {
	stopped   *atomic.Bool
	endpoints []endpoint
	stopch    chan struct{}
}

func NewSupervisor() *Supervisor {
	return &Supervisor{
		stopped: new(atomic.Bool),
		stopch:  make(chan struct{}),
	}
}

// Add binds the transport to the address. If binding fails, all the previously added
// transports are closed.
func (s *Supervisor) Add(addr string, t Transport, handler Handler) error {
	if err := t.Bind(addr); err != nil {
		s.close()
		return err
	}

	s.endpoints = append(s.endpoints, endpoint{handler: handler, t: t})

	return nil
}

// Run blocks until either a transport exits or Stop is called.
func (s *Supervisor) Run(cfg config.NET) error {
	if len(s.endpoints) == 0 {
		return nil
	}

	errch := make(chan error)

	for _, e := range s.endpoints {
		go func(e endpoint) {
			errch <- e.t.Listen(cfg, e.handler)
		}(e)
	}

	select {
	case err := <-errch:
		s.stop()
		drain(errch, len(s.endpoints)-1)

		return err
	case <-s.stopch:
		s.stop()
		drain(errch, len(s.endpoints))
		s.stopch <- struct{}{}

		return nil
	}
}

// Stop gracefully stops all the transports, waiting for running handlers to complete.
// Must be called only while Run is running.
func (s *Supervisor) Stop() {
	if !s.stopped.Load() {
		s.stopch <- struct{}{}
		<-s.stopch
	}
}

func (s *Supervisor) stop() {
	if s.stopped.Swap(true) {
		return
	}

	for _, e := range s.endpoints {
		e.t.Stop()
	}

	for _, e := range s.endpoints {
		e.t.Wait()
		e.t.Close()
	}
}

func (s *Supervisor) close() {
	for _, e := range s.endpoints {
		e.t.Close()
	}
}

type endpoint struct {
	handler Handler
	t       Transport
}

func drain(ch <-chan error, n int) {
	for range n {
		<-ch
	}
}
