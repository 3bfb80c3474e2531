package relay

import (
	"net"
	"sync"

	"httprelay/status"
)

// session owns exactly one client connection and one upstream
// connection for its lifetime. The two pumps run concurrently and the
// sockets always close together: whichever direction ends first tears
// both down, so no half-open socket outlives its peer.
type session struct {
	client     net.Conn
	upstream   net.Conn
	bufferSize int
	mon        *status.SessionMonitor

	closeOnce sync.Once
}

func newSession(client, upstream net.Conn, bufferSize int, mon *status.SessionMonitor) *session {
	return &session{
		client:     client,
		upstream:   upstream,
		bufferSize: bufferSize,
		mon:        mon,
	}
}

// run pumps bytes both ways and returns once both directions have
// terminated and both sockets are closed.
func (s *session) run() {
	s.mon.IncSessions()
	defer s.mon.DecSessions()

	var wg sync.WaitGroup
	wg.Add(2)

	// client -> upstream
	go func() {
		defer wg.Done()
		s.pump(s.upstream, s.client, s.mon.AddBytesIn)
	}()

	// upstream -> client
	go func() {
		defer wg.Done()
		s.pump(s.client, s.upstream, s.mon.AddBytesOut)
	}()

	wg.Wait()
	s.teardown()
}

// teardown closes both sockets. Safe to call from either pump, the
// forced-termination path, and run itself; only the first call does
// anything.
func (s *session) teardown() {
	s.closeOnce.Do(func() {
		s.client.Close()
		s.upstream.Close()
	})
}
