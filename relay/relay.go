package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"httprelay/config"
	"httprelay/limiter"
	"httprelay/status"
)

// ErrRelayClosed is returned by Serve and ListenAndServe after a
// shutdown or termination request closed the listener.
var ErrRelayClosed = errors.New("relay closed")

// State is the process-wide lifecycle state of a Relay.
type State int32

const (
	StateRunning State = iota
	StateDraining
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Relay accepts TCP connections on the listen endpoint and forwards
// the raw byte stream both ways to the fixed upstream endpoint. It is
// protocol-agnostic: HTTP, NTRIP and arbitrary byte streams all pass
// through unmodified.
type Relay struct {
	listenNetwork   string
	listenAddr      string
	upstreamNetwork string
	upstreamAddr    string
	dialTimeout     time.Duration
	bufferSize      int

	sem *semaphore.Weighted
	lim *limiter.SharedLimiter
	mon *status.SessionMonitor

	state atomic.Int32

	acceptCtx    context.Context
	cancelAccept context.CancelFunc

	mu        sync.Mutex
	ln        net.Listener
	sessions  map[*session]struct{}
	killTimer *time.Timer

	wg sync.WaitGroup // in-flight sessions
}

// New builds a Relay from cfg. Missing optional fields get defaults;
// an unusable endpoint configuration is reported here, before any
// socket is bound.
func New(cfg *config.RelayConfig) (*Relay, error) {
	c := *cfg
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	listenHost := StripBrackets(c.ListenHost)
	upstreamHost := StripBrackets(c.UpstreamHost)

	r := &Relay{
		listenNetwork:   NetworkFor(listenHost),
		listenAddr:      JoinEndpoint(listenHost, c.ListenPort),
		upstreamNetwork: NetworkFor(upstreamHost),
		upstreamAddr:    JoinEndpoint(upstreamHost, c.UpstreamPort),
		dialTimeout:     c.DialTimeout.Duration(),
		bufferSize:      int(c.BufferSize),
		sem:             semaphore.NewWeighted(int64(c.NumThreads)),
		mon:             status.NewSessionMonitor(),
		sessions:        make(map[*session]struct{}),
	}
	if c.BandwidthLimit > 0 {
		r.lim = limiter.NewSharedLimiter(int64(c.BandwidthLimit))
	}
	r.acceptCtx, r.cancelAccept = context.WithCancel(context.Background())
	r.state.Store(int32(StateRunning))
	return r, nil
}

// Run is the programmatic one-call entry: build a relay for the given
// endpoints and serve until shutdown.
func Run(listenHost string, listenPort int, upstreamHost string, upstreamPort int, numThreads int, bufferSize int) error {
	r, err := New(&config.RelayConfig{
		ListenHost:   listenHost,
		ListenPort:   listenPort,
		UpstreamHost: upstreamHost,
		UpstreamPort: upstreamPort,
		NumThreads:   numThreads,
		BufferSize:   config.SizeString(bufferSize),
	})
	if err != nil {
		return err
	}
	return r.ListenAndServe()
}

// State returns the current lifecycle state.
func (r *Relay) State() State {
	return State(r.state.Load())
}

// Addr returns the bound listen address, or nil before Serve has
// installed the listener. Useful when listening on port 0.
func (r *Relay) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ln == nil {
		return nil
	}
	return r.ln.Addr()
}

// Monitor exposes the relay's session counters.
func (r *Relay) Monitor() *status.SessionMonitor {
	return r.mon
}

// ListenAndServe binds the listen endpoint and serves until shutdown.
// A bind failure is fatal and returned immediately.
func (r *Relay) ListenAndServe() error {
	ln, err := net.Listen(r.listenNetwork, r.listenAddr)
	if err != nil {
		return fmt.Errorf("listen %s %s: %w", r.listenNetwork, r.listenAddr, err)
	}
	return r.Serve(ln)
}

// Serve accepts connections on ln and dispatches a session per
// connection, bounded by the worker pool. When the pool is saturated
// the next accept waits until a slot frees; that is the relay's only
// backpressure. Returns ErrRelayClosed after Shutdown or Terminate.
func (r *Relay) Serve(ln net.Listener) error {
	r.mu.Lock()
	if r.State() != StateRunning {
		r.mu.Unlock()
		ln.Close()
		return ErrRelayClosed
	}
	r.ln = ln
	r.mu.Unlock()

	log.Printf("RELAY: listening on %s, forwarding to %s", ln.Addr(), r.upstreamAddr)

	for {
		if err := r.sem.Acquire(r.acceptCtx, 1); err != nil {
			// Shutdown cancelled admission while the pool was full.
			return ErrRelayClosed
		}
		conn, err := ln.Accept()
		if err != nil {
			r.sem.Release(1)
			if r.State() != StateRunning {
				return ErrRelayClosed
			}
			if errors.Is(err, net.ErrClosed) {
				// Listener died outside a shutdown request.
				return err
			}
			log.Printf("RELAY: accept error: %v", err)
			continue
		}
		r.wg.Add(1)
		go r.handleConn(conn)
	}
}

// handleConn dials the upstream and runs one session, then releases
// the pool slot. Failures here never affect other sessions.
func (r *Relay) handleConn(client net.Conn) {
	defer r.wg.Done()
	defer r.sem.Release(1)

	d := net.Dialer{Timeout: r.dialTimeout}
	upstream, err := d.Dial(r.upstreamNetwork, r.upstreamAddr)
	if err != nil {
		log.Printf("RELAY: dial upstream %s failed: %v", r.upstreamAddr, err)
		r.mon.IncDialFailures()
		client.Close()
		return
	}

	if r.lim != nil {
		// Wrapping the client side throttles both directions once.
		client = r.lim.WrapConn(client)
	}

	s := newSession(client, upstream, r.bufferSize, r.mon)

	r.mu.Lock()
	if r.State() == StateTerminated {
		r.mu.Unlock()
		s.teardown()
		return
	}
	r.sessions[s] = struct{}{}
	r.mu.Unlock()

	s.run()

	r.mu.Lock()
	delete(r.sessions, s)
	r.mu.Unlock()
}

// Shutdown transitions the relay to draining: the listener closes and
// no new connections are accepted, while in-flight sessions finish
// naturally. It returns once the listening socket is closed; use Wait
// to block until the sessions drain too.
func (r *Relay) Shutdown() error {
	if !r.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return nil
	}
	log.Printf("RELAY: shutdown requested, draining %d session(s)", r.mon.ActiveSessions())
	r.cancelAccept()

	r.mu.Lock()
	ln := r.ln
	r.mu.Unlock()
	if ln != nil {
		return ln.Close()
	}
	return nil
}

// SigkillAfter arms a one-shot timer that force-terminates the relay
// once the grace period elapses, bounding total shutdown latency even
// when a session's peer never closes.
func (r *Relay) SigkillAfter(grace time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.killTimer != nil {
		r.killTimer.Stop()
	}
	r.killTimer = time.AfterFunc(grace, r.Terminate)
}

// Terminate force-closes the listener and every socket still open in
// any session. Terminated is absorbing: repeated calls are no-ops.
func (r *Relay) Terminate() {
	prev := State(r.state.Swap(int32(StateTerminated)))
	if prev == StateTerminated {
		return
	}
	log.Printf("RELAY: terminating, closing %d session(s)", r.mon.ActiveSessions())
	r.cancelAccept()

	r.mu.Lock()
	ln := r.ln
	open := make([]*session, 0, len(r.sessions))
	for s := range r.sessions {
		open = append(open, s)
	}
	if r.killTimer != nil {
		r.killTimer.Stop()
		r.killTimer = nil
	}
	r.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, s := range open {
		s.teardown()
	}
}

// Wait blocks until every in-flight session has finished, then marks
// the relay terminated.
func (r *Relay) Wait() {
	r.wg.Wait()
	if r.state.CompareAndSwap(int32(StateDraining), int32(StateTerminated)) {
		log.Printf("RELAY: all sessions drained")
	}
}

// Stats is a point-in-time snapshot of the relay for the status API.
type Stats struct {
	ListenAddr   string
	UpstreamAddr string
	State        string

	ActiveSessions int64
	TotalSessions  int64
	DialFailures   int64
	BytesIn        int64 // client -> upstream
	BytesOut       int64 // upstream -> client

	RateLimit  int64 // bytes/sec, 0 when unlimited
	ActiveRate int64 // observed bytes/sec, 0 when no limiter
}

// Stats snapshots the relay counters.
func (r *Relay) Stats() Stats {
	st := Stats{
		ListenAddr:     r.listenAddr,
		UpstreamAddr:   r.upstreamAddr,
		State:          r.State().String(),
		ActiveSessions: r.mon.ActiveSessions(),
		TotalSessions:  r.mon.TotalSessions(),
		DialFailures:   r.mon.DialFailures(),
		BytesIn:        r.mon.BytesIn(),
		BytesOut:       r.mon.BytesOut(),
	}
	if a := r.Addr(); a != nil {
		st.ListenAddr = a.String()
	}
	if r.lim != nil {
		st.RateLimit = r.lim.GetMaxRate()
		st.ActiveRate = r.lim.GetActiveRate()
	}
	return st
}
