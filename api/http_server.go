package api

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"httprelay/relay"
)

// Server is a small HTTP API server that serves info about the relay.
// Construct with NewServer(r, listenAddr)
type Server struct {
	relay      *relay.Relay
	listenAddr string
	httpSrv    *http.Server
	ln         net.Listener
}

// NewServer creates a new API server instance.
func NewServer(r *relay.Relay, listenAddr string) *Server {
	return &Server{relay: r, listenAddr: listenAddr}
}

// Start begins listening and serving. It returns after the server has started or an error.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/status", s.handleStatus)

	h := &http.Server{
		Addr:    s.listenAddr,
		Handler: mux,
	}
	s.httpSrv = h

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return err
	}
	s.ln = ln

	go func() {
		if err := h.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("api: http server error: %v", err)
		}
	}()

	return nil
}

// Stop attempts a graceful shutdown with a 5s timeout.
func (s *Server) Stop() error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(ctx)
}

// statusDTO is the JSON shape returned for the relay status
type statusDTO struct {
	Listen         string `json:"listen"`
	Upstream       string `json:"upstream"`
	State          string `json:"state"`
	ActiveSessions int64  `json:"active_sessions"`
	TotalSessions  int64  `json:"total_sessions"`
	DialFailures   int64  `json:"dial_failures"`
	BytesIn        int64  `json:"bytes_in"`
	BytesOut       int64  `json:"bytes_out"`
	RateLimit      int64  `json:"rate_limit"`
	ActiveRate     int64  `json:"active_rate"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	st := s.relay.Stats()
	dto := statusDTO{
		Listen:         st.ListenAddr,
		Upstream:       st.UpstreamAddr,
		State:          st.State,
		ActiveSessions: st.ActiveSessions,
		TotalSessions:  st.TotalSessions,
		DialFailures:   st.DialFailures,
		BytesIn:        st.BytesIn,
		BytesOut:       st.BytesOut,
		RateLimit:      st.RateLimit,
		ActiveRate:     st.ActiveRate,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dto); err != nil {
		log.Printf("api: encode error: %v", err)
	}
}
