// Package feed serves the client's state to rendering layers over HTTP and
// pushes every change to connected browsers over a websocket.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solar-telemetry/pkg/client"
	"solar-telemetry/pkg/diag"
)

// StateSource is what the feed reads live state from. *client.Client satisfies it.
type StateSource interface {
	State() client.Snapshot
}

// Server exposes the state feed endpoints.
type Server struct {
	logger   *log.Logger
	state    StateSource
	diag     diag.Reader
	gatherer prometheus.Gatherer
	hub      *Hub
	upgrader websocket.Upgrader
	router   *mux.Router
	http     *http.Server
}

// NewServer builds the router. diagReader and gatherer may be nil, in which
// case their endpoints answer 404.
func NewServer(addr string, state StateSource, diagReader diag.Reader, gatherer prometheus.Gatherer, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := &Server{
		logger:   logger,
		state:    state,
		diag:     diagReader,
		gatherer: gatherer,
		hub:      NewHub(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/state", s.handleState).Methods(http.MethodGet)
	if diagReader != nil {
		r.HandleFunc("/api/diagnostics", s.handleDiagnostics).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
	r.HandleFunc("/ws", s.handleWS)
	r.Use(s.loggingMiddleware)
	s.router = r

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Hub() *Hub { return s.hub }

// Publish pushes a snapshot to every websocket client. It is meant to be
// passed to client.Subscribe.
func (s *Server) Publish(snap client.Snapshot) {
	s.hub.BroadcastState(snap)
}

// Serve runs the hub and the HTTP server on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(l) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	s.logger.Printf("feed: listening on %s", l.Addr())
	return s.Serve(ctx, l)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.state.State())
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.diag.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.state.State()
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"connectionState": snap.ConnectionState,
		"transport":       snap.Transport,
		"feedClients":     s.hub.ClientCount(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("feed: upgrade failed: %v", err)
		return
	}
	s.hub.prime(s.state.State())
	c := newClient(s.hub, conn)
	if !s.hub.Register(c) {
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Printf("feed: encode response: %v", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		s.logger.Printf("feed: write response: %v", err)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if r.URL.Path != "/ws" {
			s.logger.Printf("feed: %s %s %s", r.Method, r.URL.Path, time.Since(start))
		}
	})
}
