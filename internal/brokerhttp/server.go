// Package brokerhttp exposes the broker over HTTP: the WebSocket upgrade
// route that is the broker end of the link, plus /status, /healthz, and
// /metrics. Its router/shutdown shape is grounded on
// pkg/httpserver/server.go (chi.Mux, graceful http.Server.Shutdown).
package brokerhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/martinbechard/wslog/internal/broker"
	"github.com/martinbechard/wslog/pkg/observability"
)

// upgrader accepts any origin: the link has no authentication surface in
// scope (§1 Non-goals).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server wraps the broker with its HTTP surface.
type Server struct {
	http.Server
	router *chi.Mux
	broker *broker.Broker
	logger observability.Logger
}

// New builds a Server listening on addr (":8080"-style) that dispatches
// connections to b.
func New(addr string, b *broker.Broker, logger observability.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		router: router,
		broker: b,
		logger: logger,
	}

	router.Get("/link", s.handleLink)
	router.Get("/status", s.handleStatus)
	router.Get("/healthz", s.handleHealthz)
	router.Handle("/metrics", promhttp.Handler())

	return s
}

// Run starts the HTTP server in a background goroutine and returns a
// function the caller should invoke (with a bounded context) to shut it
// down gracefully, mirroring pkg/httpserver's Run/Shutdown split.
func (s *Server) Run() func(ctx context.Context) error {
	go func() {
		if err := s.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error(context.Background(), "broker http server stopped", observability.Error(err))
		}
	}()
	return s.Server.Shutdown
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(r.Context(), "link upgrade failed", observability.Error(err))
		return
	}
	s.broker.AcceptLink(r.Context(), conn)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.broker.Snapshot())
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
