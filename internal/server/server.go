package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanonone/trackgraph/pkg/graph"
)

// Server holds the HTTP interface over the snapshot store and query engine.
type Server struct {
	store  *graph.Store
	engine *graph.Engine
	log    *slog.Logger

	httpServer *http.Server
}

// NewServer wires the API routes over an existing store. The store is
// shared with the pipeline runner: publishing a new snapshot there makes
// it visible to in-flight traffic with no server restart.
func NewServer(store *graph.Store, httpAddr string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		store:  store,
		engine: graph.NewEngine(store),
		log:    log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/recommend/{id}", s.handleRecommend)
	mux.HandleFunc("GET /api/similar/{id}", s.handleSimilar)
	mux.HandleFunc("GET /api/triangles", s.handleTriangles)
	mux.HandleFunc("GET /api/centrality", s.handleCentrality)
	mux.HandleFunc("GET /api/clusters", s.handleClusters)
	mux.HandleFunc("GET /api/clusters/{id}", s.handleClusterMembers)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	// Chain middlewares: Recovery -> Logging -> Mux.
	// Recovery must be outer-most to catch everything.
	var handler http.Handler = mux
	handler = s.LoggingMiddleware(handler)
	handler = s.RecoveryMiddleware(handler)

	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", s.handleHealthz)
	rootMux.Handle("GET /metrics", promhttp.Handler())
	rootMux.Handle("/api/", handler)

	s.httpServer = &http.Server{
		Addr:    httpAddr,
		Handler: rootMux,
	}
	return s
}

// Handler returns the root handler, used directly by httptest in tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Run starts serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Run() error {
	s.log.Info("HTTP API listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{"status": "ok"}
	if snap, ok := s.store.Current(); ok {
		status["snapshot"] = snap.ID
		status["items"] = snap.Len()
	} else {
		status["snapshot"] = nil
	}
	writeJSON(w, http.StatusOK, status)
}
