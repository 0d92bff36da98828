package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agentforge/previewd/internal/config"
	"github.com/agentforge/previewd/internal/history"
	"github.com/agentforge/previewd/internal/run"
)

// Server is the HTTP API of the preview manager.
type Server struct {
	cfg     *config.Config
	sup     *run.Supervisor
	history history.Store // may be nil
	router  chi.Router
	http    *http.Server
}

// New creates a new Server.
func New(cfg *config.Config, sup *run.Supervisor, hist history.Store) *Server {
	s := &Server{
		cfg:     cfg,
		sup:     sup,
		history: hist,
		router:  chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// JSON endpoints
		r.Group(func(r chi.Router) {
			r.Use(jsonContentType)

			r.Post("/run", s.handleRun)
			r.Post("/stop", s.handleStop)
			r.Post("/force-stop", s.handleForceStop)
			r.Post("/kill-port", s.handleKillPort)
			r.Post("/cleanup-all", s.handleCleanupAll)
			r.Post("/reset-server", s.handleReset)

			r.Get("/debug/active-runs", s.handleActiveRuns)
			r.Get("/debug/check-headers/{runID}", s.handleCheckHeaders)
			r.Get("/debug/history", s.handleHistory)
		})

		// Streaming and proxy endpoints manage their own content types.
		r.Get("/logs/{runID}", s.handleLogs)
		r.Get("/logs/{runID}/ws", s.handleLogsWS)
		r.Get("/proxy/{runID}", s.handleProxy)
		r.Get("/proxy/{runID}/*", s.handleProxy)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware lets the local frontend call the API from another port.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP delegates to the router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	log.Printf("previewd listening on http://localhost%s", addr)
	return s.http.ListenAndServe()
}

// Shutdown tears down every live run, then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")
	if n := s.sup.Teardown().CleanupAll(); n > 0 {
		log.Printf("cleaned up %d runs on shutdown", n)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
