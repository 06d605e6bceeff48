// Package web wires the HTTP API: a chi router over the matching engine.
package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/glasslink/faceid/internal/config"
	"github.com/glasslink/faceid/internal/engine"
	"github.com/glasslink/faceid/internal/store"
	"github.com/glasslink/faceid/internal/web/middleware"
)

// Server is the HTTP front of the matching engine.
type Server struct {
	engine     *engine.Engine
	store      store.Store
	queue      *engine.Queue
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer builds the router, middleware stack and HTTP server.
func NewServer(cfg *config.Config, eng *engine.Engine, st store.Store) *Server {
	r := chi.NewRouter()

	s := &Server{
		engine: eng,
		store:  st,
		queue:  engine.NewQueue(cfg.Queue.Workers, cfg.Queue.SubmitWait),
		router: r,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(2 * time.Minute))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute, // uploads and model inference
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
