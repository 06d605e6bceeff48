package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/glasslink/faceid/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	enrollmentsHandler := handlers.NewEnrollmentsHandler(s.engine, s.store)
	recognitionsHandler := handlers.NewRecognitionsHandler(s.engine, s.store, s.queue)
	statsHandler := handlers.NewStatsHandler(s.engine, s.store)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/enrollments", enrollmentsHandler.Create)
		r.Get("/enrollments/{userID}", enrollmentsHandler.Get)
		r.Delete("/enrollments/{userID}", enrollmentsHandler.Delete)

		r.Post("/recognitions", recognitionsHandler.Create)

		r.Get("/stats", statsHandler.Get)
	})
}
