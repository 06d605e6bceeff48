package handlers

import (
	"net/http"

	"github.com/glasslink/faceid/internal/engine"
	"github.com/glasslink/faceid/internal/store"
)

// StatsHandler reports operational numbers about the population.
type StatsHandler struct {
	engine *engine.Engine
	store  store.Store
}

// NewStatsHandler creates the handler.
func NewStatsHandler(eng *engine.Engine, st store.Store) *StatsHandler {
	return &StatsHandler{engine: eng, store: st}
}

// Get handles GET /api/v1/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not read population size")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"enrolled":  count,
		"tolerance": h.engine.Tolerance(),
	})
}
