package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/glasslink/faceid/internal/engine"
	"github.com/glasslink/faceid/internal/identity"
	"github.com/glasslink/faceid/internal/store"
)

// RecognitionsHandler serves the recognition endpoint.
type RecognitionsHandler struct {
	engine *engine.Engine
	store  store.Store
	queue  *engine.Queue
}

// NewRecognitionsHandler creates the handler.
func NewRecognitionsHandler(eng *engine.Engine, st store.Store, queue *engine.Queue) *RecognitionsHandler {
	return &RecognitionsHandler{engine: eng, store: st, queue: queue}
}

// Create handles POST /api/v1/recognitions: a single probe image. The job
// runs through the bounded queue; a saturated queue degrades to local
// execution rather than failing the request. A non-match is a 200 with
// matched=false, never an error.
func (h *RecognitionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "image is required")
		return
	}
	raw, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read image")
		return
	}

	var result identity.MatchResult
	err = h.queue.Do(r.Context(), func() error {
		var recognizeErr error
		result, recognizeErr = h.engine.Recognize(r.Context(), raw)
		return recognizeErr
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}

	response := map[string]any{
		"matched":    result.Matched,
		"confidence": result.Confidence,
	}
	if result.UserID != "" {
		response["user_id"] = result.UserID
	}
	if result.Distance != nil {
		response["distance"] = *result.Distance
	}
	if result.Matched {
		if rec, err := h.store.Get(r.Context(), result.UserID); err == nil {
			response["name"] = rec.DisplayName
		} else if !errors.Is(err, store.ErrNotFound) {
			log.Printf("recognition: loading display name for %s: %v", sanitizeForLog(result.UserID), err)
		}
	}

	respondJSON(w, http.StatusOK, response)
}
