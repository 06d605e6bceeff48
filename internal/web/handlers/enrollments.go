package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/glasslink/faceid/internal/engine"
	"github.com/glasslink/faceid/internal/store"
)

// maxUploadMemory bounds the multipart parser's in-memory buffer; larger
// parts spill to disk.
const maxUploadMemory = 32 << 20

// angleFields maps multipart field names to capture angles. The bare "image"
// field is the legacy single-photo enrollment and counts as front.
var angleFields = map[string]engine.Angle{
	"image":       engine.AngleFront,
	"image_front": engine.AngleFront,
	"image_left":  engine.AngleLeft,
	"image_right": engine.AngleRight,
	"image_up":    engine.AngleUp,
	"image_down":  engine.AngleDown,
}

// EnrollmentsHandler serves the enrollment lifecycle endpoints.
type EnrollmentsHandler struct {
	engine *engine.Engine
	store  store.Store
}

// NewEnrollmentsHandler creates the handler.
func NewEnrollmentsHandler(eng *engine.Engine, st store.Store) *EnrollmentsHandler {
	return &EnrollmentsHandler{engine: eng, store: st}
}

// Create handles POST /api/v1/enrollments: multipart angle images plus
// metadata. Responds 201 with the user ID, 409 when the face is already
// enrolled under another identity, 422 with per-angle reasons when every
// image failed the quality gate.
func (h *EnrollmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	name := r.FormValue("name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	email := r.FormValue("email")

	userID := r.FormValue("user_id")
	if userID == "" {
		userID = uuid.NewString()
	}

	images, angles, err := readAngleImages(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(images) == 0 {
		respondError(w, http.StatusBadRequest, "at least one image is required")
		return
	}

	rec, err := h.engine.Register(r.Context(), engine.Registration{
		UserID:       userID,
		DisplayName:  name,
		ContactEmail: email,
		Images:       images,
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}

	log.Printf("enrolled %s (%d angles)", sanitizeForLog(rec.UserID), len(images))
	respondJSON(w, http.StatusCreated, map[string]any{
		"user_id":     rec.UserID,
		"name":        rec.DisplayName,
		"angles":      angles,
		"enrolled_at": rec.UpdatedAt,
	})
}

// Get handles GET /api/v1/enrollments/{userID}. Metadata only; the biometric
// vector never leaves the service.
func (h *EnrollmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	rec, err := h.store.Get(r.Context(), userID)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user_id":    rec.UserID,
		"name":       rec.DisplayName,
		"email":      rec.ContactEmail,
		"updated_at": rec.UpdatedAt,
	})
}

// Delete handles DELETE /api/v1/enrollments/{userID}.
func (h *EnrollmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.engine.Unregister(r.Context(), userID); err != nil {
		respondEngineError(w, err)
		return
	}

	log.Printf("removed enrollment %s", sanitizeForLog(userID))
	w.WriteHeader(http.StatusNoContent)
}

// readAngleImages pulls every recognized angle field out of the multipart
// form, in a fixed field order. The legacy "image" field is read first, so
// an explicit "image_front" overrides it.
func readAngleImages(r *http.Request) (map[engine.Angle][]byte, []string, error) {
	fields := []string{"image", "image_front", "image_left", "image_right", "image_up", "image_down"}

	images := make(map[engine.Angle][]byte)
	var angles []string
	for _, field := range fields {
		file, _, err := r.FormFile(field)
		if err == http.ErrMissingFile {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", field, err)
		}

		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("reading %s: %w", field, err)
		}

		angle := angleFields[field]
		if _, exists := images[angle]; !exists {
			angles = append(angles, string(angle))
		}
		images[angle] = data
	}

	return images, angles, nil
}
