// Package handlers implements the HTTP API over the matching engine. The
// layer is a thin shell: all biometric decisions live in the engine, the
// handlers only translate errors to status codes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/glasslink/faceid/internal/engine"
	"github.com/glasslink/faceid/internal/extract"
	"github.com/glasslink/faceid/internal/imageproc"
	"github.com/glasslink/faceid/internal/store"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// rejection is the JSON shape of a single quality-gate failure.
type rejection struct {
	Angle     string `json:"angle,omitempty"`
	Reason    string `json:"reason"`
	FaceCount int    `json:"face_count,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// respondEngineError maps engine and store failures to status codes: quality
// rejections are 422 (retake the photo), duplicates are 409 with no identity
// details, dependency outages are 503, the rest 500.
func respondEngineError(w http.ResponseWriter, err error) {
	// Dependency failures always read as outages, even when wrapped in a
	// per-angle enrollment report.
	if errors.Is(err, extract.ErrUnavailable) {
		respondError(w, http.StatusServiceUnavailable, "face recognition service unavailable")
		return
	}
	if errors.Is(err, imageproc.ErrTooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "image exceeds the maximum allowed size")
		return
	}

	var enrollErr *engine.EnrollmentError
	if errors.As(err, &enrollErr) {
		rejections := make([]rejection, 0, len(enrollErr.Failures))
		for _, f := range enrollErr.Failures {
			rej := qualityRejection(f.Err)
			rej.Angle = string(f.Angle)
			rejections = append(rejections, rej)
		}
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":      "all enrollment images were rejected",
			"rejections": rejections,
		})
		return
	}

	var qe *engine.QualityError
	if errors.As(err, &qe) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     qe.Error(),
			"rejection": qualityRejection(err),
		})
		return
	}

	switch {
	case errors.Is(err, store.ErrDuplicateIdentity):
		respondError(w, http.StatusConflict, "face already enrolled under another identity")
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "enrollment not found")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// qualityRejection flattens a quality error into its JSON shape.
func qualityRejection(err error) rejection {
	var qe *engine.QualityError
	if errors.As(err, &qe) {
		return rejection{
			Reason:    string(qe.Reason),
			FaceCount: qe.FaceCount,
			Detail:    qe.Detail,
		}
	}
	return rejection{Reason: "error", Detail: err.Error()}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
