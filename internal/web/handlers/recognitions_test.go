package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/glasslink/faceid/internal/engine"
	"github.com/glasslink/faceid/internal/extract"
	storemock "github.com/glasslink/faceid/internal/store/mock"
)

func recognize(t *testing.T, router http.Handler, files map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, nil, files)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recognitions", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRecognizeMatch(t *testing.T) {
	router, _, _ := newTestAPI()

	rr := enroll(t, router,
		map[string]string{"name": "Ada", "user_id": "user-ada"},
		map[string][]byte{"image": personJPEG(t, 220, 1)})
	assertStatusCode(t, rr, http.StatusCreated)

	rr = recognize(t, router, map[string][]byte{"image": personJPEG(t, 220, 42)})
	assertStatusCode(t, rr, http.StatusOK)

	var body struct {
		Matched    bool    `json:"matched"`
		UserID     string  `json:"user_id"`
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if !body.Matched {
		t.Fatal("expected a match")
	}
	if body.UserID != "user-ada" {
		t.Errorf("expected user-ada, got %s", body.UserID)
	}
	if body.Name != "Ada" {
		t.Errorf("expected display name Ada, got %q", body.Name)
	}
	if body.Confidence < 0.8 {
		t.Errorf("expected high confidence, got %f", body.Confidence)
	}
}

func TestRecognizeNoMatch(t *testing.T) {
	router, _, _ := newTestAPI()

	rr := enroll(t, router,
		map[string]string{"name": "Ada", "user_id": "user-ada"},
		map[string][]byte{"image": personJPEG(t, 220, 1)})
	assertStatusCode(t, rr, http.StatusCreated)

	rr = recognize(t, router, map[string][]byte{"image": personJPEG(t, 40, 7)})
	assertStatusCode(t, rr, http.StatusOK)

	var body struct {
		Matched  bool     `json:"matched"`
		UserID   string   `json:"user_id"`
		Name     string   `json:"name"`
		Distance *float64 `json:"distance"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body.Matched {
		t.Fatal("expected no match for a stranger")
	}
	// Near-miss candidate is reported for threshold diagnostics, but without
	// the display name.
	if body.UserID != "user-ada" {
		t.Errorf("expected near-miss candidate user-ada, got %q", body.UserID)
	}
	if body.Distance == nil {
		t.Error("expected near-miss distance")
	}
	if body.Name != "" {
		t.Errorf("no-match response must not carry a display name, got %q", body.Name)
	}
}

func TestRecognizeEmptyPopulation(t *testing.T) {
	router, _, _ := newTestAPI()

	rr := recognize(t, router, map[string][]byte{"image": personJPEG(t, 128, 3)})
	assertStatusCode(t, rr, http.StatusOK)

	var body struct {
		Matched bool `json:"matched"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body.Matched {
		t.Error("expected no match against empty population")
	}
}

func TestRecognizeRequiresImage(t *testing.T) {
	router, _, _ := newTestAPI()

	rr := recognize(t, router, nil)
	assertStatusCode(t, rr, http.StatusBadRequest)
}

func TestRecognizeRejectsBlurryProbe(t *testing.T) {
	router, _, _ := newTestAPI()

	rr := recognize(t, router, map[string][]byte{"image": flatJPEG(t, 128)})
	assertStatusCode(t, rr, http.StatusUnprocessableEntity)

	var body struct {
		Rejection struct {
			Reason string `json:"reason"`
		} `json:"rejection"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body.Rejection.Reason != "too_blurry" {
		t.Errorf("expected too_blurry, got %s", body.Rejection.Reason)
	}
}

func TestRecognizeRejectsGroupPhoto(t *testing.T) {
	router, ex, _ := newTestAPI()
	ex.FaceCount = 2

	rr := recognize(t, router, map[string][]byte{"image": personJPEG(t, 128, 1)})
	assertStatusCode(t, rr, http.StatusUnprocessableEntity)

	var body struct {
		Rejection struct {
			Reason    string `json:"reason"`
			FaceCount int    `json:"face_count"`
		} `json:"rejection"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body.Rejection.Reason != "multiple_faces" {
		t.Errorf("expected multiple_faces, got %s", body.Rejection.Reason)
	}
	if body.Rejection.FaceCount != 2 {
		t.Errorf("expected face_count 2, got %d", body.Rejection.FaceCount)
	}
}

func TestRecognizeServiceUnavailable(t *testing.T) {
	st := storemock.NewStore()
	eng := engine.New(extract.Unavailable{Reason: "models not installed"}, st, 0.6, engine.DefaultQuality())
	recognitions := NewRecognitionsHandler(eng, st, engine.NewQueue(1, time.Second))

	r := chi.NewRouter()
	r.Post("/api/v1/recognitions", recognitions.Create)

	rr := recognize(t, r, map[string][]byte{"image": personJPEG(t, 128, 1)})
	assertStatusCode(t, rr, http.StatusServiceUnavailable)
}
