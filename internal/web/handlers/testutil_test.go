package handlers

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/glasslink/faceid/internal/engine"
	extractmock "github.com/glasslink/faceid/internal/extract/mock"
	storemock "github.com/glasslink/faceid/internal/store/mock"
)

// newTestAPI wires the handlers into a router the way routes.go does, backed
// by the color-driven mock extractor and an in-memory store.
func newTestAPI() (*chi.Mux, *extractmock.Extractor, *storemock.Store) {
	ex := extractmock.NewExtractor()
	st := storemock.NewStore()
	eng := engine.New(ex, st, 0.6, engine.DefaultQuality())
	queue := engine.NewQueue(2, time.Second)

	enrollments := NewEnrollmentsHandler(eng, st)
	recognitions := NewRecognitionsHandler(eng, st, queue)
	stats := NewStatsHandler(eng, st)

	r := chi.NewRouter()
	r.Get("/api/v1/health", HealthCheck)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/enrollments", enrollments.Create)
		r.Get("/enrollments/{userID}", enrollments.Get)
		r.Delete("/enrollments/{userID}", enrollments.Delete)
		r.Post("/recognitions", recognitions.Create)
		r.Get("/stats", stats.Get)
	})

	return r, ex, st
}

// personJPEG renders a textured test photo; the base gray level is what the
// mock extractor turns into a descriptor.
func personJPEG(t *testing.T, base uint8, seed int64) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	state := seed
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			state = state*1664525 + 1013904223
			jitter := int(state>>16)%41 - 20
			v := int(base) + jitter
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			img.Set(x, y, color.RGBA{uint8(v), uint8(v), uint8(v), 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("could not encode test image: %v", err)
	}
	return buf.Bytes()
}

// flatJPEG renders a single-color photo that fails the blur gate.
func flatJPEG(t *testing.T, base uint8) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.RGBA{base, base, base, 255})
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("could not encode test image: %v", err)
	}
	return buf.Bytes()
}

// multipartBody builds a multipart form with string fields and JPEG file parts.
func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("could not write form field %s: %v", key, err)
		}
	}
	for key, data := range files {
		part, err := mw.CreateFormFile(key, key+".jpg")
		if err != nil {
			t.Fatalf("could not create file part %s: %v", key, err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("could not write file part %s: %v", key, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("could not finalize multipart body: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func assertStatusCode(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d (body: %s)", want, rr.Code, rr.Body.String())
	}
}
