package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	extractmock "github.com/glasslink/faceid/internal/extract/mock"
	"github.com/glasslink/faceid/internal/store"
	storemock "github.com/glasslink/faceid/internal/store/mock"
)

// personJPEG renders a textured 200x200 test photo. The base gray level is
// what the mock extractor turns into a descriptor, so images sharing a base
// act as the same person; the deterministic noise keeps the sharpness score
// above the blur gate.
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

// flatJPEG renders a single-color photo: a valid face image by the mock's
// standards, but with zero sharpness.
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

func newTestEngine(opts ...Option) (*Engine, *extractmock.Extractor, *storemock.Store) {
	ex := extractmock.NewExtractor()
	st := storemock.NewStore()
	return New(ex, st, 0.6, DefaultQuality(), opts...), ex, st
}

func TestRegisterAndRecognizeRoundTrip(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	rec, err := eng.Register(ctx, Registration{
		UserID:      "user-ada",
		DisplayName: "Ada",
		Images:      map[Angle][]byte{AngleFront: personJPEG(t, 220, 1)},
	})
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	if rec.UserID != "user-ada" {
		t.Errorf("expected record for user-ada, got %s", rec.UserID)
	}
	if len(rec.Vector) == 0 {
		t.Fatal("expected a non-empty canonical vector")
	}

	// A later photo of the same person must match with high confidence.
	result, err := eng.Recognize(ctx, personJPEG(t, 220, 99))
	if err != nil {
		t.Fatalf("recognition failed: %v", err)
	}
	if !result.Matched {
		t.Fatal("expected the enrolled person to be recognized")
	}
	if result.UserID != "user-ada" {
		t.Errorf("expected user-ada, got %s", result.UserID)
	}
	if result.Confidence < 0.8 {
		t.Errorf("expected high confidence, got %f", result.Confidence)
	}
}

func TestRecognizeUnknownReportsNearMiss(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	if _, err := eng.Register(ctx, Registration{
		UserID: "user-ada",
		Images: map[Angle][]byte{AngleFront: personJPEG(t, 220, 1)},
	}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	result, err := eng.Recognize(ctx, personJPEG(t, 40, 7))
	if err != nil {
		t.Fatalf("recognition failed: %v", err)
	}
	if result.Matched {
		t.Fatal("expected a stranger not to match")
	}
	if result.UserID != "user-ada" {
		t.Errorf("expected the near-miss candidate to be reported, got %q", result.UserID)
	}
	if result.Distance == nil {
		t.Fatal("expected the near-miss distance to be reported")
	}
	if *result.Distance <= 0.6 {
		t.Errorf("expected near-miss distance above tolerance, got %f", *result.Distance)
	}
}

func TestRecognizeEmptyPopulation(t *testing.T) {
	eng, _, _ := newTestEngine()

	result, err := eng.Recognize(context.Background(), personJPEG(t, 128, 3))
	if err != nil {
		t.Fatalf("recognition against empty population must not error: %v", err)
	}
	if result.Matched {
		t.Error("expected no match against empty population")
	}
	if result.UserID != "" || result.Distance != nil {
		t.Error("expected no candidate fields against empty population")
	}
}

func TestRegisterRejectsDuplicateFace(t *testing.T) {
	eng, _, _ := newTestEngine()
	ctx := context.Background()

	if _, err := eng.Register(ctx, Registration{
		UserID: "user-ada",
		Images: map[Angle][]byte{AngleFront: personJPEG(t, 220, 1)},
	}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}

	_, err := eng.Register(ctx, Registration{
		UserID: "user-bob",
		Images: map[Angle][]byte{AngleFront: personJPEG(t, 220, 2)},
	})
	if !errors.Is(err, store.ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
}

func TestReRegisterSamePersonAllowed(t *testing.T) {
	eng, _, st := newTestEngine()
	ctx := context.Background()

	if _, err := eng.Register(ctx, Registration{
		UserID: "user-ada",
		Images: map[Angle][]byte{AngleFront: personJPEG(t, 220, 1)},
	}); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if _, err := eng.Register(ctx, Registration{
		UserID: "user-ada",
		Images: map[Angle][]byte{AngleFront: personJPEG(t, 220, 5)},
	}); err != nil {
		t.Fatalf("re-registration of the same user failed: %v", err)
	}

	count, err := st.Count(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 record after re-registration, got %d", count)
	}
}

func TestEnrollAveragesMultipleAngles(t *testing.T) {
	eng, _, _ := newTestEngine()

	vec, err := eng.Enroll(map[Angle][]byte{
		AngleFront: personJPEG(t, 200, 1),
		AngleLeft:  personJPEG(t, 210, 2),
		AngleRight: personJPEG(t, 220, 3),
	})
	if err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}

	// Mean gray 210 -> descriptor components around 210/255.
	want := float64(210) / 255.0
	got := float64(vec[0])
	if got < want-0.05 || got > want+0.05 {
		t.Errorf("expected averaged vector near %f, got %f", want, got)
	}
}

func TestEnrollToleratesPartialFailures(t *testing.T) {
	eng, _, _ := newTestEngine()

	vec, err := eng.Enroll(map[Angle][]byte{
		AngleFront: personJPEG(t, 220, 1),
		AngleLeft:  flatJPEG(t, 220), // fails the blur gate
	})
	if err != nil {
		t.Fatalf("enrollment with one good angle must succeed: %v", err)
	}
	if len(vec) == 0 {
		t.Fatal("expected a vector from the surviving angle")
	}
}

func TestEnrollFailsWithUnionOfErrors(t *testing.T) {
	eng, ex, _ := newTestEngine()
	ex.FaceCount = 0 // no face in any image

	_, err := eng.Enroll(map[Angle][]byte{
		AngleFront: personJPEG(t, 220, 1),
		AngleLeft:  personJPEG(t, 220, 2),
	})

	var enrollErr *EnrollmentError
	if !errors.As(err, &enrollErr) {
		t.Fatalf("expected EnrollmentError, got %v", err)
	}
	if len(enrollErr.Failures) != 2 {
		t.Fatalf("expected 2 per-angle failures, got %d", len(enrollErr.Failures))
	}
	if enrollErr.Failures[0].Angle != AngleFront || enrollErr.Failures[1].Angle != AngleLeft {
		t.Errorf("expected failures in canonical angle order, got %v", enrollErr.Failures)
	}
	for _, f := range enrollErr.Failures {
		var qe *QualityError
		if !errors.As(f.Err, &qe) || qe.Reason != ReasonNoFace {
			t.Errorf("expected no_face rejection for angle %s, got %v", f.Angle, f.Err)
		}
	}
}

func TestExtractRejectsMultipleFaces(t *testing.T) {
	eng, ex, _ := newTestEngine()
	ex.FaceCount = 3

	_, err := eng.Extract(personJPEG(t, 128, 1), QualityEnrollment)

	var qe *QualityError
	if !errors.As(err, &qe) {
		t.Fatalf("expected QualityError, got %v", err)
	}
	if qe.Reason != ReasonMultipleFaces {
		t.Errorf("expected multiple_faces, got %s", qe.Reason)
	}
	if qe.FaceCount != 3 {
		t.Errorf("expected face count 3, got %d", qe.FaceCount)
	}
}

func TestExtractRejectsSmallFace(t *testing.T) {
	eng, ex, _ := newTestEngine()
	ex.Box = image.Rect(0, 0, 40, 40)

	_, err := eng.Extract(personJPEG(t, 128, 1), QualityEnrollment)

	var qe *QualityError
	if !errors.As(err, &qe) || qe.Reason != ReasonTooSmall {
		t.Fatalf("expected too_small rejection, got %v", err)
	}
}

func TestExtractRejectsBlurryImage(t *testing.T) {
	eng, _, _ := newTestEngine()

	_, err := eng.Extract(flatJPEG(t, 128), QualityEnrollment)

	var qe *QualityError
	if !errors.As(err, &qe) || qe.Reason != ReasonTooBlurry {
		t.Fatalf("expected too_blurry rejection, got %v", err)
	}
}

func TestExtractRejectsGarbageInput(t *testing.T) {
	eng, _, _ := newTestEngine()

	_, err := eng.Extract([]byte("definitely not an image"), QualityRecognition)

	var qe *QualityError
	if !errors.As(err, &qe) || qe.Reason != ReasonBadImage {
		t.Fatalf("expected bad_image rejection, got %v", err)
	}
}

func TestExtractStricterForEnrollment(t *testing.T) {
	eng, _, _ := newTestEngine()

	// Confirm the gate applies different thresholds per level by reading the
	// blur score of a good image against both configured minimums.
	ext, err := eng.Extract(personJPEG(t, 128, 1), QualityEnrollment)
	if err != nil {
		t.Fatalf("extraction failed: %v", err)
	}
	if ext.BlurScore < DefaultQuality().EnrollBlurThreshold {
		t.Errorf("test image too soft for enrollment threshold: %f", ext.BlurScore)
	}
}

func TestRegisterSurfacesExtractorOutage(t *testing.T) {
	eng, ex, _ := newTestEngine()
	ex.Err = errors.New("model crashed")

	_, err := eng.Register(context.Background(), Registration{
		UserID: "user-ada",
		Images: map[Angle][]byte{AngleFront: personJPEG(t, 220, 1)},
	})

	var enrollErr *EnrollmentError
	if !errors.As(err, &enrollErr) {
		t.Fatalf("expected EnrollmentError, got %v", err)
	}
	if !errors.Is(enrollErr.Failures[0].Err, ErrExtractionFailed) {
		t.Errorf("expected extraction failure, got %v", enrollErr.Failures[0].Err)
	}
}

func TestRecognizeUsesPopulationIndex(t *testing.T) {
	idx := store.NewPopulationIndex()
	eng, _, _ := newTestEngine(WithPopulationIndex(idx))
	ctx := context.Background()

	if _, err := eng.Register(ctx, Registration{
		UserID: "user-ada",
		Images: map[Angle][]byte{AngleFront: personJPEG(t, 220, 1)},
	}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected registration to populate the index, got %d entries", idx.Len())
	}

	result, err := eng.Recognize(ctx, personJPEG(t, 220, 42))
	if err != nil {
		t.Fatalf("recognition failed: %v", err)
	}
	if !result.Matched || result.UserID != "user-ada" {
		t.Errorf("expected index-backed match for user-ada, got %+v", result)
	}
}

func TestUnregisterRemovesFromStoreAndIndex(t *testing.T) {
	idx := store.NewPopulationIndex()
	eng, _, st := newTestEngine(WithPopulationIndex(idx))
	ctx := context.Background()

	if _, err := eng.Register(ctx, Registration{
		UserID: "user-ada",
		Images: map[Angle][]byte{AngleFront: personJPEG(t, 220, 1)},
	}); err != nil {
		t.Fatalf("registration failed: %v", err)
	}

	if err := eng.Unregister(ctx, "user-ada"); err != nil {
		t.Fatalf("unregister failed: %v", err)
	}
	if _, err := st.Get(ctx, "user-ada"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected record gone from store, got %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("expected index emptied, got %d entries", idx.Len())
	}

	if err := eng.Unregister(ctx, "user-ada"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}
