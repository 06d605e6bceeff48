// Package engine implements the biometric pipeline: image preprocessing,
// the quality gate, descriptor extraction, enrollment aggregation, duplicate
// guarding and recognition. It owns no transport or storage details; both
// are injected.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/glasslink/faceid/internal/extract"
	"github.com/glasslink/faceid/internal/identity"
	"github.com/glasslink/faceid/internal/imageproc"
	"github.com/glasslink/faceid/internal/store"
)

// Angle identifies which capture pose an enrollment image represents.
type Angle string

const (
	AngleFront Angle = "front"
	AngleLeft  Angle = "left"
	AngleRight Angle = "right"
	AngleUp    Angle = "up"
	AngleDown  Angle = "down"
)

// Angles lists the capture poses in canonical order. Per-angle failures are
// reported in this order regardless of map iteration.
var Angles = []Angle{AngleFront, AngleLeft, AngleRight, AngleUp, AngleDown}

// QualityLevel selects which blur threshold the gate applies. Enrollment
// images set the template for all future matching, so they are held to a
// stricter standard than live recognition frames.
type QualityLevel int

const (
	QualityEnrollment QualityLevel = iota
	QualityRecognition
)

// QualityConfig holds the gate thresholds.
type QualityConfig struct {
	// MinFacePx is the minimum bounding-box side length in pixels, measured
	// after downscaling.
	MinFacePx int

	// EnrollBlurThreshold and RecognizeBlurThreshold are the minimum
	// Laplacian variance of the face crop for each quality level.
	EnrollBlurThreshold    float64
	RecognizeBlurThreshold float64
}

// DefaultQuality returns the production gate thresholds.
func DefaultQuality() QualityConfig {
	return QualityConfig{
		MinFacePx:              80,
		EnrollBlurThreshold:    100.0,
		RecognizeBlurThreshold: 80.0,
	}
}

// Extraction is the result of a successful gate-and-extract pass.
type Extraction struct {
	Descriptor identity.Vector
	Box        image.Rectangle
	BlurScore  float64
}

// Registration is a request to enroll (or re-enroll) a person.
type Registration struct {
	UserID       string
	DisplayName  string
	ContactEmail string

	// Images maps capture angles to raw encoded image bytes. At least one
	// angle must yield a usable vector.
	Images map[Angle][]byte
}

// Engine wires the extractor, the store and the matcher into the enrollment
// and recognition operations.
type Engine struct {
	extractor extract.Extractor
	store     store.Store
	matcher   identity.Matcher
	quality   QualityConfig
	limits    imageproc.Limits

	// index, when set, accelerates the duplicate guard and recognition over
	// large populations. Candidates are always re-verified exactly.
	index *store.PopulationIndex
}

// Option customizes an Engine beyond its required dependencies.
type Option func(*Engine)

// WithPopulationIndex attaches an in-memory nearest-neighbor prefilter.
func WithPopulationIndex(idx *store.PopulationIndex) Option {
	return func(e *Engine) { e.index = idx }
}

// WithImageLimits overrides the preprocessing limits.
func WithImageLimits(l imageproc.Limits) Option {
	return func(e *Engine) { e.limits = l }
}

// New creates an Engine. Tolerance is the calibrated match threshold shared
// by the matcher and the duplicate guard.
func New(extractor extract.Extractor, st store.Store, tolerance float64, quality QualityConfig, opts ...Option) *Engine {
	e := &Engine{
		extractor: extractor,
		store:     st,
		matcher:   identity.Matcher{Tolerance: tolerance},
		quality:   quality,
		limits:    imageproc.DefaultLimits(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Tolerance returns the calibrated match threshold.
func (e *Engine) Tolerance() float64 { return e.matcher.Tolerance }

// Extract runs one image through preprocessing, the quality gate and the
// descriptor extractor. The gate is the sole acceptance authority: the
// extractor may locate faces the gate then rejects.
func (e *Engine) Extract(raw []byte, level QualityLevel) (*Extraction, error) {
	img, err := imageproc.Decode(raw, e.limits)
	if err != nil {
		return nil, &QualityError{Reason: ReasonBadImage, Detail: err.Error(), Cause: err}
	}

	jpegData, err := imageproc.EncodeJPEG(img)
	if err != nil {
		return nil, fmt.Errorf("%w: re-encoding image: %v", ErrExtractionFailed, err)
	}

	faces, err := e.extractor.Detect(jpegData)
	if err != nil {
		if errors.Is(err, extract.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	switch len(faces) {
	case 0:
		return nil, &QualityError{Reason: ReasonNoFace}
	case 1:
	default:
		return nil, &QualityError{Reason: ReasonMultipleFaces, FaceCount: len(faces)}
	}

	face := faces[0]
	if face.Box.Dx() < e.quality.MinFacePx || face.Box.Dy() < e.quality.MinFacePx {
		return nil, &QualityError{
			Reason: ReasonTooSmall,
			Detail: fmt.Sprintf("%dx%d px, minimum %d px per side", face.Box.Dx(), face.Box.Dy(), e.quality.MinFacePx),
		}
	}

	threshold := e.quality.EnrollBlurThreshold
	if level == QualityRecognition {
		threshold = e.quality.RecognizeBlurThreshold
	}
	blur := imageproc.LaplacianVariance(imageproc.GrayscaleCrop(img, face.Box))
	if blur < threshold {
		return nil, &QualityError{
			Reason: ReasonTooBlurry,
			Detail: fmt.Sprintf("sharpness %.1f, minimum %.1f", blur, threshold),
		}
	}

	if len(face.Descriptor) == 0 {
		return nil, fmt.Errorf("%w: empty descriptor for located face", ErrExtractionFailed)
	}

	return &Extraction{Descriptor: face.Descriptor, Box: face.Box, BlurScore: blur}, nil
}

// Enroll extracts a vector from each supplied angle and averages the
// successes into one canonical vector. Individual angles may fail; the
// operation fails only when every angle does, and then reports each angle's
// reason so the operator knows which captures to redo.
func (e *Engine) Enroll(images map[Angle][]byte) (identity.Vector, error) {
	var vectors []identity.Vector
	var failures []AngleError

	for _, angle := range Angles {
		raw, ok := images[angle]
		if !ok {
			continue
		}
		ext, err := e.Extract(raw, QualityEnrollment)
		if err != nil {
			failures = append(failures, AngleError{Angle: angle, Err: err})
			continue
		}
		vectors = append(vectors, ext.Descriptor)
	}

	if len(vectors) == 0 {
		if len(failures) == 0 {
			return nil, &EnrollmentError{Failures: []AngleError{{Angle: AngleFront, Err: &QualityError{Reason: ReasonBadImage, Detail: "no images supplied"}}}}
		}
		return nil, &EnrollmentError{Failures: failures}
	}

	for _, f := range failures {
		log.Printf("enrollment: angle %s rejected: %v", f.Angle, f.Err)
	}
	return identity.Average(vectors), nil
}

// Register enrolls a person end to end: aggregate the vector, run the
// duplicate guard against the current population, then persist through the
// store's uniqueness-enforcing upsert. The guard is a best-effort fast
// path; UpsertUnique is the authority under concurrency.
func (e *Engine) Register(ctx context.Context, req Registration) (identity.EnrollmentRecord, error) {
	vec, err := e.Enroll(req.Images)
	if err != nil {
		return identity.EnrollmentRecord{}, err
	}

	population, err := e.store.List(ctx)
	if err != nil {
		return identity.EnrollmentRecord{}, fmt.Errorf("loading population: %w", err)
	}
	if dup, found := e.matcher.CheckDuplicate(vec, population, req.UserID); found {
		log.Printf("registration rejected: probe matches enrolled identity %s", dup)
		return identity.EnrollmentRecord{}, store.ErrDuplicateIdentity
	}

	rec := identity.NewEnrollmentRecord(req.UserID, vec, req.DisplayName, req.ContactEmail)
	if err := e.store.UpsertUnique(ctx, rec, e.matcher.Tolerance); err != nil {
		return identity.EnrollmentRecord{}, err
	}

	if e.index != nil {
		e.index.Add(rec.UserID, rec.Vector)
	}
	return rec, nil
}

// Unregister removes an enrollment.
func (e *Engine) Unregister(ctx context.Context, userID string) error {
	if err := e.store.Delete(ctx, userID); err != nil {
		return err
	}
	if e.index != nil {
		e.index.Remove(userID)
	}
	return nil
}

// Recognize extracts a probe vector from raw and matches it against the
// enrolled population. A no-match is a successful operation with
// Matched=false, never an error.
func (e *Engine) Recognize(ctx context.Context, raw []byte) (identity.MatchResult, error) {
	ext, err := e.Extract(raw, QualityRecognition)
	if err != nil {
		return identity.MatchResult{}, err
	}

	// Index fast path: if the approximate nearest neighbor verifies exactly
	// within tolerance, skip the full scan.
	if e.index != nil {
		if userID, distance, ok := e.index.Nearest(ext.Descriptor); ok && distance <= e.matcher.Tolerance {
			d := distance
			return identity.MatchResult{
				Matched:    true,
				UserID:     userID,
				Distance:   &d,
				Confidence: identity.Confidence(distance),
			}, nil
		}
	}

	population, err := e.store.List(ctx)
	if err != nil {
		return identity.MatchResult{}, fmt.Errorf("loading population: %w", err)
	}
	return e.matcher.Match(ext.Descriptor, population), nil
}
