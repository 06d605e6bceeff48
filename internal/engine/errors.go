package engine

import (
	"errors"
	"fmt"
	"strings"
)

// RejectReason identifies why an image failed the quality gate. The values
// are part of the API surface and appear verbatim in error responses.
type RejectReason string

const (
	ReasonNoFace        RejectReason = "no_face"
	ReasonMultipleFaces RejectReason = "multiple_faces"
	ReasonTooSmall      RejectReason = "too_small"
	ReasonTooBlurry     RejectReason = "too_blurry"
	ReasonBadImage      RejectReason = "bad_image"
)

// ErrExtractionFailed reports that the biometric model failed on an image
// that had already passed the quality gate.
var ErrExtractionFailed = errors.New("face descriptor extraction failed")

// QualityError describes a quality-gate rejection. It is a client error:
// the caller should retake the photo, not retry the request.
type QualityError struct {
	Reason    RejectReason
	FaceCount int    // populated for multiple_faces
	Detail    string // human-oriented context, e.g. measured values
	Cause     error  // underlying decode error for bad_image, nil otherwise
}

func (e *QualityError) Unwrap() error { return e.Cause }

func (e *QualityError) Error() string {
	switch e.Reason {
	case ReasonNoFace:
		return "no face detected in image"
	case ReasonMultipleFaces:
		return fmt.Sprintf("multiple faces detected in image (%d)", e.FaceCount)
	case ReasonTooSmall:
		if e.Detail != "" {
			return "detected face is too small: " + e.Detail
		}
		return "detected face is too small"
	case ReasonTooBlurry:
		if e.Detail != "" {
			return "image is too blurry: " + e.Detail
		}
		return "image is too blurry"
	case ReasonBadImage:
		if e.Detail != "" {
			return "invalid image: " + e.Detail
		}
		return "invalid image"
	}
	return string(e.Reason)
}

// AngleError ties a rejection to the capture angle it occurred on.
type AngleError struct {
	Angle Angle
	Err   error
}

func (e AngleError) Error() string {
	return fmt.Sprintf("%s: %v", e.Angle, e.Err)
}

func (e AngleError) Unwrap() error { return e.Err }

// EnrollmentError is returned when every supplied angle failed, so no vector
// could be built. Failures are reported per angle, in canonical angle order,
// so the operator can see exactly which captures to redo.
type EnrollmentError struct {
	Failures []AngleError
}

// Unwrap exposes the per-angle failures so callers can classify the whole
// enrollment with errors.Is (e.g. spot a dependency outage behind every angle).
func (e *EnrollmentError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i := range e.Failures {
		errs[i] = e.Failures[i]
	}
	return errs
}

func (e *EnrollmentError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return "all enrollment images were rejected: " + strings.Join(parts, "; ")
}
