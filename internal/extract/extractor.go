// Package extract defines the capability interface around the third-party
// biometric model that turns face regions into identity vectors, plus the
// real dlib-backed implementation and an "unavailable" stub used when the
// model files are not deployed.
package extract

import (
	"errors"
	"image"

	"github.com/glasslink/faceid/internal/identity"
)

// ErrUnavailable signals that the extraction model cannot run at all: a
// configuration or deployment problem, fatal for the current request and
// logged distinctly from input-quality rejections.
var ErrUnavailable = errors.New("face extraction model unavailable")

// Face is one detected face: its bounding box in the coordinates of the
// image that was passed to Detect, and its identity descriptor.
//
// dlib computes the descriptor in the same pass as detection, so both fields
// arrive together; the quality gate in the engine remains the acceptance
// authority, and no descriptor from a rejected image ever leaves the engine.
type Face struct {
	Box        image.Rectangle
	Descriptor identity.Vector
}

// Extractor locates faces in a JPEG image and computes their descriptors.
// Implementations must be safe for concurrent use.
type Extractor interface {
	// Detect returns every face found in the image. An empty slice means no
	// face was located; errors are dependency/processing failures.
	Detect(jpegData []byte) ([]Face, error)
	// Close releases model resources.
	Close()
}
