//go:build cgo

package extract

import (
	"fmt"
	"sync"

	goface "github.com/Kagami/go-face"

	"github.com/glasslink/faceid/internal/identity"
)

// Dlib wraps the go-face recognizer (dlib ResNet face descriptors, 128
// dimensions, Euclidean metric). The recognizer is not documented as
// goroutine-safe, so calls are serialized behind a mutex; detection is
// CPU-bound with no internal suspension points, so callers provide their
// own concurrency around it.
type Dlib struct {
	mu  sync.Mutex
	rec *goface.Recognizer
}

// NewDlib loads the dlib models from modelsDir. A load failure is a
// deployment problem and is reported as ErrUnavailable.
func NewDlib(modelsDir string) (*Dlib, error) {
	rec, err := goface.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: loading models from %s: %v", ErrUnavailable, modelsDir, err)
	}
	return &Dlib{rec: rec}, nil
}

// Detect locates faces and computes their descriptors. The input must be
// JPEG-encoded; the preprocessing pipeline guarantees that.
func (d *Dlib) Detect(jpegData []byte) ([]Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	found, err := d.rec.Recognize(jpegData)
	if err != nil {
		return nil, fmt.Errorf("recognizing faces: %w", err)
	}

	faces := make([]Face, 0, len(found))
	for i := range found {
		desc := found[i].Descriptor
		vec := make(identity.Vector, len(desc))
		copy(vec, desc[:])
		faces = append(faces, Face{
			Box:        found[i].Rectangle,
			Descriptor: vec,
		})
	}
	return faces, nil
}

// Close releases the dlib recognizer.
func (d *Dlib) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
	}
}
