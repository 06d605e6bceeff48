//go:build !cgo

package extract

import "fmt"

// Dlib requires cgo: go-face binds to the dlib C++ library. In builds
// without cgo the recognizer can never load, so NewDlib reports
// ErrUnavailable and callers fall back to the Unavailable stub.
type Dlib struct{}

// NewDlib always fails in cgo-less builds.
func NewDlib(modelsDir string) (*Dlib, error) {
	return nil, fmt.Errorf("%w: binary built without cgo; dlib recognizer cannot load models from %s", ErrUnavailable, modelsDir)
}

// Detect always fails with ErrUnavailable.
func (d *Dlib) Detect([]byte) ([]Face, error) {
	return nil, fmt.Errorf("%w: binary built without cgo", ErrUnavailable)
}

// Close is a no-op.
func (d *Dlib) Close() {}
