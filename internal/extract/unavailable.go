package extract

import "fmt"

// Unavailable is the stub implementation used when the biometric model is
// not deployed. Every call reports the dependency failure so operators can
// tell "broken service" apart from "bad photo"; business logic never checks
// availability itself.
type Unavailable struct {
	// Reason describes why the model could not be loaded.
	Reason string
}

// Detect always fails with ErrUnavailable.
func (u Unavailable) Detect([]byte) ([]Face, error) {
	if u.Reason == "" {
		return nil, ErrUnavailable
	}
	return nil, fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}

// Close is a no-op.
func (u Unavailable) Close() {}
