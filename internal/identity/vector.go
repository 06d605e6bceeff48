// Package identity holds the core types of the matching engine: identity
// vectors, enrollment records and the distance-based matcher. Vectors are
// compared only by Euclidean distance; no other algebra is defined on them.
package identity

import "math"

// Dim is the length of every identity vector, fixed by the dlib face
// descriptor model. Vectors produced by a different extractor configuration
// must never be compared against stored ones.
const Dim = 128

// Vector is a fixed-length numeric representation of one face.
type Vector []float32

// Distance computes the Euclidean distance between two vectors.
// Mismatched or empty inputs yield the maximum distance so they can never
// produce a match (mirrors treating invalid input as "infinitely far").
func Distance(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Average computes the element-wise arithmetic mean of the given vectors.
// The result is independent of input order. Returns nil for empty input.
// Averaging several poses reduces pose-specific extraction noise better
// than picking a single "best" photo; mean was chosen for determinism.
func Average(vectors []Vector) Vector {
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	sums := make([]float64, dim)
	for _, v := range vectors {
		for i := range v {
			sums[i] += float64(v[i])
		}
	}

	avg := make(Vector, dim)
	n := float64(len(vectors))
	for i := range sums {
		avg[i] = float32(sums[i] / n)
	}
	return avg
}

// Confidence converts a distance into a presentation value in [0, 1].
// It is monotonic in distance, not a calibrated probability.
func Confidence(distance float64) float64 {
	c := 1.0 - distance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Clone returns a copy of the vector so callers can retain it safely.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}
