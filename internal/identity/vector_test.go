package identity

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

func TestDistance_Symmetric(t *testing.T) {
	a := Vector{0.1, 0.5, -0.3, 0.9}
	b := Vector{-0.2, 0.4, 0.7, 0.1}

	ab := Distance(a, b)
	ba := Distance(b, a)

	if ab != ba {
		t.Errorf("distance not symmetric: d(a,b)=%f, d(b,a)=%f", ab, ba)
	}
}

func TestDistance_SelfIsZero(t *testing.T) {
	a := Vector{0.25, -0.75, 0.5}

	if d := Distance(a, a); d != 0 {
		t.Errorf("expected d(a,a)=0, got %f", d)
	}
}

func TestDistance_KnownValue(t *testing.T) {
	a := Vector{0, 0}
	b := Vector{3, 4}

	if d := Distance(a, b); !almostEqual(d, 5.0, 1e-9) {
		t.Errorf("expected distance 5.0, got %f", d)
	}
}

func TestDistance_MismatchedLengths(t *testing.T) {
	a := Vector{1, 2, 3}
	b := Vector{1, 2}

	if d := Distance(a, b); d != math.MaxFloat64 {
		t.Errorf("expected max distance for mismatched lengths, got %f", d)
	}

	if d := Distance(nil, nil); d != math.MaxFloat64 {
		t.Errorf("expected max distance for empty vectors, got %f", d)
	}
}

func TestAverage_OrderIndependent(t *testing.T) {
	a := Vector{1, 0, 0.5}
	b := Vector{0, 1, 0.5}
	c := Vector{0.5, 0.5, -1}

	abc := Average([]Vector{a, b, c})
	cba := Average([]Vector{c, b, a})
	bac := Average([]Vector{b, a, c})

	for i := range abc {
		if abc[i] != cba[i] || abc[i] != bac[i] {
			t.Fatalf("average depends on input order at index %d: %f, %f, %f", i, abc[i], cba[i], bac[i])
		}
	}
}

func TestAverage_Values(t *testing.T) {
	avg := Average([]Vector{{1, 2}, {3, 4}})

	if avg[0] != 2 || avg[1] != 3 {
		t.Errorf("expected [2 3], got %v", avg)
	}
}

func TestAverage_SingleVector(t *testing.T) {
	v := Vector{0.1, 0.2, 0.3}
	avg := Average([]Vector{v})

	for i := range v {
		if !almostEqual(float64(avg[i]), float64(v[i]), 1e-6) {
			t.Errorf("average of one vector changed value at %d: %f vs %f", i, avg[i], v[i])
		}
	}
}

func TestAverage_Empty(t *testing.T) {
	if avg := Average(nil); avg != nil {
		t.Errorf("expected nil for empty input, got %v", avg)
	}
}

func TestConfidence_Clamped(t *testing.T) {
	cases := []struct {
		distance float64
		want     float64
	}{
		{0.0, 1.0},
		{0.4, 0.6},
		{1.0, 0.0},
		{1.5, 0.0},
		{-0.5, 1.0},
	}

	for _, tc := range cases {
		if got := Confidence(tc.distance); !almostEqual(got, tc.want, 1e-9) {
			t.Errorf("Confidence(%f) = %f, want %f", tc.distance, got, tc.want)
		}
	}
}
