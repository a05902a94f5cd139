package embedding

import "math"

// Cosine returns the cosine similarity of a and b in [-1, 1]. Vectors of
// different lengths are a caller bug and fail fast; a zero-magnitude vector
// is a degenerate input and scores 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{LenA: len(a), LenB: len(b)}
	}
	var dot, na, nb float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
