package utils

import "math"

// Dot returns the inner product of a and b, or 0 when their lengths differ.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm returns the L2 norm of x.
func Norm(x []float32) float64 {
	return math.Sqrt(Dot(x, x))
}

// Cosine returns the cosine similarity of a and b. Zero vectors and vectors
// of different lengths give 0.
func Cosine(a, b []float32) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 || len(a) != len(b) {
		return 0
	}
	return Dot(a, b) / (na * nb)
}

// NormalizeL2 scales x in place to unit length. A zero vector is left as is.
func NormalizeL2(x []float32) {
	n := Norm(x)
	if n == 0 {
		return
	}
	inv := float32(1 / n)
	for i := range x {
		x[i] *= inv
	}
}
