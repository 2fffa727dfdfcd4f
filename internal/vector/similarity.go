// Package vector provides similarity helpers for embedding vectors.
package vector

import "math"

// InnerProduct returns the inner product of two vectors, or 0 when their
// lengths differ or they are empty.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns the cosine of the angle between a and b in [-1, 1].
// It returns 0 when the lengths differ or either vector is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	cos := InnerProduct(a, b) / (na * nb)
	// rounding can push |cos| slightly past 1
	return math.Max(-1, math.Min(1, cos))
}
