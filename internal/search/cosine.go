package search

import "math"

// Cosine returns the cosine similarity of a and b. Vectors of different
// length are compared over their common prefix. It is 0 when either vector
// has zero norm and is clamped to [-1, 1].
func Cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	normA, normB := norm(a), norm(b)
	if normA == 0 || normB == 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, dot/(normA*normB)))
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
