package gasrag

import "math"

// L2Norm returns the Euclidean length of v.
func L2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Mismatched lengths and zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	return CosineSimilarityWithNorms(a, b, L2Norm(a), L2Norm(b))
}

// CosineSimilarityWithNorms is CosineSimilarity with precomputed norms,
// avoiding a second pass over each vector.
func CosineSimilarityWithNorms(a, b []float32, normA, normB float64) float64 {
	if len(a) != len(b) || normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}

// ValidateEmbedding returns EINVALID unless v has exactly dim finite values.
func ValidateEmbedding(v []float32, dim int) error {
	if len(v) != dim {
		return Errorf(EINVALID, "embedding has %d dimensions, expected %d", len(v), dim)
	}
	for i, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Errorf(EINVALID, "embedding value at index %d is not finite", i)
		}
	}
	return nil
}
