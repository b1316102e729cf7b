// Package vecindex implements the identity matching engine: a flat,
// disk-persisted nearest-neighbor index over unit-normalized face
// embeddings, the matcher that turns search results into identity
// decisions, and the lifecycle manager that keeps the index loaded,
// autosaved, and rebuildable from the identity store.
package vecindex

import "math"

// Normalize returns a unit-norm (L2) copy of v. Returns false for empty
// or zero vectors, which have no direction and would break cosine
// semantics silently if stored.
func Normalize(v []float32) ([]float32, bool) {
	if len(v) == 0 {
		return nil, false
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return nil, false
	}

	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, true
}

// Dot computes the inner product of two equal-length vectors in float64.
// For unit vectors this is the cosine similarity.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// CosineSimilarity computes the cosine similarity between two vectors,
// clamped to [-1, 1] to absorb floating point error. Returns 0 for
// mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return similarity
}
