package vecindex

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrDimensionMismatch is returned when an embedding's length does not
	// match the index dimension. Fatal to that call only.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrZeroVector is returned for embeddings with no direction.
	ErrZeroVector = errors.New("embedding has zero norm")
)

// SearchResult is one candidate from an index scan. Slot is the position
// of the stored vector, which doubles as the tie-break key: equal
// similarities resolve to the lowest slot (earliest enrolled).
type SearchResult struct {
	PersonID   int64
	Similarity float64
	Slot       int
}

// Flat is a brute-force exact index over unit-normalized vectors. Vectors
// and person ids are parallel sequences mutated together; slot i in one
// labels slot i in the other. Exact linear scan is deliberate: enrolled
// populations stay in the thousands, where it beats approximate
// structures and keeps results deterministic.
type Flat struct {
	dim int

	mu      sync.RWMutex
	vectors [][]float32
	ids     []int64
}

// NewFlat creates an empty index for embeddings of the given dimension.
func NewFlat(dim int) *Flat {
	return &Flat{dim: dim}
}

// Dim returns the configured embedding dimension.
func (f *Flat) Dim() int {
	return f.dim
}

// Count returns the number of indexed identities.
func (f *Flat) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// Add normalizes the embedding and appends it as the next slot, with
// personID appended to the parallel label sequence.
func (f *Flat) Add(personID int64, embedding []float32) error {
	if len(embedding) != f.dim {
		return ErrDimensionMismatch
	}
	vec, ok := Normalize(embedding)
	if !ok {
		return ErrZeroVector
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = append(f.vectors, vec)
	f.ids = append(f.ids, personID)
	return nil
}

// Search scans every stored vector and returns at most k results with
// cosine similarity >= floor, ordered by similarity descending with exact
// ties resolved to the lower slot. An empty index, a zero query, or a
// dimension mismatch yields an empty result, never an error: a failed
// search must read as "no match", not as a recognized identity.
func (f *Flat) Search(query []float32, k int, floor float64) []SearchResult {
	if k <= 0 || len(query) != f.dim {
		return nil
	}
	q, ok := Normalize(query)
	if !ok {
		return nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	results := make([]SearchResult, 0, k)
	for slot, vec := range f.vectors {
		sim := Dot(q, vec)
		if sim < floor {
			continue
		}
		results = append(results, SearchResult{
			PersonID:   f.ids[slot],
			Similarity: sim,
			Slot:       slot,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Slot < results[j].Slot
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// snapshot returns copies of the vector and label sequences for
// persistence, taken under the read lock so the two stay aligned.
func (f *Flat) snapshot() ([][]float32, []int64) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	vectors := make([][]float32, len(f.vectors))
	copy(vectors, f.vectors)
	ids := make([]int64, len(f.ids))
	copy(ids, f.ids)
	return vectors, ids
}
