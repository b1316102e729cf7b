package vecindex

import (
	"github.com/facegate/facegate/internal/store"
)

// SimilarityFloor converts a cosine distance threshold ("maximum
// acceptable distance", the value carried in config) to the similarity
// floor used everywhere inside the engine. This is the single place the
// two conventions meet.
func SimilarityFloor(threshold float64) float64 {
	return 1 - threshold
}

// Match is a resolved identity decision. Confidence is the raw cosine
// similarity, surfaced untransformed so downstream threshold tuning stays
// meaningful.
type Match struct {
	PersonID   int64
	Confidence float64
}

// Searcher is the read surface the matcher needs from an index.
type Searcher interface {
	Search(query []float32, k int, floor float64) []SearchResult
}

// Matcher resolves probe embeddings to identities under a similarity
// threshold.
type Matcher struct {
	index Searcher
	floor float64
	topK  int
}

// NewMatcher creates a matcher over the given index. threshold is a
// cosine distance (default 0.6); topK bounds the underlying search.
func NewMatcher(index Searcher, threshold float64, topK int) *Matcher {
	if topK <= 0 {
		topK = 1
	}
	return &Matcher{index: index, floor: SimilarityFloor(threshold), topK: topK}
}

// Identify returns the best match for the probe embedding, or ok=false
// when nothing clears the floor. Search already orders results similarity
// descending with ties broken by lower slot, so the first result is the
// decision.
func (m *Matcher) Identify(query []float32) (Match, bool) {
	results := m.index.Search(query, m.topK, m.floor)
	if len(results) == 0 {
		return Match{}, false
	}
	best := results[0]
	return Match{PersonID: best.PersonID, Confidence: best.Similarity}, true
}

// BatchIdentify scores the probe against a supplied candidate set instead
// of the whole index, returning matches above the floor sorted by
// confidence descending. Ties keep the candidates' original order.
func (m *Matcher) BatchIdentify(query []float32, candidates []store.IdentityRecord) []Match {
	q, ok := Normalize(query)
	if !ok {
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for _, cand := range candidates {
		sim := CosineSimilarity(q, cand.Embedding)
		if sim < m.floor {
			continue
		}
		matches = append(matches, Match{PersonID: cand.PersonID, Confidence: sim})
	}

	// Insertion sort keeps the scan stable for equal confidences.
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].Confidence > matches[j-1].Confidence; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	return matches
}
