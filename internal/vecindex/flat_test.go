package vecindex

import (
	"math"
	"testing"
)

// unit returns a unit vector of the given dimension pointing mostly along
// axis, with a small component on the next axis so vectors differ.
func unit(dim, axis int, tilt float32) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	v[(axis+1)%dim] = tilt
	out, _ := Normalize(v)
	return out
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalize(t *testing.T) {
	v, ok := Normalize([]float32{3, 4})
	if !ok {
		t.Fatal("expected ok for non-zero vector")
	}
	if n := vectorNorm(v); math.Abs(n-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", n)
	}
	if math.Abs(float64(v[0])-0.6) > 1e-5 || math.Abs(float64(v[1])-0.8) > 1e-5 {
		t.Errorf("unexpected direction: %v", v)
	}

	if _, ok := Normalize([]float32{0, 0, 0}); ok {
		t.Error("expected not ok for zero vector")
	}
	if _, ok := Normalize(nil); ok {
		t.Error("expected not ok for empty vector")
	}
}

func TestFlat_AddStoresUnitVectors(t *testing.T) {
	idx := NewFlat(4)

	// Deliberately unnormalized input.
	if err := idx.Add(1, []float32{10, 0, 0, 0}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := idx.Add(2, []float32{1, 2, 3, 4}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	vectors, ids := idx.snapshot()
	if len(vectors) != len(ids) {
		t.Fatalf("vectors and labels out of sync: %d vs %d", len(vectors), len(ids))
	}
	for i, vec := range vectors {
		if n := vectorNorm(vec); math.Abs(n-1) > 1e-5 {
			t.Errorf("slot %d: norm %f, want 1", i, n)
		}
	}
}

func TestFlat_AddDimensionMismatch(t *testing.T) {
	idx := NewFlat(4)

	if err := idx.Add(1, []float32{1, 2}); err != ErrDimensionMismatch {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if idx.Count() != 0 {
		t.Errorf("failed add must not change the index, count=%d", idx.Count())
	}
}

func TestFlat_AddZeroVector(t *testing.T) {
	idx := NewFlat(3)

	if err := idx.Add(1, []float32{0, 0, 0}); err != ErrZeroVector {
		t.Errorf("expected ErrZeroVector, got %v", err)
	}
}

func TestFlat_SearchEmptyIndex(t *testing.T) {
	idx := NewFlat(3)

	results := idx.Search([]float32{1, 0, 0}, 5, 0.0)
	if len(results) != 0 {
		t.Errorf("empty index should return empty results, got %d", len(results))
	}
}

func TestFlat_SearchSingleEntry(t *testing.T) {
	idx := NewFlat(3)
	e := []float32{0.2, 0.5, 0.9}
	if err := idx.Add(7, e); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	results := idx.Search(e, 1, 0.4)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].PersonID != 7 {
		t.Errorf("expected person 7, got %d", results[0].PersonID)
	}
	if math.Abs(results[0].Similarity-1.0) > 1e-5 {
		t.Errorf("expected similarity ~1.0, got %f", results[0].Similarity)
	}

	// Antipodal probe sits at similarity -1, below any sane floor.
	anti := []float32{-e[0], -e[1], -e[2]}
	if results := idx.Search(anti, 1, 0.4); len(results) != 0 {
		t.Errorf("antipodal probe should not match, got %d results", len(results))
	}
}

func TestFlat_SearchOrderingAndLimit(t *testing.T) {
	idx := NewFlat(8)
	probe := unit(8, 0, 0)

	// Increasing tilt means decreasing similarity to the probe.
	for i := range 5 {
		if err := idx.Add(int64(100+i), unit(8, 0, float32(i)*0.2)); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	results := idx.Search(probe, 3, -1.0)
	if len(results) != 3 {
		t.Fatalf("expected k=3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not similarity-descending at %d", i)
		}
	}
	if results[0].PersonID != 100 {
		t.Errorf("expected closest person 100 first, got %d", results[0].PersonID)
	}
}

func TestFlat_SearchFloor(t *testing.T) {
	idx := NewFlat(2)
	if err := idx.Add(1, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(2, []float32{0, 1}); err != nil {
		t.Fatal(err)
	}

	// Orthogonal entry has similarity 0, below the floor.
	results := idx.Search([]float32{1, 0}, 10, 0.5)
	if len(results) != 1 {
		t.Fatalf("expected 1 result above floor, got %d", len(results))
	}
	if results[0].PersonID != 1 {
		t.Errorf("expected person 1, got %d", results[0].PersonID)
	}
	for _, r := range results {
		if r.Similarity < 0.5 {
			t.Errorf("result below floor: %f", r.Similarity)
		}
	}
}

func TestFlat_SearchTieBreakLowerSlot(t *testing.T) {
	idx := NewFlat(3)
	e := []float32{0.3, 0.3, 0.3}

	// Same embedding under two different ids; earlier enrollment wins.
	if err := idx.Add(42, e); err != nil {
		t.Fatal(err)
	}
	if err := idx.Add(99, e); err != nil {
		t.Fatal(err)
	}

	results := idx.Search(e, 2, 0.4)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].PersonID != 42 {
		t.Errorf("tie must resolve to the earlier slot, got person %d first", results[0].PersonID)
	}
	if results[0].Slot != 0 || results[1].Slot != 1 {
		t.Errorf("unexpected slots: %d, %d", results[0].Slot, results[1].Slot)
	}
}

func TestFlat_SearchBadQueries(t *testing.T) {
	idx := NewFlat(3)
	if err := idx.Add(1, []float32{1, 0, 0}); err != nil {
		t.Fatal(err)
	}

	if results := idx.Search([]float32{1, 0}, 1, 0.0); results != nil {
		t.Error("dimension-mismatched query should yield no match")
	}
	if results := idx.Search([]float32{0, 0, 0}, 1, 0.0); results != nil {
		t.Error("zero query should yield no match")
	}
	if results := idx.Search([]float32{1, 0, 0}, 0, 0.0); results != nil {
		t.Error("k=0 should yield no match")
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"unnormalized", []float32{2, 0}, []float32{5, 0}, 1.0},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 1e-6 {
				t.Errorf("CosineSimilarity = %f, want %f", got, tt.expected)
			}
		})
	}
}
