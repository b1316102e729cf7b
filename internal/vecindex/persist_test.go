package vecindex

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	idx := NewFlat(4)
	inputs := [][]float32{
		{1, 2, 3, 4},
		{4, 3, 2, 1},
		{0.5, 0.5, 0.5, 0.5},
	}
	for i, v := range inputs {
		if err := idx.Add(int64(10+i), v); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	if err := idx.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, 4)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	wantVecs, wantIDs := idx.snapshot()
	gotVecs, gotIDs := loaded.snapshot()

	if len(gotIDs) != len(wantIDs) {
		t.Fatalf("label count %d, want %d", len(gotIDs), len(wantIDs))
	}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Errorf("label %d: got %d, want %d", i, gotIDs[i], wantIDs[i])
		}
		for j := range wantVecs[i] {
			// Bit-for-bit: the stored normalized floats must survive.
			if gotVecs[i][j] != wantVecs[i][j] {
				t.Errorf("vector %d[%d]: got %v, want %v", i, j, gotVecs[i][j], wantVecs[i][j])
			}
		}
	}
}

func TestSaveLoad_EmptyIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	idx := NewFlat(8)
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, 8)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Count() != 0 {
		t.Errorf("expected empty index, got %d entries", loaded.Count())
	}
}

func TestLoad_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nothing-here")

	_, err := Load(path, 4)
	if !errors.Is(err, ErrIndexMissing) {
		t.Errorf("expected ErrIndexMissing, got %v", err)
	}
}

func TestLoad_OneFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	idx := NewFlat(4)
	if err := idx.Add(1, []float32{1, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path + ".ids"); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path, 4)
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt for missing label file, got %v", err)
	}
}

func TestLoad_Truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	idx := NewFlat(4)
	for i := range 3 {
		if err := idx.Add(int64(i), []float32{float32(i + 1), 1, 1, 1}); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path + ".vec")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".vec", data[:len(data)-5], 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Load(path, 4)
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt for truncated blob, got %v", err)
	}
}

func TestLoad_LengthDisagreement(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	a := NewFlat(2)
	if err := a.Add(1, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := a.Add(2, []float32{0, 1}); err != nil {
		t.Fatal(err)
	}
	if err := a.Save(path); err != nil {
		t.Fatal(err)
	}

	// Overwrite the label file with one from a single-entry index.
	other := filepath.Join(t.TempDir(), "other")
	b := NewFlat(2)
	if err := b.Add(1, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := b.Save(other); err != nil {
		t.Fatal(err)
	}
	ids, err := os.ReadFile(other + ".ids")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".ids", ids, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Load(path, 2)
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt for mismatched lengths, got %v", err)
	}
}

func TestLoad_WrongDimension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	idx := NewFlat(4)
	if err := idx.Add(1, []float32{1, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path, 8)
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt for dimension mismatch, got %v", err)
	}
}

func TestLoad_BadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	idx := NewFlat(2)
	if err := idx.Add(1, []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path + ".vec")
	if err != nil {
		t.Fatal(err)
	}
	copy(data[:4], []byte("NOPE"))
	if err := os.WriteFile(path+".vec", data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Load(path, 2)
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("expected ErrIndexCorrupt for bad magic, got %v", err)
	}
}

func TestSave_SearchAfterReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index")

	idx := NewFlat(3)
	e := []float32{0.1, 0.9, 0.4}
	if err := idx.Add(7, e); err != nil {
		t.Fatal(err)
	}
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path, 3)
	if err != nil {
		t.Fatal(err)
	}

	results := loaded.Search(e, 1, 0.4)
	if len(results) != 1 || results[0].PersonID != 7 {
		t.Fatalf("reloaded index search failed: %+v", results)
	}
}
