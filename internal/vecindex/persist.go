package vecindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// On-disk layout: two co-located files forming one logical unit.
//
//	<path>.vec  "FGVE" | uint32 version | uint32 dim | uint32 count | count*dim float32 LE
//	<path>.ids  "FGID" | uint32 version | uint32 count | count int64 LE
//
// Both are written to temp files and renamed into place. A crash between
// the two renames leaves mismatched counts, which Load reports as corrupt
// rather than serving a half-written index.

const persistVersion = 1

var (
	vecMagic = [4]byte{'F', 'G', 'V', 'E'}
	idsMagic = [4]byte{'F', 'G', 'I', 'D'}

	// ErrIndexMissing means no persisted index exists at the path.
	ErrIndexMissing = errors.New("index files not found")

	// ErrIndexCorrupt means the persisted artifacts are unreadable,
	// truncated, or disagree with each other.
	ErrIndexCorrupt = errors.New("index files corrupt")
)

// Save durably writes the vector blob and label sequence together.
func (f *Flat) Save(path string) error {
	vectors, ids := f.snapshot()

	vecTmp := path + ".vec.tmp"
	if err := writeVectors(vecTmp, f.dim, vectors); err != nil {
		return fmt.Errorf("writing vector blob: %w", err)
	}
	idsTmp := path + ".ids.tmp"
	if err := writeLabels(idsTmp, ids); err != nil {
		_ = os.Remove(vecTmp)
		return fmt.Errorf("writing label sequence: %w", err)
	}

	if err := os.Rename(vecTmp, path+".vec"); err != nil {
		_ = os.Remove(vecTmp)
		_ = os.Remove(idsTmp)
		return fmt.Errorf("replacing vector blob: %w", err)
	}
	if err := os.Rename(idsTmp, path+".ids"); err != nil {
		_ = os.Remove(idsTmp)
		return fmt.Errorf("replacing label sequence: %w", err)
	}
	return nil
}

// Load reads a persisted index. Returns ErrIndexMissing when neither file
// exists and ErrIndexCorrupt when either artifact is unreadable, has an
// unexpected dimension, or the two disagree in length. The caller decides
// the fallback; Load never returns a partially populated index.
func Load(path string, dim int) (*Flat, error) {
	vecPath := path + ".vec"
	idsPath := path + ".ids"

	_, vecErr := os.Stat(vecPath)
	_, idsErr := os.Stat(idsPath)
	if os.IsNotExist(vecErr) && os.IsNotExist(idsErr) {
		return nil, ErrIndexMissing
	}
	if os.IsNotExist(vecErr) || os.IsNotExist(idsErr) {
		return nil, fmt.Errorf("%w: one of the paired files is missing", ErrIndexCorrupt)
	}

	vectors, err := readVectors(vecPath, dim)
	if err != nil {
		return nil, err
	}
	ids, err := readLabels(idsPath)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(ids) {
		return nil, fmt.Errorf("%w: %d vectors but %d labels", ErrIndexCorrupt, len(vectors), len(ids))
	}

	return &Flat{dim: dim, vectors: vectors, ids: ids}, nil
}

func writeVectors(path string, dim int, vectors [][]float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	header := []any{vecMagic, uint32(persistVersion), uint32(dim), uint32(len(vectors))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			f.Close()
			return err
		}
	}
	for _, vec := range vectors {
		if err := binary.Write(w, binary.LittleEndian, vec); err != nil {
			f.Close()
			return err
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeLabels(path string, ids []int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	header := []any{idsMagic, uint32(persistVersion), uint32(len(ids))}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			f.Close()
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, ids); err != nil {
		f.Close()
		return err
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readVectors(path string, dim int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic [4]byte
	var version, fileDim, count uint32
	if err := readHeader(r, &magic, &version, &fileDim, &count); err != nil {
		return nil, err
	}
	if magic != vecMagic {
		return nil, fmt.Errorf("%w: bad vector blob magic", ErrIndexCorrupt)
	}
	if version != persistVersion {
		return nil, fmt.Errorf("%w: unsupported vector blob version %d", ErrIndexCorrupt, version)
	}
	if int(fileDim) != dim {
		return nil, fmt.Errorf("%w: dimension %d does not match configured %d", ErrIndexCorrupt, fileDim, dim)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("%w: truncated vector blob", ErrIndexCorrupt)
		}
		vectors[i] = vec
	}
	if err := expectEOF(r); err != nil {
		return nil, err
	}
	return vectors, nil
}

func readLabels(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIndexCorrupt, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic [4]byte
	var version, count uint32
	if err := readHeader(r, &magic, &version, &count); err != nil {
		return nil, err
	}
	if magic != idsMagic {
		return nil, fmt.Errorf("%w: bad label file magic", ErrIndexCorrupt)
	}
	if version != persistVersion {
		return nil, fmt.Errorf("%w: unsupported label file version %d", ErrIndexCorrupt, version)
	}

	ids := make([]int64, count)
	if err := binary.Read(r, binary.LittleEndian, ids); err != nil {
		return nil, fmt.Errorf("%w: truncated label file", ErrIndexCorrupt)
	}
	if err := expectEOF(r); err != nil {
		return nil, err
	}
	return ids, nil
}

func readHeader(r io.Reader, fields ...any) error {
	for _, field := range fields {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("%w: truncated header", ErrIndexCorrupt)
		}
	}
	return nil
}

func expectEOF(r io.Reader) error {
	var buf [1]byte
	if _, err := r.Read(buf[:]); err != io.EOF {
		return fmt.Errorf("%w: trailing data", ErrIndexCorrupt)
	}
	return nil
}
