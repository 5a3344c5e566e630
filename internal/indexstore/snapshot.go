package indexstore

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	lperrors "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/errors"
)

// Snapshot is a saved index directory read back line by line.
type Snapshot struct {
	Lexicon  []Fields
	Inverted []Fields
	DocIndex []Fields
	Stats    Fields
}

// ReadJSONL reads a line-delimited JSON file whose lines are all objects.
// Blank lines are skipped.
func ReadJSONL(path string) ([]Fields, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", path, lperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	var out []Fields
	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		line, err := r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			v, derr := decodeDocument(line)
			if derr != nil {
				return nil, fmt.Errorf("%s line %d: %w", path, lineNo, derr)
			}
			obj, ok := v.(Fields)
			if !ok {
				return nil, fmt.Errorf("%s line %d: %w: expected an object, got %T",
					path, lineNo, lperrors.ErrMalformedJSON, v)
			}
			out = append(out, obj)
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}
}

// ReadDir reads back the four files Save wrote into dir.
func (s *Store) ReadDir(dir string) (*Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.Lexicon, err = ReadJSONL(filepath.Join(dir, LexiconFile)); err != nil {
		return nil, err
	}
	if snap.Inverted, err = ReadJSONL(filepath.Join(dir, InvertedFile)); err != nil {
		return nil, err
	}
	if snap.DocIndex, err = ReadJSONL(filepath.Join(dir, DocIndexFile)); err != nil {
		return nil, err
	}
	stats, err := s.Load(filepath.Join(dir, StatsFile))
	if err != nil {
		return nil, err
	}
	obj, ok := stats.(Fields)
	if !ok {
		return nil, fmt.Errorf("%s: %w: expected an object, got %T", StatsFile, lperrors.ErrMalformedJSON, stats)
	}
	snap.Stats = obj
	return &snap, nil
}

// Check verifies the invariants Save guarantees: every lexicon line has a
// string term, every inverted line has a string termid and docids and freqs
// arrays of equal length.
func (s *Snapshot) Check() error {
	for i, line := range s.Lexicon {
		if _, ok := stringField(line, "term"); !ok {
			return fmt.Errorf("%s line %d: %w: missing term", LexiconFile, i+1, lperrors.ErrMalformedJSON)
		}
	}
	for i, line := range s.Inverted {
		id, ok := stringField(line, "termid")
		if !ok {
			return fmt.Errorf("%s line %d: %w: missing termid", InvertedFile, i+1, lperrors.ErrMalformedJSON)
		}
		docIDs, ok1 := arrayField(line, "docids")
		freqs, ok2 := arrayField(line, "freqs")
		if !ok1 || !ok2 {
			return fmt.Errorf("%s line %d: %w: docids and freqs must be arrays", InvertedFile, i+1, lperrors.ErrMalformedJSON)
		}
		if len(docIDs) != len(freqs) {
			return fmt.Errorf("%s term id %q: %w: %d doc ids and %d freqs",
				InvertedFile, id, lperrors.ErrPostingsMismatch, len(docIDs), len(freqs))
		}
	}
	return nil
}

func stringField(f Fields, key string) (string, bool) {
	v, ok := f.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func arrayField(f Fields, key string) ([]any, bool) {
	v, ok := f.Get(key)
	if !ok {
		return nil, false
	}
	a, ok := v.([]any)
	return a, ok
}

// ReadDir reads back a directory written by Save.
func ReadDir(dir string) (*Snapshot, error) {
	return NewStore().ReadDir(dir)
}
