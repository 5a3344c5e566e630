// Package indexstore persists inverted-index artifacts as line-delimited
// JSON and reads JSON index files back.
//
// Save writes four files into one directory:
//
//	lexicon.jsonl        {"term": <term>, ...entry fields}
//	inverted_file.jsonl  {"termid": <id>, "docids": [...], "freqs": [...]}
//	doc_index.jsonl      one document entry per line
//	stats.json           the stats object, indented by four spaces
//
// Each file is written to a temporary name and renamed into place, so a
// reader never sees a half-written file. There is no guarantee across the
// four files: if a later write fails the earlier ones stay on disk, and
// concurrent saves to the same directory must be serialized by the caller.
//
// Load does not read that layout back. It decodes a single combined JSON
// index file produced elsewhere; ReadDir is the way to re-read a saved
// directory.
package indexstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	lperrors "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/metrics"
)

const (
	LexiconFile  = "lexicon.jsonl"
	InvertedFile = "inverted_file.jsonl"
	DocIndexFile = "doc_index.jsonl"
	StatsFile    = "stats.json"

	statsIndent = "    "
)

// Store carries the logger and metrics for index file operations. The zero
// value is not usable; use NewStore.
type Store struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func NewStore(opts ...Option) *Store {
	s := &Store{logger: slog.Default().With("component", "indexstore")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes the four index files into outputDir, creating it if needed.
// postings and freqs must have the same term ids and, per term id, the same
// number of entries; otherwise nothing is written and the error matches
// errors.ErrPostingsMismatch.
func Save(outputDir string, lexicon *Lexicon, postings *Postings, freqs map[string][]int, docIndex []Fields, stats Fields) error {
	return NewStore().Save(outputDir, lexicon, postings, freqs, docIndex, stats)
}

// Load reads the JSON document at path. See Store.Load.
func Load(path string) (any, error) {
	return NewStore().Load(path)
}

// LoadInto decodes the JSON document at path into v. See Store.LoadInto.
func LoadInto(path string, v any) error {
	return NewStore().LoadInto(path, v)
}

func (s *Store) Save(outputDir string, lexicon *Lexicon, postings *Postings, freqs map[string][]int, docIndex []Fields, stats Fields) error {
	start := time.Now()
	if err := checkPostings(postings, freqs); err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	writes := []struct {
		name  string
		write func(*bytes.Buffer) error
	}{
		{LexiconFile, func(buf *bytes.Buffer) error { return writeLexicon(buf, lexicon) }},
		{InvertedFile, func(buf *bytes.Buffer) error { return writeInverted(buf, postings, freqs) }},
		{DocIndexFile, func(buf *bytes.Buffer) error { return writeDocIndex(buf, docIndex) }},
		{StatsFile, func(buf *bytes.Buffer) error { return writeStats(buf, stats) }},
	}
	for _, w := range writes {
		if err := writeFile(filepath.Join(outputDir, w.name), w.write); err != nil {
			s.metrics.StoreWrite(w.name, "error")
			s.logger.Error("index file write failed", "dir", outputDir, "file", w.name, "error", err)
			return fmt.Errorf("writing %s: %w", w.name, err)
		}
		s.metrics.StoreWrite(w.name, "ok")
	}

	s.logger.Info("index saved",
		"dir", outputDir,
		"terms", lexicon.Len(),
		"term_ids", postings.Len(),
		"documents", len(docIndex),
		"elapsed", time.Since(start),
	)
	return nil
}

// Load reads the JSON document at path verbatim, without checking its
// shape. Objects decode to Fields with their key order, arrays to []any
// and numbers to json.Number. A missing file fails with errors.ErrNotFound,
// an unparsable one with errors.ErrMalformedJSON.
func (s *Store) Load(path string) (any, error) {
	data, err := s.read(path)
	if err != nil {
		return nil, err
	}
	v, err := decodeDocument(data)
	if err != nil {
		s.metrics.StoreLoad("malformed")
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	s.metrics.StoreLoad("ok")
	s.logger.Debug("index file loaded", "path", path, "bytes", len(data))
	return v, nil
}

// LoadInto is Load for callers that know the document's shape. A document
// whose values do not fit v fails with errors.ErrInvalidInput.
func (s *Store) LoadInto(path string, v any) error {
	data, err := s.read(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.metrics.StoreLoad("malformed")
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("loading %s: %w: %w", path, lperrors.ErrInvalidInput, err)
		}
		return fmt.Errorf("loading %s: %w: %w", path, lperrors.ErrMalformedJSON, err)
	}
	s.metrics.StoreLoad("ok")
	return nil
}

func (s *Store) read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.metrics.StoreLoad("not_found")
			return nil, fmt.Errorf("loading %s: %w", path, lperrors.ErrNotFound)
		}
		s.metrics.StoreLoad("error")
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return data, nil
}

func checkPostings(postings *Postings, freqs map[string][]int) error {
	if postings.Len() != len(freqs) {
		for id := range freqs {
			if _, ok := postings.Get(id); !ok {
				return fmt.Errorf("%w: term id %q has freqs but no postings", lperrors.ErrPostingsMismatch, id)
			}
		}
	}
	for id, docIDs := range postings.All() {
		counts, ok := freqs[id]
		if !ok {
			return fmt.Errorf("%w: term id %q has postings but no freqs", lperrors.ErrPostingsMismatch, id)
		}
		if len(counts) != len(docIDs) {
			return fmt.Errorf("%w: term id %q has %d doc ids and %d freqs",
				lperrors.ErrPostingsMismatch, id, len(docIDs), len(counts))
		}
	}
	return nil
}

func writeLexicon(buf *bytes.Buffer, lexicon *Lexicon) error {
	for term, entry := range lexicon.All() {
		if err := writeLine(buf, lexiconLine(term, entry)); err != nil {
			return fmt.Errorf("term %q: %w", term, err)
		}
	}
	return nil
}

// lexiconLine puts "term" first. An entry field of the same name replaces
// the value but not the position.
func lexiconLine(term string, entry Fields) Fields {
	line := make(Fields, 0, len(entry)+1)
	line = append(line, Field{Key: "term", Value: term})
	for _, f := range entry {
		line = line.Set(f.Key, f.Value)
	}
	return line
}

func writeInverted(buf *bytes.Buffer, postings *Postings, freqs map[string][]int) error {
	for id, docIDs := range postings.All() {
		line := Fields{
			{Key: "termid", Value: id},
			{Key: "docids", Value: docIDs},
			{Key: "freqs", Value: freqs[id]},
		}
		if err := writeLine(buf, line); err != nil {
			return fmt.Errorf("term id %q: %w", id, err)
		}
	}
	return nil
}

func writeDocIndex(buf *bytes.Buffer, docIndex []Fields) error {
	for i, entry := range docIndex {
		if err := writeLine(buf, entry); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
	}
	return nil
}

func writeStats(buf *bytes.Buffer, stats Fields) error {
	return encode(buf, stats, statsIndent)
}

func writeLine(buf *bytes.Buffer, v any) error {
	if err := encode(buf, v, ""); err != nil {
		return err
	}
	buf.WriteByte('\n')
	return nil
}

// writeFile renders the whole file in memory, writes it to path+".tmp" and
// renames it over path once synced.
func writeFile(path string, render func(*bytes.Buffer) error) error {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
