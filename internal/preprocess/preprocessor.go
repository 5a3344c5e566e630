// Package preprocess turns free-form text into the ordered sequence of
// stemmed index terms consumed by an index builder.
//
// The pipeline runs in a fixed order: language validation, case folding,
// ampersand expansion, typographic folding, acronym-period removal,
// punctuation stripping, tokenization, stopword removal and stemming. Every
// stage consumes the previous stage's output, so reordering them changes
// the resulting term set.
package preprocess

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/linguistics"
	lperrors "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/metrics"
)

// Preprocessor is stateless apart from the read-only resources of its
// provider and is safe for concurrent use.
type Preprocessor struct {
	provider  linguistics.Provider
	languages []string
	supported map[string]struct{}
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

func WithLogger(l *slog.Logger) Option {
	return func(p *Preprocessor) { p.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Preprocessor) { p.metrics = m }
}

// New creates a Preprocessor over provider. The supported language set is
// captured once.
func New(provider linguistics.Provider, opts ...Option) *Preprocessor {
	languages := provider.Languages()
	supported := make(map[string]struct{}, len(languages))
	for _, l := range languages {
		supported[l] = struct{}{}
	}
	p := &Preprocessor{
		provider:  provider,
		languages: languages,
		supported: supported,
		logger:    slog.Default().With("component", "preprocessor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Languages returns the languages Process accepts.
func (p *Preprocessor) Languages() []string {
	out := make([]string, len(p.languages))
	copy(out, p.languages)
	return out
}

// Supports reports whether lang is accepted by Process.
func (p *Preprocessor) Supports(lang string) bool {
	_, ok := p.supported[lang]
	return ok
}

// Process returns the stemmed terms of text for lang. The result may be
// empty and keeps repeated terms. An unknown lang fails with an
// *errors.UnsupportedLanguageError before any text is touched; failures of
// the underlying resources are returned unchanged.
func (p *Preprocessor) Process(text, lang string) ([]string, error) {
	start := time.Now()
	if !p.Supports(lang) {
		p.metrics.ObserveDocument(lang, "unsupported", 0, 0)
		return nil, lperrors.UnsupportedLanguage(lang, p.languages)
	}
	terms, err := p.process(text, lang)
	if err != nil {
		p.metrics.ObserveDocument(lang, "error", 0, 0)
		return nil, err
	}
	elapsed := time.Since(start)
	p.metrics.ObserveDocument(lang, "ok", len(terms), elapsed)
	p.logger.Debug("text preprocessed",
		"lang", lang,
		"input_bytes", len(text),
		"terms", len(terms),
		"elapsed", elapsed,
	)
	return terms, nil
}

func (p *Preprocessor) process(text, lang string) ([]string, error) {
	stopwords, err := p.provider.Stopwords(lang)
	if err != nil {
		return nil, err
	}
	stem, err := p.provider.Stemmer(lang)
	if err != nil {
		return nil, err
	}

	tokens, err := p.provider.Tokenize(Normalize(text), lang)
	if err != nil {
		return nil, err
	}

	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if stopwords.Contains(tok) {
			continue
		}
		terms = append(terms, stem(tok))
	}
	return terms, nil
}

// MustProcess is Process for fixed, known-good input such as examples and
// benchmarks. It panics on error.
func (p *Preprocessor) MustProcess(text, lang string) []string {
	terms, err := p.Process(text, lang)
	if err != nil {
		panic(fmt.Sprintf("preprocess: %v", err))
	}
	return terms
}
