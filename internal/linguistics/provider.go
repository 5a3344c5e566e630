// Package linguistics provides the read-only, language-keyed resources the
// preprocessor depends on: stopword sets, stemmers and word tokenizers.
//
// The default Provider is assembled from bleve's snowball stop lists, the
// snowball stemmers in blevesearch/snowballstem and bleve's UAX#29 unicode
// tokenizer. Resources for a language are built on first use and never
// mutated afterwards, so a Provider is safe for concurrent use.
package linguistics

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/snowballstem"

	lperrors "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/errors"
)

// punctuation is the ASCII set the preprocessor turns into spaces before
// stopword removal.
const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Stopwords is an immutable set of words to drop for one language.
type Stopwords map[string]struct{}

// Contains reports whether word is a stopword.
func (s Stopwords) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// StemFunc reduces a lower-cased token to its stem.
type StemFunc func(word string) string

// Provider is the capability the preprocessor needs from a linguistic
// resource library.
type Provider interface {
	// Languages returns the supported languages, sorted.
	Languages() []string
	Stopwords(lang string) (Stopwords, error)
	Stemmer(lang string) (StemFunc, error)
	Tokenize(text, lang string) ([]string, error)
}

type resources struct {
	once      sync.Once
	bundle    bundle
	stopwords Stopwords
	err       error
}

// BleveProvider serves the languages that have both a snowball stop list
// and a snowball stemmer.
type BleveProvider struct {
	languages []string
	resources map[string]*resources
	tokenizer analysis.Tokenizer
}

// NewBleveProvider creates a provider for every bundled language.
func NewBleveProvider() *BleveProvider {
	return newBleveProvider(bundles)
}

func newBleveProvider(set map[string]bundle) *BleveProvider {
	p := &BleveProvider{
		languages: make([]string, 0, len(set)),
		resources: make(map[string]*resources, len(set)),
		tokenizer: unicode.NewUnicodeTokenizer(),
	}
	for name, b := range set {
		p.languages = append(p.languages, name)
		p.resources[name] = &resources{bundle: b}
	}
	sort.Strings(p.languages)
	return p
}

func (p *BleveProvider) Languages() []string {
	return slices.Clone(p.languages)
}

// Supports reports whether lang is in the supported set.
func (p *BleveProvider) Supports(lang string) bool {
	_, ok := p.resources[lang]
	return ok
}

func (p *BleveProvider) Stopwords(lang string) (Stopwords, error) {
	r, err := p.load(lang)
	if err != nil {
		return nil, err
	}
	return r.stopwords, nil
}

func (p *BleveProvider) Stemmer(lang string) (StemFunc, error) {
	r, err := p.load(lang)
	if err != nil {
		return nil, err
	}
	stem := r.bundle.stem
	return func(word string) string {
		env := snowballstem.NewEnv(word)
		stem(env)
		return env.Current()
	}, nil
}

// Tokenize splits text on Unicode word boundaries (UAX#29). Runs that are
// neither letters, digits nor ideographs are discarded.
func (p *BleveProvider) Tokenize(text, lang string) ([]string, error) {
	if !p.Supports(lang) {
		return nil, lperrors.UnsupportedLanguage(lang, p.languages)
	}
	stream := p.tokenizer.Tokenize([]byte(text))
	tokens := make([]string, 0, len(stream))
	for _, tok := range stream {
		tokens = append(tokens, string(tok.Term))
	}
	return tokens, nil
}

func (p *BleveProvider) load(lang string) (*resources, error) {
	r, ok := p.resources[lang]
	if !ok {
		return nil, lperrors.UnsupportedLanguage(lang, p.languages)
	}
	r.once.Do(func() {
		tm := analysis.NewTokenMap()
		if err := tm.LoadBytes(r.bundle.stopWords); err != nil {
			r.err = fmt.Errorf("loading %s stop words: %w", lang, err)
			return
		}
		r.stopwords = newStopwords(tm)
	})
	if r.err != nil {
		return nil, r.err
	}
	return r, nil
}

// newStopwords builds the set from a stop list. Entries such as "don't"
// never survive punctuation stripping whole, so their pieces are added too.
func newStopwords(tm analysis.TokenMap) Stopwords {
	set := make(Stopwords, len(tm))
	for word := range tm {
		set[word] = struct{}{}
		for _, piece := range strings.FieldsFunc(word, isPunctuation) {
			set[piece] = struct{}{}
		}
	}
	return set
}

func isPunctuation(r rune) bool {
	return r < 0x80 && strings.ContainsRune(punctuation, r)
}
