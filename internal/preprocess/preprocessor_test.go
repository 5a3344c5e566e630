package preprocess

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/linguistics"
	lperrors "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/metrics"
)

// stubProvider serves one language with whitespace tokenization and
// caller-supplied stopwords and stemming.
type stubProvider struct {
	stopwords   linguistics.Stopwords
	stem        linguistics.StemFunc
	tokenizeErr error

	mu    sync.Mutex
	calls int
}

func (s *stubProvider) Languages() []string { return []string{"stub"} }

func (s *stubProvider) Stopwords(lang string) (linguistics.Stopwords, error) {
	s.record()
	return s.stopwords, nil
}

func (s *stubProvider) Stemmer(lang string) (linguistics.StemFunc, error) {
	s.record()
	return s.stem, nil
}

func (s *stubProvider) Tokenize(text, lang string) ([]string, error) {
	s.record()
	if s.tokenizeErr != nil {
		return nil, s.tokenizeErr
	}
	return strings.Fields(text), nil
}

func (s *stubProvider) record() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func identity(w string) string { return w }

var shared = New(linguistics.NewBleveProvider())

func TestProcess_English(t *testing.T) {
	terms, err := shared.Process("The quick brown foxes are running", "english")
	require.NoError(t, err)
	assert.Equal(t, []string{"quick", "brown", "fox", "run"}, terms)
}

func TestProcess_AmpersandBecomesStopword(t *testing.T) {
	terms, err := shared.Process("cats & dogs", "english")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, terms)
}

func TestProcess_ContractionFragmentsAreStopwords(t *testing.T) {
	terms, err := shared.Process("I don't know", "english")
	require.NoError(t, err)
	assert.Equal(t, []string{"know"}, terms)

	terms, err = shared.Process("I don't know, it's what you're doing and they've said", "english")
	require.NoError(t, err)
	assert.Equal(t, []string{"know", "said"}, terms)
}

func TestProcess_KeepsRepeats(t *testing.T) {
	terms, err := shared.Process("run runs running", "english")
	require.NoError(t, err)
	assert.Equal(t, []string{"run", "run", "run"}, terms)
}

func TestProcess_EmptyInput(t *testing.T) {
	for _, lang := range shared.Languages() {
		for _, text := range []string{"", "   ", "...", "-- !?"} {
			terms, err := shared.Process(text, lang)
			require.NoError(t, err, lang)
			assert.Empty(t, terms, "%s %q", lang, text)
		}
	}
}

func TestProcess_UnsupportedLanguage(t *testing.T) {
	for _, lang := range []string{"klingon", "", "English", "en"} {
		terms, err := shared.Process("some text", lang)
		assert.Nil(t, terms)
		require.ErrorIs(t, err, lperrors.ErrUnsupportedLanguage, lang)

		var ule *lperrors.UnsupportedLanguageError
		require.True(t, errors.As(err, &ule))
		assert.Equal(t, lang, ule.Requested)
		assert.Contains(t, ule.Supported, "english")
	}
}

func TestProcess_UnsupportedLanguageTouchesNoResources(t *testing.T) {
	stub := &stubProvider{stem: identity}
	p := New(stub)

	_, err := p.Process("text", "english")
	require.ErrorIs(t, err, lperrors.ErrUnsupportedLanguage)
	assert.Zero(t, stub.calls)
}

func TestProcess_OutputHasNoPunctuationOrStopwords(t *testing.T) {
	text := `The Degree Program in Digital Humanities (DH) has open access; ` +
		`students must take a non-selective evaluation test! Fee: €16.00 - see wis@unipi.it.`
	terms, err := shared.Process(text, "english")
	require.NoError(t, err)
	require.NotEmpty(t, terms)

	sw, err := linguistics.NewBleveProvider().Stopwords("english")
	require.NoError(t, err)
	for _, term := range terms {
		assert.False(t, strings.ContainsAny(term, asciiPunctuation), term)
		assert.False(t, sw.Contains(term), term)
		assert.NotContains(t, term, " ")
	}
}

func TestProcess_CaseInsensitive(t *testing.T) {
	texts := []string{
		"Search Engines Index Documents",
		"The U.S. Army & Navy",
		"mixed CaSe, with Punctuation!",
	}
	for _, text := range texts {
		lower, err := shared.Process(text, "english")
		require.NoError(t, err)
		upper, err := shared.Process(strings.ToUpper(text), "english")
		require.NoError(t, err)
		assert.Equal(t, lower, upper, text)
	}
}

func TestProcess_TypographicQuotesMatchPlain(t *testing.T) {
	curly, err := shared.Process("“Students’ rights” — overview", "english")
	require.NoError(t, err)
	plain, err := shared.Process(`"Students' rights" - overview`, "english")
	require.NoError(t, err)
	assert.Equal(t, plain, curly)
}

func TestProcess_Acronyms(t *testing.T) {
	terms, err := shared.Process("U.N. policy", "english")
	require.NoError(t, err)
	assert.Equal(t, []string{"un", "polici"}, terms)
}

func TestProcess_Italian(t *testing.T) {
	terms, err := shared.Process("Il corso di laurea è ad accesso libero", "italian")
	require.NoError(t, err)
	require.NotEmpty(t, terms)
	assert.NotContains(t, terms, "il")
	assert.NotContains(t, terms, "di")
}

func TestProcess_Deterministic(t *testing.T) {
	text := "Concurrency is not parallelism, but it enables it."
	want, err := shared.Process(text, "english")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := shared.Process(text, "english")
			assert.NoError(t, err)
			assert.Equal(t, want, got)
		}()
	}
	wg.Wait()
}

func TestProcess_StopwordsFilteredBeforeStemming(t *testing.T) {
	stub := &stubProvider{
		stopwords: linguistics.Stopwords{"the": {}},
		stem:      func(string) string { return "the" },
	}
	p := New(stub)

	terms, err := p.Process("the runs", "stub")
	require.NoError(t, err)
	assert.Equal(t, []string{"the"}, terms, "a stem equal to a stopword is kept")
}

func TestProcess_ProviderErrorPropagatesUnchanged(t *testing.T) {
	boom := errors.New("tokenizer exploded")
	p := New(&stubProvider{stem: identity, tokenizeErr: boom})

	terms, err := p.Process("anything", "stub")
	assert.Nil(t, terms)
	assert.Same(t, boom, err)
}

func TestProcess_RecordsMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p := New(&stubProvider{stem: identity}, WithMetrics(m))

	_, err := p.Process("alpha beta", "stub")
	require.NoError(t, err)
	_, err = p.Process("alpha", "nope")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsProcessedTotal.WithLabelValues("stub", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentsProcessedTotal.WithLabelValues("nope", "unsupported")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TermsEmittedTotal.WithLabelValues("stub")))
}

func TestPreprocessor_Languages(t *testing.T) {
	langs := shared.Languages()
	assert.Contains(t, langs, "english")
	assert.True(t, shared.Supports("english"))
	assert.False(t, shared.Supports("ENGLISH"))

	langs[0] = "x"
	assert.NotEqual(t, "x", shared.Languages()[0])
}

func TestMustProcess(t *testing.T) {
	assert.Equal(t, []string{"hello", "world"}, shared.MustProcess("hello world", "english"))
	assert.Panics(t, func() { shared.MustProcess("hello", "klingon") })
}
