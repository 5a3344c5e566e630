// Package integration contains tests that verify the interaction between
// multiple components. They wire the real preprocessor, term cache, worker
// and index store together and replace external services with miniredis and
// in-memory fakes.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/events"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/indexstore"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/linguistics"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/preprocess"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/preprocess/cache"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/worker"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/kafka"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/redis"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type collector struct {
	mu     sync.Mutex
	events []events.TermsEvent
}

func (c *collector) Publish(_ context.Context, ev kafka.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev.Value.(events.TermsEvent))
	return nil
}

func newPipeline(t *testing.T) (*worker.Worker, *collector, *cache.TermCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := config.RedisConfig{
		Enabled:          true,
		Addr:             mr.Addr(),
		PoolSize:         4,
		CacheTTL:         time.Minute,
		OpTimeout:        time.Second,
		BreakerThreshold: 3,
		BreakerReset:     time.Minute,
	}
	client, err := pkgredis.NewClient(context.Background(), cfg, cache.KeyPrefix)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	tc := cache.New(client, cfg)
	p := preprocess.New(linguistics.NewBleveProvider())
	out := &collector{}
	return worker.New(cache.NewCached(tc, p), out), out, tc
}

func message(t *testing.T, id, lang, text string) []byte {
	t.Helper()
	data, err := json.Marshal(events.DocumentEvent{DocumentID: id, Lang: lang, Text: text})
	require.NoError(t, err)
	return data
}

// buildIndex is the minimal index builder a downstream consumer of the terms
// topic would run.
func buildIndex(evs []events.TermsEvent) (*indexstore.Lexicon, *indexstore.Postings, map[string][]int, []indexstore.Fields, indexstore.Fields) {
	lexicon := indexstore.NewLexicon()
	postings := indexstore.NewPostings()
	freqs := map[string][]int{}
	var docIndex []indexstore.Fields
	total := 0
	for _, ev := range evs {
		counts := map[string]int{}
		var order []string
		for _, term := range ev.Terms {
			if counts[term] == 0 {
				order = append(order, term)
			}
			counts[term]++
		}
		for _, term := range order {
			entry, ok := lexicon.Get(term)
			if !ok {
				entry = indexstore.Fields{{Key: "termid", Value: fmt.Sprint(lexicon.Len())}, {Key: "df", Value: 0}}
			}
			id, _ := entry.Get("termid")
			df, _ := entry.Get("df")
			entry = entry.Set("df", df.(int)+1)
			lexicon.Set(term, entry)
			docs, _ := postings.Get(id.(string))
			postings.Set(id.(string), append(docs, ev.DocumentID))
			freqs[id.(string)] = append(freqs[id.(string)], counts[term])
		}
		docIndex = append(docIndex, indexstore.Fields{{Key: "id", Value: ev.DocumentID}, {Key: "len", Value: len(ev.Terms)}})
		total += len(ev.Terms)
	}
	stats := indexstore.Fields{
		{Key: "n_docs", Value: len(evs)},
		{Key: "avg_len", Value: float64(total) / float64(len(evs))},
	}
	return lexicon, postings, freqs, docIndex, stats
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestWorkerToIndexStore drives documents through the worker and saves an
// index built from the published terms.
func TestWorkerToIndexStore(t *testing.T) {
	w, out, _ := newPipeline(t)
	ctx := context.Background()

	docs := []struct{ id, lang, text string }{
		{"d1", "english", "The runner was running."},
		{"d2", "english", "Runs & runners"},
		{"d3", "italian", "Gli studenti studiano"},
		{"d4", "klingon", "nuqneH"},
	}
	for _, d := range docs {
		require.NoError(t, w.Handle(ctx, []byte(d.id), message(t, d.id, d.lang, d.text)))
	}
	require.Len(t, out.events, 3, "the unsupported document is dropped")

	dir := t.TempDir()
	lexicon, postings, freqs, docIndex, stats := buildIndex(out.events)
	require.NoError(t, indexstore.Save(dir, lexicon, postings, freqs, docIndex, stats))

	snap, err := indexstore.ReadDir(dir)
	require.NoError(t, err)
	require.NoError(t, snap.Check())
	assert.Len(t, snap.DocIndex, 3)
	assert.Equal(t, lexicon.Len(), len(snap.Lexicon))
	first, _ := snap.Lexicon[0].Get("term")
	assert.Equal(t, out.events[0].Terms[0], first)
}

// TestWorkerServesRepeatsFromCache checks that a redelivered document is
// answered by the cache with identical terms.
func TestWorkerServesRepeatsFromCache(t *testing.T) {
	w, out, tc := newPipeline(t)
	ctx := context.Background()
	msg := message(t, "d1", "english", "Caching cached caches")

	require.NoError(t, w.Handle(ctx, nil, msg))
	require.NoError(t, w.Handle(ctx, nil, msg))

	require.Len(t, out.events, 2)
	assert.Equal(t, out.events[0].Terms, out.events[1].Terms)
	hits, _ := tc.Stats()
	assert.Equal(t, int64(1), hits)
}
