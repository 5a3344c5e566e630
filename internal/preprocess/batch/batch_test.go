package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/linguistics"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/preprocess"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/preprocess/cache"
	lperrors "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/errors"
)

type processorFunc func(ctx context.Context, text, lang string) ([]string, error)

func (f processorFunc) Process(ctx context.Context, text, lang string) ([]string, error) {
	return f(ctx, text, lang)
}

func TestProcess_PreservesOrder(t *testing.T) {
	p := cache.NewCached(nil, preprocess.New(linguistics.NewBleveProvider()))
	docs := make([]Document, 50)
	for i := range docs {
		docs[i] = Document{ID: fmt.Sprintf("d%d", i), Lang: "english", Text: strings.Repeat("running ", i%4+1)}
	}

	results, err := Process(context.Background(), p, docs, 8)
	require.NoError(t, err)
	require.Len(t, results, len(docs))
	for i, r := range results {
		assert.Equal(t, docs[i].ID, r.ID)
		assert.Len(t, r.Terms, i%4+1)
	}
}

func TestProcess_RespectsWorkerLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	p := processorFunc(func(ctx context.Context, text, lang string) ([]string, error) {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		defer inFlight.Add(-1)
		return []string{text}, nil
	})
	docs := make([]Document, 100)
	for i := range docs {
		docs[i] = Document{ID: fmt.Sprint(i), Text: fmt.Sprint(i)}
	}

	_, err := Process(context.Background(), p, docs, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestProcess_FailsLoud(t *testing.T) {
	p := cache.NewCached(nil, preprocess.New(linguistics.NewBleveProvider()))
	docs := []Document{
		{ID: "ok", Lang: "english", Text: "fine"},
		{ID: "bad", Lang: "klingon", Text: "nuqneH"},
	}

	results, err := Process(context.Background(), p, docs, 2)
	assert.Nil(t, results)
	require.ErrorIs(t, err, lperrors.ErrUnsupportedLanguage)
	assert.Contains(t, err.Error(), `document "bad"`)
}

func TestProcess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	p := processorFunc(func(ctx context.Context, text, lang string) ([]string, error) {
		calls.Add(1)
		return nil, nil
	})

	_, err := Process(ctx, p, []Document{{ID: "a"}, {ID: "b"}}, 1)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, calls.Load())
}

func TestProcess_Empty(t *testing.T) {
	results, err := Process(context.Background(), processorFunc(nil), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}
