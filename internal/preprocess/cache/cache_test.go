package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/linguistics"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/internal/preprocess"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/config"
	lperrors "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/resilience"
)

func testConfig(addr string) config.RedisConfig {
	return config.RedisConfig{
		Enabled:          true,
		Addr:             addr,
		PoolSize:         4,
		CacheTTL:         time.Minute,
		OpTimeout:        time.Second,
		BreakerThreshold: 2,
		BreakerReset:     time.Hour,
	}
}

func newTestCache(t *testing.T, opts ...Option) (*TermCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := testConfig(mr.Addr())
	client, err := pkgredis.NewClient(context.Background(), cfg, KeyPrefix)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return New(client, cfg, opts...), mr
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	compute := func() ([]string, error) {
		calls++
		return []string{"cat", "dog"}, nil
	}

	terms, hit, err := c.GetOrCompute(ctx, "cats & dogs", "english", compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, []string{"cat", "dog"}, terms)

	terms, hit, err = c.GetOrCompute(ctx, "cats & dogs", "english", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"cat", "dog"}, terms)
	assert.Equal(t, 1, calls)

	assert.True(t, mr.Exists(KeyPrefix+Key("cats & dogs", "english")))
	assert.Equal(t, time.Minute, mr.TTL(KeyPrefix+Key("cats & dogs", "english")))

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses, "the first call misses before and inside the flight")
}

func TestGetOrCompute_EmptyResultIsCached(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, _, err := c.GetOrCompute(ctx, "the", "english", func() ([]string, error) { return nil, nil })
	require.NoError(t, err)

	terms, hit, err := c.GetOrCompute(ctx, "the", "english", func() ([]string, error) {
		t.Fatal("must not recompute")
		return nil, nil
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Empty(t, terms)
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(context.Background(), "x", "english", func() ([]string, error) { return nil, boom })
	assert.Same(t, boom, err)
	assert.Empty(t, mr.Keys())
}

func TestGetOrCompute_SingleFlight(t *testing.T) {
	c, _ := newTestCache(t)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			terms, _, err := c.GetOrCompute(context.Background(), "same text", "english", func() ([]string, error) {
				calls.Add(1)
				<-release
				return []string{"same", "text"}, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, []string{"same", "text"}, terms)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_UndecodableEntryIsAMiss(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set(KeyPrefix+Key("x", "english"), "not json"))

	_, ok := c.Get(context.Background(), "x", "english")
	assert.False(t, ok)
}

func TestGetOrCompute_DegradesWhenRedisIsDown(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	c, mr := newTestCache(t, WithMetrics(m))
	mr.Close()

	for i := 0; i < 3; i++ {
		terms, hit, err := c.GetOrCompute(context.Background(), "text", "english", func() ([]string, error) {
			return []string{"text"}, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, []string{"text"}, terms)
	}
	assert.Equal(t, resilience.StateOpen, c.CircuitState())
	assert.Equal(t, float64(resilience.StateOpen), testutil.ToFloat64(m.CacheCircuitState))
	assert.Positive(t, testutil.ToFloat64(m.CacheMissesTotal))
}

func TestInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	c.Set(ctx, "a", "english", []string{"a"})
	c.Set(ctx, "b", "italian", []string{"b"})
	require.NoError(t, mr.Set("unrelated", "1"))

	require.NoError(t, c.Invalidate(ctx))
	assert.Equal(t, []string{"unrelated"}, mr.Keys())
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("text", "english"), Key("text", "english"))
	assert.NotEqual(t, Key("text", "english"), Key("text", "italian"))
	assert.NotEqual(t, Key("ab", "c"), Key("b", "ca"))
	assert.Len(t, Key("", ""), 32)
}

func TestCached_Process(t *testing.T) {
	c, _ := newTestCache(t)
	p := preprocess.New(linguistics.NewBleveProvider())
	cp := NewCached(c, p)
	ctx := context.Background()

	terms, err := cp.Process(ctx, "Cats & Dogs", "english")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog"}, terms)

	again, err := cp.Process(ctx, "Cats & Dogs", "english")
	require.NoError(t, err)
	assert.Equal(t, terms, again)
	hits, _ := c.Stats()
	assert.Equal(t, int64(1), hits)

	_, err = cp.Process(ctx, "text", "klingon")
	assert.ErrorIs(t, err, lperrors.ErrUnsupportedLanguage)
}

func TestCached_UnsupportedLanguageSkipsRedis(t *testing.T) {
	c, mr := newTestCache(t)
	cp := NewCached(c, preprocess.New(linguistics.NewBleveProvider()))

	_, err := cp.Process(context.Background(), "nuqneH", "klingon")
	require.ErrorIs(t, err, lperrors.ErrUnsupportedLanguage)
	assert.Empty(t, mr.Keys())
	hits, misses := c.Stats()
	assert.Zero(t, hits)
	assert.Zero(t, misses)
}

func TestCached_NilCache(t *testing.T) {
	cp := NewCached(nil, preprocess.New(linguistics.NewBleveProvider()))
	terms, err := cp.Process(context.Background(), "running", "english")
	require.NoError(t, err)
	assert.Equal(t, []string{"run"}, terms)
}
