// Package cache memoizes preprocessing results in Redis.
//
// The cache sits outside the preprocessing contract: any backend failure is
// logged and the terms are computed instead, so a missing or degraded Redis
// only costs latency. A circuit breaker stops the cache from adding a round
// trip per document while Redis is down.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/lexiprep/pkg/resilience"
)

// KeyPrefix namespaces every cache key in Redis.
const KeyPrefix = "lexiprep:terms:"

// keyVersion changes whenever the pipeline's output for the same input can
// change, which orphans old entries instead of serving stale terms.
const keyVersion = "v2"

// Backend is the subset of *redis.Client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteAll(ctx context.Context) (int64, error)
}

type TermCache struct {
	backend   Backend
	ttl       time.Duration
	opTimeout time.Duration
	breaker   *resilience.CircuitBreaker
	group     singleflight.Group
	logger    *slog.Logger
	metrics   *metrics.Metrics
	hits      atomic.Int64
	misses    atomic.Int64
}

type Option func(*TermCache)

func WithLogger(l *slog.Logger) Option {
	return func(c *TermCache) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *TermCache) { c.metrics = m }
}

func New(backend Backend, cfg config.RedisConfig, opts ...Option) *TermCache {
	c := &TermCache{
		backend:   backend,
		ttl:       cfg.CacheTTL,
		opTimeout: cfg.OpTimeout,
		logger:    slog.Default().With("component", "term-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = resilience.NewCircuitBreaker("term-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		ResetTimeout:     cfg.BreakerReset,
		IsFailure: func(err error) bool {
			return err != nil && !pkgredis.IsNilError(err)
		},
		OnStateChange: func(from, to resilience.State) {
			c.logger.Warn("cache circuit state changed", "from", from.String(), "to", to.String())
			c.metrics.SetCacheCircuitState(int(to))
		},
	})
	return c
}

// Get returns the cached terms of (text, lang). Misses, backend errors and
// undecodable entries all report false.
func (c *TermCache) Get(ctx context.Context, text, lang string) ([]string, bool) {
	key := Key(text, lang)
	var data []byte
	err := c.call(ctx, "term-cache-get", func(ctx context.Context) error {
		var err error
		data, err = c.backend.Get(ctx, key)
		return err
	})
	if err != nil {
		switch {
		case pkgredis.IsNilError(err):
		case errors.Is(err, resilience.ErrCircuitOpen):
			c.logger.Debug("cache bypassed", "key", key)
		default:
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var terms []string
	if err := json.Unmarshal(data, &terms); err != nil {
		c.logger.Warn("cache entry undecodable", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hits.Add(1)
	c.metrics.CacheHit()
	return terms, true
}

// Set stores terms for (text, lang). Failures are logged only.
func (c *TermCache) Set(ctx context.Context, text, lang string, terms []string) {
	key := Key(text, lang)
	if terms == nil {
		terms = []string{}
	}
	data, err := json.Marshal(terms)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.call(ctx, "term-cache-set", func(ctx context.Context) error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached terms or runs compute once per key across
// concurrent callers and caches its result. Errors from compute are
// returned as-is and never cached. The bool reports a cache hit.
func (c *TermCache) GetOrCompute(ctx context.Context, text, lang string, compute func() ([]string, error)) ([]string, bool, error) {
	if c == nil {
		terms, err := compute()
		return terms, false, err
	}
	if terms, ok := c.Get(ctx, text, lang); ok {
		return terms, true, nil
	}
	val, err, _ := c.group.Do(Key(text, lang), func() (any, error) {
		if terms, ok := c.Get(ctx, text, lang); ok {
			return terms, nil
		}
		terms, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, text, lang, terms)
		return terms, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]string), false, nil
}

// Invalidate drops every cached entry.
func (c *TermCache) Invalidate(ctx context.Context) error {
	deleted, err := c.backend.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("invalidating term cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *TermCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// CircuitState reports the breaker state guarding the backend.
func (c *TermCache) CircuitState() resilience.State {
	return c.breaker.State()
}

func (c *TermCache) call(ctx context.Context, name string, fn func(context.Context) error) error {
	return c.breaker.Execute(func() error {
		return resilience.WithDeadline(ctx, c.opTimeout, name, fn)
	})
}

func (c *TermCache) miss() {
	c.misses.Add(1)
	c.metrics.CacheMiss()
}

// Key derives the cache key of (text, lang). The language is length
// prefixed so no (text, lang) pair can collide with another.
func Key(text, lang string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s:%d:%s:", keyVersion, len(lang), lang)
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Preprocessor is the computation the cache memoizes.
type Preprocessor interface {
	Process(text, lang string) ([]string, error)
}

// Cached serves Process through a TermCache. A nil cache computes every
// call.
type Cached struct {
	cache *TermCache
	next  Preprocessor
}

func NewCached(c *TermCache, next Preprocessor) *Cached {
	return &Cached{cache: c, next: next}
}

// languageChecker is implemented by preprocessors that can reject a
// language without running.
type languageChecker interface {
	Supports(lang string) bool
}

// Process returns the terms of text. Languages the preprocessor rejects
// bypass the cache.
func (cp *Cached) Process(ctx context.Context, text, lang string) ([]string, error) {
	if lc, ok := cp.next.(languageChecker); ok && !lc.Supports(lang) {
		return cp.next.Process(text, lang)
	}
	terms, _, err := cp.cache.GetOrCompute(ctx, text, lang, func() ([]string, error) {
		return cp.next.Process(text, lang)
	})
	return terms, err
}
