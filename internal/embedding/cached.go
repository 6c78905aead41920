package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"hybridrag/internal/domain"
)

// DefaultCacheSize is used when a non-positive size is requested.
const DefaultCacheSize = 1000

// CachedEmbedder wraps an Embedder with an LRU cache keyed by text and model.
type CachedEmbedder struct {
	inner domain.Embedder
	cache *lru.Cache[string, []float64]
}

// NewCachedEmbedder wraps inner with a cache of cacheSize entries.
func NewCachedEmbedder(inner domain.Embedder, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []float64](cacheSize)
	return &CachedEmbedder{inner: inner, cache: cache}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + c.inner.Name()))
	return hex.EncodeToString(sum[:])
}

// EmbedSingle returns the cached vector or computes and stores it.
func (c *CachedEmbedder) EmbedSingle(ctx context.Context, text string) ([]float64, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	vec, err := c.inner.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache, in one inner call.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	results := make([][]float64, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			results[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return results, nil
	}
	fresh, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		results[idx] = fresh[j]
		c.cache.Add(c.cacheKey(texts[idx]), fresh[j])
	}
	return results, nil
}

// NewCached wraps inner in a cache. The result implements domain.Preparer
// only when inner does.
func NewCached(inner domain.Embedder, cacheSize int) domain.Embedder {
	c := NewCachedEmbedder(inner, cacheSize)
	if _, ok := inner.(domain.Preparer); ok {
		return &preparingCache{c}
	}
	return c
}

type preparingCache struct {
	*CachedEmbedder
}

// Prepare refits the inner embedder and drops cached vectors, which are
// stale once the vocabulary changes.
func (p *preparingCache) Prepare(corpus []string) error {
	if err := p.inner.(domain.Preparer).Prepare(corpus); err != nil {
		return err
	}
	p.cache.Purge()
	return nil
}

func (c *CachedEmbedder) Name() string                         { return c.inner.Name() }
func (c *CachedEmbedder) Dimension() int                       { return c.inner.Dimension() }
func (c *CachedEmbedder) IsAvailable(ctx context.Context) bool { return c.inner.IsAvailable(ctx) }

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }

// Inner returns the wrapped embedder.
func (c *CachedEmbedder) Inner() domain.Embedder { return c.inner }
