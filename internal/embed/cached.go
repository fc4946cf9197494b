package embed

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CachedEmbedder keeps recent query embeddings in an LRU cache and collapses
// concurrent requests for the same query into one provider call. Batch calls
// index document content that is already cached on disk, so they pass
// straight through.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
	group singleflight.Group
}

var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with a cache of size entries.
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	cache, _ := lru.New[string, []float32](size)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// ModelName implements Embedder.
func (c *CachedEmbedder) ModelName() string { return c.inner.ModelName() }

// Embed implements Embedder.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.inner.ModelName() + "\x00" + text
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		vec, err := c.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		c.cache.Add(key, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// EmbedBatch implements Embedder.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.EmbedBatch(ctx, texts)
}

// Len reports the number of cached queries.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }
