package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/adveritas/internal/cache"
)

// CachedEmbedder memoizes vectors by backend name and text
type CachedEmbedder struct {
	inner Embedder
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedEmbedder wraps inner. A nil cache disables caching.
func NewCachedEmbedder(inner Embedder, c cache.Cache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, ttl: ttl}
}

func (e *CachedEmbedder) Name() string {
	return e.inner.Name()
}

// Embed serves hits from the cache and sends only the misses upstream
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.cache == nil {
		return e.inner.Embed(ctx, texts)
	}

	out := make([][]float32, len(texts))
	var missIdx []int
	var missText []string
	for i, text := range texts {
		if data, ok := e.cache.Get(cache.Key(e.inner.Name(), text)); ok {
			if vec := Deserialize(data); vec != nil {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missText = append(missText, text)
	}
	if len(missText) == 0 {
		return out, nil
	}

	vecs, err := e.inner.Embed(ctx, missText)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missText) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d texts", e.inner.Name(), len(vecs), len(missText))
	}
	for j, vec := range vecs {
		out[missIdx[j]] = vec
		_ = e.cache.Set(cache.Key(e.inner.Name(), missText[j]), Serialize(vec), e.ttl)
	}
	return out, nil
}
