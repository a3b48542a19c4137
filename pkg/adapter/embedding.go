package adapter

import (
	"context"
	"sync"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"

	"github.com/kokoro-dev/kokoro/pkg/model"
)

// Embedder turns text into fixed-width dense vectors, one row per input.
// An empty input yields a zero-row result without touching the backend.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// EmbeddingConfig selects and configures the embedding backend.
type EmbeddingConfig struct {
	// Provider is "gemini" or "local".
	Provider   string
	Model      string
	APIKey     string
	Dimensions int
}

// NewEmbedder returns the configured embedding service. The backend is
// constructed lazily on first use, at most once per process; results are
// memoized in an in-process cache so repeated texts embed once.
func NewEmbedder(cfg EmbeddingConfig) (Embedder, error) {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = 768
	}

	lazy := &lazyEmbedder{
		dimensions: cfg.Dimensions,
		construct: func(ctx context.Context) (Embedder, error) {
			switch cfg.Provider {
			case "", "gemini":
				return newGeminiEmbedder(ctx, cfg)
			case "local":
				return newHashEmbedder(cfg.Dimensions), nil
			default:
				return nil, goerr.New("unsupported embedding provider",
					goerr.V("provider", cfg.Provider))
			}
		},
	}
	return newCachedEmbedder(lazy)
}

// lazyEmbedder defers backend construction to the first Embed call. A
// construction failure is cached and surfaced as ErrEmbeddingUnavailable on
// every subsequent call; the backend is never re-initialized.
type lazyEmbedder struct {
	dimensions int
	construct  func(ctx context.Context) (Embedder, error)

	once    sync.Once
	backend Embedder
	initErr error
}

func (l *lazyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	l.once.Do(func() {
		l.backend, l.initErr = l.construct(ctx)
	})
	if l.initErr != nil {
		return nil, goerr.Wrap(model.ErrEmbeddingUnavailable, "embedding backend init failed",
			goerr.V("cause", l.initErr.Error()))
	}
	return l.backend.Embed(ctx, texts)
}

func (l *lazyEmbedder) Dimensions() int {
	return l.dimensions
}

// cachedEmbedder memoizes text-to-vector results with a ristretto cache in
// front of the inner embedder. Cache misses are embedded in one batched
// inner call preserving input order.
type cachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

func newCachedEmbedder(inner Embedder) (*cachedEmbedder, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     32 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache")
	}
	return &cachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *cachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if cached, ok := c.cache.Get(text); ok {
			if vec, ok := cached.([]float32); ok {
				vectors[i] = vec
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		fresh, err := c.inner.Embed(ctx, missing)
		if err != nil {
			return nil, err
		}
		if len(fresh) != len(missing) {
			return nil, goerr.New("embedding backend returned wrong row count",
				goerr.V("want", len(missing)), goerr.V("got", len(fresh)))
		}
		for j, vec := range fresh {
			vectors[missingIdx[j]] = vec
			c.cache.Set(missing[j], vec, int64(len(vec)*4))
		}
	}
	return vectors, nil
}

func (c *cachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}
