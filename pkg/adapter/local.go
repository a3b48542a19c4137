package adapter

import (
	"context"
	"hash/fnv"
	"math"
)

// hashEmbedder generates deterministic unit vectors from a text hash. It is
// the offline embedding backend: no network, no model files, stable across
// runs. Identical texts always map to identical vectors, so exact-text
// recall works, but it carries no semantic similarity.
type hashEmbedder struct {
	dimensions int
}

func newHashEmbedder(dimensions int) *hashEmbedder {
	return &hashEmbedder{dimensions: dimensions}
}

func (h *hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vectors = append(vectors, h.embedOne(text))
	}
	return vectors, nil
}

func (h *hashEmbedder) embedOne(text string) []float32 {
	hasher := fnv.New64a()
	hasher.Write([]byte(text))
	seed := hasher.Sum64()

	vec := make([]float32, h.dimensions)
	for i := range vec {
		// LCG keeps the expansion deterministic per seed.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec)
}

func (h *hashEmbedder) Dimensions() int {
	return h.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	scale := float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / scale
	}
	return out
}
