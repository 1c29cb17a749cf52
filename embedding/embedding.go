// Package embedding implements C5: the EmbeddingService capability that
// turns text into fixed-dimension vectors for C6 VectorIndex, wrapping
// whichever llm.Provider the dispatcher is configured with per
// llm/provider.go's Embed(ctx, texts) method — the same interface C4
// LLMDispatcher's Provider capability already exposes, so no separate
// embedding-vendor abstraction is needed.
package embedding

import (
	"context"
	"fmt"
	"math"

	"github.com/kesslerio/ragcore/llm"
	"github.com/kesslerio/ragcore/model"
)

// Kind distinguishes document-side from query-side embedding requests,
// since some providers/models apply asymmetric instructions to each.
type Kind string

const (
	KindDocument Kind = "document"
	KindQuery    Kind = "query"
)

// Service wraps a provider and enforces the configured dimensionality.
type Service struct {
	provider llm.Provider
	dim      int
}

// New returns a Service bound to provider, enforcing dim-dimensional
// output vectors.
func New(provider llm.Provider, dim int) *Service {
	return &Service{provider: provider, dim: dim}
}

// Embed returns one unit-normalized vector per input text. kind is
// accepted for interface symmetry with §4.8 even though the underlying
// llm.Provider.Embed call itself is kind-agnostic; kind is not used, so
// document and query texts are embedded identically.
func (s *Service) Embed(ctx context.Context, texts []string, kind Kind) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := s.provider.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: provider returned %d vectors for %d texts", model.ErrEmbeddingFailed, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, want %d", model.ErrDimensionMismatch, i, len(v), s.dim)
		}
		normalize(v)
	}
	return vectors, nil
}

// normalize scales v to unit L2 length in place, so cosine similarity
// over stored vectors reduces to the Euclidean-distance identity
// vectorindex.Index.Query relies on.
func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i, x := range v {
		v[i] = float32(float64(x) / norm)
	}
}
