package rag

import (
	"context"
	"fmt"
	"slices"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Model is the subset of a chroma-go embedding function used for embedding.
type Model interface {
	EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error)
	EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ModelEmbedder maps texts to vectors with a pretrained model. Vectors are
// memoized by text so a text embeds to the same vector for the lifetime of
// the embedder.
type ModelEmbedder struct {
	model Model
	cache *lru.Cache[string, []float32]
}

func NewEmbedder(model Model, cacheSize int) (*ModelEmbedder, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no model", ErrModelUnavailable)
	}

	cache, err := lru.New[string, []float32](max(cacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &ModelEmbedder{model: model, cache: cache}, nil
}

func (e *ModelEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		return slices.Clone(v), nil
	}

	emb, err := e.model.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	v := emb.ContentAsFloat32()
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: model returned an empty vector", ErrModelUnavailable)
	}

	e.cache.Add(text, v)
	return slices.Clone(v), nil
}

// EmbedBatch embeds texts in order. Only texts missing from the cache are
// sent to the model.
func (e *ModelEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	res := make([][]float32, len(texts))

	var missing []string
	var pos []int
	for i, t := range texts {
		if v, ok := e.cache.Get(t); ok {
			res[i] = slices.Clone(v)
			continue
		}

		missing = append(missing, t)
		pos = append(pos, i)
	}

	if len(missing) == 0 {
		return res, nil
	}

	embs, err := e.model.EmbedDocuments(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	if len(embs) != len(missing) {
		return nil, fmt.Errorf("%w: model returned %d vectors for %d texts", ErrModelUnavailable, len(embs), len(missing))
	}

	for i, emb := range embs {
		v := emb.ContentAsFloat32()
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: model returned an empty vector", ErrModelUnavailable)
		}

		e.cache.Add(missing[i], v)
		res[pos[i]] = slices.Clone(v)
	}

	return res, nil
}
