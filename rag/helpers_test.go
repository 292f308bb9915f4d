package rag

import (
	"context"
	"strings"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/stretchr/testify/mock"
)

type mockModel struct {
	mock.Mock
}

func (m *mockModel) EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error) {
	args := m.Called(ctx, texts)
	res, _ := args.Get(0).([]embeddings.Embedding)
	return res, args.Error(1)
}

func (m *mockModel) EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error) {
	args := m.Called(ctx, text)
	res, _ := args.Get(0).(embeddings.Embedding)
	return res, args.Error(1)
}

// letterModel embeds a text as its letter frequency vector.
type letterModel struct {
	calls int
}

func letterVector(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}

	return v
}

func (m *letterModel) EmbedDocuments(ctx context.Context, texts []string) ([]embeddings.Embedding, error) {
	m.calls++
	res := make([]embeddings.Embedding, len(texts))
	for i, t := range texts {
		res[i] = embeddings.NewEmbeddingFromFloat32(letterVector(t))
	}

	return res, nil
}

func (m *letterModel) EmbedQuery(ctx context.Context, text string) (embeddings.Embedding, error) {
	m.calls++
	return embeddings.NewEmbeddingFromFloat32(letterVector(text)), nil
}

type mockGenerator struct {
	mock.Mock
}

func (g *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := g.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// fixedEmbedder returns preset vectors by text.
type fixedEmbedder map[string][]float32

func (e fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e[text], nil
}

func (e fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	res := make([][]float32, len(texts))
	for i, t := range texts {
		res[i] = e[t]
	}

	return res, nil
}
