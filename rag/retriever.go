package rag

import (
	"context"
	"fmt"
	"strings"
)

const DefaultTopK = 3

// Retrieved is a chunk returned for a query, in rank order.
type Retrieved struct {
	Chunk    Chunk
	Distance float32
}

// RetrieveChunks embeds query and returns the k chunks nearest to it.
func RetrieveChunks(ctx context.Context, emb Embedder, idx Index, chunks []Chunk, query string, k int) ([]Retrieved, error) {
	if idx == nil || idx.Len() == 0 {
		return nil, ErrEmptyIndex
	}

	q, err := emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := idx.Search(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	res := make([]Retrieved, 0, len(hits))
	for _, h := range hits {
		if h.Index < 0 || h.Index >= len(chunks) {
			return nil, fmt.Errorf("index returned unknown chunk %d", h.Index)
		}

		res = append(res, Retrieved{Chunk: chunks[h.Index], Distance: h.Distance})
	}

	return res, nil
}

// Retrieve returns the text of the k chunks nearest to query, joined by
// newlines in rank order.
func Retrieve(ctx context.Context, emb Embedder, idx Index, chunks []Chunk, query string, k int) (string, error) {
	res, err := RetrieveChunks(ctx, emb, idx, chunks, query, k)
	if err != nil {
		return "", err
	}

	texts := make([]string, len(res))
	for i, r := range res {
		texts[i] = r.Chunk.Text
	}

	return strings.Join(texts, "\n"), nil
}
