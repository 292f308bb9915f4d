package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunks() ([]Chunk, fixedEmbedder) {
	chunks := []Chunk{
		{Index: 0, Text: "apples"},
		{Index: 1, Text: "bananas"},
		{Index: 2, Text: "cherries"},
		{Index: 3, Text: "dates"},
	}

	emb := fixedEmbedder{
		"apples":   {0, 0},
		"bananas":  {10, 0},
		"cherries": {0, 10},
		"dates":    {10, 10},
		"red":      {1, 9},
		"yellow":   {9, 1},
	}

	return chunks, emb
}

func buildTestIndex(t *testing.T, chunks []Chunk, emb fixedEmbedder) Index {
	vs, err := emb.EmbedBatch(context.Background(), Texts(chunks))
	require.NoError(t, err)

	idx, err := MemoryIndexBuilder{}.Build(context.Background(), chunks, vs)
	require.NoError(t, err)

	return idx
}

func Test_Retrieve_NearestFirst(t *testing.T) {
	chunks, emb := testChunks()
	idx := buildTestIndex(t, chunks, emb)

	res, err := Retrieve(context.Background(), emb, idx, chunks, "red", 1)
	require.NoError(t, err)
	assert.Equal(t, "cherries", res)

	res, err = Retrieve(context.Background(), emb, idx, chunks, "yellow", 3)
	require.NoError(t, err)
	assert.Equal(t, "bananas\napples\ndates", res)
}

func Test_RetrieveChunks(t *testing.T) {
	chunks, emb := testChunks()
	idx := buildTestIndex(t, chunks, emb)

	res, err := RetrieveChunks(context.Background(), emb, idx, chunks, "red", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.Equal(t, chunks[2], res[0].Chunk)
	assert.InDelta(t, 1.414, res[0].Distance, 1e-3)
	assert.Equal(t, chunks[0], res[1].Chunk)
}

func Test_Retrieve_EmptyIndex(t *testing.T) {
	_, emb := testChunks()

	_, err := Retrieve(context.Background(), emb, nil, nil, "red", 3)
	assert.ErrorIs(t, err, ErrEmptyIndex)

	idx, err := NewMemoryIndex(nil)
	require.NoError(t, err)

	_, err = Retrieve(context.Background(), emb, idx, nil, "red", 3)
	assert.ErrorIs(t, err, ErrEmptyIndex)
}
