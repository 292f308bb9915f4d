package docstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gamma-omg/doc-chat/rag"
	"github.com/google/uuid"
)

const (
	ChunkIndex = "chunk_index"

	DefaultCollectionPrefix = "docchat"
)

// collectionName gives every built index its own collection so sessions never
// share vectors.
func collectionName(prefix string) string {
	if prefix == "" {
		prefix = DefaultCollectionPrefix
	}

	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

func validateBuild(chunks []rag.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", rag.ErrInvalidParameter, len(chunks), len(vectors))
	}

	return rag.CheckDimensions(vectors)
}

func chunkID(i int) string {
	return strconv.Itoa(i)
}

// emptyIndex is what a build over zero chunks yields; no collection is created.
type emptyIndex struct{}

func (emptyIndex) Search(ctx context.Context, query []float32, k int) ([]rag.Neighbor, error) {
	return nil, rag.ErrEmptyIndex
}

func (emptyIndex) Len() int {
	return 0
}
