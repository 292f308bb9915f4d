package rag

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
)

// Neighbor is a search hit: the index of a chunk and its distance to the query.
type Neighbor struct {
	Index    int
	Distance float32
}

type Index interface {
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Len() int
}

// IndexBuilder builds an immutable Index over the vectors of chunks. vectors[i]
// belongs to chunks[i].
type IndexBuilder interface {
	Build(ctx context.Context, chunks []Chunk, vectors [][]float32) (Index, error)
}

// MemoryIndex is an exact nearest neighbour index using Euclidean distance.
type MemoryIndex struct {
	dimension int
	vectors   [][]float32
}

type MemoryIndexBuilder struct{}

func (MemoryIndexBuilder) Build(ctx context.Context, chunks []Chunk, vectors [][]float32) (Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks but %d vectors", ErrInvalidParameter, len(chunks), len(vectors))
	}

	return NewMemoryIndex(vectors)
}

func NewMemoryIndex(vectors [][]float32) (*MemoryIndex, error) {
	if err := CheckDimensions(vectors); err != nil {
		return nil, err
	}

	idx := &MemoryIndex{vectors: make([][]float32, len(vectors))}
	for i, v := range vectors {
		idx.vectors[i] = slices.Clone(v)
	}
	if len(vectors) > 0 {
		idx.dimension = len(vectors[0])
	}

	return idx, nil
}

func (idx *MemoryIndex) Len() int {
	if idx == nil {
		return 0
	}

	return len(idx.vectors)
}

func (idx *MemoryIndex) Dimension() int {
	return idx.dimension
}

// Search returns the k vectors nearest to query by ascending distance. Ties
// go to the lower index; k is clamped to the number of indexed vectors.
func (idx *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if idx.Len() == 0 {
		return nil, ErrEmptyIndex
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", ErrInvalidParameter, k)
	}
	if len(query) != idx.dimension {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", ErrInvalidParameter, len(query), idx.dimension)
	}

	res := make([]Neighbor, len(idx.vectors))
	for i, v := range idx.vectors {
		res[i] = Neighbor{Index: i, Distance: L2(v, query)}
	}

	SortNeighbors(res)
	return res[:min(k, len(res))], nil
}

// SortNeighbors orders by ascending distance, then by ascending index.
func SortNeighbors(n []Neighbor) {
	slices.SortFunc(n, func(a, b Neighbor) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}

		return cmp.Compare(a.Index, b.Index)
	})
}

// L2 is the Euclidean distance between two vectors of equal length.
func L2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}

	return float32(math.Sqrt(sum))
}

// CheckDimensions verifies that all vectors share one non-zero dimension.
func CheckDimensions(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: empty vector", ErrInvalidParameter)
	}

	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d", ErrInvalidParameter, i, len(v), dim)
		}
	}

	return nil
}
