package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"strconv"

	"github.com/gamma-omg/doc-chat/rag"
	chromem "github.com/philippgille/chromem-go"
)

// ChromemStore builds indexes as collections of an in-process chromem-go
// database. chromem ranks by cosine similarity; Search reports 1-similarity
// as the distance.
type ChromemStore struct {
	db     *chromem.DB
	embed  chromem.EmbeddingFunc
	prefix string
	log    *slog.Logger
}

// NewChromemStore creates an empty database. Collections are named
// prefix-<uuid>; an empty prefix uses DefaultCollectionPrefix.
func NewChromemStore(e rag.Embedder, prefix string, log *slog.Logger) *ChromemStore {
	return &ChromemStore{
		db:     chromem.NewDB(),
		embed:  ToChromemFunc(e),
		prefix: prefix,
		log:    log,
	}
}

// ToChromemFunc adapts an Embedder to chromem's embedding function.
func ToChromemFunc(e rag.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.Embed(ctx, text)
	}
}

func (s *ChromemStore) Build(ctx context.Context, chunks []rag.Chunk, vectors [][]float32) (rag.Index, error) {
	if err := validateBuild(chunks, vectors); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return emptyIndex{}, nil
	}

	name := collectionName(s.prefix)
	col, err := s.db.CreateCollection(name, nil, s.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        chunkID(c.Index),
			Content:   c.Text,
			Embedding: slices.Clone(vectors[i]),
			Metadata:  map[string]string{ChunkIndex: strconv.Itoa(c.Index)},
		}
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		_ = s.db.DeleteCollection(name)
		return nil, fmt.Errorf("failed to add chunks to %s: %w", name, err)
	}

	return &ChromemIndex{db: s.db, name: name, col: col, log: s.log}, nil
}

type ChromemIndex struct {
	db   *chromem.DB
	name string
	col  *chromem.Collection
	log  *slog.Logger
}

func (ci *ChromemIndex) Len() int {
	return ci.col.Count()
}

func (ci *ChromemIndex) Search(ctx context.Context, query []float32, k int) ([]rag.Neighbor, error) {
	count := ci.col.Count()
	if count == 0 {
		return nil, rag.ErrEmptyIndex
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", rag.ErrInvalidParameter, k)
	}

	// chromem requires nResults <= collection size.
	results, err := ci.col.QueryEmbedding(ctx, slices.Clone(query), min(k, count), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	res := make([]rag.Neighbor, 0, len(results))
	for _, r := range results {
		idx, err := strconv.Atoi(r.Metadata[ChunkIndex])
		if err != nil {
			return nil, fmt.Errorf("result %s has invalid %s: %w", r.ID, ChunkIndex, err)
		}

		res = append(res, rag.Neighbor{Index: idx, Distance: 1 - r.Similarity})
	}

	rag.SortNeighbors(res)
	return res, nil
}

func (ci *ChromemIndex) Close(ctx context.Context) error {
	if err := ci.db.DeleteCollection(ci.name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", ci.name, err)
	}

	if ci.log != nil {
		ci.log.Debug("collection deleted", slog.String("collection", ci.name))
	}

	return nil
}
