package docstore

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	chroma "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	"github.com/gamma-omg/doc-chat/rag"
)

type collection interface {
	Add(ctx context.Context, opts ...chroma.CollectionUpdateOption) error
	Query(ctx context.Context, opts ...chroma.CollectionQueryOption) (chroma.QueryResult, error)
}

type ChromaStoreConfig struct {
	BaseURL       string
	Prefix        string
	EmbeddingFunc embeddings.EmbeddingFunction
	RequestSize   int
	Log           *slog.Logger
}

// ChromaStore builds indexes as collections on a Chroma server.
type ChromaStore struct {
	client      chroma.Client
	ef          embeddings.EmbeddingFunction
	prefix      string
	requestSize int
	log         *slog.Logger
}

func NewChromaStore(cfg ChromaStoreConfig) (*ChromaStore, error) {
	client, err := chroma.NewHTTPClient(chroma.WithBaseURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create chroma client: %w", err)
	}

	return &ChromaStore{
		client:      client,
		ef:          cfg.EmbeddingFunc,
		prefix:      cfg.Prefix,
		requestSize: cfg.RequestSize,
		log:         cfg.Log,
	}, nil
}

func (ds *ChromaStore) Build(ctx context.Context, chunks []rag.Chunk, vectors [][]float32) (rag.Index, error) {
	if err := validateBuild(chunks, vectors); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return emptyIndex{}, nil
	}

	name := collectionName(ds.prefix)
	col, err := ds.client.CreateCollection(ctx, name, chroma.WithEmbeddingFunctionCreate(ds.ef))
	if err != nil {
		return nil, fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	idx := &ChromaIndex{
		client: ds.client,
		name:   name,
		col:    col,
		size:   len(chunks),
		log:    ds.log,
	}

	if err := addChunks(ctx, col, chunks, vectors, ds.requestSize); err != nil {
		_ = idx.Close(ctx)
		return nil, err
	}

	return idx, nil
}

// addChunks stores chunks with their vectors, at most requestSize chunks per
// request. A non-positive requestSize sends everything at once.
func addChunks(ctx context.Context, col collection, chunks []rag.Chunk, vectors [][]float32, requestSize int) error {
	if requestSize <= 0 {
		requestSize = len(chunks)
	}

	for start := 0; start < len(chunks); start += requestSize {
		end := min(start+requestSize, len(chunks))

		ids := make([]chroma.DocumentID, 0, end-start)
		texts := make([]string, 0, end-start)
		embs := make([]embeddings.Embedding, 0, end-start)
		metas := make([]chroma.DocumentMetadata, 0, end-start)
		for i := start; i < end; i++ {
			ids = append(ids, chroma.DocumentID(chunkID(chunks[i].Index)))
			texts = append(texts, chunks[i].Text)
			embs = append(embs, embeddings.NewEmbeddingFromFloat32(vectors[i]))
			metas = append(metas, chroma.NewDocumentMetadata(chroma.NewIntAttribute(ChunkIndex, int64(chunks[i].Index))))
		}

		err := col.Add(ctx,
			chroma.WithIDs(ids...),
			chroma.WithTexts(texts...),
			chroma.WithEmbeddings(embs...),
			chroma.WithMetadatas(metas...),
		)
		if err != nil {
			return fmt.Errorf("failed to add chunks %d-%d: %w", start, end-1, err)
		}
	}

	return nil
}

type ChromaIndex struct {
	client chroma.Client
	name   string
	col    collection
	size   int
	log    *slog.Logger
}

func (ci *ChromaIndex) Len() int {
	return ci.size
}

func (ci *ChromaIndex) Search(ctx context.Context, query []float32, k int) ([]rag.Neighbor, error) {
	if ci.size == 0 {
		return nil, rag.ErrEmptyIndex
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", rag.ErrInvalidParameter, k)
	}

	r, err := ci.col.Query(ctx,
		chroma.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(query)),
		chroma.WithNResults(min(k, ci.size)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", ci.name, err)
	}

	return neighbors(r.GetIDGroups(), r.GetDistancesGroups())
}

// Close drops the collection backing the index.
func (ci *ChromaIndex) Close(ctx context.Context) error {
	if ci.client == nil {
		return nil
	}

	if err := ci.client.DeleteCollection(ctx, ci.name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", ci.name, err)
	}

	if ci.log != nil {
		ci.log.Debug("collection deleted", slog.String("collection", ci.name))
	}

	return nil
}

// neighbors converts the first result group of a query. Document ids are the
// chunk indexes. Chroma reports squared L2 distances; they are converted to
// plain Euclidean distances.
func neighbors(ids []chroma.DocumentIDs, dists []embeddings.Distances) ([]rag.Neighbor, error) {
	if len(ids) == 0 || len(dists) == 0 {
		return []rag.Neighbor{}, nil
	}
	if len(ids[0]) != len(dists[0]) {
		return nil, fmt.Errorf("query returned %d ids and %d distances", len(ids[0]), len(dists[0]))
	}

	res := make([]rag.Neighbor, 0, len(ids[0]))
	for i, id := range ids[0] {
		idx, err := strconv.Atoi(string(id))
		if err != nil {
			return nil, fmt.Errorf("query result %d has invalid id %q: %w", i, id, err)
		}

		res = append(res, rag.Neighbor{
			Index:    idx,
			Distance: float32(math.Sqrt(math.Max(float64(dists[0][i]), 0))),
		})
	}

	rag.SortNeighbors(res)
	return res, nil
}
