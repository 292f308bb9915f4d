package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/amikos-tech/chroma-go/pkg/embeddings"
	defaultef "github.com/amikos-tech/chroma-go/pkg/embeddings/default_ef"
	gemini "github.com/amikos-tech/chroma-go/pkg/embeddings/gemini"
	openai "github.com/amikos-tech/chroma-go/pkg/embeddings/openai"
	"github.com/gamma-omg/doc-chat/docstore"
	"github.com/gamma-omg/doc-chat/generator"
	"github.com/gamma-omg/doc-chat/rag"
	"github.com/gamma-omg/doc-chat/readers"
	"github.com/spf13/cobra"
)

var (
	cfgPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Ask questions about a PDF, DOCX or TXT document",
	Long: `docchat extracts the text of a document, splits it into overlapping
chunks, embeds and indexes them, and answers questions with a hosted
language model grounded on the most relevant chunks.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "cfg/config.yaml", "configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createEmbeddingFunction(cfg *Config) (embeddings.EmbeddingFunction, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Embeddings.Provider {
	case EmbeddingsOpenAI:
		ef, err := openai.NewOpenAIEmbeddingFunction(
			cfg.Embeddings.ApiKey,
			openai.WithModel(openai.EmbeddingModel(cfg.Embeddings.Model)))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: failed to create OpenAI embedding function: %w", rag.ErrModelUnavailable, err)
		}

		return ef, noop, nil
	case EmbeddingsGemini:
		ef, err := gemini.NewGeminiEmbeddingFunction(
			gemini.WithAPIKey(cfg.Embeddings.ApiKey),
			gemini.WithDefaultModel(embeddings.EmbeddingModel(cfg.Embeddings.Model)))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: failed to create Gemini embedding function: %w", rag.ErrModelUnavailable, err)
		}

		return ef, noop, nil
	case EmbeddingsLocal:
		ef, closeEf, err := defaultef.NewDefaultEmbeddingFunction()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: failed to load local embedding model: %w", rag.ErrModelUnavailable, err)
		}

		return ef, closeEf, nil
	}

	return nil, nil, errors.New("invalid embeddings provider configuration")
}

func createIndexBuilder(cfg *Config, ef embeddings.EmbeddingFunction, emb rag.Embedder, log *slog.Logger) (rag.IndexBuilder, error) {
	switch cfg.Index {
	case IndexChroma:
		store, err := docstore.NewChromaStore(docstore.ChromaStoreConfig{
			BaseURL:       cfg.ChromaAddr,
			Prefix:        cfg.CollectionPrefix,
			EmbeddingFunc: ef,
			RequestSize:   cfg.RequestSize,
			Log:           log,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Chroma doc store: %w", err)
		}

		return store, nil
	case IndexChromem:
		return docstore.NewChromemStore(emb, cfg.CollectionPrefix, log), nil
	case IndexMemory:
		return rag.MemoryIndexBuilder{}, nil
	}

	return nil, fmt.Errorf("invalid index %q", cfg.Index)
}

func createGenerator(ctx context.Context, cfg *Config, apiKey string) (rag.Generator, error) {
	if apiKey == "" {
		apiKey = cfg.Generation.ApiKey
	}

	return generator.New(ctx, generator.Config{
		Provider: cfg.Generation.Provider,
		Model:    cfg.Generation.Model,
		APIKey:   apiKey,
		BaseURL:  cfg.Generation.BaseURL,
	})
}

// app is the process-wide state: the loaded model, the pipeline and the
// generation client.
type app struct {
	log       *slog.Logger
	extractor *readers.Registry
	pipeline  *rag.Pipeline
	generator rag.Generator
	closers   []func() error
}

func newApp(ctx context.Context, cfg *Config, log *slog.Logger) (*app, error) {
	a := &app{log: log, extractor: readers.Default()}

	start := time.Now()
	ef, closeEf, err := createEmbeddingFunction(cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeEf)
	log.Debug("embedding model loaded",
		slog.String("provider", cfg.Embeddings.Provider),
		slog.String("model", cfg.Embeddings.Model),
		slog.Duration("took", time.Since(start)))

	emb, err := rag.NewEmbedder(ef, cfg.Embeddings.CacheSize)
	if err != nil {
		a.Close()
		return nil, err
	}

	builder, err := createIndexBuilder(cfg, ef, emb, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.pipeline = &rag.Pipeline{
		Log:        log,
		Chunkifier: cfg.chunkifier(),
		Embedder:   emb,
		Builder:    builder,
	}

	gen, err := createGenerator(ctx, cfg, "")
	if err != nil {
		a.Close()
		return nil, err
	}
	a.generator = gen
	a.closers = append(a.closers, func() error { return generator.Close(gen) })

	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("failed to release resource", slog.String("error", err.Error()))
		}
	}
}

func stderrLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
