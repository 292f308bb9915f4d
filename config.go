package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gamma-omg/doc-chat/docstore"
	"github.com/gamma-omg/doc-chat/generator"
	"github.com/gamma-omg/doc-chat/rag"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

const envPrefix = "DOCCHAT_"

const (
	IndexMemory  = "memory"
	IndexChromem = "chromem"
	IndexChroma  = "chroma"

	EmbeddingsLocal  = "local"
	EmbeddingsOpenAI = "openai"
	EmbeddingsGemini = "gemini"

	localEmbeddingModel = "all-MiniLM-L6-v2"
)

type EmbeddingsConfig struct {
	Provider  string `yaml:"provider" koanf:"provider"`
	Model     string `yaml:"model" koanf:"model"`
	ApiKey    string `yaml:"api_key,omitempty" koanf:"api_key"`
	CacheSize int    `yaml:"cache_size" koanf:"cache_size"`
}

type GenerationConfig struct {
	Provider string `yaml:"provider" koanf:"provider"`
	Model    string `yaml:"model" koanf:"model"`
	ApiKey   string `yaml:"api_key,omitempty" koanf:"api_key"`
	BaseURL  string `yaml:"base_url,omitempty" koanf:"base_url"`
}

type Config struct {
	LogFile          string           `yaml:"log" koanf:"log"`
	DocRoot          string           `yaml:"doc_root" koanf:"doc_root"`
	ServerAddr       string           `yaml:"server_addr" koanf:"server_addr"`
	MergeEventsMs    int              `yaml:"write_debounce_ms" koanf:"write_debounce_ms"`
	ChunkSize        int              `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap     int              `yaml:"chunk_overlap" koanf:"chunk_overlap"`
	TopK             int              `yaml:"top_k" koanf:"top_k"`
	Index            string           `yaml:"index" koanf:"index"`
	ChromaAddr       string           `yaml:"chroma_addr" koanf:"chroma_addr"`
	CollectionPrefix string           `yaml:"collection_prefix" koanf:"collection_prefix"`
	RequestSize      int              `yaml:"request_size" koanf:"request_size"`
	Embeddings       EmbeddingsConfig `yaml:"embeddings" koanf:"embeddings"`
	Generation       GenerationConfig `yaml:"generation" koanf:"generation"`
}

func defaultConfig() *Config {
	return &Config{
		LogFile:          "docchat.log",
		DocRoot:          ".",
		ServerAddr:       "localhost:8080",
		MergeEventsMs:    500,
		ChunkSize:        500,
		ChunkOverlap:     50,
		TopK:             rag.DefaultTopK,
		Index:            IndexMemory,
		ChromaAddr:       "http://localhost:8000",
		CollectionPrefix: docstore.DefaultCollectionPrefix,
		RequestSize:      100,
		Embeddings: EmbeddingsConfig{
			Provider:  EmbeddingsLocal,
			Model:     localEmbeddingModel,
			CacheSize: 4096,
		},
		Generation: GenerationConfig{
			Provider: generator.ProviderGemini,
			Model:    generator.DefaultGeminiModel,
		},
	}
}

// readConfig layers the yaml file at cfgPath and DOCCHAT_* environment
// variables over the defaults. A missing file is not an error. Nested keys
// use a double underscore: DOCCHAT_GENERATION__MODEL.
func readConfig(cfgPath string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	cfg := defaultConfig()

	if _, err := os.Stat(cfgPath); err == nil {
		if err := k.Load(file.Provider(cfgPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("unable to parse config file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("unable to load environment overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unable to parse config: %w", err)
	}

	if cfg.Embeddings.ApiKey == "" {
		cfg.Embeddings.ApiKey = apiKeyFromEnv(cfg.Embeddings.Provider)
	}
	if cfg.Generation.ApiKey == "" {
		cfg.Generation.ApiKey = apiKeyFromEnv(cfg.Generation.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func apiKeyFromEnv(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	}

	return ""
}

func (c *Config) Validate() error {
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap must be non-negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkSize <= c.ChunkOverlap {
		return fmt.Errorf("chunk_size (%d) must be greater than chunk_overlap (%d)", c.ChunkSize, c.ChunkOverlap)
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1, got %d", c.TopK)
	}

	switch c.Index {
	case IndexMemory, IndexChromem, IndexChroma:
	default:
		return fmt.Errorf("invalid index %q: must be one of memory, chromem, chroma", c.Index)
	}

	switch c.Embeddings.Provider {
	case EmbeddingsLocal, EmbeddingsOpenAI, EmbeddingsGemini:
	default:
		return fmt.Errorf("invalid embeddings provider %q: must be one of local, openai, gemini", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == EmbeddingsLocal && c.Embeddings.Model != localEmbeddingModel {
		return fmt.Errorf("local embeddings only support %s, got %q", localEmbeddingModel, c.Embeddings.Model)
	}

	switch c.Generation.Provider {
	case generator.ProviderGemini, generator.ProviderOpenAI:
	default:
		return fmt.Errorf("invalid generation provider %q: must be one of gemini, openai", c.Generation.Provider)
	}

	return nil
}

func (c *Config) chunkifier() *rag.DefaultChunkifier {
	return &rag.DefaultChunkifier{ChunkSize: c.ChunkSize, ChunkOverlap: c.ChunkOverlap}
}

// Save writes the configuration as yaml. API keys are left out.
func (c *Config) Save(path string) error {
	out := *c
	out.Embeddings.ApiKey = ""
	out.Generation.ApiKey = ""

	data, err := yamlv3.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
