package generator

import (
	"context"
	"errors"
	"fmt"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var (
	ErrEmptyResponse = errors.New("model returned no text")
	ErrMissingAPIKey = errors.New("missing api key")
)

// GenerationError wraps any transport, authentication or quota failure of a
// hosted model.
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

type Config struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New creates the generator for cfg.Provider. A missing API key does not fail
// here; the returned generator reports it on every call instead.
func New(ctx context.Context, cfg Config) (Generator, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.APIKey == "" {
			return Unavailable(cfg.Provider, ErrMissingAPIKey), nil
		}
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return Unavailable(cfg.Provider, ErrMissingAPIKey), nil
		}
		return NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL), nil
	}

	return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
}

// Close releases the generator's client if it holds one.
func Close(g Generator) error {
	if c, ok := g.(interface{ Close() error }); ok {
		return c.Close()
	}

	return nil
}

type unavailable struct {
	err *GenerationError
}

// Unavailable returns a generator that fails every call with err.
func Unavailable(provider string, err error) Generator {
	return &unavailable{err: &GenerationError{Provider: provider, Err: err}}
}

func (u *unavailable) Generate(ctx context.Context, prompt string) (string, error) {
	return "", u.err
}
