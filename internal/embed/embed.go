// Package embed provides the embedding providers behind semantic search.
package embed

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Embedder turns text into dense vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Provider failures, comparable with errors.Is.
var (
	ErrUnauthorized = errors.New("embed: unauthorized")
	ErrRateLimited  = errors.New("embed: rate limited")
	ErrUnavailable  = errors.New("embed: provider unavailable")
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Defaults.
const (
	DefaultOpenAIModel    = "text-embedding-3-small"
	DefaultOpenAIBaseURL  = "https://api.openai.com/v1"
	DefaultGeminiModel    = "text-embedding-004"
	DefaultQueryCacheSize = 256
	DefaultHTTPTimeout    = 60 * time.Second
)

// Config selects and configures a provider.
type Config struct {
	Provider       string
	Model          string
	APIKey         string
	BaseURL        string
	QueryCacheSize int
}

// New builds the configured provider and wraps it with a query cache when
// QueryCacheSize is positive.
func New(ctx context.Context, cfg Config) (Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embed: %w: no api key configured", ErrUnauthorized)
	}

	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case "", ProviderOpenAI:
		e = NewOpenAI(cfg.APIKey, cfg.Model, cfg.BaseURL)
	case ProviderGemini:
		e, err = NewGemini(ctx, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("embed: unknown provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.QueryCacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.QueryCacheSize)
	}
	return e, nil
}
