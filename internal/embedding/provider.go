package embedding

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Provider names accepted by FromConfig.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// DefaultLocalModel is the sentence-transformer the hash backend stands in
// for and the model self-hosted OpenAI-compatible servers usually serve.
const DefaultLocalModel = "all-MiniLM-L6-v2"

// DefaultModel returns the model name used when none is configured.
func DefaultModel(provider string) string {
	if strings.ToLower(strings.TrimSpace(provider)) == ProviderGemini {
		return defaultGeminiModel
	}
	return DefaultLocalModel
}

// Config selects and parameterizes a backend.
type Config struct {
	Provider string
	Model    string
	APIURL   string
	APIKey   string
	Options
}

// FromConfig builds the Service for the configured provider.
func FromConfig(ctx context.Context, cfg Config, log *zap.Logger) (*Service, error) {
	var backend Backend
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderHash:
		backend = NewHashBackend(cfg.Dimension)
	case ProviderOpenAI:
		if cfg.APIURL == "" {
			return nil, fmt.Errorf("embedding provider %q requires an API URL", cfg.Provider)
		}
		backend = NewHTTPBackend(cfg.APIURL, cfg.APIKey, cfg.Model)
	case ProviderGemini:
		g, err := NewGeminiBackend(ctx, cfg.APIKey, cfg.Model, cfg.Dimension)
		if err != nil {
			return nil, err
		}
		backend = g
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	return NewService(backend, cfg.Options, log), nil
}
