package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-embedding-001"

// contentEmbedder is the part of *genai.Models used here.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiBackend embeds through the Gemini API.
type GeminiBackend struct {
	models    contentEmbedder
	modelName string
	dim       int32
}

// NewGeminiBackend creates a client configured for the Gemini API backend.
// dim is requested as the output dimensionality so vectors fit the column.
func NewGeminiBackend(ctx context.Context, apiKey, model string, dim int) (*GeminiBackend, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiBackend(client.Models, model, dim), nil
}

func newGeminiBackend(models contentEmbedder, model string, dim int) *GeminiBackend {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiModel
	}
	return &GeminiBackend{models: models, modelName: model, dim: int32(dim)}
}

// Embed requests a single embedding for text.
func (g *GeminiBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}
	if g.dim > 0 {
		dim := g.dim
		cfg.OutputDimensionality = &dim
	}

	resp, err := g.models.EmbedContent(ctx, g.modelName, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("gemini returned no embeddings")
	}
	return resp.Embeddings[0].Values, nil
}
