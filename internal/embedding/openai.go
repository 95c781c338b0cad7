package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const embeddingsPath = "/v1/embeddings"

// HTTPBackend calls an OpenAI-compatible /v1/embeddings endpoint. Any server
// that speaks this protocol works, including self-hosted sentence-transformer
// servers serving all-MiniLM-L6-v2.
type HTTPBackend struct {
	BaseURL string
	APIKey  string // optional
	Model   string
	client  *http.Client
}

// NewHTTPBackend constructs a backend with a shared HTTP client. The
// per-request deadline comes from the caller's context.
func NewHTTPBackend(baseURL, apiKey, model string) *HTTPBackend {
	return &HTTPBackend{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		client:  &http.Client{},
	}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed posts one input and returns its vector.
func (b *HTTPBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	payload, err := json.Marshal(embeddingsRequest{Model: b.Model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+embeddingsPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http POST: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embeddings endpoint returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	var out embeddingsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}
	for _, d := range out.Data {
		if d.Index != 0 {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		return vec, nil
	}
	return nil, fmt.Errorf("embeddings response has no data")
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
