package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashBackend is a local, dependency-free embedder based on signed feature
// hashing of unigrams and bigrams. Texts sharing vocabulary end up close in
// cosine terms. It is the default when no model service is configured and
// is what the tests run against.
type HashBackend struct {
	Dimension int
}

// NewHashBackend returns a HashBackend producing dim-length vectors.
func NewHashBackend(dim int) *HashBackend {
	return &HashBackend{Dimension: dim}
}

// Embed never fails except on a cancelled context.
func (h *HashBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, h.Dimension)
	if h.Dimension <= 0 {
		return []float32{}, nil
	}

	tokens := strings.Fields(text)
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, h.Dimension)
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *HashBackend) add(vec []float64, feature string, weight float64) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.Dimension))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
