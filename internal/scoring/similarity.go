// Package scoring computes the raw relevance of one job for one resume.
//
// Every function here is pure: no storage, no network, no clock.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"jobmate/matching-service/internal/model"
)

var (
	// ErrIncompatibleEmbeddingVersion is returned when the resume and job
	// vectors were produced by different model versions.
	ErrIncompatibleEmbeddingVersion = errors.New("incompatible embedding version")
	// ErrMalformedJob is returned for job attributes that cannot be scored.
	ErrMalformedJob = errors.New("malformed job")
)

// NeutralSemantic is the semantic score used when either vector is missing.
const NeutralSemantic = 0.5

// Cosine returns the cosine similarity of a and b in [-1, 1]. Vectors must
// have equal length. A zero vector has no direction; ok is false in that case
// and in the empty case.
func Cosine(a, b []float32) (sim float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	sim = dot / (math.Sqrt(na) * math.Sqrt(nb))
	return clamp(sim, -1, 1), true
}

// SemanticFit compares two embeddings and rescales the cosine to [0, 1]
// via (sim+1)/2. A missing or zero vector on either side gives
// NeutralSemantic. Vectors of different model versions are never compared.
func SemanticFit(resume, job *model.Embedding) (float64, error) {
	if resume.Empty() || job.Empty() {
		return NeutralSemantic, nil
	}
	if resume.ModelVersion != job.ModelVersion {
		return 0, fmt.Errorf("%w: resume %q, job %q",
			ErrIncompatibleEmbeddingVersion, resume.ModelVersion, job.ModelVersion)
	}
	if len(resume.Values) != len(job.Values) {
		return 0, fmt.Errorf("%w: vector has %d dimensions, resume has %d",
			ErrMalformedJob, len(job.Values), len(resume.Values))
	}
	sim, ok := Cosine(resume.Values, job.Values)
	if !ok {
		return NeutralSemantic, nil
	}
	return (sim + 1) / 2, nil
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round4 rounds to the 4 decimal places persisted with a match.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
