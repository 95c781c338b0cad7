// Package embedding turns normalized text into fixed-length vectors tagged
// with the model version that produced them.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/logger"
	"jobmate/matching-service/internal/model"
)

var (
	// ErrEmbeddingTimeout means the backend did not answer within the
	// configured timeout.
	ErrEmbeddingTimeout = errors.New("embedding timeout")
	// ErrEmbeddingUnavailable covers every other backend failure, including a
	// vector of the wrong dimension.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// Backend computes one vector for one already-truncated text.
type Backend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options fixes the contract of a Service.
type Options struct {
	Version   string
	Dimension int
	MaxChars  int
	Timeout   time.Duration
}

// Service wraps a Backend with truncation, a per-call timeout, dimension
// checks, and version tagging. It keeps no cache.
type Service struct {
	backend  Backend
	version  string
	dim      int
	maxChars int
	timeout  time.Duration
	log      *zap.Logger
	tracer   trace.Tracer
}

// NewService builds a Service. Zero MaxChars disables truncation and zero
// Timeout disables the per-call deadline.
func NewService(backend Backend, opts Options, log *zap.Logger) *Service {
	return &Service{
		backend:  backend,
		version:  opts.Version,
		dim:      opts.Dimension,
		maxChars: opts.MaxChars,
		timeout:  opts.Timeout,
		log:      logger.WithFields(log, zap.String("component", "embedding"), zap.String("model_version", opts.Version)),
		tracer:   otel.Tracer("jobmate/matching-service/embedding"),
	}
}

// Version is the tag stored next to every vector this Service produces.
func (s *Service) Version() string { return s.version }

// Dimension is the fixed vector length.
func (s *Service) Dimension() int { return s.dim }

// Embed returns the vector of text. Text longer than MaxChars is cut to its
// first MaxChars runes; the tail does not contribute to the vector. Empty text
// yields (nil, nil), which scorers treat as a missing embedding.
//
// Errors wrap ErrEmbeddingTimeout or ErrEmbeddingUnavailable, except when ctx
// itself is done, in which case ctx.Err() is returned.
func (s *Service) Embed(ctx context.Context, text string) (*model.Embedding, error) {
	text = Truncate(text, s.maxChars)
	if text == "" {
		return nil, nil
	}

	ctx, span := s.tracer.Start(ctx, "embedding.Embed", trace.WithAttributes(
		attribute.String("embedding.model_version", s.version),
		attribute.Int("embedding.input_chars", len(text)),
	))
	defer span.End()

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	vec, err := s.backend.Embed(callCtx, text)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "embed failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if isTimeout(callCtx, err) {
			return nil, fmt.Errorf("%w after %s: %v", ErrEmbeddingTimeout, s.timeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if s.dim > 0 && len(vec) != s.dim {
		err := fmt.Errorf("%w: got %d dimensions, want %d", ErrEmbeddingUnavailable, len(vec), s.dim)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.log.Debug("embedded text",
		zap.Int("chars", len(text)),
		zap.Duration("took", time.Since(start)),
	)
	return &model.Embedding{Values: vec, ModelVersion: s.version}, nil
}

// Truncate returns the first maxChars runes of text. maxChars <= 0 means no
// limit.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 {
		return text
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
