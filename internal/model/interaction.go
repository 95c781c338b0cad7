package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InteractionType values mirror user_job_interactions.interaction_type.
type InteractionType string

const (
	InteractionViewed    InteractionType = "viewed"
	InteractionLiked     InteractionType = "liked"
	InteractionDisliked  InteractionType = "disliked"
	InteractionSaved     InteractionType = "saved"
	InteractionApplied   InteractionType = "applied"
	InteractionDismissed InteractionType = "dismissed"
)

// ErrInvalidInteractionType is returned for any kind outside the six above.
var ErrInvalidInteractionType = errors.New("invalid interaction type")

// ParseInteractionType converts a raw string to an InteractionType. Matching
// is exact: no trimming, no case folding.
func ParseInteractionType(s string) (InteractionType, error) {
	t := InteractionType(s)
	switch t {
	case InteractionViewed, InteractionLiked, InteractionDisliked,
		InteractionSaved, InteractionApplied, InteractionDismissed:
		return t, nil
	}
	return "", fmt.Errorf("%w %q", ErrInvalidInteractionType, s)
}

// IsPositive is true for the signals that boost similar jobs.
func (t InteractionType) IsPositive() bool {
	return t == InteractionLiked || t == InteractionSaved || t == InteractionApplied
}

// IsNegative is true for the signals that bury the same job.
func (t InteractionType) IsNegative() bool {
	return t == InteractionDisliked || t == InteractionDismissed
}

// InteractionEvent is one append-only log entry. Events are never updated or
// deleted by the matching engine.
type InteractionEvent struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"userId"`
	JobID     uuid.UUID       `json:"jobId"`
	Type      InteractionType `json:"interactionType"`
	CreatedAt time.Time       `json:"createdAt"`
}
