// Package store defines the record store the matching engine consumes.
//
// Every cross-entity read is an explicit call keyed by UUID. Implementations
// live in this package (in-memory) and in store/postgres.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"jobmate/matching-service/internal/model"
)

// ErrNotFound is returned when a record is missing or does not belong to the
// requesting user.
var ErrNotFound = errors.New("record not found")

// Resumes stores resume profiles and the per-user active flag.
type Resumes interface {
	// ActiveResume returns the user's active resume or ErrNotFound.
	ActiveResume(ctx context.Context, userID uuid.UUID) (*model.ResumeProfile, error)
	GetResume(ctx context.Context, userID, resumeID uuid.UUID) (*model.ResumeProfile, error)
	// SaveResume inserts or replaces a resume by ID. Activating one resume
	// deactivates the user's others.
	SaveResume(ctx context.Context, r *model.ResumeProfile) error
	// SetActiveResume marks resumeID as the user's only active resume.
	SetActiveResume(ctx context.Context, userID, resumeID uuid.UUID) error
	UpdateResumeEmbedding(ctx context.Context, resumeID uuid.UUID, emb *model.Embedding) error
	// UsersWithActiveResume lists every user that can be matched.
	UsersWithActiveResume(ctx context.Context) ([]uuid.UUID, error)
}

// Preferences stores the single preference record per user.
type Preferences interface {
	// GetPreferences returns ErrNotFound when the user has none.
	GetPreferences(ctx context.Context, userID uuid.UUID) (*model.UserPreference, error)
	// UpsertPreferences is last-write-wins.
	UpsertPreferences(ctx context.Context, p *model.UserPreference) error
}

// Jobs stores postings keyed by (ExternalJobID, Source).
type Jobs interface {
	// UpsertJob inserts a posting or replaces the attributes of the posting
	// with the same identity, keeping its ID. When the description changes
	// and j carries no embedding, the stored embedding is cleared. The stored
	// posting is returned.
	UpsertJob(ctx context.Context, j *model.JobPosting) (*model.JobPosting, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*model.JobPosting, error)
	// GetJobs returns the postings that exist among ids, active or not.
	GetJobs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.JobPosting, error)
	// ListActiveJobs returns active postings not expired at now.
	ListActiveJobs(ctx context.Context, now time.Time) ([]*model.JobPosting, error)
	UpdateJobEmbedding(ctx context.Context, jobID uuid.UUID, emb *model.Embedding) error
	// ExpireJobs deactivates postings whose expiry is before now and returns
	// how many changed.
	ExpireJobs(ctx context.Context, now time.Time) (int, error)
}

// Matches stores the current MatchRecord per (user, job).
type Matches interface {
	// UpsertMatch supersedes any prior record for the same pair.
	UpsertMatch(ctx context.Context, m *model.MatchRecord) error
	// ListMatches returns the user's records on jobs open at now, in ranking
	// order, and the total count of such records.
	ListMatches(ctx context.Context, userID uuid.UUID, now time.Time, offset, limit int) ([]model.MatchedJob, int, error)
	// RetireMatches deletes the user's records for jobIDs and returns how
	// many were removed.
	RetireMatches(ctx context.Context, userID uuid.UUID, jobIDs []uuid.UUID) (int, error)
}

// Interactions is the append-only event log.
type Interactions interface {
	AppendInteraction(ctx context.Context, ev *model.InteractionEvent) error
	// ListInteractions returns the user's events oldest first.
	ListInteractions(ctx context.Context, userID uuid.UUID) ([]model.InteractionEvent, error)
}

// Store is the full record store.
type Store interface {
	Resumes
	Preferences
	Jobs
	Matches
	Interactions
}
