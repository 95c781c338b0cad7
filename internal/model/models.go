// Package model defines the records shared by the matching service.
//
// Every cross-entity reference is an explicit UUID; nothing here loads
// related records on its own.
package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RemotePolicy mirrors the remote_type / remote_preference columns.
type RemotePolicy string

const (
	RemoteUnspecified RemotePolicy = ""
	RemoteRemote      RemotePolicy = "remote"
	RemoteHybrid      RemotePolicy = "hybrid"
	RemoteOnsite      RemotePolicy = "onsite"
	RemoteAny         RemotePolicy = "any"
)

// ParseRemotePolicy accepts the values stored by job ingestion and the
// preference form. Unknown values map to RemoteUnspecified.
func ParseRemotePolicy(s string) RemotePolicy {
	switch RemotePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case RemoteRemote:
		return RemoteRemote
	case RemoteHybrid:
		return RemoteHybrid
	case RemoteOnsite:
		return RemoteOnsite
	case RemoteAny:
		return RemoteAny
	}
	return RemoteUnspecified
}

// Embedding is a semantic vector together with the model version that
// produced it. Vectors of different versions are not comparable.
type Embedding struct {
	Values       []float32 `json:"values"`
	ModelVersion string    `json:"modelVersion"`
}

// Empty reports whether e carries no usable vector.
func (e *Embedding) Empty() bool {
	return e == nil || len(e.Values) == 0
}

// ResumeProfile is one uploaded resume after text extraction.
type ResumeProfile struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	RawText        string
	NormalizedText string
	Skills         []string
	Embedding      *Embedding
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// JobPosting is a normalised offer. (ExternalJobID, Source) is its stable
// identity across re-ingestion; ID is assigned once and never changes.
type JobPosting struct {
	ID             uuid.UUID    `json:"id"`
	ExternalJobID  string       `json:"externalJobId"`
	Source         string       `json:"source"`
	Title          string       `json:"title"`
	Company        string       `json:"company"`
	Location       string       `json:"location,omitempty"`
	RemoteType     RemotePolicy `json:"remoteType,omitempty"`
	EmploymentType string       `json:"employmentType,omitempty"`
	SalaryMin      *int         `json:"salaryMin,omitempty"`
	SalaryMax      *int         `json:"salaryMax,omitempty"`
	Description    string       `json:"description"`
	RequiredSkills []string     `json:"requiredSkills,omitempty"`
	Embedding      *Embedding   `json:"-"`
	PostedDate     *time.Time   `json:"postedDate,omitempty"`
	ExpiresAt      *time.Time   `json:"expiresAt,omitempty"`
	ApplicationURL string       `json:"applicationUrl,omitempty"`
	IsActive       bool         `json:"isActive"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// OpenAt reports whether the job can take part in a ranking computed at now.
func (j *JobPosting) OpenAt(now time.Time) bool {
	if j == nil || !j.IsActive {
		return false
	}
	return j.ExpiresAt == nil || j.ExpiresAt.After(now)
}

// UserPreference is the single structured preference record of a user.
type UserPreference struct {
	UserID              uuid.UUID    `json:"userId"`
	PreferredTitles     []string     `json:"preferredTitles,omitempty"`
	PreferredLocations  []string     `json:"preferredLocations,omitempty"`
	PreferredIndustries []string     `json:"preferredIndustries,omitempty"`
	MinSalary           *int         `json:"minSalary,omitempty"`
	MaxSalary           *int         `json:"maxSalary,omitempty"`
	RemotePreference    RemotePolicy `json:"remotePreference,omitempty"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// ScoreComponent is one signal of the blended score.
type ScoreComponent struct {
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
	Detail string  `json:"detail,omitempty"`
}

// FeedbackAdjustment records how interaction history moved the raw score.
type FeedbackAdjustment struct {
	Kind   string  `json:"kind"` // "boost" or "penalty"
	Factor float64 `json:"factor"`
	Detail string  `json:"detail"`
}

// MatchReasons is the explanation persisted next to a score.
type MatchReasons struct {
	Components    []ScoreComponent    `json:"components"`
	RawScore      float64             `json:"rawScore"`
	MatchedSkills []string            `json:"matchedSkills"`
	MissingSkills []string            `json:"missingSkills"`
	Feedback      *FeedbackAdjustment `json:"feedback,omitempty"`
	Summary       []string            `json:"summary"`
}

// MatchRecord is the current score of one job for one user. There is at most
// one per (UserID, JobID); a new computation replaces the previous one.
type MatchRecord struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"userId"`
	JobID     uuid.UUID    `json:"jobId"`
	Score     float64      `json:"score"`
	Reasons   MatchReasons `json:"reasons"`
	CreatedAt time.Time    `json:"createdAt"`

	// PostedDate is copied from the job so records can be ordered without
	// another lookup. Not persisted.
	PostedDate *time.Time `json:"-"`
}

// SortMatches orders records by score descending, then posting date
// descending (undated last), then job id ascending.
func SortMatches(recs []MatchRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return MatchLess(&recs[i], &recs[j])
	})
}

// MatchLess is the ranking order used everywhere matches are listed.
func MatchLess(a, b *MatchRecord) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	switch {
	case a.PostedDate != nil && b.PostedDate != nil:
		if !a.PostedDate.Equal(*b.PostedDate) {
			return a.PostedDate.After(*b.PostedDate)
		}
	case a.PostedDate != nil:
		return true
	case b.PostedDate != nil:
		return false
	}
	return a.JobID.String() < b.JobID.String()
}

// MatchedJob is a match joined with its posting, as served to readers.
type MatchedJob struct {
	MatchRecord
	Job *JobPosting `json:"job"`
}
