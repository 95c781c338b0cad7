package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/model"
	"jobmate/matching-service/internal/store"
)

// ─── Resumes ─────────────────────────────────────────────────────────────────

// ResumeInput is one resume upload. A nil ID creates a new resume.
type ResumeInput struct {
	ID       uuid.UUID `json:"id"`
	RawText  string    `json:"rawText"`
	Skills   []string  `json:"skills"`
	Activate bool      `json:"activate"`
}

// UpsertResume normalizes, embeds and stores a resume. When the stored resume
// is the user's active one a recomputation is dispatched and its handle
// returned; otherwise the handle is nil.
//
// An embedding failure does not fail the upload: the resume is stored without
// a vector and the next run embeds it again.
func (s *Service) UpsertResume(ctx context.Context, userID uuid.UUID, in ResumeInput) (*model.ResumeProfile, *Run, error) {
	if strings.TrimSpace(in.RawText) == "" && len(in.Skills) == 0 {
		return nil, nil, &ValidationError{Msg: "resume text or skills are required"}
	}

	r := &model.ResumeProfile{ID: in.ID, UserID: userID, RawText: in.RawText, Active: in.Activate}
	if in.ID != uuid.Nil {
		prev, err := s.store.GetResume(ctx, userID, in.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("resume %s: %w", in.ID, err)
		}
		r.Active = r.Active || prev.Active
	}

	norm := s.norm.Normalize(in.RawText)
	r.NormalizedText = norm.Text
	r.Skills = s.norm.CanonicalSkills(append(norm.Skills, in.Skills...))

	emb, err := s.embedder.Embed(ctx, r.NormalizedText)
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, nil, ctx.Err()
	case err != nil:
		s.log.Warn("resume embedding failed, storing without vector",
			zap.String("user_id", userID.String()), zap.Error(err))
	default:
		r.Embedding = emb
	}

	if err := s.store.SaveResume(ctx, r); err != nil {
		return nil, nil, fmt.Errorf("save resume: %w", err)
	}
	s.log.Info("resume stored",
		zap.String("user_id", userID.String()),
		zap.String("resume_id", r.ID.String()),
		zap.Int("skills", len(r.Skills)),
		zap.Bool("active", r.Active),
	)

	if !r.Active {
		return r, nil, nil
	}
	return r, s.Dispatch(userID), nil
}

// SetActiveResume selects which resume the user is matched against and
// dispatches a recomputation.
func (s *Service) SetActiveResume(ctx context.Context, userID, resumeID uuid.UUID) (*Run, error) {
	if err := s.store.SetActiveResume(ctx, userID, resumeID); err != nil {
		return nil, fmt.Errorf("resume %s: %w", resumeID, err)
	}
	return s.Dispatch(userID), nil
}

// ─── Preferences ─────────────────────────────────────────────────────────────

// UpsertPreferences replaces the user's preference record. A recomputation is
// dispatched when the user has an active resume; otherwise the handle is nil.
func (s *Service) UpsertPreferences(ctx context.Context, p *model.UserPreference) (*Run, error) {
	if p == nil || p.UserID == uuid.Nil {
		return nil, &ValidationError{Msg: "user id is required"}
	}
	if (p.MinSalary != nil && *p.MinSalary < 0) || (p.MaxSalary != nil && *p.MaxSalary < 0) {
		return nil, &ValidationError{Msg: "salary bounds must not be negative"}
	}
	if p.MinSalary != nil && p.MaxSalary != nil && *p.MinSalary > *p.MaxSalary {
		return nil, &ValidationError{Msg: "minimum salary exceeds maximum salary"}
	}
	p.RemotePreference = model.ParseRemotePolicy(string(p.RemotePreference))
	p.PreferredTitles = trimAll(p.PreferredTitles)
	p.PreferredLocations = trimAll(p.PreferredLocations)
	p.PreferredIndustries = trimAll(p.PreferredIndustries)

	if err := s.store.UpsertPreferences(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert preferences: %w", err)
	}

	if _, err := s.store.ActiveResume(ctx, p.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("active resume: %w", err)
	}
	return s.Dispatch(p.UserID), nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ─── Jobs ────────────────────────────────────────────────────────────────────

// UpsertJob stores a posting under its (external id, source) identity. Skills
// are extracted from the description when the posting lists none. The vector
// is computed when the stored posting has none for the current model; a
// failure leaves it to RefreshJobEmbeddings.
func (s *Service) UpsertJob(ctx context.Context, j *model.JobPosting) (*model.JobPosting, error) {
	if j == nil || strings.TrimSpace(j.ExternalJobID) == "" || strings.TrimSpace(j.Source) == "" {
		return nil, &ValidationError{Msg: "externalJobId and source are required"}
	}
	if (j.SalaryMin != nil && *j.SalaryMin < 0) || (j.SalaryMax != nil && *j.SalaryMax < 0) {
		return nil, &ValidationError{Msg: "salary bounds must not be negative"}
	}
	if j.SalaryMin != nil && j.SalaryMax != nil && *j.SalaryMin > *j.SalaryMax {
		return nil, &ValidationError{Msg: "salaryMin exceeds salaryMax"}
	}

	j.RemoteType = model.ParseRemotePolicy(string(j.RemoteType))
	if len(j.RequiredSkills) == 0 {
		j.RequiredSkills = s.norm.Normalize(j.Title + "\n" + j.Description).Skills
	} else {
		j.RequiredSkills = s.norm.CanonicalSkills(j.RequiredSkills)
	}

	stored, err := s.store.UpsertJob(ctx, j)
	if err != nil {
		return nil, fmt.Errorf("upsert job: %w", err)
	}
	if s.needsEmbedding(stored) {
		if err := s.embedJob(ctx, stored); err != nil {
			s.log.Warn("job embedding deferred",
				zap.String("job_id", stored.ID.String()), zap.Error(err))
		}
	}
	return stored, nil
}

func (s *Service) needsEmbedding(j *model.JobPosting) bool {
	return j.Embedding.Empty() || j.Embedding.ModelVersion != s.embedder.Version()
}

func (s *Service) embedJob(ctx context.Context, j *model.JobPosting) error {
	emb, err := s.embedder.Embed(ctx, s.jobText(j))
	if err != nil {
		return err
	}
	if emb == nil {
		return nil
	}
	if err := s.store.UpdateJobEmbedding(ctx, j.ID, emb); err != nil {
		return fmt.Errorf("persist embedding: %w", err)
	}
	j.Embedding = emb
	return nil
}

// RefreshJobEmbeddings embeds every active job whose vector is missing or
// from another model version. Failures are logged and skipped; the count of
// refreshed jobs is returned.
func (s *Service) RefreshJobEmbeddings(ctx context.Context) (int, error) {
	jobs, err := s.store.ListActiveJobs(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("list active jobs: %w", err)
	}

	refreshed, failed := 0, 0
	for _, j := range jobs {
		if ctx.Err() != nil {
			return refreshed, ctx.Err()
		}
		if !s.needsEmbedding(j) {
			continue
		}
		if err := s.embedJob(ctx, j); err != nil {
			s.log.Warn("refresh embedding failed", zap.String("job_id", j.ID.String()), zap.Error(err))
			failed++
			continue
		}
		refreshed++
	}

	s.log.Info("job embeddings refreshed",
		zap.Int("active", len(jobs)),
		zap.Int("refreshed", refreshed),
		zap.Int("failed", failed),
	)
	return refreshed, nil
}

// ExpireJobs deactivates postings past their expiry. Their match records are
// kept but drop out of reads and new rankings.
func (s *Service) ExpireJobs(ctx context.Context) (int, error) {
	n, err := s.store.ExpireJobs(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("expire jobs: %w", err)
	}
	if n > 0 {
		s.log.Info("jobs expired", zap.Int("count", n))
	}
	return n, nil
}

// ─── Batch ───────────────────────────────────────────────────────────────────

// RecomputeAll dispatches a run for every user with an active resume and
// waits for them. It returns how many runs succeeded.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	users, err := s.store.UsersWithActiveResume(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	runs := make([]*Run, 0, len(users))
	for _, u := range users {
		runs = append(runs, s.Dispatch(u))
	}
	ok, err := waitAll(ctx, runs)
	s.log.Info("batch recompute finished",
		zap.Int("users", len(users)),
		zap.Int("succeeded", ok),
	)
	return ok, err
}
