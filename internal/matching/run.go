package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"jobmate/matching-service/internal/bus"
	"jobmate/matching-service/internal/feedback"
	"jobmate/matching-service/internal/model"
	"jobmate/matching-service/internal/scoring"
	"jobmate/matching-service/internal/store"
)

// RunSummary reports the outcome of one matching run. It is published on
// bus.ChannelMatchesUpdated when the run finishes.
type RunSummary struct {
	UserID             uuid.UUID `json:"userId"`
	Candidates         int       `json:"candidates"`
	Scored             int       `json:"scored"`
	Skipped            int       `json:"skipped"`
	NeedsReembed       int       `json:"needsReembed"`
	EmbeddingFallbacks int       `json:"embeddingFallbacks"`
	Excluded           int       `json:"excluded"`
	Retired            int       `json:"retired"`
	Cancelled          bool      `json:"cancelled"`
	StartedAt          time.Time `json:"startedAt"`
	FinishedAt         time.Time `json:"finishedAt"`
}

type outcome int

const (
	outcomeScored outcome = iota
	outcomeSkipped
	outcomeNeedsReembed
	outcomeCancelled
)

// jobResult is what one scoring goroutine hands back. Goroutines share no
// mutable state; counters and writes happen after the fan-in.
type jobResult struct {
	outcome  outcome
	fallback bool
	embedded *model.Embedding
	rec      *model.MatchRecord
}

// runInput is the per-run state every job is scored against.
type runInput struct {
	userID       uuid.UUID
	resumeEmb    *model.Embedding
	resumeSkills []string
	pref         *model.UserPreference
	history      *feedback.History
	now          time.Time
	log          *zap.Logger
}

// ─── Compute ─────────────────────────────────────────────────────────────────

// ComputeMatches recomputes and stores the user's ranking and returns it in
// ranking order. It fails with ErrNoActiveResume or ErrPreferencesUnavailable
// when the user's own inputs cannot be read; failures on individual jobs are
// counted in the summary and never abort the run.
//
// ctx is checked between jobs. A cancelled run writes nothing and returns
// ctx.Err() with Cancelled set. A finished run retires the user's records on
// open jobs it did not score, so reads return exactly the computed set.
func (s *Service) ComputeMatches(ctx context.Context, userID uuid.UUID) (RunSummary, []model.MatchRecord, error) {
	ctx, span := s.tracer.Start(ctx, "matching.ComputeMatches")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	sum := RunSummary{UserID: userID, StartedAt: s.now()}
	log := s.log.With(zap.String("user_id", userID.String()))

	in, err := s.loadInputs(ctx, userID, log, &sum)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load inputs")
		sum.Cancelled = ctx.Err() != nil
		return s.finish(ctx, sum, log), nil, err
	}

	jobs, err := s.store.ListActiveJobs(ctx, in.now)
	if err != nil {
		return s.finish(ctx, sum, log), nil, fmt.Errorf("list active jobs: %w", err)
	}

	candidates := make([]*model.JobPosting, 0, len(jobs))
	for _, j := range jobs {
		if s.settledDismissal(in, j.ID) {
			sum.Excluded++
			continue
		}
		candidates = append(candidates, j)
	}
	sum.Candidates = len(candidates)
	span.SetAttributes(attribute.Int("matching.candidates", len(candidates)))

	results := make([]jobResult, len(candidates))
	var g errgroup.Group
	g.SetLimit(s.opts.ScoreConcurrency)
	for i, job := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = s.scoreJob(ctx, in, job)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		sum.Cancelled = true
		log.Info("matching run cancelled")
		return s.finish(ctx, sum, log), nil, err
	}

	recs := make([]model.MatchRecord, 0, len(results))
	scored := make(map[uuid.UUID]struct{}, len(results))
	for i, r := range results {
		job := candidates[i]
		if r.fallback {
			sum.EmbeddingFallbacks++
		}
		if r.embedded != nil {
			if err := s.store.UpdateJobEmbedding(ctx, job.ID, r.embedded); err != nil {
				log.Warn("persist job embedding failed", zap.String("job_id", job.ID.String()), zap.Error(err))
			}
		}
		switch r.outcome {
		case outcomeSkipped:
			sum.Skipped++
			continue
		case outcomeNeedsReembed:
			sum.NeedsReembed++
			continue
		case outcomeCancelled:
			continue
		}
		if err := s.store.UpsertMatch(ctx, r.rec); err != nil {
			log.Warn("upsert match failed", zap.String("job_id", job.ID.String()), zap.Error(err))
			sum.Skipped++
			continue
		}
		recs = append(recs, *r.rec)
		scored[job.ID] = struct{}{}
		sum.Scored++
	}
	model.SortMatches(recs)

	stale := make([]uuid.UUID, 0, len(jobs)-len(scored))
	for _, j := range jobs {
		if _, ok := scored[j.ID]; !ok {
			stale = append(stale, j.ID)
		}
	}
	if len(stale) > 0 {
		n, err := s.store.RetireMatches(ctx, userID, stale)
		if err != nil {
			log.Warn("retire stale matches failed", zap.Error(err))
		}
		sum.Retired = n
	}

	return s.finish(ctx, sum, log), recs, nil
}

func (s *Service) finish(ctx context.Context, sum RunSummary, log *zap.Logger) RunSummary {
	sum.FinishedAt = s.now()
	log.Info("matching run finished",
		zap.Int("candidates", sum.Candidates),
		zap.Int("scored", sum.Scored),
		zap.Int("skipped", sum.Skipped),
		zap.Int("needs_reembed", sum.NeedsReembed),
		zap.Int("embedding_fallbacks", sum.EmbeddingFallbacks),
		zap.Int("excluded", sum.Excluded),
		zap.Int("retired", sum.Retired),
		zap.Bool("cancelled", sum.Cancelled),
		zap.Duration("took", sum.FinishedAt.Sub(sum.StartedAt)),
	)
	// the run ctx may be cancelled; the event still goes out
	s.bus.Publish(context.WithoutCancel(ctx), bus.ChannelMatchesUpdated, sum)
	return sum
}

// loadInputs reads everything a run depends on besides the jobs themselves.
func (s *Service) loadInputs(ctx context.Context, userID uuid.UUID, log *zap.Logger, sum *RunSummary) (runInput, error) {
	in := runInput{userID: userID, now: s.now(), log: log}

	resume, err := s.store.ActiveResume(ctx, userID)
	if err != nil {
		return in, fmt.Errorf("%w: user %s: %w", ErrNoActiveResume, userID, err)
	}
	in.resumeSkills = resume.Skills

	pref, err := s.store.GetPreferences(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// no record means no constraint
	case err != nil:
		return in, fmt.Errorf("%w: user %s: %w", ErrPreferencesUnavailable, userID, err)
	default:
		in.pref = pref
	}

	in.resumeEmb = resume.Embedding
	if resume.Embedding.Empty() || resume.Embedding.ModelVersion != s.embedder.Version() {
		emb, err := s.embedder.Embed(ctx, s.resumeText(resume))
		switch {
		case err != nil && ctx.Err() != nil:
			return in, ctx.Err()
		case err != nil:
			log.Warn("resume embedding failed, using neutral semantic score", zap.Error(err))
			sum.EmbeddingFallbacks++
			in.resumeEmb = nil
		default:
			in.resumeEmb = emb
			if emb != nil {
				if err := s.store.UpdateResumeEmbedding(ctx, resume.ID, emb); err != nil {
					log.Warn("persist resume embedding failed", zap.Error(err))
				}
			}
		}
	}

	events, err := s.store.ListInteractions(ctx, userID)
	if err != nil {
		return in, fmt.Errorf("list interactions: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(events))
	seen := make(map[uuid.UUID]bool, len(events))
	for _, ev := range events {
		if !seen[ev.JobID] {
			seen[ev.JobID] = true
			ids = append(ids, ev.JobID)
		}
	}
	referenced, err := s.store.GetJobs(ctx, ids)
	if err != nil {
		return in, fmt.Errorf("get interacted jobs: %w", err)
	}
	in.history = feedback.NewHistory(events, referenced)
	return in, nil
}

// settledDismissal is true when the job's latest signal is a dismissal or
// dislike older than the dismissal window.
func (s *Service) settledDismissal(in runInput, jobID uuid.UUID) bool {
	if s.opts.DismissalWindow <= 0 {
		return false
	}
	at, ok := in.history.LatestNegative(jobID)
	return ok && in.now.Sub(at) > s.opts.DismissalWindow
}

// scoreJob scores one job. It never returns an error: every failure maps to
// an outcome the caller counts.
func (s *Service) scoreJob(ctx context.Context, in runInput, job *model.JobPosting) (res jobResult) {
	log := in.log.With(zap.String("job_id", job.ID.String()))
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while scoring job", zap.Any("panic", r))
			res = jobResult{outcome: outcomeSkipped}
		}
	}()

	if ctx.Err() != nil {
		return jobResult{outcome: outcomeCancelled}
	}

	// Jobs without a vector are embedded on the fly. Without a resume vector
	// the semantic component is neutral anyway.
	if job.Embedding.Empty() && !in.resumeEmb.Empty() {
		emb, err := s.embedder.Embed(ctx, s.jobText(job))
		switch {
		case err != nil && ctx.Err() != nil:
			return jobResult{outcome: outcomeCancelled}
		case err != nil:
			log.Warn("job embedding failed, using neutral semantic score", zap.Error(err))
			res.fallback = true
		case emb != nil:
			job.Embedding = emb
			res.embedded = emb
		}
	}

	scored, err := s.scorer.Score(scoring.Input{
		ResumeEmbedding: in.resumeEmb,
		ResumeSkills:    in.resumeSkills,
		Job:             job,
		Preference:      in.pref,
	})
	switch {
	case errors.Is(err, scoring.ErrIncompatibleEmbeddingVersion):
		log.Warn("job needs re-embedding", zap.Error(err))
		res.outcome = outcomeNeedsReembed
		return res
	case err != nil:
		log.Warn("skipping job", zap.Error(err))
		res.outcome = outcomeSkipped
		return res
	}

	adjusted, adj := s.adjuster.Adjust(scored.Score, job, in.history)
	reasons := scored.Reasons
	reasons.Feedback = adj

	res.outcome = outcomeScored
	res.rec = &model.MatchRecord{
		UserID:     in.userID,
		JobID:      job.ID,
		Score:      scoring.Round4(adjusted),
		Reasons:    reasons,
		CreatedAt:  in.now,
		PostedDate: job.PostedDate,
	}
	return res
}

func (s *Service) resumeText(r *model.ResumeProfile) string {
	if r.NormalizedText != "" {
		return r.NormalizedText
	}
	return s.norm.Normalize(r.RawText).Text
}

func (s *Service) jobText(j *model.JobPosting) string {
	return s.norm.Normalize(j.Title + "\n" + j.Description).Text
}
