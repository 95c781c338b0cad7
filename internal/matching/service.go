// Package matching ranks active jobs for a user and serves the last computed
// ranking. It is transport-agnostic: the HTTP API, the scheduler and the CLI
// all drive the same Service.
package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"jobmate/matching-service/internal/bus"
	"jobmate/matching-service/internal/embedding"
	"jobmate/matching-service/internal/feedback"
	"jobmate/matching-service/internal/logger"
	"jobmate/matching-service/internal/model"
	"jobmate/matching-service/internal/scoring"
	"jobmate/matching-service/internal/store"
	"jobmate/matching-service/internal/textnorm"
)

// ─── Errors ──────────────────────────────────────────────────────────────────

var (
	// ErrNoActiveResume aborts a run when the user has no resume to match.
	ErrNoActiveResume = errors.New("no active resume")
	// ErrPreferencesUnavailable aborts a run when the preference record
	// cannot be read. A user without preferences is not an error.
	ErrPreferencesUnavailable = errors.New("preferences unavailable")
)

// ValidationError is returned for caller input rejected before any write.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// ─── Service ─────────────────────────────────────────────────────────────────

// Read-side pagination bounds.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Options tunes a Service.
type Options struct {
	// DismissalWindow excludes jobs whose latest signal is a dismissal older
	// than the window. Zero keeps dismissed jobs in every ranking.
	DismissalWindow time.Duration
	// ScoreConcurrency bounds parallel job scoring within one run.
	ScoreConcurrency int
	// RunConcurrency bounds how many users are recomputed at once.
	RunConcurrency int
	// LockTTL is the lifetime of the cross-replica run lock.
	LockTTL time.Duration
}

// DefaultOptions returns the starting configuration.
func DefaultOptions() Options {
	return Options{
		DismissalWindow:  30 * 24 * time.Hour,
		ScoreConcurrency: 8,
		RunConcurrency:   4,
		LockTTL:          10 * time.Minute,
	}
}

// Service encapsulates matching business logic.
type Service struct {
	store    store.Store
	norm     *textnorm.Normalizer
	embedder *embedding.Service
	scorer   *scoring.Scorer
	adjuster feedback.Adjuster
	bus      *bus.Bus
	opts     Options
	log      *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time

	// background runs
	root     context.Context
	stop     context.CancelFunc
	sem      *semaphore.Weighted
	mu       sync.Mutex
	inflight map[uuid.UUID]*Run
	wg       sync.WaitGroup
}

// Deps are the collaborators of a Service. Bus may be nil.
type Deps struct {
	Store      store.Store
	Normalizer *textnorm.Normalizer
	Embedder   *embedding.Service
	Scorer     *scoring.Scorer
	Adjuster   feedback.Adjuster
	Bus        *bus.Bus
	Logger     *zap.Logger
}

// NewService returns a configured Service. Close stops its background runs.
func NewService(d Deps, opts Options) *Service {
	if opts.ScoreConcurrency <= 0 {
		opts.ScoreConcurrency = 1
	}
	if opts.RunConcurrency <= 0 {
		opts.RunConcurrency = 1
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultOptions().LockTTL
	}
	if d.Normalizer == nil {
		d.Normalizer = textnorm.New()
	}
	root, stop := context.WithCancel(context.Background())
	return &Service{
		store:    d.Store,
		norm:     d.Normalizer,
		embedder: d.Embedder,
		scorer:   d.Scorer,
		adjuster: d.Adjuster,
		bus:      d.Bus,
		opts:     opts,
		log:      logger.Component(d.Logger, "matching"),
		tracer:   otel.Tracer("jobmate/matching-service/matching"),
		now:      func() time.Time { return time.Now().UTC() },
		root:     root,
		stop:     stop,
		sem:      semaphore.NewWeighted(int64(opts.RunConcurrency)),
		inflight: make(map[uuid.UUID]*Run),
	}
}

// ─── Read side ───────────────────────────────────────────────────────────────

// Page is one page of the last computed ranking.
type Page struct {
	Items []model.MatchedJob `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

// GetCurrentMatches returns the user's stored ranking without recomputing
// it. page starts at 1; limit defaults to 20 and is clamped to [1, 100].
func (s *Service) GetCurrentMatches(ctx context.Context, userID uuid.UUID, page, limit int) (Page, error) {
	page, limit = clampPage(page, limit)
	items, total, err := s.store.ListMatches(ctx, userID, s.now(), (page-1)*limit, limit)
	if err != nil {
		return Page{}, fmt.Errorf("list matches: %w", err)
	}
	if items == nil {
		items = []model.MatchedJob{}
	}
	return Page{Items: items, Total: total, Page: page, Limit: limit}, nil
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit == 0:
		limit = DefaultPageLimit
	case limit < 1:
		limit = 1
	case limit > MaxPageLimit:
		limit = MaxPageLimit
	}
	return page, limit
}

// ─── Interactions ────────────────────────────────────────────────────────────

// RecordInteraction appends one event to the user's log. The type is checked
// before anything is read or written.
func (s *Service) RecordInteraction(ctx context.Context, userID, jobID uuid.UUID, kind string) (*model.InteractionEvent, error) {
	t, err := model.ParseInteractionType(kind)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetJob(ctx, jobID); err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	ev := &model.InteractionEvent{UserID: userID, JobID: jobID, Type: t, CreatedAt: s.now()}
	if err := s.store.AppendInteraction(ctx, ev); err != nil {
		return nil, fmt.Errorf("append interaction: %w", err)
	}
	s.log.Debug("interaction recorded",
		zap.String("user_id", userID.String()),
		zap.String("job_id", jobID.String()),
		zap.String("type", string(t)),
	)
	return ev, nil
}

// SavedJobs lists the active jobs the user saved, most recently saved first.
func (s *Service) SavedJobs(ctx context.Context, userID uuid.UUID) ([]*model.JobPosting, error) {
	jobs, err := s.jobsWith(ctx, userID, model.InteractionSaved)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := jobs[:0]
	for _, j := range jobs {
		if j.OpenAt(now) {
			out = append(out, j)
		}
	}
	return out, nil
}

// AppliedJobs lists every job the user applied to, active or not, most
// recent application first.
func (s *Service) AppliedJobs(ctx context.Context, userID uuid.UUID) ([]*model.JobPosting, error) {
	return s.jobsWith(ctx, userID, model.InteractionApplied)
}

func (s *Service) jobsWith(ctx context.Context, userID uuid.UUID, t model.InteractionType) ([]*model.JobPosting, error) {
	events, err := s.store.ListInteractions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	last := make(map[uuid.UUID]time.Time)
	for _, ev := range events {
		if ev.Type == t && ev.CreatedAt.After(last[ev.JobID]) {
			last[ev.JobID] = ev.CreatedAt
		}
	}
	ids := make([]uuid.UUID, 0, len(last))
	for id := range last {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if !last[ids[i]].Equal(last[ids[j]]) {
			return last[ids[i]].After(last[ids[j]])
		}
		return ids[i].String() < ids[j].String()
	})

	byID, err := s.store.GetJobs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get jobs: %w", err)
	}
	out := make([]*model.JobPosting, 0, len(ids))
	for _, id := range ids {
		if j, ok := byID[id]; ok {
			out = append(out, j)
		}
	}
	return out, nil
}
