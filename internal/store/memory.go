package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobmate/matching-service/internal/model"
)

type jobKey struct{ externalID, source string }

type pairKey struct{ userID, jobID uuid.UUID }

// Memory is an in-process Store. It backs the tests and single-node runs
// without Postgres. Records are copied on the way in and out.
type Memory struct {
	mu       sync.RWMutex
	resumes  map[uuid.UUID]*model.ResumeProfile
	prefs    map[uuid.UUID]*model.UserPreference
	jobs     map[uuid.UUID]*model.JobPosting
	jobIndex map[jobKey]uuid.UUID
	matches  map[pairKey]*model.MatchRecord
	events   []model.InteractionEvent
	now      func() time.Time
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		resumes:  make(map[uuid.UUID]*model.ResumeProfile),
		prefs:    make(map[uuid.UUID]*model.UserPreference),
		jobs:     make(map[uuid.UUID]*model.JobPosting),
		jobIndex: make(map[jobKey]uuid.UUID),
		matches:  make(map[pairKey]*model.MatchRecord),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ Store = (*Memory)(nil)

// ── Resumes ───────────────────────────────────────────────────────────────

func (m *Memory) ActiveResume(_ context.Context, userID uuid.UUID) (*model.ResumeProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.resumes {
		if r.UserID == userID && r.Active {
			return cloneResume(r), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetResume(_ context.Context, userID, resumeID uuid.UUID) (*model.ResumeProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.resumes[resumeID]
	if !ok || r.UserID != userID {
		return nil, ErrNotFound
	}
	return cloneResume(r), nil
}

func (m *Memory) SaveResume(_ context.Context, r *model.ResumeProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := m.now()
	stored := cloneResume(r)
	if prev, ok := m.resumes[r.ID]; ok {
		if prev.UserID != r.UserID {
			return ErrNotFound
		}
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	if stored.Active {
		m.deactivateOthers(r.UserID, r.ID)
	}
	m.resumes[r.ID] = stored
	r.CreatedAt, r.UpdatedAt = stored.CreatedAt, stored.UpdatedAt
	return nil
}

func (m *Memory) SetActiveResume(_ context.Context, userID, resumeID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[resumeID]
	if !ok || r.UserID != userID {
		return ErrNotFound
	}
	m.deactivateOthers(userID, resumeID)
	r.Active = true
	r.UpdatedAt = m.now()
	return nil
}

func (m *Memory) deactivateOthers(userID, keep uuid.UUID) {
	for id, r := range m.resumes {
		if r.UserID == userID && id != keep {
			r.Active = false
		}
	}
}

func (m *Memory) UpdateResumeEmbedding(_ context.Context, resumeID uuid.UUID, emb *model.Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[resumeID]
	if !ok {
		return ErrNotFound
	}
	r.Embedding = cloneEmbedding(emb)
	r.UpdatedAt = m.now()
	return nil
}

func (m *Memory) UsersWithActiveResume(_ context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []uuid.UUID
	for _, r := range m.resumes {
		if r.Active {
			out = append(out, r.UserID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// ── Preferences ───────────────────────────────────────────────────────────

func (m *Memory) GetPreferences(_ context.Context, userID uuid.UUID) (*model.UserPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prefs[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePreference(p), nil
}

func (m *Memory) UpsertPreferences(_ context.Context, p *model.UserPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := clonePreference(p)
	stored.UpdatedAt = m.now()
	m.prefs[p.UserID] = stored
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

// ── Jobs ──────────────────────────────────────────────────────────────────

func (m *Memory) UpsertJob(_ context.Context, j *model.JobPosting) (*model.JobPosting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	key := jobKey{j.ExternalJobID, j.Source}
	stored := cloneJob(j)

	if id, ok := m.jobIndex[key]; ok {
		prev := m.jobs[id]
		stored.ID = id
		stored.CreatedAt = prev.CreatedAt
		if stored.Embedding.Empty() && prev.Description == stored.Description {
			stored.Embedding = cloneEmbedding(prev.Embedding)
		}
	} else {
		if stored.ID == uuid.Nil {
			stored.ID = uuid.New()
		}
		stored.CreatedAt = now
		m.jobIndex[key] = stored.ID
	}
	stored.UpdatedAt = now
	m.jobs[stored.ID] = stored
	return cloneJob(stored), nil
}

func (m *Memory) GetJob(_ context.Context, jobID uuid.UUID) (*model.JobPosting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(j), nil
}

func (m *Memory) GetJobs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.JobPosting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[uuid.UUID]*model.JobPosting, len(ids))
	for _, id := range ids {
		if j, ok := m.jobs[id]; ok {
			out[id] = cloneJob(j)
		}
	}
	return out, nil
}

func (m *Memory) ListActiveJobs(_ context.Context, now time.Time) ([]*model.JobPosting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.JobPosting, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.OpenAt(now) {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID.String() < out[k].ID.String() })
	return out, nil
}

func (m *Memory) UpdateJobEmbedding(_ context.Context, jobID uuid.UUID, emb *model.Embedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	j.Embedding = cloneEmbedding(emb)
	return nil
}

func (m *Memory) ExpireJobs(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.IsActive && j.ExpiresAt != nil && !j.ExpiresAt.After(now) {
			j.IsActive = false
			j.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// ── Matches ───────────────────────────────────────────────────────────────

func (m *Memory) UpsertMatch(_ context.Context, rec *model.MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{rec.UserID, rec.JobID}
	stored := *rec
	stored.Reasons = cloneReasons(rec.Reasons)
	if prev, ok := m.matches[key]; ok {
		stored.ID = prev.ID
	} else if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.now()
	}
	m.matches[key] = &stored
	rec.ID, rec.CreatedAt = stored.ID, stored.CreatedAt
	return nil
}

func (m *Memory) ListMatches(_ context.Context, userID uuid.UUID, now time.Time, offset, limit int) ([]model.MatchedJob, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var all []model.MatchedJob
	for key, rec := range m.matches {
		if key.userID != userID {
			continue
		}
		job, ok := m.jobs[key.jobID]
		if !ok || !job.OpenAt(now) {
			continue
		}
		mj := model.MatchedJob{MatchRecord: *rec, Job: cloneJob(job)}
		mj.Reasons = cloneReasons(rec.Reasons)
		mj.PostedDate = mj.Job.PostedDate
		all = append(all, mj)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return model.MatchLess(&all[i].MatchRecord, &all[j].MatchRecord)
	})

	total := len(all)
	if offset >= total {
		return []model.MatchedJob{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (m *Memory) RetireMatches(_ context.Context, userID uuid.UUID, jobIDs []uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, id := range jobIDs {
		key := pairKey{userID, id}
		if _, ok := m.matches[key]; ok {
			delete(m.matches, key)
			n++
		}
	}
	return n, nil
}

// ── Interactions ──────────────────────────────────────────────────────────

func (m *Memory) AppendInteraction(_ context.Context, ev *model.InteractionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = m.now()
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *Memory) ListInteractions(_ context.Context, userID uuid.UUID) ([]model.InteractionEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.InteractionEvent{}
	for _, ev := range m.events {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ── copies ────────────────────────────────────────────────────────────────

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func cloneEmbedding(e *model.Embedding) *model.Embedding {
	if e == nil {
		return nil
	}
	return &model.Embedding{Values: append([]float32(nil), e.Values...), ModelVersion: e.ModelVersion}
}

func cloneResume(r *model.ResumeProfile) *model.ResumeProfile {
	c := *r
	c.Skills = cloneStrings(r.Skills)
	c.Embedding = cloneEmbedding(r.Embedding)
	return &c
}

func cloneJob(j *model.JobPosting) *model.JobPosting {
	c := *j
	c.RequiredSkills = cloneStrings(j.RequiredSkills)
	c.Embedding = cloneEmbedding(j.Embedding)
	return &c
}

func clonePreference(p *model.UserPreference) *model.UserPreference {
	c := *p
	c.PreferredTitles = cloneStrings(p.PreferredTitles)
	c.PreferredLocations = cloneStrings(p.PreferredLocations)
	c.PreferredIndustries = cloneStrings(p.PreferredIndustries)
	return &c
}

func cloneReasons(r model.MatchReasons) model.MatchReasons {
	c := r
	c.Components = append([]model.ScoreComponent(nil), r.Components...)
	c.MatchedSkills = cloneStrings(r.MatchedSkills)
	c.MissingSkills = cloneStrings(r.MissingSkills)
	c.Summary = cloneStrings(r.Summary)
	if r.Feedback != nil {
		f := *r.Feedback
		c.Feedback = &f
	}
	return c
}
