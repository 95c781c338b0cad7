package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"jobmate/matching-service/internal/model"
	"jobmate/matching-service/internal/store"
)

var ctx = context.Background()

// ── Jobs ───────────────────────────────────────────────────────────────────

func TestMemory_UpsertJobKeepsIdentity(t *testing.T) {
	m := store.NewMemory()
	first, err := m.UpsertJob(ctx, &model.JobPosting{
		ExternalJobID: "adz-1", Source: "adzuna", Title: "Go Dev", Description: "go",
		Embedding: &model.Embedding{Values: []float32{1}, ModelVersion: "v1"}, IsActive: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	// same description, no vector supplied: vector kept
	second, _ := m.UpsertJob(ctx, &model.JobPosting{
		ExternalJobID: "adz-1", Source: "adzuna", Title: "Senior Go Dev", Description: "go", IsActive: true,
	})
	if second.ID != first.ID {
		t.Fatalf("identity changed: %s -> %s", first.ID, second.ID)
	}
	if second.Title != "Senior Go Dev" || second.Embedding.Empty() {
		t.Errorf("unexpected stored job %+v", second)
	}

	// new description: vector cleared
	third, _ := m.UpsertJob(ctx, &model.JobPosting{
		ExternalJobID: "adz-1", Source: "adzuna", Description: "go and rust", IsActive: true,
	})
	if third.ID != first.ID || !third.Embedding.Empty() {
		t.Errorf("expected same id and cleared vector, got %s / %+v", third.ID, third.Embedding)
	}

	// same external id, other source: new posting
	other, _ := m.UpsertJob(ctx, &model.JobPosting{ExternalJobID: "adz-1", Source: "indeed", IsActive: true})
	if other.ID == first.ID {
		t.Error("different source must be a different posting")
	}
}

func TestMemory_ExpireJobs(t *testing.T) {
	m := store.NewMemory()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	_, _ = m.UpsertJob(ctx, &model.JobPosting{ExternalJobID: "a", Source: "s", IsActive: true, ExpiresAt: &past})
	_, _ = m.UpsertJob(ctx, &model.JobPosting{ExternalJobID: "b", Source: "s", IsActive: true, ExpiresAt: &future})
	_, _ = m.UpsertJob(ctx, &model.JobPosting{ExternalJobID: "c", Source: "s", IsActive: true})

	n, err := m.ExpireJobs(ctx, now)
	if err != nil || n != 1 {
		t.Fatalf("ExpireJobs = (%d, %v), want (1, nil)", n, err)
	}
	active, _ := m.ListActiveJobs(ctx, now)
	if len(active) != 2 {
		t.Errorf("active jobs = %d, want 2", len(active))
	}
}

// ── Resumes ────────────────────────────────────────────────────────────────

func TestMemory_SingleActiveResume(t *testing.T) {
	m := store.NewMemory()
	user := uuid.New()
	a := &model.ResumeProfile{UserID: user, RawText: "a", Active: true}
	b := &model.ResumeProfile{UserID: user, RawText: "b", Active: true}
	_ = m.SaveResume(ctx, a)
	_ = m.SaveResume(ctx, b)

	got, err := m.ActiveResume(ctx, user)
	if err != nil || got.ID != b.ID {
		t.Fatalf("ActiveResume = %v, %v; want b", got, err)
	}

	if err := m.SetActiveResume(ctx, user, a.ID); err != nil {
		t.Fatal(err)
	}
	got, _ = m.ActiveResume(ctx, user)
	if got.ID != a.ID {
		t.Errorf("active = %s, want %s", got.ID, a.ID)
	}

	if err := m.SetActiveResume(ctx, uuid.New(), a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("foreign user: got %v, want ErrNotFound", err)
	}
	if _, err := m.ActiveResume(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("no resume: got %v, want ErrNotFound", err)
	}
}

// ── Matches ────────────────────────────────────────────────────────────────

func TestMemory_ListMatchesOrderAndPaging(t *testing.T) {
	m := store.NewMemory()
	user := uuid.New()
	d1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

	jobA, _ := m.UpsertJob(ctx, &model.JobPosting{ExternalJobID: "a", Source: "s", IsActive: true, PostedDate: &d1})
	jobB, _ := m.UpsertJob(ctx, &model.JobPosting{ExternalJobID: "b", Source: "s", IsActive: true, PostedDate: &d2})
	jobC, _ := m.UpsertJob(ctx, &model.JobPosting{ExternalJobID: "c", Source: "s", IsActive: true})
	jobD, _ := m.UpsertJob(ctx, &model.JobPosting{ExternalJobID: "d", Source: "s", IsActive: false})
	expired := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	// still flagged active; the expiry cycle has not run yet
	jobE, _ := m.UpsertJob(ctx, &model.JobPosting{ExternalJobID: "e", Source: "s", IsActive: true, ExpiresAt: &expired})
	now := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)

	for job, score := range map[*model.JobPosting]float64{jobA: 0.91, jobB: 0.91, jobC: 0.75, jobD: 0.99, jobE: 0.98} {
		if err := m.UpsertMatch(ctx, &model.MatchRecord{UserID: user, JobID: job.ID, Score: score}); err != nil {
			t.Fatal(err)
		}
	}
	// supersede, not duplicate
	_ = m.UpsertMatch(ctx, &model.MatchRecord{UserID: user, JobID: jobC.ID, Score: 0.5})

	page, total, err := m.ListMatches(ctx, user, now, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("total = %d, want 3 (inactive and expired jobs excluded)", total)
	}
	if len(page) != 2 || page[0].JobID != jobB.ID || page[1].JobID != jobA.ID {
		t.Fatalf("unexpected first page %+v", page)
	}

	page, _, _ = m.ListMatches(ctx, user, now, 2, 2)
	if len(page) != 1 || page[0].JobID != jobC.ID || page[0].Score != 0.5 {
		t.Fatalf("unexpected second page %+v", page)
	}

	page, _, _ = m.ListMatches(ctx, user, now, 10, 2)
	if len(page) != 0 {
		t.Errorf("page past the end should be empty, got %d", len(page))
	}
}

func TestMemory_RetireMatches(t *testing.T) {
	m := store.NewMemory()
	user, other := uuid.New(), uuid.New()
	keep, _ := m.UpsertJob(ctx, &model.JobPosting{ExternalJobID: "k", Source: "s", IsActive: true})
	gone, _ := m.UpsertJob(ctx, &model.JobPosting{ExternalJobID: "g", Source: "s", IsActive: true})
	for _, u := range []uuid.UUID{user, other} {
		for _, j := range []*model.JobPosting{keep, gone} {
			_ = m.UpsertMatch(ctx, &model.MatchRecord{UserID: u, JobID: j.ID, Score: 0.5})
		}
	}

	n, err := m.RetireMatches(ctx, user, []uuid.UUID{gone.ID, uuid.New()})
	if err != nil || n != 1 {
		t.Fatalf("RetireMatches = (%d, %v), want 1", n, err)
	}
	now := time.Now().UTC()
	page, total, _ := m.ListMatches(ctx, user, now, 0, 10)
	if total != 1 || page[0].JobID != keep.ID {
		t.Errorf("user records after retire = %+v", page)
	}
	if _, total, _ := m.ListMatches(ctx, other, now, 0, 10); total != 2 {
		t.Errorf("other user's records touched: total = %d", total)
	}
}

// ── Interactions ───────────────────────────────────────────────────────────

func TestMemory_InteractionsAppendOnly(t *testing.T) {
	m := store.NewMemory()
	user, job := uuid.New(), uuid.New()
	for _, typ := range []model.InteractionType{model.InteractionLiked, model.InteractionDismissed, model.InteractionLiked} {
		if err := m.AppendInteraction(ctx, &model.InteractionEvent{UserID: user, JobID: job, Type: typ}); err != nil {
			t.Fatal(err)
		}
	}
	_ = m.AppendInteraction(ctx, &model.InteractionEvent{UserID: uuid.New(), JobID: job, Type: model.InteractionSaved})

	events, _ := m.ListInteractions(ctx, user)
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[1].Type != model.InteractionDismissed {
		t.Errorf("events out of order: %+v", events)
	}
}
