package feedback_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"jobmate/matching-service/internal/feedback"
	"jobmate/matching-service/internal/model"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

const boost = 1.1

func event(job uuid.UUID, typ model.InteractionType, minutes int) model.InteractionEvent {
	return model.InteractionEvent{
		ID:        uuid.New(),
		JobID:     job,
		Type:      typ,
		CreatedAt: t0.Add(time.Duration(minutes) * time.Minute),
	}
}

// scaled multiplies at run time, as Adjust does, so float rounding matches.
func scaled(raw float64) float64 {
	b := boost
	return raw * b
}

func posting(company string, skills ...string) *model.JobPosting {
	return &model.JobPosting{ID: uuid.New(), Company: company, RequiredSkills: skills, IsActive: true}
}

func index(jobs ...*model.JobPosting) map[uuid.UUID]*model.JobPosting {
	m := make(map[uuid.UUID]*model.JobPosting, len(jobs))
	for _, j := range jobs {
		m[j.ID] = j
	}
	return m
}

// ── No history ─────────────────────────────────────────────────────────────

func TestAdjust_NoHistoryUnchanged(t *testing.T) {
	a := feedback.NewAdjuster(boost, 0.1)
	job := posting("Acme", "go")
	for _, h := range []*feedback.History{nil, feedback.NewHistory(nil, nil)} {
		got, adj := a.Adjust(0.73, job, h)
		if got != 0.73 || adj != nil {
			t.Errorf("Adjust = (%v, %+v), want (0.73, nil)", got, adj)
		}
	}
}

func TestAdjust_ViewsAreNotSignals(t *testing.T) {
	a := feedback.NewAdjuster(boost, 0.1)
	job := posting("Acme", "go")
	h := feedback.NewHistory([]model.InteractionEvent{event(job.ID, model.InteractionViewed, 0)}, index(job))
	if got, adj := a.Adjust(0.5, job, h); got != 0.5 || adj != nil {
		t.Errorf("Adjust = (%v, %+v), want unchanged", got, adj)
	}
}

// ── Dismissal ──────────────────────────────────────────────────────────────

func TestAdjust_DismissalBuriesSameJob(t *testing.T) {
	a := feedback.NewAdjuster(boost, 0.1)
	job := posting("Acme", "go", "sql")

	for _, typ := range []model.InteractionType{model.InteractionDismissed, model.InteractionDisliked} {
		h := feedback.NewHistory([]model.InteractionEvent{event(job.ID, typ, 0)}, index(job))
		got, adj := a.Adjust(0.82, job, h)
		if got >= 0.82 || got > 0.1 {
			t.Errorf("%s: adjusted = %v, want <= 0.1", typ, got)
		}
		if adj == nil || adj.Kind != "penalty" {
			t.Errorf("%s: adjustment = %+v, want penalty", typ, adj)
		}
	}
}

func TestAdjust_DismissalOverridesBoost(t *testing.T) {
	a := feedback.NewAdjuster(boost, 0.1)
	liked := posting("Acme", "go", "sql")
	job := posting("Acme", "go", "sql")
	h := feedback.NewHistory([]model.InteractionEvent{
		event(liked.ID, model.InteractionLiked, 0),
		event(job.ID, model.InteractionDismissed, 5),
	}, index(liked, job))

	got, adj := a.Adjust(0.9, job, h)
	if adj == nil || adj.Kind != "penalty" || got > 0.1 {
		t.Errorf("Adjust = (%v, %+v), want penalty", got, adj)
	}
}

func TestAdjust_LaterPositiveLiftsDismissal(t *testing.T) {
	a := feedback.NewAdjuster(boost, 0.1)
	job := posting("Acme", "go")
	h := feedback.NewHistory([]model.InteractionEvent{
		event(job.ID, model.InteractionDismissed, 0),
		event(job.ID, model.InteractionSaved, 10),
	}, index(job))

	got, adj := a.Adjust(0.5, job, h)
	if adj == nil || adj.Kind != "boost" {
		t.Fatalf("adjustment = %+v, want boost", adj)
	}
	if got != scaled(0.5) {
		t.Errorf("adjusted = %v, want %v", got, scaled(0.5))
	}
	if _, ok := h.LatestNegative(job.ID); ok {
		t.Error("LatestNegative should be false once a positive signal follows")
	}
}

// ── Similarity boost ───────────────────────────────────────────────────────

func TestAdjust_BoostSimilarJobs(t *testing.T) {
	a := feedback.NewAdjuster(boost, 0.1)
	applied := posting("Acme Corp", "go", "kubernetes", "postgresql")

	cases := []struct {
		name  string
		job   *model.JobPosting
		boost bool
	}{
		{"same company, case-insensitive", posting("  acme   CORP", "java"), true},
		{"two shared skills", posting("Globex", "go", "postgresql", "react"), true},
		{"one shared skill", posting("Globex", "go", "react"), false},
		{"unrelated", posting("Initech", "excel"), false},
		{"empty company never matches", posting("", "java"), false},
	}
	h := feedback.NewHistory([]model.InteractionEvent{event(applied.ID, model.InteractionApplied, 0)}, index(applied))
	for _, c := range cases {
		got, adj := a.Adjust(0.6, c.job, h)
		if c.boost && (adj == nil || got != scaled(0.6)) {
			t.Errorf("%s: Adjust = (%v, %+v), want boost", c.name, got, adj)
		}
		if !c.boost && (adj != nil || got != 0.6) {
			t.Errorf("%s: Adjust = (%v, %+v), want unchanged", c.name, got, adj)
		}
	}
}

func TestAdjust_BoostCappedAndNotCompounded(t *testing.T) {
	a := feedback.NewAdjuster(boost, 0.1)
	job := posting("Acme", "go", "sql")
	var events []model.InteractionEvent
	var jobs []*model.JobPosting
	for i := 0; i < 5; i++ {
		p := posting("Acme", "go", "sql")
		jobs = append(jobs, p)
		events = append(events, event(p.ID, model.InteractionLiked, i))
	}
	h := feedback.NewHistory(events, index(jobs...))

	if got, _ := a.Adjust(0.5, job, h); got != scaled(0.5) {
		t.Errorf("five likes: adjusted = %v, want single boost %v", got, scaled(0.5))
	}
	if got, _ := a.Adjust(0.97, job, h); got != 1.0 {
		t.Errorf("adjusted = %v, want capped at 1.0", got)
	}
}

func TestAdjust_RetractedLikeDoesNotBoost(t *testing.T) {
	a := feedback.NewAdjuster(boost, 0.1)
	liked := posting("Acme", "go", "sql")
	job := posting("Acme", "go", "sql")
	h := feedback.NewHistory([]model.InteractionEvent{
		event(liked.ID, model.InteractionLiked, 0),
		event(liked.ID, model.InteractionDisliked, 1),
	}, index(liked, job))

	if got, adj := a.Adjust(0.5, job, h); got != 0.5 || adj != nil {
		t.Errorf("Adjust = (%v, %+v), want unchanged", got, adj)
	}
}

// ── Idempotence ────────────────────────────────────────────────────────────

func TestAdjust_Idempotent(t *testing.T) {
	a := feedback.NewAdjuster(boost, 0.1)
	liked := posting("Acme", "go", "sql")
	dismissed := posting("Globex", "php")
	other := posting("Acme", "rust")
	h := feedback.NewHistory([]model.InteractionEvent{
		event(liked.ID, model.InteractionLiked, 0),
		event(dismissed.ID, model.InteractionDismissed, 1),
	}, index(liked, dismissed, other))

	for _, job := range []*model.JobPosting{liked, dismissed, other} {
		first, adj1 := a.Adjust(0.64, job, h)
		second, adj2 := a.Adjust(0.64, job, h)
		if first != second {
			t.Errorf("job %s: %v then %v", job.Company, first, second)
		}
		if (adj1 == nil) != (adj2 == nil) || (adj1 != nil && *adj1 != *adj2) {
			t.Errorf("job %s: adjustments differ: %+v vs %+v", job.Company, adj1, adj2)
		}
	}
}

func TestHistory_LatestNegative(t *testing.T) {
	job := posting("Acme")
	h := feedback.NewHistory([]model.InteractionEvent{
		event(job.ID, model.InteractionDismissed, 30),
		event(job.ID, model.InteractionViewed, 60),
	}, nil)
	at, ok := h.LatestNegative(job.ID)
	if !ok || !at.Equal(t0.Add(30*time.Minute)) {
		t.Errorf("LatestNegative = (%v, %v)", at, ok)
	}
	if _, ok := h.LatestNegative(uuid.New()); ok {
		t.Error("unknown job should have no negative signal")
	}
}
