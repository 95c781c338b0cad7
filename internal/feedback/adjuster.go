// Package feedback re-weights raw scores from a user's interaction history.
//
// Adjustments are computed at ranking time from the append-only event log
// and are never written back to it.
package feedback

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"jobmate/matching-service/internal/model"
)

// Adjuster applies the feedback policy. The zero value is not useful; use
// NewAdjuster or fill every field.
type Adjuster struct {
	// Boost multiplies the score of jobs similar to a positively rated one.
	Boost float64
	// DismissFactor multiplies the score of a job the user dismissed or
	// disliked.
	DismissFactor float64
	// MinSharedSkills is how many required skills two jobs must share to be
	// considered similar when their companies differ.
	MinSharedSkills int
}

// NewAdjuster returns an Adjuster with the given boost and dismiss factor and
// a similarity threshold of two shared skills.
func NewAdjuster(boost, dismissFactor float64) Adjuster {
	return Adjuster{Boost: boost, DismissFactor: dismissFactor, MinSharedSkills: 2}
}

// positive is one liked/saved/applied job, flattened for similarity checks.
type positive struct {
	jobID   uuid.UUID
	kind    model.InteractionType
	company string
	skills  map[string]struct{}
}

// History is a read-only view over one user's events.
type History struct {
	// latest non-view signal per job
	latest    map[uuid.UUID]model.InteractionEvent
	positives []positive
}

// NewHistory indexes events. jobs supplies the postings referenced by the
// events (active or not); events on jobs missing from the map still count for
// same-job signals but cannot drive similarity boosts.
func NewHistory(events []model.InteractionEvent, jobs map[uuid.UUID]*model.JobPosting) *History {
	sorted := make([]model.InteractionEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	h := &History{latest: make(map[uuid.UUID]model.InteractionEvent)}
	latestIdx := make(map[uuid.UUID]int)
	for i, ev := range sorted {
		if ev.Type != model.InteractionViewed {
			h.latest[ev.JobID] = ev
			latestIdx[ev.JobID] = i
		}
	}

	// A job counts as positive only while its latest signal is positive;
	// walking the sorted log keeps the order stable.
	for i, ev := range sorted {
		if idx, ok := latestIdx[ev.JobID]; !ok || idx != i || !ev.Type.IsPositive() {
			continue
		}
		job, ok := jobs[ev.JobID]
		if !ok || job == nil {
			continue
		}
		h.positives = append(h.positives, positive{
			jobID:   ev.JobID,
			kind:    ev.Type,
			company: normalizeCompany(job.Company),
			skills:  skillSet(job.RequiredSkills),
		})
	}
	return h
}

// Empty reports whether the history carries any signal.
func (h *History) Empty() bool {
	return h == nil || len(h.latest) == 0
}

// LatestNegative returns when jobID was last dismissed or disliked, provided
// that is still the most recent signal on the job.
func (h *History) LatestNegative(jobID uuid.UUID) (time.Time, bool) {
	if h == nil {
		return time.Time{}, false
	}
	ev, ok := h.latest[jobID]
	if !ok || !ev.Type.IsNegative() {
		return time.Time{}, false
	}
	return ev.CreatedAt, true
}

// Adjust returns the adjusted score for job and the adjustment applied, if
// any. The result stays in [0, 1]. A dismissal or dislike that is the latest
// signal on the same job overrides everything else. Otherwise a single boost
// is applied when any positively rated job is similar to this one. Calling
// Adjust repeatedly with the same inputs yields the same output.
func (a Adjuster) Adjust(raw float64, job *model.JobPosting, h *History) (float64, *model.FeedbackAdjustment) {
	raw = clamp01(raw)
	if job == nil || h.Empty() {
		return raw, nil
	}

	if _, ok := h.LatestNegative(job.ID); ok {
		ev := h.latest[job.ID]
		return clamp01(raw * a.DismissFactor), &model.FeedbackAdjustment{
			Kind:   "penalty",
			Factor: a.DismissFactor,
			Detail: fmt.Sprintf("you %s this job", ev.Type),
		}
	}

	if reason, ok := a.similarPositive(job, h); ok {
		return clamp01(raw * a.Boost), &model.FeedbackAdjustment{
			Kind:   "boost",
			Factor: a.Boost,
			Detail: reason,
		}
	}
	return raw, nil
}

func (a Adjuster) similarPositive(job *model.JobPosting, h *History) (string, bool) {
	company := normalizeCompany(job.Company)
	skills := skillSet(job.RequiredSkills)

	for _, p := range h.positives {
		if p.jobID == job.ID {
			return fmt.Sprintf("you %s this job", p.kind), true
		}
		if company != "" && p.company == company {
			return fmt.Sprintf("you %s a job at %s", p.kind, job.Company), true
		}
		if shared := countShared(skills, p.skills); a.MinSharedSkills > 0 && shared >= a.MinSharedSkills {
			return fmt.Sprintf("you %s a job sharing %d required skills", p.kind, shared), true
		}
	}
	return "", false
}

func countShared(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func skillSet(skills []string) map[string]struct{} {
	set := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		if k := strings.ToLower(strings.TrimSpace(s)); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

func normalizeCompany(c string) string {
	return strings.ToLower(strings.Join(strings.Fields(c), " "))
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
