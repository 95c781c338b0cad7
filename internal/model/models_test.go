package model_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"jobmate/matching-service/internal/model"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// Tied scores are ordered by posting date, newest first.
func TestSortMatches_TieBrokenByPostingDate(t *testing.T) {
	older := model.MatchRecord{JobID: uuid.New(), Score: 0.91, PostedDate: date(2026, 3, 1)}
	newer := model.MatchRecord{JobID: uuid.New(), Score: 0.91, PostedDate: date(2026, 3, 9)}
	low := model.MatchRecord{JobID: uuid.New(), Score: 0.75, PostedDate: date(2026, 4, 1)}

	recs := []model.MatchRecord{low, older, newer}
	model.SortMatches(recs)

	if recs[0].JobID != newer.JobID || recs[1].JobID != older.JobID || recs[2].JobID != low.JobID {
		t.Fatalf("unexpected order: %v, %v, %v", recs[0].Score, recs[1].Score, recs[2].Score)
	}
}

func TestSortMatches_FallsBackToJobID(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	same := date(2026, 1, 1)

	recs := []model.MatchRecord{
		{JobID: b, Score: 0.5, PostedDate: same},
		{JobID: a, Score: 0.5, PostedDate: same},
	}
	model.SortMatches(recs)
	if recs[0].JobID != a {
		t.Fatalf("expected job %s first, got %s", a, recs[0].JobID)
	}
}

func TestSortMatches_UndatedAfterDated(t *testing.T) {
	undated := model.MatchRecord{JobID: uuid.New(), Score: 0.6}
	dated := model.MatchRecord{JobID: uuid.New(), Score: 0.6, PostedDate: date(2025, 12, 1)}

	recs := []model.MatchRecord{undated, dated}
	model.SortMatches(recs)
	if recs[0].JobID != dated.JobID {
		t.Fatal("dated record should sort before undated one on a score tie")
	}
}

func TestJobPosting_OpenAt(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		job  *model.JobPosting
		want bool
	}{
		{"nil", nil, false},
		{"inactive", &model.JobPosting{IsActive: false}, false},
		{"no expiry", &model.JobPosting{IsActive: true}, true},
		{"expires later", &model.JobPosting{IsActive: true, ExpiresAt: date(2026, 7, 1)}, true},
		{"expired", &model.JobPosting{IsActive: true, ExpiresAt: date(2026, 5, 1)}, false},
	}
	for _, c := range cases {
		if got := c.job.OpenAt(now); got != c.want {
			t.Errorf("%s: OpenAt = %v, want %v", c.name, got, c.want)
		}
	}
}
