package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/matching"
	"jobmate/matching-service/internal/model"
	"jobmate/matching-service/internal/store"
)

type fakeMatcher struct {
	page, limit int
	pageErr     error
	interactErr error
	dispatched  []uuid.UUID
	prefs       *model.UserPreference
	resumeRun   *matching.Run
}

func (f *fakeMatcher) GetCurrentMatches(_ context.Context, _ uuid.UUID, page, limit int) (matching.Page, error) {
	f.page, f.limit = page, limit
	return matching.Page{Items: []model.MatchedJob{}, Page: 1, Limit: 20}, f.pageErr
}

func (f *fakeMatcher) Dispatch(userID uuid.UUID) *matching.Run {
	f.dispatched = append(f.dispatched, userID)
	return nil
}

func (f *fakeMatcher) RecordInteraction(_ context.Context, userID, jobID uuid.UUID, kind string) (*model.InteractionEvent, error) {
	if f.interactErr != nil {
		return nil, f.interactErr
	}
	return &model.InteractionEvent{ID: uuid.New(), UserID: userID, JobID: jobID, Type: model.InteractionType(kind)}, nil
}

func (f *fakeMatcher) SavedJobs(context.Context, uuid.UUID) ([]*model.JobPosting, error) {
	return []*model.JobPosting{{Title: "Go developer", IsActive: true}}, nil
}

func (f *fakeMatcher) AppliedJobs(context.Context, uuid.UUID) ([]*model.JobPosting, error) {
	return []*model.JobPosting{}, nil
}

func (f *fakeMatcher) UpsertPreferences(_ context.Context, p *model.UserPreference) (*matching.Run, error) {
	if p.MinSalary != nil && *p.MinSalary < 0 {
		return nil, &matching.ValidationError{Msg: "salary bounds must not be negative"}
	}
	f.prefs = p
	return nil, nil
}

func (f *fakeMatcher) UpsertResume(_ context.Context, userID uuid.UUID, in matching.ResumeInput) (*model.ResumeProfile, *matching.Run, error) {
	return &model.ResumeProfile{ID: uuid.New(), UserID: userID, Skills: in.Skills, Active: in.Activate,
		Embedding: &model.Embedding{Values: []float32{1}, ModelVersion: "v1"}}, f.resumeRun, nil
}

func (f *fakeMatcher) SetActiveResume(_ context.Context, _, resumeID uuid.UUID) (*matching.Run, error) {
	return nil, fmt.Errorf("resume %s: %w", resumeID, store.ErrNotFound)
}

func serve(t *testing.T, f *fakeMatcher, method, target, body string, user string, checks ...HealthCheck) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(f, zap.NewNop(), checks...).RegisterRoutes(mux)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if user != "" {
		req.Header.Set("x-user-id", user)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// ── Auth ───────────────────────────────────────────────────────────────────

func TestHandler_RequiresUserHeader(t *testing.T) {
	for _, user := range []string{"", "not-a-uuid"} {
		rec := serve(t, &fakeMatcher{}, http.MethodGet, "/matches", "", user)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("user %q: status = %d, want 401", user, rec.Code)
		}
	}
}

// ── Matches ────────────────────────────────────────────────────────────────

func TestHandler_ListMatches(t *testing.T) {
	f := &fakeMatcher{}
	rec := serve(t, f, http.MethodGet, "/matches?page=2&limit=5", "", uuid.NewString())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if f.page != 2 || f.limit != 5 {
		t.Errorf("forwarded page=%d limit=%d", f.page, f.limit)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["items"]; !ok {
		t.Errorf("body lacks items: %v", body)
	}

	if rec := serve(t, f, http.MethodGet, "/matches?page=abc", "", uuid.NewString()); rec.Code != http.StatusBadRequest {
		t.Errorf("bad page: status = %d, want 400", rec.Code)
	}
}

func TestHandler_ServiceErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: user x", matching.ErrNoActiveResume), http.StatusConflict},
		{fmt.Errorf("%w: timeout", matching.ErrPreferencesUnavailable), http.StatusConflict},
		{store.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := serve(t, &fakeMatcher{pageErr: tc.err}, http.MethodGet, "/matches", "", uuid.NewString())
		if rec.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestHandler_Recompute(t *testing.T) {
	f := &fakeMatcher{}
	user := uuid.New()
	rec := serve(t, f, http.MethodPost, "/matches/recompute", "", user.String())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(f.dispatched) != 1 || f.dispatched[0] != user {
		t.Errorf("dispatched = %v", f.dispatched)
	}
}

// ── Interactions ───────────────────────────────────────────────────────────

func TestHandler_Interact(t *testing.T) {
	job := uuid.NewString()
	tests := []struct {
		name   string
		target string
		err    error
		want   int
	}{
		{"recorded", "/jobs/" + job + "/interact?type=liked", nil, http.StatusCreated},
		{"invalid type", "/jobs/" + job + "/interact?type=loved", fmt.Errorf("%w %q", model.ErrInvalidInteractionType, "loved"), http.StatusBadRequest},
		{"unknown job", "/jobs/" + job + "/interact?type=liked", store.ErrNotFound, http.StatusNotFound},
		{"bad job id", "/jobs/42/interact?type=liked", nil, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(t, &fakeMatcher{interactErr: tc.err}, http.MethodPost, tc.target, "", uuid.NewString())
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestHandler_SavedJobs(t *testing.T) {
	rec := serve(t, &fakeMatcher{}, http.MethodGet, "/jobs/saved", "", uuid.NewString())
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Go developer") {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body)
	}
	rec = serve(t, &fakeMatcher{}, http.MethodGet, "/jobs/applied", "", uuid.NewString())
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body)
	}
}

// ── Intake ─────────────────────────────────────────────────────────────────

func TestHandler_PutPreferences(t *testing.T) {
	f := &fakeMatcher{}
	user := uuid.New()
	rec := serve(t, f, http.MethodPut, "/preferences", `{"userId":"`+uuid.NewString()+`","minSalary":50000,"remotePreference":"remote"}`, user.String())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if f.prefs.UserID != user {
		t.Error("user id must come from the header, not the body")
	}

	if rec := serve(t, f, http.MethodPut, "/preferences", `{"minSalary":-1}`, user.String()); rec.Code != http.StatusBadRequest {
		t.Errorf("validation: status = %d, want 400", rec.Code)
	}
	if rec := serve(t, f, http.MethodPut, "/preferences", `{`, user.String()); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want 400", rec.Code)
	}
}

func TestHandler_Resumes(t *testing.T) {
	f := &fakeMatcher{}
	rec := serve(t, f, http.MethodPost, "/resumes", `{"rawText":"Go developer","skills":["go"],"activate":true}`, uuid.NewString())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	var out Resume
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if !out.Active || out.EmbeddingModelVersion != "v1" || out.RecomputeQueued {
		t.Errorf("unexpected resume %+v", out)
	}

	rec = serve(t, f, http.MethodPost, "/resumes/"+uuid.NewString()+"/activate", "", uuid.NewString())
	if rec.Code != http.StatusNotFound {
		t.Errorf("activate foreign resume: status = %d, want 404", rec.Code)
	}
}

// ── Health ─────────────────────────────────────────────────────────────────

func TestHandler_Health(t *testing.T) {
	ok := HealthCheck{Name: "postgres", Check: func(context.Context) error { return nil }}
	rec := serve(t, &fakeMatcher{}, http.MethodGet, "/health", "", "", ok)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	down := HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}
	rec = serve(t, &fakeMatcher{}, http.MethodGet, "/health", "", "", ok, down)
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "degraded") {
		t.Errorf("status = %d body = %s", rec.Code, rec.Body)
	}
}
