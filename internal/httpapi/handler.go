// Package httpapi implements the HTTP handlers for the matching service.
//
// All user routes expect an x-user-id header forwarded by the Gateway.
//
// Routes:
//
//	GET  /matches?page=&limit=          → last computed ranking
//	POST /matches/recompute             → queue a recomputation
//	POST /jobs/{id}/interact?type=      → append an interaction
//	GET  /jobs/saved                    → saved active jobs
//	GET  /jobs/applied                  → applied jobs
//	PUT  /preferences                   → replace preferences
//	POST /resumes                       → upload or replace a resume
//	POST /resumes/{id}/activate         → select the active resume
//	GET  /health                        → liveness and dependency checks
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/logger"
	"jobmate/matching-service/internal/matching"
	"jobmate/matching-service/internal/model"
	"jobmate/matching-service/internal/store"
)

// Matcher is the slice of matching.Service the handlers drive.
type Matcher interface {
	GetCurrentMatches(ctx context.Context, userID uuid.UUID, page, limit int) (matching.Page, error)
	Dispatch(userID uuid.UUID) *matching.Run
	RecordInteraction(ctx context.Context, userID, jobID uuid.UUID, kind string) (*model.InteractionEvent, error)
	SavedJobs(ctx context.Context, userID uuid.UUID) ([]*model.JobPosting, error)
	AppliedJobs(ctx context.Context, userID uuid.UUID) ([]*model.JobPosting, error)
	UpsertPreferences(ctx context.Context, p *model.UserPreference) (*matching.Run, error)
	UpsertResume(ctx context.Context, userID uuid.UUID, in matching.ResumeInput) (*model.ResumeProfile, *matching.Run, error)
	SetActiveResume(ctx context.Context, userID, resumeID uuid.UUID) (*matching.Run, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// ─── Response types ──────────────────────────────────────────────────────────

// Resume is the JSON shape of a stored resume. Raw text and the vector are
// not echoed back.
type Resume struct {
	ID                    uuid.UUID `json:"id"`
	Skills                []string  `json:"skills"`
	Active                bool      `json:"active"`
	EmbeddingModelVersion string    `json:"embeddingModelVersion,omitempty"`
	RecomputeQueued       bool      `json:"recomputeQueued"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler holds shared dependencies.
type Handler struct {
	svc    Matcher
	checks []HealthCheck
	log    *zap.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(svc Matcher, log *zap.Logger, checks ...HealthCheck) *Handler {
	return &Handler{svc: svc, checks: checks, log: logger.Component(log, "http")}
}

// RegisterRoutes mounts all matching-service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /matches", h.withUser(h.listMatches))
	mux.HandleFunc("POST /matches/recompute", h.withUser(h.recompute))
	mux.HandleFunc("POST /jobs/{id}/interact", h.withUser(h.interact))
	mux.HandleFunc("GET /jobs/saved", h.withUser(h.savedJobs))
	mux.HandleFunc("GET /jobs/applied", h.withUser(h.appliedJobs))
	mux.HandleFunc("PUT /preferences", h.withUser(h.putPreferences))
	mux.HandleFunc("POST /resumes", h.withUser(h.postResume))
	mux.HandleFunc("POST /resumes/{id}/activate", h.withUser(h.activateResume))
	mux.HandleFunc("GET /health", h.health)
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID uuid.UUID)

// withUser rejects requests without a valid x-user-id header.
func (h *Handler) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("x-user-id")
		if raw == "" {
			jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			jsonError(w, "invalid x-user-id header", http.StatusUnauthorized)
			return
		}
		next(w, r, userID)
	}
}

// ─── Individual handlers ─────────────────────────────────────────────────────

func (h *Handler) listMatches(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	page, err := intParam(r, "page")
	if err != nil {
		jsonError(w, "page must be an integer", http.StatusBadRequest)
		return
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		jsonError(w, "limit must be an integer", http.StatusBadRequest)
		return
	}
	res, err := h.svc.GetCurrentMatches(r.Context(), userID, page, limit)
	if err != nil {
		h.serviceError(w, "listMatches", err)
		return
	}
	jsonOK(w, res)
}

func (h *Handler) recompute(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	h.svc.Dispatch(userID)
	jsonStatus(w, http.StatusAccepted, map[string]string{"status": "queued", "userId": userID.String()})
}

func (h *Handler) interact(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		jsonError(w, "invalid job id", http.StatusBadRequest)
		return
	}
	ev, err := h.svc.RecordInteraction(r.Context(), userID, jobID, r.URL.Query().Get("type"))
	if err != nil {
		h.serviceError(w, "interact", err)
		return
	}
	jsonStatus(w, http.StatusCreated, ev)
}

func (h *Handler) savedJobs(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	jobs, err := h.svc.SavedJobs(r.Context(), userID)
	if err != nil {
		h.serviceError(w, "savedJobs", err)
		return
	}
	jsonOK(w, jobs)
}

func (h *Handler) appliedJobs(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	jobs, err := h.svc.AppliedJobs(r.Context(), userID)
	if err != nil {
		h.serviceError(w, "appliedJobs", err)
		return
	}
	jsonOK(w, jobs)
}

func (h *Handler) putPreferences(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var p model.UserPreference
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	p.UserID = userID
	run, err := h.svc.UpsertPreferences(r.Context(), &p)
	if err != nil {
		h.serviceError(w, "putPreferences", err)
		return
	}
	jsonOK(w, map[string]any{"preferences": p, "recomputeQueued": run != nil})
}

func (h *Handler) postResume(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	var in matching.ResumeInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	res, run, err := h.svc.UpsertResume(r.Context(), userID, in)
	if err != nil {
		h.serviceError(w, "postResume", err)
		return
	}
	out := Resume{
		ID:              res.ID,
		Skills:          res.Skills,
		Active:          res.Active,
		RecomputeQueued: run != nil,
		UpdatedAt:       res.UpdatedAt,
	}
	if res.Embedding != nil {
		out.EmbeddingModelVersion = res.Embedding.ModelVersion
	}
	jsonStatus(w, http.StatusCreated, out)
}

func (h *Handler) activateResume(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	resumeID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		jsonError(w, "invalid resume id", http.StatusBadRequest)
		return
	}
	if _, err := h.svc.SetActiveResume(r.Context(), userID, resumeID); err != nil {
		h.serviceError(w, "activateResume", err)
		return
	}
	jsonStatus(w, http.StatusAccepted, map[string]string{"status": "queued", "resumeId": resumeID.String()})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for _, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			status[c.Name] = err.Error()
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[c.Name] = "ok"
	}
	jsonStatus(w, code, status)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// serviceError maps domain errors to HTTP status codes.
func (h *Handler) serviceError(w http.ResponseWriter, op string, err error) {
	var verr *matching.ValidationError
	switch {
	case errors.Is(err, model.ErrInvalidInteractionType), errors.As(err, &verr):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	case errors.Is(err, matching.ErrNoActiveResume), errors.Is(err, matching.ErrPreferencesUnavailable):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error("request failed", zap.String("op", op), zap.Error(err))
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func intParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func jsonOK(w http.ResponseWriter, v any) {
	jsonStatus(w, http.StatusOK, v)
}

func jsonStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonStatus(w, code, map[string]string{"error": msg})
}
