// Package postgres implements store.Store on PostgreSQL with pgvector
// columns for embeddings.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"jobmate/matching-service/internal/model"
	"jobmate/matching-service/internal/store"
)

// Store is the Postgres-backed record store.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store over pool. The schema is managed by db.Migrator.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ store.Store = (*Store)(nil)

type scanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// ─── Resumes ─────────────────────────────────────────────────────────────────

const resumeColumns = `id, user_id, raw_text, normalized_text, skills,
	embedding::text, embedding_model_version, is_active, created_at, updated_at`

func scanResume(row scanner) (*model.ResumeProfile, error) {
	var (
		r       model.ResumeProfile
		vecText *string
		version *string
	)
	if err := row.Scan(
		&r.ID, &r.UserID, &r.RawText, &r.NormalizedText, &r.Skills,
		&vecText, &version, &r.Active, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	emb, err := decodeEmbedding(vecText, version)
	if err != nil {
		return nil, err
	}
	r.Embedding = emb
	return &r, nil
}

// ActiveResume returns the user's active resume.
func (s *Store) ActiveResume(ctx context.Context, userID uuid.UUID) (*model.ResumeProfile, error) {
	r, err := scanResume(s.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE user_id = $1 AND is_active`, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

// GetResume returns one resume owned by userID.
func (s *Store) GetResume(ctx context.Context, userID, resumeID uuid.UUID) (*model.ResumeProfile, error) {
	r, err := scanResume(s.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE id = $1 AND user_id = $2`, resumeID, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return r, nil
}

// SaveResume inserts or replaces r. When r is active the user's other
// resumes are deactivated in the same transaction.
func (s *Store) SaveResume(ctx context.Context, r *model.ResumeProfile) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	vec, version := encodeEmbedding(r.Embedding)

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if r.Active {
			if _, err := tx.Exec(ctx,
				`UPDATE resumes SET is_active = false, updated_at = NOW()
				 WHERE user_id = $1 AND id <> $2 AND is_active`,
				r.UserID, r.ID,
			); err != nil {
				return fmt.Errorf("saveResume deactivate: %w", err)
			}
		}
		err := tx.QueryRow(ctx,
			`INSERT INTO resumes (id, user_id, raw_text, normalized_text, skills,
			                      embedding, embedding_model_version, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6::vector, $7, $8)
			 ON CONFLICT (id) DO UPDATE
			 SET raw_text                = EXCLUDED.raw_text,
			     normalized_text         = EXCLUDED.normalized_text,
			     skills                  = EXCLUDED.skills,
			     embedding               = EXCLUDED.embedding,
			     embedding_model_version = EXCLUDED.embedding_model_version,
			     is_active               = EXCLUDED.is_active,
			     updated_at              = NOW()
			 WHERE resumes.user_id = EXCLUDED.user_id
			 RETURNING created_at, updated_at`,
			r.ID, r.UserID, r.RawText, r.NormalizedText, nonNil(r.Skills),
			vec, version, r.Active,
		).Scan(&r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return notFound(err)
		}
		return nil
	})
}

// SetActiveResume makes resumeID the user's only active resume.
func (s *Store) SetActiveResume(ctx context.Context, userID, resumeID uuid.UUID) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM resumes WHERE id = $1 AND user_id = $2)`,
			resumeID, userID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("setActiveResume lookup: %w", err)
		}
		if !exists {
			return store.ErrNotFound
		}
		if _, err := tx.Exec(ctx,
			`UPDATE resumes SET is_active = false, updated_at = NOW()
			 WHERE user_id = $1 AND id <> $2 AND is_active`,
			userID, resumeID,
		); err != nil {
			return fmt.Errorf("setActiveResume deactivate: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE resumes SET is_active = true, updated_at = NOW() WHERE id = $1`,
			resumeID,
		); err != nil {
			return fmt.Errorf("setActiveResume activate: %w", err)
		}
		return nil
	})
}

// UpdateResumeEmbedding replaces the stored vector of a resume.
func (s *Store) UpdateResumeEmbedding(ctx context.Context, resumeID uuid.UUID, emb *model.Embedding) error {
	vec, version := encodeEmbedding(emb)
	tag, err := s.pool.Exec(ctx,
		`UPDATE resumes SET embedding = $1::vector, embedding_model_version = $2, updated_at = NOW()
		 WHERE id = $3`,
		vec, version, resumeID,
	)
	if err != nil {
		return fmt.Errorf("updateResumeEmbedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UsersWithActiveResume lists users that can be matched.
func (s *Store) UsersWithActiveResume(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT user_id FROM resumes WHERE is_active ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("usersWithActiveResume query: %w", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("usersWithActiveResume scan: %w", err)
	}
	return users, nil
}

// ─── Preferences ─────────────────────────────────────────────────────────────

// GetPreferences returns the user's preference record.
func (s *Store) GetPreferences(ctx context.Context, userID uuid.UUID) (*model.UserPreference, error) {
	var (
		p      model.UserPreference
		remote string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, preferred_titles, preferred_locations, preferred_industries,
		        min_salary, max_salary, remote_preference, updated_at
		 FROM user_preferences WHERE user_id = $1`,
		userID,
	).Scan(
		&p.UserID, &p.PreferredTitles, &p.PreferredLocations, &p.PreferredIndustries,
		&p.MinSalary, &p.MaxSalary, &remote, &p.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	p.RemotePreference = model.ParseRemotePolicy(remote)
	return &p, nil
}

// UpsertPreferences is last-write-wins on user_id.
func (s *Store) UpsertPreferences(ctx context.Context, p *model.UserPreference) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO user_preferences (user_id, preferred_titles, preferred_locations,
		                               preferred_industries, min_salary, max_salary, remote_preference)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (user_id) DO UPDATE
		 SET preferred_titles     = EXCLUDED.preferred_titles,
		     preferred_locations  = EXCLUDED.preferred_locations,
		     preferred_industries = EXCLUDED.preferred_industries,
		     min_salary           = EXCLUDED.min_salary,
		     max_salary           = EXCLUDED.max_salary,
		     remote_preference    = EXCLUDED.remote_preference,
		     updated_at           = NOW()
		 RETURNING updated_at`,
		p.UserID, nonNil(p.PreferredTitles), nonNil(p.PreferredLocations), nonNil(p.PreferredIndustries),
		p.MinSalary, p.MaxSalary, string(p.RemotePreference),
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsertPreferences: %w", err)
	}
	return nil
}

// ─── Jobs ────────────────────────────────────────────────────────────────────

const jobColumns = `j.id, j.external_job_id, j.source, j.title, j.company, j.location,
	j.remote_type, j.employment_type, j.salary_min, j.salary_max, j.description,
	j.skills_required, j.embedding::text, j.embedding_model_version, j.posted_date,
	j.expires_at, j.application_url, j.is_active, j.created_at, j.updated_at`

func jobDest(j *model.JobPosting, remote *string, vecText, version **string) []any {
	return []any{
		&j.ID, &j.ExternalJobID, &j.Source, &j.Title, &j.Company, &j.Location,
		remote, &j.EmploymentType, &j.SalaryMin, &j.SalaryMax, &j.Description,
		&j.RequiredSkills, vecText, version, &j.PostedDate,
		&j.ExpiresAt, &j.ApplicationURL, &j.IsActive, &j.CreatedAt, &j.UpdatedAt,
	}
}

func finishJob(j *model.JobPosting, remote string, vecText, version *string) error {
	j.RemoteType = model.ParseRemotePolicy(remote)
	emb, err := decodeEmbedding(vecText, version)
	if err != nil {
		return err
	}
	j.Embedding = emb
	return nil
}

func scanJob(row scanner) (*model.JobPosting, error) {
	var (
		j                model.JobPosting
		remote           string
		vecText, version *string
	)
	if err := row.Scan(jobDest(&j, &remote, &vecText, &version)...); err != nil {
		return nil, err
	}
	if err := finishJob(&j, remote, vecText, version); err != nil {
		return nil, err
	}
	return &j, nil
}

// UpsertJob inserts or updates a posting by (external_job_id, source).
func (s *Store) UpsertJob(ctx context.Context, j *model.JobPosting) (*model.JobPosting, error) {
	id := j.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	vec, version := encodeEmbedding(j.Embedding)

	stored, err := scanJob(s.pool.QueryRow(ctx,
		`WITH up AS (
		   INSERT INTO jobs AS cur (id, external_job_id, source, title, company, location, remote_type,
		                    employment_type, salary_min, salary_max, description, skills_required,
		                    embedding, embedding_model_version, posted_date, expires_at,
		                    application_url, is_active)
		   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::vector, $14, $15, $16, $17, $18)
		   ON CONFLICT (external_job_id, source) DO UPDATE
		   SET title           = EXCLUDED.title,
		       company         = EXCLUDED.company,
		       location        = EXCLUDED.location,
		       remote_type     = EXCLUDED.remote_type,
		       employment_type = EXCLUDED.employment_type,
		       salary_min      = EXCLUDED.salary_min,
		       salary_max      = EXCLUDED.salary_max,
		       description     = EXCLUDED.description,
		       skills_required = EXCLUDED.skills_required,
		       embedding = CASE
		           WHEN EXCLUDED.embedding IS NOT NULL THEN EXCLUDED.embedding
		           WHEN cur.description IS DISTINCT FROM EXCLUDED.description THEN NULL
		           ELSE cur.embedding END,
		       embedding_model_version = CASE
		           WHEN EXCLUDED.embedding IS NOT NULL THEN EXCLUDED.embedding_model_version
		           WHEN cur.description IS DISTINCT FROM EXCLUDED.description THEN NULL
		           ELSE cur.embedding_model_version END,
		       posted_date     = EXCLUDED.posted_date,
		       expires_at      = EXCLUDED.expires_at,
		       application_url = EXCLUDED.application_url,
		       is_active       = EXCLUDED.is_active,
		       updated_at      = NOW()
		   RETURNING *
		 )
		 SELECT `+jobColumns+` FROM up j`,
		id, j.ExternalJobID, j.Source, j.Title, j.Company, j.Location, string(j.RemoteType),
		j.EmploymentType, j.SalaryMin, j.SalaryMax, j.Description, nonNil(j.RequiredSkills),
		vec, version, j.PostedDate, j.ExpiresAt,
		j.ApplicationURL, j.IsActive,
	))
	if err != nil {
		return nil, fmt.Errorf("upsertJob: %w", err)
	}
	return stored, nil
}

// GetJob returns one posting.
func (s *Store) GetJob(ctx context.Context, jobID uuid.UUID) (*model.JobPosting, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs j WHERE j.id = $1`, jobID))
	if err != nil {
		return nil, notFound(err)
	}
	return j, nil
}

// GetJobs returns the postings among ids, active or not.
func (s *Store) GetJobs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.JobPosting, error) {
	out := make(map[uuid.UUID]*model.JobPosting, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs j WHERE j.id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("getJobs query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("getJobs scan: %w", err)
		}
		out[j.ID] = j
	}
	return out, rows.Err()
}

// ListActiveJobs returns every active posting not expired at now.
func (s *Store) ListActiveJobs(ctx context.Context, now time.Time) ([]*model.JobPosting, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs j
		 WHERE j.is_active AND (j.expires_at IS NULL OR j.expires_at > $1)
		 ORDER BY j.id`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("listActiveJobs query: %w", err)
	}
	defer rows.Close()

	jobs := make([]*model.JobPosting, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("listActiveJobs scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateJobEmbedding replaces a posting's vector.
func (s *Store) UpdateJobEmbedding(ctx context.Context, jobID uuid.UUID, emb *model.Embedding) error {
	vec, version := encodeEmbedding(emb)
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET embedding = $1::vector, embedding_model_version = $2 WHERE id = $3`,
		vec, version, jobID,
	)
	if err != nil {
		return fmt.Errorf("updateJobEmbedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ExpireJobs deactivates postings past their expiry.
func (s *Store) ExpireJobs(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET is_active = false, updated_at = NOW()
		 WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("expireJobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ─── Matches ─────────────────────────────────────────────────────────────────

// UpsertMatch supersedes the record for (user_id, job_id).
func (s *Store) UpsertMatch(ctx context.Context, m *model.MatchRecord) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	reasons, err := json.Marshal(m.Reasons)
	if err != nil {
		return fmt.Errorf("upsertMatch marshal reasons: %w", err)
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO job_matches (id, user_id, job_id, score, reasons, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		 ON CONFLICT (user_id, job_id) DO UPDATE
		 SET score      = EXCLUDED.score,
		     reasons    = EXCLUDED.reasons,
		     created_at = EXCLUDED.created_at
		 RETURNING id`,
		m.ID, m.UserID, m.JobID, m.Score, reasons, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("upsertMatch: %w", err)
	}
	return nil
}

// openJob matches postings that are active and not expired at the bound now.
const openJob = `j.is_active AND (j.expires_at IS NULL OR j.expires_at > $2)`

// ListMatches pages through the user's records on jobs open at now in
// ranking order: score desc, posting date desc (undated last), job id asc.
func (s *Store) ListMatches(ctx context.Context, userID uuid.UUID, now time.Time, offset, limit int) ([]model.MatchedJob, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM job_matches m JOIN jobs j ON j.id = m.job_id
		 WHERE m.user_id = $1 AND `+openJob,
		userID, now,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("listMatches count: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT m.id, m.user_id, m.job_id, m.score::float8, m.reasons, m.created_at, `+jobColumns+`
		 FROM job_matches m JOIN jobs j ON j.id = m.job_id
		 WHERE m.user_id = $1 AND `+openJob+`
		 ORDER BY m.score DESC, j.posted_date DESC NULLS LAST, m.job_id ASC
		 OFFSET $3 LIMIT $4`,
		userID, now, offset, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listMatches query: %w", err)
	}
	defer rows.Close()

	out := make([]model.MatchedJob, 0, limit)
	for rows.Next() {
		var (
			mj               model.MatchedJob
			reasons          []byte
			job              model.JobPosting
			remote           string
			vecText, version *string
		)
		dest := append([]any{&mj.ID, &mj.UserID, &mj.JobID, &mj.Score, &reasons, &mj.CreatedAt},
			jobDest(&job, &remote, &vecText, &version)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("listMatches scan: %w", err)
		}
		if err := finishJob(&job, remote, vecText, version); err != nil {
			return nil, 0, fmt.Errorf("listMatches job: %w", err)
		}
		if err := json.Unmarshal(reasons, &mj.Reasons); err != nil {
			return nil, 0, fmt.Errorf("listMatches reasons: %w", err)
		}
		mj.Job = &job
		mj.PostedDate = job.PostedDate
		out = append(out, mj)
	}
	return out, total, rows.Err()
}

// RetireMatches deletes the user's records for jobIDs.
func (s *Store) RetireMatches(ctx context.Context, userID uuid.UUID, jobIDs []uuid.UUID) (int, error) {
	if len(jobIDs) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM job_matches WHERE user_id = $1 AND job_id = ANY($2)`,
		userID, jobIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("retireMatches: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ─── Interactions ────────────────────────────────────────────────────────────

// AppendInteraction inserts one event. Events are never updated.
func (s *Store) AppendInteraction(ctx context.Context, ev *model.InteractionEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_job_interactions (id, user_id, job_id, interaction_type, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.UserID, ev.JobID, string(ev.Type), ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appendInteraction: %w", err)
	}
	return nil
}

// ListInteractions returns the user's events oldest first.
func (s *Store) ListInteractions(ctx context.Context, userID uuid.UUID) ([]model.InteractionEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, job_id, interaction_type, created_at
		 FROM user_job_interactions WHERE user_id = $1
		 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listInteractions query: %w", err)
	}
	defer rows.Close()

	events := make([]model.InteractionEvent, 0)
	for rows.Next() {
		var (
			ev  model.InteractionEvent
			typ string
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.JobID, &typ, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("listInteractions scan: %w", err)
		}
		ev.Type = model.InteractionType(typ)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// encodeEmbedding returns query arguments for a vector column and its version
// column; both are NULL for a missing embedding.
func encodeEmbedding(e *model.Embedding) (any, any) {
	if e.Empty() {
		return nil, nil
	}
	return pgvector.NewVector(e.Values), e.ModelVersion
}

// decodeEmbedding parses the text form of a vector column.
func decodeEmbedding(vecText, version *string) (*model.Embedding, error) {
	if vecText == nil || *vecText == "" {
		return nil, nil
	}
	var v pgvector.Vector
	if err := v.Scan(*vecText); err != nil {
		return nil, fmt.Errorf("decode vector: %w", err)
	}
	emb := &model.Embedding{Values: v.Slice()}
	if version != nil {
		emb.ModelVersion = *version
	}
	return emb, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
