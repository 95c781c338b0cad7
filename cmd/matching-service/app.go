package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/bus"
	"jobmate/matching-service/internal/config"
	"jobmate/matching-service/internal/db"
	"jobmate/matching-service/internal/embedding"
	"jobmate/matching-service/internal/feedback"
	"jobmate/matching-service/internal/httpapi"
	"jobmate/matching-service/internal/matching"
	"jobmate/matching-service/internal/scoring"
	"jobmate/matching-service/internal/store/postgres"
	"jobmate/matching-service/internal/telemetry"
	"jobmate/matching-service/internal/textnorm"
)

// application is the wired service and the connections it owns.
type application struct {
	cfg     *config.Config
	log     *zap.Logger
	pool    *pgxpool.Pool
	rdb     *redis.Client
	svc     *matching.Service
	tracing telemetry.Shutdown
}

func newApplication(ctx context.Context, cfg *config.Config, log *zap.Logger) (*application, error) {
	a := &application{cfg: cfg, log: log}

	tracing, err := telemetry.Setup(telemetry.Options{Enabled: cfg.TracingEnabled, ServiceName: app, Version: version}, log)
	if err != nil {
		return nil, err
	}
	a.tracing = tracing

	// ── PostgreSQL ──────────────────────────────────────────────────────────
	log.Info("connecting to PostgreSQL")
	a.pool, err = db.NewPostgresPool(ctx, cfg.DatabaseURL, db.WithVectorTypes())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	// ── Redis ───────────────────────────────────────────────────────────────
	a.rdb, err = db.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	if a.rdb == nil {
		log.Warn("REDIS_URL not set: single-replica mode, no events published")
	}

	// ── Matching ────────────────────────────────────────────────────────────
	extra, err := textnorm.LoadVocabularyFile(cfg.VocabularyFile)
	if err != nil {
		a.Close()
		return nil, err
	}
	embedder, err := embedding.FromConfig(ctx, cfg.Embedding, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("embedding: %w", err)
	}
	scorer, err := scoring.NewScorer(cfg.Scoring)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("scoring: %w", err)
	}

	a.svc = matching.NewService(matching.Deps{
		Store:      postgres.New(a.pool),
		Normalizer: textnorm.New(extra...),
		Embedder:   embedder,
		Scorer:     scorer,
		Adjuster:   feedback.NewAdjuster(cfg.FeedbackBoost, cfg.FeedbackDismissFactor),
		Bus:        bus.New(a.rdb, log),
		Logger:     log,
	}, cfg.Matching)

	log.Info("matching service ready",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_version", cfg.Embedding.Version),
		zap.Int("extra_skills", len(extra)),
	)
	return a, nil
}

// healthChecks probes the connections the service depends on.
func (a *application) healthChecks() []httpapi.HealthCheck {
	checks := []httpapi.HealthCheck{{Name: "postgres", Check: a.pool.Ping}}
	if a.rdb != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return a.rdb.Ping(ctx).Err()
		}})
	}
	return checks
}

// Close stops background runs and releases every connection.
func (a *application) Close() {
	if a.svc != nil {
		a.svc.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracing(ctx); err != nil {
			a.log.Warn("tracing shutdown", zap.Error(err))
		}
	}
}
