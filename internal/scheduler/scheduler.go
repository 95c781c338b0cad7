// Package scheduler wires up the cron job that periodically expires stale
// postings, refreshes job embeddings and recomputes every user's ranking.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/logger"
)

// Cycle is the batch work run on every tick. *matching.Service implements it.
type Cycle interface {
	ExpireJobs(ctx context.Context) (int, error)
	RefreshJobEmbeddings(ctx context.Context) (int, error)
	RecomputeAll(ctx context.Context) (int, error)
}

// Scheduler wraps robfig/cron and manages the batch loop.
type Scheduler struct {
	cron  *cron.Cron
	cycle Cycle
	spec  string // cron spec, e.g. "@every 6h"
	log   *zap.Logger
	wg    sync.WaitGroup
}

// New creates a Scheduler running cycle on spec. Overlapping ticks are
// skipped while a cycle is still running.
func New(cycle Cycle, spec string, log *zap.Logger) *Scheduler {
	log = logger.Component(log, "scheduler")
	cl := cronLogger{log.Sugar()}
	return &Scheduler{
		cron:  cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		cycle: cycle,
		spec:  spec,
		log:   log,
	}
}

// Start registers the job and starts the scheduler. Also runs one cycle
// immediately so rankings absorb new jobs without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.log.Info("cron started", zap.String("spec", s.spec))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunOnce(ctx)
	}()
	return nil
}

// Stop shuts down the scheduler and waits for a running cycle to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("cron stopped")
}

// RunOnce executes one batch cycle. A failing step is logged and the next
// step still runs.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	s.log.Info("batch cycle started")

	expired, err := s.cycle.ExpireJobs(ctx)
	if err != nil {
		s.log.Error("expire jobs failed", zap.Error(err))
	}
	refreshed, err := s.cycle.RefreshJobEmbeddings(ctx)
	if err != nil {
		s.log.Error("refresh embeddings failed", zap.Error(err))
	}
	users, err := s.cycle.RecomputeAll(ctx)
	if err != nil {
		s.log.Error("recompute failed", zap.Error(err))
	}

	s.log.Info("batch cycle complete",
		zap.Int("expired", expired),
		zap.Int("refreshed", refreshed),
		zap.Int("users", users),
		zap.Duration("took", time.Since(start)),
	)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
