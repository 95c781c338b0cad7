package matching

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jobmate/matching-service/internal/bus"
)

// ErrSuperseded is the result of a run cancelled by a newer dispatch for the
// same user.
var ErrSuperseded = errors.New("run superseded by a newer request")

// Run is a handle on a background recomputation.
type Run struct {
	UserID uuid.UUID

	cancel  context.CancelFunc
	done    chan struct{}
	summary RunSummary
	err     error
}

// Done is closed once the run has returned.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (RunSummary, error) {
	select {
	case <-r.done:
		return r.summary, r.err
	case <-ctx.Done():
		return RunSummary{}, ctx.Err()
	}
}

// Cancel asks the run to stop at the next job boundary.
func (r *Run) Cancel() { r.cancel() }

// Dispatch starts a background recomputation for userID and returns at once.
//
// At most one run per user executes at a time: a newer dispatch cancels the
// in-flight run and starts only after it has returned. Runs for different
// users proceed in parallel up to Options.RunConcurrency, and across replicas
// a Redis lock keeps the same guarantee when Redis is configured.
func (s *Service) Dispatch(userID uuid.UUID) *Run {
	ctx, cancel := context.WithCancel(s.root)
	r := &Run{UserID: userID, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	prev := s.inflight[userID]
	s.inflight[userID] = r
	s.wg.Add(1)
	s.mu.Unlock()

	if prev != nil {
		prev.cancel()
	}

	go func() {
		defer s.wg.Done()
		defer close(r.done)
		defer s.forget(r)
		defer cancel()

		if prev != nil {
			<-prev.done
		}
		r.summary, r.err = s.execute(ctx, userID)
		if r.err != nil && ctx.Err() != nil && s.root.Err() == nil {
			r.err = ErrSuperseded
		}
	}()
	return r
}

func (s *Service) execute(ctx context.Context, userID uuid.UUID) (RunSummary, error) {
	if err := ctx.Err(); err != nil {
		return RunSummary{UserID: userID, Cancelled: true}, err
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return RunSummary{UserID: userID, Cancelled: true}, err
	}
	defer s.sem.Release(1)

	unlock, err := s.bus.Lock(ctx, userID.String(), s.opts.LockTTL)
	if err != nil {
		if errors.Is(err, bus.ErrLockHeld) {
			s.log.Info("run already in flight on another replica", zap.String("user_id", userID.String()))
		}
		return RunSummary{UserID: userID}, err
	}
	defer unlock()

	sum, _, err := s.ComputeMatches(ctx, userID)
	if err != nil && ctx.Err() == nil {
		s.log.Warn("matching run failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
	return sum, err
}

func (s *Service) forget(r *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight[r.UserID] == r {
		delete(s.inflight, r.UserID)
	}
}

// InFlight reports whether a run for userID is queued or running.
func (s *Service) InFlight(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[userID]
	return ok
}

// Close cancels every background run and waits for them to return.
func (s *Service) Close() {
	s.stop()
	s.wg.Wait()
}

// waitAll waits for every handle and returns how many runs succeeded.
func waitAll(ctx context.Context, runs []*Run) (int, error) {
	ok := 0
	for _, r := range runs {
		if _, err := r.Wait(ctx); err == nil {
			ok++
		} else if ctx.Err() != nil {
			return ok, ctx.Err()
		}
	}
	return ok, nil
}
