package performance

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Scorer recomputes every listing's ranking score.
type Scorer interface {
	UpdateAllListingScores(ctx context.Context) ([]ScoreResult, error)
}

// Refresher runs score updates off the request path. Requests enqueue a
// refresh and return immediately; at most one refresh is pending at a
// time, so a burst of enqueues collapses into a single run.
type Refresher struct {
	scorer Scorer
	logger *logrus.Logger
	jobs   chan struct{}

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRefresher returns a Refresher driving scorer.
func NewRefresher(scorer Scorer, logger *logrus.Logger) *Refresher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Refresher{
		scorer: scorer,
		logger: logger,
		jobs:   make(chan struct{}, 1),
	}
}

// Enqueue requests a refresh. It never blocks and reports false when a
// refresh was already pending.
func (r *Refresher) Enqueue() bool {
	select {
	case r.jobs <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run processes queued refreshes until ctx is cancelled or Shutdown is
// called.
func (r *Refresher) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("refresher already started")
	}
	r.started = true
	r.done = make(chan struct{})
	ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	defer close(r.done)
	r.logger.Info("score refresher started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("score refresher stopping")
			return nil
		case <-r.jobs:
			r.runOnce(ctx)
		}
	}
}

// runOnce executes one refresh and logs the outcome. Panics are contained
// so the loop keeps serving.
func (r *Refresher) runOnce(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.WithField("panic", fmt.Sprint(p)).Error("score refresh panicked")
		}
	}()
	results, err := r.scorer.UpdateAllListingScores(ctx)
	if err != nil {
		r.logger.WithError(err).WithField("updated", len(results)).Warn("score refresh finished with errors")
	}
}

// Shutdown stops the loop and waits for an in-flight refresh to finish or
// ctx to expire.
func (r *Refresher) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
