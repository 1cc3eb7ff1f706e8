package ranking

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSweepSpec runs the sweep every six hours.
const DefaultSweepSpec = "@every 6h"

// Scheduler runs a Sweeper once at start and then on a cron spec.
// Overlapping runs are skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper *Sweeper
	spec    string
	logger  *logrus.Logger
}

// NewScheduler returns a stopped Scheduler. An empty spec means
// DefaultSweepSpec.
func NewScheduler(sweeper *Sweeper, spec string, logger *logrus.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSweepSpec
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	return &Scheduler{cron: c, sweeper: sweeper, spec: spec, logger: logger}
}

// Start registers the sweep, starts the cron loop and triggers one
// immediate run in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	job := cron.FuncJob(func() { s.run(ctx) })
	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		return err
	}
	s.cron.Start()
	go s.run(ctx)
	s.logger.WithField("spec", s.spec).Info("notification sweep scheduled")
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	sent, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.WithError(err).Error("notification sweep failed")
		return
	}
	s.logger.WithField("sent", sent).Info("notification sweep finished")
}

// Stop halts scheduling and returns a context that is done once running
// jobs complete.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
