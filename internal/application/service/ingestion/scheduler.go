package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler owns the recurring triggers: one cron entry per registered domain
// runner, evaluated in UTC. Cadences come from the profiles, not the call
// sites.
type Scheduler struct {
	cron   *cron.Cron
	logger *logrus.Logger
}

func NewScheduler(logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger,
	}
}

// Register adds a runner on its profile's cron cadence.
func (s *Scheduler) Register(runner *Runner) error {
	profile := runner.Profile()
	if err := profile.Validate(); err != nil {
		return err
	}
	_, err := s.cron.AddFunc(profile.CronSpec, func() {
		runner.Run(context.Background())
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", profile.Domain, profile.CronSpec, err)
	}
	s.logger.WithFields(logrus.Fields{
		"domain": profile.Domain.String(),
		"cron":   profile.CronSpec,
	}).Info("ingestion job scheduled")
	return nil
}

// Start begins firing ticks.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("ingestion scheduler started")
}

// Stop halts the triggers and waits for in-flight runs to finish, bounded by
// ctx. Runs still active at the deadline are abandoned.
func (s *Scheduler) Stop(ctx context.Context) error {
	drained := s.cron.Stop()
	select {
	case <-drained.Done():
		s.logger.Info("ingestion scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("ingestion scheduler stopped with runs still in flight")
		return ctx.Err()
	}
}
