package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estirar/internal/infra/errtrack"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type CycleScheduler struct {
	cronEngine *cron.Cron
	runner     *CycleRunner
	logger     *logrus.Entry
	cronSpec   string
}

// NewCycleScheduler evaluates cronSpec in loc, so "0 9 * * *" means 9 AM local send time.
func NewCycleScheduler(runner *CycleRunner, logger *logrus.Entry, cronSpec string, loc *time.Location) *CycleScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &CycleScheduler{
		cronEngine: cron.New(cron.WithLocation(loc)),
		runner:     runner,
		logger:     logger,
		cronSpec:   cronSpec,
	}
}

// Start registers the cycle job and starts the cron engine.
func (s *CycleScheduler) Start() error {
	s.logger.Info("Starting cycle scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, s.runTick)
	if err != nil {
		return fmt.Errorf("could not add cycle cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("cron_spec", s.cronSpec).Info("Cycle scheduler started.")
	return nil
}

func (s *CycleScheduler) runTick() {
	defer errtrack.Recover("cycle_tick")
	s.logger.Info("Cron job triggered for cycle tick.")

	result, err := s.runner.Tick(context.Background())
	if err != nil {
		if errors.Is(err, ErrCycleInProgress) {
			s.logger.Warn("Previous cycle still running. Skipping this tick.")
			return
		}
		s.logger.WithError(err).Error("Cycle tick failed")
		errtrack.CaptureError(err, map[string]interface{}{"operation": "cycle_tick"})
		return
	}
	sent, failed, skipped := result.Counts()
	s.logger.WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"mode":    result.Mode,
		"sent":    sent,
		"failed":  failed,
		"skipped": skipped,
	}).Info("Cycle tick completed.")
}

// Next returns when the cycle job fires next; zero before Start.
func (s *CycleScheduler) Next() time.Time {
	entries := s.cronEngine.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *CycleScheduler) Stop() {
	s.logger.Info("Stopping cycle scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Cycle scheduler gracefully stopped.")
}
