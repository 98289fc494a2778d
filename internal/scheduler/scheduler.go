// Package scheduler drives the engine's clock: cron-scheduled jobs for
// price sync, signal generation, trade execution, tuning, backups, and
// maintenance, plus on-demand runs triggered over the API.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job.
type Job interface {
	Run() error
	Name() string
}

// Cron schedules, with a seconds field. All times are server-local.
const (
	SchedulePriceSync     = "0 30 5 * * 1-5"
	ScheduleSignals       = "0 0 6 * * 1-5"
	ScheduleExecution     = "0 35 9 * * 1-5"
	ScheduleMonthlyTuning = "0 30 6 1-3 * *"
	ScheduleDailyBackup   = "0 0 2 * * *"
	ScheduleWeeklyBackup  = "0 0 3 * * 0"
	ScheduleMaintenance   = "0 0 4 * * *"
)

// Scheduler manages background jobs.
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]Job
	log  zerolog.Logger
}

// New creates a new scheduler.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		jobs: make(map[string]Job),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a job with a cron schedule and makes it available
// for manual runs by name.
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		s.log.Debug().Str("job", job.Name()).Msg("Running job")

		if err := job.Run(); err != nil {
			s.log.Error().
				Err(err).
				Str("job", job.Name()).
				Msg("Job failed")
		} else {
			s.log.Debug().Str("job", job.Name()).Msg("Job completed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name(), err)
	}

	s.jobs[job.Name()] = job

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a registered job immediately, outside its schedule.
func (s *Scheduler) RunNow(name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}

	s.log.Info().Str("job", name).Msg("Running job immediately")
	return job.Run()
}

// HasJob reports whether a job is registered under name.
func (s *Scheduler) HasJob(name string) bool {
	_, ok := s.jobs[name]
	return ok
}

// JobNames lists registered jobs in stable order.
func (s *Scheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
