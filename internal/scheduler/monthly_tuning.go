package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// MonthlyTuningJob runs the parameter tuning cycle once per month. The
// cron schedule fires on the first three calendar days; the guard below
// narrows that to the single first weekday.
type MonthlyTuningJob struct {
	tuner Tuner
	now   func() time.Time
	log   zerolog.Logger
}

// NewMonthlyTuningJob creates the monthly tuning job.
func NewMonthlyTuningJob(tuner Tuner, log zerolog.Logger) *MonthlyTuningJob {
	return &MonthlyTuningJob{
		tuner: tuner,
		now:   time.Now,
		log:   log.With().Str("job", "monthly_tuning").Logger(),
	}
}

// Name identifies the job to the scheduler.
func (j *MonthlyTuningJob) Name() string {
	return "monthly_tuning"
}

// Run tunes parameters against last month's trades when today is the
// month's first trading day, and skips quietly otherwise.
func (j *MonthlyTuningJob) Run() error {
	now := j.now()
	if !isFirstTradingDay(now) {
		j.log.Debug().Msg("Not the first trading day of the month, skipping tuning")
		return nil
	}

	outcome, err := j.tuner.RunMonthlyTuning(now.Format(dateLayout))
	if err != nil {
		return err
	}

	j.log.Info().
		Str("run_id", outcome.RunID).
		Int("trades_evaluated", outcome.TradesEvaluated).
		Int("adjustments", len(outcome.Adjustments)).
		Bool("accepted", outcome.Accepted).
		Msg("Monthly tuning job complete")
	return nil
}

// isFirstTradingDay reports whether t is the first weekday of its
// month: day 1 unless it falls on a weekend, in which case the
// following Monday (day 2 or 3).
func isFirstTradingDay(t time.Time) bool {
	switch t.Day() {
	case 1:
		return t.Weekday() != time.Saturday && t.Weekday() != time.Sunday
	case 2, 3:
		return t.Weekday() == time.Monday
	default:
		return false
	}
}
