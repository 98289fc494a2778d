package scheduler

import (
	"time"

	"github.com/rs/zerolog"
)

// SignalGenerationJob produces the allocation signal for the current
// trading day, after prices are synced and before the market opens.
type SignalGenerationJob struct {
	generator SignalGenerator
	log       zerolog.Logger
}

// NewSignalGenerationJob creates the signal generation job.
func NewSignalGenerationJob(generator SignalGenerator, log zerolog.Logger) *SignalGenerationJob {
	return &SignalGenerationJob{
		generator: generator,
		log:       log.With().Str("job", "signal_generation").Logger(),
	}
}

// Name identifies the job to the scheduler.
func (j *SignalGenerationJob) Name() string {
	return "signal_generation"
}

// Run generates and stores today's signal.
func (j *SignalGenerationJob) Run() error {
	today := time.Now().Format(dateLayout)

	sig, err := j.generator.Generate(today)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("trade_date", today).
		Str("action", sig.FeaturesUsed.Action).
		Float64("confidence", sig.ConfidenceScore).
		Msg("Signal generation job complete")
	return nil
}
