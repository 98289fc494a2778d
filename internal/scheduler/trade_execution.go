package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// TradeExecutionJob executes today's signal shortly after the open and
// records the daily performance snapshot.
type TradeExecutionJob struct {
	executor TradeExecutor
	recorder MetricsRecorder
	configs  ConfigSource
	log      zerolog.Logger
}

// NewTradeExecutionJob creates the trade execution job.
func NewTradeExecutionJob(executor TradeExecutor, recorder MetricsRecorder, configs ConfigSource, log zerolog.Logger) *TradeExecutionJob {
	return &TradeExecutionJob{
		executor: executor,
		recorder: recorder,
		configs:  configs,
		log:      log.With().Str("job", "trade_execution").Logger(),
	}
}

// Name identifies the job to the scheduler.
func (j *TradeExecutionJob) Name() string {
	return "trade_execution"
}

// Run executes trades for today and snapshots the portfolio. The
// snapshot runs even on days the signal produced no trades, so the
// performance series has no holes.
func (j *TradeExecutionJob) Run() error {
	today := time.Now().Format(dateLayout)

	trades, err := j.executor.ExecuteDate(today)
	if err != nil {
		return fmt.Errorf("trade execution failed: %w", err)
	}

	cfg, err := j.configs.GetActive(today)
	if err != nil {
		return fmt.Errorf("failed to load active config: %w", err)
	}

	daily, err := j.recorder.RecordDaily(today, cfg.DailyCapital)
	if err != nil {
		return fmt.Errorf("failed to record daily metrics: %w", err)
	}

	j.log.Info().
		Str("trade_date", today).
		Int("trades", len(trades)).
		Float64("total_value", daily.TotalValue).
		Msg("Execution cycle complete")
	return nil
}
