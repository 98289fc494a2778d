package tuning

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/modules/analysis"
	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

const (
	dateLayout = "2006-01-02"

	defaultLookbackMonths = 3
	monthDaysApprox       = 30

	// Out-of-sample validation needs enough trades and calendar spread
	// to make the train/test split meaningful.
	validationMinTrades     = 30
	validationMinPeriodDays = 60
	trainFraction           = 0.7
)

// TradeEvaluator scores the period's executed trades.
type TradeEvaluator interface {
	EvaluateTrades(cfg *strategyconfig.TradingConfig, constraints *strategyconfig.StrategyConstraints,
		start, end string) ([]analysis.TradeEvaluation, error)
}

// ConfigStore reads the active config version and writes accepted ones.
type ConfigStore interface {
	GetActive(asOf string) (*strategyconfig.TradingConfig, error)
	CreateNewVersion(cfg *strategyconfig.TradingConfig, startDate, createdBy, notes string) (*strategyconfig.TradingConfig, error)
}

// ConstraintsSource reads the active evaluation constraints.
type ConstraintsSource interface {
	GetActive(asOf string) (*strategyconfig.StrategyConstraints, error)
}

// MetricsSource reads the daily performance series.
type MetricsSource interface {
	MinMaxDates(from, to string) (string, string, error)
	Series(start, end string) ([]performance.Daily, error)
}

// RunRecorder persists the audit row for a tuning run.
type RunRecorder interface {
	Create(run *Run) error
}

// Tuner runs the monthly parameter adjustment cycle: evaluate recent
// trades, derive adjustments, validate out of sample, and persist the
// result. A candidate that fails validation is recorded but never
// activated.
type Tuner struct {
	evaluator   TradeEvaluator
	configs     ConfigStore
	constraints ConstraintsSource
	metrics     MetricsSource
	runs        RunRecorder
	logger      zerolog.Logger

	lookbackMonths int
}

func NewTuner(evaluator TradeEvaluator, configs ConfigStore, constraints ConstraintsSource,
	metrics MetricsSource, runs RunRecorder, lookbackMonths int, logger zerolog.Logger) *Tuner {

	if lookbackMonths <= 0 {
		lookbackMonths = defaultLookbackMonths
	}
	return &Tuner{
		evaluator:      evaluator,
		configs:        configs,
		constraints:    constraints,
		metrics:        metrics,
		runs:           runs,
		logger:         logger.With().Str("component", "strategy_tuner").Logger(),
		lookbackMonths: lookbackMonths,
	}
}

// RunMonthlyTuning executes a full tuning cycle as of effectiveDate
// (YYYY-MM-DD). The analysis window is the lookback period ending the
// day before, clipped to the dates that actually have performance rows.
// Every run writes an audit record; only an accepted candidate becomes
// a new config version, starting from the first of the month.
func (t *Tuner) RunMonthlyTuning(effectiveDate string) (*Outcome, error) {
	day, err := time.Parse(dateLayout, effectiveDate)
	if err != nil {
		return nil, fmt.Errorf("invalid effective date %q: %w", effectiveDate, err)
	}

	windowEnd := day.AddDate(0, 0, -1)
	windowStart := windowEnd.AddDate(0, 0, -t.lookbackMonths*monthDaysApprox)

	start, end, err := t.metrics.MinMaxDates(windowStart.Format(dateLayout), windowEnd.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	if start == "" || end == "" {
		return nil, fmt.Errorf("no performance data between %s and %s",
			windowStart.Format(dateLayout), windowEnd.Format(dateLayout))
	}

	t.logger.Info().Str("start", start).Str("end", end).Msg("Starting monthly tuning")

	current, err := t.configs.GetActive(effectiveDate)
	if err != nil {
		return nil, err
	}
	constraints, err := t.constraints.GetActive(effectiveDate)
	if err != nil {
		return nil, err
	}

	evals, err := t.evaluator.EvaluateTrades(current, constraints, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate trades: %w", err)
	}

	conditions := analysis.ByCondition(evals, current)
	buckets := analysis.ByConfidenceBucket(evals)
	signalTypes := analysis.BySignalType(evals)

	series, err := t.metrics.Series(start, end)
	if err != nil {
		return nil, err
	}
	overall := performance.Compute(series, constraints.RiskFreeRate)

	candidate, adjustments := Tune(current, conditions, buckets, signalTypes, overall)

	validation, err := t.validate(candidate, current, constraints, len(evals), start, end)
	if err != nil {
		return nil, err
	}

	accepted := validation == nil || validation.Passes
	runID := uuid.New().String()
	now := time.Now().UTC()

	report := BuildReport(current, candidate, evals, conditions, overall, start, end, validation, now)

	active := current
	var configID *int64
	if accepted {
		saved, err := t.configs.CreateNewVersion(candidate, firstOfMonth(day), "strategy_tuning",
			fmt.Sprintf("Monthly tuning - report: %s", runID))
		if err != nil {
			return nil, fmt.Errorf("failed to save tuned config: %w", err)
		}
		active = saved
		configID = &saved.ID
	} else {
		t.logger.Warn().Float64("score", validation.Score).
			Msg("Candidate failed out-of-sample validation, keeping previous parameters")
	}

	run := &Run{
		ID:              runID,
		RunAt:           now,
		PeriodStart:     start,
		PeriodEnd:       end,
		TradesEvaluated: len(evals),
		Validation:      validation,
		Accepted:        accepted,
		ConfigID:        configID,
		Report:          report,
	}
	if err := t.runs.Create(run); err != nil {
		return nil, err
	}

	t.logger.Info().Str("run_id", runID).Bool("accepted", accepted).
		Int("trades", len(evals)).Int("adjustments", len(adjustments)).
		Msg("Monthly tuning complete")

	return &Outcome{
		RunID:           runID,
		PeriodStart:     start,
		PeriodEnd:       end,
		TradesEvaluated: len(evals),
		Adjustments:     adjustments,
		Validation:      validation,
		Accepted:        accepted,
		Config:          active,
		Report:          report,
	}, nil
}

// validate splits the analysis period 70/30 and scores the candidate on
// the held-out tail. Returns nil when the period is too thin to split.
func (t *Tuner) validate(candidate, current *strategyconfig.TradingConfig,
	constraints *strategyconfig.StrategyConstraints, trades int, start, end string) (*ValidationResult, error) {

	startDay, err := time.Parse(dateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("invalid period start %q: %w", start, err)
	}
	endDay, err := time.Parse(dateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("invalid period end %q: %w", end, err)
	}

	periodDays := int(endDay.Sub(startDay).Hours() / 24)
	if trades <= validationMinTrades || periodDays <= validationMinPeriodDays {
		t.logger.Info().Int("trades", trades).Int("period_days", periodDays).
			Msg("Skipping out-of-sample validation, not enough history")
		return nil, nil
	}

	trainEnd := startDay.AddDate(0, 0, int(float64(periodDays)*trainFraction))
	testStart := trainEnd.AddDate(0, 0, 1)

	testSeries, err := t.metrics.Series(testStart.Format(dateLayout), end)
	if err != nil {
		return nil, err
	}
	testMetrics := performance.Compute(testSeries, constraints.RiskFreeRate)

	result := Validate(testMetrics, candidate, current,
		start, trainEnd.Format(dateLayout), testStart.Format(dateLayout), end)
	return &result, nil
}

// Helper functions

func firstOfMonth(day time.Time) string {
	return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC).Format(dateLayout)
}
