// Package tuning adjusts the strategy parameters once a month. It scores
// the period's trades, applies the bidirectional tuning rules, validates
// the candidate out of sample when there is enough history, and records
// every run in an audit table whether or not the candidate was accepted.
package tuning

import (
	"time"

	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

// Adjustment records one parameter change made by a tuning rule.
type Adjustment struct {
	Parameter string  `json:"parameter"`
	From      float64 `json:"from"`
	To        float64 `json:"to"`
	Reason    string  `json:"reason"`
}

// ValidationResult is the outcome of out-of-sample validation of a tuned
// candidate against the held-out test slice of the analysis period.
type ValidationResult struct {
	Passes          bool    `json:"passes_validation"`
	Score           float64 `json:"validation_score"`
	TestSharpe      float64 `json:"test_sharpe"`
	TestMaxDrawdown float64 `json:"test_max_drawdown"`
	SharpePasses    bool    `json:"sharpe_passes"`
	DrawdownPasses  bool    `json:"drawdown_passes"`
	TrainPeriod     string  `json:"train_period"`
	TestPeriod      string  `json:"test_period"`
}

// Run is one persisted tuning audit row. Validation is nil when the run
// had too little history to validate; ConfigID is set only for accepted
// runs.
type Run struct {
	ID              string            `json:"id"`
	RunAt           time.Time         `json:"run_at"`
	PeriodStart     string            `json:"period_start"`
	PeriodEnd       string            `json:"period_end"`
	TradesEvaluated int               `json:"trades_evaluated"`
	Validation      *ValidationResult `json:"validation,omitempty"`
	Accepted        bool              `json:"accepted"`
	ConfigID        *int64            `json:"config_id,omitempty"`
	Report          string            `json:"report,omitempty"`
}

// Outcome summarizes one monthly tuning run for callers. Config is the
// version active after the run: the new one when accepted, the unchanged
// previous one when validation rejected the candidate.
type Outcome struct {
	RunID           string                        `json:"run_id"`
	PeriodStart     string                        `json:"period_start"`
	PeriodEnd       string                        `json:"period_end"`
	TradesEvaluated int                           `json:"trades_evaluated"`
	Adjustments     []Adjustment                  `json:"adjustments"`
	Validation      *ValidationResult             `json:"validation,omitempty"`
	Accepted        bool                          `json:"accepted"`
	Config          *strategyconfig.TradingConfig `json:"config"`
	Report          string                        `json:"report"`
}
