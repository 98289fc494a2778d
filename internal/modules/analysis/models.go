// Package analysis classifies market conditions and aggregates trade
// evaluations into the per-condition, per-bucket and per-signal-type
// summaries the monthly tuner reads.
package analysis

import (
	"github.com/atlasquant/signal-engine/internal/modules/signal"
)

// Condition labels the benchmark's behavior around a trade date.
type Condition string

const (
	ConditionMomentum Condition = "momentum"
	ConditionChoppy   Condition = "choppy"
	ConditionMixed    Condition = "mixed"
	ConditionUnknown  Condition = "unknown"
)

// TradeEvaluation is the scored outcome of one executed trade. PnL fields
// are mark-to-market against the latest close within each horizon; Score
// is the composite rating in [-1, 1].
type TradeEvaluation struct {
	TradeDate       string        `json:"trade_date"`
	Symbol          string        `json:"symbol"`
	Action          signal.Action `json:"action"`
	Amount          float64       `json:"amount"`
	Regime          string        `json:"regime"`
	MarketCondition Condition     `json:"market_condition"`

	ContributionToDrawdown float64 `json:"contribution_to_drawdown"`
	SharpeImpact           float64 `json:"sharpe_impact"`
	WasProfitable          bool    `json:"was_profitable"`
	PnL                    float64 `json:"pnl"`
	PnL10D                 float64 `json:"pnl_10d"`
	PnL20D                 float64 `json:"pnl_20d"`
	PnL30D                 float64 `json:"pnl_30d"`
	BestHorizon            string  `json:"best_horizon"`

	ConfidenceBucket  string  `json:"confidence_bucket"`
	SignalType        string  `json:"signal_type"`
	Score             float64 `json:"score"`
	ShouldHaveAvoided bool    `json:"should_have_avoided"`
}

// ConditionMetrics summarizes the trades that fell in one market
// condition, plus the two posture flags the tuner keys on.
type ConditionMetrics struct {
	Count                   int     `json:"count"`
	WinRate                 float64 `json:"win_rate"`
	AvgScore                float64 `json:"avg_score"`
	TotalPnL                float64 `json:"total_pnl"`
	AvgDrawdownContribution float64 `json:"avg_drawdown_contribution"`
	BuyCount                int     `json:"buy_count"`
	HoldCount               int     `json:"hold_count"`
	MoreAggressive          bool    `json:"should_be_more_aggressive"`
	MoreConservative        bool    `json:"should_be_more_conservative"`
}

// ConditionAnalysis groups condition metrics for the two tunable
// conditions plus the whole period. Mixed and unknown trades count only
// toward Overall.
type ConditionAnalysis struct {
	Momentum ConditionMetrics `json:"momentum"`
	Choppy   ConditionMetrics `json:"choppy"`
	Overall  ConditionMetrics `json:"overall"`
}

// BucketMetrics summarizes the trades in one confidence bucket,
// including how often each evaluation horizon was the best one.
type BucketMetrics struct {
	Count          int     `json:"count"`
	WinRate        float64 `json:"win_rate"`
	AvgPnL         float64 `json:"avg_pnl"`
	TotalPnL       float64 `json:"total_pnl"`
	AvgScore       float64 `json:"avg_score"`
	BestHorizon10D int     `json:"best_horizon_10d"`
	BestHorizon20D int     `json:"best_horizon_20d"`
	BestHorizon30D int     `json:"best_horizon_30d"`
}

// BucketAnalysis groups bucket metrics by signal confidence.
type BucketAnalysis struct {
	High   BucketMetrics `json:"high"`
	Medium BucketMetrics `json:"medium"`
	Low    BucketMetrics `json:"low"`
}

// SignalTypeMetrics summarizes the trades produced by one signal type.
type SignalTypeMetrics struct {
	Count    int     `json:"count"`
	WinRate  float64 `json:"win_rate"`
	TotalPnL float64 `json:"total_pnl"`
	AvgPnL   float64 `json:"avg_pnl"`
}
