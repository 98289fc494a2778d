package signal

import (
	"time"

	"github.com/atlasquant/signal-engine/internal/modules/circuitbreaker"
)

// ModelTypeRegimeBased labels signals produced by the regime cascade.
const ModelTypeRegimeBased = "regime_based"

// AssetSnapshot is the per-asset feature slice stored alongside each
// signal so evaluation can reconstruct the inputs later.
type AssetSnapshot struct {
	Returns5D  float64 `json:"returns_5d"`
	Returns20D float64 `json:"returns_20d"`
	Returns60D float64 `json:"returns_60d"`
	Volatility float64 `json:"volatility"`
	Score      float64 `json:"score"`
}

// Features is the features_used payload persisted with every signal.
// ConfidenceScore is duplicated here from the row column so the payload
// stays self-contained for downstream readers.
type Features struct {
	Regime           float64                  `json:"regime"`
	Risk             float64                  `json:"risk"`
	Action           string                   `json:"action"`
	AllocationPct    float64                  `json:"allocation_pct"`
	SignalType       string                   `json:"signal_type"`
	ConfidenceScore  float64                  `json:"confidence_score"`
	ConfidenceBucket string                   `json:"confidence_bucket"`
	CircuitBreaker   circuitbreaker.Result    `json:"circuit_breaker"`
	Assets           map[string]AssetSnapshot `json:"assets"`
}

// DailySignal is one row of the signal ledger. Allocations maps symbols
// to dollar amounts for a BUY, to negative sell fractions for a SELL, and
// to zeros for a HOLD.
type DailySignal struct {
	ID              int64              `json:"id"`
	TradeDate       string             `json:"trade_date"`
	GeneratedAt     time.Time          `json:"generated_at"`
	Allocations     map[string]float64 `json:"allocations"`
	ModelType       string             `json:"model_type"`
	ConfidenceScore float64            `json:"confidence_score"`
	FeaturesUsed    Features           `json:"features_used"`
}

// Action returns the stored action, defaulting to HOLD for legacy rows
// without a features payload.
func (s *DailySignal) Action() Action {
	switch Action(s.FeaturesUsed.Action) {
	case ActionBuy, ActionSell:
		return Action(s.FeaturesUsed.Action)
	default:
		return ActionHold
	}
}
