package signal

import (
	"math"

	"github.com/atlasquant/signal-engine/internal/modules/meanreversion"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

// Action is the day's trade direction.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Decision is the outcome of the rule cascade. AllocationPct is the
// fraction of the sized budget to deploy for a BUY, or the fraction of
// holdings to liquidate for a SELL.
type Decision struct {
	Action        Action  `json:"action"`
	AllocationPct float64 `json:"allocation_pct"`
	SignalType    string  `json:"signal_type"`
}

// DecisionContext carries everything the cascade inspects for one day.
// Thresholds are the volatility-adjusted regime cutoffs; CashPct is the
// cash share of total value on a 0-100 scale. Drawdown is the intramonth
// drawdown from the circuit breaker; it is advisory and no current rule
// reads it.
type DecisionContext struct {
	RegimeScore      float64
	RiskScore        float64
	BullishThreshold float64
	BearishThreshold float64
	CashPct          float64
	Drawdown         float64
	HasHoldings      bool
	Pressure         meanreversion.Pressure
	Reversion        meanreversion.Signal
}

// decisionRule inspects the context and either claims the decision or
// returns nil to pass. Order is the whole contract: rules are evaluated
// top to bottom and the first claim wins.
type decisionRule struct {
	name   string
	decide func(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision
}

var decisionRules = []decisionRule{
	{"severe_pressure_sell", decideSeverePressure},
	{"moderate_pressure_sell", decideModeratePressure},
	{"extreme_risk_sell", decideExtremeRisk},
	{"bearish_regime", decideBearish},
	{"neutral_mean_reversion_buy", decideNeutralMeanReversion},
	{"neutral_deleverage_sell", decideNeutralDeleverage},
	{"neutral_high_risk_hold", decideNeutralHighRisk},
	{"neutral_cautious_buy", decideNeutralCautious},
	{"bullish_excessive_risk_sell", decideBullishExcessiveRisk},
	{"bullish_high_risk", decideBullishHighRisk},
	{"bullish_medium_risk_buy", decideBullishMediumRisk},
	{"bullish_momentum_buy", decideBullishMomentum},
}

// Decide runs the cascade. The final rule is total, so every context gets
// a decision.
func Decide(ctx DecisionContext, cfg *strategyconfig.TradingConfig) Decision {
	for _, rule := range decisionRules {
		if d := rule.decide(ctx, cfg); d != nil {
			return *d
		}
	}

	// The momentum rule never passes; this is unreachable
	return Decision{Action: ActionHold, SignalType: "no_rule_matched"}
}

// Severe pressure liquidates aggressively unless the book already sits
// mostly in cash, in which case it sells gently.
func decideSeverePressure(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision {
	if ctx.Pressure.Severity != meanreversion.PressureSevere || !ctx.HasHoldings {
		return nil
	}

	var pct float64
	if ctx.CashPct > cfg.DefensiveCashThreshold {
		pct = math.Min(cfg.SellPercentage*cfg.SellDefensiveMultiplier, cfg.SellPercentage)
	} else {
		pct = math.Min(cfg.SellPercentageMax, cfg.SellPercentage*cfg.SellAggressiveMultiplier)
	}

	return &Decision{Action: ActionSell, AllocationPct: pct, SignalType: "downward_pressure_severe"}
}

// Moderate pressure trims only while the regime is still weak and cash is
// not already defensive. With a defensive cash pile the rule passes and
// later rules decide.
func decideModeratePressure(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision {
	if ctx.Pressure.Severity != meanreversion.PressureModerate || !ctx.HasHoldings {
		return nil
	}
	if ctx.RegimeScore >= cfg.RegimeTransitionThreshold {
		return nil
	}
	if ctx.CashPct > cfg.DefensiveCashThreshold {
		return nil
	}

	return &Decision{
		Action:        ActionSell,
		AllocationPct: cfg.SellPercentage * cfg.SellModeratePressureMultiplier,
		SignalType:    "downward_pressure_moderate",
	}
}

func decideExtremeRisk(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision {
	if ctx.RiskScore <= cfg.ExtremeRiskThreshold || !ctx.HasHoldings {
		return nil
	}

	return &Decision{Action: ActionSell, AllocationPct: cfg.SellPercentage, SignalType: "extreme_risk_protection"}
}

// A bearish regime sells proportionally to how far below the threshold the
// score sits, or holds when there is nothing to sell.
func decideBearish(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision {
	if ctx.RegimeScore >= ctx.BearishThreshold {
		return nil
	}

	if !ctx.HasHoldings {
		return &Decision{Action: ActionHold, SignalType: "bearish_no_holdings"}
	}

	intensity := math.Abs(ctx.RegimeScore-ctx.BearishThreshold) / (1 - ctx.BearishThreshold)
	pct := math.Min(cfg.SellPercentage, cfg.BearishSellBase+intensity*cfg.BearishSellIntensityMultiplier)

	return &Decision{Action: ActionSell, AllocationPct: pct, SignalType: "bearish_regime"}
}

// Neutral band rules. All pass when the regime is above the bullish
// threshold so the bullish rules below take over.

func decideNeutralMeanReversion(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision {
	if ctx.RegimeScore > ctx.BullishThreshold {
		return nil
	}
	if ctx.Reversion.Kind != meanreversion.Oversold || ctx.RiskScore >= cfg.MeanReversionMaxRisk {
		return nil
	}

	return &Decision{
		Action:        ActionBuy,
		AllocationPct: cfg.MeanReversionAllocation,
		SignalType:    "mean_reversion_oversold",
	}
}

func decideNeutralDeleverage(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision {
	if ctx.RegimeScore > ctx.BullishThreshold {
		return nil
	}
	if ctx.RiskScore <= cfg.NeutralDeleverageRisk || !ctx.HasHoldings {
		return nil
	}

	return &Decision{
		Action:        ActionSell,
		AllocationPct: cfg.SellPercentage * cfg.SellModeratePressureMultiplier,
		SignalType:    "neutral_high_risk_deleverage",
	}
}

func decideNeutralHighRisk(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision {
	if ctx.RegimeScore > ctx.BullishThreshold {
		return nil
	}
	if ctx.RiskScore <= cfg.NeutralHoldRisk {
		return nil
	}

	return &Decision{Action: ActionHold, SignalType: "neutral_high_risk"}
}

func decideNeutralCautious(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision {
	if ctx.RegimeScore > ctx.BullishThreshold {
		return nil
	}

	return &Decision{
		Action:        ActionBuy,
		AllocationPct: cfg.AllocationNeutral,
		SignalType:    "neutral_cautious",
	}
}

// Bullish rules. Only reached when the regime score clears the adaptive
// bullish threshold.

func decideBullishExcessiveRisk(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision {
	if ctx.RiskScore <= cfg.BullishExcessiveRisk || !ctx.HasHoldings {
		return nil
	}

	return &Decision{
		Action:        ActionSell,
		AllocationPct: cfg.SellPercentage * cfg.SellBullishRiskMultiplier,
		SignalType:    "bullish_excessive_risk",
	}
}

func decideBullishHighRisk(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision {
	if ctx.RiskScore <= cfg.RiskHighThreshold {
		return nil
	}

	// The hold arm requires risk beyond the excessive threshold with
	// holdings, which the previous rule already sold; kept for parity with
	// the documented cascade
	if ctx.HasHoldings && ctx.RiskScore > cfg.BullishExcessiveRisk {
		return &Decision{Action: ActionHold, SignalType: "bullish_high_risk_hold"}
	}

	return &Decision{
		Action:        ActionBuy,
		AllocationPct: cfg.AllocationHighRisk,
		SignalType:    "bullish_high_risk",
	}
}

func decideBullishMediumRisk(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision {
	if ctx.RiskScore <= cfg.RiskMediumThreshold {
		return nil
	}

	return &Decision{
		Action:        ActionBuy,
		AllocationPct: cfg.AllocationMediumRisk,
		SignalType:    "bullish_medium_risk",
	}
}

func decideBullishMomentum(ctx DecisionContext, cfg *strategyconfig.TradingConfig) *Decision {
	return &Decision{
		Action:        ActionBuy,
		AllocationPct: cfg.AllocationLowRisk,
		SignalType:    "bullish_momentum",
	}
}
