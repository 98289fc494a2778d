package tuning

import (
	"fmt"
	"math"
	"strings"

	"github.com/atlasquant/signal-engine/internal/modules/analysis"
	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

// sellSignalPrefixes identifies the signal types whose trades are sells.
// neutral_high_risk_deleverage is listed in full so the prefix cannot
// swallow the neutral_high_risk hold type.
var sellSignalPrefixes = []string{
	"downward_pressure",
	"bearish",
	"extreme_risk",
	"neutral_high_risk_deleverage",
	"bullish_excessive_risk",
}

// Tune applies the bidirectional tuning rules to a copy of current and
// returns the candidate together with the adjustments made. Rules move
// each parameter by its configured step and clamp it to its tunable
// bounds; an adjustment is recorded only when the value actually moved.
func Tune(current *strategyconfig.TradingConfig, conditions analysis.ConditionAnalysis,
	buckets analysis.BucketAnalysis, signalTypes map[string]analysis.SignalTypeMetrics,
	overall performance.Metrics) (*strategyconfig.TradingConfig, []Adjustment) {

	next := *current
	next.Assets = append([]string(nil), current.Assets...)

	var adjustments []Adjustment
	apply := func(parameter string, field *float64, to float64, reason string) {
		if *field == to {
			return
		}
		adjustments = append(adjustments, Adjustment{Parameter: parameter, From: *field, To: to, Reason: reason})
		*field = to
	}

	// 1. Allocation posture from momentum performance. Both branches can
	// fire when a bucket wins often but still drags the account down.
	if conditions.Momentum.MoreAggressive {
		reason := "momentum trades won often with low participation"
		apply("allocation_low_risk", &next.AllocationLowRisk,
			math.Min(current.TuneAllocationLowRiskMax, next.AllocationLowRisk+current.TuneAllocationStep), reason)
		apply("allocation_medium_risk", &next.AllocationMediumRisk,
			math.Min(current.TuneAllocationMediumRiskMax, next.AllocationMediumRisk+current.TuneAllocationStep), reason)
	}
	if conditions.Momentum.MoreConservative {
		reason := "momentum trades underperformed"
		apply("allocation_low_risk", &next.AllocationLowRisk,
			math.Max(current.TuneAllocationLowRiskMin, next.AllocationLowRisk-current.TuneAllocationStep), reason)
		apply("allocation_medium_risk", &next.AllocationMediumRisk,
			math.Max(current.TuneAllocationMediumRiskMin, next.AllocationMediumRisk-current.TuneAllocationStep), reason)
	}

	// 2. Choppy markets only ever argue for pulling back.
	if conditions.Choppy.MoreConservative {
		reason := "choppy market trades underperformed"
		apply("allocation_neutral", &next.AllocationNeutral,
			math.Max(current.TuneAllocationNeutralMin, next.AllocationNeutral-current.TuneNeutralStep), reason)
		apply("risk_medium_threshold", &next.RiskMediumThreshold,
			math.Max(current.TuneRiskMediumThresholdMin, next.RiskMediumThreshold-current.TuneRiskThresholdStep), reason)
	}

	// 3. Drawdown tolerance, bidirectional.
	maxDD := overall.MaxDrawdown
	if maxDD > next.MaxDrawdownTolerance {
		reason := fmt.Sprintf("max drawdown %.1f%% exceeded tolerance", maxDD)
		apply("risk_high_threshold", &next.RiskHighThreshold,
			math.Max(current.TuneRiskHighThresholdMin, next.RiskHighThreshold-current.TuneRiskThresholdStep), reason)
		apply("allocation_high_risk", &next.AllocationHighRisk,
			math.Max(current.TuneAllocationHighRiskMin, next.AllocationHighRisk-current.TuneNeutralStep), reason)
	} else if maxDD < next.MaxDrawdownTolerance*0.5 && overall.SharpeRatio > next.MinSharpeTarget {
		reason := fmt.Sprintf("low drawdown %.1f%% with sharpe above target", maxDD)
		apply("risk_high_threshold", &next.RiskHighThreshold,
			math.Min(current.TuneRiskHighThresholdMax, next.RiskHighThreshold+current.TuneRiskThresholdStep), reason)
		apply("allocation_high_risk", &next.AllocationHighRisk,
			math.Min(current.TuneAllocationHighRiskMax, next.AllocationHighRisk+current.TuneNeutralStep*0.5), reason)
	}

	// 4. Selectivity from the Sharpe ratio.
	sharpe := overall.SharpeRatio
	if sharpe < next.MinSharpeTarget {
		reason := fmt.Sprintf("sharpe %.2f below target", sharpe)
		apply("regime_bullish_threshold", &next.RegimeBullishThreshold,
			math.Min(current.TuneRegimeBullishMax, next.RegimeBullishThreshold+current.TuneNeutralStep), reason)
		apply("risk_medium_threshold", &next.RiskMediumThreshold,
			math.Max(current.TuneRiskMediumThresholdMin, next.RiskMediumThreshold-current.TuneRiskThresholdStep), reason)
	} else if sharpe > next.MinSharpeTarget*current.TuneSharpeAggressiveThreshold {
		reason := fmt.Sprintf("sharpe %.2f well above target", sharpe)
		apply("regime_bullish_threshold", &next.RegimeBullishThreshold,
			math.Max(current.TuneRegimeBullishMin, next.RegimeBullishThreshold-current.TuneNeutralStep), reason)
	}

	// 5. Sell percentage from sell-signal effectiveness, win rate weighted
	// by trade count across the sell signal types.
	sellTrades := 0
	var sellWeightedWins, sellPnL float64
	for name, m := range signalTypes {
		if !isSellSignalType(name) {
			continue
		}
		sellTrades += m.Count
		sellWeightedWins += m.WinRate * float64(m.Count)
		sellPnL += m.TotalPnL
	}
	if sellTrades > 0 {
		sellWinRate := sellWeightedWins / float64(sellTrades)
		if sellWinRate < current.TuneSellIneffectiveWinRate {
			apply("sell_percentage", &next.SellPercentage,
				math.Max(current.TuneSellPercentageMin, next.SellPercentage-current.TuneSellStep),
				fmt.Sprintf("sell signals won %.1f%% of the time", sellWinRate))
		} else if sellWinRate > current.TuneSellEffectiveWinRate && sellPnL > 0 {
			apply("sell_percentage", &next.SellPercentage,
				math.Min(current.TuneSellPercentageMax, next.SellPercentage+current.TuneSellStep),
				fmt.Sprintf("sell signals won %.1f%% of the time and were profitable", sellWinRate))
		}
	}

	// 6. Confidence gate from bucket win rates.
	minTrades := current.TuneMinBucketTrades
	if buckets.High.Count >= minTrades && buckets.High.WinRate < current.TuneHighBucketWinRate {
		apply("min_confidence_threshold", &next.MinConfidenceThreshold,
			math.Min(current.TuneMinConfidenceMax, next.MinConfidenceThreshold+current.TuneConfidenceStep),
			fmt.Sprintf("high confidence trades won only %.1f%%", buckets.High.WinRate))
	}
	if buckets.Low.Count >= minTrades && buckets.Low.WinRate > current.TuneLowBucketWinRate {
		apply("min_confidence_threshold", &next.MinConfidenceThreshold,
			math.Max(current.TuneMinConfidenceMin, next.MinConfidenceThreshold-current.TuneConfidenceStep),
			fmt.Sprintf("low confidence trades won %.1f%%", buckets.Low.WinRate))
	}

	// 7. Mean reversion allocation from its own signal type.
	if mr, ok := signalTypes["mean_reversion_oversold"]; ok && mr.Count >= minTrades {
		if mr.WinRate < current.TuneMRIneffectiveWinRate {
			apply("mean_reversion_allocation", &next.MeanReversionAllocation,
				math.Max(current.TuneMRAllocationMin, next.MeanReversionAllocation-current.TuneAllocationStep),
				fmt.Sprintf("mean reversion entries won only %.1f%%", mr.WinRate))
		} else if mr.WinRate > current.TuneMREffectiveWinRate {
			apply("mean_reversion_allocation", &next.MeanReversionAllocation,
				math.Min(current.TuneMRAllocationMax, next.MeanReversionAllocation+current.TuneAllocationStep),
				fmt.Sprintf("mean reversion entries won %.1f%%", mr.WinRate))
		}
	}

	// 8. Risk weight split from the high-minus-low win rate gap. The
	// weights always renormalize to sum one, so the correlation weight is
	// whatever the clamped volatility weight leaves.
	if buckets.High.Count >= minTrades && buckets.Low.Count >= minTrades {
		gap := buckets.High.WinRate - buckets.Low.WinRate
		if gap < current.TuneRiskWeightGapThreshold {
			reason := fmt.Sprintf("confidence ranking inverted (gap %.1f%%)", gap)
			vol := clamp(next.RiskVolatilityWeight-current.TuneRiskWeightStep,
				current.TuneRiskVolatilityWeightMin, current.TuneRiskVolatilityWeightMax)
			apply("risk_volatility_weight", &next.RiskVolatilityWeight, vol, reason)
			apply("risk_correlation_weight", &next.RiskCorrelationWeight, 1-vol, reason)
		} else if gap > current.TuneRiskWeightStrongGap {
			reason := fmt.Sprintf("confidence ranking strong (gap %.1f%%)", gap)
			vol := clamp(next.RiskVolatilityWeight+current.TuneRiskWeightStep,
				current.TuneRiskVolatilityWeightMin, current.TuneRiskVolatilityWeightMax)
			apply("risk_volatility_weight", &next.RiskVolatilityWeight, vol, reason)
			apply("risk_correlation_weight", &next.RiskCorrelationWeight, 1-vol, reason)
		}
	}

	return &next, adjustments
}

// Helper functions

func isSellSignalType(name string) bool {
	for _, prefix := range sellSignalPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
