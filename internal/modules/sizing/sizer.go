// Package sizing scales the daily buy budget before allocation. Three
// multiplicative factors: signal confidence, total capital (larger books
// deploy a smaller fraction) and a half-Kelly estimate from the trailing
// window of buy signals.
package sizing

import (
	"math"

	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

const (
	halfKellyDefault = 0.5
	halfKellyMin     = 0.10
	halfKellyMax     = 0.80

	defaultAvgWin  = 0.6
	defaultAvgLoss = 0.4

	// Dollars of capital beyond the top tier per extra point of reduction.
	capitalTaperDivisor = 2_000_000
)

// ConfidenceScale maps confidence in [0,1] onto a multiplier in
// [1-factor, 1]. A factor of zero disables confidence scaling entirely.
func ConfidenceScale(confidence float64, cfg *strategyconfig.TradingConfig) float64 {
	f := cfg.ConfidenceScalingFactor
	return (1 - f) + f*confidence
}

// CapitalScale reduces deployment as total capital grows, interpolating
// between the tier factors and tapering beyond the top tier down to the
// configured floor.
func CapitalScale(totalCapital float64, sc *strategyconfig.StrategyConstraints) float64 {
	switch {
	case totalCapital < sc.CapitalTier1Threshold:
		return sc.CapitalTier1Factor

	case totalCapital < sc.CapitalTier2Threshold:
		t := (totalCapital - sc.CapitalTier1Threshold) / (sc.CapitalTier2Threshold - sc.CapitalTier1Threshold)
		return lerp(sc.CapitalTier1Factor, sc.CapitalTier2Factor, t)

	case totalCapital < sc.CapitalTier3Threshold:
		t := (totalCapital - sc.CapitalTier2Threshold) / (sc.CapitalTier3Threshold - sc.CapitalTier2Threshold)
		return lerp(sc.CapitalTier2Factor, sc.CapitalTier3Factor, t)

	default:
		excess := totalCapital - sc.CapitalTier3Threshold
		extra := math.Min(sc.CapitalTier3Factor-sc.CapitalMaxReduction, excess/capitalTaperDivisor)
		return math.Max(sc.CapitalMaxReduction, sc.CapitalTier3Factor-extra)
	}
}

// HalfKelly estimates the Kelly fraction from the trailing window of buy
// signal confidences and halves it. Confidence above the threshold counts
// as a win weighted by the confidence itself, below as a loss weighted by
// its shortfall. Too few signals, either before or after filtering to
// buys, falls back to the neutral default.
func HalfKelly(totalSignals int, buyConfidences []float64, sc *strategyconfig.StrategyConstraints) float64 {
	if totalSignals < sc.MinTradesForKelly {
		return halfKellyDefault
	}
	if len(buyConfidences) < sc.MinTradesForKelly {
		return halfKellyDefault
	}

	wins, losses := 0, 0
	winSum, lossSum := 0.0, 0.0
	for _, conf := range buyConfidences {
		if conf > sc.KellyConfidenceThreshold {
			wins++
			winSum += conf
		} else {
			losses++
			lossSum += 1 - conf
		}
	}

	winRate := float64(wins) / float64(len(buyConfidences))

	avgWin := defaultAvgWin
	if wins > 0 {
		avgWin = winSum / float64(wins)
	}

	avgLoss := defaultAvgLoss
	if losses > 0 {
		avgLoss = lossSum / float64(losses)
	}
	if avgLoss == 0 {
		avgLoss = defaultAvgLoss
	}

	payoff := avgWin / avgLoss
	kelly := (winRate*payoff - (1 - winRate)) / payoff
	half := kelly * 0.5

	return clamp(half, halfKellyMin, halfKellyMax)
}

// Budget applies all three scales to the configured daily capital.
func Budget(dailyCapital, confidence, totalCapital float64, totalSignals int, buyConfidences []float64,
	cfg *strategyconfig.TradingConfig, sc *strategyconfig.StrategyConstraints) float64 {
	return dailyCapital *
		ConfidenceScale(confidence, cfg) *
		CapitalScale(totalCapital, sc) *
		HalfKelly(totalSignals, buyConfidences, sc)
}

// Helper functions

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
