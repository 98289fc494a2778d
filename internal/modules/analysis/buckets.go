package analysis

import (
	"github.com/atlasquant/signal-engine/internal/modules/risk"
	"github.com/atlasquant/signal-engine/internal/modules/signal"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

// ByCondition summarizes evaluations per market condition. The posture
// flags compare each bucket against the tunable aggressive/conservative
// thresholds; an empty bucket reports zeros with both flags off.
func ByCondition(evals []TradeEvaluation, cfg *strategyconfig.TradingConfig) ConditionAnalysis {
	var momentum, choppy []TradeEvaluation
	for _, e := range evals {
		switch e.MarketCondition {
		case ConditionMomentum:
			momentum = append(momentum, e)
		case ConditionChoppy:
			choppy = append(choppy, e)
		}
	}

	return ConditionAnalysis{
		Momentum: conditionMetrics(momentum, cfg),
		Choppy:   conditionMetrics(choppy, cfg),
		Overall:  conditionMetrics(evals, cfg),
	}
}

// ByConfidenceBucket summarizes evaluations per signal confidence bucket.
func ByConfidenceBucket(evals []TradeEvaluation) BucketAnalysis {
	var high, medium, low []TradeEvaluation
	for _, e := range evals {
		switch e.ConfidenceBucket {
		case risk.BucketHigh:
			high = append(high, e)
		case risk.BucketMedium:
			medium = append(medium, e)
		case risk.BucketLow:
			low = append(low, e)
		}
	}

	return BucketAnalysis{
		High:   bucketMetrics(high),
		Medium: bucketMetrics(medium),
		Low:    bucketMetrics(low),
	}
}

// BySignalType groups evaluations by the signal type that produced them.
func BySignalType(evals []TradeEvaluation) map[string]SignalTypeMetrics {
	groups := make(map[string][]TradeEvaluation)
	for _, e := range evals {
		groups[e.SignalType] = append(groups[e.SignalType], e)
	}

	results := make(map[string]SignalTypeMetrics, len(groups))
	for signalType, trades := range groups {
		wins := 0
		totalPnL := 0.0
		for _, t := range trades {
			if t.WasProfitable {
				wins++
			}
			totalPnL += t.PnL
		}

		results[signalType] = SignalTypeMetrics{
			Count:    len(trades),
			WinRate:  float64(wins) / float64(len(trades)) * 100,
			TotalPnL: totalPnL,
			AvgPnL:   totalPnL / float64(len(trades)),
		}
	}

	return results
}

// Helper functions

func conditionMetrics(trades []TradeEvaluation, cfg *strategyconfig.TradingConfig) ConditionMetrics {
	if len(trades) == 0 {
		return ConditionMetrics{}
	}

	n := float64(len(trades))
	wins := 0
	buys := 0
	holds := 0
	var scoreSum, pnlSum, ddSum float64
	for _, t := range trades {
		if t.WasProfitable {
			wins++
		}
		switch t.Action {
		case signal.ActionBuy:
			buys++
		case signal.ActionHold:
			holds++
		}
		scoreSum += t.Score
		pnlSum += t.PnL
		ddSum += t.ContributionToDrawdown
	}

	winRate := float64(wins) / n * 100
	avgScore := scoreSum / n
	avgDD := ddSum / n

	// High win rate with low participation means the strategy sat out
	// winnable days; low win rate or heavy drawdown argues for pulling back.
	moreAggressive := winRate > cfg.TuneAggressiveWinRate &&
		float64(buys) < n*cfg.TuneAggressiveParticipation &&
		avgScore > cfg.TuneAggressiveScore
	moreConservative := winRate < cfg.TuneConservativeWinRate ||
		avgDD > cfg.TuneConservativeDD ||
		avgScore < cfg.TuneConservativeScore

	return ConditionMetrics{
		Count:                   len(trades),
		WinRate:                 winRate,
		AvgScore:                avgScore,
		TotalPnL:                pnlSum,
		AvgDrawdownContribution: avgDD,
		BuyCount:                buys,
		HoldCount:               holds,
		MoreAggressive:          moreAggressive,
		MoreConservative:        moreConservative,
	}
}

func bucketMetrics(trades []TradeEvaluation) BucketMetrics {
	if len(trades) == 0 {
		return BucketMetrics{}
	}

	n := float64(len(trades))
	wins := 0
	var pnlSum, scoreSum float64
	var best10, best20, best30 int
	for _, t := range trades {
		if t.WasProfitable {
			wins++
		}
		pnlSum += t.PnL
		scoreSum += t.Score
		switch t.BestHorizon {
		case "10d":
			best10++
		case "20d":
			best20++
		case "30d":
			best30++
		}
	}

	return BucketMetrics{
		Count:          len(trades),
		WinRate:        float64(wins) / n * 100,
		AvgPnL:         pnlSum / n,
		TotalPnL:       pnlSum,
		AvgScore:       scoreSum / n,
		BestHorizon10D: best10,
		BestHorizon20D: best20,
		BestHorizon30D: best30,
	}
}
