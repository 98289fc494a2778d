package analysis

import (
	"math"

	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
	"github.com/atlasquant/signal-engine/pkg/formulas"
)

// BenchmarkSymbol is the index proxy whose closes classify the overall
// market condition.
const BenchmarkSymbol = "SPY"

const (
	// ConditionWindowDays is how many closes the classifier fits.
	ConditionWindowDays = 20

	// ConditionLookbackBuffer pads the calendar lookback so weekends and
	// holidays still leave a full window of bars.
	ConditionLookbackBuffer = 15
)

// DetectMarketCondition classifies the benchmark's recent behavior from
// its closes, oldest first. Only the trailing window closes are fitted;
// fewer closes than the window yields ConditionUnknown.
//
// Momentum needs a consistent trend: regression R-squared above the
// r-squared threshold with a slope clear of zero. Choppy is a weak fit or
// volatile daily returns. Anything between is mixed.
func DetectMarketCondition(closes []float64, window int, cfg *strategyconfig.TradingConfig) Condition {
	if window <= 0 || len(closes) < window {
		return ConditionUnknown
	}

	prices := closes[len(closes)-window:]

	slope, rSquared := formulas.LinearTrend(prices)
	volatility := formulas.PopStdDev(formulas.CalculateReturns(prices))

	switch {
	case rSquared > cfg.MarketConditionRSquared && math.Abs(slope) > cfg.MarketConditionSlope:
		return ConditionMomentum
	case rSquared < cfg.MarketConditionChoppyRSquared || volatility > cfg.MarketConditionChoppyVolatility:
		return ConditionChoppy
	default:
		return ConditionMixed
	}
}
