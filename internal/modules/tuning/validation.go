package tuning

import (
	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

// Validate checks a tuned candidate against the held-out test slice. The
// candidate supplies the targets it promises to meet; the active config
// supplies the tolerances and weights. A test slice with no performance
// rows reports zero Sharpe and fails the drawdown check outright.
func Validate(testMetrics performance.Metrics, candidate, current *strategyconfig.TradingConfig,
	trainStart, trainEnd, testStart, testEnd string) ValidationResult {

	ddForCheck := testMetrics.MaxDrawdown
	if testMetrics.TotalDays == 0 {
		ddForCheck = 100
	}

	sharpePasses := testMetrics.SharpeRatio >= candidate.MinSharpeTarget*current.ValidationSharpeTolerance
	drawdownPasses := ddForCheck <= candidate.MaxDrawdownTolerance*current.ValidationDDTolerance

	score := 0.0
	if sharpePasses {
		score += current.ValidationSharpeWeight
	}
	if drawdownPasses {
		score += current.ValidationDrawdownWeight
	}

	return ValidationResult{
		Passes:          score >= current.ValidationPassingScore,
		Score:           score,
		TestSharpe:      testMetrics.SharpeRatio,
		TestMaxDrawdown: testMetrics.MaxDrawdown,
		SharpePasses:    sharpePasses,
		DrawdownPasses:  drawdownPasses,
		TrainPeriod:     trainStart + " to " + trainEnd,
		TestPeriod:      testStart + " to " + testEnd,
	}
}
