package tuning

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/atlasquant/signal-engine/internal/modules/analysis"
	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

var reportSeparator = strings.Repeat("=", 80)

// Only differences past this are worth a report line; smaller ones are
// clamp jitter.
const reportChangeEpsilon = 0.001

// BuildReport renders the plain-text tuning report stored with each run.
// previous supplies the evaluation thresholds and the diff baseline;
// candidate is the tuned config before any validation verdict.
func BuildReport(previous, candidate *strategyconfig.TradingConfig, evals []analysis.TradeEvaluation,
	conditions analysis.ConditionAnalysis, overall performance.Metrics,
	periodStart, periodEnd string, validation *ValidationResult, generatedAt time.Time) string {

	var b strings.Builder
	section := func(title string) {
		fmt.Fprintf(&b, "%s\n%s\n%s\n\n", reportSeparator, title, reportSeparator)
	}

	section("MONTHLY STRATEGY TUNING REPORT")
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Analysis Period: %s to %s\n", periodStart, periodEnd)
	fmt.Fprintf(&b, "Total Trading Days: %d\n\n", overall.TotalDays)

	section("OVERALL PERFORMANCE METRICS")
	fmt.Fprintf(&b, "Total Return: %+.2f%%\n", overall.TotalReturn)
	fmt.Fprintf(&b, "Sharpe Ratio: %.3f\n", overall.SharpeRatio)
	fmt.Fprintf(&b, "Max Drawdown: %.2f%%\n\n", overall.MaxDrawdown)

	section("TRADE EVALUATION SUMMARY")
	good, avoided := 0, 0
	for _, e := range evals {
		if e.Score > previous.GoodTradeScoreThreshold {
			good++
		}
		if e.ShouldHaveAvoided {
			avoided++
		}
	}
	fmt.Fprintf(&b, "Total Trades Analyzed: %d\n", len(evals))
	if len(evals) > 0 {
		n := float64(len(evals))
		fmt.Fprintf(&b, "Good Trades (score > %g): %d (%.1f%%)\n",
			previous.GoodTradeScoreThreshold, good, float64(good)/n*100)
		fmt.Fprintf(&b, "Trades That Should Have Been Avoided: %d (%.1f%%)\n",
			avoided, float64(avoided)/n*100)
	}
	b.WriteString("\n")

	section("PERFORMANCE BY MARKET CONDITION")
	conditionSections := []struct {
		name    string
		metrics analysis.ConditionMetrics
	}{
		{"MOMENTUM", conditions.Momentum},
		{"CHOPPY", conditions.Choppy},
		{"OVERALL", conditions.Overall},
	}
	for _, cs := range conditionSections {
		fmt.Fprintf(&b, "%s:\n", cs.name)
		fmt.Fprintf(&b, "  Trades: %d\n", cs.metrics.Count)
		if cs.metrics.Count > 0 {
			fmt.Fprintf(&b, "  Win Rate: %.1f%%\n", cs.metrics.WinRate)
			fmt.Fprintf(&b, "  Avg Score: %+.3f\n", cs.metrics.AvgScore)
			fmt.Fprintf(&b, "  Total P&L: $%s\n", formatMoney(cs.metrics.TotalPnL))
		}
		b.WriteString("\n")
	}

	section("PARAMETER ADJUSTMENTS")
	oldValues := previous.ParamValues()
	newValues := candidate.ParamValues()
	keys := make([]string, 0, len(oldValues))
	for k := range oldValues {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changed := false
	for _, k := range keys {
		delta := newValues[k] - oldValues[k]
		if math.Abs(delta) > reportChangeEpsilon {
			fmt.Fprintf(&b, "%s: %.3f -> %.3f (%+.3f)\n", k, oldValues[k], newValues[k], delta)
			changed = true
		}
	}
	if !changed {
		b.WriteString("No parameter changes recommended - current strategy is performing well\n")
	}
	b.WriteString("\n")

	section("OUT-OF-SAMPLE VALIDATION")
	if validation == nil {
		b.WriteString("Validation skipped: not enough history for a train/test split\n")
	} else {
		fmt.Fprintf(&b, "Train Period: %s\n", validation.TrainPeriod)
		fmt.Fprintf(&b, "Test Period: %s\n", validation.TestPeriod)
		fmt.Fprintf(&b, "Test Sharpe: %.3f\n", validation.TestSharpe)
		fmt.Fprintf(&b, "Test Max Drawdown: %.2f%%\n", validation.TestMaxDrawdown)
		fmt.Fprintf(&b, "Sharpe Check: %s\n", passLabel(validation.SharpePasses))
		fmt.Fprintf(&b, "Drawdown Check: %s\n", passLabel(validation.DrawdownPasses))
		fmt.Fprintf(&b, "Validation Score: %.2f\n", validation.Score)
		if validation.Passes {
			b.WriteString("Result: candidate accepted\n")
		} else {
			b.WriteString("Result: candidate rejected - keeping previous parameters\n")
		}
	}

	return b.String()
}

// Helper functions

func passLabel(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

// formatMoney renders a signed amount with thousands separators, e.g.
// -12,345.60.
func formatMoney(v float64) string {
	sign := "+"
	if v < 0 {
		sign = "-"
	}

	s := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	dot := strings.IndexByte(s, '.')
	intPart, frac := s[:dot], s[dot:]

	var grouped strings.Builder
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteByte(intPart[i])
	}

	return sign + grouped.String() + frac
}
