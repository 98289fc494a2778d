package backtest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

// BenchmarkResult values a buy-and-hold alternative that invested the
// full daily budget into one symbol at the open every trading day.
type BenchmarkResult struct {
	Symbol    string
	Value     float64
	Return    float64
	ReturnPct float64
}

// DayStat is a single day picked out of the period series.
type DayStat struct {
	Date      string
	ReturnPct float64
}

// PositionReport is one held position valued at the final close.
type PositionReport struct {
	Symbol   string
	Quantity float64
	AvgCost  float64
	Value    float64
	PnL      float64
	PnLPct   float64
}

// Report summarizes a completed backtest. Lifetime figures cover every
// metrics row up to the final simulated day, so a run that continues an
// earlier one reports the account's whole history, not just the period.
type Report struct {
	Start       string
	End         string
	DailyBudget float64

	TradingDays  int
	LifetimeDays int

	TotalGrants       float64
	FinalValue        float64
	FinalHoldings     float64
	FinalCash         float64
	LifetimeReturn    float64
	LifetimeReturnPct float64

	Period performance.Metrics

	Benchmarks []BenchmarkResult

	BestDay     DayStat
	WorstDay    DayStat
	WinningDays int
	WinRate     float64

	Positions []PositionReport
}

// buildReport assembles the report from the metrics series the run just
// wrote plus whatever history preceded it.
func (r *Runner) buildReport(start, end string, cfg *strategyconfig.TradingConfig) (*Report, error) {
	report := &Report{Start: start, End: end, DailyBudget: cfg.DailyCapital}

	series, err := r.deps.Metrics.Series(start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load performance series: %w", err)
	}
	if len(series) == 0 {
		return report, nil
	}

	last := series[len(series)-1]
	report.TradingDays = len(series)
	report.FinalValue = last.TotalValue
	report.FinalHoldings = last.PortfolioValue
	report.FinalCash = last.CashBalance

	lifetimeDays, err := r.deps.Metrics.CountThrough(last.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to count lifetime days: %w", err)
	}
	report.LifetimeDays = lifetimeDays
	report.TotalGrants = cfg.DailyCapital * float64(lifetimeDays)
	report.LifetimeReturn = report.FinalValue - report.TotalGrants
	if report.TotalGrants > 0 {
		report.LifetimeReturnPct = report.LifetimeReturn / report.TotalGrants * 100
	}

	constraints, err := r.deps.Constraints.GetActive(end)
	if err != nil {
		return nil, fmt.Errorf("failed to load constraints: %w", err)
	}
	report.Period = performance.Compute(series, constraints.RiskFreeRate)

	finalCloses, err := r.deps.Market.ClosesOn(last.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to load closing prices: %w", err)
	}

	if err := r.addBenchmarks(report, cfg, last.Date, finalCloses); err != nil {
		return nil, err
	}

	best, worst := series[0], series[0]
	winning := 0
	for _, row := range series {
		if row.DailyReturn > best.DailyReturn {
			best = row
		}
		if row.DailyReturn < worst.DailyReturn {
			worst = row
		}
		if row.DailyReturn > 0 {
			winning++
		}
	}
	report.BestDay = DayStat{Date: best.Date, ReturnPct: best.DailyReturn}
	report.WorstDay = DayStat{Date: worst.Date, ReturnPct: worst.DailyReturn}
	report.WinningDays = winning
	report.WinRate = float64(winning) / float64(len(series)) * 100

	positions, err := r.deps.Portfolio.AllPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	for _, pos := range positions {
		value := pos.Quantity * finalCloses[pos.Symbol]
		costBasis := pos.Quantity * pos.AvgCost
		pnl := value - costBasis
		pct := 0.0
		if costBasis > 0 {
			pct = pnl / costBasis * 100
		}
		report.Positions = append(report.Positions, PositionReport{
			Symbol:   pos.Symbol,
			Quantity: pos.Quantity,
			AvgCost:  pos.AvgCost,
			Value:    value,
			PnL:      pnl,
			PnLPct:   pct,
		})
	}

	return report, nil
}

// addBenchmarks simulates putting the entire daily budget into each
// tracked asset at the open on every day the account received a grant.
// Days without an open price for a symbol are skipped, and a symbol with
// no final close is left out entirely.
func (r *Runner) addBenchmarks(report *Report, cfg *strategyconfig.TradingConfig, lastDate string, finalCloses map[string]float64) error {
	grantDates, err := r.deps.Metrics.DatesThrough(lastDate)
	if err != nil {
		return fmt.Errorf("failed to load grant dates: %w", err)
	}

	for _, symbol := range cfg.Assets {
		closePrice, ok := finalCloses[symbol]
		if !ok || closePrice <= 0 {
			r.logger.Warn().Str("symbol", symbol).Str("date", lastDate).Msg("No final close for benchmark, skipping")
			continue
		}

		shares := 0.0
		for _, date := range grantDates {
			open, err := r.deps.Market.OpenOn(symbol, date)
			if err != nil {
				return fmt.Errorf("failed to load open price for %s: %w", symbol, err)
			}
			if open == nil || *open <= 0 {
				continue
			}
			shares += cfg.DailyCapital / *open
		}

		value := shares * closePrice
		ret := value - report.TotalGrants
		pct := 0.0
		if report.TotalGrants > 0 {
			pct = ret / report.TotalGrants * 100
		}
		report.Benchmarks = append(report.Benchmarks, BenchmarkResult{
			Symbol:    symbol,
			Value:     value,
			Return:    ret,
			ReturnPct: pct,
		})
	}
	return nil
}

// Format renders the report as plain text.
func (rep *Report) Format() string {
	sep := strings.Repeat("=", 60)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", sep)
	fmt.Fprintf(&b, "BACKTEST REPORT: %s to %s\n", rep.Start, rep.End)
	fmt.Fprintf(&b, "%s\n\n", sep)

	if rep.TradingDays == 0 {
		b.WriteString("No performance data found\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Trading Days (This Period): %d\n", rep.TradingDays)
	fmt.Fprintf(&b, "Trading Days (Lifetime): %d\n\n", rep.LifetimeDays)

	b.WriteString("LIFETIME ACCOUNT PERFORMANCE\n")
	fmt.Fprintf(&b, "Total Grants: $%s\n", money(rep.TotalGrants))
	fmt.Fprintf(&b, "Current Portfolio: $%s\n", money(rep.FinalValue))
	fmt.Fprintf(&b, "   Holdings: $%s\n", money(rep.FinalHoldings))
	fmt.Fprintf(&b, "   Cash: $%s\n", money(rep.FinalCash))
	fmt.Fprintf(&b, "P&L: $%s (%+.2f%%)\n\n", money(rep.LifetimeReturn), rep.LifetimeReturnPct)

	b.WriteString("PERIOD METRICS\n")
	fmt.Fprintf(&b, "Total Return: %+.2f%%\n", rep.Period.TotalReturn)
	fmt.Fprintf(&b, "Sharpe Ratio: %.3f\n", rep.Period.SharpeRatio)
	fmt.Fprintf(&b, "Max Drawdown: %.2f%%\n\n", rep.Period.MaxDrawdown)

	b.WriteString("BENCHMARK COMPARISON (100% Daily Investment)\n")
	for _, bench := range rep.Benchmarks {
		fmt.Fprintf(&b, "%s: $%s | P&L: $%s (%+.2f%%)\n",
			bench.Symbol, money(bench.Value), money(bench.Return), bench.ReturnPct)
	}
	b.WriteString("\n")

	b.WriteString("DAILY STATISTICS\n")
	fmt.Fprintf(&b, "Best Day: %s (%+.2f%%)\n", rep.BestDay.Date, rep.BestDay.ReturnPct)
	fmt.Fprintf(&b, "Worst Day: %s (%+.2f%%)\n", rep.WorstDay.Date, rep.WorstDay.ReturnPct)
	fmt.Fprintf(&b, "Win Rate: %.1f%% (%d/%d days)\n\n", rep.WinRate, rep.WinningDays, rep.TradingDays)

	fmt.Fprintf(&b, "%s\n", sep)
	b.WriteString("FINAL PORTFOLIO POSITIONS\n")
	fmt.Fprintf(&b, "%s\n\n", sep)

	fmt.Fprintf(&b, "CASH: $%s\n\n", money(rep.FinalCash))
	if len(rep.Positions) == 0 {
		b.WriteString("No asset positions\n")
	} else {
		for _, pos := range rep.Positions {
			fmt.Fprintf(&b, "%s: %.4f shares @ $%.2f avg\n", pos.Symbol, pos.Quantity, pos.AvgCost)
			fmt.Fprintf(&b, "   Current: $%s | P&L: $%s (%+.2f%%)\n\n", money(pos.Value), signedMoney(pos.PnL), pos.PnLPct)
		}
	}
	fmt.Fprintf(&b, "%s\n", sep)

	return b.String()
}

// Helper functions

// money renders a value with thousands separators, minus sign only.
func money(v float64) string {
	if v < 0 {
		return "-" + groupThousands(strconv.FormatFloat(-v, 'f', 2, 64))
	}
	return groupThousands(strconv.FormatFloat(v, 'f', 2, 64))
}

// signedMoney renders a value with thousands separators and an explicit
// sign, matching how the tuning report prints money.
func signedMoney(v float64) string {
	sign := "+"
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + groupThousands(strconv.FormatFloat(v, 'f', 2, 64))
}

func groupThousands(s string) string {
	dot := strings.IndexByte(s, '.')
	whole, frac := s[:dot], s[dot:]

	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return b.String() + frac
}
