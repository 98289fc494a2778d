package backtest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atlasquant/signal-engine/internal/modules/performance"
)

func fullReport() *Report {
	return &Report{
		Start:       "2024-01-02",
		End:         "2024-03-28",
		DailyBudget: 1000,

		TradingDays:  61,
		LifetimeDays: 120,

		TotalGrants:       120000,
		FinalValue:        131234.56,
		FinalHoldings:     98000.06,
		FinalCash:         33234.50,
		LifetimeReturn:    11234.56,
		LifetimeReturnPct: 9.36,

		Period: performance.Metrics{TotalReturn: 12.5, SharpeRatio: 1.234, MaxDrawdown: 4.56, TotalDays: 61},

		Benchmarks: []BenchmarkResult{
			{Symbol: "SPY", Value: 125000, Return: 5000, ReturnPct: 4.17},
			{Symbol: "QQQ", Value: 118500.25, Return: -1499.75, ReturnPct: -1.25},
		},

		BestDay:     DayStat{Date: "2024-02-22", ReturnPct: 2.31},
		WorstDay:    DayStat{Date: "2024-03-05", ReturnPct: -1.87},
		WinningDays: 34,
		WinRate:     55.7,

		Positions: []PositionReport{
			{Symbol: "QQQ", Quantity: 12.3456, AvgCost: 410.12, Value: 5200, PnL: 137.06, PnLPct: 2.71},
			{Symbol: "SPY", Quantity: 50.5, AvgCost: 470, Value: 22725, PnL: -1010, PnLPct: -4.25},
		},
	}
}

func TestFormatFullReport(t *testing.T) {
	out := fullReport().Format()

	assert.Contains(t, out, strings.Repeat("=", 60))
	assert.Contains(t, out, "BACKTEST REPORT: 2024-01-02 to 2024-03-28")
	assert.Contains(t, out, "Trading Days (This Period): 61")
	assert.Contains(t, out, "Trading Days (Lifetime): 120")

	assert.Contains(t, out, "LIFETIME ACCOUNT PERFORMANCE")
	assert.Contains(t, out, "Total Grants: $120,000.00")
	assert.Contains(t, out, "Current Portfolio: $131,234.56")
	assert.Contains(t, out, "   Holdings: $98,000.06")
	assert.Contains(t, out, "   Cash: $33,234.50")
	assert.Contains(t, out, "P&L: $11,234.56 (+9.36%)")

	assert.Contains(t, out, "PERIOD METRICS")
	assert.Contains(t, out, "Total Return: +12.50%")
	assert.Contains(t, out, "Sharpe Ratio: 1.234")
	assert.Contains(t, out, "Max Drawdown: 4.56%")

	assert.Contains(t, out, "BENCHMARK COMPARISON (100% Daily Investment)")
	assert.Contains(t, out, "SPY: $125,000.00 | P&L: $5,000.00 (+4.17%)")
	assert.Contains(t, out, "QQQ: $118,500.25 | P&L: $-1,499.75 (-1.25%)")

	assert.Contains(t, out, "DAILY STATISTICS")
	assert.Contains(t, out, "Best Day: 2024-02-22 (+2.31%)")
	assert.Contains(t, out, "Worst Day: 2024-03-05 (-1.87%)")
	assert.Contains(t, out, "Win Rate: 55.7% (34/61 days)")

	assert.Contains(t, out, "FINAL PORTFOLIO POSITIONS")
	assert.Contains(t, out, "CASH: $33,234.50")
	assert.Contains(t, out, "QQQ: 12.3456 shares @ $410.12 avg")
	assert.Contains(t, out, "   Current: $5,200.00 | P&L: $+137.06 (+2.71%)")
	assert.Contains(t, out, "SPY: 50.5000 shares @ $470.00 avg")
	assert.Contains(t, out, "   Current: $22,725.00 | P&L: $-1,010.00 (-4.25%)")

	// Cash leads the positions section.
	assert.Less(t, strings.Index(out, "CASH: $"), strings.Index(out, "QQQ: 12.3456"))
}

func TestFormatEmptyReport(t *testing.T) {
	rep := &Report{Start: "2024-01-02", End: "2024-01-08"}
	out := rep.Format()

	assert.Contains(t, out, "BACKTEST REPORT: 2024-01-02 to 2024-01-08")
	assert.Contains(t, out, "No performance data found")
	assert.NotContains(t, out, "LIFETIME ACCOUNT PERFORMANCE")
	assert.NotContains(t, out, "FINAL PORTFOLIO POSITIONS")
}

func TestFormatReportWithoutPositions(t *testing.T) {
	rep := fullReport()
	rep.Positions = nil
	out := rep.Format()

	assert.Contains(t, out, "No asset positions")
	assert.NotContains(t, out, "shares @")
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{100, "100.00"},
		{-42, "-42.00"},
		{999.999, "1,000.00"},
		{1234.5, "1,234.50"},
		{1234567.891, "1,234,567.89"},
		{-9876543.21, "-9,876,543.21"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, money(tt.in), "money(%v)", tt.in)
	}
}

func TestSignedMoney(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "+0.00"},
		{137.06, "+137.06"},
		{-1010, "-1,010.00"},
		{1234567.891, "+1,234,567.89"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, signedMoney(tt.in), "signedMoney(%v)", tt.in)
	}
}
