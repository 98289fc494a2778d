package performance

import (
	"math"

	"github.com/atlasquant/signal-engine/pkg/formulas"
)

// annualTradingDays annualizes daily return statistics.
const annualTradingDays = 252

// Daily is one performance_metrics row. Returns are percentages.
// CumulativeReturn is the lifetime return against total capital granted.
type Daily struct {
	Date             string  `json:"date"`
	PortfolioValue   float64 `json:"portfolio_value"`
	CashBalance      float64 `json:"cash_balance"`
	TotalValue       float64 `json:"total_value"`
	DailyReturn      float64 `json:"daily_return"`
	CumulativeReturn float64 `json:"cumulative_return"`
}

// Metrics summarizes a total-value series.
type Metrics struct {
	SharpeRatio  float64   `json:"sharpe_ratio"`
	MaxDrawdown  float64   `json:"max_drawdown"`
	TotalReturn  float64   `json:"total_return"`
	TotalDays    int       `json:"total_days"`
	DailyReturns []float64 `json:"daily_returns,omitempty"`
}

// Compute derives period metrics from consecutive daily rows. Daily
// returns are percent moves in total value, skipping days whose prior
// value is not positive. Sharpe annualizes with the sample standard
// deviation and needs at least two returns with spread; drawdown is the
// largest percent decline from a running peak.
func Compute(rows []Daily, riskFreeRate float64) Metrics {
	if len(rows) == 0 {
		return Metrics{}
	}

	var dailyReturns []float64
	for i := 1; i < len(rows); i++ {
		prev := rows[i-1].TotalValue
		if prev > 0 {
			dailyReturns = append(dailyReturns, (rows[i].TotalValue-prev)/prev*100)
		}
	}

	var sharpe float64
	if len(dailyReturns) > 1 {
		mean := formulas.Mean(dailyReturns)
		std := formulas.StdDev(dailyReturns)
		if std > 0 {
			sharpe = (mean*annualTradingDays - riskFreeRate) / (std * math.Sqrt(annualTradingDays))
		}
	}

	var peak, maxDD float64
	for _, row := range rows {
		if row.TotalValue > peak {
			peak = row.TotalValue
		}
		if peak > 0 {
			if dd := (peak - row.TotalValue) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}

	var totalReturn float64
	if start := rows[0].TotalValue; start > 0 {
		totalReturn = (rows[len(rows)-1].TotalValue - start) / start * 100
	}

	return Metrics{
		SharpeRatio:  sharpe,
		MaxDrawdown:  maxDD,
		TotalReturn:  totalReturn,
		TotalDays:    len(rows),
		DailyReturns: dailyReturns,
	}
}
