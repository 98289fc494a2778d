package performance

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/modules/portfolio"
)

// PortfolioView is the portfolio state a snapshot values.
type PortfolioView interface {
	AllPositions() ([]portfolio.Position, error)
	CashBalance() (float64, error)
}

// MarketData supplies closing prices for valuation.
type MarketData interface {
	ClosesOn(date string) (map[string]float64, error)
}

// Snapshot computes the end-of-day performance row from portfolio state
// and that day's closing prices.
type Snapshot struct {
	metrics   *Repository
	portfolio PortfolioView
	market    MarketData
	logger    zerolog.Logger
}

func NewSnapshot(metrics *Repository, portfolio PortfolioView, market MarketData, logger zerolog.Logger) *Snapshot {
	return &Snapshot{
		metrics:   metrics,
		portfolio: portfolio,
		market:    market,
		logger:    logger.With().Str("component", "performance_snapshot").Logger(),
	}
}

// ComputeDaily builds the row for tradeDate without writing it. Holdings
// are valued at that day's close, zero when the close is missing. The
// lifetime return compares total value against cumulative daily grants,
// one grant per already-recorded metrics day.
func (s *Snapshot) ComputeDaily(tradeDate string, dailyBudget float64) (*Daily, error) {
	cash, err := s.portfolio.CashBalance()
	if err != nil {
		return nil, fmt.Errorf("failed to read cash balance: %w", err)
	}

	positions, err := s.portfolio.AllPositions()
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	closes, err := s.market.ClosesOn(tradeDate)
	if err != nil {
		return nil, fmt.Errorf("failed to read closes for %s: %w", tradeDate, err)
	}

	var portfolioValue float64
	for _, pos := range positions {
		portfolioValue += pos.Quantity * closes[pos.Symbol]
	}
	totalValue := portfolioValue + cash

	grantDays, err := s.metrics.CountThrough(tradeDate)
	if err != nil {
		return nil, err
	}
	totalGrants := dailyBudget * float64(grantDays)

	var cumulativeReturn float64
	if totalGrants > 0 {
		cumulativeReturn = (totalValue - totalGrants) / totalGrants * 100
	}

	var dailyReturn float64
	prev, err := s.metrics.PreviousTotalValue(tradeDate)
	if err != nil {
		return nil, err
	}
	if prev != nil && *prev > 0 {
		dailyReturn = (totalValue - *prev) / *prev * 100
	}

	return &Daily{
		Date:             tradeDate,
		PortfolioValue:   portfolioValue,
		CashBalance:      cash,
		TotalValue:       totalValue,
		DailyReturn:      dailyReturn,
		CumulativeReturn: cumulativeReturn,
	}, nil
}

// RecordDaily computes and upserts the row for tradeDate. The grant count
// is taken before the upsert, so a date's first recording excludes its own
// grant from the lifetime denominator.
func (s *Snapshot) RecordDaily(tradeDate string, dailyBudget float64) (*Daily, error) {
	d, err := s.ComputeDaily(tradeDate, dailyBudget)
	if err != nil {
		return nil, err
	}

	if err := s.metrics.Upsert(d); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("trade_date", tradeDate).
		Float64("portfolio_value", d.PortfolioValue).
		Float64("cash_balance", d.CashBalance).
		Float64("total_value", d.TotalValue).
		Float64("daily_return", d.DailyReturn).
		Float64("cumulative_return", d.CumulativeReturn).
		Msg("Recorded daily performance")

	return d, nil
}
