// Package backtest replays the daily signal, trade, and metrics pipeline
// over a historical price range and reports how the strategy fared against
// simply buying the tracked assets every day.
package backtest

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/modules/analysis"
	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/portfolio"
	"github.com/atlasquant/signal-engine/internal/modules/signal"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
	"github.com/atlasquant/signal-engine/internal/modules/trading"
)

const dateLayout = "2006-01-02"

// SignalGenerator produces the signal for a single trading day.
type SignalGenerator interface {
	Generate(tradeDate string) (*signal.DailySignal, error)
}

// TradeExecutor turns the day's signal into ledger trades. The executor
// grants the daily budget itself, so the day loop never touches cash.
type TradeExecutor interface {
	ExecuteDate(executionDate string) ([]trading.Trade, error)
}

// MetricsRecorder values the portfolio and writes the day's metrics row.
type MetricsRecorder interface {
	RecordDaily(tradeDate string, dailyBudget float64) (*performance.Daily, error)
}

// MarketData supplies the trading calendar and the prices the report
// needs for benchmark and position valuation.
type MarketData interface {
	TradingDays(symbol, from, through string) ([]string, error)
	OpenOn(symbol, date string) (*float64, error)
	ClosesOn(date string) (map[string]float64, error)
}

// SignalStore clears previously generated signals in the replayed range.
type SignalStore interface {
	DeleteBetween(from, through string) (int64, error)
}

// TradeStore clears previously executed trades in the replayed range.
type TradeStore interface {
	DeleteBetween(from, through string) (int64, error)
}

// MetricsStore clears and reads the daily performance series.
type MetricsStore interface {
	DeleteBetween(from, through string) (int64, error)
	Series(start, end string) ([]performance.Daily, error)
	CountThrough(through string) (int, error)
	DatesThrough(through string) ([]string, error)
}

// PortfolioStore is the ledger state the replay starts from and the
// positions the report values at the end.
type PortfolioStore interface {
	Reset() error
	AllPositions() ([]portfolio.Position, error)
}

// ConfigSource loads the strategy parameters in effect for the run.
type ConfigSource interface {
	GetActive(asOf string) (*strategyconfig.TradingConfig, error)
}

// ConstraintsSource loads the risk constraints used for period metrics.
type ConstraintsSource interface {
	GetActive(asOf string) (*strategyconfig.StrategyConstraints, error)
}

// Deps bundles the pipeline and stores a Runner drives.
type Deps struct {
	Generator   SignalGenerator
	Executor    TradeExecutor
	Recorder    MetricsRecorder
	Market      MarketData
	Signals     SignalStore
	Trades      TradeStore
	Metrics     MetricsStore
	Portfolio   PortfolioStore
	Configs     ConfigSource
	Constraints ConstraintsSource
}

// Runner replays the production pipeline one trading day at a time
// against historical prices, using the same generator, executor, and
// metrics recorder the scheduler drives live.
type Runner struct {
	deps   Deps
	logger zerolog.Logger
}

// NewRunner creates a backtest runner.
func NewRunner(deps Deps, logger zerolog.Logger) *Runner {
	return &Runner{
		deps:   deps,
		logger: logger.With().Str("component", "backtest_runner").Logger(),
	}
}

// Run simulates every trading day between start and end inclusive and
// returns the resulting report. Prior signals, trades, and metrics in the
// range are cleared first; the portfolio is reset too unless
// preservePortfolio is set, which lets a run continue from existing
// holdings. A day whose signal or execution fails is skipped, the way a
// live outage would drop that day.
func (r *Runner) Run(start, end string, preservePortfolio bool) (*Report, error) {
	if _, err := time.Parse(dateLayout, start); err != nil {
		return nil, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	if _, err := time.Parse(dateLayout, end); err != nil {
		return nil, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if start > end {
		return nil, fmt.Errorf("start date %s is after end date %s", start, end)
	}

	cfg, err := r.deps.Configs.GetActive(start)
	if err != nil {
		return nil, fmt.Errorf("failed to load active config: %w", err)
	}

	days, err := r.deps.Market.TradingDays(analysis.BenchmarkSymbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load trading days: %w", err)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("no price data between %s and %s, sync prices first", start, end)
	}

	r.logger.Info().
		Str("start", start).
		Str("end", end).
		Int("trading_days", len(days)).
		Bool("preserve_portfolio", preservePortfolio).
		Msg("Starting backtest")

	if err := r.clear(start, end, preservePortfolio); err != nil {
		return nil, err
	}

	simulated := 0
	for i, day := range days {
		r.logger.Info().
			Int("day", i+1).
			Int("total", len(days)).
			Str("trade_date", day).
			Msg("Simulating trading day")

		if _, err := r.deps.Generator.Generate(day); err != nil {
			r.logger.Error().Err(err).Str("trade_date", day).Msg("Signal generation failed, skipping day")
			continue
		}
		if _, err := r.deps.Executor.ExecuteDate(day); err != nil {
			r.logger.Error().Err(err).Str("trade_date", day).Msg("Trade execution failed, skipping day")
			continue
		}
		if _, err := r.deps.Recorder.RecordDaily(day, cfg.DailyCapital); err != nil {
			r.logger.Error().Err(err).Str("trade_date", day).Msg("Failed to record daily metrics")
			continue
		}
		simulated++
	}

	r.logger.Info().Int("simulated_days", simulated).Msg("Backtest simulation complete")

	return r.buildReport(start, end, cfg)
}

// clear removes artifacts of earlier runs over the same range so the
// replay starts from a known state. Trades go before signals; they
// reference signal rows and the ledger enforces the constraint.
func (r *Runner) clear(start, end string, preservePortfolio bool) error {
	deletedTrades, err := r.deps.Trades.DeleteBetween(start, end)
	if err != nil {
		return fmt.Errorf("failed to clear trades: %w", err)
	}
	deletedSignals, err := r.deps.Signals.DeleteBetween(start, end)
	if err != nil {
		return fmt.Errorf("failed to clear signals: %w", err)
	}
	deletedMetrics, err := r.deps.Metrics.DeleteBetween(start, end)
	if err != nil {
		return fmt.Errorf("failed to clear metrics: %w", err)
	}
	if !preservePortfolio {
		if err := r.deps.Portfolio.Reset(); err != nil {
			return fmt.Errorf("failed to reset portfolio: %w", err)
		}
	}

	r.logger.Info().
		Int64("signals", deletedSignals).
		Int64("trades", deletedTrades).
		Int64("metrics", deletedMetrics).
		Bool("portfolio_reset", !preservePortfolio).
		Msg("Cleared previous backtest data")
	return nil
}
