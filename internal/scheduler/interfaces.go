package scheduler

import (
	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/signal"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
	"github.com/atlasquant/signal-engine/internal/modules/trading"
	"github.com/atlasquant/signal-engine/internal/modules/tuning"
)

// ConfigSource provides the trading configuration active on a date.
type ConfigSource interface {
	GetActive(asOf string) (*strategyconfig.TradingConfig, error)
}

// PriceSyncer pulls recent daily bars for a set of symbols.
type PriceSyncer interface {
	Sync(symbols []string, days int) error
}

// SignalGenerator produces the daily allocation signal.
type SignalGenerator interface {
	Generate(tradeDate string) (*signal.DailySignal, error)
}

// TradeExecutor turns the day's signal into executed trades.
type TradeExecutor interface {
	ExecuteDate(executionDate string) ([]trading.Trade, error)
}

// MetricsRecorder snapshots portfolio performance after execution.
type MetricsRecorder interface {
	RecordDaily(tradeDate string, dailyBudget float64) (*performance.Daily, error)
}

// Tuner runs the monthly parameter tuning cycle.
type Tuner interface {
	RunMonthlyTuning(effectiveDate string) (*tuning.Outcome, error)
}
