package trading

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/modules/portfolio"
	"github.com/atlasquant/signal-engine/internal/modules/signal"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

// MarketData supplies execution prices.
type MarketData interface {
	OpenOn(symbol, date string) (*float64, error)
}

// SignalSource loads the day's decision.
type SignalSource interface {
	GetByDate(tradeDate string) (*signal.DailySignal, error)
}

// Ledger is the portfolio state the executor mutates.
type Ledger interface {
	EnsureCash() error
	AddCash(amount float64) error
	DeductCash(amount float64) error
	Positions() ([]portfolio.Position, error)
	ApplyBuy(symbol string, quantity, price float64) error
	ApplySell(symbol string, quantity float64) error
}

// ConfigSource yields the effective trading configuration.
type ConfigSource interface {
	GetActive(asOf string) (*strategyconfig.TradingConfig, error)
}

// Executor turns a day's signal into trades at that day's opening prices.
// Each execution first injects the daily capital grant as cash, so HOLD
// days still accumulate budget.
type Executor struct {
	trades    *Repository
	signals   SignalSource
	market    MarketData
	portfolio Ledger
	configs   ConfigSource
	logger    zerolog.Logger
}

func NewExecutor(trades *Repository, signals SignalSource, market MarketData, ledger Ledger, configs ConfigSource, logger zerolog.Logger) *Executor {
	return &Executor{
		trades:    trades,
		signals:   signals,
		market:    market,
		portfolio: ledger,
		configs:   configs,
		logger:    logger.With().Str("component", "trade_executor").Logger(),
	}
}

// ExecuteDate runs the signal dated executionDate. A missing signal or a
// missing opening price is an error; a HOLD signal executes nothing.
func (e *Executor) ExecuteDate(executionDate string) ([]Trade, error) {
	if _, err := time.Parse("2006-01-02", executionDate); err != nil {
		return nil, fmt.Errorf("invalid execution date %q: %w", executionDate, err)
	}

	cfg, err := e.configs.GetActive(executionDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load config for %s: %w", executionDate, err)
	}

	if err := e.portfolio.EnsureCash(); err != nil {
		return nil, err
	}
	if err := e.portfolio.AddCash(cfg.DailyCapital); err != nil {
		return nil, fmt.Errorf("failed to inject daily capital: %w", err)
	}
	e.logger.Info().
		Str("execution_date", executionDate).
		Float64("daily_capital", cfg.DailyCapital).
		Msg("Injected daily capital")

	sig, err := e.signals.GetByDate(executionDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load signal for %s: %w", executionDate, err)
	}
	if sig == nil {
		return nil, fmt.Errorf("no signal found for %s", executionDate)
	}

	var trades []Trade
	switch sig.Action() {
	case signal.ActionBuy:
		trades, err = e.executeBuys(sig, executionDate)
	case signal.ActionSell:
		trades, err = e.executeSells(sig, executionDate)
	default:
		e.logger.Info().Str("execution_date", executionDate).Msg("HOLD signal, no trades")
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info().
		Str("execution_date", executionDate).
		Str("action", string(sig.Action())).
		Int("trades", len(trades)).
		Msg("Trade execution complete")

	return trades, nil
}

// executeBuys spends each positive dollar allocation at the opening
// price, deducting cash before recording the trade and position.
func (e *Executor) executeBuys(sig *signal.DailySignal, executionDate string) ([]Trade, error) {
	symbols := make([]string, 0, len(sig.Allocations))
	for symbol := range sig.Allocations {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var trades []Trade
	for _, symbol := range symbols {
		dollars := sig.Allocations[symbol]
		if dollars <= 0 {
			continue
		}

		open, err := e.openingPrice(symbol, executionDate)
		if err != nil {
			return nil, err
		}

		quantity := quantize(dollars / open)
		if quantity <= 0 {
			continue
		}
		cost := quantity * open

		if err := e.portfolio.DeductCash(cost); err != nil {
			return nil, fmt.Errorf("failed to fund BUY %s: %w", symbol, err)
		}

		trade := Trade{
			SignalID:  sig.ID,
			TradeDate: executionDate,
			Symbol:    symbol,
			Action:    signal.ActionBuy,
			Quantity:  quantity,
			Price:     open,
			Amount:    cost,
		}
		if err := e.trades.Create(&trade); err != nil {
			return nil, err
		}
		if err := e.portfolio.ApplyBuy(symbol, quantity, open); err != nil {
			return nil, err
		}

		e.logger.Info().
			Str("symbol", symbol).
			Float64("quantity", quantity).
			Float64("price", open).
			Float64("cost", cost).
			Msg("Executed BUY")
		trades = append(trades, trade)
	}

	return trades, nil
}

// executeSells trims every holding by the signal's allocation fraction,
// weakest asset score first.
func (e *Executor) executeSells(sig *signal.DailySignal, executionDate string) ([]Trade, error) {
	positions, err := e.portfolio.Positions()
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		e.logger.Info().Str("execution_date", executionDate).Msg("No positions to sell")
		return nil, nil
	}

	sellPct := sig.FeaturesUsed.AllocationPct
	scores := sig.FeaturesUsed.Assets
	sort.SliceStable(positions, func(i, j int) bool {
		return scores[positions[i].Symbol].Score < scores[positions[j].Symbol].Score
	})

	var trades []Trade
	for _, pos := range positions {
		open, err := e.openingPrice(pos.Symbol, executionDate)
		if err != nil {
			return nil, err
		}

		sellQuantity := quantize(pos.Quantity * sellPct)
		if sellQuantity <= 0 {
			continue
		}
		proceeds := sellQuantity * open

		if err := e.portfolio.AddCash(proceeds); err != nil {
			return nil, fmt.Errorf("failed to credit SELL %s: %w", pos.Symbol, err)
		}

		trade := Trade{
			SignalID:  sig.ID,
			TradeDate: executionDate,
			Symbol:    pos.Symbol,
			Action:    signal.ActionSell,
			Quantity:  -sellQuantity,
			Price:     open,
			Amount:    proceeds,
		}
		if err := e.trades.Create(&trade); err != nil {
			return nil, err
		}
		if err := e.portfolio.ApplySell(pos.Symbol, sellQuantity); err != nil {
			return nil, err
		}

		e.logger.Info().
			Str("symbol", pos.Symbol).
			Float64("quantity", sellQuantity).
			Float64("price", open).
			Float64("proceeds", proceeds).
			Msg("Executed SELL")
		trades = append(trades, trade)
	}

	return trades, nil
}

func (e *Executor) openingPrice(symbol, date string) (float64, error) {
	open, err := e.market.OpenOn(symbol, date)
	if err != nil {
		return 0, err
	}
	if open == nil {
		return 0, fmt.Errorf("no opening price for %s on %s", symbol, date)
	}
	return *open, nil
}

// quantize rounds a share quantity to four decimal places, ties to even.
func quantize(quantity float64) float64 {
	return math.RoundToEven(quantity*10000) / 10000
}
