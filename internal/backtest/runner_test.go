package backtest

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasquant/signal-engine/internal/database"
	"github.com/atlasquant/signal-engine/internal/modules/market"
	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/portfolio"
	"github.com/atlasquant/signal-engine/internal/modules/signal"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
	"github.com/atlasquant/signal-engine/internal/modules/trading"
)

// fakePipeline stands in for the generator, executor, and recorder. Each
// recorded day writes a real metrics row whose total value is 1020 times
// the number of days recorded so far, so the report math is exact.
type fakePipeline struct {
	metrics *performance.Repository
	returns []float64

	generated []string
	executed  []string
	recorded  []string
	budget    float64

	failGenerate map[string]bool
	failExecute  map[string]bool
}

func (f *fakePipeline) Generate(tradeDate string) (*signal.DailySignal, error) {
	if f.failGenerate[tradeDate] {
		return nil, errors.New("insufficient price history")
	}
	f.generated = append(f.generated, tradeDate)
	return &signal.DailySignal{TradeDate: tradeDate}, nil
}

func (f *fakePipeline) ExecuteDate(executionDate string) ([]trading.Trade, error) {
	if f.failExecute[executionDate] {
		return nil, errors.New("no signal for date")
	}
	f.executed = append(f.executed, executionDate)
	return nil, nil
}

func (f *fakePipeline) RecordDaily(tradeDate string, dailyBudget float64) (*performance.Daily, error) {
	f.recorded = append(f.recorded, tradeDate)
	f.budget = dailyBudget

	n := len(f.recorded)
	ret := 0.0
	if n-1 < len(f.returns) {
		ret = f.returns[n-1]
	}
	row := &performance.Daily{
		Date:           tradeDate,
		PortfolioValue: 612 * float64(n),
		CashBalance:    408 * float64(n),
		TotalValue:     1020 * float64(n),
		DailyReturn:    ret,
	}
	if err := f.metrics.Upsert(row); err != nil {
		return nil, err
	}
	return row, nil
}

type runnerHarness struct {
	runner    *Runner
	pipeline  *fakePipeline
	market    *market.Repository
	signals   *signal.Repository
	trades    *trading.Repository
	metrics   *performance.Repository
	portfolio *portfolio.Repository
}

func newRunnerHarness(t *testing.T) *runnerHarness {
	t.Helper()

	marketDB, err := database.New(database.Config{
		Path: ":memory:", Profile: database.ProfileCache, Name: "market",
	})
	require.NoError(t, err)
	require.NoError(t, marketDB.Migrate())
	t.Cleanup(func() { marketDB.Close() })

	ledgerDB, err := database.New(database.Config{
		Path: ":memory:", Profile: database.ProfileLedger, Name: "ledger",
	})
	require.NoError(t, err)
	require.NoError(t, ledgerDB.Migrate())
	t.Cleanup(func() { ledgerDB.Close() })

	configDB, err := database.New(database.Config{
		Path: ":memory:", Profile: database.ProfileStandard, Name: "config",
	})
	require.NoError(t, err)
	require.NoError(t, configDB.Migrate())
	t.Cleanup(func() { configDB.Close() })

	configs := strategyconfig.NewStore(configDB.Conn(), zerolog.Nop())
	require.NoError(t, configs.Seed())
	constraints := strategyconfig.NewConstraintsStore(configDB.Conn(), zerolog.Nop())
	require.NoError(t, constraints.Seed())

	h := &runnerHarness{
		market:    market.NewRepository(marketDB.Conn(), zerolog.Nop()),
		signals:   signal.NewRepository(ledgerDB.Conn(), zerolog.Nop()),
		trades:    trading.NewRepository(ledgerDB.Conn(), zerolog.Nop()),
		metrics:   performance.NewRepository(ledgerDB.Conn(), zerolog.Nop()),
		portfolio: portfolio.NewRepository(ledgerDB.Conn(), zerolog.Nop()),
	}
	h.pipeline = &fakePipeline{
		metrics:      h.metrics,
		returns:      []float64{1.5, -0.8, 0.2, 2.5, -0.3},
		failGenerate: map[string]bool{},
		failExecute:  map[string]bool{},
	}
	h.runner = NewRunner(Deps{
		Generator:   h.pipeline,
		Executor:    h.pipeline,
		Recorder:    h.pipeline,
		Market:      h.market,
		Signals:     h.signals,
		Trades:      h.trades,
		Metrics:     h.metrics,
		Portfolio:   h.portfolio,
		Configs:     configs,
		Constraints: constraints,
	}, zerolog.Nop())

	return h
}

// tradingWeek is five consecutive sessions spanning a weekend.
var tradingWeek = []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05", "2024-01-08"}

// seedWeek writes bars for the default assets. Opens are flat per symbol
// so benchmark share counts come out to round numbers; only the final
// close matters for valuation.
func (h *runnerHarness) seedWeek(t *testing.T) {
	t.Helper()

	opens := map[string]float64{"SPY": 100, "QQQ": 200, "DIA": 400}
	lastCloses := map[string]float64{"SPY": 110, "QQQ": 190, "DIA": 400}

	for symbol, open := range opens {
		bars := make([]market.Bar, len(tradingWeek))
		for i, date := range tradingWeek {
			closePrice := open
			if i == len(tradingWeek)-1 {
				closePrice = lastCloses[symbol]
			}
			bars[i] = market.Bar{
				Symbol: symbol,
				Date:   date,
				Open:   open,
				High:   open * 1.1,
				Low:    open * 0.9,
				Close:  closePrice,
				Volume: 1000,
			}
		}
		_, err := h.market.UpsertBars(symbol, bars)
		require.NoError(t, err)
	}
}

func TestRunReplaysEachTradingDay(t *testing.T) {
	h := newRunnerHarness(t)
	h.seedWeek(t)

	// Leftovers from an earlier run inside the range, plus rows before it
	// that clearing must not touch.
	require.NoError(t, h.signals.Create(&signal.DailySignal{
		TradeDate: "2024-01-03", Allocations: map[string]float64{"SPY": 400},
	}))
	require.NoError(t, h.signals.Create(&signal.DailySignal{
		TradeDate: "2023-12-29", Allocations: map[string]float64{},
	}))
	require.NoError(t, h.trades.Create(&trading.Trade{
		SignalID: 1, TradeDate: "2024-01-03", Symbol: "SPY",
		Action: signal.ActionBuy, Quantity: 4, Price: 100, Amount: 400,
	}))
	require.NoError(t, h.trades.Create(&trading.Trade{
		SignalID: 2, TradeDate: "2023-12-29", Symbol: "SPY",
		Action: signal.ActionBuy, Quantity: 1, Price: 95, Amount: 95,
	}))
	// Saturday row inside the range that no simulated day overwrites.
	require.NoError(t, h.metrics.Upsert(&performance.Daily{Date: "2024-01-06", TotalValue: 9999}))
	require.NoError(t, h.portfolio.EnsureCash())
	require.NoError(t, h.portfolio.AddCash(500))
	require.NoError(t, h.portfolio.ApplyBuy("SPY", 2, 100))

	report, err := h.runner.Run("2024-01-02", "2024-01-08", false)
	require.NoError(t, err)

	assert.Equal(t, tradingWeek, h.pipeline.generated)
	assert.Equal(t, tradingWeek, h.pipeline.executed)
	assert.Equal(t, tradingWeek, h.pipeline.recorded)
	assert.InDelta(t, 1000, h.pipeline.budget, 1e-9)

	// In-range leftovers cleared, earlier history intact.
	stale, err := h.signals.GetByDate("2024-01-03")
	require.NoError(t, err)
	assert.Nil(t, stale)
	kept, err := h.signals.GetByDate("2023-12-29")
	require.NoError(t, err)
	require.NotNil(t, kept)
	trades, err := h.trades.ListBetween("2023-12-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "2023-12-29", trades[0].TradeDate)
	series, err := h.metrics.Series("2024-01-02", "2024-01-08")
	require.NoError(t, err)
	require.Len(t, series, 5)
	for _, row := range series {
		assert.NotEqual(t, "2024-01-06", row.Date)
	}

	// Portfolio reset wiped both the position and the cash row.
	pos, err := h.portfolio.Get("SPY")
	require.NoError(t, err)
	assert.Nil(t, pos)
	cash, err := h.portfolio.CashBalance()
	require.NoError(t, err)
	assert.Zero(t, cash)

	assert.Equal(t, 5, report.TradingDays)
	assert.Equal(t, 5, report.LifetimeDays)
	assert.InDelta(t, 5000, report.TotalGrants, 1e-9)
	assert.InDelta(t, 5100, report.FinalValue, 1e-9)
	assert.InDelta(t, 3060, report.FinalHoldings, 1e-9)
	assert.InDelta(t, 2040, report.FinalCash, 1e-9)
	assert.InDelta(t, 100, report.LifetimeReturn, 1e-9)
	assert.InDelta(t, 2, report.LifetimeReturnPct, 1e-9)

	assert.Equal(t, 5, report.Period.TotalDays)
	assert.InDelta(t, 400, report.Period.TotalReturn, 1e-9)
	assert.Zero(t, report.Period.MaxDrawdown)

	// One grant per lifetime day at a flat open, valued at the last close.
	require.Len(t, report.Benchmarks, 3)
	spy, qqq, dia := report.Benchmarks[0], report.Benchmarks[1], report.Benchmarks[2]
	assert.Equal(t, "SPY", spy.Symbol)
	assert.InDelta(t, 5500, spy.Value, 1e-6)
	assert.InDelta(t, 500, spy.Return, 1e-6)
	assert.InDelta(t, 10, spy.ReturnPct, 1e-6)
	assert.Equal(t, "QQQ", qqq.Symbol)
	assert.InDelta(t, 4750, qqq.Value, 1e-6)
	assert.InDelta(t, -5, qqq.ReturnPct, 1e-6)
	assert.Equal(t, "DIA", dia.Symbol)
	assert.InDelta(t, 5000, dia.Value, 1e-6)
	assert.InDelta(t, 0, dia.ReturnPct, 1e-6)

	assert.Equal(t, DayStat{Date: "2024-01-05", ReturnPct: 2.5}, report.BestDay)
	assert.Equal(t, DayStat{Date: "2024-01-03", ReturnPct: -0.8}, report.WorstDay)
	assert.Equal(t, 3, report.WinningDays)
	assert.InDelta(t, 60, report.WinRate, 1e-9)

	assert.Empty(t, report.Positions)
}

func TestRunSkipsFailedDays(t *testing.T) {
	h := newRunnerHarness(t)
	h.seedWeek(t)
	h.pipeline.failGenerate["2024-01-03"] = true
	h.pipeline.failExecute["2024-01-04"] = true

	report, err := h.runner.Run("2024-01-02", "2024-01-08", false)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-01-02", "2024-01-04", "2024-01-05", "2024-01-08"}, h.pipeline.generated)
	assert.Equal(t, []string{"2024-01-02", "2024-01-05", "2024-01-08"}, h.pipeline.executed)
	assert.Equal(t, []string{"2024-01-02", "2024-01-05", "2024-01-08"}, h.pipeline.recorded)

	assert.Equal(t, 3, report.TradingDays)
	assert.Equal(t, 3, report.LifetimeDays)
	assert.InDelta(t, 3000, report.TotalGrants, 1e-9)
	assert.InDelta(t, 3060, report.FinalValue, 1e-9)

	assert.Equal(t, DayStat{Date: "2024-01-02", ReturnPct: 1.5}, report.BestDay)
	assert.Equal(t, DayStat{Date: "2024-01-05", ReturnPct: -0.8}, report.WorstDay)
	assert.InDelta(t, 100.0*2/3, report.WinRate, 1e-6)
}

func TestRunPreservesPortfolioAndHistory(t *testing.T) {
	h := newRunnerHarness(t)
	h.seedWeek(t)

	// History from before the range: one metrics row with no bars for its
	// date, plus existing holdings the run must keep.
	require.NoError(t, h.metrics.Upsert(&performance.Daily{Date: "2023-12-29", TotalValue: 980}))
	require.NoError(t, h.portfolio.EnsureCash())
	require.NoError(t, h.portfolio.AddCash(250))
	require.NoError(t, h.portfolio.ApplyBuy("SPY", 3, 90))

	report, err := h.runner.Run("2024-01-02", "2024-01-08", true)
	require.NoError(t, err)

	cash, err := h.portfolio.CashBalance()
	require.NoError(t, err)
	assert.InDelta(t, 250, cash, 1e-9)
	pos, err := h.portfolio.Get("SPY")
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.InDelta(t, 3, pos.Quantity, 1e-9)

	// Lifetime figures fold in the pre-existing day.
	assert.Equal(t, 5, report.TradingDays)
	assert.Equal(t, 6, report.LifetimeDays)
	assert.InDelta(t, 6000, report.TotalGrants, 1e-9)
	assert.InDelta(t, 5100, report.FinalValue, 1e-9)
	assert.InDelta(t, -900, report.LifetimeReturn, 1e-9)
	assert.InDelta(t, -15, report.LifetimeReturnPct, 1e-9)

	// The 2023-12-29 grant finds no open price and buys nothing.
	require.Len(t, report.Benchmarks, 3)
	assert.InDelta(t, 5500, report.Benchmarks[0].Value, 1e-6)
	assert.InDelta(t, -500, report.Benchmarks[0].Return, 1e-6)

	require.Len(t, report.Positions, 1)
	held := report.Positions[0]
	assert.Equal(t, "SPY", held.Symbol)
	assert.InDelta(t, 3, held.Quantity, 1e-9)
	assert.InDelta(t, 90, held.AvgCost, 1e-9)
	assert.InDelta(t, 330, held.Value, 1e-6)
	assert.InDelta(t, 60, held.PnL, 1e-6)
	assert.InDelta(t, 100.0*60/270, held.PnLPct, 1e-6)
}

func TestRunRequiresPriceData(t *testing.T) {
	h := newRunnerHarness(t)

	_, err := h.runner.Run("2024-01-02", "2024-01-08", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no price data")
}

func TestRunValidatesDates(t *testing.T) {
	h := newRunnerHarness(t)

	_, err := h.runner.Run("01/02/2024", "2024-01-08", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid start date")

	_, err = h.runner.Run("2024-01-02", "2024-13-40", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid end date")

	_, err = h.runner.Run("2024-02-01", "2024-01-02", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after end date")
}
