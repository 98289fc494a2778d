package evaluation

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasquant/signal-engine/internal/modules/analysis"
	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/signal"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
	"github.com/atlasquant/signal-engine/internal/modules/trading"
)

type fakeTrades struct {
	trades []trading.TradeWithSignal
}

func (f *fakeTrades) ListWithFeatures(from, through string) ([]trading.TradeWithSignal, error) {
	return f.trades, nil
}

type fakeMarket struct {
	benchmark     []float64
	horizonCloses map[string]map[string]float64 // symbol -> horizon end date -> close
}

func (f *fakeMarket) CloseInRange(symbol, after, through string) (*float64, error) {
	if closes, ok := f.horizonCloses[symbol]; ok {
		if close, ok := closes[through]; ok {
			return &close, nil
		}
	}
	return nil, nil
}

func (f *fakeMarket) ClosesBetween(symbol, from, through string) ([]float64, error) {
	return f.benchmark, nil
}

type fakeMetrics struct {
	rows []performance.Daily
}

func (f *fakeMetrics) Series(start, end string) ([]performance.Daily, error) {
	var out []performance.Daily
	for _, row := range f.rows {
		if row.Date >= start && row.Date <= end {
			out = append(out, row)
		}
	}
	return out, nil
}

func testSetup(t *testing.T) (*strategyconfig.TradingConfig, *strategyconfig.StrategyConstraints) {
	t.Helper()
	cfg, err := strategyconfig.NewDefaultConfig()
	require.NoError(t, err)
	constraints, err := strategyconfig.NewDefaultConstraints()
	require.NoError(t, err)
	return cfg, constraints
}

func rampCloses(slope float64) []float64 {
	closes := make([]float64, analysis.ConditionWindowDays)
	for i := range closes {
		closes[i] = 100 + slope*float64(i)
	}
	return closes
}

func choppyCloses() []float64 {
	closes := make([]float64, analysis.ConditionWindowDays)
	for i := range closes {
		closes[i] = 100
		if i%2 == 1 {
			closes[i] = 102
		}
	}
	return closes
}

func tradeWith(action signal.Action, symbol string, quantity, price float64, features signal.Features) trading.TradeWithSignal {
	return trading.TradeWithSignal{
		Trade: trading.Trade{
			SignalID:  1,
			TradeDate: "2024-03-15",
			Symbol:    symbol,
			Action:    action,
			Quantity:  quantity,
			Price:     price,
			Amount:    math.Abs(quantity) * price,
		},
		Features: features,
	}
}

func TestEvaluateTradesProfitableMomentumBuy(t *testing.T) {
	cfg, constraints := testSetup(t)

	trades := &fakeTrades{trades: []trading.TradeWithSignal{
		tradeWith(signal.ActionBuy, "SPY", 10, 400, signal.Features{
			Regime:           0.5,
			ConfidenceBucket: "high",
			SignalType:       "momentum_bullish",
		}),
	}}
	market := &fakeMarket{
		benchmark: rampCloses(1),
		horizonCloses: map[string]map[string]float64{
			"SPY": {
				"2024-03-25": 410,
				"2024-04-04": 420,
				"2024-04-14": 415,
			},
		},
	}

	evaluator := NewEvaluator(trades, market, &fakeMetrics{}, zerolog.Nop())

	evals, err := evaluator.EvaluateTrades(cfg, constraints, "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, evals, 1)

	e := evals[0]
	assert.Equal(t, "bullish", e.Regime)
	assert.Equal(t, analysis.ConditionMomentum, e.MarketCondition)
	assert.InDelta(t, 100.0, e.PnL10D, 1e-9)
	assert.InDelta(t, 200.0, e.PnL20D, 1e-9)
	assert.InDelta(t, 150.0, e.PnL30D, 1e-9)
	assert.Equal(t, "20d", e.BestHorizon)
	assert.InDelta(t, 200.0, e.PnL, 1e-9)
	assert.True(t, e.WasProfitable)
	assert.InDelta(t, cfg.ScoreMomentumBonus, e.SharpeImpact, 1e-9)
	assert.InDelta(t, 4000.0, e.Amount, 1e-9)

	// Every bonus fires: profitable, positive impact, no drawdown, all
	// three horizons, momentum alignment, high-confidence win. The raw sum
	// exceeds the cap, so the score clamps.
	assert.InDelta(t, 1.0, e.Score, 1e-9)
	assert.False(t, e.ShouldHaveAvoided)
}

func TestEvaluateTradesChoppyLoserFlagsAvoidance(t *testing.T) {
	cfg, constraints := testSetup(t)

	trades := &fakeTrades{trades: []trading.TradeWithSignal{
		tradeWith(signal.ActionBuy, "QQQ", 5, 300, signal.Features{
			ConfidenceBucket: "low",
		}),
	}}
	// No later bars exist, so every horizon falls back to the trade price.
	market := &fakeMarket{benchmark: choppyCloses()}

	evaluator := NewEvaluator(trades, market, &fakeMetrics{}, zerolog.Nop())

	evals, err := evaluator.EvaluateTrades(cfg, constraints, "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, evals, 1)

	e := evals[0]
	assert.Equal(t, analysis.ConditionChoppy, e.MarketCondition)
	assert.Equal(t, "neutral", e.Regime)
	assert.Equal(t, "unknown", e.SignalType)
	assert.Zero(t, e.PnL)
	assert.Equal(t, "10d", e.BestHorizon)
	assert.False(t, e.WasProfitable)
	assert.InDelta(t, cfg.ScoreChoppyPenalty, e.SharpeImpact, 1e-9)

	// low-dd bonus + unprofitable + negative impact + choppy buy loss +
	// low-confidence loss bonus: 0.1 - 0.3 - 0.2 - 0.2 + 0.1.
	assert.InDelta(t, -0.5, e.Score, 1e-9)
	assert.True(t, e.ShouldHaveAvoided)
}

func TestEvaluateTradesSellMirrorsPnL(t *testing.T) {
	cfg, constraints := testSetup(t)

	trades := &fakeTrades{trades: []trading.TradeWithSignal{
		tradeWith(signal.ActionSell, "DIA", -2, 380, signal.Features{
			ConfidenceBucket: "medium",
			SignalType:       "mean_reversion_oversold",
		}),
	}}
	market := &fakeMarket{
		benchmark: rampCloses(0.3),
		horizonCloses: map[string]map[string]float64{
			"DIA": {
				"2024-03-25": 370,
				"2024-04-04": 370,
				"2024-04-14": 370,
			},
		},
	}

	evaluator := NewEvaluator(trades, market, &fakeMetrics{}, zerolog.Nop())

	evals, err := evaluator.EvaluateTrades(cfg, constraints, "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, evals, 1)

	e := evals[0]
	assert.Equal(t, analysis.ConditionMixed, e.MarketCondition)
	assert.InDelta(t, 20.0, e.PnL10D, 1e-9)
	assert.InDelta(t, 20.0, e.PnL20D, 1e-9)
	assert.InDelta(t, 20.0, e.PnL30D, 1e-9)

	// Equal horizons keep the earliest.
	assert.Equal(t, "10d", e.BestHorizon)
	assert.True(t, e.WasProfitable)

	// Only the mean-reversion term applies in a mixed market.
	assert.InDelta(t, cfg.ScoreMeanReversionBonus, e.SharpeImpact, 1e-9)

	// profitable + positive impact + low dd + all horizons: 0.3+0.2+0.1+0.2.
	assert.InDelta(t, 0.8, e.Score, 1e-9)
}

func TestEvaluateTradesRejectsBadDate(t *testing.T) {
	cfg, constraints := testSetup(t)

	bad := tradeWith(signal.ActionBuy, "SPY", 1, 400, signal.Features{})
	bad.TradeDate = "03/15/2024"

	evaluator := NewEvaluator(&fakeTrades{trades: []trading.TradeWithSignal{bad}},
		&fakeMarket{}, &fakeMetrics{}, zerolog.Nop())

	_, err := evaluator.EvaluateTrades(cfg, constraints, "2024-03-01", "2024-03-31")
	assert.ErrorContains(t, err, "invalid trade date")
}

func TestDrawdownContribution(t *testing.T) {
	metrics := &fakeMetrics{rows: []performance.Daily{
		{Date: "2024-03-10", TotalValue: 1000},
		{Date: "2024-03-12", TotalValue: 1100},
		{Date: "2024-03-15", TotalValue: 1050},
		{Date: "2024-03-18", TotalValue: 900},
	}}
	evaluator := NewEvaluator(&fakeTrades{}, &fakeMarket{}, metrics, zerolog.Nop())

	tradeDay, err := time.Parse(dateLayout, "2024-03-15")
	require.NoError(t, err)

	// Peak 1100 before the trade, trough 900 after: an 18.18% drawdown of
	// 200 dollars. A 50 dollar loss owns a quarter of it.
	contribution, err := evaluator.drawdownContribution(tradeDay, "2024-03-15", -50, 5)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, contribution, 1e-9)
}

func TestDrawdownContributionCapped(t *testing.T) {
	metrics := &fakeMetrics{rows: []performance.Daily{
		{Date: "2024-03-12", TotalValue: 1100},
		{Date: "2024-03-15", TotalValue: 1050},
		{Date: "2024-03-18", TotalValue: 900},
	}}
	evaluator := NewEvaluator(&fakeTrades{}, &fakeMarket{}, metrics, zerolog.Nop())

	tradeDay, err := time.Parse(dateLayout, "2024-03-15")
	require.NoError(t, err)

	contribution, err := evaluator.drawdownContribution(tradeDay, "2024-03-15", -5000, 5)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, contribution, 1e-9)
}

func TestDrawdownContributionZeroCases(t *testing.T) {
	tradeDay, err := time.Parse(dateLayout, "2024-03-15")
	require.NoError(t, err)

	tests := []struct {
		name string
		rows []performance.Daily
		pnl  float64
	}{
		{
			name: "profitable trade",
			rows: []performance.Daily{
				{Date: "2024-03-12", TotalValue: 1100},
				{Date: "2024-03-15", TotalValue: 1050},
				{Date: "2024-03-18", TotalValue: 900},
			},
			pnl: 50,
		},
		{
			name: "window too small",
			rows: []performance.Daily{{Date: "2024-03-15", TotalValue: 1000}},
			pnl:  -50,
		},
		{
			name: "no rows before trade",
			rows: []performance.Daily{
				{Date: "2024-03-15", TotalValue: 1000},
				{Date: "2024-03-18", TotalValue: 900},
			},
			pnl: -50,
		},
		{
			name: "no drawdown in window",
			rows: []performance.Daily{
				{Date: "2024-03-12", TotalValue: 1000},
				{Date: "2024-03-15", TotalValue: 1050},
				{Date: "2024-03-18", TotalValue: 1100},
			},
			pnl: -50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evaluator := NewEvaluator(&fakeTrades{}, &fakeMarket{}, &fakeMetrics{rows: tt.rows}, zerolog.Nop())

			contribution, err := evaluator.drawdownContribution(tradeDay, "2024-03-15", tt.pnl, 5)
			require.NoError(t, err)
			assert.Zero(t, contribution)
		})
	}
}

func TestRegimeLabel(t *testing.T) {
	cfg, _ := testSetup(t)

	tests := []struct {
		score float64
		want  string
	}{
		{0.5, "bullish"},
		{-0.5, "bearish"},
		{0, "neutral"},
		{0.3, "neutral"},
		{-0.3, "neutral"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, regimeLabel(tt.score, cfg), "score %v", tt.score)
	}
}
