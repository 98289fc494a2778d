package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeEmptyHistory(t *testing.T) {
	f := Compute("SPY", nil, 2.0)

	assert.Equal(t, "SPY", f.Symbol)
	assert.Equal(t, 0.0, f.CurrentPrice)
	assert.Equal(t, 0.0, f.Returns5D)
	assert.Equal(t, 0.0, f.Volatility)
}

func TestComputeShortHistoryDegrades(t *testing.T) {
	// Ten bars: enough for the 5-day return, too short for everything else
	closes := []float64{100, 101, 102, 101, 103, 104, 105, 104, 106, 107}

	f := Compute("SPY", closes, 2.0)

	assert.Equal(t, 107.0, f.CurrentPrice)
	// closes[-5] = 104
	assert.InDelta(t, 107.0/104.0-1, f.Returns5D, 1e-9)
	assert.Equal(t, 0.0, f.Returns20D)
	assert.Equal(t, 0.0, f.Returns60D)
	// Fewer than 21 bars: no volatility
	assert.Equal(t, 0.0, f.Volatility)
	// SMAs fall back to the current price, so deviations are zero
	assert.Equal(t, 107.0, f.SMA20)
	assert.Equal(t, 107.0, f.SMA50)
	assert.Equal(t, 0.0, f.PriceVsSMA20)
	assert.Equal(t, 0.0, f.PriceVsSMA50)
	// Under period+1 bars RSI stays neutral
	assert.Equal(t, 50.0, f.RSI)
}

func TestComputeFullHistory(t *testing.T) {
	// 70 rising bars
	closes := make([]float64, 70)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}

	f := Compute("QQQ", closes, 2.0)

	assert.Equal(t, 134.5, f.CurrentPrice)

	// Monotonic rise: all horizon returns positive and increasing with span
	assert.Greater(t, f.Returns5D, 0.0)
	assert.Greater(t, f.Returns20D, f.Returns5D)
	assert.Greater(t, f.Returns60D, f.Returns20D)

	// Constant increments still have nonzero return volatility because the
	// percentage change shrinks as price grows
	assert.Greater(t, f.Volatility, 0.0)
	assert.Less(t, f.Volatility, 0.01)

	// Price sits above both moving averages in an uptrend
	assert.Greater(t, f.PriceVsSMA20, 0.0)
	assert.Greater(t, f.PriceVsSMA50, f.PriceVsSMA20)

	// Strictly rising closes pin RSI at its ceiling
	assert.Equal(t, 100.0, f.RSI)

	// Price above the middle band
	assert.Greater(t, f.BollingerPosition, 0.0)
	assert.LessOrEqual(t, f.BollingerPosition, 1.0)
}

func TestComputeHorizonReturnUsesExactOffset(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	closes[len(closes)-5] = 80 // the 5-day base
	closes[len(closes)-1] = 120

	f := Compute("DIA", closes, 2.0)
	assert.InDelta(t, 0.5, f.Returns5D, 1e-9)
}
