// Package features computes the per-asset technical indicators every
// downstream decision consumes: multi-horizon returns, realized volatility,
// SMA deviations, RSI and Bollinger band position. All calculations use
// closes strictly before the trade date, so a signal never sees same-day
// prices.
package features

import (
	"github.com/atlasquant/signal-engine/pkg/formulas"
)

const (
	horizonShort  = 5
	horizonMedium = 20
	horizonLong   = 60

	volatilityWindow = 20
	rsiPeriod        = 14
	bollingerPeriod  = 20
	smaShortPeriod   = 20
	smaLongPeriod    = 50
)

// AssetFeatures holds the indicator values for one asset on one date.
type AssetFeatures struct {
	Symbol            string  `json:"symbol"`
	CurrentPrice      float64 `json:"current_price"`
	Returns5D         float64 `json:"returns_5d"`
	Returns20D        float64 `json:"returns_20d"`
	Returns60D        float64 `json:"returns_60d"`
	Volatility        float64 `json:"volatility"`
	SMA20             float64 `json:"sma_20"`
	SMA50             float64 `json:"sma_50"`
	PriceVsSMA20      float64 `json:"price_vs_sma20"`
	PriceVsSMA50      float64 `json:"price_vs_sma50"`
	RSI               float64 `json:"rsi"`
	BollingerPosition float64 `json:"bollinger_position"`
}

// Compute derives all indicators for one asset from its close history,
// oldest first. Short histories degrade gracefully: returns fall back to
// zero, SMAs to the current price, RSI to its neutral value.
func Compute(symbol string, closes []float64, bollingerStdMult float64) AssetFeatures {
	f := AssetFeatures{Symbol: symbol}
	if len(closes) == 0 {
		return f
	}

	current := closes[len(closes)-1]
	f.CurrentPrice = current

	f.Returns5D = horizonReturn(closes, horizonShort)
	f.Returns20D = horizonReturn(closes, horizonMedium)
	f.Returns60D = horizonReturn(closes, horizonLong)

	if len(closes) > volatilityWindow {
		changes := formulas.CalculateReturns(closes[len(closes)-volatilityWindow-1:])
		f.Volatility = formulas.StdDev(changes)
	}

	f.SMA20 = smaOrCurrent(closes, smaShortPeriod, current)
	f.SMA50 = smaOrCurrent(closes, smaLongPeriod, current)

	if f.SMA20 > 0 {
		f.PriceVsSMA20 = current/f.SMA20 - 1
	}
	if f.SMA50 > 0 {
		f.PriceVsSMA50 = current/f.SMA50 - 1
	}

	f.RSI = formulas.CalculateRSI(closes, rsiPeriod)
	f.BollingerPosition = formulas.CalculateBollinger(closes, bollingerPeriod, bollingerStdMult).Position

	return f
}

// Helper functions

func horizonReturn(closes []float64, horizon int) float64 {
	if len(closes) < horizon {
		return 0
	}
	base := closes[len(closes)-horizon]
	if base <= 0 {
		return 0
	}
	return closes[len(closes)-1]/base - 1
}

func smaOrCurrent(closes []float64, period int, current float64) float64 {
	sma := formulas.CalculateSMA(closes, period)
	if sma == 0 {
		return current
	}
	return sma
}
