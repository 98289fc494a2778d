// Package ranking orders assets by volatility-adjusted momentum for the
// allocator. The composite score rewards aligned multi-horizon trends and
// prices above their moving averages, and nudges scores for stretched RSI
// and Bollinger readings.
package ranking

import (
	"math"

	"github.com/atlasquant/signal-engine/internal/modules/features"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

// volatilityFloor keeps the momentum ratio bounded for near-still assets.
const volatilityFloor = 0.001

// Scores computes the composite ranking score per symbol.
func Scores(assets []features.AssetFeatures, cfg *strategyconfig.TradingConfig) map[string]float64 {
	out := make(map[string]float64, len(assets))

	for _, a := range assets {
		momentum := a.Returns60D / math.Max(a.Volatility, volatilityFloor)
		consistency := consistencyMultiplier(a, cfg)
		priceMomentum := (a.PriceVsSMA20 + a.PriceVsSMA50) / 2

		out[a.Symbol] = momentum*cfg.MomentumWeight*consistency +
			priceMomentum*cfg.PriceMomentumWeight +
			reversionBonus(a, cfg)
	}

	return out
}

// TrendConsistency averages the per-asset consistency multipliers. Values
// above the configured threshold indicate most assets trend the same way
// on every horizon.
func TrendConsistency(assets []features.AssetFeatures, cfg *strategyconfig.TradingConfig) float64 {
	if len(assets) == 0 {
		return 0
	}

	sum := 0.0
	for _, a := range assets {
		sum += consistencyMultiplier(a, cfg)
	}
	return sum / float64(len(assets))
}

// Helper functions

func consistencyMultiplier(a features.AssetFeatures, cfg *strategyconfig.TradingConfig) float64 {
	allPositive := a.Returns5D > 0 && a.Returns20D > 0 && a.Returns60D > 0
	allNegative := a.Returns5D < 0 && a.Returns20D < 0 && a.Returns60D < 0
	if allPositive || allNegative {
		return cfg.TrendAlignedMultiplier
	}
	return cfg.TrendMixedMultiplier
}

func reversionBonus(a features.AssetFeatures, cfg *strategyconfig.TradingConfig) float64 {
	switch {
	case a.RSI < cfg.RSIOversoldThreshold && a.BollingerPosition < cfg.BBOversoldThreshold:
		return cfg.OversoldStrongBonus
	case a.RSI < cfg.RSIMildOversold && a.BollingerPosition < cfg.BBMildOversold:
		return cfg.OversoldMildBonus
	case a.RSI > cfg.RSIOverboughtThreshold && a.BollingerPosition > cfg.BBOverboughtThreshold:
		return cfg.OverboughtPenalty
	default:
		return 0
	}
}
