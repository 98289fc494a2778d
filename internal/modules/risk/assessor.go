// Package risk turns cross-asset dispersion and volatility into a 0-100
// risk score, and derives signal confidence from regime strength and risk.
// Dispersion uses population standard deviation: the tracked assets are the
// whole universe under assessment, not a sample of one.
package risk

import (
	"math"

	"github.com/atlasquant/signal-engine/internal/modules/features"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
	"github.com/atlasquant/signal-engine/pkg/formulas"
)

// Confidence buckets.
const (
	BucketHigh   = "high"
	BucketMedium = "medium"
	BucketLow    = "low"
)

// Score computes the blended portfolio risk score in [0, 100]. Higher means
// riskier: elevated average volatility, unstable short-term returns and
// tightly correlated long-term returns all push it up.
func Score(assets []features.AssetFeatures, cfg *strategyconfig.TradingConfig) float64 {
	if len(assets) == 0 {
		return 0
	}

	vols := make([]float64, 0, len(assets))
	shortReturns := make([]float64, 0, len(assets))
	longReturns := make([]float64, 0, len(assets))
	for _, a := range assets {
		vols = append(vols, a.Volatility)
		shortReturns = append(shortReturns, a.Returns5D)
		longReturns = append(longReturns, a.Returns60D)
	}

	avgVol := formulas.Mean(vols)
	volScore := math.Min(100, avgVol/cfg.VolatilityNormalizationFactor*100)

	// Stable short-term returns across assets discount the volatility score
	stability := 1 - math.Min(1, formulas.PopStdDev(shortReturns)/cfg.StabilityThreshold)
	volScore *= 1 - stability*cfg.StabilityDiscountFactor

	// Dispersed long-term returns mean diversification is working; tight
	// clustering leaves the correlation risk near its base
	corrRisk := math.Max(0, cfg.CorrelationRiskBase-formulas.PopStdDev(longReturns)*cfg.CorrelationRiskMultiplier)

	score := volScore*cfg.RiskVolatilityWeight + corrRisk*cfg.RiskCorrelationWeight
	return clamp(score, 0, 100)
}

// Confidence scores how much to trust the day's action in [0, 1]. Strong
// regimes and consistent trends raise it, risk above the penalty band
// lowers it. Mean reversion signals start from a fixed base instead of
// regime strength.
func Confidence(regimeScore, riskScore, trendConsistency float64, meanReversion bool, cfg *strategyconfig.TradingConfig) float64 {
	var base float64
	if meanReversion {
		base = cfg.MeanReversionBaseConfidence
	} else {
		base = math.Min(1, math.Abs(regimeScore)/cfg.RegimeConfidenceDivisor)
	}

	if trendConsistency > cfg.TrendConsistencyThreshold {
		base += cfg.ConsistencyBonus
	}

	penalty := math.Max(0, (riskScore-cfg.RiskPenaltyMin)/(cfg.RiskPenaltyMax-cfg.RiskPenaltyMin))
	base -= penalty * cfg.RiskPenaltyMultiplier

	return clamp(base, 0, 1)
}

// Bucket maps a confidence value onto its reporting bucket.
func Bucket(confidence float64, cfg *strategyconfig.TradingConfig) string {
	switch {
	case confidence >= cfg.ConfidenceBucketHigh:
		return BucketHigh
	case confidence >= cfg.ConfidenceBucketMedium:
		return BucketMedium
	default:
		return BucketLow
	}
}

// Helper functions

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
