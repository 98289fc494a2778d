// Package regime scores the overall market trend from per-asset features
// and classifies transitions between consecutive readings. Positive scores
// mean the tracked assets trend up, negative down; thresholds that separate
// bullish, neutral and bearish shift with realized volatility.
package regime

import (
	"github.com/atlasquant/signal-engine/internal/modules/features"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
	"github.com/atlasquant/signal-engine/pkg/formulas"
)

// Transition labels for consecutive regime readings.
const (
	TransitionStable          = "stable"
	TransitionTurningBullish  = "turning_bullish"
	TransitionTurningBearish  = "turning_bearish"
	TransitionLosingMomentum  = "losing_momentum"
	TransitionGainingMomentum = "gaining_momentum"
)

// Score blends multi-horizon momentum with SMA deviations per asset and
// averages across assets. Returns the overall score and the per-asset
// contributions.
func Score(assets []features.AssetFeatures, cfg *strategyconfig.TradingConfig) (float64, map[string]float64) {
	perAsset := make(map[string]float64, len(assets))
	if len(assets) == 0 {
		return 0, perAsset
	}

	scores := make([]float64, 0, len(assets))
	for _, a := range assets {
		momentum := formulas.Mean([]float64{a.Returns5D, a.Returns20D, a.Returns60D})
		score := momentum*cfg.RegimeMomentumWeight +
			a.PriceVsSMA20*cfg.RegimeSMA20Weight +
			a.PriceVsSMA50*cfg.RegimeSMA50Weight

		perAsset[a.Symbol] = score
		scores = append(scores, score)
	}

	return formulas.Mean(scores), perAsset
}

// AdaptiveThreshold widens or narrows a base regime threshold with the
// ratio of current to baseline volatility. The adjustment is clamped so a
// volatility spike cannot push thresholds to extremes.
func AdaptiveThreshold(base, currentVol float64, cfg *strategyconfig.TradingConfig) float64 {
	volRatio := 1.0
	if cfg.BaseVolatility > 0 {
		volRatio = currentVol / cfg.BaseVolatility
	}

	adjustment := 1 + cfg.VolatilityAdjustmentFactor*(volRatio-1)
	if adjustment < cfg.AdaptiveClampMin {
		adjustment = cfg.AdaptiveClampMin
	}
	if adjustment > cfg.AdaptiveClampMax {
		adjustment = cfg.AdaptiveClampMax
	}

	return base * adjustment
}

// Transition classifies the move from the previous regime score to the
// current one. A nil previous score reads as stable: the first observation
// has nothing to compare against.
func Transition(current float64, previous *float64, cfg *strategyconfig.TradingConfig) string {
	if previous == nil {
		return TransitionStable
	}

	prev := *previous
	delta := current - prev
	t := cfg.RegimeTransitionThreshold

	switch {
	case current > t && prev < -t:
		return TransitionTurningBullish
	case current < -t && prev > t:
		return TransitionTurningBearish
	case current > cfg.RegimeBullishThreshold && delta < cfg.MomentumLossThreshold:
		return TransitionLosingMomentum
	case current > 0 && delta > cfg.MomentumGainThreshold:
		return TransitionGainingMomentum
	default:
		return TransitionStable
	}
}
