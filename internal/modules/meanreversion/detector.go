// Package meanreversion finds stretched prices worth fading and broad
// downward pressure worth de-risking. Reversion setups only count when no
// strong trend is running; pressure is graded by how many assets show
// sustained weakness at once.
package meanreversion

import (
	"fmt"
	"math"

	"github.com/atlasquant/signal-engine/internal/modules/features"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

// Kind tags a reversion setup.
type Kind string

const (
	None       Kind = "none"
	Oversold   Kind = "oversold"
	Overbought Kind = "overbought"
)

// Pressure severities.
const (
	PressureNone     = "none"
	PressureModerate = "moderate"
	PressureSevere   = "severe"
)

// Signal is a detected reversion setup and the assets driving it.
type Signal struct {
	Kind   Kind
	Assets []string
}

// Pressure grades market-wide downward pressure.
type Pressure struct {
	Severity string
	Reason   string
}

// Detect looks for oversold or overbought conditions across assets. A
// strong trend in either direction disables reversion entirely: fading a
// real trend is how reversion strategies die. Oversold takes priority when
// both sides somehow trigger.
func Detect(assets []features.AssetFeatures, regimeScore float64, cfg *strategyconfig.TradingConfig) Signal {
	if math.Abs(regimeScore) > cfg.StrongTrendThreshold {
		return Signal{Kind: None}
	}

	var oversold, overbought []string
	for _, a := range assets {
		if a.RSI < cfg.RSIOversoldThreshold && a.BollingerPosition < cfg.BBOversoldThreshold {
			oversold = append(oversold, a.Symbol)
		}
		if a.RSI > cfg.RSIOverboughtThreshold && a.BollingerPosition > cfg.BBOverboughtThreshold {
			overbought = append(overbought, a.Symbol)
		}
	}

	if len(oversold) > 0 {
		return Signal{Kind: Oversold, Assets: oversold}
	}
	if len(overbought) > 0 {
		return Signal{Kind: Overbought, Assets: overbought}
	}

	return Signal{Kind: None}
}

// DetectPressure grades downward pressure from the fraction of assets with
// sustained negative returns, prices below both moving averages, or high
// volatility with falling prices.
func DetectPressure(assets []features.AssetFeatures, riskScore float64, cfg *strategyconfig.TradingConfig) Pressure {
	n := len(assets)
	if n == 0 {
		return Pressure{Severity: PressureNone}
	}

	var negative, belowSMA, highVolNegative int
	for _, a := range assets {
		if a.Returns5D < 0 && a.Returns20D < 0 && a.Returns60D < 0 {
			negative++
		}
		if a.PriceVsSMA20 < cfg.PriceVsSMAThreshold && a.PriceVsSMA50 < cfg.PriceVsSMAThreshold {
			belowSMA++
		}
		if a.Volatility > cfg.HighVolatilityThreshold && a.Returns5D < cfg.NegativeReturnThreshold {
			highVolNegative++
		}
	}

	negPct := float64(negative) / float64(n)
	belowSMAPct := float64(belowSMA) / float64(n)
	highVolNegPct := float64(highVolNegative) / float64(n)

	severe := (negPct >= cfg.SeverePressureThreshold && belowSMAPct >= cfg.SeverePressureThreshold) ||
		(highVolNegPct >= cfg.SeverePressureThreshold && riskScore > cfg.SeverePressureRisk)
	if severe {
		return Pressure{
			Severity: PressureSevere,
			Reason:   fmt.Sprintf("Sustained downtrend across %d/%d assets with elevated risk", negative, n),
		}
	}

	moderate := (negPct >= cfg.ModeratePressureThreshold && riskScore > cfg.ModeratePressureRisk) ||
		belowSMAPct >= cfg.SeverePressureThreshold
	if moderate {
		return Pressure{
			Severity: PressureModerate,
			Reason:   fmt.Sprintf("Emerging downward pressure in %d/%d assets", negative, n),
		}
	}

	return Pressure{Severity: PressureNone}
}
