package meanreversion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasquant/signal-engine/internal/modules/features"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

func testConfig(t *testing.T) *strategyconfig.TradingConfig {
	t.Helper()
	cfg, err := strategyconfig.NewDefaultConfig()
	require.NoError(t, err)
	return cfg
}

func TestDetectOversold(t *testing.T) {
	cfg := testConfig(t)

	assets := []features.AssetFeatures{
		{Symbol: "SPY", RSI: 25, BollingerPosition: -0.8},
		{Symbol: "QQQ", RSI: 45, BollingerPosition: -0.2},
	}

	sig := Detect(assets, 0.1, cfg)
	assert.Equal(t, Oversold, sig.Kind)
	assert.Equal(t, []string{"SPY"}, sig.Assets)
}

func TestDetectOverbought(t *testing.T) {
	cfg := testConfig(t)

	assets := []features.AssetFeatures{
		{Symbol: "SPY", RSI: 78, BollingerPosition: 0.9},
		{Symbol: "QQQ", RSI: 55, BollingerPosition: 0.1},
	}

	sig := Detect(assets, -0.1, cfg)
	assert.Equal(t, Overbought, sig.Kind)
	assert.Equal(t, []string{"SPY"}, sig.Assets)
}

func TestDetectOversoldWinsOverOverbought(t *testing.T) {
	cfg := testConfig(t)

	assets := []features.AssetFeatures{
		{Symbol: "SPY", RSI: 25, BollingerPosition: -0.8},
		{Symbol: "QQQ", RSI: 78, BollingerPosition: 0.9},
	}

	sig := Detect(assets, 0.0, cfg)
	assert.Equal(t, Oversold, sig.Kind)
}

func TestDetectSuppressedByStrongTrend(t *testing.T) {
	cfg := testConfig(t)

	assets := []features.AssetFeatures{
		{Symbol: "SPY", RSI: 25, BollingerPosition: -0.8},
	}

	// strong_trend_threshold 0.4
	assert.Equal(t, None, Detect(assets, 0.45, cfg).Kind)
	assert.Equal(t, None, Detect(assets, -0.45, cfg).Kind)
	assert.Equal(t, Oversold, Detect(assets, 0.39, cfg).Kind)
}

func TestDetectRequiresBothIndicators(t *testing.T) {
	cfg := testConfig(t)

	// Low RSI alone is not enough
	assets := []features.AssetFeatures{
		{Symbol: "SPY", RSI: 25, BollingerPosition: 0.0},
	}
	assert.Equal(t, None, Detect(assets, 0.0, cfg).Kind)

	// Deep band position alone is not enough either
	assets = []features.AssetFeatures{
		{Symbol: "SPY", RSI: 50, BollingerPosition: -0.9},
	}
	assert.Equal(t, None, Detect(assets, 0.0, cfg).Kind)
}

func TestDetectPressureNone(t *testing.T) {
	cfg := testConfig(t)

	assets := []features.AssetFeatures{
		{Symbol: "SPY", Returns5D: 0.01, Returns20D: 0.02, Returns60D: 0.05},
		{Symbol: "QQQ", Returns5D: 0.02, Returns20D: 0.01, Returns60D: 0.04},
		{Symbol: "DIA", Returns5D: -0.01, Returns20D: 0.01, Returns60D: 0.03},
	}

	p := DetectPressure(assets, 20, cfg)
	assert.Equal(t, PressureNone, p.Severity)
	assert.Empty(t, p.Reason)
}

func TestDetectPressureEmptyAssets(t *testing.T) {
	p := DetectPressure(nil, 90, testConfig(t))
	assert.Equal(t, PressureNone, p.Severity)
}

func TestDetectPressureSevere(t *testing.T) {
	cfg := testConfig(t)

	// All three assets negative on every horizon and below both SMAs:
	// negPct and belowSMAPct both 1.0 >= 0.67
	weak := features.AssetFeatures{
		Returns5D: -0.02, Returns20D: -0.05, Returns60D: -0.10,
		PriceVsSMA20: -0.05, PriceVsSMA50: -0.08,
	}
	a, b, c := weak, weak, weak
	a.Symbol, b.Symbol, c.Symbol = "SPY", "QQQ", "DIA"

	p := DetectPressure([]features.AssetFeatures{a, b, c}, 30, cfg)
	assert.Equal(t, PressureSevere, p.Severity)
	assert.Equal(t, "Sustained downtrend across 3/3 assets with elevated risk", p.Reason)
}

func TestDetectPressureSevereViaVolatility(t *testing.T) {
	cfg := testConfig(t)

	// High volatility with sharp short-term losses on all assets, but
	// prices still above SMAs; severe only because risk is elevated
	stressed := features.AssetFeatures{
		Returns5D: -0.05, Returns20D: 0.01, Returns60D: 0.05,
		Volatility:   0.03,
		PriceVsSMA20: 0.01, PriceVsSMA50: 0.02,
	}
	a, b, c := stressed, stressed, stressed
	a.Symbol, b.Symbol, c.Symbol = "SPY", "QQQ", "DIA"

	p := DetectPressure([]features.AssetFeatures{a, b, c}, 55, cfg)
	assert.Equal(t, PressureSevere, p.Severity)

	// Same picture with low risk is not severe
	p = DetectPressure([]features.AssetFeatures{a, b, c}, 40, cfg)
	assert.NotEqual(t, PressureSevere, p.Severity)
}

func TestDetectPressureModerate(t *testing.T) {
	cfg := testConfig(t)

	// Two of three assets negative on all horizons (0.67 > 0.5 threshold)
	// with elevated risk, but no SMA breakdown
	weak := features.AssetFeatures{
		Returns5D: -0.02, Returns20D: -0.03, Returns60D: -0.05,
		PriceVsSMA20: 0.01, PriceVsSMA50: 0.01,
	}
	strong := features.AssetFeatures{
		Returns5D: 0.02, Returns20D: 0.03, Returns60D: 0.05,
		PriceVsSMA20: 0.02, PriceVsSMA50: 0.03,
	}
	a, b := weak, weak
	a.Symbol, b.Symbol = "SPY", "QQQ"
	strong.Symbol = "DIA"

	p := DetectPressure([]features.AssetFeatures{a, b, strong}, 50, cfg)
	assert.Equal(t, PressureModerate, p.Severity)
	assert.Equal(t, "Emerging downward pressure in 2/3 assets", p.Reason)

	// Same returns with low risk: no pressure
	p = DetectPressure([]features.AssetFeatures{a, b, strong}, 30, cfg)
	assert.Equal(t, PressureNone, p.Severity)
}
