package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasquant/signal-engine/internal/modules/meanreversion"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
)

func defaultConfig(t *testing.T) *strategyconfig.TradingConfig {
	t.Helper()
	cfg, err := strategyconfig.NewDefaultConfig()
	require.NoError(t, err)
	return cfg
}

// neutralCtx sits inside the regime band with calm risk and no pressure.
func neutralCtx() DecisionContext {
	return DecisionContext{
		RegimeScore:      0.0,
		RiskScore:        30,
		BullishThreshold: 0.3,
		BearishThreshold: -0.3,
		CashPct:          50,
		HasHoldings:      true,
		Pressure:         meanreversion.Pressure{Severity: meanreversion.PressureNone},
		Reversion:        meanreversion.Signal{Kind: meanreversion.None},
	}
}

func TestDecideSeverePressure(t *testing.T) {
	cfg := defaultConfig(t)

	ctx := neutralCtx()
	ctx.Pressure = meanreversion.Pressure{Severity: meanreversion.PressureSevere, Reason: "test"}

	d := Decide(ctx, cfg)
	assert.Equal(t, ActionSell, d.Action)
	assert.Equal(t, "downward_pressure_severe", d.SignalType)
	// Low cash: aggressive leg, min(0.9, 0.7*1.2) = 0.84
	assert.InDelta(t, 0.84, d.AllocationPct, 1e-9)

	ctx.CashPct = 80
	d = Decide(ctx, cfg)
	assert.Equal(t, ActionSell, d.Action)
	// Defensive leg, min(0.7*0.5, 0.7) = 0.35
	assert.InDelta(t, 0.35, d.AllocationPct, 1e-9)
}

func TestDecideSeverePressureNeedsHoldings(t *testing.T) {
	cfg := defaultConfig(t)

	ctx := neutralCtx()
	ctx.Pressure = meanreversion.Pressure{Severity: meanreversion.PressureSevere}
	ctx.HasHoldings = false

	d := Decide(ctx, cfg)
	assert.NotEqual(t, "downward_pressure_severe", d.SignalType)
}

func TestDecideModeratePressure(t *testing.T) {
	cfg := defaultConfig(t)

	ctx := neutralCtx()
	ctx.RegimeScore = -0.05
	ctx.Pressure = meanreversion.Pressure{Severity: meanreversion.PressureModerate}

	d := Decide(ctx, cfg)
	assert.Equal(t, ActionSell, d.Action)
	assert.Equal(t, "downward_pressure_moderate", d.SignalType)
	assert.InDelta(t, 0.7*0.6, d.AllocationPct, 1e-9)
}

func TestDecideModeratePressureFallsThrough(t *testing.T) {
	cfg := defaultConfig(t)

	tests := []struct {
		name     string
		mutate   func(*DecisionContext)
		wantType string
	}{
		{
			name: "defensive cash defers to regime rules",
			mutate: func(ctx *DecisionContext) {
				ctx.CashPct = 85
			},
			wantType: "neutral_cautious",
		},
		{
			name: "regime past transition threshold defers",
			mutate: func(ctx *DecisionContext) {
				ctx.RegimeScore = 0.15
			},
			wantType: "neutral_cautious",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := neutralCtx()
			ctx.RegimeScore = -0.05
			ctx.Pressure = meanreversion.Pressure{Severity: meanreversion.PressureModerate}
			tt.mutate(&ctx)

			d := Decide(ctx, cfg)
			assert.Equal(t, tt.wantType, d.SignalType)
		})
	}
}

func TestDecideExtremeRisk(t *testing.T) {
	cfg := defaultConfig(t)

	ctx := neutralCtx()
	ctx.RiskScore = 90

	d := Decide(ctx, cfg)
	assert.Equal(t, ActionSell, d.Action)
	assert.Equal(t, "extreme_risk_protection", d.SignalType)
	assert.InDelta(t, 0.7, d.AllocationPct, 1e-9)

	ctx.HasHoldings = false
	d = Decide(ctx, cfg)
	assert.NotEqual(t, "extreme_risk_protection", d.SignalType)
}

func TestDecideBearish(t *testing.T) {
	cfg := defaultConfig(t)

	ctx := neutralCtx()
	ctx.RegimeScore = -0.56

	d := Decide(ctx, cfg)
	assert.Equal(t, ActionSell, d.Action)
	assert.Equal(t, "bearish_regime", d.SignalType)
	// intensity = |-0.56 - (-0.3)| / (1 - (-0.3)) = 0.26/1.3 = 0.2
	// pct = min(0.7, 0.3 + 0.2*0.4) = 0.38
	assert.InDelta(t, 0.38, d.AllocationPct, 1e-9)

	ctx.HasHoldings = false
	d = Decide(ctx, cfg)
	assert.Equal(t, ActionHold, d.Action)
	assert.Equal(t, "bearish_no_holdings", d.SignalType)
}

func TestDecideBearishSellBounded(t *testing.T) {
	cfg := defaultConfig(t)

	ctx := neutralCtx()
	ctx.RegimeScore = -0.99

	d := Decide(ctx, cfg)
	require.Equal(t, "bearish_regime", d.SignalType)
	assert.LessOrEqual(t, d.AllocationPct, cfg.SellPercentage)
}

func TestDecideNeutralBand(t *testing.T) {
	cfg := defaultConfig(t)

	tests := []struct {
		name       string
		mutate     func(*DecisionContext)
		wantAction Action
		wantType   string
		wantPct    float64
	}{
		{
			name: "oversold bounce buys the reversion allocation",
			mutate: func(ctx *DecisionContext) {
				ctx.Reversion = meanreversion.Signal{Kind: meanreversion.Oversold, Assets: []string{"SPY"}}
				ctx.RiskScore = 40
			},
			wantAction: ActionBuy,
			wantType:   "mean_reversion_oversold",
			wantPct:    0.4,
		},
		{
			name: "oversold bounce blocked by risk ceiling",
			mutate: func(ctx *DecisionContext) {
				ctx.Reversion = meanreversion.Signal{Kind: meanreversion.Oversold, Assets: []string{"SPY"}}
				ctx.RiskScore = 65
			},
			wantAction: ActionHold,
			wantType:   "neutral_high_risk",
			wantPct:    0,
		},
		{
			name: "high risk deleverages holdings",
			mutate: func(ctx *DecisionContext) {
				ctx.RiskScore = 75
			},
			wantAction: ActionSell,
			wantType:   "neutral_high_risk_deleverage",
			wantPct:    0.7 * 0.6,
		},
		{
			name: "moderately high risk holds",
			mutate: func(ctx *DecisionContext) {
				ctx.RiskScore = 65
			},
			wantAction: ActionHold,
			wantType:   "neutral_high_risk",
			wantPct:    0,
		},
		{
			name:       "calm neutral buys cautiously",
			mutate:     func(ctx *DecisionContext) {},
			wantAction: ActionBuy,
			wantType:   "neutral_cautious",
			wantPct:    0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := neutralCtx()
			tt.mutate(&ctx)

			d := Decide(ctx, cfg)
			assert.Equal(t, tt.wantAction, d.Action)
			assert.Equal(t, tt.wantType, d.SignalType)
			assert.InDelta(t, tt.wantPct, d.AllocationPct, 1e-9)
		})
	}
}

func TestDecideBullish(t *testing.T) {
	cfg := defaultConfig(t)

	tests := []struct {
		name        string
		riskScore   float64
		hasHoldings bool
		wantAction  Action
		wantType    string
		wantPct     float64
	}{
		{
			name:        "excessive risk with holdings sells",
			riskScore:   85,
			hasHoldings: true,
			wantAction:  ActionSell,
			wantType:    "bullish_excessive_risk",
			wantPct:     0.7 * 0.3,
		},
		{
			name:        "high risk without holdings still buys small",
			riskScore:   75,
			hasHoldings: false,
			wantAction:  ActionBuy,
			wantType:    "bullish_high_risk",
			wantPct:     0.3,
		},
		{
			name:        "high risk with holdings below excessive buys small",
			riskScore:   75,
			hasHoldings: true,
			wantAction:  ActionBuy,
			wantType:    "bullish_high_risk",
			wantPct:     0.3,
		},
		{
			name:        "medium risk buys medium",
			riskScore:   55,
			hasHoldings: true,
			wantAction:  ActionBuy,
			wantType:    "bullish_medium_risk",
			wantPct:     0.5,
		},
		{
			name:        "low risk rides momentum",
			riskScore:   20,
			hasHoldings: true,
			wantAction:  ActionBuy,
			wantType:    "bullish_momentum",
			wantPct:     0.8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := neutralCtx()
			ctx.RegimeScore = 0.5
			ctx.RiskScore = tt.riskScore
			ctx.HasHoldings = tt.hasHoldings

			d := Decide(ctx, cfg)
			assert.Equal(t, tt.wantAction, d.Action)
			assert.Equal(t, tt.wantType, d.SignalType)
			assert.InDelta(t, tt.wantPct, d.AllocationPct, 1e-9)
		})
	}
}

func TestDecidePriorityOrder(t *testing.T) {
	cfg := defaultConfig(t)

	// Severe pressure outranks extreme risk, which outranks the bearish
	// regime rule.
	ctx := neutralCtx()
	ctx.RegimeScore = -0.8
	ctx.RiskScore = 95
	ctx.Pressure = meanreversion.Pressure{Severity: meanreversion.PressureSevere}

	d := Decide(ctx, cfg)
	assert.Equal(t, "downward_pressure_severe", d.SignalType)

	ctx.Pressure = meanreversion.Pressure{Severity: meanreversion.PressureNone}
	d = Decide(ctx, cfg)
	assert.Equal(t, "extreme_risk_protection", d.SignalType)

	ctx.RiskScore = 60
	d = Decide(ctx, cfg)
	assert.Equal(t, "bearish_regime", d.SignalType)
}

func TestDecideDeterministic(t *testing.T) {
	cfg := defaultConfig(t)

	ctx := neutralCtx()
	ctx.RegimeScore = 0.42
	ctx.RiskScore = 58.3

	first := Decide(ctx, cfg)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Decide(ctx, cfg))
	}
}
