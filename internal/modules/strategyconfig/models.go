// Package strategyconfig manages the versioned, effective-dated strategy
// parameters. Every tunable number the decision and tuning engines read
// lives here as a typed field: defaults come from struct tags, loads are
// validated, and persistence closes the previous version before inserting
// a new open-ended row.
package strategyconfig

import (
	"fmt"
	"math"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// TradingConfig holds every tunable strategy parameter for one effective
// interval. StartDate/EndDate bound the interval; a NULL EndDate marks the
// active version. Rows are immutable once written.
type TradingConfig struct {
	ID        int64   `json:"id"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date"`
	CreatedAt string  `json:"created_at"`
	CreatedBy string  `json:"created_by"`
	Notes     string  `json:"notes"`

	// Core
	DailyCapital               float64  `json:"daily_capital" default:"1000.0" validate:"gt=0"`
	Assets                     []string `json:"assets" validate:"min=1,dive,required"`
	LookbackDays               int      `json:"lookback_days" default:"252" validate:"gte=30"`
	RegimeBullishThreshold     float64  `json:"regime_bullish_threshold" default:"0.3" validate:"gt=0,lte=1"`
	RegimeBearishThreshold     float64  `json:"regime_bearish_threshold" default:"-0.3" validate:"gte=-1,lt=0"`
	RiskHighThreshold          float64  `json:"risk_high_threshold" default:"70.0" validate:"gte=0,lte=100"`
	RiskMediumThreshold        float64  `json:"risk_medium_threshold" default:"40.0" validate:"gte=0,lte=100"`
	AllocationLowRisk          float64  `json:"allocation_low_risk" default:"0.8" validate:"gte=0,lte=1"`
	AllocationMediumRisk       float64  `json:"allocation_medium_risk" default:"0.5" validate:"gte=0,lte=1"`
	AllocationHighRisk         float64  `json:"allocation_high_risk" default:"0.3" validate:"gte=0,lte=1"`
	AllocationNeutral          float64  `json:"allocation_neutral" default:"0.2" validate:"gte=0,lte=1"`
	SellPercentage             float64  `json:"sell_percentage" default:"0.7" validate:"gte=0,lte=1"`
	MomentumWeight             float64  `json:"momentum_weight" default:"0.6" validate:"gte=0,lte=1"`
	PriceMomentumWeight        float64  `json:"price_momentum_weight" default:"0.4" validate:"gte=0,lte=1"`
	MaxDrawdownTolerance       float64  `json:"max_drawdown_tolerance" default:"15.0" validate:"gt=0,lte=100"`
	MinSharpeTarget            float64  `json:"min_sharpe_target" default:"1.0" validate:"gte=0"`
	RSIOversoldThreshold       float64  `json:"rsi_oversold_threshold" default:"30.0" validate:"gte=0,lte=100"`
	RSIOverboughtThreshold     float64  `json:"rsi_overbought_threshold" default:"70.0" validate:"gte=0,lte=100"`
	BollingerStdMultiplier     float64  `json:"bollinger_std_multiplier" default:"2.0" validate:"gt=0"`
	MeanReversionAllocation    float64  `json:"mean_reversion_allocation" default:"0.4" validate:"gte=0,lte=1"`
	VolatilityAdjustmentFactor float64  `json:"volatility_adjustment_factor" default:"0.4" validate:"gte=0"`
	BaseVolatility             float64  `json:"base_volatility" default:"0.01" validate:"gt=0"`
	MinConfidenceThreshold     float64  `json:"min_confidence_threshold" default:"0.3" validate:"gte=0,lte=1"`
	ConfidenceScalingFactor    float64  `json:"confidence_scaling_factor" default:"0.5" validate:"gte=0,lte=1"`
	IntramonthDrawdownLimit    float64  `json:"intramonth_drawdown_limit" default:"0.10" validate:"gt=0,lte=1"`
	CircuitBreakerReduction    float64  `json:"circuit_breaker_reduction" default:"0.5" validate:"gte=0,lte=1"`

	// Regime detection
	RegimeMomentumWeight      float64 `json:"regime_momentum_weight" default:"0.5" validate:"gte=0,lte=1"`
	RegimeSMA20Weight         float64 `json:"regime_sma20_weight" default:"0.3" validate:"gte=0,lte=1"`
	RegimeSMA50Weight         float64 `json:"regime_sma50_weight" default:"0.2" validate:"gte=0,lte=1"`
	RegimeTransitionThreshold float64 `json:"regime_transition_threshold" default:"0.1" validate:"gt=0,lte=1"`
	MomentumLossThreshold     float64 `json:"momentum_loss_threshold" default:"-0.15" validate:"lt=0"`
	MomentumGainThreshold     float64 `json:"momentum_gain_threshold" default:"0.15" validate:"gt=0"`
	AdaptiveClampMin          float64 `json:"adaptive_clamp_min" default:"0.7" validate:"gt=0,lte=1"`
	AdaptiveClampMax          float64 `json:"adaptive_clamp_max" default:"1.5" validate:"gte=1"`

	// Risk and confidence
	VolatilityNormalizationFactor float64 `json:"volatility_normalization_factor" default:"0.02" validate:"gt=0"`
	StabilityThreshold            float64 `json:"stability_threshold" default:"0.05" validate:"gt=0"`
	StabilityDiscountFactor       float64 `json:"stability_discount_factor" default:"0.3" validate:"gte=0,lte=1"`
	CorrelationRiskBase           float64 `json:"correlation_risk_base" default:"30.0" validate:"gte=0,lte=100"`
	CorrelationRiskMultiplier     float64 `json:"correlation_risk_multiplier" default:"100.0" validate:"gte=0"`
	RiskVolatilityWeight          float64 `json:"risk_volatility_weight" default:"0.7" validate:"gte=0,lte=1"`
	RiskCorrelationWeight         float64 `json:"risk_correlation_weight" default:"0.3" validate:"gte=0,lte=1"`
	RegimeConfidenceDivisor       float64 `json:"regime_confidence_divisor" default:"0.5" validate:"gt=0"`
	RiskPenaltyMin                float64 `json:"risk_penalty_min" default:"40.0" validate:"gte=0,lte=100"`
	RiskPenaltyMax                float64 `json:"risk_penalty_max" default:"60.0" validate:"gte=0,lte=100,gtfield=RiskPenaltyMin"`
	RiskPenaltyMultiplier         float64 `json:"risk_penalty_multiplier" default:"0.3" validate:"gte=0,lte=1"`
	ConsistencyBonus              float64 `json:"consistency_bonus" default:"0.2" validate:"gte=0,lte=1"`
	TrendConsistencyThreshold     float64 `json:"trend_consistency_threshold" default:"1.2" validate:"gt=0"`
	MeanReversionBaseConfidence   float64 `json:"mean_reversion_base_confidence" default:"0.6" validate:"gte=0,lte=1"`
	ConfidenceBucketHigh          float64 `json:"confidence_bucket_high" default:"0.7" validate:"gte=0,lte=1,gtfield=ConfidenceBucketMedium"`
	ConfidenceBucketMedium        float64 `json:"confidence_bucket_medium" default:"0.5" validate:"gte=0,lte=1"`

	// Mean reversion and downward pressure
	StrongTrendThreshold      float64 `json:"strong_trend_threshold" default:"0.4" validate:"gt=0"`
	BBOversoldThreshold       float64 `json:"bb_oversold_threshold" default:"-0.5" validate:"gte=-1,lte=0"`
	BBOverboughtThreshold     float64 `json:"bb_overbought_threshold" default:"0.5" validate:"gte=0,lte=1"`
	PriceVsSMAThreshold       float64 `json:"price_vs_sma_threshold" default:"-0.02" validate:"lte=0"`
	HighVolatilityThreshold   float64 `json:"high_volatility_threshold" default:"0.015" validate:"gt=0"`
	NegativeReturnThreshold   float64 `json:"negative_return_threshold" default:"-0.03" validate:"lt=0"`
	SeverePressureThreshold   float64 `json:"severe_pressure_threshold" default:"0.67" validate:"gt=0,lte=1"`
	ModeratePressureThreshold float64 `json:"moderate_pressure_threshold" default:"0.50" validate:"gt=0,lte=1"`
	SeverePressureRisk        float64 `json:"severe_pressure_risk" default:"50.0" validate:"gte=0,lte=100"`
	ModeratePressureRisk      float64 `json:"moderate_pressure_risk" default:"45.0" validate:"gte=0,lte=100"`

	// Signal decision
	ExtremeRiskThreshold           float64 `json:"extreme_risk_threshold" default:"85.0" validate:"gte=0,lte=100"`
	DefensiveCashThreshold         float64 `json:"defensive_cash_threshold" default:"70.0" validate:"gte=0,lte=100"`
	SellDefensiveMultiplier        float64 `json:"sell_defensive_multiplier" default:"0.5" validate:"gt=0,lte=2"`
	SellAggressiveMultiplier       float64 `json:"sell_aggressive_multiplier" default:"1.2" validate:"gt=0,lte=2"`
	SellModeratePressureMultiplier float64 `json:"sell_moderate_pressure_multiplier" default:"0.6" validate:"gt=0,lte=2"`
	SellBullishRiskMultiplier      float64 `json:"sell_bullish_risk_multiplier" default:"0.3" validate:"gt=0,lte=2"`
	SellPercentageMax              float64 `json:"sell_percentage_max" default:"0.9" validate:"gt=0,lte=1"`
	BearishSellBase                float64 `json:"bearish_sell_base" default:"0.3" validate:"gte=0,lte=1"`
	BearishSellIntensityMultiplier float64 `json:"bearish_sell_intensity_multiplier" default:"0.4" validate:"gte=0"`
	MeanReversionMaxRisk           float64 `json:"mean_reversion_max_risk" default:"60.0" validate:"gte=0,lte=100"`
	NeutralDeleverageRisk          float64 `json:"neutral_deleverage_risk" default:"70.0" validate:"gte=0,lte=100"`
	NeutralHoldRisk                float64 `json:"neutral_hold_risk" default:"60.0" validate:"gte=0,lte=100"`
	BullishExcessiveRisk           float64 `json:"bullish_excessive_risk" default:"80.0" validate:"gte=0,lte=100"`

	// Ranking and allocation
	TrendAlignedMultiplier  float64 `json:"trend_aligned_multiplier" default:"1.5" validate:"gt=0"`
	TrendMixedMultiplier    float64 `json:"trend_mixed_multiplier" default:"1.0" validate:"gt=0"`
	OversoldStrongBonus     float64 `json:"oversold_strong_bonus" default:"0.3" validate:"gte=-1,lte=1"`
	OversoldMildBonus       float64 `json:"oversold_mild_bonus" default:"0.1" validate:"gte=-1,lte=1"`
	OverboughtPenalty       float64 `json:"overbought_penalty" default:"-0.2" validate:"gte=-1,lte=1"`
	RSIMildOversold         float64 `json:"rsi_mild_oversold" default:"40.0" validate:"gte=0,lte=100"`
	BBMildOversold          float64 `json:"bb_mild_oversold" default:"0.0" validate:"gte=-1,lte=1"`
	DiversifyTopAssetMin    float64 `json:"diversify_top_asset_min" default:"0.40" validate:"gte=0,lte=1"`
	DiversifyTopAssetMax    float64 `json:"diversify_top_asset_max" default:"0.50" validate:"gte=0,lte=1,gtefield=DiversifyTopAssetMin"`
	DiversifySecondAssetMin float64 `json:"diversify_second_asset_min" default:"0.30" validate:"gte=0,lte=1"`
	DiversifySecondAssetMax float64 `json:"diversify_second_asset_max" default:"0.35" validate:"gte=0,lte=1,gtefield=DiversifySecondAssetMin"`
	DiversifyThirdAssetMin  float64 `json:"diversify_third_asset_min" default:"0.15" validate:"gte=0,lte=1"`
	DiversifyThirdAssetMax  float64 `json:"diversify_third_asset_max" default:"0.25" validate:"gte=0,lte=1,gtefield=DiversifyThirdAssetMin"`
	TwoAssetTop             float64 `json:"two_asset_top" default:"0.65" validate:"gte=0,lte=1"`
	TwoAssetSecond          float64 `json:"two_asset_second" default:"0.35" validate:"gte=0,lte=1"`

	// Trade evaluation and market condition
	RegimeClassificationBullish     float64 `json:"regime_classification_bullish" default:"0.3" validate:"gt=0,lte=1"`
	RegimeClassificationBearish     float64 `json:"regime_classification_bearish" default:"-0.3" validate:"gte=-1,lt=0"`
	GoodTradeScoreThreshold         float64 `json:"good_trade_score_threshold" default:"0.5" validate:"gte=-1,lte=1"`
	ShouldAvoidDDThreshold          float64 `json:"should_avoid_dd_threshold" default:"50.0" validate:"gte=0,lte=100"`
	ShouldAvoidLossThreshold        float64 `json:"should_avoid_loss_threshold" default:"-100.0" validate:"lte=0"`
	MarketConditionRSquared         float64 `json:"market_condition_r_squared" default:"0.6" validate:"gte=0,lte=1"`
	MarketConditionSlope            float64 `json:"market_condition_slope" default:"0.5" validate:"gt=0"`
	MarketConditionChoppyRSquared   float64 `json:"market_condition_choppy_r_squared" default:"0.3" validate:"gte=0,lte=1"`
	MarketConditionChoppyVolatility float64 `json:"market_condition_choppy_volatility" default:"0.015" validate:"gt=0"`

	// Trade scoring
	ScoreProfitableBonus     float64 `json:"score_profitable_bonus" default:"0.3" validate:"gte=-1,lte=1"`
	ScoreSharpeBonus         float64 `json:"score_sharpe_bonus" default:"0.2" validate:"gte=-1,lte=1"`
	ScoreLowDDBonus          float64 `json:"score_low_dd_bonus" default:"0.1" validate:"gte=-1,lte=1"`
	ScoreDDLowThreshold      float64 `json:"score_dd_low_threshold" default:"10.0" validate:"gte=0,lte=100"`
	ScoreAllHorizonsBonus    float64 `json:"score_all_horizons_bonus" default:"0.2" validate:"gte=-1,lte=1"`
	ScoreTwoHorizonsBonus    float64 `json:"score_two_horizons_bonus" default:"0.1" validate:"gte=-1,lte=1"`
	ScoreUnprofitablePenalty float64 `json:"score_unprofitable_penalty" default:"-0.3" validate:"gte=-1,lte=1"`
	ScoreHighDDPenalty       float64 `json:"score_high_dd_penalty" default:"-0.3" validate:"gte=-1,lte=1"`
	ScoreDDHighThreshold     float64 `json:"score_dd_high_threshold" default:"30.0" validate:"gte=0,lte=100"`
	ScoreSharpePenalty       float64 `json:"score_sharpe_penalty" default:"-0.2" validate:"gte=-1,lte=1"`
	ScoreMomentumBonus       float64 `json:"score_momentum_bonus" default:"0.2" validate:"gte=-1,lte=1"`
	ScoreChoppyPenalty       float64 `json:"score_choppy_penalty" default:"-0.2" validate:"gte=-1,lte=1"`
	ScoreHoldBonusMultiplier float64 `json:"score_hold_bonus_multiplier" default:"0.5" validate:"gte=0,lte=1"`
	ScoreMeanReversionBonus  float64 `json:"score_mean_reversion_bonus" default:"0.1" validate:"gte=-1,lte=1"`
	ScoreConfidenceBonus     float64 `json:"score_confidence_bonus" default:"0.1" validate:"gte=-1,lte=1"`

	// Monthly tuning steps and clamps
	TuneAllocationStep            float64 `json:"tune_allocation_step" default:"0.05" validate:"gt=0,lte=1"`
	TuneAllocationLowRiskMin      float64 `json:"tune_allocation_low_risk_min" default:"0.5" validate:"gte=0,lte=1"`
	TuneAllocationLowRiskMax      float64 `json:"tune_allocation_low_risk_max" default:"0.95" validate:"gte=0,lte=1,gtefield=TuneAllocationLowRiskMin"`
	TuneAllocationMediumRiskMin   float64 `json:"tune_allocation_medium_risk_min" default:"0.3" validate:"gte=0,lte=1"`
	TuneAllocationMediumRiskMax   float64 `json:"tune_allocation_medium_risk_max" default:"0.7" validate:"gte=0,lte=1,gtefield=TuneAllocationMediumRiskMin"`
	TuneNeutralStep               float64 `json:"tune_neutral_step" default:"0.05" validate:"gt=0,lte=1"`
	TuneAllocationNeutralMin      float64 `json:"tune_allocation_neutral_min" default:"0.1" validate:"gte=0,lte=1"`
	TuneRiskThresholdStep         float64 `json:"tune_risk_threshold_step" default:"2.5" validate:"gt=0,lte=100"`
	TuneRiskMediumThresholdMin    float64 `json:"tune_risk_medium_threshold_min" default:"30.0" validate:"gte=0,lte=100"`
	TuneRiskHighThresholdMin      float64 `json:"tune_risk_high_threshold_min" default:"60.0" validate:"gte=0,lte=100"`
	TuneRiskHighThresholdMax      float64 `json:"tune_risk_high_threshold_max" default:"80.0" validate:"gte=0,lte=100,gtefield=TuneRiskHighThresholdMin"`
	TuneAllocationHighRiskMin     float64 `json:"tune_allocation_high_risk_min" default:"0.15" validate:"gte=0,lte=1"`
	TuneAllocationHighRiskMax     float64 `json:"tune_allocation_high_risk_max" default:"0.5" validate:"gte=0,lte=1,gtefield=TuneAllocationHighRiskMin"`
	TuneRegimeBullishMin          float64 `json:"tune_regime_bullish_min" default:"0.2" validate:"gt=0,lte=1"`
	TuneRegimeBullishMax          float64 `json:"tune_regime_bullish_max" default:"0.45" validate:"gt=0,lte=1,gtefield=TuneRegimeBullishMin"`
	TuneSharpeAggressiveThreshold float64 `json:"tune_sharpe_aggressive_threshold" default:"1.5" validate:"gte=1"`
	TuneAggressiveWinRate         float64 `json:"tune_aggressive_win_rate" default:"60.0" validate:"gte=0,lte=100"`
	TuneAggressiveParticipation   float64 `json:"tune_aggressive_participation" default:"0.5" validate:"gt=0,lte=1"`
	TuneAggressiveScore           float64 `json:"tune_aggressive_score" default:"0.2" validate:"gte=-1,lte=1"`
	TuneConservativeWinRate       float64 `json:"tune_conservative_win_rate" default:"40.0" validate:"gte=0,lte=100"`
	TuneConservativeDD            float64 `json:"tune_conservative_dd" default:"25.0" validate:"gte=0,lte=100"`
	TuneConservativeScore         float64 `json:"tune_conservative_score" default:"-0.1" validate:"gte=-1,lte=1"`
	TuneSellStep                  float64 `json:"tune_sell_step" default:"0.05" validate:"gt=0,lte=1"`
	TuneSellPercentageMin         float64 `json:"tune_sell_percentage_min" default:"0.3" validate:"gte=0,lte=1"`
	TuneSellPercentageMax         float64 `json:"tune_sell_percentage_max" default:"0.9" validate:"gte=0,lte=1,gtefield=TuneSellPercentageMin"`
	TuneSellIneffectiveWinRate    float64 `json:"tune_sell_ineffective_win_rate" default:"40.0" validate:"gte=0,lte=100"`
	TuneSellEffectiveWinRate      float64 `json:"tune_sell_effective_win_rate" default:"60.0" validate:"gte=0,lte=100"`
	TuneConfidenceStep            float64 `json:"tune_confidence_step" default:"0.05" validate:"gt=0,lte=1"`
	TuneMinConfidenceMin          float64 `json:"tune_min_confidence_min" default:"0.2" validate:"gte=0,lte=1"`
	TuneMinConfidenceMax          float64 `json:"tune_min_confidence_max" default:"0.5" validate:"gte=0,lte=1,gtefield=TuneMinConfidenceMin"`
	TuneHighBucketWinRate         float64 `json:"tune_high_bucket_win_rate" default:"55.0" validate:"gte=0,lte=100"`
	TuneLowBucketWinRate          float64 `json:"tune_low_bucket_win_rate" default:"50.0" validate:"gte=0,lte=100"`
	TuneMRIneffectiveWinRate      float64 `json:"tune_mr_ineffective_win_rate" default:"40.0" validate:"gte=0,lte=100"`
	TuneMREffectiveWinRate        float64 `json:"tune_mr_effective_win_rate" default:"60.0" validate:"gte=0,lte=100"`
	TuneMRAllocationMin           float64 `json:"tune_mr_allocation_min" default:"0.2" validate:"gte=0,lte=1"`
	TuneMRAllocationMax           float64 `json:"tune_mr_allocation_max" default:"0.6" validate:"gte=0,lte=1,gtefield=TuneMRAllocationMin"`
	TuneMinBucketTrades           int     `json:"tune_min_bucket_trades" default:"5" validate:"gte=1"`
	TuneRiskWeightStep            float64 `json:"tune_risk_weight_step" default:"0.05" validate:"gt=0,lte=1"`
	TuneRiskWeightGapThreshold    float64 `json:"tune_risk_weight_gap_threshold" default:"-10.0" validate:"gte=-100,lte=100"`
	TuneRiskWeightStrongGap       float64 `json:"tune_risk_weight_strong_gap" default:"20.0" validate:"gte=0,lte=100"`
	TuneRiskVolatilityWeightMin   float64 `json:"tune_risk_volatility_weight_min" default:"0.5" validate:"gte=0,lte=1"`
	TuneRiskVolatilityWeightMax   float64 `json:"tune_risk_volatility_weight_max" default:"0.85" validate:"gte=0,lte=1,gtefield=TuneRiskVolatilityWeightMin"`

	// Out-of-sample validation
	ValidationSharpeTolerance float64 `json:"validation_sharpe_tolerance" default:"0.8" validate:"gt=0"`
	ValidationDDTolerance     float64 `json:"validation_dd_tolerance" default:"1.2" validate:"gt=0"`
	ValidationSharpeWeight    float64 `json:"validation_sharpe_weight" default:"0.5" validate:"gte=0,lte=1"`
	ValidationDrawdownWeight  float64 `json:"validation_drawdown_weight" default:"0.5" validate:"gte=0,lte=1"`
	ValidationPassingScore    float64 `json:"validation_passing_score" default:"0.5" validate:"gt=0,lte=1"`
}

// NewDefaultConfig builds a fully populated config from the struct tag
// defaults. The result passes Validate.
func NewDefaultConfig() (*TradingConfig, error) {
	cfg := &TradingConfig{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}

	// Slice defaults don't fit in a struct tag
	if len(cfg.Assets) == 0 {
		cfg.Assets = []string{"SPY", "QQQ", "DIA"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks every field range plus the cross-field invariants the
// tag syntax cannot express.
func (c *TradingConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid trading config: %w", err)
	}

	// The risk weights are complementary; tuning shifts weight between
	// them but must keep the total at one.
	if math.Abs(c.RiskVolatilityWeight+c.RiskCorrelationWeight-1.0) > 1e-9 {
		return fmt.Errorf("invalid trading config: risk weights must sum to 1, got %.4f",
			c.RiskVolatilityWeight+c.RiskCorrelationWeight)
	}

	if math.Abs(c.RegimeMomentumWeight+c.RegimeSMA20Weight+c.RegimeSMA50Weight-1.0) > 1e-9 {
		return fmt.Errorf("invalid trading config: regime weights must sum to 1, got %.4f",
			c.RegimeMomentumWeight+c.RegimeSMA20Weight+c.RegimeSMA50Weight)
	}

	if c.RegimeBearishThreshold >= c.RegimeBullishThreshold {
		return fmt.Errorf("invalid trading config: bearish threshold %.2f must be below bullish %.2f",
			c.RegimeBearishThreshold, c.RegimeBullishThreshold)
	}

	return nil
}

// Clone returns a deep copy. Tuning mutates the copy and persists it as a
// new version, leaving the loaded config untouched.
func (c *TradingConfig) Clone() *TradingConfig {
	clone := *c
	clone.Assets = append([]string(nil), c.Assets...)
	if c.EndDate != nil {
		end := *c.EndDate
		clone.EndDate = &end
	}
	return &clone
}

// StrategyConstraints holds the operational limits the tuner never touches:
// capital scaling tiers, Kelly gating, evaluation horizons and the risk-free
// rate. Effective-dated the same way as TradingConfig.
type StrategyConstraints struct {
	ID        int64   `json:"id"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date"`
	CreatedAt string  `json:"created_at"`
	CreatedBy string  `json:"created_by"`
	Notes     string  `json:"notes"`

	MinHoldingThreshold      float64 `json:"min_holding_threshold" default:"10.0" validate:"gte=0"`
	CapitalTier1Threshold    float64 `json:"capital_tier1_threshold" default:"10000.0" validate:"gt=0"`
	CapitalTier1Factor       float64 `json:"capital_tier1_factor" default:"1.0" validate:"gt=0,lte=1"`
	CapitalTier2Threshold    float64 `json:"capital_tier2_threshold" default:"50000.0" validate:"gt=0,gtfield=CapitalTier1Threshold"`
	CapitalTier2Factor       float64 `json:"capital_tier2_factor" default:"0.75" validate:"gt=0,lte=1"`
	CapitalTier3Threshold    float64 `json:"capital_tier3_threshold" default:"200000.0" validate:"gt=0,gtfield=CapitalTier2Threshold"`
	CapitalTier3Factor       float64 `json:"capital_tier3_factor" default:"0.50" validate:"gt=0,lte=1"`
	CapitalMaxReduction      float64 `json:"capital_max_reduction" default:"0.35" validate:"gt=0,lte=1"`
	MinTradesForKelly        int     `json:"min_trades_for_kelly" default:"10" validate:"gte=1"`
	KellyConfidenceThreshold float64 `json:"kelly_confidence_threshold" default:"0.6" validate:"gte=0,lte=1"`
	MinDataDays              int     `json:"min_data_days" default:"60" validate:"gte=1"`
	PnLHorizonShort          int     `json:"pnl_horizon_short" default:"10" validate:"gte=1"`
	PnLHorizonMedium         int     `json:"pnl_horizon_medium" default:"20" validate:"gte=1,gtfield=PnLHorizonShort"`
	PnLHorizonLong           int     `json:"pnl_horizon_long" default:"30" validate:"gte=1,gtfield=PnLHorizonMedium"`
	RiskFreeRate             float64 `json:"risk_free_rate" default:"0.05" validate:"gte=0,lte=1"`
	DrawdownWindowDays       int     `json:"drawdown_window_days" default:"5" validate:"gte=1"`
}

// Horizons returns the three trade evaluation horizons in ascending order.
func (sc *StrategyConstraints) Horizons() []int {
	return []int{sc.PnLHorizonShort, sc.PnLHorizonMedium, sc.PnLHorizonLong}
}

// NewDefaultConstraints builds the default constraints from struct tags.
func NewDefaultConstraints() (*StrategyConstraints, error) {
	sc := &StrategyConstraints{}
	if err := defaults.Set(sc); err != nil {
		return nil, fmt.Errorf("failed to apply constraint defaults: %w", err)
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}

	return sc, nil
}

// Validate checks all constraint field ranges and ordering.
func (sc *StrategyConstraints) Validate() error {
	if err := validate.Struct(sc); err != nil {
		return fmt.Errorf("invalid strategy constraints: %w", err)
	}

	if sc.CapitalMaxReduction > sc.CapitalTier3Factor {
		return fmt.Errorf("invalid strategy constraints: max reduction %.2f exceeds tier 3 factor %.2f",
			sc.CapitalMaxReduction, sc.CapitalTier3Factor)
	}

	return nil
}
