package strategyconfig

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/database"
)

// SeedStartDate is the effective date of the initial seeded version, far
// enough back to cover any backtest range.
const SeedStartDate = "2015-01-01"

var (
	// ErrNoActiveConfig means no config version covers the requested date.
	// Decision code treats this as fatal rather than inventing parameters.
	ErrNoActiveConfig = errors.New("no active trading config")

	// ErrNoActiveConstraints is the constraints-table equivalent.
	ErrNoActiveConstraints = errors.New("no active strategy constraints")
)

// configParamColumns lists every parameter column of trading_config except
// assets, in schema order. paramPointers must stay aligned with this list;
// SELECT, INSERT and Scan are all generated from the pair so a mismatch
// shows up as a round-trip test failure, not silent column drift.
var configParamColumns = []string{
	// core
	"daily_capital",
	"lookback_days",
	"regime_bullish_threshold",
	"regime_bearish_threshold",
	"risk_high_threshold",
	"risk_medium_threshold",
	"allocation_low_risk",
	"allocation_medium_risk",
	"allocation_high_risk",
	"allocation_neutral",
	"sell_percentage",
	"momentum_weight",
	"price_momentum_weight",
	"max_drawdown_tolerance",
	"min_sharpe_target",
	"rsi_oversold_threshold",
	"rsi_overbought_threshold",
	"bollinger_std_multiplier",
	"mean_reversion_allocation",
	"volatility_adjustment_factor",
	"base_volatility",
	"min_confidence_threshold",
	"confidence_scaling_factor",
	"intramonth_drawdown_limit",
	"circuit_breaker_reduction",

	// regime detection
	"regime_momentum_weight",
	"regime_sma20_weight",
	"regime_sma50_weight",
	"regime_transition_threshold",
	"momentum_loss_threshold",
	"momentum_gain_threshold",
	"adaptive_clamp_min",
	"adaptive_clamp_max",

	// risk and confidence
	"volatility_normalization_factor",
	"stability_threshold",
	"stability_discount_factor",
	"correlation_risk_base",
	"correlation_risk_multiplier",
	"risk_volatility_weight",
	"risk_correlation_weight",
	"regime_confidence_divisor",
	"risk_penalty_min",
	"risk_penalty_max",
	"risk_penalty_multiplier",
	"consistency_bonus",
	"trend_consistency_threshold",
	"mean_reversion_base_confidence",
	"confidence_bucket_high",
	"confidence_bucket_medium",

	// mean reversion and downward pressure
	"strong_trend_threshold",
	"bb_oversold_threshold",
	"bb_overbought_threshold",
	"price_vs_sma_threshold",
	"high_volatility_threshold",
	"negative_return_threshold",
	"severe_pressure_threshold",
	"moderate_pressure_threshold",
	"severe_pressure_risk",
	"moderate_pressure_risk",

	// signal decision
	"extreme_risk_threshold",
	"defensive_cash_threshold",
	"sell_defensive_multiplier",
	"sell_aggressive_multiplier",
	"sell_moderate_pressure_multiplier",
	"sell_bullish_risk_multiplier",
	"sell_percentage_max",
	"bearish_sell_base",
	"bearish_sell_intensity_multiplier",
	"mean_reversion_max_risk",
	"neutral_deleverage_risk",
	"neutral_hold_risk",
	"bullish_excessive_risk",

	// ranking and allocation
	"trend_aligned_multiplier",
	"trend_mixed_multiplier",
	"oversold_strong_bonus",
	"oversold_mild_bonus",
	"overbought_penalty",
	"rsi_mild_oversold",
	"bb_mild_oversold",
	"diversify_top_asset_min",
	"diversify_top_asset_max",
	"diversify_second_asset_min",
	"diversify_second_asset_max",
	"diversify_third_asset_min",
	"diversify_third_asset_max",
	"two_asset_top",
	"two_asset_second",

	// trade evaluation and market condition
	"regime_classification_bullish",
	"regime_classification_bearish",
	"good_trade_score_threshold",
	"should_avoid_dd_threshold",
	"should_avoid_loss_threshold",
	"market_condition_r_squared",
	"market_condition_slope",
	"market_condition_choppy_r_squared",
	"market_condition_choppy_volatility",

	// trade scoring
	"score_profitable_bonus",
	"score_sharpe_bonus",
	"score_low_dd_bonus",
	"score_dd_low_threshold",
	"score_all_horizons_bonus",
	"score_two_horizons_bonus",
	"score_unprofitable_penalty",
	"score_high_dd_penalty",
	"score_dd_high_threshold",
	"score_sharpe_penalty",
	"score_momentum_bonus",
	"score_choppy_penalty",
	"score_hold_bonus_multiplier",
	"score_mean_reversion_bonus",
	"score_confidence_bonus",

	// monthly tuning steps and clamps
	"tune_allocation_step",
	"tune_allocation_low_risk_min",
	"tune_allocation_low_risk_max",
	"tune_allocation_medium_risk_min",
	"tune_allocation_medium_risk_max",
	"tune_neutral_step",
	"tune_allocation_neutral_min",
	"tune_risk_threshold_step",
	"tune_risk_medium_threshold_min",
	"tune_risk_high_threshold_min",
	"tune_risk_high_threshold_max",
	"tune_allocation_high_risk_min",
	"tune_allocation_high_risk_max",
	"tune_regime_bullish_min",
	"tune_regime_bullish_max",
	"tune_sharpe_aggressive_threshold",
	"tune_aggressive_win_rate",
	"tune_aggressive_participation",
	"tune_aggressive_score",
	"tune_conservative_win_rate",
	"tune_conservative_dd",
	"tune_conservative_score",
	"tune_sell_step",
	"tune_sell_percentage_min",
	"tune_sell_percentage_max",
	"tune_sell_ineffective_win_rate",
	"tune_sell_effective_win_rate",
	"tune_confidence_step",
	"tune_min_confidence_min",
	"tune_min_confidence_max",
	"tune_high_bucket_win_rate",
	"tune_low_bucket_win_rate",
	"tune_mr_ineffective_win_rate",
	"tune_mr_effective_win_rate",
	"tune_mr_allocation_min",
	"tune_mr_allocation_max",
	"tune_min_bucket_trades",
	"tune_risk_weight_step",
	"tune_risk_weight_gap_threshold",
	"tune_risk_weight_strong_gap",
	"tune_risk_volatility_weight_min",
	"tune_risk_volatility_weight_max",

	// out-of-sample validation
	"validation_sharpe_tolerance",
	"validation_dd_tolerance",
	"validation_sharpe_weight",
	"validation_drawdown_weight",
	"validation_passing_score",
}

var configSelectColumns = "id, start_date, end_date, created_at, created_by, notes, assets, " +
	strings.Join(configParamColumns, ", ")

// paramPointers returns one pointer per configParamColumns entry, in the
// same order.
func (c *TradingConfig) paramPointers() []any {
	return []any{
		// core
		&c.DailyCapital,
		&c.LookbackDays,
		&c.RegimeBullishThreshold,
		&c.RegimeBearishThreshold,
		&c.RiskHighThreshold,
		&c.RiskMediumThreshold,
		&c.AllocationLowRisk,
		&c.AllocationMediumRisk,
		&c.AllocationHighRisk,
		&c.AllocationNeutral,
		&c.SellPercentage,
		&c.MomentumWeight,
		&c.PriceMomentumWeight,
		&c.MaxDrawdownTolerance,
		&c.MinSharpeTarget,
		&c.RSIOversoldThreshold,
		&c.RSIOverboughtThreshold,
		&c.BollingerStdMultiplier,
		&c.MeanReversionAllocation,
		&c.VolatilityAdjustmentFactor,
		&c.BaseVolatility,
		&c.MinConfidenceThreshold,
		&c.ConfidenceScalingFactor,
		&c.IntramonthDrawdownLimit,
		&c.CircuitBreakerReduction,

		// regime detection
		&c.RegimeMomentumWeight,
		&c.RegimeSMA20Weight,
		&c.RegimeSMA50Weight,
		&c.RegimeTransitionThreshold,
		&c.MomentumLossThreshold,
		&c.MomentumGainThreshold,
		&c.AdaptiveClampMin,
		&c.AdaptiveClampMax,

		// risk and confidence
		&c.VolatilityNormalizationFactor,
		&c.StabilityThreshold,
		&c.StabilityDiscountFactor,
		&c.CorrelationRiskBase,
		&c.CorrelationRiskMultiplier,
		&c.RiskVolatilityWeight,
		&c.RiskCorrelationWeight,
		&c.RegimeConfidenceDivisor,
		&c.RiskPenaltyMin,
		&c.RiskPenaltyMax,
		&c.RiskPenaltyMultiplier,
		&c.ConsistencyBonus,
		&c.TrendConsistencyThreshold,
		&c.MeanReversionBaseConfidence,
		&c.ConfidenceBucketHigh,
		&c.ConfidenceBucketMedium,

		// mean reversion and downward pressure
		&c.StrongTrendThreshold,
		&c.BBOversoldThreshold,
		&c.BBOverboughtThreshold,
		&c.PriceVsSMAThreshold,
		&c.HighVolatilityThreshold,
		&c.NegativeReturnThreshold,
		&c.SeverePressureThreshold,
		&c.ModeratePressureThreshold,
		&c.SeverePressureRisk,
		&c.ModeratePressureRisk,

		// signal decision
		&c.ExtremeRiskThreshold,
		&c.DefensiveCashThreshold,
		&c.SellDefensiveMultiplier,
		&c.SellAggressiveMultiplier,
		&c.SellModeratePressureMultiplier,
		&c.SellBullishRiskMultiplier,
		&c.SellPercentageMax,
		&c.BearishSellBase,
		&c.BearishSellIntensityMultiplier,
		&c.MeanReversionMaxRisk,
		&c.NeutralDeleverageRisk,
		&c.NeutralHoldRisk,
		&c.BullishExcessiveRisk,

		// ranking and allocation
		&c.TrendAlignedMultiplier,
		&c.TrendMixedMultiplier,
		&c.OversoldStrongBonus,
		&c.OversoldMildBonus,
		&c.OverboughtPenalty,
		&c.RSIMildOversold,
		&c.BBMildOversold,
		&c.DiversifyTopAssetMin,
		&c.DiversifyTopAssetMax,
		&c.DiversifySecondAssetMin,
		&c.DiversifySecondAssetMax,
		&c.DiversifyThirdAssetMin,
		&c.DiversifyThirdAssetMax,
		&c.TwoAssetTop,
		&c.TwoAssetSecond,

		// trade evaluation and market condition
		&c.RegimeClassificationBullish,
		&c.RegimeClassificationBearish,
		&c.GoodTradeScoreThreshold,
		&c.ShouldAvoidDDThreshold,
		&c.ShouldAvoidLossThreshold,
		&c.MarketConditionRSquared,
		&c.MarketConditionSlope,
		&c.MarketConditionChoppyRSquared,
		&c.MarketConditionChoppyVolatility,

		// trade scoring
		&c.ScoreProfitableBonus,
		&c.ScoreSharpeBonus,
		&c.ScoreLowDDBonus,
		&c.ScoreDDLowThreshold,
		&c.ScoreAllHorizonsBonus,
		&c.ScoreTwoHorizonsBonus,
		&c.ScoreUnprofitablePenalty,
		&c.ScoreHighDDPenalty,
		&c.ScoreDDHighThreshold,
		&c.ScoreSharpePenalty,
		&c.ScoreMomentumBonus,
		&c.ScoreChoppyPenalty,
		&c.ScoreHoldBonusMultiplier,
		&c.ScoreMeanReversionBonus,
		&c.ScoreConfidenceBonus,

		// monthly tuning steps and clamps
		&c.TuneAllocationStep,
		&c.TuneAllocationLowRiskMin,
		&c.TuneAllocationLowRiskMax,
		&c.TuneAllocationMediumRiskMin,
		&c.TuneAllocationMediumRiskMax,
		&c.TuneNeutralStep,
		&c.TuneAllocationNeutralMin,
		&c.TuneRiskThresholdStep,
		&c.TuneRiskMediumThresholdMin,
		&c.TuneRiskHighThresholdMin,
		&c.TuneRiskHighThresholdMax,
		&c.TuneAllocationHighRiskMin,
		&c.TuneAllocationHighRiskMax,
		&c.TuneRegimeBullishMin,
		&c.TuneRegimeBullishMax,
		&c.TuneSharpeAggressiveThreshold,
		&c.TuneAggressiveWinRate,
		&c.TuneAggressiveParticipation,
		&c.TuneAggressiveScore,
		&c.TuneConservativeWinRate,
		&c.TuneConservativeDD,
		&c.TuneConservativeScore,
		&c.TuneSellStep,
		&c.TuneSellPercentageMin,
		&c.TuneSellPercentageMax,
		&c.TuneSellIneffectiveWinRate,
		&c.TuneSellEffectiveWinRate,
		&c.TuneConfidenceStep,
		&c.TuneMinConfidenceMin,
		&c.TuneMinConfidenceMax,
		&c.TuneHighBucketWinRate,
		&c.TuneLowBucketWinRate,
		&c.TuneMRIneffectiveWinRate,
		&c.TuneMREffectiveWinRate,
		&c.TuneMRAllocationMin,
		&c.TuneMRAllocationMax,
		&c.TuneMinBucketTrades,
		&c.TuneRiskWeightStep,
		&c.TuneRiskWeightGapThreshold,
		&c.TuneRiskWeightStrongGap,
		&c.TuneRiskVolatilityWeightMin,
		&c.TuneRiskVolatilityWeightMax,

		// out-of-sample validation
		&c.ValidationSharpeTolerance,
		&c.ValidationDDTolerance,
		&c.ValidationSharpeWeight,
		&c.ValidationDrawdownWeight,
		&c.ValidationPassingScore,
	}
}

// ParamValues returns every numeric parameter keyed by its column name.
// The tuning report diffs two versions through this map.
func (c *TradingConfig) ParamValues() map[string]float64 {
	values := make(map[string]float64, len(configParamColumns))
	for i, p := range c.paramPointers() {
		switch v := p.(type) {
		case *float64:
			values[configParamColumns[i]] = *v
		case *int:
			values[configParamColumns[i]] = float64(*v)
		}
	}
	return values
}

// Store reads and writes trading_config versions in the config database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "config_store").Logger(),
	}
}

// GetActive returns the config version in effect on asOf (YYYY-MM-DD).
// Returns ErrNoActiveConfig when no version covers the date.
func (s *Store) GetActive(asOf string) (*TradingConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM trading_config
		WHERE start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY start_date DESC, id DESC LIMIT 1`, configSelectColumns)

	cfg, err := scanConfig(s.db.QueryRow(query, asOf, asOf))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNoActiveConfig, asOf)
		}
		return nil, fmt.Errorf("failed to load active config for %s: %w", asOf, err)
	}

	return cfg, nil
}

// GetByID returns a specific config version, or nil if it does not exist.
func (s *Store) GetByID(id int64) (*TradingConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM trading_config WHERE id = ?`, configSelectColumns)

	cfg, err := scanConfig(s.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load config %d: %w", id, err)
	}

	return cfg, nil
}

// ListVersions returns config versions newest first, up to limit.
func (s *Store) ListVersions(limit int) ([]*TradingConfig, error) {
	query := fmt.Sprintf(`SELECT %s FROM trading_config
		ORDER BY start_date DESC, id DESC LIMIT ?`, configSelectColumns)

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list config versions: %w", err)
	}
	defer rows.Close()

	var versions []*TradingConfig
	for rows.Next() {
		cfg, err := scanConfigFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan config version: %w", err)
		}
		versions = append(versions, cfg)
	}

	return versions, rows.Err()
}

// CreateNewVersion validates cfg, closes the currently open version at the
// day before startDate and inserts cfg as the new open-ended version. Both
// writes happen in one transaction. Returns the stored version.
func (s *Store) CreateNewVersion(cfg *TradingConfig, startDate, createdBy, notes string) (*TradingConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	assetsJSON, err := json.Marshal(cfg.Assets)
	if err != nil {
		return nil, fmt.Errorf("failed to encode assets list: %w", err)
	}

	var newID int64
	err = database.WithTransaction(s.db, func(tx *sql.Tx) error {
		// Close the open version at the day before the new start. A version
		// starting the same day is left open and superseded by insertion
		// order instead.
		if _, err := tx.Exec(`UPDATE trading_config
			SET end_date = date(?, '-1 day')
			WHERE end_date IS NULL AND start_date < ?`, startDate, startDate); err != nil {
			return fmt.Errorf("failed to close previous config version: %w", err)
		}

		insert := fmt.Sprintf(`INSERT INTO trading_config (start_date, end_date, created_by, notes, assets, %s)
			VALUES (%s)`,
			strings.Join(configParamColumns, ", "),
			placeholders(5+len(configParamColumns)))

		args := make([]any, 0, 5+len(configParamColumns))
		args = append(args, startDate, nil, createdBy, notes, string(assetsJSON))
		for _, p := range cfg.paramPointers() {
			args = append(args, derefParam(p))
		}

		res, err := tx.Exec(insert, args...)
		if err != nil {
			return fmt.Errorf("failed to insert config version: %w", err)
		}

		newID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read new config id: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("config_id", newID).
		Str("start_date", startDate).
		Str("created_by", createdBy).
		Msg("Created new config version")

	return s.GetByID(newID)
}

// Seed inserts the default config as the initial version when the table is
// empty. Safe to call on every startup.
func (s *Store) Seed() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM trading_config`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count config versions: %w", err)
	}
	if count > 0 {
		return nil
	}

	cfg, err := NewDefaultConfig()
	if err != nil {
		return err
	}

	if _, err := s.CreateNewVersion(cfg, SeedStartDate, "system", "Initial default configuration"); err != nil {
		return err
	}

	s.logger.Info().Str("start_date", SeedStartDate).Msg("Seeded default trading config")
	return nil
}

// Helper functions

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// derefParam turns a scan pointer back into an insert argument. Parameter
// fields are only ever float64 or int.
func derefParam(p any) any {
	switch v := p.(type) {
	case *float64:
		return *v
	case *int:
		return *v
	default:
		return nil
	}
}

func (c *TradingConfig) scanTargets(endDate, notes *sql.NullString, assetsJSON *string) []any {
	targets := make([]any, 0, 7+len(configParamColumns))
	targets = append(targets, &c.ID, &c.StartDate, endDate, &c.CreatedAt, &c.CreatedBy, notes, assetsJSON)
	return append(targets, c.paramPointers()...)
}

func scanConfig(row *sql.Row) (*TradingConfig, error) {
	var c TradingConfig
	var endDate, notes sql.NullString
	var assetsJSON string

	if err := row.Scan(c.scanTargets(&endDate, &notes, &assetsJSON)...); err != nil {
		return nil, err
	}

	return finishConfig(&c, endDate, notes, assetsJSON)
}

func scanConfigFromRows(rows *sql.Rows) (*TradingConfig, error) {
	var c TradingConfig
	var endDate, notes sql.NullString
	var assetsJSON string

	if err := rows.Scan(c.scanTargets(&endDate, &notes, &assetsJSON)...); err != nil {
		return nil, err
	}

	return finishConfig(&c, endDate, notes, assetsJSON)
}

func finishConfig(c *TradingConfig, endDate, notes sql.NullString, assetsJSON string) (*TradingConfig, error) {
	if endDate.Valid {
		end := endDate.String
		c.EndDate = &end
	}
	c.Notes = notes.String

	if err := json.Unmarshal([]byte(assetsJSON), &c.Assets); err != nil {
		return nil, fmt.Errorf("failed to parse assets list: %w", err)
	}

	return c, nil
}
