// Package evaluation scores executed trades after the fact. Each trade is
// marked to market over three horizons, attributed against the account's
// drawdown around its date, and rated with the tunable bonus and penalty
// terms the monthly tuner adjusts.
package evaluation

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/modules/analysis"
	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/risk"
	"github.com/atlasquant/signal-engine/internal/modules/signal"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
	"github.com/atlasquant/signal-engine/internal/modules/trading"
)

const dateLayout = "2006-01-02"

// Score clamp bounds.
const (
	scoreMin = -1.0
	scoreMax = 1.0
)

// TradeSource supplies executed trades joined to their generating signals.
type TradeSource interface {
	ListWithFeatures(from, through string) ([]trading.TradeWithSignal, error)
}

// MarketData supplies the closes behind horizon P&L and condition
// detection.
type MarketData interface {
	CloseInRange(symbol, after, through string) (*float64, error)
	ClosesBetween(symbol, from, through string) ([]float64, error)
}

// MetricsSource supplies the account value series for drawdown
// attribution.
type MetricsSource interface {
	Series(start, end string) ([]performance.Daily, error)
}

// Evaluator scores the trades of a period.
type Evaluator struct {
	trades  TradeSource
	market  MarketData
	metrics MetricsSource
	logger  zerolog.Logger
}

// NewEvaluator creates a trade evaluator.
func NewEvaluator(trades TradeSource, market MarketData, metrics MetricsSource, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		trades:  trades,
		market:  market,
		metrics: metrics,
		logger:  logger.With().Str("component", "trade_evaluator").Logger(),
	}
}

// EvaluateTrades scores every trade with start <= trade_date <= end.
// Horizon P&L uses the latest close within each horizon and falls back to
// the trade price when no later bar exists yet; profitability is judged
// on the best horizon.
func (e *Evaluator) EvaluateTrades(cfg *strategyconfig.TradingConfig, constraints *strategyconfig.StrategyConstraints, start, end string) ([]analysis.TradeEvaluation, error) {
	trades, err := e.trades.ListWithFeatures(start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades for evaluation: %w", err)
	}

	horizons := constraints.Horizons()
	conditions := make(map[string]analysis.Condition)

	evaluations := make([]analysis.TradeEvaluation, 0, len(trades))
	for _, trade := range trades {
		tradeDay, err := time.Parse(dateLayout, trade.TradeDate)
		if err != nil {
			return nil, fmt.Errorf("invalid trade date %q: %w", trade.TradeDate, err)
		}

		regime := regimeLabel(trade.Features.Regime, cfg)

		bucket := trade.Features.ConfidenceBucket
		if bucket == "" {
			bucket = "unknown"
		}
		signalType := trade.Features.SignalType
		if signalType == "" {
			signalType = "unknown"
		}

		condition, ok := conditions[trade.TradeDate]
		if !ok {
			condition, err = e.marketCondition(cfg, tradeDay)
			if err != nil {
				return nil, err
			}
			conditions[trade.TradeDate] = condition
		}

		pnls := make([]float64, len(horizons))
		for i, days := range horizons {
			futureDate := tradeDay.AddDate(0, 0, days).Format(dateLayout)
			future, err := e.market.CloseInRange(trade.Symbol, trade.TradeDate, futureDate)
			if err != nil {
				return nil, fmt.Errorf("failed to query %dd close for %s: %w", days, trade.Symbol, err)
			}

			futurePrice := trade.Price
			if future != nil {
				futurePrice = *future
			}

			quantity := math.Abs(trade.Quantity)
			if trade.Action == signal.ActionBuy {
				pnls[i] = (futurePrice - trade.Price) * quantity
			} else {
				pnls[i] = (trade.Price - futurePrice) * quantity
			}
		}

		// Ties keep the earliest horizon.
		bestIdx := 0
		for i := 1; i < len(pnls); i++ {
			if pnls[i] > pnls[bestIdx] {
				bestIdx = i
			}
		}
		bestPnL := pnls[bestIdx]
		wasProfitable := bestPnL > 0

		ddContribution, err := e.drawdownContribution(tradeDay, trade.TradeDate, pnls[0], constraints.DrawdownWindowDays)
		if err != nil {
			return nil, err
		}

		impact := sharpeImpact(cfg, condition, trade.Action, regime, signalType, wasProfitable)

		profitableHorizons := 0
		for _, pnl := range pnls {
			if pnl > 0 {
				profitableHorizons++
			}
		}

		score := scoreTrade(cfg, condition, trade.Action, bucket, wasProfitable, impact, ddContribution, profitableHorizons)

		shouldHaveAvoided := ddContribution > cfg.ShouldAvoidDDThreshold ||
			(condition == analysis.ConditionChoppy && trade.Action == signal.ActionBuy && !wasProfitable) ||
			(bucket == risk.BucketLow && !wasProfitable && pnls[0] < cfg.ShouldAvoidLossThreshold)

		evaluations = append(evaluations, analysis.TradeEvaluation{
			TradeDate:              trade.TradeDate,
			Symbol:                 trade.Symbol,
			Action:                 trade.Action,
			Amount:                 trade.Amount,
			Regime:                 regime,
			MarketCondition:        condition,
			ContributionToDrawdown: ddContribution,
			SharpeImpact:           impact,
			WasProfitable:          wasProfitable,
			PnL:                    bestPnL,
			PnL10D:                 pnls[0],
			PnL20D:                 pnls[1],
			PnL30D:                 pnls[2],
			BestHorizon:            fmt.Sprintf("%dd", horizons[bestIdx]),
			ConfidenceBucket:       bucket,
			SignalType:             signalType,
			Score:                  score,
			ShouldHaveAvoided:      shouldHaveAvoided,
		})
	}

	e.logger.Info().
		Str("start", start).
		Str("end", end).
		Int("trades", len(evaluations)).
		Msg("Evaluated trades")

	return evaluations, nil
}

// marketCondition classifies the benchmark around one trade date.
func (e *Evaluator) marketCondition(cfg *strategyconfig.TradingConfig, tradeDay time.Time) (analysis.Condition, error) {
	lookbackStart := tradeDay.AddDate(0, 0, -(analysis.ConditionWindowDays + analysis.ConditionLookbackBuffer))

	closes, err := e.market.ClosesBetween(analysis.BenchmarkSymbol,
		lookbackStart.Format(dateLayout), tradeDay.Format(dateLayout))
	if err != nil {
		return "", fmt.Errorf("failed to load benchmark closes: %w", err)
	}

	return analysis.DetectMarketCondition(closes, analysis.ConditionWindowDays, cfg), nil
}

// drawdownContribution attributes the trade's short-horizon loss to the
// account drawdown in a window around its date. A profitable trade, or a
// window without a drawdown, contributes zero.
func (e *Evaluator) drawdownContribution(tradeDay time.Time, tradeDate string, tradePnL float64, windowDays int) (float64, error) {
	windowStart := tradeDay.AddDate(0, 0, -windowDays).Format(dateLayout)
	windowEnd := tradeDay.AddDate(0, 0, windowDays).Format(dateLayout)

	rows, err := e.metrics.Series(windowStart, windowEnd)
	if err != nil {
		return 0, fmt.Errorf("failed to load performance window for %s: %w", tradeDate, err)
	}
	if len(rows) < 2 {
		return 0, nil
	}

	tradeIdx := -1
	for i, row := range rows {
		if row.Date >= tradeDate {
			tradeIdx = i
			break
		}
	}
	// The peak must predate the trade; a window that starts on or after
	// the trade date has nothing to attribute.
	if tradeIdx <= 0 {
		return 0, nil
	}

	peak := rows[0].TotalValue
	for _, row := range rows[1 : tradeIdx+1] {
		if row.TotalValue > peak {
			peak = row.TotalValue
		}
	}

	trough := rows[tradeIdx].TotalValue
	for _, row := range rows[tradeIdx:] {
		if row.TotalValue < trough {
			trough = row.TotalValue
		}
	}

	var drawdownPct float64
	if peak > 0 {
		drawdownPct = (peak - trough) / peak * 100
	}

	if tradePnL < 0 && drawdownPct > 0 {
		return math.Min(100, math.Abs(tradePnL)/(peak*drawdownPct/100)*100), nil
	}

	return 0, nil
}

// Helper functions

func regimeLabel(regimeScore float64, cfg *strategyconfig.TradingConfig) string {
	switch {
	case regimeScore > cfg.RegimeClassificationBullish:
		return "bullish"
	case regimeScore < cfg.RegimeClassificationBearish:
		return "bearish"
	default:
		return "neutral"
	}
}

func sharpeImpact(cfg *strategyconfig.TradingConfig, condition analysis.Condition, action signal.Action, regime, signalType string, wasProfitable bool) float64 {
	impact := 0.0
	switch {
	case condition == analysis.ConditionMomentum && action == signal.ActionBuy && regime == "bullish":
		impact = cfg.ScoreMomentumBonus
	case condition == analysis.ConditionChoppy && action == signal.ActionHold:
		impact = cfg.ScoreMomentumBonus * cfg.ScoreHoldBonusMultiplier
	case condition == analysis.ConditionChoppy && action == signal.ActionBuy:
		impact = cfg.ScoreChoppyPenalty
	}

	if strings.Contains(signalType, "mean_reversion") && wasProfitable {
		impact += cfg.ScoreMeanReversionBonus
	}

	return impact
}

func scoreTrade(cfg *strategyconfig.TradingConfig, condition analysis.Condition, action signal.Action, bucket string, wasProfitable bool, impact, ddContribution float64, profitableHorizons int) float64 {
	score := 0.0

	if wasProfitable {
		score += cfg.ScoreProfitableBonus
	}
	if impact > 0 {
		score += cfg.ScoreSharpeBonus
	}
	if ddContribution < cfg.ScoreDDLowThreshold {
		score += cfg.ScoreLowDDBonus
	}

	switch profitableHorizons {
	case 3:
		score += cfg.ScoreAllHorizonsBonus
	case 2:
		score += cfg.ScoreTwoHorizonsBonus
	}

	if !wasProfitable {
		score += cfg.ScoreUnprofitablePenalty
	}
	if ddContribution > cfg.ScoreDDHighThreshold {
		score += cfg.ScoreHighDDPenalty
	}
	if impact < 0 {
		score += cfg.ScoreSharpePenalty
	}

	if condition == analysis.ConditionMomentum && action == signal.ActionBuy && wasProfitable {
		score += cfg.ScoreMomentumBonus
	} else if condition == analysis.ConditionChoppy && action == signal.ActionBuy && !wasProfitable {
		score += cfg.ScoreChoppyPenalty
	}

	// A high-confidence win and a low-confidence loss both mean the
	// confidence model called it right.
	if bucket == risk.BucketHigh && wasProfitable {
		score += cfg.ScoreConfidenceBonus
	} else if bucket == risk.BucketLow && !wasProfitable {
		score += cfg.ScoreConfidenceBonus
	}

	return math.Max(scoreMin, math.Min(scoreMax, score))
}
