package signal

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/modules/allocation"
	"github.com/atlasquant/signal-engine/internal/modules/circuitbreaker"
	"github.com/atlasquant/signal-engine/internal/modules/features"
	"github.com/atlasquant/signal-engine/internal/modules/market"
	"github.com/atlasquant/signal-engine/internal/modules/meanreversion"
	"github.com/atlasquant/signal-engine/internal/modules/ranking"
	"github.com/atlasquant/signal-engine/internal/modules/regime"
	"github.com/atlasquant/signal-engine/internal/modules/risk"
	"github.com/atlasquant/signal-engine/internal/modules/sizing"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
	"github.com/atlasquant/signal-engine/pkg/formulas"
)

// kellyLookbackDays is the trailing window of prior signals fed into the
// half-Kelly estimate.
const kellyLookbackDays = 60

// MarketData provides ordered price history in the half-open window
// [from, before).
type MarketData interface {
	BarsBetween(symbol, from, before string) ([]market.Bar, error)
}

// PortfolioView reports current holdings (CASH excluded) and the cash
// balance.
type PortfolioView interface {
	Holdings() (map[string]float64, error)
	CashBalance() (float64, error)
}

// MetricsView supplies total portfolio values in [from, before) for the
// circuit breaker.
type MetricsView interface {
	TotalValuesRange(from, before string) ([]float64, error)
}

// ConfigSource resolves the trading configuration active on a date.
type ConfigSource interface {
	GetActive(asOf string) (*strategyconfig.TradingConfig, error)
}

// ConstraintsSource resolves the strategy constraints active on a date.
type ConstraintsSource interface {
	GetActive(asOf string) (*strategyconfig.StrategyConstraints, error)
}

// Generator produces one signal per trading day.
type Generator struct {
	signals     *Repository
	market      MarketData
	portfolio   PortfolioView
	metrics     MetricsView
	configs     ConfigSource
	constraints ConstraintsSource
	logger      zerolog.Logger
}

func NewGenerator(signals *Repository, marketData MarketData, portfolio PortfolioView,
	metrics MetricsView, configs ConfigSource, constraints ConstraintsSource, logger zerolog.Logger) *Generator {
	return &Generator{
		signals:     signals,
		market:      marketData,
		portfolio:   portfolio,
		metrics:     metrics,
		configs:     configs,
		constraints: constraints,
		logger:      logger.With().Str("component", "signal_generator").Logger(),
	}
}

// Generate runs the full pipeline for a trade date and persists the
// resulting signal. Re-running a date is a no-op that returns the stored
// signal unchanged.
func (g *Generator) Generate(tradeDate string) (*DailySignal, error) {
	existing, err := g.signals.GetByDate(tradeDate)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		g.logger.Info().Str("trade_date", tradeDate).Msg("signal already exists")
		return existing, nil
	}

	day, err := time.Parse("2006-01-02", tradeDate)
	if err != nil {
		return nil, fmt.Errorf("invalid trade date %q: %w", tradeDate, err)
	}

	cfg, err := g.configs.GetActive(tradeDate)
	if err != nil {
		return nil, err
	}
	constraints, err := g.constraints.GetActive(tradeDate)
	if err != nil {
		return nil, err
	}

	assets, err := g.computeFeatures(day, cfg, constraints)
	if err != nil {
		return nil, err
	}

	regimeScore, perAsset := regime.Score(assets, cfg)
	g.logger.Debug().Float64("regime", regimeScore).Interface("per_asset", perAsset).Msg("regime scored")

	vols := make([]float64, len(assets))
	for i, a := range assets {
		vols[i] = a.Volatility
	}
	avgVol := formulas.Mean(vols)
	bullish := regime.AdaptiveThreshold(cfg.RegimeBullishThreshold, avgVol, cfg)
	bearish := regime.AdaptiveThreshold(cfg.RegimeBearishThreshold, avgVol, cfg)

	riskScore := risk.Score(assets, cfg)
	scores := ranking.Scores(assets, cfg)
	trendConsistency := ranking.TrendConsistency(assets, cfg)

	holdings, err := g.portfolio.Holdings()
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}
	cash, err := g.portfolio.CashBalance()
	if err != nil {
		return nil, fmt.Errorf("failed to load cash balance: %w", err)
	}

	prices := make(map[string]float64, len(assets))
	for _, a := range assets {
		prices[a.Symbol] = a.CurrentPrice
	}
	holdingsValue := 0.0
	for symbol, qty := range holdings {
		holdingsValue += qty * prices[symbol]
	}
	totalValue := cash + holdingsValue
	cashPct := 100.0
	if totalValue > 0 {
		cashPct = cash / totalValue * 100
	}

	reversion := meanreversion.Detect(assets, regimeScore, cfg)
	pressure := meanreversion.DetectPressure(assets, riskScore, cfg)

	monthStart := day.Format("2006-01") + "-01"
	totalValues, err := g.metrics.TotalValuesRange(monthStart, tradeDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load month-to-date values: %w", err)
	}
	breaker := circuitbreaker.Check(totalValues, cfg.IntramonthDrawdownLimit)

	previous, err := g.signals.LatestBefore(tradeDate)
	if err != nil {
		return nil, err
	}
	var previousRegime *float64
	if previous != nil {
		v := previous.FeaturesUsed.Regime
		previousRegime = &v
	}
	transition := regime.Transition(regimeScore, previousRegime, cfg)

	confidence := risk.Confidence(regimeScore, riskScore, trendConsistency, reversion.Kind != meanreversion.None, cfg)
	bucket := risk.Bucket(confidence, cfg)

	decision := Decide(DecisionContext{
		RegimeScore:      regimeScore,
		RiskScore:        riskScore,
		BullishThreshold: bullish,
		BearishThreshold: bearish,
		CashPct:          cashPct,
		Drawdown:         breaker.Drawdown,
		HasHoldings:      len(holdings) > 0,
		Pressure:         pressure,
		Reversion:        reversion,
	}, cfg)

	allocations, err := g.buildAllocations(day, decision, scores, holdings, confidence, totalValue, cfg, constraints)
	if err != nil {
		return nil, err
	}

	snapshots := make(map[string]AssetSnapshot, len(assets))
	for _, a := range assets {
		snapshots[a.Symbol] = AssetSnapshot{
			Returns5D:  a.Returns5D,
			Returns20D: a.Returns20D,
			Returns60D: a.Returns60D,
			Volatility: a.Volatility,
			Score:      scores[a.Symbol],
		}
	}

	sig := &DailySignal{
		TradeDate:       tradeDate,
		Allocations:     allocations,
		ModelType:       ModelTypeRegimeBased,
		ConfidenceScore: confidence,
		FeaturesUsed: Features{
			Regime:           regimeScore,
			Risk:             riskScore,
			Action:           string(decision.Action),
			AllocationPct:    decision.AllocationPct,
			SignalType:       decision.SignalType,
			ConfidenceScore:  confidence,
			ConfidenceBucket: bucket,
			CircuitBreaker:   breaker,
			Assets:           snapshots,
		},
	}
	if err := g.signals.Create(sig); err != nil {
		return nil, err
	}

	g.logger.Info().
		Str("trade_date", tradeDate).
		Str("action", string(decision.Action)).
		Str("signal_type", decision.SignalType).
		Float64("regime", regimeScore).
		Float64("risk", riskScore).
		Float64("confidence", confidence).
		Str("bucket", bucket).
		Str("transition", transition).
		Bool("circuit_breaker", breaker.Triggered).
		Msg("signal generated")

	return sig, nil
}

// computeFeatures loads price history and derives per-asset features,
// skipping symbols with too little history.
func (g *Generator) computeFeatures(day time.Time, cfg *strategyconfig.TradingConfig,
	constraints *strategyconfig.StrategyConstraints) ([]features.AssetFeatures, error) {
	tradeDate := day.Format("2006-01-02")
	lookbackStart := day.AddDate(0, 0, -(cfg.LookbackDays + 30)).Format("2006-01-02")

	assets := make([]features.AssetFeatures, 0, len(cfg.Assets))
	for _, symbol := range cfg.Assets {
		bars, err := g.market.BarsBetween(symbol, lookbackStart, tradeDate)
		if err != nil {
			return nil, fmt.Errorf("failed to load bars for %s: %w", symbol, err)
		}
		if len(bars) < constraints.MinDataDays {
			g.logger.Warn().
				Str("symbol", symbol).
				Int("bars", len(bars)).
				Int("required", constraints.MinDataDays).
				Msg("insufficient history, skipping symbol")
			continue
		}

		closes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
		}
		assets = append(assets, features.Compute(symbol, closes, cfg.BollingerStdMultiplier))
	}

	if len(assets) == 0 {
		return nil, fmt.Errorf("no assets with sufficient history for %s", tradeDate)
	}
	return assets, nil
}

// buildAllocations turns the decision into the persisted allocation map.
// BUY diversifies a sized dollar budget across positive scores, SELL
// marks each held symbol with the negative sell fraction, HOLD writes
// zeros for the configured assets.
func (g *Generator) buildAllocations(day time.Time, decision Decision, scores map[string]float64,
	holdings map[string]float64, confidence, totalValue float64,
	cfg *strategyconfig.TradingConfig, constraints *strategyconfig.StrategyConstraints) (map[string]float64, error) {

	allocations := make(map[string]float64)

	switch decision.Action {
	case ActionBuy:
		kellyFrom := day.AddDate(0, 0, -kellyLookbackDays).Format("2006-01-02")
		history, err := g.signals.ListRange(kellyFrom, day.Format("2006-01-02"))
		if err != nil {
			return nil, err
		}
		var buyConfidences []float64
		for _, s := range history {
			if s.Action() == ActionBuy {
				buyConfidences = append(buyConfidences, s.FeaturesUsed.ConfidenceScore)
			}
		}

		budget := sizing.Budget(cfg.DailyCapital, confidence, totalValue, len(history), buyConfidences, cfg, constraints)
		buyAmount := budget * decision.AllocationPct
		allocations = allocation.Diversify(scores, buyAmount, cfg)

		g.logger.Debug().
			Float64("budget", budget).
			Float64("buy_amount", buyAmount).
			Int("kelly_signals", len(history)).
			Msg("sized buy")

	case ActionSell:
		for symbol := range holdings {
			allocations[symbol] = -decision.AllocationPct
		}
		if len(allocations) == 0 {
			for _, symbol := range cfg.Assets {
				allocations[symbol] = 0
			}
		}

	default:
		for _, symbol := range cfg.Assets {
			allocations[symbol] = 0
		}
	}

	return allocations, nil
}
