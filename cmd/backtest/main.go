// Command backtest replays the signal pipeline over a historical date
// range and prints a performance report. It drives the same generator,
// executor, and metrics recorder the scheduler runs live, against the
// same databases, so a backtest leaves behind a fully populated ledger.
//
// Usage:
//
//	go run ./cmd/backtest -start 2024-01-01 -end 2024-06-30
//	go run ./cmd/backtest -start 2024-07-01 -end 2024-07-31 -preserve-portfolio
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atlasquant/signal-engine/internal/backtest"
	"github.com/atlasquant/signal-engine/internal/clients/yahoo"
	"github.com/atlasquant/signal-engine/internal/config"
	"github.com/atlasquant/signal-engine/internal/database"
	"github.com/atlasquant/signal-engine/internal/modules/market"
	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/portfolio"
	"github.com/atlasquant/signal-engine/internal/modules/signal"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
	"github.com/atlasquant/signal-engine/internal/modules/trading"
	"github.com/atlasquant/signal-engine/pkg/logger"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

func main() {
	start := flag.String("start", "", "Backtest start date (YYYY-MM-DD)")
	end := flag.String("end", "", "Backtest end date (YYYY-MM-DD)")
	preservePortfolio := flag.Bool("preserve-portfolio", false,
		"Keep existing positions and cash instead of resetting (for month-by-month runs)")
	flag.Parse()

	if *start == "" || *end == "" {
		fmt.Fprintln(os.Stderr, "both -start and -end are required")
		flag.Usage()
		os.Exit(2)
	}

	log := logger.New(logger.Config{
		Level:  "info",
		Pretty: true,
	})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log = logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})

	if _, err := time.Parse(dateLayout, *start); err != nil {
		log.Fatal().Str("start", *start).Msg("Invalid start date, want YYYY-MM-DD")
	}
	if _, err := time.Parse(dateLayout, *end); err != nil {
		log.Fatal().Str("end", *end).Msg("Invalid end date, want YYYY-MM-DD")
	}
	if *start > *end {
		log.Fatal().Str("start", *start).Str("end", *end).Msg("Start date must not be after end date")
	}

	marketDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/market.db",
		Profile: database.ProfileCache,
		Name:    "market",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize market database")
	}
	defer marketDB.Close()

	ledgerDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/ledger.db",
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ledger database")
	}
	defer ledgerDB.Close()

	configDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/config.db",
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize config database")
	}
	defer configDB.Close()

	for _, db := range []*database.DB{marketDB, ledgerDB, configDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to apply schema")
		}
	}

	marketRepo := market.NewRepository(marketDB.Conn(), log)
	signalRepo := signal.NewRepository(ledgerDB.Conn(), log)
	tradeRepo := trading.NewRepository(ledgerDB.Conn(), log)
	portfolioRepo := portfolio.NewRepository(ledgerDB.Conn(), log)
	metricsRepo := performance.NewRepository(ledgerDB.Conn(), log)
	configStore := strategyconfig.NewStore(configDB.Conn(), log)
	constraintsStore := strategyconfig.NewConstraintsStore(configDB.Conn(), log)

	if err := configStore.Seed(); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed trading config")
	}
	if err := constraintsStore.Seed(); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed strategy constraints")
	}
	if err := portfolioRepo.EnsureCash(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cash balance")
	}

	ensurePrices(marketRepo, configStore, cfg, log)

	generator := signal.NewGenerator(signalRepo, marketRepo, portfolioRepo, metricsRepo, configStore, constraintsStore, log)
	executor := trading.NewExecutor(tradeRepo, signalRepo, marketRepo, portfolioRepo, configStore, log)
	snapshot := performance.NewSnapshot(metricsRepo, portfolioRepo, marketRepo, log)

	runner := backtest.NewRunner(backtest.Deps{
		Generator:   generator,
		Executor:    executor,
		Recorder:    snapshot,
		Market:      marketRepo,
		Signals:     signalRepo,
		Trades:      tradeRepo,
		Metrics:     metricsRepo,
		Portfolio:   portfolioRepo,
		Configs:     configStore,
		Constraints: constraintsStore,
	}, log)

	report, err := runner.Run(*start, *end, *preservePortfolio)
	if err != nil {
		log.Fatal().Err(err).Msg("Backtest failed")
	}

	text := report.Format()
	fmt.Print(text)

	if path, err := saveReport(cfg.DataDir, *start, *end, text); err != nil {
		log.Warn().Err(err).Msg("Failed to save report file")
	} else {
		log.Info().Str("path", path).Msg("Report saved")
	}
}

// ensurePrices backfills history for the configured assets so a fresh
// checkout can run a backtest without starting the server first. Bars
// already on disk are left alone.
func ensurePrices(marketRepo *market.Repository, configStore *strategyconfig.Store, cfg *config.Config, log zerolog.Logger) {
	active, err := configStore.GetActive(time.Now().Format(dateLayout))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active config, skipping price backfill")
		return
	}

	symbols := append([]string{}, active.Assets...)
	found := false
	for _, s := range active.Assets {
		if s == cfg.BenchmarkSymbol {
			found = true
			break
		}
	}
	if !found {
		symbols = append(symbols, cfg.BenchmarkSymbol)
	}

	yahooClient := yahoo.NewClient(log)
	syncService := market.NewSyncService(marketRepo, yahooClient, log)
	if err := syncService.EnsureHistory(symbols, cfg.PriceBackfillYears); err != nil {
		log.Warn().Err(err).Msg("Price backfill incomplete, missing days will be skipped")
	}
}

// saveReport writes the report alongside the data directory, named after
// the range and the wall clock so reruns never clobber each other.
func saveReport(dataDir, start, end, text string) (string, error) {
	reportDir := filepath.Join(dataDir, "back-test")
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("backtest_report_%s_to_%s_%s.txt", start, end, time.Now().Format("20060102_150405"))
	path := filepath.Join(reportDir, name)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", err
	}

	return path, nil
}
