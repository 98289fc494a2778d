package main

import (
	"context"
	"os"
	osignal "os/signal"
	"syscall"
	"time"

	"github.com/atlasquant/signal-engine/internal/clients/yahoo"
	"github.com/atlasquant/signal-engine/internal/config"
	"github.com/atlasquant/signal-engine/internal/database"
	"github.com/atlasquant/signal-engine/internal/modules/evaluation"
	"github.com/atlasquant/signal-engine/internal/modules/market"
	"github.com/atlasquant/signal-engine/internal/modules/performance"
	"github.com/atlasquant/signal-engine/internal/modules/portfolio"
	"github.com/atlasquant/signal-engine/internal/modules/signal"
	"github.com/atlasquant/signal-engine/internal/modules/strategyconfig"
	"github.com/atlasquant/signal-engine/internal/modules/trading"
	"github.com/atlasquant/signal-engine/internal/modules/tuning"
	"github.com/atlasquant/signal-engine/internal/reliability"
	"github.com/atlasquant/signal-engine/internal/scheduler"
	"github.com/atlasquant/signal-engine/internal/server"
	"github.com/atlasquant/signal-engine/pkg/logger"
	"github.com/rs/zerolog"
)

func main() {
	// Bootstrap logger so config errors are readable; rebuilt below once
	// the configured level is known.
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

	log.Info().Msg("Starting Signal Engine")

	// Three databases: prices are rebuildable, the ledger is not, and
	// strategy configuration sits in between.
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

	// Repositories
	marketRepo := market.NewRepository(marketDB.Conn(), log)
	signalRepo := signal.NewRepository(ledgerDB.Conn(), log)
	tradeRepo := trading.NewRepository(ledgerDB.Conn(), log)
	portfolioRepo := portfolio.NewRepository(ledgerDB.Conn(), log)
	metricsRepo := performance.NewRepository(ledgerDB.Conn(), log)
	configStore := strategyconfig.NewStore(configDB.Conn(), log)
	constraintsStore := strategyconfig.NewConstraintsStore(configDB.Conn(), log)
	tuningRepo := tuning.NewRepository(configDB.Conn(), log)

	// Seed versioned configuration on first boot and make sure the cash
	// row exists before anything reads the portfolio.
	if err := configStore.Seed(); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed trading config")
	}
	if err := constraintsStore.Seed(); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed strategy constraints")
	}
	if err := portfolioRepo.EnsureCash(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize cash balance")
	}

	// Services
	yahooClient := yahoo.NewClient(log)
	syncService := market.NewSyncService(marketRepo, yahooClient, log)
	generator := signal.NewGenerator(signalRepo, marketRepo, portfolioRepo, metricsRepo, configStore, constraintsStore, log)
	executor := trading.NewExecutor(tradeRepo, signalRepo, marketRepo, portfolioRepo, configStore, log)
	snapshot := performance.NewSnapshot(metricsRepo, portfolioRepo, marketRepo, log)
	evaluator := evaluation.NewEvaluator(tradeRepo, marketRepo, metricsRepo, log)
	tuner := tuning.NewTuner(evaluator, configStore, constraintsStore, metricsRepo, tuningRepo, cfg.TuningLookbackMonths, log)

	// Reliability stack
	databases := map[string]*database.DB{
		"market": marketDB,
		"ledger": ledgerDB,
		"config": configDB,
	}
	backups := reliability.NewBackupService(databases, cfg.BackupDir, log)
	health := map[string]*reliability.DatabaseHealthService{
		"market": reliability.NewDatabaseHealthService(marketDB, "market", cfg.DataDir+"/market.db", database.ProfileCache, backups, log),
		"ledger": reliability.NewDatabaseHealthService(ledgerDB, "ledger", cfg.DataDir+"/ledger.db", database.ProfileLedger, backups, log),
		"config": reliability.NewDatabaseHealthService(configDB, "config", cfg.DataDir+"/config.db", database.ProfileStandard, backups, log),
	}
	monitor := reliability.NewSystemMonitor(health, cfg.DataDir, cfg.BackupDir, log)
	validator := database.NewIntegrityValidator(ledgerDB.Conn(), configDB.Conn())

	backfillHistory(syncService, configStore, cfg, log)

	// Scheduler and jobs
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	if err := registerJobs(sched, syncService, generator, executor, snapshot, tuner, configStore, backups, health, monitor, validator, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}

	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		Markets:     marketRepo,
		Signals:     signalRepo,
		Trades:      tradeRepo,
		Portfolio:   portfolioRepo,
		Metrics:     metricsRepo,
		Configs:     configStore,
		Constraints: constraintsStore,
		TuningRuns:  tuningRepo,
		Tuner:       tuner,
		Monitor:     monitor,
		Scheduler:   sched,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	osignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// backfillHistory makes sure every configured asset has price history
// before the first signal run. A failure here is survivable: the daily
// price sync retries, and signal generation refuses to run on thin data.
func backfillHistory(syncService *market.SyncService, configStore *strategyconfig.Store, cfg *config.Config, log zerolog.Logger) {
	active, err := configStore.GetActive(time.Now().Format("2006-01-02"))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active config, skipping history backfill")
		return
	}

	symbols := make([]string, 0, len(active.Assets)+1)
	symbols = append(symbols, active.Assets...)
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

	if err := syncService.EnsureHistory(symbols, cfg.PriceBackfillYears); err != nil {
		log.Warn().Err(err).Msg("History backfill incomplete, daily sync will fill the gaps")
	}
}

func registerJobs(
	sched *scheduler.Scheduler,
	syncService *market.SyncService,
	generator *signal.Generator,
	executor *trading.Executor,
	snapshot *performance.Snapshot,
	tuner *tuning.Tuner,
	configStore *strategyconfig.Store,
	backups *reliability.BackupService,
	health map[string]*reliability.DatabaseHealthService,
	monitor *reliability.SystemMonitor,
	validator *database.IntegrityValidator,
	log zerolog.Logger,
) error {
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{scheduler.SchedulePriceSync, scheduler.NewPriceSyncJob(syncService, configStore, log)},
		{scheduler.ScheduleSignals, scheduler.NewSignalGenerationJob(generator, log)},
		{scheduler.ScheduleExecution, scheduler.NewTradeExecutionJob(executor, snapshot, configStore, log)},
		{scheduler.ScheduleMonthlyTuning, scheduler.NewMonthlyTuningJob(tuner, log)},
		{scheduler.ScheduleDailyBackup, reliability.NewDailyBackupJob(backups)},
		{scheduler.ScheduleWeeklyBackup, reliability.NewWeeklyBackupJob(backups)},
		{scheduler.ScheduleMaintenance, reliability.NewDailyMaintenanceJob(health, monitor, backups, validator, log)},
	}

	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			return err
		}
		log.Info().Str("job", j.job.Name()).Str("schedule", j.schedule).Msg("Job registered")
	}

	return nil
}
