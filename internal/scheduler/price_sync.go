package scheduler

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/modules/analysis"
)

const dateLayout = "2006-01-02"

// syncWindowDays is the incremental window for the morning sync, wide
// enough to heal gaps from holidays and missed runs.
const syncWindowDays = 30

// PriceSyncJob refreshes daily bars for the configured assets and the
// benchmark before the market opens.
type PriceSyncJob struct {
	sync    PriceSyncer
	configs ConfigSource
	log     zerolog.Logger
}

// NewPriceSyncJob creates the price sync job.
func NewPriceSyncJob(sync PriceSyncer, configs ConfigSource, log zerolog.Logger) *PriceSyncJob {
	return &PriceSyncJob{
		sync:    sync,
		configs: configs,
		log:     log.With().Str("job", "price_sync").Logger(),
	}
}

// Name identifies the job to the scheduler.
func (j *PriceSyncJob) Name() string {
	return "price_sync"
}

// Run syncs recent history for the active asset list.
func (j *PriceSyncJob) Run() error {
	today := time.Now().Format(dateLayout)

	cfg, err := j.configs.GetActive(today)
	if err != nil {
		return fmt.Errorf("failed to load active config: %w", err)
	}

	symbols := withBenchmark(cfg.Assets)
	if err := j.sync.Sync(symbols, syncWindowDays); err != nil {
		return err
	}

	j.log.Info().Strs("symbols", symbols).Msg("Price sync job complete")
	return nil
}

// withBenchmark appends the benchmark symbol unless it is already a
// tracked asset, so regime detection always has fresh data.
func withBenchmark(assets []string) []string {
	for _, symbol := range assets {
		if symbol == analysis.BenchmarkSymbol {
			return assets
		}
	}
	return append(append([]string(nil), assets...), analysis.BenchmarkSymbol)
}
