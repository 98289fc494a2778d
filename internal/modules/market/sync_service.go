package market

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/clients/yahoo"
)

// PriceSource is the slice of the Yahoo client the sync service depends on.
type PriceSource interface {
	DailyHistory(symbol, period string) ([]yahoo.Bar, error)
	BatchDailyHistory(symbols []string, period string) (map[string][]yahoo.Bar, error)
}

// SyncService pulls daily bars from the price source into the market
// database.
type SyncService struct {
	repo   *Repository
	source PriceSource
	logger zerolog.Logger
}

func NewSyncService(repo *Repository, source PriceSource, logger zerolog.Logger) *SyncService {
	return &SyncService{
		repo:   repo,
		source: source,
		logger: logger.With().Str("component", "price_sync").Logger(),
	}
}

// Sync fetches the last `days` of bars for all symbols in one batched
// request and upserts them. Symbols missing from the response are logged;
// the sync fails only when every symbol comes back empty.
func (s *SyncService) Sync(symbols []string, days int) error {
	if len(symbols) == 0 {
		return nil
	}

	period := yahoo.PeriodForDays(days)
	fetched, err := s.source.BatchDailyHistory(symbols, period)
	if err != nil {
		return fmt.Errorf("failed to fetch price batch: %w", err)
	}

	synced := 0
	for _, symbol := range symbols {
		bars, ok := fetched[symbol]
		if !ok || len(bars) == 0 {
			s.logger.Warn().Str("symbol", symbol).Msg("No bars returned for symbol")
			continue
		}

		written, err := s.repo.UpsertBars(symbol, convertBars(symbol, bars))
		if err != nil {
			return fmt.Errorf("failed to store bars for %s: %w", symbol, err)
		}

		s.logger.Debug().Str("symbol", symbol).Int("bars", written).Msg("Synced price history")
		synced++
	}

	if synced == 0 {
		return fmt.Errorf("price sync returned no data for any of %d symbols", len(symbols))
	}

	s.logger.Info().Int("symbols", synced).Str("period", period).Msg("Price sync complete")
	return nil
}

// Backfill fetches `years` of history per symbol. Individual symbol
// failures are logged and skipped; the backfill fails only when every
// symbol fails.
func (s *SyncService) Backfill(symbols []string, years int) error {
	if len(symbols) == 0 {
		return nil
	}

	period := yahoo.PeriodForYears(years)
	succeeded := 0

	for _, symbol := range symbols {
		bars, err := s.source.DailyHistory(symbol, period)
		if err != nil {
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("Backfill failed for symbol")
			continue
		}

		written, err := s.repo.UpsertBars(symbol, convertBars(symbol, bars))
		if err != nil {
			return fmt.Errorf("failed to store backfill for %s: %w", symbol, err)
		}

		s.logger.Info().Str("symbol", symbol).Int("bars", written).Msg("Backfilled price history")
		succeeded++
	}

	if succeeded == 0 {
		return fmt.Errorf("backfill failed for all %d symbols", len(symbols))
	}

	return nil
}

// EnsureHistory backfills any symbol that has no stored bars yet. Used at
// startup so a fresh deployment becomes usable without manual steps.
func (s *SyncService) EnsureHistory(symbols []string, years int) error {
	var missing []string
	for _, symbol := range symbols {
		count, err := s.repo.BarCount(symbol)
		if err != nil {
			return err
		}
		if count == 0 {
			missing = append(missing, symbol)
		}
	}

	if len(missing) == 0 {
		return nil
	}

	s.logger.Info().Strs("symbols", missing).Int("years", years).Msg("Backfilling symbols without history")
	return s.Backfill(missing, years)
}

// Helper functions

func convertBars(symbol string, bars []yahoo.Bar) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, Bar{
			Symbol: symbol,
			Date:   b.Date.Format("2006-01-02"),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return out
}

// LatestDates returns the newest stored bar date per symbol, for the status
// endpoint.
func (s *SyncService) LatestDates(symbols []string) map[string]string {
	out := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		bar, err := s.repo.LatestBar(symbol)
		if err != nil || bar == nil {
			continue
		}
		out[symbol] = bar.Date
	}
	return out
}

// Stale reports whether the newest bar for symbol is older than maxAge.
func (s *SyncService) Stale(symbol string, now time.Time, maxAge time.Duration) (bool, error) {
	bar, err := s.repo.LatestBar(symbol)
	if err != nil {
		return false, err
	}
	if bar == nil {
		return true, nil
	}

	latest, err := time.Parse("2006-01-02", bar.Date)
	if err != nil {
		return false, fmt.Errorf("failed to parse bar date %q: %w", bar.Date, err)
	}

	return now.Sub(latest) > maxAge, nil
}
