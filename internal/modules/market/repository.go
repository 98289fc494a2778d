package market

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/database"
)

const barColumns = `symbol, date, open, high, low, close, volume`

// Repository reads and writes price_history in the market database.
type Repository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRepository(db *sql.DB, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With().Str("component", "market_repository").Logger(),
	}
}

// UpsertBars writes bars for one symbol, replacing any existing row for the
// same date. Bars without a positive close are skipped. Returns the number
// of rows written.
func (r *Repository) UpsertBars(symbol string, bars []Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	written := 0
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT INTO price_history (symbol, date, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(symbol, date) DO UPDATE SET
				open = excluded.open,
				high = excluded.high,
				low = excluded.low,
				close = excluded.close,
				volume = excluded.volume`)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, bar := range bars {
			if bar.Close <= 0 {
				r.logger.Debug().Str("symbol", symbol).Str("date", bar.Date).Msg("Skipping bar without close")
				continue
			}
			if _, err := stmt.Exec(symbol, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume); err != nil {
				return fmt.Errorf("failed to upsert bar %s %s: %w", symbol, bar.Date, err)
			}
			written++
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return written, nil
}

// BarsBetween returns bars for symbol with from <= date < before, ascending
// by date.
func (r *Repository) BarsBetween(symbol, from, before string) ([]Bar, error) {
	rows, err := r.db.Query(fmt.Sprintf(`SELECT %s FROM price_history
		WHERE symbol = ? AND date >= ? AND date < ?
		ORDER BY date ASC`, barColumns), symbol, from, before)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	return scanBars(rows)
}

// BarsBefore returns up to limit bars strictly before date, ascending.
func (r *Repository) BarsBefore(symbol, date string, limit int) ([]Bar, error) {
	rows, err := r.db.Query(fmt.Sprintf(`SELECT %s FROM price_history
		WHERE symbol = ? AND date < ?
		ORDER BY date DESC LIMIT ?`, barColumns), symbol, date, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}

	// Newest-first from the index scan, callers want chronological order
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	return bars, nil
}

// LatestBar returns the most recent bar for symbol, or nil when the symbol
// has no history.
func (r *Repository) LatestBar(symbol string) (*Bar, error) {
	row := r.db.QueryRow(fmt.Sprintf(`SELECT %s FROM price_history
		WHERE symbol = ? ORDER BY date DESC LIMIT 1`, barColumns), symbol)

	bar, err := scanBar(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest bar for %s: %w", symbol, err)
	}

	return bar, nil
}

// OpenOn returns the opening price for symbol on date, or nil when no bar
// exists for that exact date.
func (r *Repository) OpenOn(symbol, date string) (*float64, error) {
	var open float64
	err := r.db.QueryRow(`SELECT open FROM price_history WHERE symbol = ? AND date = ?`,
		symbol, date).Scan(&open)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query open for %s on %s: %w", symbol, date, err)
	}

	return &open, nil
}

// CloseAsOf returns the latest close at or before date, or nil when no bar
// exists that early.
func (r *Repository) CloseAsOf(symbol, date string) (*float64, error) {
	var close float64
	err := r.db.QueryRow(`SELECT close FROM price_history
		WHERE symbol = ? AND date <= ?
		ORDER BY date DESC LIMIT 1`, symbol, date).Scan(&close)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query close for %s as of %s: %w", symbol, date, err)
	}

	return &close, nil
}

// CloseInRange returns the latest close with after < date <= through, or
// nil when the window holds no bar.
func (r *Repository) CloseInRange(symbol, after, through string) (*float64, error) {
	var close float64
	err := r.db.QueryRow(`SELECT close FROM price_history
		WHERE symbol = ? AND date > ? AND date <= ?
		ORDER BY date DESC LIMIT 1`, symbol, after, through).Scan(&close)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query close for %s in (%s, %s]: %w", symbol, after, through, err)
	}

	return &close, nil
}

// ClosesBetween returns symbol's closes with from <= date <= through,
// ascending by date.
func (r *Repository) ClosesBetween(symbol, from, through string) ([]float64, error) {
	rows, err := r.db.Query(`SELECT close FROM price_history
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`, symbol, from, through)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes for %s in [%s, %s]: %w", symbol, from, through, err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var close float64
		if err := rows.Scan(&close); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		closes = append(closes, close)
	}

	return closes, rows.Err()
}

// ClosesOn returns every symbol's closing price on date. Symbols without
// a bar for that exact date are absent from the map.
func (r *Repository) ClosesOn(date string) (map[string]float64, error) {
	rows, err := r.db.Query(`SELECT symbol, close FROM price_history WHERE date = ?`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes on %s: %w", date, err)
	}
	defer rows.Close()

	closes := make(map[string]float64)
	for rows.Next() {
		var symbol string
		var close float64
		if err := rows.Scan(&symbol, &close); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		closes[symbol] = close
	}

	return closes, rows.Err()
}

// TradingDays returns the distinct dates with bars for symbol in
// [from, to], ascending. The benchmark symbol's dates define the engine's
// trading calendar.
func (r *Repository) TradingDays(symbol, from, to string) ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT date FROM price_history
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`, symbol, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query trading days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("failed to scan trading day: %w", err)
		}
		days = append(days, day)
	}

	return days, rows.Err()
}

// Symbols returns every symbol with at least one bar.
func (r *Repository) Symbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM price_history ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}

	return symbols, rows.Err()
}

// BarCount returns the number of stored bars for symbol.
func (r *Repository) BarCount(symbol string) (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM price_history WHERE symbol = ?`, symbol).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bars for %s: %w", symbol, err)
	}
	return count, nil
}

// Helper functions

func scanBar(row *sql.Row) (*Bar, error) {
	var b Bar
	if err := row.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanBars(rows *sql.Rows) ([]Bar, error) {
	var bars []Bar
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.Symbol, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
