package performance

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

const dailyColumns = "date, portfolio_value, cash_balance, total_value, daily_return, cumulative_return"

// Repository reads and writes performance_metrics in the ledger database.
type Repository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRepository(db *sql.DB, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With().Str("component", "performance_repository").Logger(),
	}
}

// Upsert writes the row for d.Date, replacing the value columns when the
// date already exists.
func (r *Repository) Upsert(d *Daily) error {
	_, err := r.db.Exec(`
		INSERT INTO performance_metrics
			(date, portfolio_value, cash_balance, total_value, daily_return, cumulative_return)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			portfolio_value = excluded.portfolio_value,
			cash_balance = excluded.cash_balance,
			total_value = excluded.total_value,
			daily_return = excluded.daily_return,
			cumulative_return = excluded.cumulative_return`,
		d.Date, d.PortfolioValue, d.CashBalance, d.TotalValue, d.DailyReturn, d.CumulativeReturn,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily metrics for %s: %w", d.Date, err)
	}
	return nil
}

// Series returns rows with start <= date <= end, ascending.
func (r *Repository) Series(start, end string) ([]Daily, error) {
	rows, err := r.db.Query(
		"SELECT "+dailyColumns+" FROM performance_metrics WHERE date >= ? AND date <= ? ORDER BY date ASC",
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics series: %w", err)
	}
	defer rows.Close()

	return scanDailies(rows)
}

// Latest returns the most recent row, or nil when none exist.
func (r *Repository) Latest() (*Daily, error) {
	row := r.db.QueryRow(
		"SELECT " + dailyColumns + " FROM performance_metrics ORDER BY date DESC LIMIT 1",
	)

	d, err := scanDaily(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest metrics: %w", err)
	}
	return d, nil
}

// TotalValuesRange returns total_value for from <= date < before,
// ascending. The circuit breaker reads the month-to-date series this way.
func (r *Repository) TotalValuesRange(from, before string) ([]float64, error) {
	rows, err := r.db.Query(
		"SELECT total_value FROM performance_metrics WHERE date >= ? AND date < ? ORDER BY date ASC",
		from, before,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query total values: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan total value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// PreviousTotalValue returns total_value of the latest row strictly before
// date, or nil when no earlier row exists.
func (r *Repository) PreviousTotalValue(date string) (*float64, error) {
	var value float64
	err := r.db.QueryRow(
		"SELECT total_value FROM performance_metrics WHERE date < ? ORDER BY date DESC LIMIT 1",
		date,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query previous total value: %w", err)
	}
	return &value, nil
}

// CountThrough returns the number of rows with date <= through. Each row
// marks one trading day whose capital grant was injected.
func (r *Repository) CountThrough(through string) (int, error) {
	var count int
	err := r.db.QueryRow(
		"SELECT COUNT(*) FROM performance_metrics WHERE date <= ?", through,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count metric days: %w", err)
	}
	return count, nil
}

// DatesThrough returns every row date up to and including through,
// ascending.
func (r *Repository) DatesThrough(through string) ([]string, error) {
	rows, err := r.db.Query(
		"SELECT date FROM performance_metrics WHERE date <= ? ORDER BY date ASC", through,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan metric date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// MinMaxDates returns the earliest and latest row dates within [from, to].
// Both are empty when the window holds no rows.
func (r *Repository) MinMaxDates(from, to string) (string, string, error) {
	var first, last sql.NullString
	err := r.db.QueryRow(
		"SELECT MIN(date), MAX(date) FROM performance_metrics WHERE date >= ? AND date <= ?",
		from, to,
	).Scan(&first, &last)
	if err != nil {
		return "", "", fmt.Errorf("failed to query metric bounds: %w", err)
	}
	return first.String, last.String, nil
}

// DeleteBetween removes rows with from <= date <= through and returns the
// number deleted.
func (r *Repository) DeleteBetween(from, through string) (int64, error) {
	res, err := r.db.Exec(
		"DELETE FROM performance_metrics WHERE date >= ? AND date <= ?", from, through,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete metrics: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.logger.Debug().Int64("deleted", deleted).Str("from", from).Str("through", through).Msg("Deleted performance rows")
	}
	return deleted, nil
}

// Helper functions

func scanDaily(row *sql.Row) (*Daily, error) {
	var d Daily
	var dailyReturn, cumulativeReturn sql.NullFloat64
	if err := row.Scan(&d.Date, &d.PortfolioValue, &d.CashBalance, &d.TotalValue, &dailyReturn, &cumulativeReturn); err != nil {
		return nil, err
	}
	d.DailyReturn = dailyReturn.Float64
	d.CumulativeReturn = cumulativeReturn.Float64
	return &d, nil
}

func scanDailies(rows *sql.Rows) ([]Daily, error) {
	var dailies []Daily
	for rows.Next() {
		var d Daily
		var dailyReturn, cumulativeReturn sql.NullFloat64
		if err := rows.Scan(&d.Date, &d.PortfolioValue, &d.CashBalance, &d.TotalValue, &dailyReturn, &cumulativeReturn); err != nil {
			return nil, fmt.Errorf("failed to scan metrics row: %w", err)
		}
		d.DailyReturn = dailyReturn.Float64
		d.CumulativeReturn = cumulativeReturn.Float64
		dailies = append(dailies, d)
	}
	return dailies, rows.Err()
}
