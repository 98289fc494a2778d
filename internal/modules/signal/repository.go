package signal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/database"
)

const signalColumns = "id, trade_date, generated_at, allocations, model_type, confidence_score, features_used"

// Repository persists daily signals in the ledger database.
type Repository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRepository(db *sql.DB, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With().Str("component", "signal_repository").Logger(),
	}
}

// Create inserts the signal and fills in its ID. GeneratedAt defaults to
// now when unset.
func (r *Repository) Create(s *DailySignal) error {
	if s.GeneratedAt.IsZero() {
		s.GeneratedAt = time.Now().UTC()
	}
	if s.ModelType == "" {
		s.ModelType = ModelTypeRegimeBased
	}

	allocJSON, err := json.Marshal(s.Allocations)
	if err != nil {
		return fmt.Errorf("failed to marshal allocations: %w", err)
	}
	featJSON, err := json.Marshal(s.FeaturesUsed)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO daily_signals (trade_date, generated_at, allocations, model_type, confidence_score, features_used)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.TradeDate, s.GeneratedAt.Format(time.RFC3339), string(allocJSON),
			s.ModelType, s.ConfidenceScore, string(featJSON),
		)
		if err != nil {
			return fmt.Errorf("failed to insert signal: %w", err)
		}

		s.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read signal id: %w", err)
		}
		return nil
	})
}

// GetByDate returns the signal for a trade date, or nil when none exists.
func (r *Repository) GetByDate(tradeDate string) (*DailySignal, error) {
	row := r.db.QueryRow(
		"SELECT "+signalColumns+" FROM daily_signals WHERE trade_date = ?",
		tradeDate,
	)
	return scanSignal(row)
}

// Latest returns the most recent signal, or nil when the ledger is empty.
func (r *Repository) Latest() (*DailySignal, error) {
	row := r.db.QueryRow(
		"SELECT " + signalColumns + " FROM daily_signals ORDER BY trade_date DESC LIMIT 1",
	)
	return scanSignal(row)
}

// LatestBefore returns the most recent signal strictly before the trade
// date, or nil when there is none.
func (r *Repository) LatestBefore(tradeDate string) (*DailySignal, error) {
	row := r.db.QueryRow(
		"SELECT "+signalColumns+" FROM daily_signals WHERE trade_date < ? ORDER BY trade_date DESC LIMIT 1",
		tradeDate,
	)
	return scanSignal(row)
}

// ListSince returns signals with trade_date >= from, oldest first.
func (r *Repository) ListSince(from string) ([]*DailySignal, error) {
	rows, err := r.db.Query(
		"SELECT "+signalColumns+" FROM daily_signals WHERE trade_date >= ? ORDER BY trade_date ASC",
		from,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// ListRange returns signals in the half-open window [from, before),
// oldest first.
func (r *Repository) ListRange(from, before string) ([]*DailySignal, error) {
	rows, err := r.db.Query(
		"SELECT "+signalColumns+" FROM daily_signals WHERE trade_date >= ? AND trade_date < ? ORDER BY trade_date ASC",
		from, before,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query signal range: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// DeleteBetween removes signals with trade_date in [from, through] and
// returns how many were deleted.
func (r *Repository) DeleteBetween(from, through string) (int64, error) {
	res, err := r.db.Exec(
		"DELETE FROM daily_signals WHERE trade_date >= ? AND trade_date <= ?",
		from, through,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete signals: %w", err)
	}
	return res.RowsAffected()
}

// Helper functions

func scanSignal(row *sql.Row) (*DailySignal, error) {
	var s DailySignal
	var generatedAt, allocations string
	var features sql.NullString

	err := row.Scan(&s.ID, &s.TradeDate, &generatedAt, &allocations, &s.ModelType, &s.ConfidenceScore, &features)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan signal: %w", err)
	}

	if err := finishSignal(&s, generatedAt, allocations, features); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSignals(rows *sql.Rows) ([]*DailySignal, error) {
	var signals []*DailySignal
	for rows.Next() {
		var s DailySignal
		var generatedAt, allocations string
		var features sql.NullString

		if err := rows.Scan(&s.ID, &s.TradeDate, &generatedAt, &allocations, &s.ModelType, &s.ConfidenceScore, &features); err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		if err := finishSignal(&s, generatedAt, allocations, features); err != nil {
			return nil, err
		}
		signals = append(signals, &s)
	}
	return signals, rows.Err()
}

func finishSignal(s *DailySignal, generatedAt, allocations string, features sql.NullString) error {
	ts, err := time.Parse(time.RFC3339, generatedAt)
	if err != nil {
		return fmt.Errorf("failed to parse generated_at: %w", err)
	}
	s.GeneratedAt = ts

	if err := json.Unmarshal([]byte(allocations), &s.Allocations); err != nil {
		return fmt.Errorf("failed to unmarshal allocations: %w", err)
	}
	if features.Valid && features.String != "" {
		if err := json.Unmarshal([]byte(features.String), &s.FeaturesUsed); err != nil {
			return fmt.Errorf("failed to unmarshal features: %w", err)
		}
	}
	return nil
}
