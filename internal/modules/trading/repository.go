package trading

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/modules/signal"
)

const tradeColumns = "id, signal_id, trade_date, executed_at, symbol, action, quantity, price, amount"

// Repository reads and writes the trades table in the ledger database.
type Repository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRepository(db *sql.DB, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With().Str("component", "trade_repository").Logger(),
	}
}

// Create validates and inserts a trade, setting ExecutedAt and ID.
func (r *Repository) Create(t *Trade) error {
	if err := t.Validate(); err != nil {
		return err
	}

	if t.ExecutedAt.IsZero() {
		t.ExecutedAt = time.Now().UTC()
	}

	res, err := r.db.Exec(`
		INSERT INTO trades (signal_id, trade_date, executed_at, symbol, action, quantity, price, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.SignalID, t.TradeDate, t.ExecutedAt.Format(time.RFC3339),
		t.Symbol, string(t.Action), t.Quantity, t.Price, t.Amount,
	)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	if t.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read trade id: %w", err)
	}

	return nil
}

// ListBetween returns trades with from <= trade_date <= through, ordered
// by trade date then insertion.
func (r *Repository) ListBetween(from, through string) ([]Trade, error) {
	rows, err := r.db.Query(
		"SELECT "+tradeColumns+" FROM trades WHERE trade_date >= ? AND trade_date <= ? ORDER BY trade_date ASC, id ASC",
		from, through,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// Recent returns up to limit trades, newest first.
func (r *Repository) Recent(limit int) ([]Trade, error) {
	rows, err := r.db.Query(
		"SELECT "+tradeColumns+" FROM trades ORDER BY trade_date DESC, id DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// ListWithFeatures returns trades in [from, through] joined with the
// feature payload of their signal, ordered by trade date then insertion.
func (r *Repository) ListWithFeatures(from, through string) ([]TradeWithSignal, error) {
	rows, err := r.db.Query(`
		SELECT t.id, t.signal_id, t.trade_date, t.executed_at, t.symbol, t.action, t.quantity, t.price, t.amount,
			ds.features_used
		FROM trades t
		JOIN daily_signals ds ON t.signal_id = ds.id
		WHERE t.trade_date >= ? AND t.trade_date <= ?
		ORDER BY t.trade_date ASC, t.id ASC`,
		from, through,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades with features: %w", err)
	}
	defer rows.Close()

	var joined []TradeWithSignal
	for rows.Next() {
		var tws TradeWithSignal
		var executedAt, action string
		var features sql.NullString
		if err := rows.Scan(
			&tws.ID, &tws.SignalID, &tws.TradeDate, &executedAt, &tws.Symbol,
			&action, &tws.Quantity, &tws.Price, &tws.Amount, &features,
		); err != nil {
			return nil, fmt.Errorf("failed to scan joined trade: %w", err)
		}
		if tws.ExecutedAt, err = time.Parse(time.RFC3339, executedAt); err != nil {
			return nil, fmt.Errorf("failed to parse executed_at: %w", err)
		}
		tws.Action = signal.Action(action)
		if features.Valid && features.String != "" {
			if err := json.Unmarshal([]byte(features.String), &tws.Features); err != nil {
				return nil, fmt.Errorf("failed to decode signal features: %w", err)
			}
		}
		joined = append(joined, tws)
	}

	return joined, rows.Err()
}

// DeleteBetween removes trades with from <= trade_date <= through and
// returns the number deleted.
func (r *Repository) DeleteBetween(from, through string) (int64, error) {
	res, err := r.db.Exec(
		"DELETE FROM trades WHERE trade_date >= ? AND trade_date <= ?", from, through,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete trades: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		r.logger.Debug().Int64("deleted", deleted).Str("from", from).Str("through", through).Msg("Deleted trades")
	}
	return deleted, nil
}

// Helper functions

func scanTrades(rows *sql.Rows) ([]Trade, error) {
	var trades []Trade
	for rows.Next() {
		var t Trade
		var executedAt, action string
		if err := rows.Scan(
			&t.ID, &t.SignalID, &t.TradeDate, &executedAt, &t.Symbol,
			&action, &t.Quantity, &t.Price, &t.Amount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, executedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse executed_at: %w", err)
		}
		t.ExecutedAt = ts
		t.Action = signal.Action(action)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
