package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/database"
)

// minPositionQuantity is the dust threshold below which a position is
// treated as closed.
const minPositionQuantity = 0.0001

const positionColumns = "symbol, quantity, avg_cost, last_updated"

// Repository manages the portfolio table in the ledger database,
// including the synthetic CASH row.
type Repository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRepository(db *sql.DB, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With().Str("component", "portfolio_repository").Logger(),
	}
}

// EnsureCash creates the CASH row with a zero balance if it is missing.
func (r *Repository) EnsureCash() error {
	_, err := r.db.Exec(`
		INSERT INTO portfolio (symbol, quantity, avg_cost, last_updated)
		VALUES (?, 0, 1.0, ?)
		ON CONFLICT(symbol) DO NOTHING`,
		CashSymbol, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to ensure cash row: %w", err)
	}
	return nil
}

// CashBalance returns the current cash balance, zero when the CASH row
// does not exist yet.
func (r *Repository) CashBalance() (float64, error) {
	var balance float64
	err := r.db.QueryRow(
		"SELECT quantity FROM portfolio WHERE symbol = ?", CashSymbol,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cash balance: %w", err)
	}
	return balance, nil
}

// AddCash credits the cash balance.
func (r *Repository) AddCash(amount float64) error {
	return r.adjustCash(amount)
}

// DeductCash debits the cash balance, failing when the balance is short.
func (r *Repository) DeductCash(amount float64) error {
	balance, err := r.CashBalance()
	if err != nil {
		return err
	}
	if balance < amount {
		return fmt.Errorf("insufficient cash: have $%.2f, need $%.2f", balance, amount)
	}
	return r.adjustCash(-amount)
}

func (r *Repository) adjustCash(delta float64) error {
	res, err := r.db.Exec(`
		UPDATE portfolio SET quantity = quantity + ?, last_updated = ?
		WHERE symbol = ?`,
		delta, now(), CashSymbol,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust cash: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("cash row missing, call EnsureCash first")
	}
	return nil
}

// Positions returns open holdings above the dust threshold, CASH
// excluded, ordered by symbol.
func (r *Repository) Positions() ([]Position, error) {
	rows, err := r.db.Query(
		"SELECT "+positionColumns+" FROM portfolio WHERE symbol != ? AND quantity > ? ORDER BY symbol ASC",
		CashSymbol, minPositionQuantity,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		pos, err := scanPositionFromRows(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// AllPositions returns every non-cash row with a positive quantity,
// dust included. Valuation counts shares the sell path no longer trades.
func (r *Repository) AllPositions() ([]Position, error) {
	rows, err := r.db.Query(
		"SELECT "+positionColumns+" FROM portfolio WHERE symbol != ? AND quantity > 0 ORDER BY symbol ASC",
		CashSymbol,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		pos, err := scanPositionFromRows(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// Holdings returns open holdings as a symbol to quantity map.
func (r *Repository) Holdings() (map[string]float64, error) {
	positions, err := r.Positions()
	if err != nil {
		return nil, err
	}
	holdings := make(map[string]float64, len(positions))
	for _, pos := range positions {
		holdings[pos.Symbol] = pos.Quantity
	}
	return holdings, nil
}

// Get returns a single position, or nil when the symbol is not held.
func (r *Repository) Get(symbol string) (*Position, error) {
	row := r.db.QueryRow(
		"SELECT "+positionColumns+" FROM portfolio WHERE symbol = ?", symbol,
	)

	var pos Position
	var updated string
	err := row.Scan(&pos.Symbol, &pos.Quantity, &pos.AvgCost, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan position: %w", err)
	}
	if pos.LastUpdated, err = time.Parse(time.RFC3339, updated); err != nil {
		return nil, fmt.Errorf("failed to parse last_updated: %w", err)
	}
	return &pos, nil
}

// ApplyBuy adds shares at the given price, updating the weighted average
// cost for an existing position or creating a new one.
func (r *Repository) ApplyBuy(symbol string, quantity, price float64) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var oldQty, oldAvg float64
		err := tx.QueryRow(
			"SELECT quantity, avg_cost FROM portfolio WHERE symbol = ?", symbol,
		).Scan(&oldQty, &oldAvg)

		switch {
		case err == sql.ErrNoRows:
			_, err = tx.Exec(`
				INSERT INTO portfolio (symbol, quantity, avg_cost, last_updated)
				VALUES (?, ?, ?, ?)`,
				symbol, quantity, price, now(),
			)
			if err != nil {
				return fmt.Errorf("failed to insert position: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to read position: %w", err)
		default:
			newQty := oldQty + quantity
			newAvg := (oldQty*oldAvg + quantity*price) / newQty
			_, err = tx.Exec(`
				UPDATE portfolio SET quantity = ?, avg_cost = ?, last_updated = ?
				WHERE symbol = ?`,
				newQty, newAvg, now(), symbol,
			)
			if err != nil {
				return fmt.Errorf("failed to update position: %w", err)
			}
		}
		return nil
	})
}

// ApplySell removes shares from a position, deleting it once only dust
// remains. The average cost is left untouched.
func (r *Repository) ApplySell(symbol string, quantity float64) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		var oldQty float64
		err := tx.QueryRow(
			"SELECT quantity FROM portfolio WHERE symbol = ?", symbol,
		).Scan(&oldQty)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read position: %w", err)
		}

		newQty := oldQty - quantity
		if newQty <= minPositionQuantity {
			if _, err := tx.Exec("DELETE FROM portfolio WHERE symbol = ?", symbol); err != nil {
				return fmt.Errorf("failed to close position: %w", err)
			}
			return nil
		}

		_, err = tx.Exec(`
			UPDATE portfolio SET quantity = ?, last_updated = ?
			WHERE symbol = ?`,
			newQty, now(), symbol,
		)
		if err != nil {
			return fmt.Errorf("failed to reduce position: %w", err)
		}
		return nil
	})
}

// Reset wipes the portfolio table, CASH row included.
func (r *Repository) Reset() error {
	if _, err := r.db.Exec("DELETE FROM portfolio"); err != nil {
		return fmt.Errorf("failed to reset portfolio: %w", err)
	}
	return nil
}

// Helper functions

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func scanPositionFromRows(rows *sql.Rows) (Position, error) {
	var pos Position
	var updated string
	if err := rows.Scan(&pos.Symbol, &pos.Quantity, &pos.AvgCost, &updated); err != nil {
		return Position{}, fmt.Errorf("failed to scan position: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, updated)
	if err != nil {
		return Position{}, fmt.Errorf("failed to parse last_updated: %w", err)
	}
	pos.LastUpdated = ts
	return pos, nil
}
