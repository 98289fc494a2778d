package database

import (
	"database/sql"
	"fmt"
	"strings"
)

// IntegrityValidator checks cross-table invariants the schema alone cannot
// enforce: effective-dated config intervals and ledger referential integrity.
type IntegrityValidator struct {
	ledgerDB *sql.DB
	configDB *sql.DB
}

// ValidationResult contains the results of all validation checks
type ValidationResult struct {
	IsValid            bool
	OpenConfigRows     int      // Open-ended trading_config rows (must be exactly 1)
	OverlappingConfigs []string // Pairs of config rows with overlapping intervals
	OrphanedTrades     []string // Trades whose signal_id points nowhere
	NegativePositions  []string // Portfolio rows with negative quantity
}

// NewIntegrityValidator creates a new integrity validator
func NewIntegrityValidator(ledgerDB, configDB *sql.DB) *IntegrityValidator {
	return &IntegrityValidator{
		ledgerDB: ledgerDB,
		configDB: configDB,
	}
}

// ValidateConfigIntervals checks that trading_config has exactly one
// open-ended row and that no two rows cover the same date.
func (v *IntegrityValidator) ValidateConfigIntervals() (openRows int, overlaps []string, err error) {
	err = v.configDB.QueryRow(
		"SELECT COUNT(*) FROM trading_config WHERE end_date IS NULL",
	).Scan(&openRows)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to count open config rows: %w", err)
	}

	query := `
		SELECT a.id, b.id
		FROM trading_config a
		JOIN trading_config b ON a.id < b.id
		WHERE a.start_date <= COALESCE(b.end_date, '9999-12-31')
		  AND b.start_date <= COALESCE(a.end_date, '9999-12-31')
	`

	rows, err := v.configDB.Query(query)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to query overlapping configs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var idA, idB int64
		if err := rows.Scan(&idA, &idB); err != nil {
			return 0, nil, fmt.Errorf("failed to scan overlap pair: %w", err)
		}
		overlaps = append(overlaps, fmt.Sprintf("%d:%d", idA, idB))
	}

	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("error iterating overlaps: %w", err)
	}

	return openRows, overlaps, nil
}

// ValidateTradeReferences checks that every trade's signal_id references an
// existing daily signal.
func (v *IntegrityValidator) ValidateTradeReferences() ([]string, error) {
	query := `
		SELECT t.id, t.symbol, t.trade_date
		FROM trades t
		LEFT JOIN daily_signals ds ON t.signal_id = ds.id
		WHERE t.signal_id IS NOT NULL AND ds.id IS NULL
	`

	rows, err := v.ledgerDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphaned trades: %w", err)
	}
	defer rows.Close()

	var orphaned []string
	for rows.Next() {
		var id int64
		var symbol, tradeDate string
		if err := rows.Scan(&id, &symbol, &tradeDate); err != nil {
			return nil, fmt.Errorf("failed to scan orphaned trade: %w", err)
		}
		orphaned = append(orphaned, fmt.Sprintf("trade %d (%s %s)", id, symbol, tradeDate))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orphaned trades: %w", err)
	}

	return orphaned, nil
}

// ValidatePositionQuantities checks that no portfolio row holds a negative
// quantity. Sells reduce positions but must never take them below zero.
func (v *IntegrityValidator) ValidatePositionQuantities() ([]string, error) {
	query := "SELECT symbol, quantity FROM portfolio WHERE quantity < 0"

	rows, err := v.ledgerDB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query negative positions: %w", err)
	}
	defer rows.Close()

	var negatives []string
	for rows.Next() {
		var symbol string
		var quantity float64
		if err := rows.Scan(&symbol, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan negative position: %w", err)
		}
		negatives = append(negatives, fmt.Sprintf("%s: %.4f", symbol, quantity))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating negative positions: %w", err)
	}

	return negatives, nil
}

// ValidateAll runs all validation checks and returns a comprehensive result
func (v *IntegrityValidator) ValidateAll() (*ValidationResult, error) {
	result := &ValidationResult{
		IsValid:            true,
		OverlappingConfigs: []string{},
		OrphanedTrades:     []string{},
		NegativePositions:  []string{},
	}

	openRows, overlaps, err := v.ValidateConfigIntervals()
	if err != nil {
		return nil, fmt.Errorf("failed to validate config intervals: %w", err)
	}
	result.OpenConfigRows = openRows
	result.OverlappingConfigs = overlaps
	if openRows != 1 || len(overlaps) > 0 {
		result.IsValid = false
	}

	orphaned, err := v.ValidateTradeReferences()
	if err != nil {
		return nil, fmt.Errorf("failed to validate trade references: %w", err)
	}
	result.OrphanedTrades = orphaned
	if len(orphaned) > 0 {
		result.IsValid = false
	}

	negatives, err := v.ValidatePositionQuantities()
	if err != nil {
		return nil, fmt.Errorf("failed to validate position quantities: %w", err)
	}
	result.NegativePositions = negatives
	if len(negatives) > 0 {
		result.IsValid = false
	}

	return result, nil
}

// FormatErrors formats validation errors for display
func (r *ValidationResult) FormatErrors() string {
	if r.IsValid {
		return "All validations passed"
	}

	var parts []string

	if r.OpenConfigRows != 1 {
		parts = append(parts, fmt.Sprintf("Open-ended config rows: %d (expected exactly 1)", r.OpenConfigRows))
	}

	if len(r.OverlappingConfigs) > 0 {
		parts = append(parts, fmt.Sprintf("Overlapping config intervals (%d): %s",
			len(r.OverlappingConfigs), strings.Join(r.OverlappingConfigs, ", ")))
	}

	if len(r.OrphanedTrades) > 0 {
		parts = append(parts, fmt.Sprintf("Orphaned trades (%d): %s",
			len(r.OrphanedTrades), strings.Join(r.OrphanedTrades, ", ")))
	}

	if len(r.NegativePositions) > 0 {
		parts = append(parts, fmt.Sprintf("Negative positions (%d): %s",
			len(r.NegativePositions), strings.Join(r.NegativePositions, ", ")))
	}

	return strings.Join(parts, "\n")
}
