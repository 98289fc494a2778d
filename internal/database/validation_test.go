package database

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func setupValidationDBs(t *testing.T) (ledger, config *sql.DB) {
	ledger, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	_, err = ledger.Exec(`
		CREATE TABLE daily_signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trade_date TEXT NOT NULL UNIQUE,
			generated_at TEXT NOT NULL,
			allocations TEXT NOT NULL,
			model_type TEXT NOT NULL DEFAULT 'regime_based',
			confidence_score REAL NOT NULL DEFAULT 0,
			features_used TEXT
		);
		CREATE TABLE trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			signal_id INTEGER,
			trade_date TEXT NOT NULL,
			executed_at TEXT NOT NULL,
			symbol TEXT NOT NULL,
			action TEXT NOT NULL,
			quantity REAL NOT NULL,
			price REAL NOT NULL,
			amount REAL NOT NULL
		);
		CREATE TABLE portfolio (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL UNIQUE,
			quantity REAL NOT NULL DEFAULT 0,
			avg_cost REAL NOT NULL DEFAULT 0,
			last_updated TEXT NOT NULL
		);
	`)
	require.NoError(t, err)

	config, err = sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { config.Close() })

	_, err = config.Exec(`
		CREATE TABLE trading_config (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			start_date TEXT NOT NULL,
			end_date TEXT
		);
	`)
	require.NoError(t, err)

	return ledger, config
}

func TestValidateConfigIntervals_SingleOpenRow(t *testing.T) {
	ledger, config := setupValidationDBs(t)

	_, err := config.Exec(`INSERT INTO trading_config (start_date, end_date) VALUES ('2015-01-01', '2024-12-31')`)
	require.NoError(t, err)
	_, err = config.Exec(`INSERT INTO trading_config (start_date, end_date) VALUES ('2025-01-01', NULL)`)
	require.NoError(t, err)

	v := NewIntegrityValidator(ledger, config)
	openRows, overlaps, err := v.ValidateConfigIntervals()
	require.NoError(t, err)

	assert.Equal(t, 1, openRows)
	assert.Empty(t, overlaps)
}

func TestValidateConfigIntervals_DetectsOverlap(t *testing.T) {
	ledger, config := setupValidationDBs(t)

	_, err := config.Exec(`INSERT INTO trading_config (start_date, end_date) VALUES ('2025-01-01', '2025-06-30')`)
	require.NoError(t, err)
	_, err = config.Exec(`INSERT INTO trading_config (start_date, end_date) VALUES ('2025-06-01', NULL)`)
	require.NoError(t, err)

	v := NewIntegrityValidator(ledger, config)
	_, overlaps, err := v.ValidateConfigIntervals()
	require.NoError(t, err)

	assert.Len(t, overlaps, 1)
}

func TestValidateConfigIntervals_MultipleOpenRows(t *testing.T) {
	ledger, config := setupValidationDBs(t)

	_, err := config.Exec(`INSERT INTO trading_config (start_date, end_date) VALUES ('2025-01-01', NULL)`)
	require.NoError(t, err)
	_, err = config.Exec(`INSERT INTO trading_config (start_date, end_date) VALUES ('2025-08-01', NULL)`)
	require.NoError(t, err)

	v := NewIntegrityValidator(ledger, config)
	result, err := v.ValidateAll()
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, 2, result.OpenConfigRows)
}

func TestValidateTradeReferences(t *testing.T) {
	ledger, config := setupValidationDBs(t)

	_, err := ledger.Exec(`
		INSERT INTO daily_signals (trade_date, generated_at, allocations)
		VALUES ('2025-08-01', '2025-08-01T06:00:00Z', '{}')
	`)
	require.NoError(t, err)

	// One trade references the signal, one points at a missing id
	_, err = ledger.Exec(`
		INSERT INTO trades (signal_id, trade_date, executed_at, symbol, action, quantity, price, amount)
		VALUES (1, '2025-08-01', '2025-08-01T09:35:00Z', 'SPY', 'BUY', 1.5, 500.0, 750.0),
		       (999, '2025-08-02', '2025-08-02T09:35:00Z', 'QQQ', 'BUY', 1.0, 400.0, 400.0)
	`)
	require.NoError(t, err)

	v := NewIntegrityValidator(ledger, config)
	orphaned, err := v.ValidateTradeReferences()
	require.NoError(t, err)

	require.Len(t, orphaned, 1)
	assert.Contains(t, orphaned[0], "QQQ")
}

func TestValidatePositionQuantities(t *testing.T) {
	ledger, config := setupValidationDBs(t)

	_, err := ledger.Exec(`
		INSERT INTO portfolio (symbol, quantity, avg_cost, last_updated)
		VALUES ('SPY', 10.0, 450.0, '2025-08-01T00:00:00Z'),
		       ('QQQ', -0.5, 380.0, '2025-08-01T00:00:00Z')
	`)
	require.NoError(t, err)

	v := NewIntegrityValidator(ledger, config)
	negatives, err := v.ValidatePositionQuantities()
	require.NoError(t, err)

	require.Len(t, negatives, 1)
	assert.Contains(t, negatives[0], "QQQ")
}

func TestValidateAll_CleanDatabases(t *testing.T) {
	ledger, config := setupValidationDBs(t)

	_, err := config.Exec(`INSERT INTO trading_config (start_date, end_date) VALUES ('2015-01-01', NULL)`)
	require.NoError(t, err)

	v := NewIntegrityValidator(ledger, config)
	result, err := v.ValidateAll()
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.Equal(t, "All validations passed", result.FormatErrors())
}

func TestFormatErrors_ReportsProblems(t *testing.T) {
	result := &ValidationResult{
		IsValid:           false,
		OpenConfigRows:    0,
		OrphanedTrades:    []string{"trade 7 (SPY 2025-08-01)"},
		NegativePositions: []string{"QQQ: -0.5000"},
	}

	msg := result.FormatErrors()
	assert.Contains(t, msg, "expected exactly 1")
	assert.Contains(t, msg, "Orphaned trades")
	assert.Contains(t, msg, "Negative positions")
}
