package performance

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*Repository, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE performance_metrics (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL UNIQUE,
			portfolio_value REAL NOT NULL DEFAULT 0,
			cash_balance REAL NOT NULL DEFAULT 0,
			total_value REAL NOT NULL DEFAULT 0,
			daily_return REAL,
			cumulative_return REAL,
			sharpe_ratio REAL,
			max_drawdown REAL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`)
	require.NoError(t, err)

	return NewRepository(db, zerolog.Nop()), db
}

func seedDay(t *testing.T, repo *Repository, date string, totalValue float64) {
	t.Helper()
	require.NoError(t, repo.Upsert(&Daily{
		Date:           date,
		PortfolioValue: totalValue - 100,
		CashBalance:    100,
		TotalValue:     totalValue,
		DailyReturn:    0.5,
	}))
}

func TestUpsertInsertsAndReplaces(t *testing.T) {
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.Upsert(&Daily{
		Date:             "2024-03-15",
		PortfolioValue:   900,
		CashBalance:      100,
		TotalValue:       1000,
		DailyReturn:      1.5,
		CumulativeReturn: 4.2,
	}))

	require.NoError(t, repo.Upsert(&Daily{
		Date:             "2024-03-15",
		PortfolioValue:   950,
		CashBalance:      150,
		TotalValue:       1100,
		DailyReturn:      2.0,
		CumulativeReturn: 5.0,
	}))

	rows, err := repo.Series("2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 950.0, rows[0].PortfolioValue, 1e-9)
	assert.InDelta(t, 150.0, rows[0].CashBalance, 1e-9)
	assert.InDelta(t, 1100.0, rows[0].TotalValue, 1e-9)
	assert.InDelta(t, 2.0, rows[0].DailyReturn, 1e-9)
	assert.InDelta(t, 5.0, rows[0].CumulativeReturn, 1e-9)
}

func TestSeriesAscendingInclusive(t *testing.T) {
	repo, _ := newTestRepo(t)
	seedDay(t, repo, "2024-03-14", 1000)
	seedDay(t, repo, "2024-03-12", 980)
	seedDay(t, repo, "2024-03-13", 990)
	seedDay(t, repo, "2024-03-20", 1050)

	rows, err := repo.Series("2024-03-12", "2024-03-14")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-03-12", rows[0].Date)
	assert.Equal(t, "2024-03-13", rows[1].Date)
	assert.Equal(t, "2024-03-14", rows[2].Date)
}

func TestLatest(t *testing.T) {
	repo, _ := newTestRepo(t)

	got, err := repo.Latest()
	require.NoError(t, err)
	assert.Nil(t, got)

	seedDay(t, repo, "2024-03-12", 980)
	seedDay(t, repo, "2024-03-14", 1000)

	got, err = repo.Latest()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2024-03-14", got.Date)
	assert.InDelta(t, 1000.0, got.TotalValue, 1e-9)
}

func TestTotalValuesRangeHalfOpen(t *testing.T) {
	repo, _ := newTestRepo(t)
	seedDay(t, repo, "2024-03-01", 1000)
	seedDay(t, repo, "2024-03-02", 1010)
	seedDay(t, repo, "2024-03-03", 990)

	values, err := repo.TotalValuesRange("2024-03-01", "2024-03-03")
	require.NoError(t, err)
	assert.Equal(t, []float64{1000, 1010}, values)

	values, err = repo.TotalValuesRange("2024-04-01", "2024-05-01")
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestPreviousTotalValue(t *testing.T) {
	repo, _ := newTestRepo(t)

	prev, err := repo.PreviousTotalValue("2024-03-15")
	require.NoError(t, err)
	assert.Nil(t, prev)

	seedDay(t, repo, "2024-03-13", 990)
	seedDay(t, repo, "2024-03-14", 1000)
	seedDay(t, repo, "2024-03-15", 1020)

	prev, err = repo.PreviousTotalValue("2024-03-15")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.InDelta(t, 1000.0, *prev, 1e-9)
}

func TestCountThrough(t *testing.T) {
	repo, _ := newTestRepo(t)
	seedDay(t, repo, "2024-03-13", 990)
	seedDay(t, repo, "2024-03-14", 1000)
	seedDay(t, repo, "2024-03-15", 1020)

	count, err := repo.CountThrough("2024-03-14")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.CountThrough("2024-03-01")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMinMaxDates(t *testing.T) {
	repo, _ := newTestRepo(t)

	first, last, err := repo.MinMaxDates("2024-01-01", "2024-12-31")
	require.NoError(t, err)
	assert.Empty(t, first)
	assert.Empty(t, last)

	seedDay(t, repo, "2024-03-13", 990)
	seedDay(t, repo, "2024-03-14", 1000)
	seedDay(t, repo, "2024-04-01", 1020)

	first, last, err = repo.MinMaxDates("2024-03-01", "2024-03-31")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-13", first)
	assert.Equal(t, "2024-03-14", last)
}

func TestDeleteBetween(t *testing.T) {
	repo, _ := newTestRepo(t)
	seedDay(t, repo, "2024-03-13", 990)
	seedDay(t, repo, "2024-03-14", 1000)
	seedDay(t, repo, "2024-03-15", 1020)

	deleted, err := repo.DeleteBetween("2024-03-13", "2024-03-14")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	rows, err := repo.Series("2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2024-03-15", rows[0].Date)
}

func TestScanHandlesNullReturns(t *testing.T) {
	repo, db := newTestRepo(t)

	_, err := db.Exec(`
		INSERT INTO performance_metrics (date, portfolio_value, cash_balance, total_value)
		VALUES ('2024-03-15', 900, 100, 1000)`)
	require.NoError(t, err)

	got, err := repo.Latest()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Zero(t, got.DailyReturn)
	assert.Zero(t, got.CumulativeReturn)
}
