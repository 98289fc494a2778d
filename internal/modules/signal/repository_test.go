package signal

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
		CREATE TABLE daily_signals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			trade_date TEXT NOT NULL UNIQUE,
			generated_at TEXT NOT NULL,
			allocations TEXT NOT NULL,
			model_type TEXT NOT NULL DEFAULT 'regime_based',
			confidence_score REAL NOT NULL DEFAULT 0,
			features_used TEXT
		)`)
	require.NoError(t, err)

	return NewRepository(db, zerolog.Nop()), db
}

func buySignal(tradeDate string, confidence float64) *DailySignal {
	return &DailySignal{
		TradeDate:       tradeDate,
		Allocations:     map[string]float64{"SPY": 100, "QQQ": 50, "DIA": 0},
		ConfidenceScore: confidence,
		FeaturesUsed: Features{
			Regime:           0.4,
			Risk:             35,
			Action:           string(ActionBuy),
			AllocationPct:    0.8,
			SignalType:       "bullish_momentum",
			ConfidenceScore:  confidence,
			ConfidenceBucket: "medium",
			Assets: map[string]AssetSnapshot{
				"SPY": {Returns5D: 0.01, Returns60D: 0.12, Volatility: 0.008, Score: 5.2},
			},
		},
	}
}

func TestCreateAndGetByDate(t *testing.T) {
	repo, _ := newTestRepo(t)

	sig := buySignal("2024-03-15", 0.65)
	require.NoError(t, repo.Create(sig))
	assert.Greater(t, sig.ID, int64(0))
	assert.False(t, sig.GeneratedAt.IsZero())

	got, err := repo.GetByDate("2024-03-15")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sig.ID, got.ID)
	assert.Equal(t, ModelTypeRegimeBased, got.ModelType)
	assert.Equal(t, map[string]float64{"SPY": 100, "QQQ": 50, "DIA": 0}, got.Allocations)
	assert.Equal(t, "bullish_momentum", got.FeaturesUsed.SignalType)
	assert.InDelta(t, 0.65, got.FeaturesUsed.ConfidenceScore, 1e-9)
	assert.InDelta(t, 5.2, got.FeaturesUsed.Assets["SPY"].Score, 1e-9)
	assert.Equal(t, ActionBuy, got.Action())
}

func TestGetByDateMissing(t *testing.T) {
	repo, _ := newTestRepo(t)

	got, err := repo.GetByDate("2024-03-15")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreateRejectsDuplicateDate(t *testing.T) {
	repo, _ := newTestRepo(t)

	require.NoError(t, repo.Create(buySignal("2024-03-15", 0.6)))
	err := repo.Create(buySignal("2024-03-15", 0.7))
	assert.Error(t, err)
}

func TestLatestAndLatestBefore(t *testing.T) {
	repo, _ := newTestRepo(t)

	latest, err := repo.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	for _, date := range []string{"2024-03-13", "2024-03-15", "2024-03-14"} {
		require.NoError(t, repo.Create(buySignal(date, 0.5)))
	}

	latest, err = repo.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2024-03-15", latest.TradeDate)

	prev, err := repo.LatestBefore("2024-03-15")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "2024-03-14", prev.TradeDate)

	prev, err = repo.LatestBefore("2024-03-13")
	require.NoError(t, err)
	assert.Nil(t, prev)
}

func TestListRangeHalfOpen(t *testing.T) {
	repo, _ := newTestRepo(t)

	for _, date := range []string{"2024-03-12", "2024-03-13", "2024-03-14", "2024-03-15"} {
		require.NoError(t, repo.Create(buySignal(date, 0.5)))
	}

	got, err := repo.ListRange("2024-03-13", "2024-03-15")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-03-13", got[0].TradeDate)
	assert.Equal(t, "2024-03-14", got[1].TradeDate)
}

func TestListSince(t *testing.T) {
	repo, _ := newTestRepo(t)

	for _, date := range []string{"2024-03-12", "2024-03-14", "2024-03-15"} {
		require.NoError(t, repo.Create(buySignal(date, 0.5)))
	}

	got, err := repo.ListSince("2024-03-14")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-03-14", got[0].TradeDate)
	assert.Equal(t, "2024-03-15", got[1].TradeDate)
}

func TestDeleteBetween(t *testing.T) {
	repo, _ := newTestRepo(t)

	for _, date := range []string{"2024-03-12", "2024-03-13", "2024-03-14", "2024-03-15"} {
		require.NoError(t, repo.Create(buySignal(date, 0.5)))
	}

	deleted, err := repo.DeleteBetween("2024-03-13", "2024-03-14")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	remaining, err := repo.ListSince("2024-01-01")
	require.NoError(t, err)
	require.Len(t, remaining, 2)
	assert.Equal(t, "2024-03-12", remaining[0].TradeDate)
	assert.Equal(t, "2024-03-15", remaining[1].TradeDate)
}

func TestLegacyRowWithoutFeatures(t *testing.T) {
	repo, db := newTestRepo(t)

	_, err := db.Exec(`
		INSERT INTO daily_signals (trade_date, generated_at, allocations, model_type, confidence_score, features_used)
		VALUES ('2024-03-15', '2024-03-15T06:00:00Z', '{"SPY": 0}', 'regime_based', 0.3, NULL)`)
	require.NoError(t, err)

	got, err := repo.GetByDate("2024-03-15")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ActionHold, got.Action())
	assert.Empty(t, got.FeaturesUsed.SignalType)
}
