package reliability

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasquant/signal-engine/internal/database"
	"github.com/atlasquant/signal-engine/pkg/logger"
)

func newMonitorFixture(t *testing.T) (*SystemMonitor, *BackupService) {
	t.Helper()
	log := logger.New(logger.Config{Level: "error", Pretty: false})

	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "ledger.db")

	db, err := database.New(database.Config{
		Path:    dbPath,
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Conn().Exec(`CREATE TABLE trades (id INTEGER PRIMARY KEY AUTOINCREMENT, symbol TEXT NOT NULL)`)
	require.NoError(t, err)

	backupDir := filepath.Join(tempDir, "backups")
	backups := NewBackupService(map[string]*database.DB{"ledger": db}, backupDir, log)
	health := map[string]*DatabaseHealthService{
		"ledger": NewDatabaseHealthService(db, "ledger", dbPath, database.ProfileLedger, backups, log),
	}

	return NewSystemMonitor(health, tempDir, backupDir, log), backups
}

func TestSystemMonitor_Stats(t *testing.T) {
	t.Run("collects a full snapshot", func(t *testing.T) {
		monitor, _ := newMonitorFixture(t)

		stats := monitor.Stats()

		assert.Equal(t, "healthy", stats.Status)
		assert.GreaterOrEqual(t, stats.UptimeSeconds, int64(0))
		assert.Greater(t, stats.Goroutines, 0)
		assert.GreaterOrEqual(t, stats.CPUUsagePercent, 0.0)
		assert.Greater(t, stats.MemoryUsedPercent, 0.0)
		assert.Greater(t, stats.MemoryUsedMB, 0.0)
		assert.Greater(t, stats.DiskFreeGB, 0.0)
		assert.False(t, stats.CollectedAt.IsZero())

		require.Len(t, stats.Databases, 1)
		assert.Equal(t, "ledger", stats.Databases[0].Name)
		assert.True(t, stats.Databases[0].IntegrityOK)

		assert.Empty(t, stats.LastDailyBackup)
		assert.Empty(t, stats.LastWeeklyBackup)
	})

	t.Run("reports the newest backup directories", func(t *testing.T) {
		monitor, backups := newMonitorFixture(t)

		require.NoError(t, backups.DailyBackup())
		require.NoError(t, backups.WeeklyBackup())

		stats := monitor.Stats()

		assert.Equal(t, time.Now().Format("2006-01-02"), stats.LastDailyBackup)
		year, week := time.Now().ISOWeek()
		assert.Equal(t, fmt.Sprintf("%04d-W%02d", year, week), stats.LastWeeklyBackup)
	})
}

func TestSystemMonitor_CheckAlerts(t *testing.T) {
	t.Run("warns when no daily backups exist", func(t *testing.T) {
		monitor, _ := newMonitorFixture(t)

		alerts := monitor.CheckAlerts()

		found := false
		for _, alert := range alerts {
			if alert.Component == "backup" && alert.Level == AlertWarning {
				found = true
			}
		}
		assert.True(t, found, "expected a warning about missing daily backups")
	})

	t.Run("stays quiet about backups once one exists", func(t *testing.T) {
		monitor, backups := newMonitorFixture(t)

		require.NoError(t, backups.DailyBackup())

		for _, alert := range monitor.CheckAlerts() {
			assert.NotEqual(t, "backup", alert.Component)
		}
	})
}

func TestAlert_Levels(t *testing.T) {
	t.Run("alert level constants are correct", func(t *testing.T) {
		assert.Equal(t, AlertLevel("CRITICAL"), AlertCritical)
		assert.Equal(t, AlertLevel("WARNING"), AlertWarning)
		assert.Equal(t, AlertLevel("INFO"), AlertInfo)
	})
}
