package reliability

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/database"
)

// DailyMaintenanceJob runs the off-hours housekeeping sweep: database
// integrity with recovery, WAL truncation and vacuum, cross-table
// validation, the alert ladder, and verification of the previous day's
// backups.
type DailyMaintenanceJob struct {
	health    map[string]*DatabaseHealthService
	monitor   *SystemMonitor
	backups   *BackupService
	validator *database.IntegrityValidator
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates the daily maintenance job. A nil
// validator skips the cross-table checks.
func NewDailyMaintenanceJob(health map[string]*DatabaseHealthService, monitor *SystemMonitor, backups *BackupService, validator *database.IntegrityValidator, log zerolog.Logger) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		health:    health,
		monitor:   monitor,
		backups:   backups,
		validator: validator,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Name identifies the job to the scheduler.
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the maintenance sweep. Integrity failures and critical
// alerts halt the job: trading against a bad ledger is worse than
// skipping a day.
func (j *DailyMaintenanceJob) Run() error {
	start := time.Now()
	j.log.Info().Msg("Starting daily maintenance")

	names := make([]string, 0, len(j.health))
	for name := range j.health {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := j.health[name].CheckAndRecover(); err != nil {
			return fmt.Errorf("database %s failed health check: %w", name, err)
		}
	}

	for _, name := range names {
		if err := j.health[name].DB().WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("WAL truncation failed")
		}
		if err := j.health[name].DB().Vacuum(); err != nil {
			j.log.Warn().Err(err).Str("database", name).Msg("Vacuum failed")
		}
	}

	// Logical findings are surfaced, not fatal; storage integrity above
	// is the halt condition.
	if j.validator != nil {
		result, err := j.validator.ValidateAll()
		if err != nil {
			return fmt.Errorf("cross-table validation failed: %w", err)
		}
		if !result.IsValid {
			j.log.Warn().Msg(result.FormatErrors())
		}
	}

	for _, alert := range j.monitor.CheckAlerts() {
		if alert.Level == AlertCritical {
			return fmt.Errorf("critical alert from %s: %s", alert.Component, alert.Message)
		}
	}

	if err := j.verifyYesterdayBackups(); err != nil {
		return fmt.Errorf("backup verification failed: %w", err)
	}

	j.log.Info().Dur("duration", time.Since(start)).Msg("Daily maintenance complete")
	return nil
}

// verifyYesterdayBackups opens every snapshot from yesterday's daily
// backup and checks its integrity, so a silently corrupt backup is
// caught while the live data it came from is still healthy.
func (j *DailyMaintenanceJob) verifyYesterdayBackups() error {
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	dir := filepath.Join(j.backups.backupDir, "daily", yesterday)

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		j.log.Info().Str("date", yesterday).Msg("No backups from yesterday to verify")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	verified := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		if err := j.backups.verifyBackup(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("backup %s is corrupt: %w", entry.Name(), err)
		}
		verified++
	}

	j.log.Info().Str("date", yesterday).Int("verified", verified).Msg("Verified previous day backups")
	return nil
}
