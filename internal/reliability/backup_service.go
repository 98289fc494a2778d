// Package reliability keeps the engine's SQLite databases recoverable:
// tiered local backups with integrity verification and rotation.
package reliability

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/database"
)

const (
	dailyRetentionDays   = 30
	weeklyRetentionWeeks = 8
)

// BackupService writes tiered backups of every database it is handed.
// Daily backups keep a month of history, weekly backups two further
// months. The ledger is the only irreplaceable database, but market and
// config are small enough that backing up all three costs nothing.
type BackupService struct {
	databases map[string]*database.DB
	backupDir string
	log       zerolog.Logger
}

// NewBackupService creates a backup service over the named databases.
func NewBackupService(databases map[string]*database.DB, backupDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		databases: databases,
		backupDir: backupDir,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// DailyBackup snapshots every database into backups/daily/<date> and
// trims snapshots older than the retention window.
func (s *BackupService) DailyBackup() error {
	start := time.Now()

	date := time.Now().Format("2006-01-02")
	dailyDir := filepath.Join(s.backupDir, "daily", date)
	if err := os.MkdirAll(dailyDir, 0755); err != nil {
		return fmt.Errorf("failed to create daily backup directory: %w", err)
	}

	s.backupAll(dailyDir)

	if err := s.rotateDailyBackups(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate daily backups")
	}

	s.log.Info().
		Dur("duration_ms", time.Since(start)).
		Str("backup_dir", dailyDir).
		Msg("Daily backup complete")
	return nil
}

// WeeklyBackup snapshots every database into backups/weekly/<iso-week>
// and trims snapshots older than the retention window.
func (s *BackupService) WeeklyBackup() error {
	start := time.Now()

	year, week := time.Now().ISOWeek()
	weekDir := filepath.Join(s.backupDir, "weekly", fmt.Sprintf("%04d-W%02d", year, week))
	if err := os.MkdirAll(weekDir, 0755); err != nil {
		return fmt.Errorf("failed to create weekly backup directory: %w", err)
	}

	s.backupAll(weekDir)

	if err := s.rotateWeeklyBackups(); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate weekly backups")
	}

	s.log.Info().
		Dur("duration_ms", time.Since(start)).
		Str("backup_dir", weekDir).
		Msg("Weekly backup complete")
	return nil
}

// backupAll snapshots each database into dir, continuing past
// per-database failures so one bad file never blocks the rest.
func (s *BackupService) backupAll(dir string) {
	names := make([]string, 0, len(s.databases))
	for name := range s.databases {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		backupPath := filepath.Join(dir, name+".db")

		if err := s.backupDatabase(name, backupPath); err != nil {
			s.log.Error().Str("database", name).Err(err).Msg("Failed to back up database")
			continue
		}
		if err := s.verifyBackup(backupPath); err != nil {
			s.log.Error().Str("database", name).Err(err).Msg("Backup verification failed")
			os.Remove(backupPath)
		}
	}
}

// backupDatabase snapshots one database with VACUUM INTO, which copies
// atomically, drops WAL baggage, and compacts in one pass.
func (s *BackupService) backupDatabase(name, backupPath string) error {
	db, ok := s.databases[name]
	if !ok {
		return fmt.Errorf("database %s not found", name)
	}

	// VACUUM INTO refuses to overwrite, so reruns on the same day must
	// clear the previous snapshot first.
	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stale backup: %w", err)
	}

	if _, err := db.Conn().Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}
	s.log.Debug().
		Str("database", name).
		Float64("size_mb", float64(info.Size())/1024/1024).
		Msg("Backup created")
	return nil
}

// verifyBackup opens the snapshot and runs SQLite's integrity check.
func (s *BackupService) verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// rotateDailyBackups deletes daily snapshot directories older than the
// retention window, going by the date in the directory name.
func (s *BackupService) rotateDailyBackups() error {
	dailyDir := filepath.Join(s.backupDir, "daily")
	cutoff := time.Now().AddDate(0, 0, -dailyRetentionDays)

	entries, err := os.ReadDir(dailyDir)
	if err != nil {
		return fmt.Errorf("failed to read daily backup directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirDate, err := time.Parse("2006-01-02", entry.Name())
		if err != nil {
			s.log.Warn().Str("dir", entry.Name()).Msg("Unrecognized daily backup directory name")
			continue
		}
		if dirDate.Before(cutoff) {
			path := filepath.Join(dailyDir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				s.log.Warn().Str("path", path).Err(err).Msg("Failed to delete old daily backup")
			} else {
				s.log.Debug().Str("path", path).Msg("Deleted old daily backup")
			}
		}
	}
	return nil
}

// rotateWeeklyBackups deletes weekly snapshot directories whose modify
// time is past the retention window.
func (s *BackupService) rotateWeeklyBackups() error {
	weeklyDir := filepath.Join(s.backupDir, "weekly")
	cutoff := time.Now().AddDate(0, 0, -weeklyRetentionWeeks*7)

	entries, err := os.ReadDir(weeklyDir)
	if err != nil {
		return fmt.Errorf("failed to read weekly backup directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(weeklyDir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				s.log.Warn().Str("path", path).Err(err).Msg("Failed to delete old weekly backup")
			} else {
				s.log.Debug().Str("path", path).Msg("Deleted old weekly backup")
			}
		}
	}
	return nil
}

// RestoreFromBackup returns the path of the most recent snapshot for a
// database, checking daily backups before weekly ones.
func (s *BackupService) RestoreFromBackup(name string) (string, error) {
	s.log.Warn().Str("database", name).Msg("Searching for backup to restore")

	for _, tier := range []string{"daily", "weekly"} {
		if path := s.findMostRecentBackup(filepath.Join(s.backupDir, tier), name+".db"); path != "" {
			s.log.Info().Str("backup", path).Str("tier", tier).Msg("Found backup")
			return path, nil
		}
	}
	return "", fmt.Errorf("no backup found for %s", name)
}

// findMostRecentBackup walks a tier directory for the newest file with
// the given name.
func (s *BackupService) findMostRecentBackup(baseDir, filename string) string {
	var mostRecent string
	var mostRecentTime time.Time

	if err := filepath.Walk(baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if filepath.Base(path) == filename && info.ModTime().After(mostRecentTime) {
			mostRecent = path
			mostRecentTime = info.ModTime()
		}
		return nil
	}); err != nil {
		s.log.Warn().Err(err).Str("base_dir", baseDir).Msg("Error walking backup directory")
	}

	return mostRecent
}

// DailyBackupJob wraps BackupService.DailyBackup for the scheduler.
type DailyBackupJob struct {
	service *BackupService
}

func NewDailyBackupJob(service *BackupService) *DailyBackupJob {
	return &DailyBackupJob{service: service}
}

func (j *DailyBackupJob) Run() error {
	return j.service.DailyBackup()
}

// Name returns the job name for scheduler registration.
func (j *DailyBackupJob) Name() string {
	return "daily_backup"
}

// WeeklyBackupJob wraps BackupService.WeeklyBackup for the scheduler.
type WeeklyBackupJob struct {
	service *BackupService
}

func NewWeeklyBackupJob(service *BackupService) *WeeklyBackupJob {
	return &WeeklyBackupJob{service: service}
}

func (j *WeeklyBackupJob) Run() error {
	return j.service.WeeklyBackup()
}

// Name returns the job name for scheduler registration.
func (j *WeeklyBackupJob) Name() string {
	return "weekly_backup"
}
