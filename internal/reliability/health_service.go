package reliability

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/database"
)

// DatabaseHealthService watches one database file and brings it back
// when it goes bad: integrity check, then a checkpoint cycle, then
// restore from the newest backup.
type DatabaseHealthService struct {
	db      *database.DB
	name    string
	path    string
	profile database.DatabaseProfile
	backups *BackupService
	log     zerolog.Logger
}

// NewDatabaseHealthService creates a health service for a database.
func NewDatabaseHealthService(db *database.DB, name, path string, profile database.DatabaseProfile, backups *BackupService, log zerolog.Logger) *DatabaseHealthService {
	return &DatabaseHealthService{
		db:      db,
		name:    name,
		path:    path,
		profile: profile,
		backups: backups,
		log:     log.With().Str("service", "health").Str("database", name).Logger(),
	}
}

// DB returns the current handle, which changes after a recovery.
func (s *DatabaseHealthService) DB() *database.DB {
	return s.db
}

// CheckAndRecover verifies integrity and escalates through recovery
// steps until the database is healthy or nothing is left to try.
func (s *DatabaseHealthService) CheckAndRecover() error {
	s.log.Debug().Msg("Starting health check")

	if err := s.checkIntegrity(); err != nil {
		s.log.Error().Err(err).Msg("Integrity check failed")

		if err := s.attemptCheckpointRecovery(); err != nil {
			s.log.Error().Err(err).Msg("Checkpoint recovery failed")
			return s.restoreFromBackup()
		}
		if err := s.checkIntegrity(); err != nil {
			s.log.Error().Err(err).Msg("Integrity check failed after checkpoint recovery")
			return s.restoreFromBackup()
		}
		s.log.Info().Msg("Database recovered via checkpoint")
	}

	s.log.Debug().Msg("Health check complete")
	return nil
}

func (s *DatabaseHealthService) checkIntegrity() error {
	return s.db.HealthCheck(context.Background())
}

// attemptCheckpointRecovery cycles the connection and forces a WAL
// checkpoint, which clears corruption that lives only in the WAL.
func (s *DatabaseHealthService) attemptCheckpointRecovery() error {
	s.log.Warn().Msg("Attempting checkpoint recovery")

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	newDB, err := database.New(database.Config{Path: s.path, Profile: s.profile, Name: s.name})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	if err := newDB.WALCheckpoint("RESTART"); err != nil {
		newDB.Close()
		return err
	}

	s.db = newDB
	s.log.Info().Msg("Checkpoint recovery completed")
	return nil
}

// restoreFromBackup swaps the corrupt file for the newest verified
// snapshot, stashing the corrupt one for investigation.
func (s *DatabaseHealthService) restoreFromBackup() error {
	s.log.Warn().Msg("Attempting restore from backup")

	backup, err := s.backups.RestoreFromBackup(s.name)
	if err != nil {
		return fmt.Errorf("CRITICAL: %w", err)
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	corruptedPath := s.path + ".corrupted." + time.Now().Format("20060102_150405")
	if err := os.Rename(s.path, corruptedPath); err != nil {
		s.log.Error().Err(err).Msg("Failed to stash corrupted file")
	} else {
		s.log.Info().Str("path", corruptedPath).Msg("Corrupted file stashed")
	}

	if err := CopyFile(backup, s.path); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}

	newDB, err := database.New(database.Config{Path: s.path, Profile: s.profile, Name: s.name})
	if err != nil {
		return fmt.Errorf("failed to reopen database: %w", err)
	}
	s.db = newDB

	if err := s.checkIntegrity(); err != nil {
		return fmt.Errorf("restored backup is also corrupt")
	}

	s.log.Info().Str("backup", backup).Msg("Restored from backup")
	return nil
}

// DatabaseMetrics is a point-in-time picture of one database file.
type DatabaseMetrics struct {
	Name        string    `json:"name"`
	SizeMB      float64   `json:"size_mb"`
	WALSizeMB   float64   `json:"wal_size_mb"`
	IntegrityOK bool      `json:"integrity_ok"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Metrics reports file sizes and a fresh integrity result.
func (s *DatabaseHealthService) Metrics() (*DatabaseMetrics, error) {
	metrics := &DatabaseMetrics{Name: s.name, CheckedAt: time.Now().UTC()}

	if stats, err := s.db.GetStats(); err == nil {
		metrics.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
		metrics.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
	}

	metrics.IntegrityOK = s.checkIntegrity() == nil

	return metrics, nil
}

// CopyFile copies src to dst, used when swapping restored snapshots in.
func CopyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0644)
}
