package tuning

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const runColumns = "id, run_at, period_start, period_end, trades_evaluated, validation, accepted, config_id, report"

// Repository persists the tuning audit trail in the config database.
type Repository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewRepository(db *sql.DB, logger zerolog.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger.With().Str("component", "tuning_repository").Logger(),
	}
}

// Create inserts a tuning run record. Every run is recorded, including
// rejected and failed-validation ones.
func (r *Repository) Create(run *Run) error {
	if run.ID == "" {
		return fmt.Errorf("tuning run requires an id")
	}
	if run.RunAt.IsZero() {
		run.RunAt = time.Now().UTC()
	}

	var validation sql.NullString
	if run.Validation != nil {
		payload, err := json.Marshal(run.Validation)
		if err != nil {
			return fmt.Errorf("failed to encode validation result: %w", err)
		}
		validation = sql.NullString{String: string(payload), Valid: true}
	}

	var configID sql.NullInt64
	if run.ConfigID != nil {
		configID = sql.NullInt64{Int64: *run.ConfigID, Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO tuning_runs (id, run_at, period_start, period_end, trades_evaluated, validation, accepted, config_id, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.RunAt.Format(time.RFC3339), run.PeriodStart, run.PeriodEnd,
		run.TradesEvaluated, validation, run.Accepted, configID, run.Report,
	)
	if err != nil {
		return fmt.Errorf("failed to record tuning run: %w", err)
	}

	r.logger.Info().Str("run_id", run.ID).Bool("accepted", run.Accepted).Msg("Recorded tuning run")
	return nil
}

// Get returns a run by id, or nil when it does not exist.
func (r *Repository) Get(id string) (*Run, error) {
	row := r.db.QueryRow("SELECT "+runColumns+" FROM tuning_runs WHERE id = ?", id)
	return scanRun(row)
}

// Recent returns up to limit runs, newest first.
func (r *Repository) Recent(limit int) ([]Run, error) {
	rows, err := r.db.Query(
		"SELECT "+runColumns+" FROM tuning_runs ORDER BY run_at DESC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tuning runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Helper functions

func scanRun(row *sql.Row) (*Run, error) {
	var run Run
	var runAt string
	var validation sql.NullString
	var configID sql.NullInt64

	err := row.Scan(&run.ID, &runAt, &run.PeriodStart, &run.PeriodEnd,
		&run.TradesEvaluated, &validation, &run.Accepted, &configID, &run.Report)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan tuning run: %w", err)
	}

	if err := finishRun(&run, runAt, validation, configID); err != nil {
		return nil, err
	}
	return &run, nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var run Run
		var runAt string
		var validation sql.NullString
		var configID sql.NullInt64

		if err := rows.Scan(&run.ID, &runAt, &run.PeriodStart, &run.PeriodEnd,
			&run.TradesEvaluated, &validation, &run.Accepted, &configID, &run.Report); err != nil {
			return nil, fmt.Errorf("failed to scan tuning run: %w", err)
		}
		if err := finishRun(&run, runAt, validation, configID); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func finishRun(run *Run, runAt string, validation sql.NullString, configID sql.NullInt64) error {
	ts, err := time.Parse(time.RFC3339, runAt)
	if err != nil {
		return fmt.Errorf("failed to parse run_at: %w", err)
	}
	run.RunAt = ts

	if validation.Valid && validation.String != "" {
		var v ValidationResult
		if err := json.Unmarshal([]byte(validation.String), &v); err != nil {
			return fmt.Errorf("failed to decode validation result: %w", err)
		}
		run.Validation = &v
	}
	if configID.Valid {
		id := configID.Int64
		run.ConfigID = &id
	}
	return nil
}
