package strategyconfig

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/atlasquant/signal-engine/internal/database"
)

var constraintsParamColumns = []string{
	"min_holding_threshold",
	"capital_tier1_threshold",
	"capital_tier1_factor",
	"capital_tier2_threshold",
	"capital_tier2_factor",
	"capital_tier3_threshold",
	"capital_tier3_factor",
	"capital_max_reduction",
	"min_trades_for_kelly",
	"kelly_confidence_threshold",
	"min_data_days",
	"pnl_horizon_short",
	"pnl_horizon_medium",
	"pnl_horizon_long",
	"risk_free_rate",
	"drawdown_window_days",
}

var constraintsSelectColumns = "id, start_date, end_date, created_at, created_by, notes, " +
	strings.Join(constraintsParamColumns, ", ")

func (sc *StrategyConstraints) paramPointers() []any {
	return []any{
		&sc.MinHoldingThreshold,
		&sc.CapitalTier1Threshold,
		&sc.CapitalTier1Factor,
		&sc.CapitalTier2Threshold,
		&sc.CapitalTier2Factor,
		&sc.CapitalTier3Threshold,
		&sc.CapitalTier3Factor,
		&sc.CapitalMaxReduction,
		&sc.MinTradesForKelly,
		&sc.KellyConfidenceThreshold,
		&sc.MinDataDays,
		&sc.PnLHorizonShort,
		&sc.PnLHorizonMedium,
		&sc.PnLHorizonLong,
		&sc.RiskFreeRate,
		&sc.DrawdownWindowDays,
	}
}

// ConstraintsStore reads and writes strategy_constraints versions in the
// config database.
type ConstraintsStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewConstraintsStore(db *sql.DB, logger zerolog.Logger) *ConstraintsStore {
	return &ConstraintsStore{
		db:     db,
		logger: logger.With().Str("component", "constraints_store").Logger(),
	}
}

// GetActive returns the constraints version in effect on asOf (YYYY-MM-DD).
// Returns ErrNoActiveConstraints when no version covers the date.
func (s *ConstraintsStore) GetActive(asOf string) (*StrategyConstraints, error) {
	query := fmt.Sprintf(`SELECT %s FROM strategy_constraints
		WHERE start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY start_date DESC, id DESC LIMIT 1`, constraintsSelectColumns)

	sc, err := scanConstraints(s.db.QueryRow(query, asOf, asOf))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNoActiveConstraints, asOf)
		}
		return nil, fmt.Errorf("failed to load active constraints for %s: %w", asOf, err)
	}

	return sc, nil
}

// CreateNewVersion validates sc, closes the open version and inserts sc as
// the new open-ended version in one transaction.
func (s *ConstraintsStore) CreateNewVersion(sc *StrategyConstraints, startDate, createdBy, notes string) (*StrategyConstraints, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE strategy_constraints
			SET end_date = date(?, '-1 day')
			WHERE end_date IS NULL AND start_date < ?`, startDate, startDate); err != nil {
			return fmt.Errorf("failed to close previous constraints version: %w", err)
		}

		insert := fmt.Sprintf(`INSERT INTO strategy_constraints (start_date, end_date, created_by, notes, %s)
			VALUES (%s)`,
			strings.Join(constraintsParamColumns, ", "),
			placeholders(4+len(constraintsParamColumns)))

		args := make([]any, 0, 4+len(constraintsParamColumns))
		args = append(args, startDate, nil, createdBy, notes)
		for _, p := range sc.paramPointers() {
			args = append(args, derefParam(p))
		}

		if _, err := tx.Exec(insert, args...); err != nil {
			return fmt.Errorf("failed to insert constraints version: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("start_date", startDate).
		Str("created_by", createdBy).
		Msg("Created new constraints version")

	return s.GetActive(startDate)
}

// Seed inserts the default constraints as the initial version when the
// table is empty. Safe to call on every startup.
func (s *ConstraintsStore) Seed() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM strategy_constraints`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count constraints versions: %w", err)
	}
	if count > 0 {
		return nil
	}

	sc, err := NewDefaultConstraints()
	if err != nil {
		return err
	}

	if _, err := s.CreateNewVersion(sc, SeedStartDate, "system", "Initial default constraints"); err != nil {
		return err
	}

	s.logger.Info().Str("start_date", SeedStartDate).Msg("Seeded default strategy constraints")
	return nil
}

// Helper functions

func scanConstraints(row *sql.Row) (*StrategyConstraints, error) {
	var sc StrategyConstraints
	var endDate, notes sql.NullString

	targets := make([]any, 0, 6+len(constraintsParamColumns))
	targets = append(targets, &sc.ID, &sc.StartDate, &endDate, &sc.CreatedAt, &sc.CreatedBy, &notes)
	targets = append(targets, sc.paramPointers()...)

	if err := row.Scan(targets...); err != nil {
		return nil, err
	}

	if endDate.Valid {
		end := endDate.String
		sc.EndDate = &end
	}
	sc.Notes = notes.String

	return &sc, nil
}
