package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/factorlens/internal/modules/factors"
)

// RunRepository persists run summaries in the analysis_runs table.
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("component", "run_repository").Logger(),
	}
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// Save inserts or replaces a run record.
func (r *RunRepository) Save(ctx context.Context, rec RunRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_runs
		(id, universe, status, mode, variance_target, rolling_window, assets, periods,
		 components, cumulative_variance, start_date, end_date, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Universe, string(rec.Status), string(rec.Mode), rec.VarianceTarget, rec.RollingWindow,
		rec.Assets, rec.Periods, rec.Components, rec.CumulativeVariance,
		nullableUnix(rec.Start), nullableUnix(rec.End),
		sql.NullString{String: rec.Error, Valid: rec.Error != ""},
		rec.StartedAt.Unix(), rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	return nil
}

// List returns the most recent runs, newest first. An empty universe lists all universes.
func (r *RunRepository) List(ctx context.Context, universe string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if universe != "" {
		return r.query(ctx, `WHERE universe = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`, universe, limit)
	}
	return r.query(ctx, `ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
}

// Get returns one run by id, or sql.ErrNoRows.
func (r *RunRepository) Get(ctx context.Context, id string) (*RunRecord, error) {
	runs, err := r.query(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, sql.ErrNoRows
	}
	return &runs[0], nil
}

func (r *RunRepository) query(ctx context.Context, clause string, args ...interface{}) ([]RunRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, universe, status, mode, variance_target, rolling_window, assets, periods,
		       components, cumulative_variance, start_date, end_date, error, started_at, duration_ms
		FROM analysis_runs `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var status, mode string
		var start, end sql.NullInt64
		var errText sql.NullString
		var startedAt, durationMS int64
		err := rows.Scan(&rec.ID, &rec.Universe, &status, &mode, &rec.VarianceTarget, &rec.RollingWindow,
			&rec.Assets, &rec.Periods, &rec.Components, &rec.CumulativeVariance,
			&start, &end, &errText, &startedAt, &durationMS)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Status = RunStatus(status)
		rec.Mode = factors.Mode(mode)
		if start.Valid {
			t := time.Unix(start.Int64, 0).UTC()
			rec.Start = &t
		}
		if end.Valid {
			t := time.Unix(end.Int64, 0).UTC()
			rec.End = &t
		}
		rec.Error = errText.String
		rec.StartedAt = time.Unix(startedAt, 0).UTC()
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return out, nil
}
