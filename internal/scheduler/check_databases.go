package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/factorlens/internal/database"
)

// CheckDatabasesJob verifies integrity of the SQLite databases
type CheckDatabasesJob struct {
	log       zerolog.Logger
	databases []*database.DB
}

// NewCheckDatabasesJob creates a new CheckDatabasesJob. Nil databases are skipped.
func NewCheckDatabasesJob(databases ...*database.DB) *CheckDatabasesJob {
	return &CheckDatabasesJob{
		log:       zerolog.Nop(),
		databases: databases,
	}
}

// SetLogger sets the logger for the job
func (j *CheckDatabasesJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *CheckDatabasesJob) Name() string {
	return "check_databases"
}

// Run executes the integrity check. The first corrupted database fails the job; history
// cannot be recovered automatically.
func (j *CheckDatabasesJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	for _, db := range j.databases {
		if db == nil {
			continue
		}
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().
				Err(err).
				Str("database", db.Name()).
				Msg("Database integrity check failed")
			return err
		}
		j.log.Debug().Str("database", db.Name()).Msg("Database integrity OK")
	}

	j.log.Info().Msg("All database integrity checks passed")
	return nil
}
