package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/internal/scheduler"
)

// Job schedules, cron format with seconds.
const (
	purgeCacheSchedule    = "0 15 * * * *"   // hourly
	walCheckpointSchedule = "0 */30 * * * *" // every 30 minutes
	databaseCheckSchedule = "0 0 4 * * 0"    // Sundays 04:00
	scheduledRunTimeout   = 30 * time.Minute
)

// RegisterJobs creates the scheduler with every background job registered. The analysis
// job is skipped when ANALYSIS_SCHEDULE is empty.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.New(log)

	if cfg.AnalysisSchedule != "" {
		runAnalyses := scheduler.NewRunAnalysesJob(container.AnalysisService, scheduledRunTimeout)
		runAnalyses.SetLogger(log)
		if err := sched.AddJob(cfg.AnalysisSchedule, runAnalyses); err != nil {
			return nil, fmt.Errorf("failed to register analysis job: %w", err)
		}
	}

	purgeCache := scheduler.NewPurgeCacheJob(container.Cache)
	purgeCache.SetLogger(log)
	if err := sched.AddJob(purgeCacheSchedule, purgeCache); err != nil {
		return nil, fmt.Errorf("failed to register cache purge job: %w", err)
	}

	walCheck := scheduler.NewCheckWALCheckpointsJob(container.HistoryDB, container.CacheDB)
	walCheck.SetLogger(log)
	if err := sched.AddJob(walCheckpointSchedule, walCheck); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	dbCheck := scheduler.NewCheckDatabasesJob(container.HistoryDB, container.CacheDB)
	dbCheck.SetLogger(log)
	if err := sched.AddJob(databaseCheckSchedule, dbCheck); err != nil {
		return nil, fmt.Errorf("failed to register database check job: %w", err)
	}

	return sched, nil
}
