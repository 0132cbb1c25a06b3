package scheduler

import (
	"github.com/rs/zerolog"
)

// ExpiringCache drops expired entries.
type ExpiringCache interface {
	PurgeExpired() (int64, error)
}

// PurgeCacheJob removes expired cache entries.
type PurgeCacheJob struct {
	log   zerolog.Logger
	cache ExpiringCache
}

// NewPurgeCacheJob creates a new PurgeCacheJob
func NewPurgeCacheJob(cache ExpiringCache) *PurgeCacheJob {
	return &PurgeCacheJob{log: zerolog.Nop(), cache: cache}
}

// SetLogger sets the logger for the job
func (j *PurgeCacheJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *PurgeCacheJob) Name() string {
	return "purge_cache"
}

// Run executes the purge
func (j *PurgeCacheJob) Run() error {
	n, err := j.cache.PurgeExpired()
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info().Int64("removed", n).Msg("Purged expired cache entries")
	}
	return nil
}
