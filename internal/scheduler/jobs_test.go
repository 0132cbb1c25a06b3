package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/factorlens/internal/database"
	"github.com/aristath/factorlens/internal/modules/analysis"
)

type fakeRunner struct {
	results  map[string]*analysis.Result
	err      error
	deadline bool
}

func (f *fakeRunner) RunAll(ctx context.Context, names []string) (map[string]*analysis.Result, error) {
	_, f.deadline = ctx.Deadline()
	return f.results, f.err
}

func TestRunAnalysesJob(t *testing.T) {
	runner := &fakeRunner{results: map[string]*analysis.Result{"nuclear": {K: 3, CumulativeVariance: 0.82}}}
	job := NewRunAnalysesJob(runner, time.Minute)
	job.SetLogger(zerolog.Nop())

	assert.Equal(t, "run_analyses", job.Name())
	require.NoError(t, job.Run())
	assert.True(t, runner.deadline)

	runner.err = errors.New("small: too few assets")
	assert.EqualError(t, job.Run(), "small: too few assets")

	noLimit := NewRunAnalysesJob(&fakeRunner{}, 0)
	require.NoError(t, noLimit.Run())
}

type fakeCache struct {
	removed int64
	err     error
}

func (f *fakeCache) PurgeExpired() (int64, error) { return f.removed, f.err }

func TestPurgeCacheJob(t *testing.T) {
	job := NewPurgeCacheJob(&fakeCache{removed: 4})
	assert.Equal(t, "purge_cache", job.Name())
	assert.NoError(t, job.Run())

	failing := NewPurgeCacheJob(&fakeCache{err: errors.New("disk I/O error")})
	assert.Error(t, failing.Run())
}

func openDB(t *testing.T, name string) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, strings.ReplaceAll(t.Name(), "/", "_")),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCheckDatabasesJob(t *testing.T) {
	job := NewCheckDatabasesJob(openDB(t, "history"), nil, openDB(t, "cache"))
	assert.Equal(t, "check_databases", job.Name())
	assert.NoError(t, job.Run())
}

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := &CheckWALCheckpointsJob{
		log: zerolog.Nop(),
	}
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NoDatabases(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	job := NewCheckWALCheckpointsJob(nil, nil)
	job.SetLogger(log)

	err := job.Run()
	assert.NoError(t, err) // Should handle nil databases gracefully
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	job := NewCheckWALCheckpointsJob(openDB(t, "history"))
	assert.NoError(t, job.Run())
}
