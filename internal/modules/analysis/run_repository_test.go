package analysis

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/factorlens/internal/database"
	"github.com/aristath/factorlens/internal/modules/factors"
)

func TestRunRepository(t *testing.T) {
	db := openDB(t, "history", database.ProfileStandard)
	repo := NewRunRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	start := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	base := time.Date(2024, 1, 4, 22, 30, 0, 0, time.UTC)

	ok := RunRecord{
		ID: "run-1", Universe: "nuclear", Status: RunSucceeded, Mode: factors.ModeDemeaned,
		VarianceTarget: 0.8, RollingWindow: 60, Assets: 8, Periods: 250, Components: 3,
		CumulativeVariance: 0.83, Start: &start, End: &end, StartedAt: base, Duration: 1500 * time.Millisecond,
	}
	failed := RunRecord{
		ID: "run-2", Universe: "nuclear", Status: RunFailed, Mode: factors.ModeStandardized,
		VarianceTarget: 0.9, RollingWindow: 20, Error: "too few assets", StartedAt: base.Add(time.Hour),
	}
	other := RunRecord{
		ID: "run-3", Universe: "utilities", Status: RunSucceeded, Mode: factors.ModeDemeaned,
		VarianceTarget: 0.8, RollingWindow: 60, StartedAt: base.Add(2 * time.Hour),
	}
	for _, rec := range []RunRecord{ok, failed, other} {
		require.NoError(t, repo.Save(ctx, rec))
	}

	runs, err := repo.List(ctx, "nuclear", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "too few assets", runs[0].Error)
	assert.Nil(t, runs[0].Start)
	assert.Equal(t, ok, runs[1])

	all, err := repo.List(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "run-3", all[0].ID)

	limited, err := repo.List(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	got, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Components)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
