package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RunLifecycle(t *testing.T) {
	r := New()

	r.RunStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ActiveRuns))

	r.RecordSelection("nuclear", 3, 0.84)
	r.RecordUndefinedScores("nuclear", 2)
	r.RecordUndefinedScores("nuclear", 0)
	r.RunFinished("nuclear", "succeeded")

	assert.Equal(t, 0.0, testutil.ToFloat64(r.ActiveRuns))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Runs.WithLabelValues("nuclear", "succeeded")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.ComponentsRetained.WithLabelValues("nuclear")))
	assert.Equal(t, 0.84, testutil.ToFloat64(r.CumulativeVariance.WithLabelValues("nuclear")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.UndefinedScores.WithLabelValues("nuclear")))
}

func TestRegistry_CacheAndHTTP(t *testing.T) {
	r := New()
	r.RecordCache(true)
	r.RecordCache(false)
	r.RecordCache(false)
	r.RecordHTTP("/api/analysis/{universe}/screen", http.MethodGet, 200, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.CacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.CacheRequests.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.HTTPRequests.WithLabelValues("/api/analysis/{universe}/screen", "GET", "200")))
}

func TestRegistry_StageTimer(t *testing.T) {
	r := New()
	d := r.StartStage("decompose").Stop("ok")
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.Equal(t, 1, testutil.CollectAndCount(r.StageDuration))
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.RunStarted()
		r.RunFinished("u", "failed")
		r.RecordCache(true)
		r.RecordSelection("u", 1, 0.5)
		r.RecordUndefinedScores("u", 1)
		r.RecordHTTP("/", "GET", 200, time.Millisecond)
		r.StartStage("build").Stop("ok")
	})
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.RunStarted()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "factorlens_active_runs 1")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
