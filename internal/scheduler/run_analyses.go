package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/factorlens/internal/modules/analysis"
)

// AnalysisRunner runs the analyses of several universes.
type AnalysisRunner interface {
	RunAll(ctx context.Context, names []string) (map[string]*analysis.Result, error)
}

// RunAnalysesJob refreshes the analysis of every configured universe.
type RunAnalysesJob struct {
	log     zerolog.Logger
	runner  AnalysisRunner
	timeout time.Duration
}

// NewRunAnalysesJob creates a new RunAnalysesJob. A zero timeout means no limit.
func NewRunAnalysesJob(runner AnalysisRunner, timeout time.Duration) *RunAnalysesJob {
	return &RunAnalysesJob{
		log:     zerolog.Nop(),
		runner:  runner,
		timeout: timeout,
	}
}

// SetLogger sets the logger for the job
func (j *RunAnalysesJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *RunAnalysesJob) Name() string {
	return "run_analyses"
}

// Run executes the analyses. Individual universe failures are logged and returned
// together once every universe has been attempted.
func (j *RunAnalysesJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	results, err := j.runner.RunAll(ctx, nil)
	for name, res := range results {
		j.log.Info().
			Str("universe", name).
			Int("k", res.K).
			Float64("cumulative_variance", res.CumulativeVariance).
			Int("warnings", len(res.Warnings)).
			Msg("Scheduled analysis completed")
	}
	if err != nil {
		j.log.Error().Err(err).Int("succeeded", len(results)).Msg("Some scheduled analyses failed")
		return err
	}
	return nil
}
