package analysis

import (
	"fmt"
	"time"

	"github.com/aristath/factorlens/internal/metrics"
	"github.com/aristath/factorlens/internal/modules/correlation"
	"github.com/aristath/factorlens/internal/modules/factors"
	"github.com/aristath/factorlens/internal/modules/returns"
)

// Pipeline stages, in execution order.
const (
	StageBuild       = "build_returns"
	StageDecompose   = "decompose"
	StageSelect      = "select_components"
	StageReconstruct = "reconstruct"
	StageScreen      = "screen"
	StageCorrelate   = "correlate"
)

// stages times each step into the result and the metrics registry.
type stages struct {
	metrics *metrics.Registry
	timings map[string]float64
}

func (s *stages) run(name string, fn func() error) error {
	timer := s.metrics.StartStage(name)
	err := fn()
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.timings[name] = float64(timer.Stop(result)) / float64(time.Millisecond)
	return err
}

// Analyze runs the full pipeline over the given prices. It performs no I/O; the caller
// fills in the run id, universe groups and start time.
func Analyze(universe string, assets []returns.AssetPrices, cfg Config, m *metrics.Registry) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res := &Result{
		Universe:      universe,
		Config:        cfg,
		Timings:       make(map[string]float64),
		ResidualUnits: cfg.ResidualUnits,
	}
	st := &stages{metrics: m, timings: res.Timings}

	var rm *returns.Matrix
	err := st.run(StageBuild, func() (err error) {
		rm, err = returns.Build(assets, cfg.ReturnsOptions())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build returns: %w", err)
	}
	res.Returns = ReturnsSummary{
		Start:       rm.Start(),
		End:         rm.End(),
		Periods:     rm.Rows(),
		Assets:      rm.Assets(),
		Dropped:     rm.Dropped(),
		DroppedRows: rm.DroppedRows(),
	}
	res.LogReturns = tableFromDense(rm.Dates(), rm.Assets(), rm.Dense())
	for _, d := range rm.Dropped() {
		res.Warnings = append(res.Warnings, fmt.Sprintf("dropped %s: %s", d.Symbol, d.Reason))
	}
	if n := rm.DroppedRows(); n > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("dropped %d return rows with missing or non-finite values", n))
	}

	err = st.run(StageDecompose, func() (err error) {
		res.Components, err = factors.Decompose(rm, cfg.Mode)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decompose returns: %w", err)
	}

	err = st.run(StageSelect, func() (err error) {
		res.K, err = factors.SelectComponents(res.Components, cfg.VarianceTarget)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select components: %w", err)
	}
	res.CumulativeVariance = res.Components.Cumulative()[res.K-1]
	m.RecordSelection(universe, res.K, res.CumulativeVariance)

	var rec *factors.Reconstruction
	err = st.run(StageReconstruct, func() error {
		var err error
		if rec, err = factors.Reconstruct(rm, res.Components, res.K); err != nil {
			return err
		}
		residuals, err := rec.ResidualsIn(cfg.ResidualUnits)
		if err != nil {
			return err
		}
		res.Residuals = tableFromDense(residuals.Dates, residuals.Assets, residuals.Dense())
		res.Scores = tableFromDense(rec.Scores.Dates, rec.Scores.Components, rec.Scores.Dense())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct returns: %w", err)
	}

	// The z-score does not depend on per-asset scaling, so the screen runs on the
	// preprocessed residuals whatever units are reported.
	err = st.run(StageScreen, func() (err error) {
		if res.Screen, err = factors.RollingScreen(rec.Residuals, cfg.RollingWindow); err != nil {
			return err
		}
		res.Latest, err = res.Screen.Latest()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to screen residuals: %w", err)
	}
	if n := len(res.Screen.Warnings); n > 0 {
		m.RecordUndefinedScores(universe, n)
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d residual z-scores undefined (zero rolling variance)", n))
	}

	_ = st.run(StageCorrelate, func() error {
		cm := correlation.NewMatrix(rm)
		res.Correlation = CorrelationTable{Assets: cm.Assets, Values: cm.Rows(), Top: cm.TopPairs(10)}
		res.Pairs = correlation.ComputePairs(rm, cfg.CorrelationPairs, cfg.CorrelationWindow)
		return nil
	})
	for _, p := range res.Pairs {
		if p.Err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("correlation %s: %s", p.Pair, p.Error))
		}
	}

	return res, nil
}
