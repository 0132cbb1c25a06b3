package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/internal/metrics"
	"github.com/aristath/factorlens/internal/modules/calculations"
	"github.com/aristath/factorlens/internal/modules/returns"
)

// PriceSource supplies closing prices. Symbols without data come back with empty series.
type PriceSource interface {
	LoadPrices(ctx context.Context, symbols []string, from, to time.Time) ([]returns.AssetPrices, error)
}

// ResultCache stores finished results between requests.
type ResultCache interface {
	Get(key string, dest interface{}) (bool, error)
	Set(key string, value interface{}, ttl time.Duration) error
	DeleteByPrefix(prefix string) error
}

// Publisher receives every successful result, e.g. to write artifacts.
type Publisher interface {
	Publish(ctx context.Context, res *Result) error
}

// RunStore persists run summaries.
type RunStore interface {
	Save(ctx context.Context, rec RunRecord) error
	List(ctx context.Context, universe string, limit int) ([]RunRecord, error)
}

// Service runs analyses for the configured universes.
type Service struct {
	universes   *config.Universes
	prices      PriceSource
	runs        RunStore
	cache       ResultCache
	cacheTTL    time.Duration
	metrics     *metrics.Registry
	publishers  []Publisher
	maxParallel int
	log         zerolog.Logger
	now         func() time.Time
}

// NewService creates a new analysis service. runs may be nil to skip run history.
func NewService(universes *config.Universes, prices PriceSource, runs RunStore, log zerolog.Logger) *Service {
	return &Service{
		universes:   universes,
		prices:      prices,
		runs:        runs,
		maxParallel: 1,
		log:         log.With().Str("service", "analysis").Logger(),
		now:         time.Now,
	}
}

// SetCache enables result caching for ttl.
func (s *Service) SetCache(cache ResultCache, ttl time.Duration) {
	s.cache = cache
	s.cacheTTL = ttl
}

// SetMetrics enables Prometheus instrumentation.
func (s *Service) SetMetrics(m *metrics.Registry) {
	s.metrics = m
}

// AddPublisher registers a publisher called after each successful run.
func (s *Service) AddPublisher(p Publisher) {
	s.publishers = append(s.publishers, p)
}

// SetMaxParallel bounds the number of concurrent runs in RunAll.
func (s *Service) SetMaxParallel(n int) {
	if n < 1 {
		n = 1
	}
	s.maxParallel = n
}

// Universes returns the configured universe names.
func (s *Service) Universes() []string {
	return s.universes.Names()
}

// Universe returns the named universe.
func (s *Service) Universe(name string) (*config.Universe, error) {
	return s.universes.Get(name)
}

// Run analyses the named universe with its configured settings. The result cache is
// bypassed but refreshed.
func (s *Service) Run(ctx context.Context, name string) (*Result, error) {
	u, err := s.universes.Get(name)
	if err != nil {
		return nil, err
	}
	cfg, err := ConfigFromUniverse(u)
	if err != nil {
		return nil, err
	}
	return s.RunWithConfig(ctx, name, cfg)
}

// RunWithConfig analyses the named universe with explicit settings.
func (s *Service) RunWithConfig(ctx context.Context, name string, cfg Config) (*Result, error) {
	u, err := s.universes.Get(name)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	started := s.now()
	log := s.log.With().Str("universe", u.Name).Str("run_id", runID).Logger()
	log.Info().
		Str("mode", string(cfg.Mode)).
		Float64("variance_target", cfg.VarianceTarget).
		Int("rolling_window", cfg.RollingWindow).
		Int("symbols", len(u.Symbols())).
		Msg("Starting analysis run")

	s.metrics.RunStarted()
	rec := RunRecord{
		ID:             runID,
		Universe:       u.Name,
		Mode:           cfg.Mode,
		VarianceTarget: cfg.VarianceTarget,
		RollingWindow:  cfg.RollingWindow,
		StartedAt:      started,
	}

	res, err := s.execute(ctx, u, cfg)
	rec.Duration = s.now().Sub(started)
	if err != nil {
		rec.Status = RunFailed
		rec.Error = err.Error()
		s.metrics.RunFinished(u.Name, string(RunFailed))
		s.saveRun(ctx, rec)
		log.Error().Err(err).Dur("duration", rec.Duration).Msg("Analysis run failed")
		return nil, err
	}

	res.RunID = runID
	res.StartedAt = started
	res.Groups = make(map[string]string)
	for _, symbol := range res.Returns.Assets {
		if g := u.GroupOf(symbol); g != "" {
			res.Groups[symbol] = g
		}
	}

	rec.Status = RunSucceeded
	rec.Assets = len(res.Returns.Assets)
	rec.Periods = res.Returns.Periods
	rec.Components = res.K
	rec.CumulativeVariance = res.CumulativeVariance
	rec.Start, rec.End = &res.Returns.Start, &res.Returns.End
	s.metrics.RunFinished(u.Name, string(RunSucceeded))
	s.saveRun(ctx, rec)

	for _, p := range s.publishers {
		if err := p.Publish(ctx, res); err != nil {
			log.Warn().Err(err).Msg("Failed to publish results")
			res.Warnings = append(res.Warnings, fmt.Sprintf("publish failed: %v", err))
		}
	}
	s.storeCached(u.Name, cfg, res)

	log.Info().
		Int("assets", rec.Assets).
		Int("periods", rec.Periods).
		Int("k", res.K).
		Float64("cumulative_variance", res.CumulativeVariance).
		Int("warnings", len(res.Warnings)).
		Dur("duration", rec.Duration).
		Msg("Analysis run completed")
	return res, nil
}

func (s *Service) execute(ctx context.Context, u *config.Universe, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var from time.Time
	if cfg.LookbackDays > 0 {
		from = s.now().AddDate(0, 0, -cfg.LookbackDays)
	}
	assets, err := s.prices.LoadPrices(ctx, u.Symbols(), from, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load prices: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Analyze(u.Name, assets, cfg, s.metrics)
}

func (s *Service) saveRun(ctx context.Context, rec RunRecord) {
	if s.runs == nil {
		return
	}
	// A cancelled request must not lose the run record.
	if err := s.runs.Save(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Error().Err(err).Str("run_id", rec.ID).Msg("Failed to save run record")
	}
}

func cacheKey(universe string, cfg Config) (string, error) {
	fp, err := calculations.Fingerprint(cfg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("analysis:%s:%s", universe, fp), nil
}

func (s *Service) storeCached(universe string, cfg Config, res *Result) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	key, err := cacheKey(universe, cfg)
	if err == nil {
		err = s.cache.Set(key, res, s.cacheTTL)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("universe", universe).Msg("Failed to cache result")
	}
}

// Latest returns the cached result of the named universe, running the analysis if there
// is none.
func (s *Service) Latest(ctx context.Context, name string) (*Result, error) {
	u, err := s.universes.Get(name)
	if err != nil {
		return nil, err
	}
	cfg, err := ConfigFromUniverse(u)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		key, err := cacheKey(u.Name, cfg)
		if err != nil {
			return nil, err
		}
		var res Result
		hit, err := s.cache.Get(key, &res)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to read cached result")
		}
		s.metrics.RecordCache(hit)
		if hit {
			return &res, nil
		}
	}
	return s.RunWithConfig(ctx, name, cfg)
}

// Invalidate drops cached results of universe, or of every universe when it is empty.
func (s *Service) Invalidate(universe string) error {
	if s.cache == nil {
		return nil
	}
	prefix := "analysis:"
	if universe != "" {
		prefix += universe + ":"
	}
	return s.cache.DeleteByPrefix(prefix)
}

// RunAll analyses every named universe (all universes when names is empty), at most
// SetMaxParallel at a time. A failing universe does not stop the others; its error is
// part of the joined error returned alongside the successful results.
func (s *Service) RunAll(ctx context.Context, names []string) (map[string]*Result, error) {
	if len(names) == 0 {
		names = s.universes.Names()
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*Result, len(names))
		errs    []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallel)
	for _, name := range names {
		name := name
		g.Go(func() error {
			res, err := s.Run(gctx, name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return nil
			}
			results[name] = res
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// Runs lists recent run records.
func (s *Service) Runs(ctx context.Context, universe string, limit int) ([]RunRecord, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.List(ctx, universe, limit)
}
