package di

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/rs/zerolog"

	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/internal/metrics"
	"github.com/aristath/factorlens/internal/modules/analysis"
	"github.com/aristath/factorlens/internal/modules/artifacts"
	"github.com/aristath/factorlens/internal/modules/calculations"
	"github.com/aristath/factorlens/internal/modules/history"
)

// LoadUniverses reads the universe directory. A missing directory yields an empty registry
// so that commands which do not analyse anything still start.
func LoadUniverses(cfg *config.Config, log zerolog.Logger) (*config.Universes, error) {
	universes, err := config.LoadUniverses(cfg.UniverseDir)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("dir", cfg.UniverseDir).Msg("Universe directory not found, no universes configured")
		return config.NewUniverses()
	}
	if err != nil {
		return nil, err
	}
	log.Info().Strs("universes", universes.Names()).Msg("Universes loaded")
	return universes, nil
}

// InitializeRepositories creates the repositories on top of the opened databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.HistoryDB == nil || container.CacheDB == nil {
		return fmt.Errorf("databases not initialized")
	}
	container.HistoryRepo = history.NewRepository(container.HistoryDB.Conn(), log)
	container.RunRepo = analysis.NewRunRepository(container.HistoryDB.Conn(), log)
	container.Cache = calculations.NewCache(container.CacheDB.Conn(), log)
	return nil
}

// InitializeServices creates the analysis service and its publishers
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Importer = history.NewImporter(container.HistoryRepo, log)
	container.Metrics = metrics.New()

	svc := analysis.NewService(container.Universes, container.HistoryRepo, container.RunRepo, log)
	svc.SetCache(container.Cache, cfg.CacheTTL)
	svc.SetMetrics(container.Metrics)
	svc.SetMaxParallel(cfg.MaxParallelRuns)
	container.AnalysisService = svc

	if cfg.ArtifactsDir == "" {
		if cfg.S3.Enabled() {
			log.Warn().Msg("S3 upload configured without ARTIFACTS_DIR, uploads disabled")
		}
		return nil
	}

	publisher := artifacts.NewPublisher(cfg.ArtifactsDir, log)
	if cfg.S3.Enabled() {
		client, err := artifacts.NewS3Client(ctx, cfg.S3, log)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
		publisher.SetUploader(client, cfg.S3.Prefix)
		log.Info().Str("bucket", cfg.S3.Bucket).Str("prefix", cfg.S3.Prefix).Msg("Artifact upload enabled")
	}
	svc.AddPublisher(publisher)
	container.Publisher = publisher
	return nil
}
