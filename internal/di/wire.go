package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/factorlens/internal/config"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Initialize databases
// 2. Load universes (unless given)
// 3. Initialize repositories
// 4. Initialize services
func Wire(ctx context.Context, cfg *config.Config, universes *config.Universes, log zerolog.Logger) (*Container, error) {
	// Step 1: Initialize databases
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	// Step 2: Universes
	if universes == nil {
		universes, err = LoadUniverses(cfg, log)
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to load universes: %w", err)
		}
	}
	container.Universes = universes

	// Step 3: Initialize repositories
	if err := InitializeRepositories(container, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}

	// Step 4: Initialize services
	if err := InitializeServices(ctx, container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")
	return container, nil
}
