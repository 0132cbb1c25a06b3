/**
 * Package di provides dependency injection wiring for factorlens.
 *
 * The Container holds every long-lived dependency. It is created by Wire() and
 * shared by the HTTP server, the scheduler and the CLI commands.
 */
package di

import (
	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/internal/database"
	"github.com/aristath/factorlens/internal/metrics"
	"github.com/aristath/factorlens/internal/modules/analysis"
	"github.com/aristath/factorlens/internal/modules/artifacts"
	"github.com/aristath/factorlens/internal/modules/calculations"
	"github.com/aristath/factorlens/internal/modules/history"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: history.db (prices, run records) and cache.db (cached results)
 * - Repositories: price history, run history, result cache
 * - Services: analysis service with optional artifact publisher
 */
type Container struct {
	// Databases
	HistoryDB *database.DB
	CacheDB   *database.DB

	// Configuration
	Universes *config.Universes

	// Repositories
	HistoryRepo *history.Repository
	RunRepo     *analysis.RunRepository
	Cache       *calculations.Cache

	// Services
	Importer        *history.Importer
	Metrics         *metrics.Registry
	AnalysisService *analysis.Service
	Publisher       *artifacts.Publisher // nil when ARTIFACTS_DIR is empty
}

// Close closes every open database. Safe on a partially initialized container.
func (c *Container) Close() {
	if c.HistoryDB != nil {
		c.HistoryDB.Close()
	}
	if c.CacheDB != nil {
		c.CacheDB.Close()
	}
}
