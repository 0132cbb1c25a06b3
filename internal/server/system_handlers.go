package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/internal/database"
	"github.com/aristath/factorlens/internal/modules/analysis"
	"github.com/aristath/factorlens/internal/scheduler"
)

// SystemHandlers serves host, database and job information.
type SystemHandlers struct {
	log       zerolog.Logger
	cfg       *config.Config
	analysis  *analysis.Service
	scheduler *scheduler.Scheduler
	historyDB *database.DB
	cacheDB   *database.DB
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	cfg *config.Config,
	analysisService *analysis.Service,
	sched *scheduler.Scheduler,
	historyDB *database.DB,
	cacheDB *database.DB,
) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		cfg:       cfg,
		analysis:  analysisService,
		scheduler: sched,
		historyDB: historyDB,
		cacheDB:   cacheDB,
	}
}

// RegisterRoutes registers the system and job routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/status", h.HandleSystemStatus)
		r.Get("/database", h.HandleDatabaseStats)
		r.Get("/disk", h.HandleDiskUsage)
	})
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.HandleJobsStatus)
		r.Post("/{name}/run", h.HandleTriggerJob)
	})
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status     string                `json:"status"`
	CPUPercent float64               `json:"cpu_percent"`
	MemPercent float64               `json:"memory_percent"`
	Universes  []string              `json:"universes"`
	LastRuns   []analysis.RunRecord  `json:"last_runs"`
	Jobs       []scheduler.JobStatus `json:"jobs,omitempty"`
	LastCheck  string                `json:"last_check"`
}

// DBInfo describes one database file
type DBInfo struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	SizeMB float64 `json:"size_mb"`
}

// DatabaseStatsResponse is the body of GET /api/system/database
type DatabaseStatsResponse struct {
	Databases   []DBInfo `json:"databases"`
	TotalSizeMB float64  `json:"total_size_mb"`
	LastChecked string   `json:"last_checked"`
}

// DiskUsageResponse is the body of GET /api/system/disk
type DiskUsageResponse struct {
	DataDirMB   float64 `json:"data_dir_mb"`
	ArtifactsMB float64 `json:"artifacts_mb"`
	TotalMB     float64 `json:"total_mb"`
}

// HandleSystemStatus returns host load, universes and the latest run of each universe
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()
	universes := h.analysis.Universes()

	var lastRuns []analysis.RunRecord
	for _, name := range universes {
		runs, err := h.analysis.Runs(r.Context(), name, 1)
		if err != nil {
			h.log.Error().Err(err).Str("universe", name).Msg("Failed to load last run")
			http.Error(w, "Failed to load run history", http.StatusInternalServerError)
			return
		}
		lastRuns = append(lastRuns, runs...)
	}
	if lastRuns == nil {
		lastRuns = []analysis.RunRecord{}
	}

	response := SystemStatusResponse{
		Status:     "healthy",
		CPUPercent: cpuPercent,
		MemPercent: memPercent,
		Universes:  universes,
		LastRuns:   lastRuns,
		Jobs:       h.jobStatus(),
		LastCheck:  time.Now().Format(time.RFC3339),
	}
	for _, run := range lastRuns {
		if run.Status == analysis.RunFailed {
			response.Status = "degraded"
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleDatabaseStats returns database file sizes
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	databases := []DBInfo{}
	totalSizeMB := 0.0
	for _, db := range []*database.DB{h.historyDB, h.cacheDB} {
		if db == nil {
			continue
		}
		info, err := os.Stat(db.Path())
		if err != nil {
			continue // in-memory or not yet created
		}
		sizeMB := float64(info.Size()) / 1024 / 1024
		totalSizeMB += sizeMB
		databases = append(databases, DBInfo{Name: db.Name(), Path: db.Path(), SizeMB: sizeMB})
	}

	h.writeJSON(w, http.StatusOK, DatabaseStatsResponse{
		Databases:   databases,
		TotalSizeMB: totalSizeMB,
		LastChecked: time.Now().Format(time.RFC3339),
	})
}

// HandleDiskUsage returns disk usage of the data and artifact directories
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting disk usage")

	dataDirSize := h.getDirSize(h.cfg.DataDir)
	artifactsSize := 0.0
	if h.cfg.ArtifactsDir != "" {
		artifactsSize = h.getDirSize(h.cfg.ArtifactsDir)
	}

	h.writeJSON(w, http.StatusOK, DiskUsageResponse{
		DataDirMB:   dataDirSize,
		ArtifactsMB: artifactsSize,
		TotalMB:     dataDirSize + artifactsSize,
	})
}

// HandleJobsStatus returns the status of every scheduled job
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobStatus()
	if jobs == nil {
		jobs = []scheduler.JobStatus{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// HandleTriggerJob starts a registered job in the background
// POST /api/jobs/{name}/run
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		http.Error(w, "Scheduler not running", http.StatusServiceUnavailable)
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.scheduler.Trigger(name); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	h.log.Info().Str("job", name).Msg("Job triggered via API")
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "triggered",
		"job":     name,
		"message": "Job started in the background",
	})
}

func (h *SystemHandlers) jobStatus() []scheduler.JobStatus {
	if h.scheduler == nil {
		return nil
	}
	jobs := h.scheduler.Status()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats returns CPU and RAM usage percentages. CPU is sampled over 100ms to keep
// health checks fast.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
