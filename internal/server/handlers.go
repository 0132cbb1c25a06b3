package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/factorlens/internal/database"
)

// handleHealth reports database reachability and host load. It answers 503 when a
// database cannot be reached.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	databases := make(map[string]string)
	for _, db := range []*database.DB{s.historyDB, s.cacheDB} {
		if db == nil {
			continue
		}
		if err := db.QuickCheck(ctx); err != nil {
			s.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			databases[db.Name()] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		databases[db.Name()] = "ok"
	}

	cpuPercent, memPercent := s.systemHandlers.getSystemStats()
	response := map[string]interface{}{
		"status":         status,
		"service":        "factorlens",
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"databases":      databases,
		"cpu_percent":    cpuPercent,
		"memory_percent": memPercent,
	}

	s.writeJSON(w, code, response)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
