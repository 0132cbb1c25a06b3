// Package handlers provides HTTP handlers for analysis runs and their results.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/factorlens/internal/modules/analysis"
	"github.com/aristath/factorlens/internal/modules/factors"
)

// Handler handles analysis HTTP requests
type Handler struct {
	service *analysis.Service
	log     zerolog.Logger
}

// NewHandler creates a new analysis handler
func NewHandler(service *analysis.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "analysis").Logger(),
	}
}

// runRequest overrides universe settings for a single run. Omitted fields keep the
// universe configuration.
type runRequest struct {
	Mode              *string  `json:"mode"`
	VarianceTarget    *float64 `json:"variance_target"`
	RollingWindow     *int     `json:"rolling_window"`
	CorrelationWindow *int     `json:"correlation_window"`
	ResidualUnits     *string  `json:"residual_units"`
	LookbackDays      *int     `json:"lookback_days"`
}

func (req runRequest) apply(cfg *analysis.Config) {
	if req.Mode != nil {
		cfg.Mode = factors.Mode(*req.Mode)
	}
	if req.VarianceTarget != nil {
		cfg.VarianceTarget = *req.VarianceTarget
	}
	if req.RollingWindow != nil {
		cfg.RollingWindow = *req.RollingWindow
	}
	if req.CorrelationWindow != nil {
		cfg.CorrelationWindow = *req.CorrelationWindow
	}
	if req.ResidualUnits != nil {
		cfg.ResidualUnits = factors.ResidualUnits(*req.ResidualUnits)
	}
	if req.LookbackDays != nil {
		cfg.LookbackDays = *req.LookbackDays
	}
}

// HandleListUniverses handles GET /api/analysis/universes
func (h *Handler) HandleListUniverses(w http.ResponseWriter, r *http.Request) {
	names := h.service.Universes()
	universes := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		u, err := h.service.Universe(name)
		if err != nil {
			continue
		}
		groups := make(map[string][]string, len(u.Groups))
		for _, g := range u.Groups {
			groups[g.Name] = g.Symbols
		}
		universes = append(universes, map[string]interface{}{
			"name":    u.Name,
			"symbols": u.Symbols(),
			"groups":  groups,
			"pairs":   u.Pairs,
		})
	}
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"universes": universes,
		"count":     len(universes),
	}))
}

// HandleRun handles POST /api/analysis/{universe}/run
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "universe")
	u, err := h.service.Universe(name)
	if err != nil {
		h.writeError(w, err, "Unknown universe")
		return
	}
	cfg, err := analysis.ConfigFromUniverse(u)
	if err != nil {
		h.writeError(w, err, "Invalid universe configuration")
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.apply(&cfg)

	res, err := h.service.RunWithConfig(r.Context(), name, cfg)
	if err != nil {
		h.writeError(w, err, "Analysis failed")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run_id":              res.RunID,
		"universe":            res.Universe,
		"config":              res.Config,
		"returns":             res.Returns,
		"k":                   res.K,
		"cumulative_variance": res.CumulativeVariance,
		"latest":              res.Latest,
		"pairs":               res.Pairs,
		"timings_ms":          res.Timings,
		"warnings":            res.Warnings,
	}))
}

// HandleGetComponents handles GET /api/analysis/{universe}/components
func (h *Handler) HandleGetComponents(w http.ResponseWriter, r *http.Request) {
	res, ok := h.latest(w, r)
	if !ok {
		return
	}

	cum := res.Components.Cumulative()
	comps := res.ReportedComponents()
	out := make([]map[string]interface{}, 0, len(comps))
	for i, c := range comps {
		loadings := make(map[string]float64, len(res.Components.Assets))
		for j, asset := range res.Components.Assets {
			loadings[asset] = c.Loadings[j]
		}
		out = append(out, map[string]interface{}{
			"component":           c.Label(),
			"eigenvalue":          c.Eigenvalue,
			"variance_ratio":      c.VarianceRatio,
			"cumulative_variance": cum[i],
			"retained":            c.Number <= res.K,
			"loadings":            loadings,
		})
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run_id":              res.RunID,
		"mode":                res.Components.Preprocessing.Mode,
		"assets":              res.Components.Assets,
		"k":                   res.K,
		"cumulative_variance": res.CumulativeVariance,
		"components":          out,
	}))
}

// HandleGetResiduals handles GET /api/analysis/{universe}/residuals
func (h *Handler) HandleGetResiduals(w http.ResponseWriter, r *http.Request) {
	res, ok := h.latest(w, r)
	if !ok {
		return
	}

	table := res.Residuals
	if asset := r.URL.Query().Get("asset"); asset != "" {
		values, found := table.Column(asset)
		if !found {
			http.Error(w, "Unknown asset", http.StatusNotFound)
			return
		}
		h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
			"run_id": res.RunID,
			"units":  res.ResidualUnits,
			"asset":  asset,
			"dates":  table.Dates,
			"values": values,
		}))
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run_id":    res.RunID,
		"units":     res.ResidualUnits,
		"residuals": table,
	}))
}

// HandleGetScreen handles GET /api/analysis/{universe}/screen
func (h *Handler) HandleGetScreen(w http.ResponseWriter, r *http.Request) {
	res, ok := h.latest(w, r)
	if !ok {
		return
	}

	entries := res.Latest.Descending()
	switch order := r.URL.Query().Get("order"); order {
	case "", "desc":
	case "asc":
		entries = res.Latest.Ascending()
	default:
		http.Error(w, "order must be asc or desc", http.StatusBadRequest)
		return
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(entries) {
			entries = entries[:limit]
		}
	}

	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run_id":  res.RunID,
		"date":    res.Latest.Date.Format("2006-01-02"),
		"window":  res.Latest.Window,
		"defined": res.Latest.Defined(),
		"entries": entries,
	}))
}

// HandleGetCorrelations handles GET /api/analysis/{universe}/correlations
func (h *Handler) HandleGetCorrelations(w http.ResponseWriter, r *http.Request) {
	res, ok := h.latest(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"run_id": res.RunID,
		"matrix": res.Correlation,
		"pairs":  res.Pairs,
	}))
}

// HandleListRuns handles GET /api/analysis/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	runs, err := h.service.Runs(r.Context(), r.URL.Query().Get("universe"), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []analysis.RunRecord{}
	}
	h.writeJSON(w, http.StatusOK, envelope(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	}))
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) (*analysis.Result, bool) {
	res, err := h.service.Latest(r.Context(), chi.URLParam(r, "universe"))
	if err != nil {
		h.writeError(w, err, "Analysis failed")
		return nil, false
	}
	return res, true
}

// writeError maps domain errors to status codes. Data and configuration problems are the
// caller's to fix, everything else is logged.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case analysis.IsNotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	case analysis.IsDataError(err):
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  msg,
			"detail": err.Error(),
		})
	default:
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
