package seld

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gmselect/selection-core/pkg/config"
	"github.com/gmselect/selection-core/pkg/logger"
	"github.com/gmselect/selection-core/pkg/models"
)

// HTTPServer serves the selection API.
type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	Executor *RunExecutor
}

// NewHTTPServer wires the routes.
func NewHTTPServer(store *RunStore, executor *RunExecutor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/selections", s.handleSelections)
	s.mux.HandleFunc("/v1/selections/", s.handleSelectionByID)

	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *HTTPServer) handleSelections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateSelection(w, r)
	case http.MethodGet:
		s.handleListSelections(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSelectionByID routes /v1/selections/{id}, {id}:stop and
// {id}/metrics.
func (s *HTTPServer) handleSelectionByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/selections/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	if strings.HasSuffix(path, ":stop") {
		runID := strings.TrimSuffix(path, ":stop")
		if r.Method == http.MethodPost {
			s.handleStopSelection(w, runID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if strings.HasSuffix(path, "/metrics") {
		runID := strings.TrimSuffix(path, "/metrics")
		if r.Method == http.MethodGet {
			s.handleSelectionMetrics(w, runID)
		} else {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method == http.MethodGet {
		s.handleGetSelection(w, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateSelection handles POST /v1/selections: the run is registered
// from the YAML config payload and started immediately.
func (s *HTTPServer) handleCreateSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID      string `json:"run_id,omitempty"`
		ConfigYAML string `json:"config_yaml"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ConfigYAML == "" {
		s.writeError(w, http.StatusBadRequest, "config_yaml is required")
		return
	}

	cfg, err := config.ParseYAMLString(req.ConfigYAML)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.store.Create(req.RunID, cfg)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") {
			s.writeError(w, http.StatusConflict, err.Error())
		} else {
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	started, err := s.Executor.Start(rec.Run.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("selection run created", "run_id", rec.Run.ID)
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"run": started.Run,
	})
}

// handleListSelections handles GET /v1/selections with pagination and an
// optional status filter.
func (s *HTTPServer) handleListSelections(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}
	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	status := models.RunStatus(strings.ToLower(r.URL.Query().Get("status")))

	recs := s.store.List(limit, offset, status)
	runs := make([]*models.SelectionRun, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, rec.Run)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": runs,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(runs),
		},
	})
}

// handleGetSelection handles GET /v1/selections/{id}.
func (s *HTTPServer) handleGetSelection(w http.ResponseWriter, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	resp := map[string]any{"run": rec.Run}
	if rec.Summary != nil {
		resp["summary"] = rec.Summary
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleStopSelection handles POST /v1/selections/{id}:stop.
func (s *HTTPServer) handleStopSelection(w http.ResponseWriter, runID string) {
	updated, err := s.Executor.Stop(runID)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, ErrRunIDMissing):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("selection run stopped", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": updated.Run,
	})
}

// handleSelectionMetrics handles GET /v1/selections/{id}/metrics.
func (s *HTTPServer) handleSelectionMetrics(w http.ResponseWriter, runID string) {
	if _, ok := s.store.Get(runID); !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	collector, ok := s.store.GetCollector(runID)
	if !ok {
		s.writeError(w, http.StatusPreconditionFailed, "metrics not available")
		return
	}

	points := make([]models.MetricPoint, 0)
	for _, name := range collector.Names() {
		points = append(points, collector.All(name)...)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id":       runID,
		"elapsed_ms":   collector.Elapsed().Milliseconds(),
		"aggregations": collector.Summary(),
		"points":       points,
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
