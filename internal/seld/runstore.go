// Package seld is the selection daemon: it tracks selection runs, executes
// the target-simulate-select pipeline asynchronously and serves the HTTP API.
package seld

import (
	"fmt"
	"sync"
	"time"

	"github.com/gmselect/selection-core/internal/metrics"
	"github.com/gmselect/selection-core/pkg/config"
	"github.com/gmselect/selection-core/pkg/models"
	"github.com/gmselect/selection-core/pkg/utils"
)

// RunRecord is the in-memory state of one selection run.
type RunRecord struct {
	Run       *models.SelectionRun
	Config    *config.Config
	Summary   *models.SelectionSummary
	Collector *metrics.Collector
}

// RunStore holds selection runs, keyed by run ID.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]*RunRecord
	order []string
}

// NewRunStore creates an empty store.
func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

// Create registers a new pending run. An empty runID gets a generated one.
func (s *RunStore) Create(runID string, cfg *config.Config) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("run already exists: %s", runID)
	}

	rec := &RunRecord{
		Run: &models.SelectionRun{
			ID:        runID,
			Status:    models.RunStatusPending,
			CreatedAt: time.Now().UTC(),
		},
		Config: cfg,
	}
	s.runs[runID] = rec
	s.order = append(s.order, runID)
	return rec, nil
}

// Get returns the record for a run ID.
func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	return rec, ok
}

// List returns runs in creation order, optionally filtered by status, with
// offset/limit pagination.
func (s *RunStore) List(limit, offset int, status models.RunStatus) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	out := make([]*RunRecord, 0, utils.Min(limit, len(s.order)))
	skipped := 0
	for _, id := range s.order {
		rec := s.runs[id]
		if status != "" && rec.Run.Status != status {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// SetStatus transitions a run, stamping start and end times.
func (s *RunStore) SetStatus(runID string, status models.RunStatus, errMsg string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	rec.Run.Status = status
	if errMsg != "" {
		rec.Run.Error = errMsg
	}

	now := time.Now().UTC()
	switch status {
	case models.RunStatusRunning:
		if rec.Run.StartedAt.IsZero() {
			rec.Run.StartedAt = now
		}
	case models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCancelled:
		rec.Run.EndedAt = now
	}

	return rec, nil
}

// SetSummary attaches the selection result to a run.
func (s *RunStore) SetSummary(runID string, summary *models.SelectionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	rec.Summary = summary
	return nil
}

// SetCollector attaches the run's metrics collector.
func (s *RunStore) SetCollector(runID string, c *metrics.Collector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	rec.Collector = c
	return nil
}

// GetCollector returns the run's metrics collector, if any.
func (s *RunStore) GetCollector(runID string) (*metrics.Collector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[runID]
	if !ok || rec.Collector == nil {
		return nil, false
	}
	return rec.Collector, true
}
