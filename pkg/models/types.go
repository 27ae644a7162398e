package models

import (
	"time"
)

// RunStatus represents the status of a selection run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// SelectionRun represents one record-selection run
type SelectionRun struct {
	ID        string    `json:"id"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// PassError holds the achieved error metrics after one optimization pass
type PassError struct {
	Pass          int     `json:"pass"`
	MaxMeanErrPct float64 `json:"max_mean_err_pct"`
	MaxStdErrPct  float64 `json:"max_std_err_pct"`
}

// SelectionSummary is the immutable output of a completed selection run
type SelectionSummary struct {
	Periods       []float64   `json:"periods"`
	TargetMeanLn  []float64   `json:"target_mean_ln"`
	TargetStdLn   []float64   `json:"target_std_ln"`
	IMLevel       float64     `json:"im_level,omitempty"`
	RecordIDs     []string    `json:"record_ids"`
	RecordIndices []int       `json:"record_indices"`
	ScaleFactors  []float64   `json:"scale_factors"`
	MaxMeanErrPct float64     `json:"max_mean_err_pct"`
	MaxStdErrPct  float64     `json:"max_std_err_pct"`
	Converged     bool        `json:"converged"`
	Passes        []PassError `json:"passes"`
	ElapsedMs     int64       `json:"elapsed_ms"`
}

// MetricPoint is a single time-series metric sample
type MetricPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Name      string            `json:"name"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}
