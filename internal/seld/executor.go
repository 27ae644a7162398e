package seld

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/gmselect/selection-core/internal/gmm"
	"github.com/gmselect/selection-core/internal/hazard"
	"github.com/gmselect/selection-core/internal/metrics"
	"github.com/gmselect/selection-core/internal/recorddb"
	"github.com/gmselect/selection-core/internal/selector"
	"github.com/gmselect/selection-core/internal/simulate"
	"github.com/gmselect/selection-core/internal/target"
	"github.com/gmselect/selection-core/pkg/config"
	"github.com/gmselect/selection-core/pkg/logger"
	"github.com/gmselect/selection-core/pkg/models"
	"github.com/gmselect/selection-core/pkg/utils"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
)

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store *RunStore

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRunExecutor creates an executor over the given store.
func NewRunExecutor(store *RunStore) *RunExecutor {
	return &RunExecutor{
		store:   store,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start begins executing a run asynchronously and returns the updated run
// state.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	switch rec.Run.Status {
	case models.RunStatusRunning:
		return rec, nil
	case models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCancelled:
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusRunning, "")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if old, exists := e.cancels[runID]; exists {
		old()
	}
	e.cancels[runID] = cancel
	e.mu.Unlock()

	go e.runSelection(ctx, runID)
	return updated, nil
}

// Stop cancels a running run and marks it cancelled.
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()

	if ok {
		cancel()
	}

	rec, found := e.store.Get(runID)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.Terminal() {
		return rec, nil
	}
	return e.store.SetStatus(runID, models.RunStatusCancelled, "")
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) runSelection(ctx context.Context, runID string) {
	defer e.cleanup(runID)

	rec, ok := e.store.Get(runID)
	if !ok {
		logger.Error("run not found", "run_id", runID)
		return
	}

	summary, err := e.execute(ctx, runID, rec.Config)
	if err != nil {
		if ctx.Err() != nil {
			logger.Info("selection cancelled", "run_id", runID)
			return
		}
		logger.Error("selection failed", "run_id", runID, "error", err)
		if _, setErr := e.store.SetStatus(runID, models.RunStatusFailed, err.Error()); setErr != nil {
			logger.Error("failed to set failed status", "run_id", runID, "error", setErr)
		}
		return
	}

	if err := e.store.SetSummary(runID, summary); err != nil {
		logger.Error("failed to store summary", "run_id", runID, "error", err)
	}

	rec, ok = e.store.Get(runID)
	if ok && rec.Run.Status == models.RunStatusRunning {
		if _, err := e.store.SetStatus(runID, models.RunStatusCompleted, ""); err != nil {
			logger.Error("failed to set completed status", "run_id", runID, "error", err)
		} else {
			logger.Info("run completed", "run_id", runID,
				"records", len(summary.RecordIDs),
				"converged", summary.Converged,
				"max_mean_err_pct", summary.MaxMeanErrPct)
		}
	}
}

// execute runs the full pipeline: target spectrum, spectrum simulation,
// candidate pool, greedy selection, optional record output. Cancellation is
// honored between stages.
func (e *RunExecutor) execute(ctx context.Context, runID string, cfg *config.Config) (*models.SelectionSummary, error) {
	collector := metrics.NewCollector()
	if err := e.store.SetCollector(runID, collector); err != nil {
		logger.Error("failed to store collector", "run_id", runID, "error", err)
	}
	sw := utils.NewStopwatch()

	model, err := gmm.New(cfg.Model)
	if err != nil {
		return nil, err
	}

	db := recorddb.NewStore(cfg.Database.Path)
	if err := db.Init(ctx); err != nil {
		return nil, fmt.Errorf("open record database: %w", err)
	}
	defer db.Close()

	dbPeriods, err := db.Periods(ctx)
	if err != nil {
		return nil, fmt.Errorf("load period grid: %w", err)
	}
	if len(dbPeriods) == 0 {
		return nil, fmt.Errorf("record database has no spectral data")
	}

	// A single conditioning period joins the grid so the target and the
	// candidate spectra carry its exact ordinate.
	grid := dbPeriods
	var conditioning *target.Conditioning
	if cfg.Target.Conditioning != nil {
		conditioning = &target.Conditioning{
			Periods: cfg.Target.Conditioning.Periods,
			IMLevel: cfg.Target.Conditioning.IMLevel,
		}
		if len(conditioning.Periods) == 1 {
			grid = insertPeriod(dbPeriods, conditioning.Periods[0])
		}
	}

	scenarios, err := loadScenarios(&cfg.Target)
	if err != nil {
		return nil, err
	}

	tgt, err := target.Build(target.Params{
		Model:          model,
		Scenarios:      scenarios,
		PeriodGrid:     grid,
		PeriodRange:    [2]float64{cfg.Target.PeriodRange[0], cfg.Target.PeriodRange[1]},
		Conditioning:   conditioning,
		UseVariance:    cfg.Target.UseVarianceOrDefault(),
		CrossComponent: crossComponentPolicy(&cfg.Target),
	})
	if err != nil {
		return nil, fmt.Errorf("build target spectrum: %w", err)
	}
	collector.RecordNow("stage_duration_ms", float64(sw.Lap("target").Milliseconds()), stageLabels("target"))
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	sim, err := simulate.Run(simulate.Params{
		Target:  tgt,
		NGM:     cfg.Selection.Records,
		NTrials: cfg.Selection.Trials,
		Weights: cfg.Selection.WeightsOrDefault(),
		Seed:    cfg.Selection.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("simulate spectra: %w", err)
	}
	collector.RecordNow("stage_duration_ms", float64(sw.Lap("simulate").Milliseconds()), stageLabels("simulate"))
	collector.RecordNow("simulation_score", sim.Score, nil)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	records, err := db.Records(ctx, recorddb.Filter{
		MagnitudeRange: cfg.Database.MagnitudeRange,
		DistanceRange:  cfg.Database.DistanceRange,
		Vs30Range:      cfg.Database.Vs30Range,
		Mechanism:      cfg.Database.Mechanism,
	})
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	pool, err := recorddb.BuildPool(records, dbPeriods, tgt.Periods, recorddb.ComponentDef{
		Kind:       cfg.Database.Component,
		Percentile: cfg.Database.Percentile,
	})
	if err != nil {
		return nil, fmt.Errorf("build candidate pool: %w", err)
	}
	collector.RecordNow("stage_duration_ms", float64(sw.Lap("pool").Milliseconds()), stageLabels("pool"))
	collector.RecordNow("pool_size", float64(pool.Size()), nil)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	sel, err := selector.Run(selector.Params{
		Target:       tgt,
		Simulated:    sim.LnSa,
		Pool:         pool,
		Scaled:       cfg.Selection.ScaledOrDefault(),
		MaxScale:     cfg.Selection.MaxScale,
		Weights:      cfg.Selection.WeightsOrDefault(),
		NLoop:        cfg.Selection.Loops,
		Penalty:      cfg.Selection.Penalty,
		TolerancePct: cfg.Selection.TolerancePct,
		Workers:      cfg.Selection.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("select records: %w", err)
	}
	collector.RecordNow("stage_duration_ms", float64(sw.Lap("select").Milliseconds()), stageLabels("select"))
	for _, pass := range sel.Passes {
		labels := map[string]string{"pass": fmt.Sprintf("%d", pass.Pass)}
		collector.RecordNow("max_mean_err_pct", pass.MaxMeanErrPct, labels)
		collector.RecordNow("max_std_err_pct", pass.MaxStdErrPct, labels)
	}
	if !sel.Converged {
		logger.Warn("selection did not reach tolerance", "run_id", runID,
			"max_mean_err_pct", sel.MaxMeanErrPct,
			"max_std_err_pct", sel.MaxStdErrPct,
			"tolerance_pct", cfg.Selection.TolerancePct)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if cfg.Output != nil && cfg.Output.WriteRecords {
		if err := e.writeRecords(cfg, records, sel); err != nil {
			return nil, fmt.Errorf("write records: %w", err)
		}
		collector.RecordNow("stage_duration_ms", float64(sw.Lap("write").Milliseconds()), stageLabels("write"))
	}

	collector.Stop()
	return &models.SelectionSummary{
		Periods:       tgt.Periods,
		TargetMeanLn:  tgt.MuLn,
		TargetStdLn:   tgt.SigmaLn,
		IMLevel:       tgt.IMLevel,
		RecordIDs:     sel.IDs,
		RecordIndices: sel.Indices,
		ScaleFactors:  sel.ScaleFactors,
		MaxMeanErrPct: sel.MaxMeanErrPct,
		MaxStdErrPct:  sel.MaxStdErrPct,
		Converged:     sel.Converged,
		Passes:        sel.Passes,
		ElapsedMs:     sw.Elapsed().Milliseconds(),
	}, nil
}

// writeRecords resolves the selected pool entries back to database records
// and writes the scaled series.
func (e *RunExecutor) writeRecords(cfg *config.Config, records []recorddb.Record, sel *selector.Result) error {
	byID := make(map[string]recorddb.Record, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}

	selected := make([]recorddb.SelectedRecord, 0, len(sel.IDs))
	for i, id := range sel.IDs {
		rec, ok := byID[trimComponentSuffix(id)]
		if !ok {
			return fmt.Errorf("selected record %s not found in database", id)
		}
		selected = append(selected, recorddb.SelectedRecord{Record: rec, Scale: sel.ScaleFactors[i]})
	}

	reader := &recorddb.FileSeriesReader{Dir: cfg.Database.SeriesDir}
	return recorddb.WriteRecords(cfg.Output.Dir, selected, reader)
}

// loadScenarios resolves the hazard contributors: inline scenarios, or the
// configured disaggregation file reduced to its top contributors.
func loadScenarios(t *config.TargetConfig) ([]gmm.Scenario, error) {
	if t.Disaggregation == nil {
		return scenariosFromConfig(t.Scenarios), nil
	}

	d := t.Disaggregation
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("open disaggregation file: %w", err)
	}
	defer f.Close()

	contributors, err := hazard.ParseContributors(f)
	if err != nil {
		return nil, fmt.Errorf("parse disaggregation file %s: %w", d.Path, err)
	}
	contributors = hazard.TopN(contributors, d.TopN)
	return hazard.Scenarios(contributors, d.Vs30, d.Rake), nil
}

func scenariosFromConfig(in []config.ScenarioConfig) []gmm.Scenario {
	out := make([]gmm.Scenario, len(in))
	for i, s := range in {
		out[i] = gmm.Scenario{
			Weight:     s.Weight,
			Magnitude:  s.Magnitude,
			DistanceKm: s.DistanceKm,
			Vs30:       s.Vs30,
			Rake:       s.Rake,
			Epsilon:    s.Epsilon,
		}
	}
	return out
}

func crossComponentPolicy(t *config.TargetConfig) gmm.CrossComponentPolicy {
	if t.CrossComponentModel == "period" {
		return gmm.PeriodDependentCrossComponent()
	}
	if t.CrossComponentRho != nil {
		return gmm.FixedCrossComponent(*t.CrossComponentRho)
	}
	return nil
}

// insertPeriod returns the grid with p added in sorted position; the grid is
// returned unchanged when p is already present.
func insertPeriod(grid []float64, p float64) []float64 {
	i := sort.SearchFloat64s(grid, p)
	if i < len(grid) && grid[i] == p {
		return grid
	}
	out := make([]float64, 0, len(grid)+1)
	out = append(out, grid[:i]...)
	out = append(out, p)
	out = append(out, grid[i:]...)
	return out
}

// trimComponentSuffix strips the ":H1"/":H2" suffix of single-component
// pool entries.
func trimComponentSuffix(id string) string {
	for _, suffix := range []string{":H1", ":H2"} {
		if len(id) > len(suffix) && id[len(id)-len(suffix):] == suffix {
			return id[:len(id)-len(suffix)]
		}
	}
	return id
}

func stageLabels(stage string) map[string]string {
	return map[string]string{"stage": stage}
}
