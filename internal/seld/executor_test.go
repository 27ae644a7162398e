package seld

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gmselect/selection-core/internal/gmm"
	"github.com/gmselect/selection-core/internal/recorddb"
	"github.com/gmselect/selection-core/pkg/config"
	"github.com/gmselect/selection-core/pkg/models"
)

var fixturePeriods = []float64{0.1, 0.2, 0.5, 1.0, 2.0}

// seedTestDatabase builds a record database whose spectra scatter around the
// reference-model median for the fixture scenario, so a selection over it is
// always feasible.
func seedTestDatabase(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "records.db")
	store := recorddb.NewStore(path)
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init fixture database: %v", err)
	}
	defer store.Close()

	model, err := gmm.New("reference")
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	scn := fixtureScenario()

	for i := 0; i < 12; i++ {
		offset := -0.3 + 0.06*float64(i)
		sa := make([]float64, len(fixturePeriods))
		for j, p := range fixturePeriods {
			mean, _, err := model.Evaluate(scn, p)
			if err != nil {
				t.Fatalf("evaluate model: %v", err)
			}
			sa[j] = math.Exp(mean + offset)
		}
		rec := recorddb.Record{
			ID:         fmt.Sprintf("RSN%03d", i+1),
			Magnitude:  6.5,
			DistanceKm: 20,
			Vs30:       400,
			Mechanism:  1,
			Dt:         0.01,
			DurationS:  30,
			FileH1:     fmt.Sprintf("RSN%03d_H1.txt", i+1),
			Sa1:        sa,
		}
		if err := store.SaveRecord(ctx, rec, fixturePeriods); err != nil {
			t.Fatalf("save fixture record: %v", err)
		}
	}
	return path
}

func fixtureScenario() gmm.Scenario {
	return gmm.Scenario{Weight: 1, Magnitude: 6.5, DistanceKm: 20, Vs30: 400}
}

// fixtureIMLevel returns the reference-model median at the conditioning
// period, a target amplitude the fixture records reach without scaling.
func fixtureIMLevel(t *testing.T) float64 {
	t.Helper()
	model, err := gmm.New("reference")
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	mean, _, err := model.Evaluate(fixtureScenario(), 0.5)
	if err != nil {
		t.Fatalf("evaluate model: %v", err)
	}
	return math.Exp(mean)
}

func fixtureConfig(t *testing.T, dbPath string) *config.Config {
	t.Helper()
	return &config.Config{
		Model: "reference",
		Database: config.DatabaseConfig{
			Path:      dbPath,
			Component: "single",
		},
		Target: config.TargetConfig{
			PeriodRange: []float64{0.1, 2.0},
			Scenarios: []config.ScenarioConfig{
				{Weight: 1, Magnitude: 6.5, DistanceKm: 20, Vs30: 400},
			},
			Conditioning: &config.ConditioningConfig{
				Periods: []float64{0.5},
				IMLevel: fixtureIMLevel(t),
			},
		},
		Selection: config.SelectionConfig{
			Records:      3,
			Trials:       2,
			Loops:        1,
			MaxScale:     4,
			TolerancePct: 50,
			Workers:      1,
			Seed:         42,
		},
	}
}

func waitForTerminal(t *testing.T, store *RunStore, runID string) *RunRecord {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		rec, ok := store.Get(runID)
		if ok && rec.Run.Status.Terminal() {
			return rec
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("run %s did not reach a terminal status", runID)
	return nil
}

func TestExecutorRunCompletes(t *testing.T) {
	dbPath := seedTestDatabase(t)
	store := NewRunStore()
	exec := NewRunExecutor(store)

	if _, err := store.Create("run-1", fixtureConfig(t, dbPath)); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	rec, err := exec.Start("run-1")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if rec.Run.Status != models.RunStatusRunning {
		t.Fatalf("expected running status after start, got %s", rec.Run.Status)
	}

	final := waitForTerminal(t, store, "run-1")
	if final.Run.Status != models.RunStatusCompleted {
		t.Fatalf("run ended %s: %s", final.Run.Status, final.Run.Error)
	}

	summary := final.Summary
	if summary == nil {
		t.Fatalf("expected summary on completed run")
	}
	if len(summary.RecordIDs) != 3 || len(summary.ScaleFactors) != 3 {
		t.Fatalf("expected 3 selected records, got %d", len(summary.RecordIDs))
	}
	for i, fac := range summary.ScaleFactors {
		if fac <= 0 || fac > 4 {
			t.Fatalf("scale factor %d = %g outside (0, 4]", i, fac)
		}
	}
	if summary.IMLevel <= 0 {
		t.Fatalf("expected positive conditioning amplitude")
	}
	if len(summary.Periods) != len(summary.TargetMeanLn) || len(summary.Periods) != len(summary.TargetStdLn) {
		t.Fatalf("target arrays misaligned")
	}
	// The conditioning period joined the target grid.
	found := false
	for _, p := range summary.Periods {
		if p == 0.5 {
			found = true
		}
	}
	if !found {
		t.Fatalf("conditioning period missing from target grid %v", summary.Periods)
	}

	collector, ok := store.GetCollector("run-1")
	if !ok {
		t.Fatalf("expected metrics collector on run")
	}
	if len(collector.All("stage_duration_ms")) == 0 {
		t.Fatalf("expected stage timing metrics")
	}
	if len(collector.Series("pool_size", nil)) != 1 {
		t.Fatalf("expected pool size metric")
	}
}

func TestExecutorRunWithDisaggregation(t *testing.T) {
	dbPath := seedTestDatabase(t)
	disaggPath := filepath.Join(t.TempDir(), "disagg.txt")
	content := "# magnitude distance weight\n6.5 20 0.7\n7.0 40 0.2\n5.8 10 0.1\n"
	if err := os.WriteFile(disaggPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write disaggregation fixture: %v", err)
	}

	cfg := fixtureConfig(t, dbPath)
	cfg.Target.Scenarios = nil
	cfg.Target.Disaggregation = &config.DisaggConfig{
		Path: disaggPath,
		TopN: 2,
		Vs30: 400,
	}

	store := NewRunStore()
	exec := NewRunExecutor(store)
	if _, err := store.Create("run-disagg", cfg); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := exec.Start("run-disagg"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	final := waitForTerminal(t, store, "run-disagg")
	if final.Run.Status != models.RunStatusCompleted {
		t.Fatalf("run ended %s: %s", final.Run.Status, final.Run.Error)
	}
	if len(final.Summary.RecordIDs) != 3 {
		t.Fatalf("expected 3 selected records, got %d", len(final.Summary.RecordIDs))
	}
}

func TestLoadScenariosDisaggregation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disagg.txt")
	if err := os.WriteFile(path, []byte("6.5 20 0.6\n7.0 40 0.2\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	scenarios, err := loadScenarios(&config.TargetConfig{
		Disaggregation: &config.DisaggConfig{Path: path, Vs30: 520, Rake: 90},
	})
	if err != nil {
		t.Fatalf("loadScenarios failed: %v", err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(scenarios))
	}
	// Contributor weights are renormalized to sum to 1.
	if math.Abs(scenarios[0].Weight-0.75) > 1e-12 {
		t.Fatalf("unexpected weight %g, want 0.75", scenarios[0].Weight)
	}
	if scenarios[0].Vs30 != 520 || scenarios[0].Rake != 90 {
		t.Fatalf("site parameters not applied: %+v", scenarios[0])
	}

	if _, err := loadScenarios(&config.TargetConfig{
		Disaggregation: &config.DisaggConfig{Path: filepath.Join(t.TempDir(), "missing.txt"), Vs30: 520},
	}); err == nil {
		t.Fatalf("expected error for missing disaggregation file")
	}
}

func TestExecutorStartErrors(t *testing.T) {
	store := NewRunStore()
	exec := NewRunExecutor(store)

	if _, err := exec.Start(""); !errors.Is(err, ErrRunIDMissing) {
		t.Fatalf("expected ErrRunIDMissing, got %v", err)
	}
	if _, err := exec.Start("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}

	if _, err := store.Create("done", &config.Config{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.SetStatus("done", models.RunStatusCompleted, ""); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if _, err := exec.Start("done"); !errors.Is(err, ErrRunTerminal) {
		t.Fatalf("expected ErrRunTerminal, got %v", err)
	}
}

func TestExecutorStopPendingRun(t *testing.T) {
	store := NewRunStore()
	exec := NewRunExecutor(store)

	if _, err := store.Create("run-1", &config.Config{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	rec, err := exec.Stop("run-1")
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if rec.Run.Status != models.RunStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", rec.Run.Status)
	}

	// Stopping a terminal run returns it unchanged.
	again, err := exec.Stop("run-1")
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if again.Run.Status != models.RunStatusCancelled {
		t.Fatalf("terminal status overwritten")
	}

	if _, err := exec.Stop("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := exec.Stop(""); !errors.Is(err, ErrRunIDMissing) {
		t.Fatalf("expected ErrRunIDMissing, got %v", err)
	}
}
