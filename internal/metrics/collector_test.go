package metrics

import (
	"math"
	"testing"
	"time"
)

func TestCollectorRecordAndSeries(t *testing.T) {
	c := NewCollector()

	now := time.Now()
	c.Record("stage_duration_ms", 12.5, now, map[string]string{"stage": "target"})
	c.Record("stage_duration_ms", 40.0, now.Add(time.Second), map[string]string{"stage": "simulate"})
	c.RecordNow("pool_size", 128, nil)

	target := c.Series("stage_duration_ms", map[string]string{"stage": "target"})
	if len(target) != 1 || target[0].Value != 12.5 {
		t.Fatalf("unexpected target series %v", target)
	}

	pool := c.Series("pool_size", nil)
	if len(pool) != 1 || pool[0].Value != 128 {
		t.Fatalf("unexpected pool series %v", pool)
	}

	if got := c.Series("missing", nil); got != nil {
		t.Fatalf("expected nil series for unknown metric, got %v", got)
	}
}

func TestCollectorAll(t *testing.T) {
	c := NewCollector()
	c.RecordNow("max_mean_err_pct", 8.2, map[string]string{"pass": "1"})
	c.RecordNow("max_mean_err_pct", 4.1, map[string]string{"pass": "2"})
	c.RecordNow("max_mean_err_pct", 2.0, nil)

	points := c.All("max_mean_err_pct")
	if len(points) != 3 {
		t.Fatalf("expected 3 points across label sets, got %d", len(points))
	}
	// Label-key order puts the unlabeled set first.
	if points[0].Value != 2.0 {
		t.Fatalf("unexpected first point %v", points[0])
	}
}

func TestCollectorNames(t *testing.T) {
	c := NewCollector()
	c.RecordNow("zeta", 1, nil)
	c.RecordNow("alpha", 1, nil)

	names := c.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestCollectorAggregate(t *testing.T) {
	c := NewCollector()
	for _, v := range []float64{10, 20, 30, 40} {
		c.RecordNow("latency", v, nil)
	}

	agg := c.Aggregate("latency")
	if agg == nil {
		t.Fatalf("expected aggregation")
	}
	if agg.Count != 4 || agg.Sum != 100 || agg.Min != 10 || agg.Max != 40 {
		t.Fatalf("unexpected aggregation %+v", agg)
	}
	if agg.Mean != 25 {
		t.Fatalf("mean = %g, want 25", agg.Mean)
	}
	if math.Abs(agg.P50-25) > 1e-12 {
		t.Fatalf("p50 = %g, want 25", agg.P50)
	}
	if math.Abs(agg.P95-38.5) > 1e-12 {
		t.Fatalf("p95 = %g, want 38.5", agg.P95)
	}

	if got := c.Aggregate("missing"); got != nil {
		t.Fatalf("expected nil aggregation for unknown metric, got %+v", got)
	}
}

func TestCollectorAggregateSpansLabelSets(t *testing.T) {
	c := NewCollector()
	c.RecordNow("err_pct", 10, map[string]string{"pass": "1"})
	c.RecordNow("err_pct", 30, map[string]string{"pass": "2"})

	agg := c.Aggregate("err_pct")
	if agg == nil || agg.Count != 2 || agg.Mean != 20 {
		t.Fatalf("unexpected cross-label aggregation %+v", agg)
	}
}

func TestCollectorSummary(t *testing.T) {
	c := NewCollector()
	c.RecordNow("a", 1, nil)
	c.RecordNow("b", 2, nil)

	summary := c.Summary()
	if len(summary) != 2 {
		t.Fatalf("expected 2 summarized metrics, got %d", len(summary))
	}
	if summary["a"].Sum != 1 || summary["b"].Sum != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestCollectorElapsed(t *testing.T) {
	c := NewCollector()
	time.Sleep(time.Millisecond)
	if c.Elapsed() <= 0 {
		t.Fatalf("expected positive elapsed time")
	}
	c.Stop()
	fixed := c.Elapsed()
	time.Sleep(time.Millisecond)
	if c.Elapsed() != fixed {
		t.Fatalf("elapsed changed after Stop")
	}
}

func TestLabelKey(t *testing.T) {
	a := labelKey(map[string]string{"stage": "target", "pass": "1"})
	b := labelKey(map[string]string{"pass": "1", "stage": "target"})
	if a != b {
		t.Fatalf("label key not order independent: %q vs %q", a, b)
	}
	if labelKey(nil) != "" {
		t.Fatalf("expected empty key for nil labels")
	}
}
