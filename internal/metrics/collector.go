// Package metrics collects labeled time-series metrics during a selection
// run: stage timings, per-pass convergence errors, pool sizes.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/gmselect/selection-core/pkg/models"
)

// Aggregation holds summary statistics of one metric series.
type Aggregation struct {
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
}

// Collector accumulates metric points, keyed by name and label set.
type Collector struct {
	mu sync.RWMutex

	startTime time.Time
	endTime   time.Time

	series map[string]map[string][]models.MetricPoint
}

// NewCollector creates an empty collector with the start time set to now.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		series:    make(map[string]map[string][]models.MetricPoint),
	}
}

// Stop marks the end of collection.
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// Record appends a metric point at the given timestamp.
func (c *Collector) Record(name string, value float64, timestamp time.Time, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := labelKey(labels)
	if c.series[name] == nil {
		c.series[name] = make(map[string][]models.MetricPoint)
	}
	c.series[name][key] = append(c.series[name][key], models.MetricPoint{
		Timestamp: timestamp,
		Name:      name,
		Value:     value,
		Labels:    copyLabels(labels),
	})
}

// RecordNow appends a metric point at the current time.
func (c *Collector) RecordNow(name string, value float64, labels map[string]string) {
	c.Record(name, value, time.Now(), labels)
}

// Series returns a copy of the points for a metric and label set.
func (c *Collector) Series(name string, labels map[string]string) []models.MetricPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	points := c.series[name][labelKey(labels)]
	if points == nil {
		return nil
	}
	out := make([]models.MetricPoint, len(points))
	copy(out, points)
	return out
}

// All returns a copy of every point recorded for a metric across all label
// sets, in label-key order.
func (c *Collector) All(name string) []models.MetricPoint {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.series[name]))
	for key := range c.series[name] {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out []models.MetricPoint
	for _, key := range keys {
		out = append(out, c.series[name][key]...)
	}
	return out
}

// Names returns the collected metric names, sorted.
func (c *Collector) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.series))
	for name := range c.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aggregate computes summary statistics over all points of a metric across
// every label set. Returns nil when the metric has no points.
func (c *Collector) Aggregate(name string) *Aggregation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var values []float64
	for _, points := range c.series[name] {
		for _, p := range points {
			values = append(values, p.Value)
		}
	}
	if len(values) == 0 {
		return nil
	}
	sort.Float64s(values)

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return &Aggregation{
		Count: int64(len(values)),
		Sum:   sum,
		Min:   values[0],
		Max:   values[len(values)-1],
		Mean:  sum / float64(len(values)),
		P50:   percentileSorted(values, 0.50),
		P95:   percentileSorted(values, 0.95),
	}
}

// Summary aggregates every collected metric.
func (c *Collector) Summary() map[string]*Aggregation {
	out := make(map[string]*Aggregation)
	for _, name := range c.Names() {
		if agg := c.Aggregate(name); agg != nil {
			out[name] = agg
		}
	}
	return out
}

// Elapsed returns the collection duration; if collection has not stopped,
// the time since start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.endTime.IsZero() {
		return time.Since(c.startTime)
	}
	return c.endTime.Sub(c.startTime)
}

func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := ""
	for _, k := range keys {
		key += k + "=" + labels[k] + ","
	}
	return key
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// percentileSorted interpolates the p-quantile of a sorted slice.
func percentileSorted(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	index := p * float64(len(sorted)-1)
	lower := int(index)
	if lower+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[lower+1]*weight
}
