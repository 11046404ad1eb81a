// Package metrics collects per-operation timings from concurrently executing
// virtual users and evaluates them against configured thresholds.
package metrics

import (
	"math"
	"sort"
	"sync"
)

// Snapshot holds accumulated statistics for one named operation.
// ResponseTimes grows unbounded; acceptable for short-lived runs.
type Snapshot struct {
	Name          string
	Count         int64
	Errors        int64
	TotalTimeMS   float64
	MinTimeMS     float64
	MaxTimeMS     float64
	ResponseTimes []float64
}

// Threshold binds a metric name to latency and error-rate ceilings.
// A zero ceiling means "not checked".
type Threshold struct {
	Metric       string
	P95MaxMS     float64
	P99MaxMS     float64
	ErrorRateMax float64
}

// Violation kinds reported by CheckThresholds.
const (
	ViolationP95       = "p95"
	ViolationP99       = "p99"
	ViolationErrorRate = "error_rate"
)

// Violation describes a single breached threshold.
type Violation struct {
	Metric string  `json:"metric"`
	Kind   string  `json:"threshold"`
	Limit  float64 `json:"limit"`
	Actual float64 `json:"actual"`
}

// ViolationHandler is notified with the result of every threshold check.
type ViolationHandler func([]Violation)

// Collector accumulates operation outcomes under a single mutex. It is the
// only component mutated from concurrently executing virtual users; the run
// coordinator owns its lifecycle and injects it into every task context.
type Collector struct {
	mu         sync.Mutex
	snapshots  map[string]*Snapshot
	thresholds []Threshold
	handlers   []ViolationHandler
	prom       *promMirror
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		snapshots: make(map[string]*Snapshot),
		prom:      newPromMirror(),
	}
}

// AddThreshold registers a threshold to monitor.
func (c *Collector) AddThreshold(t Threshold) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thresholds = append(c.thresholds, t)
}

// OnViolation registers a handler called after every CheckThresholds.
func (c *Collector) OnViolation(h ViolationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Collector) snapshotLocked(name string) *Snapshot {
	s, ok := c.snapshots[name]
	if !ok {
		s = &Snapshot{Name: name, MinTimeMS: math.Inf(1)}
		c.snapshots[name] = s
	}
	return s
}

// RecordTime records one timed operation outcome.
func (c *Collector) RecordTime(name string, elapsedMS float64, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.snapshotLocked(name)
	s.Count++
	s.TotalTimeMS += elapsedMS
	if elapsedMS < s.MinTimeMS {
		s.MinTimeMS = elapsedMS
	}
	if elapsedMS > s.MaxTimeMS {
		s.MaxTimeMS = elapsedMS
	}
	s.ResponseTimes = append(s.ResponseTimes, elapsedMS)
	if !success {
		s.Errors++
	}

	c.prom.observe(name, elapsedMS, success)
}

// Increment adds value to a counter metric.
func (c *Collector) Increment(name string, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotLocked(name).Count += value
	c.prom.count(name, value)
}

// RecordError records an error against a metric without a timing sample.
func (c *Collector) RecordError(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshotLocked(name).Errors++
}

// Stats returns a copy of the snapshot for one metric, or nil if unseen.
func (c *Collector) Stats(name string) *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.snapshots[name]
	if !ok {
		return nil
	}
	return s.clone()
}

// AllStats returns copies of every snapshot keyed by metric name.
func (c *Collector) AllStats() map[string]*Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]*Snapshot, len(c.snapshots))
	for name, s := range c.snapshots {
		out[name] = s.clone()
	}
	return out
}

// Reset drops all accumulated snapshots. Thresholds and handlers survive.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = make(map[string]*Snapshot)
}

func (s *Snapshot) clone() *Snapshot {
	cp := *s
	cp.ResponseTimes = make([]float64, len(s.ResponseTimes))
	copy(cp.ResponseTimes, s.ResponseTimes)
	return &cp
}

// CheckThresholds evaluates every registered threshold against the recorded
// samples. Thresholds with no samples are skipped, never reported as
// violated. A breach requires the observed value strictly greater than the
// configured ceiling.
func (c *Collector) CheckThresholds() []Violation {
	c.mu.Lock()
	thresholds := make([]Threshold, len(c.thresholds))
	copy(thresholds, c.thresholds)
	handlers := make([]ViolationHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.Unlock()

	violations := make([]Violation, 0)

	for _, t := range thresholds {
		stats := c.Stats(t.Metric)
		if stats == nil || stats.Count == 0 {
			continue
		}

		sorted := make([]float64, len(stats.ResponseTimes))
		copy(sorted, stats.ResponseTimes)
		sort.Float64s(sorted)

		p95 := Percentile(sorted, 0.95)
		p99 := Percentile(sorted, 0.99)
		errorRate := float64(stats.Errors) / float64(stats.Count)

		if t.P95MaxMS > 0 && p95 > t.P95MaxMS {
			violations = append(violations, Violation{
				Metric: t.Metric, Kind: ViolationP95, Limit: t.P95MaxMS, Actual: p95,
			})
		}
		if t.P99MaxMS > 0 && p99 > t.P99MaxMS {
			violations = append(violations, Violation{
				Metric: t.Metric, Kind: ViolationP99, Limit: t.P99MaxMS, Actual: p99,
			})
		}
		if t.ErrorRateMax > 0 && errorRate > t.ErrorRateMax {
			violations = append(violations, Violation{
				Metric: t.Metric, Kind: ViolationErrorRate, Limit: t.ErrorRateMax, Actual: errorRate,
			})
		}
	}

	for _, h := range handlers {
		h(violations)
	}

	return violations
}

// Percentile returns the nearest-rank percentile of pre-sorted samples:
// rank = ceil(p * n) clamped to [1, n], value = sorted[rank-1]. For
// [1..100]ms this yields p95 = 95.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := int(math.Ceil(p * float64(n)))
	if rank < 1 {
		rank = 1
	}
	if rank > n {
		rank = n
	}
	return sorted[rank-1]
}
