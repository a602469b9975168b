package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes the motion core's operational metrics as a
// prometheus.Collector, spec.md §1 and the SPEC_FULL.md ambient-stack
// supplement (spec.md itself defines no metrics surface).
//
// Grounded on _examples/joeycumines-go-utilpkg/eventloop/metrics.go's Metrics/LatencyMetrics/
// QueueMetrics: a P²-quantile latency distribution plus EMA-smoothed gauge
// tracking, adapted here to the two latencies this system cares about
// (segment preparation and planner replan) and the one queue depth it has
// (the block ring buffer), rather than that package's ingress/internal/
// microtask triple.
type Collector struct {
	mu sync.Mutex

	segmentPrep *latencyMetrics
	replan      *latencyMetrics
	queue       *queueMetrics

	segmentDesc *prometheus.Desc
	replanDesc  *prometheus.Desc
	queueDesc   *prometheus.Desc
	maxDesc     *prometheus.Desc
	holdDesc    *prometheus.Desc

	holdEngagements uint64
}

// New constructs a Collector. Register it with a prometheus.Registry the way
// any other collector is registered.
func New() *Collector {
	return &Collector{
		segmentPrep: newLatencyMetrics(),
		replan:      newLatencyMetrics(),
		queue:       newQueueMetrics(),
		segmentDesc: prometheus.NewDesc(
			"tinyg_segment_prepare_seconds",
			"Quantile distribution of PrepareSegment call latency.",
			[]string{"quantile"}, nil,
		),
		replanDesc: prometheus.NewDesc(
			"tinyg_replan_seconds",
			"Quantile distribution of planner Replan call latency.",
			[]string{"quantile"}, nil,
		),
		queueDesc: prometheus.NewDesc(
			"tinyg_block_queue_depth",
			"Current and smoothed depth of the planner's block ring buffer.",
			[]string{"stat"}, nil,
		),
		maxDesc: prometheus.NewDesc(
			"tinyg_latency_seconds_max",
			"Maximum observed latency per instrumented call site.",
			[]string{"call"}, nil,
		),
		holdDesc: prometheus.NewDesc(
			"tinyg_feedhold_engagements_total",
			"Total number of feedhold engagements observed.",
			nil, nil,
		),
	}
}

// ObserveSegmentPrepare records one PrepareSegment call's latency.
func (c *Collector) ObserveSegmentPrepare(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.segmentPrep.record(d)
}

// ObserveReplan records one planner Replan call's latency.
func (c *Collector) ObserveReplan(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replan.record(d)
}

// UpdateQueueDepth records the block ring buffer's current queue depth.
func (c *Collector) UpdateQueueDepth(depth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue.update(depth)
}

// RecordFeedholdEngagement increments the feedhold-engagement counter, spec.md
// §4.9.
func (c *Collector) RecordFeedholdEngagement() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.holdEngagements++
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.segmentDesc
	ch <- c.replanDesc
	ch <- c.queueDesc
	ch <- c.maxDesc
	ch <- c.holdDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for label, q := range c.segmentPrep.quantiles() {
		ch <- prometheus.MustNewConstMetric(c.segmentDesc, prometheus.GaugeValue, q, label)
	}
	ch <- prometheus.MustNewConstMetric(c.maxDesc, prometheus.GaugeValue, c.segmentPrep.max(), "segment_prepare")

	for label, q := range c.replan.quantiles() {
		ch <- prometheus.MustNewConstMetric(c.replanDesc, prometheus.GaugeValue, q, label)
	}
	ch <- prometheus.MustNewConstMetric(c.maxDesc, prometheus.GaugeValue, c.replan.max(), "replan")

	ch <- prometheus.MustNewConstMetric(c.queueDesc, prometheus.GaugeValue, float64(c.queue.current), "current")
	ch <- prometheus.MustNewConstMetric(c.queueDesc, prometheus.GaugeValue, float64(c.queue.max), "max")
	ch <- prometheus.MustNewConstMetric(c.queueDesc, prometheus.GaugeValue, c.queue.avg, "avg_ema")

	ch <- prometheus.MustNewConstMetric(c.holdDesc, prometheus.CounterValue, float64(c.holdEngagements))
}

// latencyMetrics mirrors _examples/joeycumines-go-utilpkg/eventloop/metrics.go's LatencyMetrics: a
// set of P² estimators tracking p50/p90/p95/p99, plus a running max. Unlike
// that package it carries no legacy exact-sort sample buffer — this module
// has no test depending on exact small-sample percentiles.
type latencyMetrics struct {
	p50, p90, p95, p99 *PSquareQuantile
}

func newLatencyMetrics() *latencyMetrics {
	return &latencyMetrics{
		p50: NewPSquareQuantile(0.50),
		p90: NewPSquareQuantile(0.90),
		p95: NewPSquareQuantile(0.95),
		p99: NewPSquareQuantile(0.99),
	}
}

func (l *latencyMetrics) record(d time.Duration) {
	v := d.Seconds()
	l.p50.Update(v)
	l.p90.Update(v)
	l.p95.Update(v)
	l.p99.Update(v)
}

func (l *latencyMetrics) quantiles() map[string]float64 {
	return map[string]float64{
		"0.5":  l.p50.Quantile(),
		"0.9":  l.p90.Quantile(),
		"0.95": l.p95.Quantile(),
		"0.99": l.p99.Quantile(),
	}
}

func (l *latencyMetrics) max() float64 { return l.p99.Max() }

// queueMetrics mirrors _examples/joeycumines-go-utilpkg/eventloop/metrics.go's QueueMetrics: current,
// max-observed, and an exponential moving average with alpha=0.1.
type queueMetrics struct {
	current        int
	max             int
	avg             float64
	emaInitialized  bool
}

func newQueueMetrics() *queueMetrics { return &queueMetrics{} }

func (q *queueMetrics) update(depth int) {
	q.current = depth
	if depth > q.max {
		q.max = depth
	}
	if !q.emaInitialized {
		q.avg = float64(depth)
		q.emaInitialized = true
	} else {
		q.avg = 0.9*q.avg + 0.1*float64(depth)
	}
}
