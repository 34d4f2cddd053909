package eloop

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/raleighsl/fs/rmetrics"
)

// defaultLatencyBounds spans microseconds to a few hundred milliseconds,
// the expected range for a single vtask dispatch.
var defaultLatencyBounds = []uint64{10, 50, 100, 500, 1000, 5000, 10000, 50000, 100000, 500000}

// workerMetrics tracks per-worker latency and load (active vs idle
// fraction): an internal rmetrics.Histogram sampled on the hot path
// plus a prometheus gauge snapshot of it.
type workerMetrics struct {
	core int

	latency *rmetrics.Histogram

	activeNanos int64
	idleNanos   int64

	loadGauge   prometheus.Gauge
	latencyHist prometheus.Histogram
}

func newWorkerMetrics(core int, reg prometheus.Registerer) *workerMetrics {
	m := &workerMetrics{
		core:    core,
		latency: rmetrics.NewHistogram(defaultLatencyBounds),
		loadGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "raleighsl_eloop_load_fraction",
			Help:        "fraction of wall-clock time this worker spent executing tasks, not idling in iopoll",
			ConstLabels: prometheus.Labels{"core": strconv.Itoa(core)},
		}),
		latencyHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "raleighsl_eloop_task_latency_microseconds",
			Help:        "per-task dispatch latency",
			ConstLabels: prometheus.Labels{"core": strconv.Itoa(core)},
			Buckets:     prometheus.ExponentialBuckets(10, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.loadGauge, m.latencyHist)
	}
	return m
}

func (m *workerMetrics) recordTask(start time.Time) {
	elapsed := time.Since(start)
	us := uint64(elapsed.Microseconds())
	m.latency.Add(us)
	m.latencyHist.Observe(float64(us))
	m.activeNanos += elapsed.Nanoseconds()
}

func (m *workerMetrics) recordIdle(d time.Duration) {
	m.idleNanos += d.Nanoseconds()
	total := m.activeNanos + m.idleNanos
	if total > 0 {
		m.loadGauge.Set(float64(m.activeNanos) / float64(total))
	}
}

