package lidisk

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/lidisk/report"
)

// Observer receives one event per finished run. Implementations must be
// safe for concurrent use.
type Observer interface {
	// OnRun is called after every successful run, correct or not.
	OnRun(row report.Row)

	// OnError is called when a run fails.
	OnError(mode report.Mode, err error)
}

// NoopObserver is a no-op implementation of Observer.
type NoopObserver struct{}

func (NoopObserver) OnRun(report.Row)          {}
func (NoopObserver) OnError(report.Mode, error) {}

// BasicObserver provides simple in-memory run accounting.
type BasicObserver struct {
	Runs       atomic.Int64
	Failures   atomic.Int64
	Mismatches atomic.Int64
	Ops        atomic.Uint64
	ElapsedNs  atomic.Uint64
	PagesRead  atomic.Uint64
}

// OnRun implements Observer.
func (b *BasicObserver) OnRun(row report.Row) {
	b.Runs.Add(1)
	b.Ops.Add(row.Ops)
	b.ElapsedNs.Add(row.ElapsedNs)
	b.PagesRead.Add(uint64(row.AvgPages * float64(row.Ops)))
	if !row.Correct {
		b.Mismatches.Add(1)
	}
}

// OnError implements Observer.
func (b *BasicObserver) OnError(report.Mode, error) {
	b.Failures.Add(1)
}

// GetStats returns a snapshot of the current counts.
func (b *BasicObserver) GetStats() BasicObserverStats {
	s := BasicObserverStats{
		Runs:       b.Runs.Load(),
		Failures:   b.Failures.Load(),
		Mismatches: b.Mismatches.Load(),
		Ops:        b.Ops.Load(),
		PagesRead:  b.PagesRead.Load(),
	}
	if s.Ops > 0 {
		s.AvgLatencyNs = b.ElapsedNs.Load() / s.Ops
	}
	return s
}

// BasicObserverStats is a snapshot of BasicObserver state.
type BasicObserverStats struct {
	Runs         int64
	Failures     int64
	Mismatches   int64
	Ops          uint64
	PagesRead    uint64
	AvgLatencyNs uint64
}

// PrometheusObserver exports run events to a Prometheus registerer.
type PrometheusObserver struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	ops      *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	pages    *prometheus.HistogramVec
}

// NewPrometheusObserver registers its collectors with reg. A nil reg uses
// the default registerer.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	o := &PrometheusObserver{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lidisk",
			Name:      "bench_runs_total",
			Help:      "Finished runs by mode and checksum outcome.",
		}, []string{"mode", "result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lidisk",
			Name:      "bench_failures_total",
			Help:      "Runs that failed with an error.",
		}, []string{"mode"}),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lidisk",
			Name:      "bench_lookups_total",
			Help:      "Lookups executed.",
		}, []string{"mode"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lidisk",
			Name:      "bench_latency_seconds",
			Help:      "Mean lookup latency per run.",
			Buckets:   prometheus.ExponentialBuckets(100e-9, 2, 16),
		}, []string{"mode", "strategy"}),
		pages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lidisk",
			Name:      "bench_pages_per_lookup",
			Help:      "Mean pages fetched per lookup per run.",
			Buckets:   []float64{0.5, 1, 1.5, 2, 3, 4, 8, 16, 64},
		}, []string{"mode", "strategy"}),
	}
	reg.MustRegister(o.runs, o.failures, o.ops, o.latency, o.pages)
	return o
}

// OnRun implements Observer.
func (p *PrometheusObserver) OnRun(row report.Row) {
	mode := string(row.Mode)
	result := "success"
	if !row.Correct {
		result = "wrong"
	}
	p.runs.WithLabelValues(mode, result).Inc()
	p.ops.WithLabelValues(mode).Add(float64(row.Ops))
	p.latency.WithLabelValues(mode, row.Strategy.String()).Observe(row.LatencyNs / 1e9)
	p.pages.WithLabelValues(mode, row.Strategy.String()).Observe(row.AvgPages)
}

// OnError implements Observer.
func (p *PrometheusObserver) OnError(mode report.Mode, _ error) {
	p.failures.WithLabelValues(string(mode)).Inc()
}
