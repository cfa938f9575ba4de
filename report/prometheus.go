package report

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink keeps the latest figures of each run configuration as
// gauges in its own registry.
type PrometheusSink struct {
	registry   *prometheus.Registry
	throughput *prometheus.GaugeVec
	latency    *prometheus.GaugeVec
	avgPages   *prometheus.GaugeVec
	iops       *prometheus.GaugeVec
	bandwidth  *prometheus.GaugeVec
	maxRange   *prometheus.GaugeVec
	runs       *prometheus.CounterVec
	wrong      *prometheus.CounterVec
}

var runLabels = []string{"mode", "strategy", "compression", "threads", "diff"}

// NewPrometheusSink creates a sink with a private registry.
func NewPrometheusSink() *PrometheusSink {
	gauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "lidisk",
			Name:      name,
			Help:      help,
		}, runLabels)
	}

	s := &PrometheusSink{
		registry:   prometheus.NewRegistry(),
		throughput: gauge("throughput_ops_per_second", "Lookups per second of the last run."),
		latency:    gauge("latency_nanoseconds", "Mean lookup latency of the last run."),
		avgPages:   gauge("pages_per_lookup", "Mean pages fetched per lookup."),
		iops:       gauge("io_operations_per_second", "I/O operations per second."),
		bandwidth:  gauge("bandwidth_gibibytes_per_second", "Fetched page bytes per second."),
		maxRange:   gauge("max_search_range_items", "Widest refined search range."),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lidisk",
			Name:      "runs_total",
			Help:      "Completed runs.",
		}, runLabels),
		wrong: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lidisk",
			Name:      "checksum_mismatches_total",
			Help:      "Runs whose checksum did not match the workload.",
		}, runLabels),
	}

	s.registry.MustRegister(s.throughput, s.latency, s.avgPages, s.iops, s.bandwidth, s.maxRange, s.runs, s.wrong)
	return s
}

// Registry exposes the sink's registry, e.g. for promhttp.
func (s *PrometheusSink) Registry() *prometheus.Registry { return s.registry }

// Write implements Sink.
func (s *PrometheusSink) Write(_ context.Context, row Row) error {
	lv := []string{
		string(row.Mode),
		row.Strategy.String(),
		row.Compression.String(),
		strconv.Itoa(row.Threads),
		strconv.FormatUint(row.Diff, 10),
	}
	s.throughput.WithLabelValues(lv...).Set(row.Throughput)
	s.latency.WithLabelValues(lv...).Set(row.LatencyNs)
	s.avgPages.WithLabelValues(lv...).Set(row.AvgPages)
	s.iops.WithLabelValues(lv...).Set(row.IOPS)
	s.bandwidth.WithLabelValues(lv...).Set(row.BandwidthGBs)
	s.maxRange.WithLabelValues(lv...).Set(float64(row.MaxRange))
	s.runs.WithLabelValues(lv...).Inc()
	if !row.Correct {
		s.wrong.WithLabelValues(lv...).Inc()
	}
	return nil
}

// WriteToTextfile dumps the registry in the text exposition format, for the
// node exporter textfile collector.
func (s *PrometheusSink) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, s.registry)
}

// Close implements Sink.
func (s *PrometheusSink) Close() error { return nil }
