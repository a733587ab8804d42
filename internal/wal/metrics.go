package wal

import "github.com/prometheus/client_golang/prometheus"

// StatsCollector exposes a writer's cumulative counters as Prometheus
// metrics. Register it with any prometheus.Registerer:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(wal.NewStatsCollector(w))
type StatsCollector struct {
	writer *Writer

	writes  *prometheus.Desc
	bytes   *prometheus.Desc
	flushes *prometheus.Desc
}

// NewStatsCollector creates a collector over the given writer.
func NewStatsCollector(w *Writer) *StatsCollector {
	labels := prometheus.Labels{"path": w.Path()}
	return &StatsCollector{
		writer: w,
		writes: prometheus.NewDesc(
			"durlog_writes_total",
			"Number of records durably committed.",
			nil, labels,
		),
		bytes: prometheus.NewDesc(
			"durlog_written_bytes_total",
			"Number of frame bytes durably committed.",
			nil, labels,
		),
		flushes: prometheus.NewDesc(
			"durlog_flushes_total",
			"Number of force-to-storage operations performed.",
			nil, labels,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.writes
	ch <- c.bytes
	ch <- c.flushes
}

// Collect implements prometheus.Collector.
func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.writer.Stats()
	ch <- prometheus.MustNewConstMetric(c.writes, prometheus.CounterValue, float64(st.TotalWrites))
	ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(st.TotalBytes))
	ch <- prometheus.MustNewConstMetric(c.flushes, prometheus.CounterValue, float64(st.TotalFlushes))
}
