// Package metrics exports the outcome of a run in the Prometheus text
// format, for node_exporter's textfile collector or any batch monitor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yumyai/treesplit/pkg/decompose"
	"github.com/yumyai/treesplit/pkg/errs"
)

const namespace = "treesplit"

// RunMetrics holds the metrics of one run on a private registry.
type RunMetrics struct {
	registry *prometheus.Registry

	Leaves      prometheus.Gauge
	Subsets     prometheus.Gauge
	MaxSize     prometheus.Gauge
	Duration    *prometheus.GaugeVec
	LastSuccess prometheus.Gauge
	SubsetSize  prometheus.Histogram
}

// New registers the run metrics on a fresh registry.
func New() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		Leaves: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "leaves",
			Help:      "Leaves in the input tree",
		}),
		Subsets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subsets",
			Help:      "Subsets written by the last run",
		}),
		MaxSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "max_subset_size",
			Help:      "Configured maximum subset size",
		}),
		Duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each stage of the last run",
		}, []string{"stage"}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		SubsetSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "subset_size_leaves",
			Help:      "Leaves per subset",
			Buckets:   []float64{1, 10, 100, 1000, 10000, 100000},
		}),
	}
	m.registry.MustRegister(m.Leaves, m.Subsets, m.MaxSize, m.Duration, m.LastSuccess, m.SubsetSize)
	return m
}

// Stage records how long a stage took.
func (m *RunMetrics) Stage(name string, d time.Duration) {
	m.Duration.WithLabelValues(name).Set(d.Seconds())
}

// ObserveSubsets records the decomposition result.
func (m *RunMetrics) ObserveSubsets(leaves, maxSize int, subsets []decompose.Subset) {
	m.Leaves.Set(float64(leaves))
	m.MaxSize.Set(float64(maxSize))
	m.Subsets.Set(float64(len(subsets)))
	for _, s := range subsets {
		m.SubsetSize.Observe(float64(s.Len()))
	}
}

// Succeeded stamps the completion time.
func (m *RunMetrics) Succeeded(at time.Time) {
	m.LastSuccess.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric to path atomically.
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return &errs.IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}
