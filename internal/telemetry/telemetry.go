// Package telemetry exposes Prometheus metrics for training runs. A batch
// job has no scrape endpoint, so metrics are written in the node_exporter
// textfile format instead.
package telemetry

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	werrors "github.com/YuminosukeSato/winefit/pkg/errors"
)

// Metrics holds the collectors of a training process.
type Metrics struct {
	gatherer prometheus.Gatherer

	RunsTotal     prometheus.Counter     // Completed training runs
	FailuresTotal *prometheus.CounterVec // Failed runs by stage
	Accuracy      prometheus.Gauge       // Training accuracy of the last run
	OOBScore      prometheus.Gauge       // Out-of-bag score of the last run
	FitDuration   prometheus.Histogram   // Fit wall time in seconds
	ArtifactBytes prometheus.Gauge       // Size of the written model artifact
	TreeDepth     *prometheus.GaugeVec   // Depth of each fitted tree
}

// RunStats is what a finished run reports.
type RunStats struct {
	Accuracy      float64
	OOBScore      *float64
	FitDuration   time.Duration
	ArtifactBytes int64
	TreeDepths    []int
}

// New creates metrics on a private registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates metrics registered on registry.
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		gatherer: registry,
		RunsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "winefit_runs_total",
			Help: "Total number of completed training runs",
		}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winefit_failures_total",
			Help: "Total number of failed training runs by stage",
		}, []string{"stage"}),
		Accuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "winefit_train_accuracy",
			Help: "Mean accuracy of the last model on its training data",
		}),
		OOBScore: factory.NewGauge(prometheus.GaugeOpts{
			Name: "winefit_oob_score",
			Help: "Out-of-bag accuracy of the last model",
		}),
		FitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "winefit_fit_duration_seconds",
			Help:    "Wall time spent fitting the forest",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		ArtifactBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "winefit_artifact_bytes",
			Help: "Size in bytes of the serialized model",
		}),
		TreeDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "winefit_tree_depth",
			Help: "Depth of each fitted tree",
		}, []string{"tree"}),
	}
}

// ObserveRun records a successful run.
func (m *Metrics) ObserveRun(s RunStats) {
	m.RunsTotal.Inc()
	m.Accuracy.Set(s.Accuracy)
	if s.OOBScore != nil {
		m.OOBScore.Set(*s.OOBScore)
	}
	m.FitDuration.Observe(s.FitDuration.Seconds())
	m.ArtifactBytes.Set(float64(s.ArtifactBytes))
	m.TreeDepth.Reset()
	for i, d := range s.TreeDepths {
		m.TreeDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(d))
	}
}

// ObserveFailure counts a run that failed at stage.
func (m *Metrics) ObserveFailure(stage string) {
	m.FailuresTotal.WithLabelValues(stage).Inc()
}

// WriteTextfile writes every metric to path atomically, creating the parent
// directory when needed.
func (m *Metrics) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return werrors.Wrapf(err, "create metrics directory %s", dir)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return werrors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}
