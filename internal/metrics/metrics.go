// Package metrics provides Prometheus metrics for imgopt.
//
// imgopt is a batch tool, not a server: the CLI writes the default
// registry to a node_exporter textfile at the end of a run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesTotal counts OptimizeFile outcomes.
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgopt",
			Name:      "files_total",
			Help:      "Files processed by outcome (saved, unchanged, skipped, failed)",
		},
		[]string{"format", "outcome"},
	)

	// BytesSavedTotal sums bytes saved by re-encoding.
	BytesSavedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgopt",
			Name:      "bytes_saved_total",
			Help:      "Bytes saved by re-encoding",
		},
		[]string{"format"},
	)

	// BackendAttempts counts re-encode attempts per backend.
	BackendAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgopt",
			Name:      "backend_attempts_total",
			Help:      "Re-encode attempts per backend and result",
		},
		[]string{"backend", "result"},
	)

	// WebPAttempts counts WebP derivative attempts per backend.
	WebPAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "imgopt",
			Name:      "webp_attempts_total",
			Help:      "WebP derivative attempts per backend and result",
		},
		[]string{"backend", "result"},
	)

	// FileDuration measures one OptimizeFile call.
	FileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "imgopt",
			Name:      "file_duration_seconds",
			Help:      "Duration of a single file re-encode in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"format"},
	)
)

// Outcome labels for FilesTotal.
const (
	OutcomeSaved     = "saved"
	OutcomeUnchanged = "unchanged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// RecordFile records one finished file.
func RecordFile(format, outcome string, saved uint64, seconds float64) {
	FilesTotal.WithLabelValues(format, outcome).Inc()
	if saved > 0 {
		BytesSavedTotal.WithLabelValues(format).Add(float64(saved))
	}
	if seconds > 0 {
		FileDuration.WithLabelValues(format).Observe(seconds)
	}
}

// WriteTextfile dumps the default registry in text exposition format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
