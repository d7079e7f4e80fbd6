// Package metrics exposes Prometheus collectors for repositories and writers.
//
//	metrics.ItemsAdded.WithLabelValues("listings", "appended").Inc()
//
//	timer := metrics.NewTimer()
//	err := w.Save(ctx)
//	metrics.SaveDuration.WithLabelValues("listings.csv").Observe(timer.Stop().Seconds())
//
// Collectors register with the default registry; Handler serves them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ItemsAdded counts AddItem calls by repository and outcome
	// (appended, widened, rejected).
	ItemsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kscrap_items_added_total",
			Help: "Items offered to a repository, by outcome",
		},
		[]string{"repository", "outcome"},
	)

	// PendingRows tracks rows held in memory and not yet persisted.
	PendingRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kscrap_pending_rows",
			Help: "Rows stored in memory waiting to be saved",
		},
		[]string{"repository"},
	)

	// PendingBytes tracks the approximate memory held by unsaved rows.
	PendingBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kscrap_pending_bytes",
			Help: "Approximate bytes of column memory held by a repository",
		},
		[]string{"repository"},
	)

	// Widenings counts widening attempts by repository and result (success, failure).
	Widenings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kscrap_widenings_total",
			Help: "Schema widening attempts",
		},
		[]string{"repository", "result"},
	)

	// RowsWritten counts rows written to output files.
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kscrap_rows_written_total",
			Help: "Rows written to output files",
		},
		[]string{"target"},
	)

	// Saves counts finished saves by target file and outcome
	// (completed, cancelled, failed).
	Saves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kscrap_saves_total",
			Help: "Finished save operations, by outcome",
		},
		[]string{"target", "outcome"},
	)

	// SaveDuration tracks how long saves take, in seconds.
	SaveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kscrap_save_duration_seconds",
			Help:    "Duration of save operations in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"target"},
	)

	// ItemsTransmitted counts items forwarded to transmitters by kind and status.
	ItemsTransmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kscrap_items_transmitted_total",
			Help: "Items forwarded to transmitters",
		},
		[]string{"transmitter", "status"},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures elapsed time
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the time elapsed since the timer started
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Status maps an error to the status label used by the collectors.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
