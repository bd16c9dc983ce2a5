// Package metrics records Prometheus metrics about installs. Since packsync
// isn't a long-running process, metrics are exported by writing them to a
// file in the text exposition format, for collection by the node_exporter
// textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sidkik/packsync/pkg/errors"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	filesFetched = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "packsync_files_fetched_total",
			Help: "Total number of files downloaded and verified",
		},
	)

	filesFailed = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "packsync_files_failed_total",
			Help: "Total number of files that failed to download or verify",
		},
	)

	filesSkipped = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "packsync_files_skipped_total",
			Help: "Total number of files that were already up to date",
		},
	)

	bytesDownloaded = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "packsync_bytes_downloaded_total",
			Help: "Total bytes downloaded for pack files",
		},
	)

	downloadDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "packsync_download_duration_seconds",
			Help:    "Duration of individual file downloads in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	lastRun = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "packsync_last_run_timestamp_seconds",
			Help: "Unix time of the last completed install",
		},
	)
)

// RecordDownload records a file download.
func RecordDownload(bytes int64, duration time.Duration, success bool) {
	status := "success"
	if success {
		filesFetched.Inc()
		bytesDownloaded.Add(float64(bytes))
	} else {
		status = "error"
		filesFailed.Inc()
	}
	downloadDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordFailed records files that failed before a download was attempted,
// such as broken index entries.
func RecordFailed(n int) {
	filesFailed.Add(float64(n))
}

// RecordSkipped records files that didn't need to be downloaded.
func RecordSkipped(n int) {
	filesSkipped.Add(float64(n))
}

// RecordRun records the completion of an install.
func RecordRun(at time.Time) {
	lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes the current value of every metric to `path`.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return errors.WithContext(err, "write metrics")
	}
	return nil
}
