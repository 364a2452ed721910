// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FilesIndexed counts files upserted into the index, by category.
	FilesIndexed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediadex_files_indexed_total",
		Help: "Files upserted into the index, by category.",
	}, []string{"category"})

	// ScansTotal counts finished scans by terminal status.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediadex_scans_total",
		Help: "Finished scans by terminal status.",
	}, []string{"status"})

	// BatchesDropped counts index batches lost to persistence errors. A scan
	// continues past a failed batch, so the loss is only visible here.
	BatchesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediadex_index_batches_dropped_total",
		Help: "Index write batches dropped due to persistence errors.",
	})

	// ThumbnailFailures counts source files whose thumbnail could not be
	// generated (corrupt file, unsupported codec).
	ThumbnailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mediadex_thumbnail_failures_total",
		Help: "Thumbnail generations that failed and were skipped.",
	})

	// MediaRequests counts /media responses by status code class.
	MediaRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mediadex_media_requests_total",
		Help: "Media streaming responses by HTTP status.",
	}, []string{"status"})
)
