package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	dealerImport = "dealer_import"

	// Upload metrics
	uploadsTotal = "uploads_total"

	// Job metrics
	jobsFinishedTotal = "jobs_finished_total"
	rowsImportedTotal = "rows_imported_total"

	// Labels
	uploadResultLabel = "result"
	jobStatusLabel    = "status"
)

var uploadsTotalLabels = []string{
	uploadResultLabel,
}

var jobsFinishedTotalLabels = []string{
	jobStatusLabel,
}

/**
* Metrics definition
**/
var uploadsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: dealerImport,
		Name:      uploadsTotal,
		Help:      "number of workbook uploads partitioned by result",
	},
	uploadsTotalLabels,
)

var jobsFinishedTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: dealerImport,
		Name:      jobsFinishedTotal,
		Help:      "number of import jobs that reached a terminal status",
	},
	jobsFinishedTotalLabels,
)

var rowsImportedTotalMetric = prometheus.NewCounter(
	prometheus.CounterOpts{
		Subsystem: dealerImport,
		Name:      rowsImportedTotal,
		Help:      "number of rows committed to the car inventory",
	},
)

func IncreaseUploadsTotalMetric(result string) {
	labels := prometheus.Labels{
		uploadResultLabel: result,
	}
	uploadsTotalMetric.With(labels).Inc()
}

func IncreaseJobsFinishedTotalMetric(status string) {
	labels := prometheus.Labels{
		jobStatusLabel: status,
	}
	jobsFinishedTotalMetric.With(labels).Inc()
}

func AddRowsImportedMetric(count int) {
	rowsImportedTotalMetric.Add(float64(count))
}

// RegisterStatsCollector exposes the live session and inventory counters of s.
func RegisterStatsCollector(reg prometheus.Registerer, s StatsSource) error {
	return reg.Register(newImportStatsCollector(s))
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(uploadsTotalMetric)
	prometheus.MustRegister(jobsFinishedTotalMetric)
	prometheus.MustRegister(rowsImportedTotalMetric)
}
