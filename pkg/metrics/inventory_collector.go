package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats is a point-in-time view of the import service state.
type Stats struct {
	SessionsByStatus map[string]int
	TotalCars        int
}

// StatsSource is implemented by whatever owns the import sessions.
type StatsSource interface {
	Stats() Stats
}

type importStatsCollector struct {
	source           StatsSource
	totalCars        *prometheus.Desc
	sessionsByStatus *prometheus.Desc
}

func newImportStatsCollector(s StatsSource) prometheus.Collector {
	fqName := func(name string) string {
		return fmt.Sprintf("%s_%s", dealerImport, name)
	}

	return &importStatsCollector{
		source: s,
		totalCars: prometheus.NewDesc(
			fqName("cars_total"),
			"Total number of cars in the inventory.",
			nil,
			prometheus.Labels{},
		),
		sessionsByStatus: prometheus.NewDesc(
			fqName("sessions"),
			"Open import sessions by status.",
			[]string{"status"},
			prometheus.Labels{},
		),
	}
}

func (c *importStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.totalCars
	ch <- c.sessionsByStatus
}

// Collect implements Collector.
func (c *importStatsCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.totalCars, prometheus.GaugeValue, float64(stats.TotalCars))

	for status, total := range stats.SessionsByStatus {
		ch <- prometheus.MustNewConstMetric(c.sessionsByStatus, prometheus.GaugeValue, float64(total), status)
	}
}
