package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"leasepurge/pkg/models"
)

const namespace = "leasepurge"

// Metrics describes the outcome of the last run. They are written in the
// text exposition format for the node_exporter textfile collector.
type Metrics struct {
	Registry *prometheus.Registry

	RemovableAddresses prometheus.Gauge
	LeasesTotal        prometheus.Gauge
	LeasesRemoved      prometheus.Gauge
	LastRunTimestamp   prometheus.Gauge
	LastRunSuccess     prometheus.Gauge
}

// New creates the metrics in a private registry
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,

		RemovableAddresses: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "removable_addresses",
			Help:      "Hardware addresses found in the directory",
		}),
		LeasesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "leases_total",
			Help:      "Lease blocks in the lease file before the run",
		}),
		LeasesRemoved: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "leases_removed",
			Help:      "Lease blocks removed by the last run",
		}),
		LastRunTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Time of the last run",
		}),
		LastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "Whether the last run completed",
		}),
	}
}

// Observe records a completed run
func (m *Metrics) Observe(summary *models.Summary, now time.Time) {
	m.RemovableAddresses.Set(float64(summary.Addresses))
	m.LeasesTotal.Set(float64(summary.Total))
	m.LeasesRemoved.Set(float64(summary.Removed))
	m.LastRunTimestamp.Set(float64(now.Unix()))
	m.LastRunSuccess.Set(1)
}

// ObserveFailure records a run that was aborted
func (m *Metrics) ObserveFailure(now time.Time) {
	m.LastRunTimestamp.Set(float64(now.Unix()))
	m.LastRunSuccess.Set(0)
}

// WriteTextfile writes all metrics to path
func (m *Metrics) WriteTextfile(path string) error {
	return errors.Wrapf(prometheus.WriteToTextfile(path, m.Registry), "cannot write metrics to %s", path)
}
