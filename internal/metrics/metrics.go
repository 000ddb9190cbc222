// Package metrics exposes scan and restart metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"driftwatch/pkg/sdk/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "driftwatch"

// Metrics records scan and restart activity on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	scansTotal      *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	scanInFlight    prometheus.Gauge
	lastScan        prometheus.Gauge
	units           *prometheus.GaugeVec
	containers      *prometheus.GaugeVec
	restartsTotal   *prometheus.CounterVec
	restartDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		scansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scan passes by outcome.",
		}, []string{"outcome"}),
		scanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall-clock duration of scan passes.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		scanInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scan_in_flight",
			Help:      "Whether a scan pass is running.",
		}),
		lastScan: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_scan_timestamp_seconds",
			Help:      "Start time of the latest published scan.",
		}),
		units: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "units",
			Help:      "Deployment units in the latest scan by status.",
		}, []string{"status"}),
		containers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "containers",
			Help:      "Containers in the latest scan by status.",
		}, []string{"status"}),
		restartsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_total",
			Help:      "Unit restarts by outcome.",
		}, []string{"outcome"}),
		restartDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "restart_phase_duration_seconds",
			Help:      "Duration of the pull and recreate phases of a unit restart.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"phase"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ScanStarted() {
	m.scanInFlight.Set(1)
}

func (m *Metrics) ScanCompleted(result *types.ScanResult, took time.Duration) {
	m.scanInFlight.Set(0)
	m.scansTotal.WithLabelValues("success").Inc()
	m.scanDuration.Observe(took.Seconds())
	m.lastScan.Set(float64(result.Metadata.Datetime.Unix()))

	units, containers := result.Count()
	for _, status := range types.Statuses {
		m.units.WithLabelValues(string(status)).Set(float64(units[status]))
		m.containers.WithLabelValues(string(status)).Set(float64(containers[status]))
	}
}

func (m *Metrics) ScanFailed(_ error, took time.Duration) {
	m.scanInFlight.Set(0)
	m.scansTotal.WithLabelValues("failure").Inc()
	m.scanDuration.Observe(took.Seconds())
}

// ScanDiscarded counts a pass that lost to a newer cached result.
func (m *Metrics) ScanDiscarded(took time.Duration) {
	m.scanInFlight.Set(0)
	m.scansTotal.WithLabelValues("stale").Inc()
	m.scanDuration.Observe(took.Seconds())
}

// RestartFinished records one unit restart.
func (m *Metrics) RestartFinished(timing types.RestartTiming) {
	outcome := "success"
	if timing.Error != "" {
		outcome = "failure"
	}
	m.restartsTotal.WithLabelValues(outcome).Inc()
	m.restartDuration.WithLabelValues("pull").Observe(timing.Pull.Seconds())
	m.restartDuration.WithLabelValues("restart").Observe(timing.Restart.Seconds())
}
