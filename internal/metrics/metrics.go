// Package metrics holds the Prometheus collectors for the bridge. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ambientweather"

// Reading outcomes.
const (
	ReadingAccepted = "accepted"
	ReadingRejected = "rejected"
)

// Announcement outcomes.
const (
	AnnouncePublished = "published"
	AnnounceFailed    = "failed"
	AnnounceCacheErr  = "cache_error"
)

type Metrics struct {
	registry *prometheus.Registry

	ReadingsTotal      *prometheus.CounterVec
	AnnouncementsTotal *prometheus.CounterVec
	PublishErrorsTotal *prometheus.CounterVec
	CacheClearsTotal   prometheus.Counter
	MQTTConnected      prometheus.Gauge
}

// New registers every collector, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ReadingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "readings_total",
				Help:      "Readings received from stations, by outcome",
			},
			[]string{"result"},
		),

		AnnouncementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "announcements_total",
				Help:      "Discovery announcements attempted, by outcome",
			},
			[]string{"result"},
		),

		PublishErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "publish_errors_total",
				Help:      "Failed MQTT publishes, by message kind",
			},
			[]string{"kind"},
		),

		CacheClearsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "cache_clears_total",
				Help:      "Times the announced-sensor set was cleared by a birth message",
			},
		),

		MQTTConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "mqtt",
				Name:      "connected",
				Help:      "MQTT connection status (0=disconnected, 1=connected)",
			},
		),
	}

	m.registry.MustRegister(
		m.ReadingsTotal,
		m.AnnouncementsTotal,
		m.PublishErrorsTotal,
		m.CacheClearsTotal,
		m.MQTTConnected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Reading(result string) {
	if m == nil {
		return
	}
	m.ReadingsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Announcement(result string) {
	if m == nil {
		return
	}
	m.AnnouncementsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) PublishError(kind string) {
	if m == nil {
		return
	}
	m.PublishErrorsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) CacheCleared() {
	if m == nil {
		return
	}
	m.CacheClearsTotal.Inc()
}

func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.MQTTConnected.Set(1)
	} else {
		m.MQTTConnected.Set(0)
	}
}
