// Package metrics exposes the controller's Prometheus instruments. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "growbox"

// Transport labels.
const (
	TransportDevice = "device"
	TransportRemote = "remote"
)

// Tick kind labels.
const (
	TickCoarse = "coarse"
	TickForced = "forced"
	TickFast   = "fast"
)

type Metrics struct {
	registry *prometheus.Registry

	received    *prometheus.CounterVec
	sent        *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	ticks       *prometheus.CounterVec
	intensity   prometheus.Gauge
	lightLevel  prometheus.Gauge
	mode        *prometheus.GaugeVec
	subsystemOn *prometheus.GaugeVec
}

// New registers every instrument on a fresh registry, so several controllers
// (or tests) never collide on the default one.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound messages by transport and command name.",
		}, []string{"transport", "command"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Outbound messages written to a transport.",
		}, []string{"transport"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Outbound messages dropped because the transport was not ready.",
		}, []string{"transport"}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Engine ticks by kind.",
		}, []string{"kind"}),
		intensity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "light_intensity",
			Help:      "Commanded light driver level in [0,1].",
		}),
		lightLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "light_level",
			Help:      "Last ambient light reading.",
		}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subsystem_mode",
			Help:      "Commanded mode per subsystem (0=off, 1=on, 2=auto).",
		}, []string{"subsystem"}),
		subsystemOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subsystem_on",
			Help:      "Actual on/off output per subsystem.",
		}, []string{"subsystem"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.received, m.sent, m.dropped, m.ticks,
		m.intensity, m.lightLevel, m.mode, m.subsystemOn,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Received(transport, command string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(transport, command).Inc()
}

func (m *Metrics) Sent(transport string) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(transport).Inc()
}

func (m *Metrics) Dropped(transport string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(transport).Inc()
}

func (m *Metrics) Tick(kind string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(kind).Inc()
}

func (m *Metrics) LightIntensity(v float64) {
	if m == nil {
		return
	}
	m.intensity.Set(v)
}

func (m *Metrics) LightLevel(v int) {
	if m == nil {
		return
	}
	m.lightLevel.Set(float64(v))
}

func (m *Metrics) Mode(subsystem string, mode int) {
	if m == nil {
		return
	}
	m.mode.WithLabelValues(subsystem).Set(float64(mode))
}

func (m *Metrics) SubsystemOn(subsystem string, on bool) {
	if m == nil {
		return
	}
	v := 0.0
	if on {
		v = 1
	}
	m.subsystemOn.WithLabelValues(subsystem).Set(v)
}
