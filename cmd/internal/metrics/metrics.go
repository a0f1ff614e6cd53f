// Package metrics owns the private Prometheus registry exposed at /metrics.
//
// Every recorder method is nil-safe so packages can take a *Metrics and tests can pass nil.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors.
type Metrics struct {
	reg *prometheus.Registry

	chatSubmits      *prometheus.CounterVec
	leadsCaptured    *prometheus.CounterVec
	whatsappSends    *prometheus.CounterVec
	loginAttempts    *prometheus.CounterVec
	subscribers      *prometheus.GaugeVec
	changesDelivered *prometheus.CounterVec
	changesDropped   prometheus.Counter
}

// New builds a registry with the Go and process collectors plus the service metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		reg: reg,
		chatSubmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supreme",
			Subsystem: "chat",
			Name:      "submits_total",
			Help:      "Chat submissions by result.",
		}, []string{"result"}),
		leadsCaptured: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supreme",
			Subsystem: "leads",
			Name:      "captured_total",
			Help:      "Lead capture requests by result.",
		}, []string{"result"}),
		whatsappSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supreme",
			Subsystem: "whatsapp",
			Name:      "sends_total",
			Help:      "Outbound WhatsApp sends by result.",
		}, []string{"result"}),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supreme",
			Subsystem: "auth",
			Name:      "admin_logins_total",
			Help:      "Admin console login attempts by result.",
		}, []string{"result"}),
		subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "supreme",
			Subsystem: "realtime",
			Name:      "subscribers",
			Help:      "Active change subscriptions per table.",
		}, []string{"table"}),
		changesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "supreme",
			Subsystem: "realtime",
			Name:      "changes_delivered_total",
			Help:      "Change envelopes queued to subscribers.",
		}, []string{"table", "type"}),
		changesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "supreme",
			Subsystem: "realtime",
			Name:      "changes_dropped_total",
			Help:      "Change envelopes dropped because a subscriber queue was full.",
		}),
	}

	reg.MustRegister(
		m.chatSubmits,
		m.leadsCaptured,
		m.whatsappSends,
		m.loginAttempts,
		m.subscribers,
		m.changesDelivered,
		m.changesDropped,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) ChatSubmit(result string) {
	if m == nil {
		return
	}
	m.chatSubmits.WithLabelValues(result).Inc()
}

func (m *Metrics) LeadCaptured(result string) {
	if m == nil {
		return
	}
	m.leadsCaptured.WithLabelValues(result).Inc()
}

func (m *Metrics) WhatsAppSend(result string) {
	if m == nil {
		return
	}
	m.whatsappSends.WithLabelValues(result).Inc()
}

func (m *Metrics) AdminLogin(result string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) SubscriberAdded(table string) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(table).Inc()
}

func (m *Metrics) SubscriberRemoved(table string) {
	if m == nil {
		return
	}
	m.subscribers.WithLabelValues(table).Dec()
}

func (m *Metrics) ChangeDelivered(table, typ string) {
	if m == nil {
		return
	}
	m.changesDelivered.WithLabelValues(table, typ).Inc()
}

func (m *Metrics) ChangeDropped() {
	if m == nil {
		return
	}
	m.changesDropped.Inc()
}
