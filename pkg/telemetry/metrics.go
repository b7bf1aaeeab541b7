package telemetry

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

var Module = fx.Module("telemetry",
	fx.Provide(func() prometheus.Registerer { return prometheus.DefaultRegisterer }),
	fx.Provide(NewMetrics),
)

// Metrics exposes the Prometheus series scraped from /metrics.
type Metrics struct {
	apiRequests        *prometheus.CounterVec
	apiDuration        *prometheus.HistogramVec
	outboxDispatch     *prometheus.CounterVec
	outboxDispatchTime *prometheus.HistogramVec
	outboxDelivered    prometheus.Counter
	outboxBacklog      prometheus.Gauge
	xpRulesReloads     *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	apiRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "actionboard_api_requests_total",
		Help: "Counts API requests by route, method and status.",
	}, []string{"route", "method", "status"})

	apiDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "actionboard_api_duration_seconds",
		Help:    "API request latency per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	outboxDispatch := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "actionboard_outbox_dispatch_total",
		Help: "Counts relay batches by status.",
	}, []string{"status"})

	outboxDispatchTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "actionboard_outbox_dispatch_duration_seconds",
		Help:    "Relay batch durations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})

	outboxDelivered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "actionboard_outbox_delivered_total",
		Help: "Events handed to the broker.",
	})

	outboxBacklog := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "actionboard_outbox_backlog",
		Help: "Number of pending events in the outbox.",
	})

	xpRulesReloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "actionboard_xp_rules_reloads_total",
		Help: "XP rules file reloads by result.",
	}, []string{"result"})

	reg.MustRegister(
		apiRequests,
		apiDuration,
		outboxDispatch,
		outboxDispatchTime,
		outboxDelivered,
		outboxBacklog,
		xpRulesReloads,
	)

	return &Metrics{
		apiRequests:        apiRequests,
		apiDuration:        apiDuration,
		outboxDispatch:     outboxDispatch,
		outboxDispatchTime: outboxDispatchTime,
		outboxDelivered:    outboxDelivered,
		outboxBacklog:      outboxBacklog,
		xpRulesReloads:     xpRulesReloads,
	}
}

// ObserveAPIRequest records an API request and latency.
func (m *Metrics) ObserveAPIRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	routeLabel := sanitizeLabel(route)
	methodLabel := sanitizeLabel(method)
	m.apiRequests.WithLabelValues(routeLabel, methodLabel, statusClass(status)).Inc()
	m.apiDuration.WithLabelValues(routeLabel, methodLabel).Observe(duration.Seconds())
}

// RecordOutboxBatch registers relay batch metrics.
func (m *Metrics) RecordOutboxBatch(status string, count int, duration time.Duration) {
	if m == nil {
		return
	}
	m.outboxDispatch.WithLabelValues(status).Inc()
	m.outboxDispatchTime.WithLabelValues(status).Observe(duration.Seconds())
	if count > 0 {
		m.outboxDelivered.Add(float64(count))
	}
}

// SetOutboxBacklog updates the backlog gauge.
func (m *Metrics) SetOutboxBacklog(value float64) {
	if m == nil {
		return
	}
	m.outboxBacklog.Set(value)
}

// RecordXPRulesReload counts hot reloads of the XP rules file.
func (m *Metrics) RecordXPRulesReload(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "rejected"
	}
	m.xpRulesReloads.WithLabelValues(result).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func sanitizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
