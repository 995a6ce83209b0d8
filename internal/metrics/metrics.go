package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	requests       *prometheus.CounterVec
	ticketsCreated *prometheus.CounterVec
	relaySends     *prometheus.CounterVec
	downstream     *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_webhook_requests_total",
				Help: "Webhook requests by route and HTTP status.",
			},
			[]string{"route", "status"},
		),
		ticketsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_webhook_tickets_created_total",
				Help: "Tickets inserted by channel.",
			},
			[]string{"channel"},
		),
		relaySends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticket_webhook_relay_messages_total",
				Help: "Outbound relay messages by result (sent, failed).",
			},
			[]string{"result"},
		),
		downstream: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticket_webhook_downstream_seconds",
				Help:    "Latency of calls to the store, agent and transport.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "outcome"},
		),
	}
	reg.MustRegister(m.requests, m.ticketsCreated, m.relaySends, m.downstream)
	return m
}

func (m *Metrics) ObserveRequest(route string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) TicketCreated(channel string) {
	if m == nil {
		return
	}
	m.ticketsCreated.WithLabelValues(channel).Inc()
}

func (m *Metrics) RelaySend(err error) {
	if m == nil {
		return
	}
	result := "sent"
	if err != nil {
		result = "failed"
	}
	m.relaySends.WithLabelValues(result).Inc()
}

// ObserveCall records one downstream round trip started at start.
func (m *Metrics) ObserveCall(service string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.downstream.WithLabelValues(service, outcome).Observe(time.Since(start).Seconds())
}
