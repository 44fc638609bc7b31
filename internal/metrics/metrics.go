// Package metrics holds the Prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vault_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "route"})

	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_transfers_total",
		Help: "Transfer attempts by outcome kind",
	}, []string{"outcome"})

	IdempotencyEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_idempotency_events_total",
		Help: "Idempotency guard decisions (hit, miss, stored, in_flight, cache_error)",
	}, []string{"event"})

	SignatureRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_signature_rejections_total",
		Help: "Requests rejected by the signature gate",
	}, []string{"reason"})

	RateLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vault_exchange_rate_lookups_total",
		Help: "Exchange rate lookups by cache result",
	}, []string{"result"})
)
