package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RemovalRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optout_removal_requests_total",
			Help: "Total number of public removal request submissions.",
		},
		[]string{"result"},
	)

	VerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optout_verifications_total",
			Help: "Total number of verification token redemptions.",
		},
		[]string{"result"},
	)

	AdminActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optout_admin_actions_total",
			Help: "Total number of privileged gateway actions.",
		},
		[]string{"action", "result"},
	)

	BlocklistLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optout_blocklist_lookups_total",
			Help: "Total number of ingest blocklist lookups.",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// MustRegister registers all collectors with the default registry. Safe to
// call more than once.
func MustRegister() {
	registerOnce.Do(register)
}

func register() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		RemovalRequestsTotal,
		VerificationsTotal,
		AdminActionsTotal,
		BlocklistLookupsTotal,
	)
}
