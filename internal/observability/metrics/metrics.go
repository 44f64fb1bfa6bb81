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

	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of bearer token authentications by result.",
		},
		[]string{"result"},
	)

	AuthLoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts.",
		},
		[]string{"result"},
	)

	AdoptionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adoption_requests_total",
			Help: "Total number of adoption request operations by action and result.",
		},
		[]string{"action", "result"},
	)
)

var registerOnce sync.Once

// MustRegister registers every collector with the default registry,
// tagging all series with serviceName. Later calls are no-ops.
func MustRegister(serviceName string) {
	registerOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
		reg.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			AuthAttemptsTotal,
			AuthLoginsTotal,
			AdoptionRequestsTotal,
		)
	})
}
