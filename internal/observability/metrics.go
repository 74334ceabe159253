package observability

import "github.com/prometheus/client_golang/prometheus"

// Auth outcome label values for [AuthAttemptsTotal].
const (
	AuthOutcomeAuthenticated = "authenticated"
	AuthOutcomeAnonymous     = "anonymous"
	AuthOutcomeRejected      = "rejected"
	AuthOutcomeMalformed     = "malformed"
)

var (
	// AuthAttemptsTotal counts identity resolutions by outcome.
	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapshelf_auth_attempts_total",
			Help: "Identity resolutions by outcome",
		},
		[]string{"outcome"},
	)

	// SessionBindFailuresTotal counts connections discarded because the
	// caller id could not be stamped onto the session.
	SessionBindFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swapshelf_session_bind_failures_total",
			Help: "Connections discarded after a failed session stamp",
		},
	)

	// PoolAcquireDuration records how long requests wait for a pooled
	// database connection.
	PoolAcquireDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "swapshelf_pool_acquire_duration_seconds",
			Help:    "Connection pool acquisition wait time",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// RequestsTotal counts HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swapshelf_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		AuthAttemptsTotal,
		SessionBindFailuresTotal,
		PoolAcquireDuration,
		RequestsTotal,
	)
}
