package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	queriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosey_queries_total",
			Help: "Total number of query operations executed",
		},
		[]string{"kind", "outcome"},
	)

	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rosey_query_duration_seconds",
			Help:    "Query operation duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	migrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rosey_migrations_total",
			Help: "Total number of migration executions",
		},
		[]string{"namespace", "direction", "outcome"},
	)

	migrationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rosey_migration_duration_seconds",
			Help:    "Per-migration execution duration",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60},
		},
		[]string{"namespace", "direction"},
	)
)

// ObserveQuery records one query operation (kind: search, update, aggregate).
func ObserveQuery(kind, outcome string, d time.Duration) {
	queriesTotal.WithLabelValues(kind, outcome).Inc()
	queryDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveMigration records one migration execution (direction: up, down).
func ObserveMigration(namespace, direction, outcome string, d time.Duration) {
	migrationsTotal.WithLabelValues(namespace, direction, outcome).Inc()
	migrationDuration.WithLabelValues(namespace, direction).Observe(d.Seconds())
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
