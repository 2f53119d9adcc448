package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eventmarket"

var (
	once sync.Once

	queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Data client operations by model, action and outcome.",
		},
		[]string{"model", "action", "outcome"},
	)

	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Data client operation latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"model", "action"},
	)

	transactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(queries, queryDuration, transactions, httpRequests)
	})
}

// ObserveQuery records one data client operation. outcome is "ok" or an error kind.
func ObserveQuery(model, action, outcome string, took time.Duration) {
	queries.WithLabelValues(model, action, outcome).Inc()
	queryDuration.WithLabelValues(model, action).Observe(took.Seconds())
}

// IncTransaction counts a finished transaction: committed, rolled_back or timeout.
func IncTransaction(outcome string) {
	transactions.WithLabelValues(outcome).Inc()
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
