package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run metrics, served on the Prometheus endpoint when monitoring is enabled.
var (
	runsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airnode_coordinator_runs_total",
		Help: "Number of coordinator runs executed.",
	})
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airnode_requests_total",
		Help: "Number of API call requests processed, by final status.",
	}, []string{"status"})
	transactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "airnode_transactions_total",
		Help: "Number of transactions submitted, by kind.",
	}, []string{"kind"})
	aggregatedCalls = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "airnode_aggregated_calls_per_run",
		Help:    "Aggregated API calls executed per run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
)

func observeRun(s State) {
	runsTotal.Inc()
	aggregatedCalls.Observe(float64(len(s.AggregatedCalls)))

	for _, p := range s.Providers {
		for _, call := range p.Requests.APICalls {
			requestsTotal.WithLabelValues(string(call.Status)).Inc()
		}
	}

	for _, tx := range s.Transactions {
		transactionsTotal.WithLabelValues(tx.Kind).Inc()
	}
}
