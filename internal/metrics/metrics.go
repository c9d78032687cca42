// Package metrics
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negcheck_fetch_total",
			Help: "Page fetches, labeled by outcome (ok, skipped, robots, status, content_type, too_large, error).",
		},
		[]string{"result"},
	)
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "negcheck_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	VerifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negcheck_verify_total",
			Help: "Verified records, labeled by finding and reason.",
		},
		[]string{"finding", "reason"},
	)
	RecordsParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negcheck_records_parsed_total",
			Help: "Records recovered from uploaded reports, labeled by category.",
		},
		[]string{"category"},
	)
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "negcheck_requests_total",
			Help: "Report requests handled, labeled by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(FetchTotal)
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(VerifyTotal)
	prometheus.MustRegister(RecordsParsed)
	prometheus.MustRegister(RequestsTotal)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
