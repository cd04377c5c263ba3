package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitrecon_api_requests_total",
			Help: "Total API requests by response status",
		},
		[]string{"status"},
	)

	APIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gitrecon_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gitrecon_rate_limit_hits_total",
			Help: "Total quota-exhaustion responses across all tokens",
		},
	)

	TokenFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gitrecon_token_failures_total",
			Help: "Total tokens permanently disabled after auth failures",
		},
	)

	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitrecon_search_pages_total",
			Help: "Search pages processed, by outcome",
		},
		[]string{"outcome"}, // fetched | skipped | requeued
	)

	Findings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gitrecon_findings_total",
			Help: "Unique findings recorded, by kind",
		},
		[]string{"kind"}, // subdomain | path
	)
)

// RecordPage records the outcome of one search-page unit.
func RecordPage(outcome string) {
	PagesFetched.WithLabelValues(outcome).Inc()
}

// RecordFinding records one unique finding of the given kind.
func RecordFinding(kind string) {
	Findings.WithLabelValues(kind).Inc()
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on the specified port and exposes /metrics.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		// Suppress the error from intentional shutdown
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
