// Package metrics exposes Prometheus collectors for the metadata crawl.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flico/pkg/logger"
)

var (
	apiRequestsTotal         *prometheus.CounterVec
	apiRequestDuration       *prometheus.HistogramVec
	pagesTotal               *prometheus.CounterVec
	recordsWrittenTotal      prometheus.Counter
	rateLimitCooldownsTotal  prometheus.Counter
	requestPacingSeconds     prometheus.Histogram
	institutionOutcomesTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		apiRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flico_api_requests_total",
				Help: "Total number of Flickr API calls, labeled by method and outcome.",
			},
			[]string{"method", "outcome"},
		)

		apiRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flico_api_request_duration_seconds",
				Help:    "Histogram of Flickr API call latencies, labeled by method.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method"},
		)

		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flico_pages_total",
				Help: "Total number of photo pages processed, labeled by whether they yielded new records.",
			},
			[]string{"result"},
		)

		recordsWrittenTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "flico_records_written_total",
				Help: "Total number of metadata rows appended to institution stores.",
			},
		)

		rateLimitCooldownsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "flico_rate_limit_cooldowns_total",
				Help: "Total number of cooldowns taken after the API reported a rate limit.",
			},
		)

		requestPacingSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flico_request_pacing_seconds",
				Help:    "Histogram of client-side pacing waits before API calls.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		institutionOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flico_institution_outcomes_total",
				Help: "Total number of institution downloads, labeled by final status.",
			},
			[]string{"status"},
		)
	})
}

// ObserveAPIRequest records one Flickr API call.
func ObserveAPIRequest(method, outcome string, duration time.Duration) {
	Init()
	apiRequestsTotal.WithLabelValues(method, outcome).Inc()
	apiRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// ObservePage records a processed page and the rows it added.
func ObservePage(added int) {
	Init()
	if added > 0 {
		pagesTotal.WithLabelValues("new").Inc()
		recordsWrittenTotal.Add(float64(added))
		return
	}
	pagesTotal.WithLabelValues("empty").Inc()
}

// ObserveRateLimitCooldown counts a cooldown after a rate-limit response.
func ObserveRateLimitCooldown() {
	Init()
	rateLimitCooldownsTotal.Inc()
}

// ObservePacingDelay records time spent waiting on the request limiter.
func ObservePacingDelay(duration time.Duration) {
	Init()
	requestPacingSeconds.Observe(duration.Seconds())
}

// ObserveInstitution records the final status of one institution download.
func ObserveInstitution(status string) {
	Init()
	institutionOutcomesTotal.WithLabelValues(status).Inc()
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, log logger.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("address", addr).Info("Metrics listener started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
