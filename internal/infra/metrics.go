package infra

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lottodesk/platform/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Metrics holds the application's Prometheus collectors. Each process
// registers them on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	AdmissionItems  *prometheus.CounterVec
	BillsSubmitted  prometheus.Counter
	BillAmount      prometheus.Counter
	UsageReconcile  prometheus.Counter
	HTTPDuration    *prometheus.HistogramVec
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
}

// NewMetrics creates and registers all collectors, plus the Go runtime and
// process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		AdmissionItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lotto_admission_items_total",
			Help: "Bet lines evaluated by the admission engine, by outcome.",
		}, []string{"status"}),
		BillsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lotto_bills_submitted_total",
			Help: "Bills persisted.",
		}),
		BillAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lotto_bill_amount_total",
			Help: "Sum of admitted bill amounts.",
		}),
		UsageReconcile: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lotto_limit_usage_reconcile_total",
			Help: "Bills whose limit usage increment failed and needs reconciliation.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lotto_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lotto_outbox_published_total",
			Help: "Outbox events published to Kafka.",
		}),
		OutboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lotto_outbox_publish_failures_total",
			Help: "Outbox publish attempts that failed.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AdmissionItems,
		m.BillsSubmitted,
		m.BillAmount,
		m.UsageReconcile,
		m.HTTPDuration,
		m.OutboxPublished,
		m.OutboxFailures,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAdmission counts outcomes per status.
func (m *Metrics) ObserveAdmission(counts map[domain.AdmissionStatus]int) {
	for status, n := range counts {
		m.AdmissionItems.WithLabelValues(string(status)).Add(float64(n))
	}
}

// ObserveBill records a persisted bill.
func (m *Metrics) ObserveBill(amount decimal.Decimal) {
	m.BillsSubmitted.Inc()
	m.BillAmount.Add(amount.InexactFloat64())
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, fmt.Sprint(status)).Observe(elapsed.Seconds())
}

// HealthFunc reports whether a dependency is healthy.
type HealthFunc func(ctx context.Context) error

// StartMetricsServer serves /metrics and /healthz on a side port for workers
// that have no API router. The caller shuts the returned server down.
func StartMetricsServer(port int, m *Metrics, healthFn HealthFunc) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()

		if err := healthFn(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "unhealthy: %v", err)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
