// Package metrics exposes Prometheus counters for the gateway: HTTP traffic by
// route and the outcome of verification mail deliveries.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/authgate/authgate/internal/mail"
)

// Mail delivery results.
const (
	MailSent   = "sent"
	MailFailed = "failed"
)

// unmatchedRoute labels requests that no route handled, so that arbitrary
// paths cannot blow up label cardinality.
const unmatchedRoute = "unmatched"

// Metrics owns a private registry. Create one per process.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	MailDeliveries  *prometheus.CounterVec
}

// New creates the gateway metrics along with the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		MailDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_mail_deliveries_total",
				Help: "Total number of verification mail deliveries by result",
			},
			[]string{"result"},
		),
	}

	m.registry.MustRegister(collectors.NewGoCollector())
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m.registry.MustRegister(m.RequestsTotal, m.RequestDuration, m.MailDeliveries)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Middleware counts requests by their chi route pattern. It must run inside a
// chi router so the pattern is known once the request completes.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// InstrumentSender wraps next so every delivery attempt is counted.
func (m *Metrics) InstrumentSender(next mail.Sender) mail.Sender {
	return &instrumentedSender{next: next, deliveries: m.MailDeliveries}
}

type instrumentedSender struct {
	next       mail.Sender
	deliveries *prometheus.CounterVec
}

func (s *instrumentedSender) Send(ctx context.Context, msg mail.Message) error {
	if err := s.next.Send(ctx, msg); err != nil {
		s.deliveries.WithLabelValues(MailFailed).Inc()
		return err
	}
	s.deliveries.WithLabelValues(MailSent).Inc()
	return nil
}
