package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jrsteele09/go-authcode-server/authcode"
	apperrors "github.com/jrsteele09/go-authcode-server/internal/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "authcode"

// Exchange outcomes recorded on the code_exchanges_total counter
const (
	OutcomeOK               = "ok"
	OutcomeNotFound         = "not_found"
	OutcomeRedirectMismatch = "redirect_mismatch"
	OutcomeClientMismatch   = "client_mismatch"
	OutcomeError            = "error"
)

var _ authcode.Observer = (*Metrics)(nil)

// Metrics owns a private registry so tests can create as many as they like
type Metrics struct {
	registry *prometheus.Registry

	codesIssued   prometheus.Counter
	codeExchanges *prometheus.CounterVec
	codesPruned   prometheus.Counter
	logins        *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codes_issued_total",
			Help:      "Total number of authorization codes issued.",
		}),
		codeExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_exchanges_total",
			Help:      "Authorization code redemptions by outcome.",
		}, []string{"outcome"}),
		codesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "codes_pruned_total",
			Help:      "Expired authorization codes removed from the store.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	for _, c := range []prometheus.Collector{
		m.codesIssued,
		m.codeExchanges,
		m.codesPruned,
		m.logins,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			log.Warn().Err(err).Msg("failed to register metric")
		}
	}
	return m
}

// CodeIssued implements authcode.Observer
func (m *Metrics) CodeIssued() {
	m.codesIssued.Inc()
}

// CodeRedeemed implements authcode.Observer
func (m *Metrics) CodeRedeemed(err error) {
	m.codeExchanges.WithLabelValues(ExchangeOutcome(err)).Inc()
}

// CodesPruned implements authcode.Observer
func (m *Metrics) CodesPruned(n int) {
	m.codesPruned.Add(float64(n))
}

// LoginAttempt records a login form submission
func (m *Metrics) LoginAttempt(success bool) {
	outcome := OutcomeOK
	if !success {
		outcome = "failed"
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one served HTTP request. route is the mux pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ExchangeOutcome maps a FetchAndConsume result onto a label value
func ExchangeOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case apperrors.Is(err, apperrors.ErrCodeNotFound):
		return OutcomeNotFound
	case apperrors.Is(err, apperrors.ErrRedirectMismatch):
		return OutcomeRedirectMismatch
	case apperrors.Is(err, apperrors.ErrClientMismatch):
		return OutcomeClientMismatch
	default:
		return OutcomeError
	}
}
