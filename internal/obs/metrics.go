package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics agrupa métricas de requisições do servidor.
type HTTPMetrics struct {
	inFlight prometheus.Gauge
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics cria e registra as métricas HTTP.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.inFlight, m.total, m.duration)
	return m
}

// Instrument mede latência e volume por rota do chi.
func (m *HTTPMetrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}
		m.duration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		m.total.WithLabelValues(labels...).Inc()
	})
}

// Handler expõe o registro informado no formato Prometheus.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SessionMetrics conta resultados de login e renovação no cliente.
type SessionMetrics struct {
	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
}

// NewSessionMetrics cria e registra as métricas do cliente de sessão.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_refresh_exchanges_total",
			Help: "Refresh token exchanges by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.logins, m.refreshes)
	return m
}

// Login registra o resultado de uma tentativa de login.
func (m *SessionMetrics) Login(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

// Refresh registra o resultado de uma troca de refresh token.
func (m *SessionMetrics) Refresh(outcome string) {
	m.refreshes.WithLabelValues(outcome).Inc()
}
