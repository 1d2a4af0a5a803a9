package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exports metrics through a Prometheus registry.
type PrometheusRecorder struct {
	registrations       *prometheus.CounterVec
	logins              *prometheus.CounterVec
	apiKeyVerifications *prometheus.CounterVec
	tokenVerifications  *prometheus.CounterVec
	keyCache            *prometheus.CounterVec
	gatewayDuration     *prometheus.HistogramVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// NewPrometheus registers the application metrics with reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		registrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authworker_registrations_total",
				Help: "Total number of registration attempts",
			},
			[]string{"status"},
		),
		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authworker_login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"status"},
		),
		apiKeyVerifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authworker_api_key_verifications_total",
				Help: "Total number of api key verifications",
			},
			[]string{"status"},
		),
		tokenVerifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authworker_token_verifications_total",
				Help: "Total number of session token verifications",
			},
			[]string{"status"},
		),
		keyCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authworker_key_cache_requests_total",
				Help: "Verified api key cache lookups",
			},
			[]string{"result"}, // hit, miss
		),
		gatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authworker_gateway_duration_seconds",
				Help:    "Credential store call latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"operation"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (p *PrometheusRecorder) IncRegistration(status string) {
	p.registrations.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncLogin(status string) {
	p.logins.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncAPIKeyVerification(status string) {
	p.apiKeyVerifications.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncTokenVerification(status string) {
	p.tokenVerifications.WithLabelValues(status).Inc()
}

func (p *PrometheusRecorder) IncKeyCacheHit() {
	p.keyCache.WithLabelValues("hit").Inc()
}

func (p *PrometheusRecorder) IncKeyCacheMiss() {
	p.keyCache.WithLabelValues("miss").Inc()
}

func (p *PrometheusRecorder) ObserveGatewayDuration(operation string, duration time.Duration) {
	p.gatewayDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
