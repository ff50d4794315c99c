// Package metrics содержит Prometheus метрики сервера авторизации.
//
// Все коллекторы регистрируются в собственном реестре, глобальный
// prometheus.DefaultRegisterer не используется.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tokenauth"

// Результаты операций
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Классы токенов
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Metrics набор коллекторов сервера.
// Методы Record* безопасно вызывать на nil *Metrics.
type Metrics struct {
	registry          *prometheus.Registry
	logins            *prometheus.CounterVec
	registrations     *prometheus.CounterVec
	refreshes         *prometheus.CounterVec
	verifyFailures    *prometheus.CounterVec
	revocations       *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	rateLimitRejected prometheus.Counter
}

// New создает метрики и регистрирует их в новом реестре
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Total number of login attempts by result",
		}, []string{"result"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Total number of registration attempts by result",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Total number of refresh token exchanges by result",
		}, []string{"result"}),
		verifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_verification_failures_total",
			Help:      "Total number of rejected tokens by token class and failure kind",
		}, []string{"token", "kind"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_total",
			Help:      "Total number of refresh token revocations by result",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimitRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),
	}

	reg.MustRegister(
		m.logins,
		m.registrations,
		m.refreshes,
		m.verifyFailures,
		m.revocations,
		m.httpRequests,
		m.httpDuration,
		m.rateLimitRejected,
	)

	return m
}

// Registry возвращает реестр метрик
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler возвращает HTTP handler для /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordLogin учитывает попытку входа
func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// RecordRegistration учитывает попытку регистрации
func (m *Metrics) RecordRegistration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

// RecordRefresh учитывает обмен refresh токена
func (m *Metrics) RecordRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

// RecordVerificationFailure учитывает отклоненный токен.
// kind - короткое имя причины: missing, malformed, invalid, expired, revoked, error.
func (m *Metrics) RecordVerificationFailure(token, kind string) {
	if m == nil {
		return
	}
	m.verifyFailures.WithLabelValues(token, kind).Inc()
}

// RecordRevocation учитывает отзыв refresh токенов пользователя
func (m *Metrics) RecordRevocation(result string) {
	if m == nil {
		return
	}
	m.revocations.WithLabelValues(result).Inc()
}

// RecordRateLimited учитывает запрос, отклоненный rate limiter-ом
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitRejected.Inc()
}

// ObserveHTTPRequest учитывает обработанный HTTP запрос
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
