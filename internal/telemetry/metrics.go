package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "probe"

// Metrics — метрики прогонов.
//
// Все методы допускают nil-получатель: без метрик раннер работает так же.
type Metrics struct {
	Runs         *prometheus.CounterVec
	Scenarios    *prometheus.CounterVec
	Steps        *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	APIRequests  *prometheus.CounterVec
	APIDuration  prometheus.Histogram
}

// NewMetrics регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total suite runs by final status",
		}, []string{"status"}),
		Scenarios: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Total scenarios by status",
		}, []string{"status"}),
		Steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Total steps by status",
		}, []string{"status"}),
		StepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step execution time",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"status"}),
		APIRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "HTTP requests sent by API steps",
		}, []string{"method", "code"}),
		APIDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "HTTP request time as seen by API steps",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// ObserveRun учитывает завершённый прогон.
func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
}

// ObserveScenario учитывает завершённый сценарий.
func (m *Metrics) ObserveScenario(status string) {
	if m == nil {
		return
	}
	m.Scenarios.WithLabelValues(status).Inc()
}

// ObserveStep учитывает выполненный шаг.
func (m *Metrics) ObserveStep(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Steps.WithLabelValues(status).Inc()
	m.StepDuration.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveAPI учитывает HTTP запрос; сигнатура совпадает с apiclient.Observer.
func (m *Metrics) ObserveAPI(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.APIRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.APIDuration.Observe(d.Seconds())
}

// ServerMetrics — метрики HTTP сервера (демо-приложение, scheduler).
type ServerMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewServerMetrics регистрирует метрики сервера с подсистемой subsystem.
func NewServerMetrics(reg prometheus.Registerer, subsystem string) *ServerMetrics {
	f := promauto.With(reg)

	return &ServerMetrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled",
		}, []string{"method", "route", "code"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request handling time",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Observe учитывает обработанный запрос.
func (m *ServerMetrics) Observe(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.Duration.WithLabelValues(route).Observe(d.Seconds())
}
