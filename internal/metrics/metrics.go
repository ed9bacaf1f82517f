// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	questionsCreated prometheus.Counter
	answersCreated   prometheus.Counter
	answerConflicts  prometheus.Counter
	historyFailures  *prometheus.CounterVec
	exports          *prometheus.CounterVec
	notifications    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "advisory_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "advisory_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "method"}),
		questionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisory_questions_created_total",
			Help: "Questions submitted.",
		}),
		answersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisory_answers_created_total",
			Help: "Answers recorded.",
		}),
		answerConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisory_answer_conflicts_total",
			Help: "Answer attempts rejected because the question was already answered.",
		}),
		historyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "advisory_history_write_failures_total",
			Help: "History rows that could not be written.",
		}, []string{"kind"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "advisory_exports_total",
			Help: "Exports produced by format and outcome.",
		}, []string{"format", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "advisory_notifications_total",
			Help: "Answer notification emails by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.questionsCreated,
		m.answersCreated,
		m.answerConflicts,
		m.historyFailures,
		m.exports,
		m.notifications,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) QuestionCreated() {
	if m != nil {
		m.questionsCreated.Inc()
	}
}

func (m *Metrics) AnswerCreated() {
	if m != nil {
		m.answersCreated.Inc()
	}
}

func (m *Metrics) AnswerConflict() {
	if m != nil {
		m.answerConflicts.Inc()
	}
}

// HistoryFailure matches store.PostgresStore.OnHistoryFailure.
func (m *Metrics) HistoryFailure(kind string) {
	if m != nil {
		m.historyFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) Export(format string, err error) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(format, outcome(err)).Inc()
}

func (m *Metrics) Notification(err error) {
	if m != nil {
		m.notifications.WithLabelValues(outcome(err)).Inc()
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
