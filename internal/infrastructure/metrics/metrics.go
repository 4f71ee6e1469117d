// Package metrics exposes Prometheus counters fed from domain events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/classmark/classmark-hub/internal/domain/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "classmark"

// Metrics holds the collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	Classifications  *prometheus.CounterVec
	Enrollments      *prometheus.CounterVec
	GroupsConfigured prometheus.Counter
	AutoAbsences     prometheus.Counter
	EventHandlers    *prometheus.HistogramVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	JobRuns          *prometheus.CounterVec
	JobDuration      *prometheus.HistogramVec
}

// New creates the collectors on a private registry. withRuntime adds the Go
// and process collectors.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry: reg,
		Classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendance_classifications_total",
			Help:      "Attendance records by strategy, resulting state and source.",
		}, []string{"strategy", "state", "source"}),
		Enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollments_total",
			Help:      "Enrollment changes by outcome (created, rejected, removed).",
		}, []string{"outcome"}),
		GroupsConfigured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_configurations_total",
			Help:      "Tolerance or strategy changes.",
		}),
		AutoAbsences: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_absences_total",
			Help:      "Absences recorded when closing class meetings.",
		}),
		EventHandlers: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handler_duration_seconds",
			Help:      "Event handler run time by event type and result.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		}, []string{"event_type", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Background job runs by job and result.",
		}, []string{"job", "result"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Background job run time.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 30, 120},
		}, []string{"job"}),
	}

	reg.MustRegister(
		m.Classifications,
		m.Enrollments,
		m.GroupsConfigured,
		m.AutoAbsences,
		m.EventHandlers,
		m.HTTPRequests,
		m.HTTPDuration,
		m.JobRuns,
		m.JobDuration,
	)
	return m
}

// Registry returns the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Subscribe wires the counters to the event bus.
func (m *Metrics) Subscribe(bus shared.EventSubscriber) error {
	subs := map[shared.EventType]shared.EventHandler{
		shared.EventAttendanceMarked:   m.onAttendanceMarked,
		shared.EventAttendanceClosed:   m.onAttendanceClosed,
		shared.EventEnrollmentCreated:  m.onEnrollment("created"),
		shared.EventEnrollmentRejected: m.onEnrollment("rejected"),
		shared.EventEnrollmentRemoved:  m.onEnrollment("removed"),
		shared.EventGroupConfigured: func(shared.Event) error {
			m.GroupsConfigured.Inc()
			return nil
		},
	}
	for eventType, h := range subs {
		if err := bus.Subscribe(eventType, h); err != nil {
			return err
		}
	}
	return nil
}

// ObserveHandler matches messaging.Config.Observe.
func (m *Metrics) ObserveHandler(eventType shared.EventType, took time.Duration, err error) {
	m.EventHandlers.WithLabelValues(string(eventType), result(err)).Observe(took.Seconds())
}

// ObserveJob records one background job run.
func (m *Metrics) ObserveJob(job string, took time.Duration, err error) {
	m.JobRuns.WithLabelValues(job, result(err)).Inc()
	m.JobDuration.WithLabelValues(job).Observe(took.Seconds())
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route string, code int, took time.Duration) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(took.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) onAttendanceMarked(e shared.Event) error {
	p := e.Payload()
	m.Classifications.WithLabelValues(str(p["strategy"]), str(p["state"]), str(p["source"])).Inc()
	return nil
}

func (m *Metrics) onAttendanceClosed(e shared.Event) error {
	if n, ok := e.Payload()["auto_absences"].(int); ok && n > 0 {
		m.AutoAbsences.Add(float64(n))
	}
	return nil
}

func (m *Metrics) onEnrollment(outcome string) shared.EventHandler {
	return func(shared.Event) error {
		m.Enrollments.WithLabelValues(outcome).Inc()
		return nil
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
