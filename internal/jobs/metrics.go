package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs     *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against the provided registerer.
// When the registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bakeledger_job_runs_total",
			Help: "Background job runs by task and outcome.",
		}, []string{"task", "success"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bakeledger_job_failures_total",
			Help: "Background job failures by task.",
		}, []string{"task"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bakeledger_job_duration_seconds",
			Help:    "Background job duration by task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration)
	return m
}

// Tracker observes one job run.
type Tracker struct {
	metrics *Metrics
	task    string
	started time.Time
}

// Track starts timing one run of the named task.
func (m *Metrics) Track(task string) *Tracker {
	return &Tracker{metrics: m, task: task, started: time.Now()}
}

// End records the run outcome and passes the error through.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil {
		return err
	}
	t.metrics.duration.WithLabelValues(t.task).Observe(time.Since(t.started).Seconds())
	t.metrics.runs.WithLabelValues(t.task, strconv.FormatBool(err == nil)).Inc()
	if err != nil {
		t.metrics.failures.WithLabelValues(t.task).Inc()
	}
	return err
}
