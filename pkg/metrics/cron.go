package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hotelbooker"

// Job run results.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// CronJobMetrics records scheduled job runs and cycles skipped because
// another worker held the lock.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	skipped  prometheus.Counter
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of scheduled job runs.",
			Buckets:   []float64{.05, .25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by result.",
		}, []string{"job", "result"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "cycles_skipped_total",
			Help:      "Cycles skipped because the scheduler lock was held elsewhere.",
		}),
	}
	reg.MustRegister(m.duration, m.runs, m.skipped)
	return m
}

// ObserveRun records one run of job. A non-nil err counts as a failure.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	result := RunSucceeded
	if err != nil {
		result = RunFailed
	}
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	c.runs.WithLabelValues(job, result).Inc()
}

func (c *CronJobMetrics) IncSkipped() {
	if c == nil || c.skipped == nil {
		return
	}
	c.skipped.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
