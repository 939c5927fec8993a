package runner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricTasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "runner_tasks_total",
		Help:      "Number of runner tasks by terminal status.",
	}, []string{"status"})
	metricTaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "arena",
		Name:      "runner_task_duration_seconds",
		Help:      "Wall-clock duration of runner tasks.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
	})
)

func recordTask(status string, duration time.Duration) {
	metricTasksTotal.WithLabelValues(status).Inc()
	metricTaskDuration.Observe(duration.Seconds())
}
