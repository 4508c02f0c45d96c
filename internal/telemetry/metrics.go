package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики ядра. Экспортируются на /metrics (promhttp) в бинарниках.
var (
	// runsTotal — количество завершённых runs по итоговому статусу.
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_runs_total",
		Help: "Total pipeline runs by terminal status",
	}, []string{"status"})

	// jobsTotal — количество завершённых jobs по статусу.
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_jobs_total",
		Help: "Total jobs (including matrix instances) by terminal status",
	}, []string{"status"})

	// jobDuration — гистограмма длительности jobs.
	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "conveyor_job_duration_seconds",
		Help:    "Job execution duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// tasksTotal — количество выполненных tasks.
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conveyor_tasks_total",
		Help: "Total executed tasks by outcome",
	}, []string{"outcome"})
)

// ObserveRun учитывает завершённый run.
func ObserveRun(status string) {
	runsTotal.WithLabelValues(status).Inc()
}

// ObserveJob учитывает завершённый job (или matrix-экземпляр).
func ObserveJob(status string, d time.Duration) {
	jobsTotal.WithLabelValues(status).Inc()
	if d > 0 {
		jobDuration.Observe(d.Seconds())
	}
}

// ObserveTask учитывает выполненный task.
func ObserveTask(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	tasksTotal.WithLabelValues(outcome).Inc()
}
