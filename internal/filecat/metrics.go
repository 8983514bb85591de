package filecat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filecat_jobs_total",
			Help: "Batch jobs that reached a terminal status",
		},
		[]string{"kind", "status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "filecat_job_duration_seconds",
			Help:    "Wall-clock duration of batch jobs from start to finish",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"kind"},
	)

	jobItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filecat_job_items_total",
			Help: "Batch job items by outcome",
		},
		[]string{"kind", "result"},
	)
)

func observeJob(job *BatchJob) {
	jobsTotal.WithLabelValues(string(job.Kind), string(job.Status)).Inc()
	if job.StartedAt != nil && job.FinishedAt != nil {
		jobDuration.WithLabelValues(string(job.Kind)).Observe(job.FinishedAt.Sub(*job.StartedAt).Seconds())
	}
	jobItemsTotal.WithLabelValues(string(job.Kind), "processed").Add(float64(job.Processed))
	jobItemsTotal.WithLabelValues(string(job.Kind), "failed").Add(float64(job.Failed))
	jobItemsTotal.WithLabelValues(string(job.Kind), "skipped").Add(float64(job.Skipped))
}
