package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/vies-crawler/internal/progress"
)

// PrometheusSink turns the diagnostics stream into Prometheus collectors.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runDuration   prometheus.Histogram

	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	backoff       prometheus.Histogram
	dropped       prometheus.Counter
	yielded       prometheus.Counter

	jobs       *prometheus.CounterVec
	jobPolls   prometheus.Counter
	jobRuntime *prometheus.HistogramVec
}

// NewPrometheusSink registers the collectors against reg, defaulting to the
// global registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vies_progress_runs_started_total",
			Help: "Crawl runs started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vies_progress_runs_completed_total",
			Help: "Crawl runs that reached RUN_DONE.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vies_progress_run_duration_seconds",
			Help:    "Wall time per crawl run.",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800},
		}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vies_progress_fetches_total",
			Help: "Fetch completions partitioned by host and status class.",
		}, []string{"host", "status_class"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vies_progress_fetch_duration_seconds",
			Help:    "Fetch latency partitioned by host.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"host"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vies_progress_retries_total",
			Help: "Transient fetch failures that were retried, by host.",
		}, []string{"host"}),
		backoff: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vies_progress_backoff_seconds",
			Help:    "Backoff waits scheduled before retries.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vies_progress_items_dropped_total",
			Help: "Work items discarded after failure.",
		}),
		yielded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vies_progress_items_yielded_total",
			Help: "Result records delivered to the consumer.",
		}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vies_progress_batch_jobs_total",
			Help: "Batch job transitions partitioned by state.",
		}, []string{"state"}),
		jobPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vies_progress_batch_polls_total",
			Help: "Batch job status polls.",
		}),
		jobRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vies_progress_batch_job_runtime_seconds",
			Help:    "Time from submission to completion or failure.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted, s.runsCompleted, s.runDuration,
		s.fetches, s.fetchDuration, s.retries, s.backoff, s.dropped, s.yielded,
		s.jobs, s.jobPolls, s.jobRuntime,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	host := evt.Host
	if host == "" {
		host = "unknown"
	}
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.runsCompleted.Inc()
		observe(s.runDuration, evt)
	case progress.StageFetchDone:
		s.fetches.WithLabelValues(host, string(evt.StatusClass)).Inc()
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues(host).Observe(evt.Dur.Seconds())
		}
	case progress.StageFetchRetry:
		s.retries.WithLabelValues(host).Inc()
		observe(s.backoff, evt)
	case progress.StageItemDropped:
		s.dropped.Inc()
	case progress.StageItemYielded:
		s.yielded.Inc()
	case progress.StageJobSubmitted:
		s.jobs.WithLabelValues("submitted").Inc()
	case progress.StageJobPolled:
		s.jobPolls.Inc()
	case progress.StageJobComplete:
		s.jobs.WithLabelValues("complete").Inc()
		observe(s.jobRuntime.WithLabelValues("complete"), evt)
	case progress.StageJobFailed:
		s.jobs.WithLabelValues("failed").Inc()
		observe(s.jobRuntime.WithLabelValues("failed"), evt)
	}
}

func observe(o prometheus.Observer, evt progress.Event) {
	if evt.Dur > 0 {
		o.Observe(evt.Dur.Seconds())
	}
}

// Close implements progress.Sink; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
