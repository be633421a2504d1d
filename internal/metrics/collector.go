package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// JobStats provides the metrics collector access to job pool state.
type JobStats interface {
	Pending() int
	Running() int
	Tracked() int
	Completed() int64
	Failed() int64
}

// CredentialStats provides the metrics collector access to credential store state.
type CredentialStats interface {
	Providers() int
	Reloads() int64
}

// Collector implements prometheus.Collector to read live gauges at scrape time.
type Collector struct {
	jobs  JobStats
	creds CredentialStats

	// Descriptors for scrape-time gauges.
	jobsPending    *prometheus.Desc
	jobsRunning    *prometheus.Desc
	jobsTracked    *prometheus.Desc
	jobsCompleted  *prometheus.Desc
	jobsFailed     *prometheus.Desc
	credProviders  *prometheus.Desc
	credReloads    *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// jobs may be nil if no pool is running; creds may be nil (metrics report 0).
func NewCollector(jobs JobStats, creds CredentialStats) *Collector {
	return &Collector{
		jobs:  jobs,
		creds: creds,
		jobsPending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "jobs", "pending"),
			"Transcription jobs waiting in the queue.",
			nil, nil,
		),
		jobsRunning: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "jobs", "running"),
			"Transcription jobs currently being processed.",
			nil, nil,
		),
		jobsTracked: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "jobs", "tracked"),
			"Job records held in memory for status lookup.",
			nil, nil,
		),
		jobsCompleted: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "jobs", "completed_total"),
			"Transcription jobs completed since start.",
			nil, nil,
		),
		jobsFailed: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "jobs", "failed_total"),
			"Transcription jobs failed since start.",
			nil, nil,
		),
		credProviders: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "credentials", "providers"),
			"Providers with credentials in the store.",
			nil, nil,
		),
		credReloads: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "credentials", "reloads_total"),
			"Credential file reloads applied since start.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.jobsPending
	ch <- c.jobsRunning
	ch <- c.jobsTracked
	ch <- c.jobsCompleted
	ch <- c.jobsFailed
	ch <- c.credProviders
	ch <- c.credReloads
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.jobs != nil {
		ch <- prometheus.MustNewConstMetric(c.jobsPending, prometheus.GaugeValue, float64(c.jobs.Pending()))
		ch <- prometheus.MustNewConstMetric(c.jobsRunning, prometheus.GaugeValue, float64(c.jobs.Running()))
		ch <- prometheus.MustNewConstMetric(c.jobsTracked, prometheus.GaugeValue, float64(c.jobs.Tracked()))
		ch <- prometheus.MustNewConstMetric(c.jobsCompleted, prometheus.CounterValue, float64(c.jobs.Completed()))
		ch <- prometheus.MustNewConstMetric(c.jobsFailed, prometheus.CounterValue, float64(c.jobs.Failed()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.jobsPending, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.jobsRunning, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.jobsTracked, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.jobsCompleted, prometheus.CounterValue, 0)
		ch <- prometheus.MustNewConstMetric(c.jobsFailed, prometheus.CounterValue, 0)
	}

	if c.creds != nil {
		ch <- prometheus.MustNewConstMetric(c.credProviders, prometheus.GaugeValue, float64(c.creds.Providers()))
		ch <- prometheus.MustNewConstMetric(c.credReloads, prometheus.CounterValue, float64(c.creds.Reloads()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.credProviders, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.credReloads, prometheus.CounterValue, 0)
	}
}
