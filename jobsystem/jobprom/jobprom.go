// Package jobprom exports the metrics of a job system to Prometheus.
package jobprom

import (
	"github.com/joeycumines/go-jobsystem/jobsystem"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = `jobsystem`
)

// Source provides metric snapshots, e.g. a [jobsystem.JobSystem].
type Source interface {
	Metrics() jobsystem.Metrics
}

// Collector is a [prometheus.Collector] reading from a [Source] on every
// scrape.
type Collector struct {
	source       Source
	jobsCreated  *prometheus.Desc
	jobsExecuted *prometheus.Desc
	jobsFailed   *prometheus.Desc
	stalls       *prometheus.Desc
	latency      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for source. The name is attached to every
// metric as the "system" label.
func NewCollector(name string, source Source) *Collector {
	labels := prometheus.Labels{`system`: name}
	return &Collector{
		source: source,
		jobsCreated: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, `jobs`, `created_total`),
			`Count of jobs created`,
			nil, labels,
		),
		jobsExecuted: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, `jobs`, `executed_total`),
			`Count of jobs that started executing`,
			nil, labels,
		),
		jobsFailed: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, `jobs`, `failed_total`),
			`Count of jobs that panicked`,
			nil, labels,
		),
		stalls: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, `stalls`, `total`),
			`Count of operations that waited for an exhausted resource`,
			[]string{`resource`}, labels,
		),
		latency: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, `jobs`, `queue_latency_seconds`),
			`Time between jobs becoming ready and starting to execute`,
			nil, labels,
		),
	}
}

// Describe implements [prometheus.Collector].
func (x *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- x.jobsCreated
	ch <- x.jobsExecuted
	ch <- x.jobsFailed
	ch <- x.stalls
	ch <- x.latency
}

// Collect implements [prometheus.Collector].
func (x *Collector) Collect(ch chan<- prometheus.Metric) {
	m := x.source.Metrics()

	ch <- prometheus.MustNewConstMetric(x.jobsCreated, prometheus.CounterValue, float64(m.JobsCreated))
	ch <- prometheus.MustNewConstMetric(x.jobsExecuted, prometheus.CounterValue, float64(m.JobsExecuted))
	ch <- prometheus.MustNewConstMetric(x.jobsFailed, prometheus.CounterValue, float64(m.JobsFailed))

	for _, stall := range [...]struct {
		resource string
		count    uint64
	}{
		{`job_pool`, m.Stalls.JobPool},
		{`queue`, m.Stalls.Queue},
		{`barrier`, m.Stalls.Barrier},
		{`barrier_pool`, m.Stalls.BarrierPool},
	} {
		ch <- prometheus.MustNewConstMetric(x.stalls, prometheus.CounterValue, float64(stall.count), stall.resource)
	}

	ch <- prometheus.MustNewConstSummary(
		x.latency,
		m.Latency.Count,
		m.Latency.Sum.Seconds(),
		map[float64]float64{
			0.5:  m.Latency.P50.Seconds(),
			0.9:  m.Latency.P90.Seconds(),
			0.99: m.Latency.P99.Seconds(),
		},
	)
}
