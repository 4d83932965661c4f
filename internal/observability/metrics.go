package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "sales_dashboard"

// Metrics holds the Prometheus collectors for dataset loads and pipeline runs.
type Metrics struct {
	registry *prometheus.Registry

	datasetRecords   prometheus.Gauge
	datasetLoads     *prometheus.CounterVec
	loadDuration     prometheus.Histogram
	pipelineRuns     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	filteredRecords  prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		datasetRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "dataset_records",
			Help:      "Number of records in the loaded sales dataset.",
		}),
		datasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dataset_loads_total",
			Help:      "Dataset load attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "dataset_load_duration_seconds",
			Help:      "Time spent loading the sales dataset.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_runs_total",
			Help:      "Filter and aggregate pipeline invocations by outcome.",
		}, []string{"outcome"}),
		pipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time spent filtering and aggregating one selection.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		filteredRecords: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "filtered_records",
			Help:      "Records surviving the filter per pipeline run.",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 7),
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.datasetRecords,
		m.datasetLoads,
		m.loadDuration,
		m.pipelineRuns,
		m.pipelineDuration,
		m.filteredRecords,
	)

	return m
}

func (m *Metrics) ObserveLoad(source string, records int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.datasetLoads.WithLabelValues(source, "error").Inc()
		return
	}
	m.datasetLoads.WithLabelValues(source, "success").Inc()
	m.datasetRecords.Set(float64(records))
	m.loadDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObservePipeline(filtered int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.pipelineRuns.WithLabelValues("error").Inc()
		return
	}
	m.pipelineRuns.WithLabelValues("success").Inc()
	m.pipelineDuration.Observe(duration.Seconds())
	m.filteredRecords.Observe(float64(filtered))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
