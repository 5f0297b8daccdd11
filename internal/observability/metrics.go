package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// fusion pipeline.
type Metrics struct {
	RecordsRead  *prometheus.CounterVec // labels: city, source={stations,reanalysis}
	RecordsFused *prometheus.CounterVec // labels: city

	// QC stage metrics.
	StageRemoved    *prometheus.CounterVec // labels: city, stage
	StationsDropped *prometheus.CounterVec // labels: city, stage

	CityProcessingDuration *prometheus.HistogramVec // labels: city
	PipelineRunning        prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RecordsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_fusion",
			Name:      "records_read_total",
			Help:      "Raw records read from collector files, by city and source.",
		}, []string{"city", "source"}),
		RecordsFused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_fusion",
			Name:      "records_fused_total",
			Help:      "Fused pollutant+meteorology rows produced, by city.",
		}, []string{"city"}),
		StageRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_fusion",
			Name:      "qc_records_removed_total",
			Help:      "Observations removed by each QC stage.",
		}, []string{"city", "stage"}),
		StationsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_fusion",
			Name:      "qc_stations_dropped_total",
			Help:      "Stations dropped whole by coverage stages.",
		}, []string{"city", "stage"}),
		CityProcessingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aq_fusion",
			Name:      "city_processing_duration_seconds",
			Help:      "Duration of one city's clean-derive-fuse run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"city"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aq_fusion",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
	}

	prometheus.MustRegister(
		m.RecordsRead,
		m.RecordsFused,
		m.StageRemoved,
		m.StationsDropped,
		m.CityProcessingDuration,
		m.PipelineRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RecordsRead:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "aq_fusion", Name: "records_read_total"}, []string{"city", "source"}),
		RecordsFused:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "aq_fusion", Name: "records_fused_total"}, []string{"city"}),
		StageRemoved:           prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "aq_fusion", Name: "qc_records_removed_total"}, []string{"city", "stage"}),
		StationsDropped:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "aq_fusion", Name: "qc_stations_dropped_total"}, []string{"city", "stage"}),
		CityProcessingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "aq_fusion", Name: "city_processing_duration_seconds"}, []string{"city"}),
		PipelineRunning:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "aq_fusion", Name: "pipeline_running"}),
	}
}
