package motiondb

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "motiondb"

// PrometheusCollector is a MetricsCollector backed by Prometheus metrics.
type PrometheusCollector struct {
	builds         *prometheus.CounterVec
	buildDuration  prometheus.Histogram
	buildFrames    prometheus.Gauge
	stageDuration  *prometheus.HistogramVec
	loads          *prometheus.CounterVec
	loadBytes      prometheus.Counter
	saves          *prometheus.CounterVec
	saveBytes      prometheus.Counter
	searches       *prometheus.CounterVec
	searchDuration prometheus.Histogram
	candidates     prometheus.Counter
}

var _ MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates the collector and registers its metrics
// with reg. Passing nil uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &PrometheusCollector{
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "builds_total",
			Help:      "Total number of database builds by status",
		}, []string{"status"}),
		buildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of database builds in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}),
		buildFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "build_frames",
			Help:      "Number of frames in the last successful build",
		}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of build stages in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage", "status"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "loads_total",
			Help:      "Total number of database loads by status",
		}, []string{"status"}),
		loadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "load_bytes_total",
			Help:      "Total bytes of loaded databases",
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "saves_total",
			Help:      "Total number of database saves by status",
		}, []string{"status"}),
		saveBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "save_bytes_total",
			Help:      "Total bytes of saved databases",
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "searches_total",
			Help:      "Total number of searches by status",
		}, []string{"status"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of searches in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		candidates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "search_candidates_total",
			Help:      "Total number of fragments scored by searches",
		}),
	}

	var errs []error
	for _, m := range []prometheus.Collector{
		c.builds, c.buildDuration, c.buildFrames, c.stageDuration,
		c.loads, c.loadBytes, c.saves, c.saveBytes,
		c.searches, c.searchDuration, c.candidates,
	} {
		errs = append(errs, reg.Register(m))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordBuild implements MetricsCollector.
func (c *PrometheusCollector) RecordBuild(duration time.Duration, frames, _ int, err error) {
	c.builds.WithLabelValues(status(err)).Inc()
	c.buildDuration.Observe(duration.Seconds())
	if err == nil {
		c.buildFrames.Set(float64(frames))
	}
}

// RecordStage implements MetricsCollector.
func (c *PrometheusCollector) RecordStage(stage string, duration time.Duration, err error) {
	c.stageDuration.WithLabelValues(stage, status(err)).Observe(duration.Seconds())
}

// RecordLoad implements MetricsCollector.
func (c *PrometheusCollector) RecordLoad(bytes int64, _ time.Duration, err error) {
	c.loads.WithLabelValues(status(err)).Inc()
	if err == nil {
		c.loadBytes.Add(float64(bytes))
	}
}

// RecordSave implements MetricsCollector.
func (c *PrometheusCollector) RecordSave(bytes int64, _ time.Duration, err error) {
	c.saves.WithLabelValues(status(err)).Inc()
	if err == nil {
		c.saveBytes.Add(float64(bytes))
	}
}

// RecordSearch implements MetricsCollector.
func (c *PrometheusCollector) RecordSearch(candidates int, duration time.Duration, err error) {
	c.searches.WithLabelValues(status(err)).Inc()
	c.searchDuration.Observe(duration.Seconds())
	c.candidates.Add(float64(candidates))
}
