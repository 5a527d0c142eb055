package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/psantana5/kdfcal/pkg/cpuperf"
	"github.com/psantana5/kdfcal/pkg/precisetime"
)

// Collector exposes calibration results as Prometheus metrics on its own
// registry, so a process can serve or dump them without global state.
type Collector struct {
	registry *prometheus.Registry

	throughput  prometheus.Gauge
	resolution  prometheus.Gauge
	window      prometheus.Gauge
	operations  prometheus.Gauge
	lastSuccess prometheus.Gauge
	estimations *prometheus.CounterVec
	duration    prometheus.Histogram
	clockInfo   *prometheus.GaugeVec
}

// NewCollector creates a collector; workload is attached as a constant label
func NewCollector(workload string) *Collector {
	labels := prometheus.Labels{"workload": workload}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kdfcal_throughput_ops_per_second",
			Help:        "Primitive operations per second measured by the last successful estimation",
			ConstLabels: labels,
		}),
		resolution: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kdfcal_clock_resolution_seconds",
			Help:        "Resolution of the clock used by the last successful estimation",
			ConstLabels: labels,
		}),
		window: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kdfcal_measurement_window_seconds",
			Help:        "Length of the measurement window of the last successful estimation",
			ConstLabels: labels,
		}),
		operations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kdfcal_measurement_operations",
			Help:        "Primitive operations counted in the last measurement window",
			ConstLabels: labels,
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "kdfcal_last_success_timestamp_seconds",
			Help:        "Unix time of the last successful estimation",
			ConstLabels: labels,
		}),
		estimations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "kdfcal_estimations_total",
			Help:        "Estimations run, by result",
			ConstLabels: labels,
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "kdfcal_estimation_duration_seconds",
			Help:        "Wall time spent per estimation, including tick alignment",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		clockInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kdfcal_clock_info",
			Help: "Clock source selected for this process",
		}, []string{"source", "kind", "monotonic"}),
	}

	c.registry.MustRegister(
		c.throughput,
		c.resolution,
		c.window,
		c.operations,
		c.lastSuccess,
		c.estimations,
		c.duration,
		c.clockInfo,
	)
	return c
}

// Registry returns the registry holding the collector's metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// SetClock records which clock source is in use
func (c *Collector) SetClock(info precisetime.Info) {
	monotonic := "false"
	if info.Monotonic {
		monotonic = "true"
	}
	c.clockInfo.Reset()
	c.clockInfo.WithLabelValues(info.Source, info.Kind, monotonic).Set(1)
}

// Observe records the outcome of one estimation. m is ignored when err is set.
func (c *Collector) Observe(m *cpuperf.Measurement, took time.Duration, err error) {
	c.duration.Observe(took.Seconds())
	c.estimations.WithLabelValues(cpuperf.Reason(err)).Inc()
	if err != nil || m == nil {
		return
	}

	c.throughput.Set(m.OpsPerSecond)
	c.resolution.Set(m.Resolution.Seconds())
	c.window.Set(m.Elapsed.Seconds())
	c.operations.Set(float64(m.Operations))
	c.lastSuccess.SetToCurrentTime()
}
