package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"weekcal/internal/schedule"
)

// Metrics groups the collectors of one process. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	eventsLoaded   prometheus.Gauge
	sourcesFailed  prometheus.Gauge
	eventsRejected prometheus.Gauge
	loads          *prometheus.CounterVec
	layoutPasses   *prometheus.CounterVec
	layoutBars     prometheus.Histogram
	layoutSeconds  prometheus.Histogram
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		eventsLoaded: f.NewGauge(prometheus.GaugeOpts{
			Name: "weekcal_events_loaded",
			Help: "Number of events held by the current session",
		}),
		sourcesFailed: f.NewGauge(prometheus.GaugeOpts{
			Name: "weekcal_sources_failed",
			Help: "Number of sources that failed on the last load",
		}),
		eventsRejected: f.NewGauge(prometheus.GaugeOpts{
			Name: "weekcal_events_rejected",
			Help: "Number of malformed events dropped on the last load",
		}),
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "weekcal_loads_total",
			Help: "Calendar loads by result",
		}, []string{"result"}),
		layoutPasses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "weekcal_layout_passes_total",
			Help: "Layout passes by outcome (bars, no_source, filtered_empty)",
		}, []string{"outcome"}),
		layoutBars: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "weekcal_layout_bars",
			Help:    "Bars emitted per layout pass",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		layoutSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "weekcal_layout_duration_seconds",
			Help:    "Duration of a layout pass",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveLoad records the outcome of a calendar load.
func (m *Metrics) ObserveLoad(events, rejected, failedSources int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.loads.WithLabelValues("error").Inc()
		return
	}
	m.loads.WithLabelValues("ok").Inc()
	m.eventsLoaded.Set(float64(events))
	m.eventsRejected.Set(float64(rejected))
	m.sourcesFailed.Set(float64(failedSources))
}

// ObserveLayout records one pipeline pass.
func (m *Metrics) ObserveLayout(res schedule.Result, took time.Duration) {
	if m == nil {
		return
	}
	m.layoutPasses.WithLabelValues(outcome(res)).Inc()
	m.layoutBars.Observe(float64(len(res.Bars)))
	m.layoutSeconds.Observe(took.Seconds())
}

func outcome(res schedule.Result) string {
	switch {
	case errors.Is(res.Reason, schedule.ErrEmptySource):
		return "no_source"
	case res.Empty():
		return "filtered_empty"
	default:
		return "bars"
	}
}
