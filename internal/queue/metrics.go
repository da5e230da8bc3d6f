package queue

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports queue activity. A nil *Metrics records nothing.
type Metrics struct {
	Enqueued  *prometheus.CounterVec
	Deduped   prometheus.Counter
	Completed prometheus.Counter
	Failed    prometheus.Counter
	Pending   prometheus.Gauge
	Running   prometheus.Gauge
	Duration  prometheus.Histogram
}

// NewMetrics registers the queue collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Enqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engview_extraction_enqueued_total",
				Help: "Extraction tasks admitted to the queue",
			},
			[]string{"priority"},
		),
		Deduped: factory.NewCounter(prometheus.CounterOpts{
			Name: "engview_extraction_deduplicated_total",
			Help: "Enqueue calls ignored because the project was already pending",
		}),
		Completed: factory.NewCounter(prometheus.CounterOpts{
			Name: "engview_extraction_completed_total",
			Help: "Extraction tasks that finished successfully",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "engview_extraction_failed_total",
			Help: "Extraction tasks that returned an error or panicked",
		}),
		Pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "engview_extraction_pending",
			Help: "Projects waiting for or undergoing extraction",
		}),
		Running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "engview_extraction_running",
			Help: "Extraction tasks currently occupying a slot",
		}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "engview_extraction_duration_seconds",
			Help:    "Time spent running one extraction task",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		}),
	}
}

func (m *Metrics) enqueued(p Priority) {
	if m == nil {
		return
	}
	m.Enqueued.WithLabelValues(p.String()).Inc()
}

func (m *Metrics) deduped() {
	if m == nil {
		return
	}
	m.Deduped.Inc()
}

func (m *Metrics) finished(err error, took time.Duration) {
	if m == nil {
		return
	}
	if err != nil {
		m.Failed.Inc()
	} else {
		m.Completed.Inc()
	}
	m.Duration.Observe(took.Seconds())
}

func (m *Metrics) gauges(pending, running int) {
	if m == nil {
		return
	}
	m.Pending.Set(float64(pending))
	m.Running.Set(float64(running))
}
