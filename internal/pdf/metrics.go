package pdf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	pdferrors "github.com/a3tai/mcp-pdf-overlay/internal/pdf/errors"
	"github.com/a3tai/mcp-pdf-overlay/internal/pdf/overlay"
)

const metricsNamespace = "pdf_overlay"

// Metrics records fill outcomes. A nil registerer keeps the collectors
// unregistered, which is what tests want.
type Metrics struct {
	fills         *prometheus.CounterVec
	fieldsPlaced  prometheus.Counter
	fieldsSkipped *prometheus.CounterVec
	fillDuration  prometheus.Histogram
	fillErrors    *prometheus.CounterVec
}

// NewMetrics creates the fill collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		fills: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fills_total",
			Help:      "Fill requests by outcome.",
		}, []string{"outcome"}),
		fieldsPlaced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fields_placed_total",
			Help:      "Fields drawn onto templates.",
		}),
		fieldsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fields_skipped_total",
			Help:      "Fields passed over without drawing, by reason.",
		}, []string{"reason"}),
		fillDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "fill_duration_seconds",
			Help:      "Time to fetch, overlay and serialize one document.",
			Buckets:   prometheus.DefBuckets,
		}),
		fillErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fill_errors_total",
			Help:      "Failed fills by error type.",
		}, []string{"type"}),
	}
}

func (m *Metrics) observeFill(report overlay.Report, seconds float64) {
	m.fills.WithLabelValues("ok").Inc()
	m.fillDuration.Observe(seconds)
	m.fieldsPlaced.Add(float64(len(report.Placed)))
	for _, s := range report.Skipped {
		m.fieldsSkipped.WithLabelValues(string(s.Reason)).Inc()
	}
}

func (m *Metrics) observeError(err error) {
	m.fills.WithLabelValues("error").Inc()
	m.fillErrors.WithLabelValues(pdferrors.TypeOf(err).String()).Inc()
}
