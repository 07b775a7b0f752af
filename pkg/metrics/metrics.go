// Package metrics holds the Prometheus collectors exported by ledgerwatch.
package metrics

import (
	"github.com/Phillezi/ledgerwatch/pkg/ledger"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ledgerwatch"

// Metrics groups every collector. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	milestones    prometheus.Counter
	records       *prometheus.CounterVec
	lastMilestone prometheus.Gauge
	shutdowns     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		milestones: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "milestones_total",
			Help:      "Milestone batches fully consumed.",
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Ledger update records handled, by kind.",
		}, []string{"kind"}),
		lastMilestone: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_milestone_index",
			Help:      "Index of the last milestone batch fully consumed.",
		}),
		shutdowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shutdowns_total",
			Help:      "Shutdowns triggered, by cause.",
		}, []string{"cause"}),
	}
	for _, c := range []prometheus.Collector{m.milestones, m.records, m.lastMilestone, m.shutdowns} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Record counts one handled record.
func (m *Metrics) Record(k ledger.Kind) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(k.String()).Inc()
}

// Milestone counts one completed milestone batch.
func (m *Metrics) Milestone(index uint32) {
	if m == nil {
		return
	}
	m.milestones.Inc()
	m.lastMilestone.Set(float64(index))
}

// Shutdown counts one shutdown by cause.
func (m *Metrics) Shutdown(cause string) {
	if m == nil {
		return
	}
	m.shutdowns.WithLabelValues(cause).Inc()
}
