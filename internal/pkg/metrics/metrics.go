package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hris_payroll"

// Computation outcomes.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalidInput = "invalid_input"
)

// Record actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionPaid    = "paid"
	ActionDeleted = "deleted"
)

type Metrics struct {
	registry     *prometheus.Registry
	computations *prometheus.CounterVec
	records      *prometheus.CounterVec
	netPay       prometheus.Histogram
	period       *prometheus.GaugeVec
	periodNet    prometheus.Gauge
}

// New registers the payroll collectors on a fresh registry together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		computations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "computations_total",
			Help:      "Deduction computations by call site and outcome.",
		}, []string{"source", "outcome"}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_operations_total",
			Help:      "Payroll record mutations by action.",
		}, []string{"action"}),
		netPay: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "net_pay",
			Help:      "Net pay of persisted payroll records.",
			Buckets:   prometheus.ExponentialBuckets(1000, 2, 12),
		}),
		period: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_period_records",
			Help:      "Payroll records in the current calendar month by status.",
		}, []string{"status"}),
		periodNet: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_period_net_pay",
			Help:      "Total net pay of payroll records in the current calendar month.",
		}),
	}
}

func (m *Metrics) ObserveComputation(source, outcome string) {
	m.computations.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObserveRecord(action string) {
	m.records.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveNetPay(amount float64) {
	m.netPay.Observe(amount)
}

// SetPeriodTotals publishes the current month's record counts and net pay.
func (m *Metrics) SetPeriodTotals(pending, paid int, netPay float64) {
	m.period.WithLabelValues("pending").Set(float64(pending))
	m.period.WithLabelValues("paid").Set(float64(paid))
	m.periodNet.Set(netPay)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
