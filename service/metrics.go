package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation names used as metric labels and log fields.
const (
	OpCreateElection = "create_election"
	OpGetElection    = "get_election"
	OpAddCandidate   = "add_candidate"
	OpGetCandidate   = "get_candidate"
	OpVote           = "vote"
)

const outcomeSuccess = "success"

// MetricsCollector tracks gateway operations and time spent waiting for
// finality. A nil collector records nothing.
type MetricsCollector struct {
	operations *prometheus.CounterVec
	finality   *prometheus.HistogramVec
	inflight   *prometheus.GaugeVec
}

// NewMetricsCollector creates the collectors and registers them on reg.
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "election_gateway",
			Name:      "operations_total",
			Help:      "gateway operations by outcome",
		}, []string{"operation", "outcome"}),
		finality: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "election_gateway",
			Name:      "finality_wait_seconds",
			Help:      "time between submission and a mined receipt",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60, 120},
		}, []string{"operation"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "election_gateway",
			Name:      "finality_waits_in_flight",
			Help:      "transactions currently awaiting finality",
		}, []string{"operation"}),
	}

	if reg != nil {
		reg.MustRegister(mc.operations, mc.finality, mc.inflight)
	}

	return mc
}

// RecordOperation counts one completed operation. err is nil on success.
func (mc *MetricsCollector) RecordOperation(operation string, err error) {
	if mc == nil {
		return
	}

	outcome := outcomeSuccess
	if err != nil {
		outcome = string(KindTransactionFailed)
		if gwErr, ok := AsError(err); ok {
			outcome = string(gwErr.Kind)
		}
	}
	mc.operations.WithLabelValues(operation, outcome).Inc()
}

// StartFinalityWait marks a transaction as pending and returns the function
// to call once the wait is over.
func (mc *MetricsCollector) StartFinalityWait(operation string) func() {
	if mc == nil {
		return func() {}
	}

	start := time.Now()
	mc.inflight.WithLabelValues(operation).Inc()

	return func() {
		mc.inflight.WithLabelValues(operation).Dec()
		mc.finality.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
