package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"election-gateway/models"
)

func TestMetricsCollector_RecordOperation(t *testing.T) {
	mc := NewMetricsCollector(prometheus.NewRegistry())

	mc.RecordOperation(OpVote, nil)
	mc.RecordOperation(OpVote, nil)
	mc.RecordOperation(OpVote, notFound("gone"))

	require.Equal(t, 2.0, testutil.ToFloat64(mc.operations.WithLabelValues(OpVote, "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(mc.operations.WithLabelValues(OpVote, string(KindNotFound))))
}

func TestMetricsCollector_FinalityWait(t *testing.T) {
	mc := NewMetricsCollector(nil)

	done := mc.StartFinalityWait(OpAddCandidate)
	require.Equal(t, 1.0, testutil.ToFloat64(mc.inflight.WithLabelValues(OpAddCandidate)))

	done()
	require.Equal(t, 0.0, testutil.ToFloat64(mc.inflight.WithLabelValues(OpAddCandidate)))
	require.Equal(t, 1, testutil.CollectAndCount(mc.finality))
}

func TestMetricsCollector_Nil(t *testing.T) {
	var mc *MetricsCollector

	require.NotPanics(t, func() {
		mc.RecordOperation(OpGetElection, nil)
		mc.StartFinalityWait(OpVote)()
	})
}

func TestGateway_RecordsOutcomes(t *testing.T) {
	gw, ledger := newTestGateway()
	gw.metrics = NewMetricsCollector(prometheus.NewRegistry())
	ledger.SeedElection("target", testNow.Unix()+10, testNow.Unix()+20, "Alice")

	_, err := gw.GetElection(context.Background(), uintOf(0))
	require.NoError(t, err)
	_, err = gw.GetElection(context.Background(), uintOf(4))
	require.Error(t, err)
	_, err = gw.CreateElection(context.Background(), &models.CreateElectionRequest{})
	require.Error(t, err)

	ops := gw.metrics.operations
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(OpGetElection, "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(OpGetElection, string(KindNotFound))))
	require.Equal(t, 1.0, testutil.ToFloat64(ops.WithLabelValues(OpCreateElection, string(KindMissingField))))
}
