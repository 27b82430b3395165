package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncVotesCast("memory")
		m.IncAuditWriteFailure("buffer_full")
		m.ObserveLedgerCast("memory", time.Millisecond)
		m.SetAuditQueueDepth(3)
	})
}

func TestCountersRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncAuditWriteFailure("store_error")
	m.IncAuditWriteFailure("store_error")
	m.IncVoteRejection("already_voted")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuditWriteFailures.WithLabelValues("store_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VoteRejections.WithLabelValues("already_voted")))
}
