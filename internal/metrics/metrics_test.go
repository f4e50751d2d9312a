package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveDecision(types.Decision{Allowed: true})
	m.TokenIssued()
	m.TokenDeactivated()
	m.AuditFailed()
	m.StorageFault("verify")
	m.EventDropped()
	m.EventSinkFailed("redis")
	m.SetTokenCounts(map[types.TokenStatus]int64{types.StatusActive: 1})
	m.ObserveHTTP("GET", "/healthz", 200, time.Millisecond)
}

func TestObserveDecision_LabelsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveDecision(types.Decision{Allowed: true})
	m.ObserveDecision(types.Decision{Allowed: true})
	m.ObserveDecision(types.Decision{Reason: types.ReasonExpired})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.decisions.WithLabelValues("allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("denied:expired")))
}

func TestSetTokenCounts_ReplacesGaugeValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetTokenCounts(map[types.TokenStatus]int64{types.StatusActive: 5, types.StatusPassive: 2})
	m.SetTokenCounts(map[types.TokenStatus]int64{types.StatusActive: 3, types.StatusPassive: 4})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.tokens.WithLabelValues("active")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.tokens.WithLabelValues("passive")))
}

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.TokenIssued()
	m.AuditFailed()

	n, err := testutil.GatherAndCount(reg, "gatepass_tokens_issued_total", "gatepass_audit_append_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
