package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveComputation("preview", OutcomeSuccess)
	m.ObserveComputation("preview", OutcomeSuccess)
	m.ObserveComputation("record", OutcomeInvalidInput)
	m.ObserveRecord(ActionCreated)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.computations.WithLabelValues("preview", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.computations.WithLabelValues("record", OutcomeInvalidInput)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues(ActionCreated)))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRecord(ActionPaid)
	m.ObserveNetPay(27296.65)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `hris_payroll_record_operations_total{action="paid"} 1`)
	assert.Contains(t, string(body), "hris_payroll_net_pay_count 1")
}

func TestMetrics_PeriodTotals(t *testing.T) {
	m := New()
	m.SetPeriodTotals(3, 1, 81889.95)
	m.SetPeriodTotals(2, 2, 81889.95)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.period.WithLabelValues("pending")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.period.WithLabelValues("paid")))
	assert.Equal(t, 81889.95, testutil.ToFloat64(m.periodNet))
}
