package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/hris-payroll-go/internal/repository/memory"
	payrollService "github.com/cmlabs-hris/hris-payroll-go/internal/service/payroll"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const handlerTestEmployeeID = "0190a6d4-3c1e-7a2b-9c4d-5e6f7a8b9c0d"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
	Meta *struct {
		Page       int   `json:"page"`
		Limit      int   `json:"limit"`
		TotalItems int64 `json:"total_items"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	calc, err := payrollService.NewDeductionCalculator(payroll.DefaultRules())
	require.NoError(t, err)

	m := metrics.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := payrollService.NewPayrollService(memory.NewPayrollRepository(), calc, m, logger)

	return NewRouter(RouterOptions{Metrics: m.Handler()}, NewPayrollHandler(svc))
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func assertDecimal(t *testing.T, want string, got payroll.Money) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got.Decimal), "want %s, got %s", want, got.String())
}

func TestPayrollHandler_PreviewQuery(t *testing.T) {
	router := newTestRouter(t)

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/payroll/preview?basic_salary=30000&allowances=5000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var result payroll.DeductionsResponse
	decodeData(t, env, &result)
	assertDecimal(t, "35000", result.GrossSalary)
	assertDecimal(t, "2100", result.PensionContribution)
	assertDecimal(t, "950", result.HealthContribution)
	assertDecimal(t, "4653.35", result.IncomeTax)
	assertDecimal(t, "27296.65", result.NetPay)
}

func TestPayrollHandler_PreviewQuery_InvalidInput(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name  string
		query string
		field string
	}{
		{"missing basic salary", "allowances=100", "basic_salary"},
		{"non numeric allowances", "basic_salary=100&allowances=abc", "allowances"},
		{"negative basic salary", "basic_salary=-1", "basic_salary"},
		{"above maximum", "basic_salary=99999999999", "basic_salary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doRequest(t, router, http.MethodGet, "/api/v1/payroll/preview?"+tt.query, "")
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
			assert.Contains(t, env.Error.Details, tt.field)
		})
	}
}

func TestPayrollHandler_PreviewBody(t *testing.T) {
	router := newTestRouter(t)

	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/payroll/preview", `{"basic_salary":"0","allowances":0}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result payroll.DeductionsResponse
	decodeData(t, env, &result)
	assertDecimal(t, "0", result.TotalDeductions)
	assertDecimal(t, "0", result.NetPay)

	rec, env = doRequest(t, router, http.MethodPost, "/api/v1/payroll/preview", `{"basic_salary":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/preview", strings.NewReader(`basic_salary=1`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	plain := httptest.NewRecorder()
	router.ServeHTTP(plain, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, plain.Code)
}

func TestPayrollHandler_PreviewBody_AmountsRenderWithCents(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/payroll/preview", `{"basic_salary":30000,"allowances":"5000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `"basic_salary":"30000.00"`)
	assert.Contains(t, body, `"pension_contribution":"2100.00"`)
	assert.Contains(t, body, `"health_contribution":"950.00"`)
	assert.Contains(t, body, `"net_pay":"27296.65"`)
}

func TestPayrollHandler_InvalidAmountInBody(t *testing.T) {
	router := newTestRouter(t)
	recordBody := func(amounts string) string {
		return `{"employee_id":"` + handlerTestEmployeeID + `","period_month":2,"period_year":2025` + amounts + `}`
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		field  string
	}{
		{"preview non numeric basic salary", http.MethodPost, "/api/v1/payroll/preview", `{"basic_salary":"abc","allowances":"0"}`, "basic_salary"},
		{"preview missing basic salary", http.MethodPost, "/api/v1/payroll/preview", `{"allowances":"5000"}`, "basic_salary"},
		{"preview boolean allowances", http.MethodPost, "/api/v1/payroll/preview", `{"basic_salary":"100","allowances":true}`, "allowances"},
		{"preview negative basic salary", http.MethodPost, "/api/v1/payroll/preview", `{"basic_salary":"-1"}`, "basic_salary"},
		{"create missing basic salary", http.MethodPost, "/api/v1/payroll/records", recordBody(`,"allowances":"5000"`), "basic_salary"},
		{"create non numeric allowances", http.MethodPost, "/api/v1/payroll/records", recordBody(`,"basic_salary":"30000","allowances":"5k"`), "allowances"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := doRequest(t, router, tt.method, tt.path, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
			assert.Contains(t, env.Error.Details, tt.field)
		})
	}

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/payroll/records", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(0), env.Meta.TotalItems)
}

func TestPayrollHandler_UpdateInvalidAmount(t *testing.T) {
	router := newTestRouter(t)

	body := `{"employee_id":"` + handlerTestEmployeeID + `","period_month":5,"period_year":2025,"basic_salary":"30000","allowances":"5000"}`
	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/payroll/records", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created payroll.PayrollRecordResponse
	decodeData(t, env, &created)

	recordPath := "/api/v1/payroll/records/" + created.ID
	rec, env = doRequest(t, router, http.MethodPut, recordPath, `{"basic_salary":"x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "basic_salary")

	rec, env = doRequest(t, router, http.MethodGet, recordPath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched payroll.PayrollRecordResponse
	decodeData(t, env, &fetched)
	assertDecimal(t, "27296.65", fetched.NetPay)
}

func TestPayrollHandler_GetRules(t *testing.T) {
	router := newTestRouter(t)

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/payroll/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rules payroll.RulesResponse
	decodeData(t, env, &rules)
	assert.Len(t, rules.PensionTiers, 2)
	assert.Len(t, rules.HealthBrackets, 17)
	require.Len(t, rules.TaxBands, 3)
	assert.Nil(t, rules.TaxBands[2].Width)
	assert.Nil(t, rules.HealthBrackets[16].UpTo)
}

func TestPayrollHandler_RecordLifecycle(t *testing.T) {
	router := newTestRouter(t)

	body := `{"employee_id":"` + handlerTestEmployeeID + `","period_month":1,"period_year":2025,"basic_salary":"30000","allowances":"5000"}`
	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/payroll/records", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created payroll.PayrollRecordResponse
	decodeData(t, env, &created)
	assert.Equal(t, "2025-01-01", created.PeriodStart)
	assert.Equal(t, "2025-01-31", created.PeriodEnd)
	assert.Equal(t, "pending", created.Status)
	assertDecimal(t, "27296.65", created.NetPay)

	rec, env = doRequest(t, router, http.MethodPost, "/api/v1/payroll/records", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	recordPath := "/api/v1/payroll/records/" + created.ID

	rec, env = doRequest(t, router, http.MethodGet, recordPath, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched payroll.PayrollRecordResponse
	decodeData(t, env, &fetched)
	assert.Equal(t, created.ID, fetched.ID)

	rec, env = doRequest(t, router, http.MethodGet, "/api/v1/payroll/records?employee_id="+handlerTestEmployeeID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []payroll.PayrollRecordResponse
	decodeData(t, env, &list)
	assert.Len(t, list, 1)
	require.NotNil(t, env.Meta)
	assert.Equal(t, int64(1), env.Meta.TotalItems)
	assert.Equal(t, 1, env.Meta.TotalPages)
	assert.Equal(t, payroll.DefaultPageLimit, env.Meta.Limit)

	rec, env = doRequest(t, router, http.MethodPut, recordPath, `{"basic_salary":"40000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated payroll.PayrollRecordResponse
	decodeData(t, env, &updated)
	assertDecimal(t, "45000", updated.GrossSalary)
	assert.False(t, updated.NetPay.Equal(created.NetPay))

	rec, env = doRequest(t, router, http.MethodPost, recordPath+"/pay", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var paid payroll.PayrollRecordResponse
	decodeData(t, env, &paid)
	assert.Equal(t, "paid", paid.Status)
	assert.NotNil(t, paid.PaidAt)

	rec, _ = doRequest(t, router, http.MethodPut, recordPath, `{"notes":"late change"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = doRequest(t, router, http.MethodPost, recordPath+"/pay", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = doRequest(t, router, http.MethodDelete, recordPath, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPayrollHandler_DeletePending(t *testing.T) {
	router := newTestRouter(t)

	body := `{"employee_id":"` + handlerTestEmployeeID + `","period_start":"2025-03-01","period_end":"2025-03-15","basic_salary":"1000","allowances":"0"}`
	rec, env := doRequest(t, router, http.MethodPost, "/api/v1/payroll/records", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created payroll.PayrollRecordResponse
	decodeData(t, env, &created)

	rec, env = doRequest(t, router, http.MethodDelete, "/api/v1/payroll/records/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Payroll record deleted successfully", env.Message)

	rec, _ = doRequest(t, router, http.MethodGet, "/api/v1/payroll/records/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPayrollHandler_RecordErrors(t *testing.T) {
	router := newTestRouter(t)

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/payroll/records/not-a-uuid", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "id")

	rec, env = doRequest(t, router, http.MethodGet, "/api/v1/payroll/records/0190a6d4-0000-7000-8000-000000000000", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, env = doRequest(t, router, http.MethodPost, "/api/v1/payroll/records", `{"employee_id":"","basic_salary":"-5"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NotNil(t, env.Error)
	assert.Contains(t, env.Error.Details, "employee_id")

	rec, _ = doRequest(t, router, http.MethodGet, "/api/v1/payroll/records?status=cancelled", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPayrollHandler_Summary(t *testing.T) {
	router := newTestRouter(t)

	body := `{"employee_id":"` + handlerTestEmployeeID + `","period_month":1,"period_year":2025,"basic_salary":"30000","allowances":"5000"}`
	rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/payroll/records", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/payroll/summary?period_from=2025-01-01&period_to=2025-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary payroll.PayrollSummaryResponse
	decodeData(t, env, &summary)
	assert.Equal(t, 1, summary.TotalRecords)
	assert.Equal(t, 1, summary.PendingCount)
	assertDecimal(t, "27296.65", summary.TotalNetPay)

	rec, _ = doRequest(t, router, http.MethodGet, "/api/v1/payroll/summary?period_from=2025-01-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doRequest(t, router, http.MethodGet, "/api/v1/payroll/summary?period_from=2025-02-01&period_to=2025-01-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Operational(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	doRequest(t, router, http.MethodGet, "/api/v1/payroll/preview?basic_salary=100", "")

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hris_payroll_computations_total")

	rec, env := doRequest(t, router, http.MethodGet, "/api/v1/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)

	rec, _ = doRequest(t, router, http.MethodPatch, "/api/v1/payroll/rules", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
