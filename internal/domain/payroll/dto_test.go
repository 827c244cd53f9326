package payroll

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestNewPreviewRequest(t *testing.T) {
	req, err := NewPreviewRequest(" 30000.00 ", "5000")
	require.NoError(t, err)
	assert.True(t, req.BasicSalary.Equal(decimal.NewFromInt(30000)))
	assert.True(t, req.Allowances.Equal(decimal.NewFromInt(5000)))

	req, err = NewPreviewRequest("1200", "")
	require.NoError(t, err)
	assert.True(t, req.Allowances.IsZero())
}

func TestNewPreviewRequest_Invalid(t *testing.T) {
	_, err := NewPreviewRequest("", "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	var fieldErrs validator.ValidationErrors
	require.True(t, errors.As(err, &fieldErrs))
	assert.Equal(t, map[string]string{
		"basic_salary": "is required",
		"allowances":   "must be a number",
	}, fieldErrs.ToMap())
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("basic_salary", "1234.56")
	require.NoError(t, err)
	assert.Equal(t, "1234.56", d.StringFixed(2))

	_, err = ParseAmount("basic_salary", "12,000")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = ParseAmount("basic_salary", "NaN")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestCreatePayrollRecordRequest_Validate(t *testing.T) {
	employeeID := "0190a6d4-3c1e-7a2b-9c4d-5e6f7a8b9c0d"

	tests := []struct {
		name    string
		req     CreatePayrollRecordRequest
		wantErr []string
	}{
		{
			name: "explicit dates",
			req: CreatePayrollRecordRequest{
				EmployeeID:  employeeID,
				PeriodStart: strPtr("2025-01-01"),
				PeriodEnd:   strPtr("2025-01-31"),
			},
		},
		{
			name: "month and year",
			req: CreatePayrollRecordRequest{
				EmployeeID:  employeeID,
				PeriodMonth: intPtr(2),
				PeriodYear:  intPtr(2024),
			},
		},
		{
			name:    "missing everything",
			req:     CreatePayrollRecordRequest{},
			wantErr: []string{"employee_id", "period_start", "period_end"},
		},
		{
			name: "bad employee id and reversed period",
			req: CreatePayrollRecordRequest{
				EmployeeID:  "emp-1",
				PeriodStart: strPtr("2025-02-01"),
				PeriodEnd:   strPtr("2025-01-31"),
			},
			wantErr: []string{"employee_id", "period_end"},
		},
		{
			name: "both period forms",
			req: CreatePayrollRecordRequest{
				EmployeeID:  employeeID,
				PeriodStart: strPtr("2025-01-01"),
				PeriodEnd:   strPtr("2025-01-31"),
				PeriodMonth: intPtr(1),
				PeriodYear:  intPtr(2025),
			},
			wantErr: []string{"period"},
		},
		{
			name: "month out of range without year",
			req: CreatePayrollRecordRequest{
				EmployeeID:  employeeID,
				PeriodMonth: intPtr(13),
			},
			wantErr: []string{"period_month", "period_year"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}

			var fieldErrs validator.ValidationErrors
			require.True(t, errors.As(err, &fieldErrs))
			got := fieldErrs.ToMap()
			assert.Len(t, got, len(tt.wantErr))
			for _, field := range tt.wantErr {
				assert.Contains(t, got, field)
			}
		})
	}
}

func TestCreatePayrollRecordRequest_Period(t *testing.T) {
	req := CreatePayrollRecordRequest{PeriodMonth: intPtr(2), PeriodYear: intPtr(2024)}
	start, end, err := req.Period()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), end)

	req = CreatePayrollRecordRequest{PeriodStart: strPtr("2025-03-01"), PeriodEnd: strPtr("2025-03-15")}
	start, end, err = req.Period()
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", start.Format(validator.DateLayout))
	assert.Equal(t, "2025-03-15", end.Format(validator.DateLayout))

	req = CreatePayrollRecordRequest{PeriodStart: strPtr("2025-03-01")}
	_, _, err = req.Period()
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestMonthBounds_December(t *testing.T) {
	start, end := MonthBounds(2025, time.December)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), end)
}

func TestPayrollFilter_Validate(t *testing.T) {
	f := PayrollFilter{Status: strPtr("draft"), PeriodFrom: strPtr("2025-13-01"), EmployeeID: strPtr("x")}

	var fieldErrs validator.ValidationErrors
	require.True(t, errors.As(f.Validate(), &fieldErrs))
	assert.Len(t, fieldErrs, 3)

	ok := PayrollFilter{Status: strPtr("paid"), PeriodTo: strPtr("2025-12-31")}
	assert.NoError(t, ok.Validate())
}

func TestUpdatePayrollRecordRequest_Validate(t *testing.T) {
	empty := UpdatePayrollRecordRequest{ID: "x"}
	assert.Error(t, empty.Validate())

	basic := decimal.NewFromInt(100)
	withBasic := UpdatePayrollRecordRequest{ID: "x", BasicSalary: &basic}
	assert.NoError(t, withBasic.Validate())
}

func TestInvalidInputError(t *testing.T) {
	err := &InvalidInputError{Errors: validator.ValidationErrors{{Field: "basic_salary", Message: "must be non-negative"}}}

	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.False(t, errors.Is(err, ErrInvalidRules))
	assert.Equal(t, "invalid payroll input: basic_salary: must be non-negative", err.Error())
}

func requireInvalidField(t *testing.T, err error, field, message string) {
	t.Helper()
	require.ErrorIs(t, err, ErrInvalidInput)
	var invalid *InvalidInputError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, message, invalid.Errors.ToMap()[field])
}

func TestPreviewPayrollRequest_UnmarshalJSON(t *testing.T) {
	var req PreviewPayrollRequest
	require.NoError(t, json.Unmarshal([]byte(`{"basic_salary":30000,"allowances":"5000.50"}`), &req))
	assert.True(t, req.BasicSalary.Equal(decimal.NewFromInt(30000)))
	assert.True(t, req.Allowances.Equal(decimal.RequireFromString("5000.50")))

	require.NoError(t, json.Unmarshal([]byte(`{"basic_salary":"100","allowances":null}`), &req))
	assert.True(t, req.Allowances.IsZero())

	tests := []struct {
		name    string
		body    string
		field   string
		message string
	}{
		{"non numeric basic salary", `{"basic_salary":"abc"}`, "basic_salary", "must be a number"},
		{"missing basic salary", `{"allowances":"5000"}`, "basic_salary", "is required"},
		{"null basic salary", `{"basic_salary":null}`, "basic_salary", "is required"},
		{"boolean allowances", `{"basic_salary":"1","allowances":false}`, "allowances", "must be a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req PreviewPayrollRequest
			requireInvalidField(t, json.Unmarshal([]byte(tt.body), &req), tt.field, tt.message)
		})
	}
}

func TestCreatePayrollRecordRequest_UnmarshalJSON(t *testing.T) {
	var req CreatePayrollRecordRequest
	body := `{"employee_id":"e1","period_month":3,"period_year":2025,"basic_salary":"30000","notes":"march"}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	assert.Equal(t, "e1", req.EmployeeID)
	require.NotNil(t, req.PeriodMonth)
	assert.Equal(t, 3, *req.PeriodMonth)
	assert.True(t, req.BasicSalary.Equal(decimal.NewFromInt(30000)))
	assert.True(t, req.Allowances.IsZero())

	var missing CreatePayrollRecordRequest
	err := json.Unmarshal([]byte(`{"employee_id":"e1","allowances":"10"}`), &missing)
	requireInvalidField(t, err, "basic_salary", "is required")

	var bad CreatePayrollRecordRequest
	err = json.Unmarshal([]byte(`{"employee_id":"e1","basic_salary":"1,000"}`), &bad)
	requireInvalidField(t, err, "basic_salary", "must be a number")
}

func TestUpdatePayrollRecordRequest_UnmarshalJSON(t *testing.T) {
	var req UpdatePayrollRecordRequest
	require.NoError(t, json.Unmarshal([]byte(`{"notes":"fix","allowances":null}`), &req))
	assert.Nil(t, req.BasicSalary)
	assert.Nil(t, req.Allowances)
	require.NotNil(t, req.Notes)
	assert.Equal(t, "fix", *req.Notes)

	require.NoError(t, json.Unmarshal([]byte(`{"basic_salary":40000}`), &req))
	require.NotNil(t, req.BasicSalary)
	assert.True(t, req.BasicSalary.Equal(decimal.NewFromInt(40000)))

	var bad UpdatePayrollRecordRequest
	err := json.Unmarshal([]byte(`{"basic_salary":"x","allowances":""}`), &bad)
	requireInvalidField(t, err, "basic_salary", "must be a number")
	requireInvalidField(t, err, "allowances", "is required")
}

func TestMoney_MarshalJSON(t *testing.T) {
	out, err := json.Marshal(struct {
		Pension Money `json:"pension"`
		Tax     Money `json:"tax"`
	}{NewMoney(decimal.NewFromInt(2100)), NewMoney(decimal.RequireFromString("4653.345"))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pension":"2100.00","tax":"4653.35"}`, string(out))

	var back Money
	require.NoError(t, json.Unmarshal([]byte(`"2100.00"`), &back))
	assert.True(t, back.Equal(NewMoney(decimal.NewFromInt(2100))))
}
