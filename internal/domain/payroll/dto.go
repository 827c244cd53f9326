package payroll

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ========== PREVIEW DTOs ==========

type PreviewPayrollRequest struct {
	BasicSalary decimal.Decimal `json:"basic_salary"`
	Allowances  decimal.Decimal `json:"allowances"`
}

// NewPreviewRequest builds a preview request from untyped input such as query
// parameters. An empty allowances value means zero.
func NewPreviewRequest(basicSalary, allowances string) (PreviewPayrollRequest, error) {
	var errs validator.ValidationErrors

	basic, msg := parseAmount(basicSalary, true)
	if msg != "" {
		errs = append(errs, validator.ValidationError{Field: "basic_salary", Message: msg})
	}
	allow, msg := parseAmount(allowances, false)
	if msg != "" {
		errs = append(errs, validator.ValidationError{Field: "allowances", Message: msg})
	}

	if len(errs) > 0 {
		return PreviewPayrollRequest{}, &InvalidInputError{Errors: errs}
	}
	return PreviewPayrollRequest{BasicSalary: basic, Allowances: allow}, nil
}

// ParseAmount converts raw text into a monetary amount, failing with
// ErrInvalidInput when it is missing or not numeric.
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	d, msg := parseAmount(raw, true)
	if msg != "" {
		return decimal.Zero, &InvalidInputError{Errors: validator.ValidationErrors{{Field: field, Message: msg}}}
	}
	return d, nil
}

func parseAmount(raw string, required bool) (decimal.Decimal, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if required {
			return decimal.Zero, "is required"
		}
		return decimal.Zero, ""
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, "must be a number"
	}
	return d, ""
}

// amountText holds a JSON amount exactly as sent, quoted or bare, so it goes
// through the same parsing as query parameters. null counts as absent.
type amountText struct {
	raw string
	set bool
}

func (a *amountText) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*a = amountText{}
		return nil
	}
	a.set = true
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &a.raw)
	}
	a.raw = string(data)
	return nil
}

// UnmarshalJSON reports missing or non-numeric amounts as *InvalidInputError.
func (r *PreviewPayrollRequest) UnmarshalJSON(data []byte) error {
	var body struct {
		BasicSalary amountText `json:"basic_salary"`
		Allowances  amountText `json:"allowances"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}

	req, err := NewPreviewRequest(body.BasicSalary.raw, body.Allowances.raw)
	if err != nil {
		return err
	}
	*r = req
	return nil
}

type DeductionsResponse struct {
	BasicSalary         Money `json:"basic_salary"`
	Allowances          Money `json:"allowances"`
	GrossSalary         Money `json:"gross_salary"`
	PensionContribution Money `json:"pension_contribution"`
	HealthContribution  Money `json:"health_contribution"`
	TaxableIncome       Money `json:"taxable_income"`
	IncomeTax           Money `json:"income_tax"`
	TotalDeductions     Money `json:"total_deductions"`
	NetPay              Money `json:"net_pay"`
}

// ========== RULES DTOs ==========

type PensionTierResponse struct {
	Width decimal.Decimal `json:"width"`
	Rate  decimal.Decimal `json:"rate"`
}

type HealthBracketResponse struct {
	UpTo   *decimal.Decimal `json:"up_to"` // null = unbounded
	Amount decimal.Decimal  `json:"amount"`
}

type TaxBandResponse struct {
	Width *decimal.Decimal `json:"width"` // null = unbounded
	Rate  decimal.Decimal  `json:"rate"`
}

type RulesResponse struct {
	PensionTiers   []PensionTierResponse   `json:"pension_tiers"`
	HealthBrackets []HealthBracketResponse `json:"health_brackets"`
	TaxBands       []TaxBandResponse       `json:"tax_bands"`
}

// ========== PAYROLL RECORD DTOs ==========

type CreatePayrollRecordRequest struct {
	EmployeeID  string          `json:"employee_id"`
	PeriodStart *string         `json:"period_start,omitempty"`
	PeriodEnd   *string         `json:"period_end,omitempty"`
	PeriodMonth *int            `json:"period_month,omitempty"`
	PeriodYear  *int            `json:"period_year,omitempty"`
	BasicSalary decimal.Decimal `json:"basic_salary"`
	Allowances  decimal.Decimal `json:"allowances"`
	Notes       *string         `json:"notes,omitempty"`
}

func (r *CreatePayrollRecordRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "is required"})
	} else if _, err := uuid.Parse(r.EmployeeID); err != nil {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "must be a valid UUID"})
	}

	byMonth := r.PeriodMonth != nil || r.PeriodYear != nil
	byDates := r.PeriodStart != nil || r.PeriodEnd != nil
	switch {
	case byMonth && byDates:
		errs = append(errs, validator.ValidationError{Field: "period", Message: "use either period_start/period_end or period_month/period_year"})
	case byMonth:
		if r.PeriodMonth == nil || *r.PeriodMonth < 1 || *r.PeriodMonth > 12 {
			errs = append(errs, validator.ValidationError{Field: "period_month", Message: "must be between 1 and 12"})
		}
		if r.PeriodYear == nil || *r.PeriodYear < 2000 {
			errs = append(errs, validator.ValidationError{Field: "period_year", Message: "must be 2000 or later"})
		}
	default:
		var start, end time.Time
		var startOK, endOK bool
		if r.PeriodStart == nil {
			errs = append(errs, validator.ValidationError{Field: "period_start", Message: "is required"})
		} else if start, startOK = validator.IsValidDate(*r.PeriodStart); !startOK {
			errs = append(errs, validator.ValidationError{Field: "period_start", Message: "must be in YYYY-MM-DD format"})
		}
		if r.PeriodEnd == nil {
			errs = append(errs, validator.ValidationError{Field: "period_end", Message: "is required"})
		} else if end, endOK = validator.IsValidDate(*r.PeriodEnd); !endOK {
			errs = append(errs, validator.ValidationError{Field: "period_end", Message: "must be in YYYY-MM-DD format"})
		}
		if startOK && endOK && end.Before(start) {
			errs = append(errs, validator.ValidationError{Field: "period_end", Message: "must not be before period_start"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// UnmarshalJSON reads the amounts as text. basic_salary is required and
// allowances defaults to zero; bad amounts yield *InvalidInputError.
func (r *CreatePayrollRecordRequest) UnmarshalJSON(data []byte) error {
	type fields CreatePayrollRecordRequest
	var body struct {
		fields
		BasicSalary amountText `json:"basic_salary"`
		Allowances  amountText `json:"allowances"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}

	amounts, err := NewPreviewRequest(body.BasicSalary.raw, body.Allowances.raw)
	if err != nil {
		return err
	}

	*r = CreatePayrollRecordRequest(body.fields)
	r.BasicSalary = amounts.BasicSalary
	r.Allowances = amounts.Allowances
	return nil
}

// Period resolves the request into inclusive start and end dates. A month and
// year pair covers the whole calendar month. Call Validate first.
func (r *CreatePayrollRecordRequest) Period() (time.Time, time.Time, error) {
	if r.PeriodMonth != nil && r.PeriodYear != nil {
		start, end := MonthBounds(*r.PeriodYear, time.Month(*r.PeriodMonth))
		return start, end, nil
	}
	if r.PeriodStart == nil || r.PeriodEnd == nil {
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
	start, ok := validator.IsValidDate(*r.PeriodStart)
	if !ok {
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
	end, ok := validator.IsValidDate(*r.PeriodEnd)
	if !ok || end.Before(start) {
		return time.Time{}, time.Time{}, ErrInvalidPeriod
	}
	return start, end, nil
}

// MonthBounds returns the first and last day of the given month in UTC.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, -1)
}

type UpdatePayrollRecordRequest struct {
	ID          string
	BasicSalary *decimal.Decimal `json:"basic_salary,omitempty"`
	Allowances  *decimal.Decimal `json:"allowances,omitempty"`
	Notes       *string          `json:"notes,omitempty"`
}

// UnmarshalJSON leaves absent or null amounts unchanged; a present amount
// must be numeric.
func (r *UpdatePayrollRecordRequest) UnmarshalJSON(data []byte) error {
	type fields UpdatePayrollRecordRequest
	var body struct {
		fields
		BasicSalary amountText `json:"basic_salary"`
		Allowances  amountText `json:"allowances"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}

	var errs validator.ValidationErrors
	parse := func(field string, a amountText) *decimal.Decimal {
		if !a.set {
			return nil
		}
		d, msg := parseAmount(a.raw, true)
		if msg != "" {
			errs = append(errs, validator.ValidationError{Field: field, Message: msg})
			return nil
		}
		return &d
	}
	basic := parse("basic_salary", body.BasicSalary)
	allowances := parse("allowances", body.Allowances)
	if len(errs) > 0 {
		return &InvalidInputError{Errors: errs}
	}

	*r = UpdatePayrollRecordRequest(body.fields)
	r.BasicSalary = basic
	r.Allowances = allowances
	return nil
}

func (r *UpdatePayrollRecordRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.BasicSalary == nil && r.Allowances == nil && r.Notes == nil {
		errs = append(errs, validator.ValidationError{Field: "body", Message: "at least one of basic_salary, allowances, notes is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PayrollRecordResponse struct {
	ID                  string  `json:"id"`
	EmployeeID          string  `json:"employee_id"`
	PeriodStart         string  `json:"period_start"`
	PeriodEnd           string  `json:"period_end"`
	BasicSalary         Money   `json:"basic_salary"`
	Allowances          Money   `json:"allowances"`
	GrossSalary         Money   `json:"gross_salary"`
	PensionContribution Money   `json:"pension_contribution"`
	HealthContribution  Money   `json:"health_contribution"`
	IncomeTax           Money   `json:"income_tax"`
	NetPay              Money   `json:"net_pay"`
	Status              string  `json:"status"`
	PaidAt              *string `json:"paid_at,omitempty"`
	Notes               *string `json:"notes,omitempty"`
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           string  `json:"updated_at"`
}

type PayrollFilter struct {
	EmployeeID *string `json:"employee_id,omitempty"`
	Status     *string `json:"status,omitempty"`
	PeriodFrom *string `json:"period_from,omitempty"`
	PeriodTo   *string `json:"period_to,omitempty"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	SortBy     string  `json:"sort_by"`
	SortOrder  string  `json:"sort_order"`
}

func (f *PayrollFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.EmployeeID != nil {
		if _, err := uuid.Parse(*f.EmployeeID); err != nil {
			errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "must be a valid UUID"})
		}
	}
	if f.Status != nil && !PayrollStatus(*f.Status).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "must be 'pending' or 'paid'"})
	}
	if f.PeriodFrom != nil {
		if _, ok := validator.IsValidDate(*f.PeriodFrom); !ok {
			errs = append(errs, validator.ValidationError{Field: "period_from", Message: "must be in YYYY-MM-DD format"})
		}
	}
	if f.PeriodTo != nil {
		if _, ok := validator.IsValidDate(*f.PeriodTo); !ok {
			errs = append(errs, validator.ValidationError{Field: "period_to", Message: "must be in YYYY-MM-DD format"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// SortableColumns maps accepted sort_by values to record columns. Unknown
// values fall back to created_at.
var SortableColumns = map[string]string{
	"created_at":   "created_at",
	"period_start": "period_start",
	"employee_id":  "employee_id",
	"gross_salary": "gross_salary",
	"net_pay":      "net_pay",
}

// Normalize fills in paging defaults and clamps the page size.
func (f *PayrollFilter) Normalize() {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
}

// Pagination returns the limit and offset for the filter's page.
func (f PayrollFilter) Pagination() (int, int) {
	f.Normalize()
	return f.Limit, (f.Page - 1) * f.Limit
}

type ListPayrollRecordResponse struct {
	Data       []PayrollRecordResponse `json:"data"`
	TotalCount int64                   `json:"total_count"`
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
}

type PayrollSummaryResponse struct {
	PeriodFrom       string `json:"period_from"`
	PeriodTo         string `json:"period_to"`
	TotalRecords     int    `json:"total_records"`
	PendingCount     int    `json:"pending_count"`
	PaidCount        int    `json:"paid_count"`
	TotalBasicSalary Money  `json:"total_basic_salary"`
	TotalAllowances  Money  `json:"total_allowances"`
	TotalGrossSalary Money  `json:"total_gross_salary"`
	TotalPension     Money  `json:"total_pension_contribution"`
	TotalHealth      Money  `json:"total_health_contribution"`
	TotalIncomeTax   Money  `json:"total_income_tax"`
	TotalNetPay      Money  `json:"total_net_pay"`
}
