package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayrollStatus enum
type PayrollStatus string

const (
	PayrollStatusPending PayrollStatus = "pending"
	PayrollStatusPaid    PayrollStatus = "paid"
)

func (s PayrollStatus) IsValid() bool {
	return s == PayrollStatusPending || s == PayrollStatusPaid
}

// MaxAmount is the largest basic salary or allowance the record store accepts.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// Deductions - Result of one payroll computation
type Deductions struct {
	BasicSalary         decimal.Decimal
	Allowances          decimal.Decimal
	GrossSalary         decimal.Decimal
	PensionContribution decimal.Decimal
	HealthContribution  decimal.Decimal
	TaxableIncome       decimal.Decimal
	IncomeTax           decimal.Decimal
	NetPay              decimal.Decimal
}

// TotalDeductions returns pension + health + tax.
func (d Deductions) TotalDeductions() decimal.Decimal {
	return d.PensionContribution.Add(d.HealthContribution).Add(d.IncomeTax)
}

// PayrollRecord - Persisted payroll result for one employee and period
type PayrollRecord struct {
	ID                  string
	EmployeeID          string
	PeriodStart         time.Time
	PeriodEnd           time.Time
	BasicSalary         decimal.Decimal
	Allowances          decimal.Decimal
	GrossSalary         decimal.Decimal
	PensionContribution decimal.Decimal
	HealthContribution  decimal.Decimal
	IncomeTax           decimal.Decimal
	NetPay              decimal.Decimal
	Status              PayrollStatus
	PaidAt              *time.Time
	Notes               *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ApplyDeductions overwrites every monetary field of the record with d.
func (r *PayrollRecord) ApplyDeductions(d Deductions) {
	r.BasicSalary = d.BasicSalary
	r.Allowances = d.Allowances
	r.GrossSalary = d.GrossSalary
	r.PensionContribution = d.PensionContribution
	r.HealthContribution = d.HealthContribution
	r.IncomeTax = d.IncomeTax
	r.NetPay = d.NetPay
}

// PayrollSummary - Aggregate over records in a period window
type PayrollSummary struct {
	TotalRecords     int
	PendingCount     int
	PaidCount        int
	TotalBasicSalary decimal.Decimal
	TotalAllowances  decimal.Decimal
	TotalGrossSalary decimal.Decimal
	TotalPension     decimal.Decimal
	TotalHealth      decimal.Decimal
	TotalIncomeTax   decimal.Decimal
	TotalNetPay      decimal.Decimal
}
