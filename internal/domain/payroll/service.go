package payroll

import "context"

type PayrollService interface {
	// Preview computes deductions without persisting anything.
	Preview(ctx context.Context, req PreviewPayrollRequest) (DeductionsResponse, error)
	GetRules(ctx context.Context) RulesResponse

	CreatePayrollRecord(ctx context.Context, req CreatePayrollRecordRequest) (PayrollRecordResponse, error)
	GetPayrollRecord(ctx context.Context, id string) (PayrollRecordResponse, error)
	ListPayrollRecords(ctx context.Context, filter PayrollFilter) (ListPayrollRecordResponse, error)
	UpdatePayrollRecord(ctx context.Context, req UpdatePayrollRecordRequest) (PayrollRecordResponse, error)
	MarkPayrollRecordPaid(ctx context.Context, id string) (PayrollRecordResponse, error)
	DeletePayrollRecord(ctx context.Context, id string) error

	GetPayrollSummary(ctx context.Context, periodFrom, periodTo string) (PayrollSummaryResponse, error)
}
