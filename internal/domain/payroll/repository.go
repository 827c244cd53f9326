package payroll

import (
	"context"
	"time"
)

// PayrollRepository defines data access methods for payroll records.
type PayrollRepository interface {
	CreatePayrollRecord(ctx context.Context, record PayrollRecord) (PayrollRecord, error)
	GetPayrollRecordByID(ctx context.Context, id string) (PayrollRecord, error)
	ListPayrollRecords(ctx context.Context, filter PayrollFilter) ([]PayrollRecord, int64, error)

	// UpdatePayrollRecord loads the record under a row lock, lets mutate change
	// it and persists the result. Returning an error from mutate aborts the update.
	UpdatePayrollRecord(ctx context.Context, id string, mutate func(*PayrollRecord) error) (PayrollRecord, error)

	// MarkPayrollRecordPaid moves a pending record to paid.
	MarkPayrollRecordPaid(ctx context.Context, id string, paidAt time.Time) (PayrollRecord, error)

	// DeletePayrollRecord removes a pending record. Paid records are kept.
	DeletePayrollRecord(ctx context.Context, id string) error

	GetPayrollSummary(ctx context.Context, periodFrom, periodTo time.Time) (PayrollSummary, error)
}
