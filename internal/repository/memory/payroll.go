// Package memory keeps payroll records in process memory. It enforces the same
// uniqueness and status rules as the PostgreSQL store and is used for local
// runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type periodKey struct {
	employeeID string
	start      string
	end        string
}

func keyOf(rec payroll.PayrollRecord) periodKey {
	return periodKey{
		employeeID: strings.ToLower(rec.EmployeeID),
		start:      rec.PeriodStart.Format(validator.DateLayout),
		end:        rec.PeriodEnd.Format(validator.DateLayout),
	}
}

type payrollRepository struct {
	mu       sync.RWMutex
	records  map[string]payroll.PayrollRecord
	byPeriod map[periodKey]string
	now      func() time.Time
}

func NewPayrollRepository() payroll.PayrollRepository {
	return &payrollRepository{
		records:  make(map[string]payroll.PayrollRecord),
		byPeriod: make(map[periodKey]string),
		now:      time.Now,
	}
}

func (r *payrollRepository) CreatePayrollRecord(ctx context.Context, record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyOf(record)
	if _, exists := r.byPeriod[key]; exists {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordAlreadyExists
	}

	now := r.now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now
	r.records[record.ID] = record
	r.byPeriod[key] = record.ID

	return record, nil
}

func (r *payrollRepository) GetPayrollRecordByID(ctx context.Context, id string) (payroll.PayrollRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[id]
	if !ok {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
	}
	return rec, nil
}

func matchesFilter(rec payroll.PayrollRecord, filter payroll.PayrollFilter) bool {
	if filter.EmployeeID != nil && !strings.EqualFold(rec.EmployeeID, *filter.EmployeeID) {
		return false
	}
	if filter.Status != nil && string(rec.Status) != *filter.Status {
		return false
	}
	if filter.PeriodFrom != nil {
		if from, ok := validator.IsValidDate(*filter.PeriodFrom); ok && rec.PeriodStart.Before(from) {
			return false
		}
	}
	if filter.PeriodTo != nil {
		if to, ok := validator.IsValidDate(*filter.PeriodTo); ok && rec.PeriodEnd.After(to) {
			return false
		}
	}
	return true
}

func compareBy(column string, a, b payroll.PayrollRecord) int {
	switch column {
	case "period_start":
		return a.PeriodStart.Compare(b.PeriodStart)
	case "employee_id":
		return strings.Compare(a.EmployeeID, b.EmployeeID)
	case "gross_salary":
		return a.GrossSalary.Cmp(b.GrossSalary)
	case "net_pay":
		return a.NetPay.Cmp(b.NetPay)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func (r *payrollRepository) ListPayrollRecords(ctx context.Context, filter payroll.PayrollFilter) ([]payroll.PayrollRecord, int64, error) {
	r.mu.RLock()
	matched := make([]payroll.PayrollRecord, 0, len(r.records))
	for _, rec := range r.records {
		if matchesFilter(rec, filter) {
			matched = append(matched, rec)
		}
	}
	r.mu.RUnlock()

	column := payroll.SortableColumns[filter.SortBy]
	desc := filter.SortOrder != "asc"
	sort.Slice(matched, func(i, j int) bool {
		c := compareBy(column, matched[i], matched[j])
		if c == 0 {
			c = strings.Compare(matched[i].ID, matched[j].ID)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})

	total := int64(len(matched))
	limit, offset := filter.Pagination()
	if offset >= len(matched) {
		return []payroll.PayrollRecord{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], total, nil
}

func (r *payrollRepository) UpdatePayrollRecord(ctx context.Context, id string, mutate func(*payroll.PayrollRecord) error) (payroll.PayrollRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
	}

	if err := mutate(&rec); err != nil {
		return payroll.PayrollRecord{}, err
	}

	// Identity and lifecycle fields are owned by the store.
	current := r.records[id]
	rec.ID = current.ID
	rec.EmployeeID = current.EmployeeID
	rec.PeriodStart = current.PeriodStart
	rec.PeriodEnd = current.PeriodEnd
	rec.Status = current.Status
	rec.PaidAt = current.PaidAt
	rec.CreatedAt = current.CreatedAt
	rec.UpdatedAt = r.now().UTC()
	r.records[id] = rec

	return rec, nil
}

func (r *payrollRepository) MarkPayrollRecordPaid(ctx context.Context, id string, paidAt time.Time) (payroll.PayrollRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
	}
	if rec.Status == payroll.PayrollStatusPaid {
		return payroll.PayrollRecord{}, payroll.ErrPayrollRecordAlreadyPaid
	}

	rec.Status = payroll.PayrollStatusPaid
	rec.PaidAt = &paidAt
	rec.UpdatedAt = r.now().UTC()
	r.records[id] = rec

	return rec, nil
}

func (r *payrollRepository) DeletePayrollRecord(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[id]
	if !ok {
		return payroll.ErrPayrollRecordNotFound
	}
	if rec.Status == payroll.PayrollStatusPaid {
		return payroll.ErrCannotDeletePaidRecord
	}

	delete(r.records, id)
	delete(r.byPeriod, keyOf(rec))
	return nil
}

func (r *payrollRepository) GetPayrollSummary(ctx context.Context, periodFrom, periodTo time.Time) (payroll.PayrollSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary := payroll.PayrollSummary{
		TotalBasicSalary: decimal.Zero,
		TotalAllowances:  decimal.Zero,
		TotalGrossSalary: decimal.Zero,
		TotalPension:     decimal.Zero,
		TotalHealth:      decimal.Zero,
		TotalIncomeTax:   decimal.Zero,
		TotalNetPay:      decimal.Zero,
	}
	for _, rec := range r.records {
		if rec.PeriodStart.Before(periodFrom) || rec.PeriodEnd.After(periodTo) {
			continue
		}
		summary.TotalRecords++
		switch rec.Status {
		case payroll.PayrollStatusPending:
			summary.PendingCount++
		case payroll.PayrollStatusPaid:
			summary.PaidCount++
		}
		summary.TotalBasicSalary = summary.TotalBasicSalary.Add(rec.BasicSalary)
		summary.TotalAllowances = summary.TotalAllowances.Add(rec.Allowances)
		summary.TotalGrossSalary = summary.TotalGrossSalary.Add(rec.GrossSalary)
		summary.TotalPension = summary.TotalPension.Add(rec.PensionContribution)
		summary.TotalHealth = summary.TotalHealth.Add(rec.HealthContribution)
		summary.TotalIncomeTax = summary.TotalIncomeTax.Add(rec.IncomeTax)
		summary.TotalNetPay = summary.TotalNetPay.Add(rec.NetPay)
	}

	return summary, nil
}
