package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueEmployeePeriodConstraint = "uk_payroll_employee_period"

const payrollRecordColumns = `
	id, employee_id, period_start, period_end, basic_salary, allowances,
	gross_salary, pension_contribution, health_contribution, income_tax, net_pay,
	status, paid_at, notes, created_at, updated_at`

type payrollRepository struct {
	db *database.DB
}

func NewPayrollRepository(db *database.DB) payroll.PayrollRepository {
	return &payrollRepository{db: db}
}

func scanPayrollRecord(row pgx.Row) (payroll.PayrollRecord, error) {
	var rec payroll.PayrollRecord
	err := row.Scan(
		&rec.ID, &rec.EmployeeID, &rec.PeriodStart, &rec.PeriodEnd, &rec.BasicSalary, &rec.Allowances,
		&rec.GrossSalary, &rec.PensionContribution, &rec.HealthContribution, &rec.IncomeTax, &rec.NetPay,
		&rec.Status, &rec.PaidAt, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == constraint
}

// ========== PAYROLL RECORDS ==========

func (r *payrollRepository) CreatePayrollRecord(ctx context.Context, record payroll.PayrollRecord) (payroll.PayrollRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO payroll_records (
			id, employee_id, period_start, period_end, basic_salary, allowances,
			gross_salary, pension_contribution, health_contribution, income_tax, net_pay,
			status, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + payrollRecordColumns

	rec, err := scanPayrollRecord(q.QueryRow(ctx, query,
		record.ID, record.EmployeeID, record.PeriodStart, record.PeriodEnd, record.BasicSalary, record.Allowances,
		record.GrossSalary, record.PensionContribution, record.HealthContribution, record.IncomeTax, record.NetPay,
		record.Status, record.Notes,
	))
	if err != nil {
		if isUniqueViolation(err, uniqueEmployeePeriodConstraint) {
			return payroll.PayrollRecord{}, payroll.ErrPayrollRecordAlreadyExists
		}
		return payroll.PayrollRecord{}, fmt.Errorf("failed to create payroll record: %w", err)
	}

	return rec, nil
}

func (r *payrollRepository) GetPayrollRecordByID(ctx context.Context, id string) (payroll.PayrollRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payrollRecordColumns + ` FROM payroll_records WHERE id = $1`

	rec, err := scanPayrollRecord(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRecord{}, payroll.ErrPayrollRecordNotFound
		}
		return payroll.PayrollRecord{}, fmt.Errorf("failed to get payroll record: %w", err)
	}

	return rec, nil
}

func (r *payrollRepository) ListPayrollRecords(ctx context.Context, filter payroll.PayrollFilter) ([]payroll.PayrollRecord, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := ` FROM payroll_records WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.EmployeeID != nil {
		baseQuery += fmt.Sprintf(" AND employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}
	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.PeriodFrom != nil {
		baseQuery += fmt.Sprintf(" AND period_start >= $%d", argIdx)
		args = append(args, *filter.PeriodFrom)
		argIdx++
	}
	if filter.PeriodTo != nil {
		baseQuery += fmt.Sprintf(" AND period_end <= $%d", argIdx)
		args = append(args, *filter.PeriodTo)
		argIdx++
	}

	// Count query
	var totalCount int64
	countQuery := "SELECT COUNT(*)" + baseQuery
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll records: %w", err)
	}

	// Sort
	sortColumn := "created_at"
	if col, ok := payroll.SortableColumns[filter.SortBy]; ok {
		sortColumn = col
	}
	sortOrder := "DESC"
	if filter.SortOrder == "asc" {
		sortOrder = "ASC"
	}

	limit, offset := filter.Pagination()

	selectQuery := fmt.Sprintf(`SELECT %s%s ORDER BY %s %s, id %s LIMIT $%d OFFSET $%d`,
		payrollRecordColumns, baseQuery, sortColumn, sortOrder, sortOrder, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll records: %w", err)
	}
	defer rows.Close()

	records := []payroll.PayrollRecord{}
	for rows.Next() {
		rec, err := scanPayrollRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate payroll records: %w", err)
	}

	return records, totalCount, nil
}

func (r *payrollRepository) UpdatePayrollRecord(ctx context.Context, id string, mutate func(*payroll.PayrollRecord) error) (payroll.PayrollRecord, error) {
	var updated payroll.PayrollRecord

	err := WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		rec, err := scanPayrollRecord(q.QueryRow(ctx,
			`SELECT `+payrollRecordColumns+` FROM payroll_records WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return payroll.ErrPayrollRecordNotFound
			}
			return fmt.Errorf("failed to lock payroll record: %w", err)
		}

		if err := mutate(&rec); err != nil {
			return err
		}

		query := `
			UPDATE payroll_records
			SET basic_salary = $2, allowances = $3, gross_salary = $4,
				pension_contribution = $5, health_contribution = $6, income_tax = $7,
				net_pay = $8, notes = $9, updated_at = NOW()
			WHERE id = $1
			RETURNING ` + payrollRecordColumns

		updated, err = scanPayrollRecord(q.QueryRow(ctx, query,
			rec.ID, rec.BasicSalary, rec.Allowances, rec.GrossSalary,
			rec.PensionContribution, rec.HealthContribution, rec.IncomeTax,
			rec.NetPay, rec.Notes,
		))
		if err != nil {
			return fmt.Errorf("failed to update payroll record: %w", err)
		}
		return nil
	})
	if err != nil {
		return payroll.PayrollRecord{}, err
	}

	return updated, nil
}

func (r *payrollRepository) MarkPayrollRecordPaid(ctx context.Context, id string, paidAt time.Time) (payroll.PayrollRecord, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE payroll_records
		SET status = 'paid', paid_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + payrollRecordColumns

	rec, err := scanPayrollRecord(q.QueryRow(ctx, query, id, paidAt))
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return payroll.PayrollRecord{}, fmt.Errorf("failed to mark payroll record paid: %w", err)
	}

	// Nothing pending under this id: tell a missing record from a paid one.
	if _, err := r.GetPayrollRecordByID(ctx, id); err != nil {
		return payroll.PayrollRecord{}, err
	}
	return payroll.PayrollRecord{}, payroll.ErrPayrollRecordAlreadyPaid
}

func (r *payrollRepository) DeletePayrollRecord(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM payroll_records WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payroll record: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetPayrollRecordByID(ctx, id); err != nil {
		return err
	}
	return payroll.ErrCannotDeletePaidRecord
}

// ========== AGGREGATIONS ==========

func (r *payrollRepository) GetPayrollSummary(ctx context.Context, periodFrom, periodTo time.Time) (payroll.PayrollSummary, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			COUNT(*) AS total_records,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending_count,
			COUNT(*) FILTER (WHERE status = 'paid') AS paid_count,
			COALESCE(SUM(basic_salary), 0) AS total_basic_salary,
			COALESCE(SUM(allowances), 0) AS total_allowances,
			COALESCE(SUM(gross_salary), 0) AS total_gross_salary,
			COALESCE(SUM(pension_contribution), 0) AS total_pension,
			COALESCE(SUM(health_contribution), 0) AS total_health,
			COALESCE(SUM(income_tax), 0) AS total_income_tax,
			COALESCE(SUM(net_pay), 0) AS total_net_pay
		FROM payroll_records
		WHERE period_start >= $1 AND period_end <= $2
	`

	var summary payroll.PayrollSummary
	err := q.QueryRow(ctx, query, periodFrom, periodTo).Scan(
		&summary.TotalRecords, &summary.PendingCount, &summary.PaidCount,
		&summary.TotalBasicSalary, &summary.TotalAllowances, &summary.TotalGrossSalary,
		&summary.TotalPension, &summary.TotalHealth, &summary.TotalIncomeTax, &summary.TotalNetPay,
	)
	if err != nil {
		return payroll.PayrollSummary{}, fmt.Errorf("failed to get payroll summary: %w", err)
	}

	return summary, nil
}
