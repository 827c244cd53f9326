package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	sourcePreview = "preview"
	sourceRecord  = "record"
)

type PayrollServiceImpl struct {
	payrollRepo payroll.PayrollRepository
	calculator  *DeductionCalculator
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

func NewPayrollService(
	payrollRepo payroll.PayrollRepository,
	calculator *DeductionCalculator,
	metrics *metrics.Metrics,
	logger *slog.Logger,
) payroll.PayrollService {
	return &PayrollServiceImpl{
		payrollRepo: payrollRepo,
		calculator:  calculator,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "payroll_service")),
		now:         time.Now,
	}
}

// compute is the single entry point to the calculator for both call sites.
func (s *PayrollServiceImpl) compute(ctx context.Context, source string, basic, allowances decimal.Decimal) (payroll.Deductions, error) {
	result, err := s.calculator.Compute(basic, allowances)
	if err != nil {
		if errors.Is(err, payroll.ErrInvalidInput) {
			s.metrics.ObserveComputation(source, metrics.OutcomeInvalidInput)
			s.logger.WarnContext(ctx, "payroll input rejected",
				slog.String("source", source),
				slog.String("error", err.Error()),
			)
		}
		return payroll.Deductions{}, err
	}
	s.metrics.ObserveComputation(source, metrics.OutcomeSuccess)
	return result, nil
}

func checkRecordID(id string) error {
	if !validator.IsValidUUID(id) {
		return validator.ValidationErrors{{Field: "id", Message: "must be a valid UUID"}}
	}
	return nil
}

// ========== PREVIEW ==========

func (s *PayrollServiceImpl) Preview(ctx context.Context, req payroll.PreviewPayrollRequest) (payroll.DeductionsResponse, error) {
	result, err := s.compute(ctx, sourcePreview, req.BasicSalary, req.Allowances)
	if err != nil {
		return payroll.DeductionsResponse{}, err
	}

	return payroll.DeductionsResponse{
		BasicSalary:         payroll.NewMoney(result.BasicSalary),
		Allowances:          payroll.NewMoney(result.Allowances),
		GrossSalary:         payroll.NewMoney(result.GrossSalary),
		PensionContribution: payroll.NewMoney(result.PensionContribution),
		HealthContribution:  payroll.NewMoney(result.HealthContribution),
		TaxableIncome:       payroll.NewMoney(result.TaxableIncome),
		IncomeTax:           payroll.NewMoney(result.IncomeTax),
		TotalDeductions:     payroll.NewMoney(result.TotalDeductions()),
		NetPay:              payroll.NewMoney(result.NetPay),
	}, nil
}

func (s *PayrollServiceImpl) GetRules(ctx context.Context) payroll.RulesResponse {
	rules := s.calculator.Rules()

	resp := payroll.RulesResponse{
		PensionTiers:   make([]payroll.PensionTierResponse, 0, len(rules.PensionTiers)),
		HealthBrackets: make([]payroll.HealthBracketResponse, 0, len(rules.HealthBrackets)),
		TaxBands:       make([]payroll.TaxBandResponse, 0, len(rules.TaxBands)),
	}
	for _, t := range rules.PensionTiers {
		resp.PensionTiers = append(resp.PensionTiers, payroll.PensionTierResponse{Width: t.Width, Rate: t.Rate})
	}
	for _, b := range rules.HealthBrackets {
		item := payroll.HealthBracketResponse{Amount: b.Amount}
		if b.UpperBound.Valid {
			upTo := b.UpperBound.Decimal
			item.UpTo = &upTo
		}
		resp.HealthBrackets = append(resp.HealthBrackets, item)
	}
	for _, b := range rules.TaxBands {
		item := payroll.TaxBandResponse{Rate: b.Rate}
		if b.Width.Valid {
			width := b.Width.Decimal
			item.Width = &width
		}
		resp.TaxBands = append(resp.TaxBands, item)
	}

	return resp
}

// ========== PAYROLL RECORDS ==========

func (s *PayrollServiceImpl) CreatePayrollRecord(ctx context.Context, req payroll.CreatePayrollRecordRequest) (payroll.PayrollRecordResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	periodStart, periodEnd, err := req.Period()
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	result, err := s.compute(ctx, sourceRecord, req.BasicSalary, req.Allowances)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return payroll.PayrollRecordResponse{}, fmt.Errorf("failed to generate payroll record id: %w", err)
	}

	record := payroll.PayrollRecord{
		ID:          id.String(),
		EmployeeID:  req.EmployeeID,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Status:      payroll.PayrollStatusPending,
		Notes:       req.Notes,
	}
	record.ApplyDeductions(result)

	created, err := s.payrollRepo.CreatePayrollRecord(ctx, record)
	if err != nil {
		if errors.Is(err, payroll.ErrPayrollRecordAlreadyExists) {
			s.logger.InfoContext(ctx, "duplicate payroll record rejected",
				slog.String("employee_id", req.EmployeeID),
				slog.String("period_start", periodStart.Format(validator.DateLayout)),
				slog.String("period_end", periodEnd.Format(validator.DateLayout)),
			)
		}
		return payroll.PayrollRecordResponse{}, err
	}

	s.metrics.ObserveRecord(metrics.ActionCreated)
	s.metrics.ObserveNetPay(created.NetPay.InexactFloat64())
	s.logger.InfoContext(ctx, "payroll record created",
		slog.String("record_id", created.ID),
		slog.String("employee_id", created.EmployeeID),
		slog.String("gross_salary", created.GrossSalary.StringFixed(2)),
		slog.String("net_pay", created.NetPay.StringFixed(2)),
	)

	return mapToRecordResponse(created), nil
}

func (s *PayrollServiceImpl) GetPayrollRecord(ctx context.Context, id string) (payroll.PayrollRecordResponse, error) {
	if err := checkRecordID(id); err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	record, err := s.payrollRepo.GetPayrollRecordByID(ctx, id)
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	return mapToRecordResponse(record), nil
}

func (s *PayrollServiceImpl) ListPayrollRecords(ctx context.Context, filter payroll.PayrollFilter) (payroll.ListPayrollRecordResponse, error) {
	if err := filter.Validate(); err != nil {
		return payroll.ListPayrollRecordResponse{}, err
	}
	filter.Normalize()

	records, totalCount, err := s.payrollRepo.ListPayrollRecords(ctx, filter)
	if err != nil {
		return payroll.ListPayrollRecordResponse{}, err
	}

	return payroll.ListPayrollRecordResponse{
		Data:       mapToRecordResponses(records),
		TotalCount: totalCount,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

// UpdatePayrollRecord changes inputs or notes of a pending record. Deductions
// are recomputed from the merged inputs before the row is written.
func (s *PayrollServiceImpl) UpdatePayrollRecord(ctx context.Context, req payroll.UpdatePayrollRecordRequest) (payroll.PayrollRecordResponse, error) {
	if err := checkRecordID(req.ID); err != nil {
		return payroll.PayrollRecordResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	updated, err := s.payrollRepo.UpdatePayrollRecord(ctx, req.ID, func(rec *payroll.PayrollRecord) error {
		if rec.Status == payroll.PayrollStatusPaid {
			return payroll.ErrPayrollRecordAlreadyPaid
		}

		basic := rec.BasicSalary
		if req.BasicSalary != nil {
			basic = *req.BasicSalary
		}
		allowances := rec.Allowances
		if req.Allowances != nil {
			allowances = *req.Allowances
		}

		result, err := s.compute(ctx, sourceRecord, basic, allowances)
		if err != nil {
			return err
		}
		rec.ApplyDeductions(result)

		if req.Notes != nil {
			rec.Notes = req.Notes
		}
		return nil
	})
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	s.metrics.ObserveRecord(metrics.ActionUpdated)
	s.logger.InfoContext(ctx, "payroll record updated",
		slog.String("record_id", updated.ID),
		slog.String("net_pay", updated.NetPay.StringFixed(2)),
	)

	return mapToRecordResponse(updated), nil
}

func (s *PayrollServiceImpl) MarkPayrollRecordPaid(ctx context.Context, id string) (payroll.PayrollRecordResponse, error) {
	if err := checkRecordID(id); err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	paid, err := s.payrollRepo.MarkPayrollRecordPaid(ctx, id, s.now().UTC())
	if err != nil {
		return payroll.PayrollRecordResponse{}, err
	}

	s.metrics.ObserveRecord(metrics.ActionPaid)
	s.logger.InfoContext(ctx, "payroll record paid",
		slog.String("record_id", paid.ID),
		slog.String("employee_id", paid.EmployeeID),
	)

	return mapToRecordResponse(paid), nil
}

func (s *PayrollServiceImpl) DeletePayrollRecord(ctx context.Context, id string) error {
	if err := checkRecordID(id); err != nil {
		return err
	}

	if err := s.payrollRepo.DeletePayrollRecord(ctx, id); err != nil {
		return err
	}

	s.metrics.ObserveRecord(metrics.ActionDeleted)
	s.logger.InfoContext(ctx, "payroll record deleted", slog.String("record_id", id))
	return nil
}

// ========== SUMMARY ==========

func (s *PayrollServiceImpl) GetPayrollSummary(ctx context.Context, periodFrom, periodTo string) (payroll.PayrollSummaryResponse, error) {
	from, ok := validator.IsValidDate(periodFrom)
	if !ok {
		return payroll.PayrollSummaryResponse{}, fmt.Errorf("%w: period_from must be in YYYY-MM-DD format", payroll.ErrInvalidPeriod)
	}
	to, ok := validator.IsValidDate(periodTo)
	if !ok {
		return payroll.PayrollSummaryResponse{}, fmt.Errorf("%w: period_to must be in YYYY-MM-DD format", payroll.ErrInvalidPeriod)
	}
	if to.Before(from) {
		return payroll.PayrollSummaryResponse{}, fmt.Errorf("%w: period_to must not be before period_from", payroll.ErrInvalidPeriod)
	}

	summary, err := s.payrollRepo.GetPayrollSummary(ctx, from, to)
	if err != nil {
		return payroll.PayrollSummaryResponse{}, err
	}

	return payroll.PayrollSummaryResponse{
		PeriodFrom:       from.Format(validator.DateLayout),
		PeriodTo:         to.Format(validator.DateLayout),
		TotalRecords:     summary.TotalRecords,
		PendingCount:     summary.PendingCount,
		PaidCount:        summary.PaidCount,
		TotalBasicSalary: payroll.NewMoney(summary.TotalBasicSalary),
		TotalAllowances:  payroll.NewMoney(summary.TotalAllowances),
		TotalGrossSalary: payroll.NewMoney(summary.TotalGrossSalary),
		TotalPension:     payroll.NewMoney(summary.TotalPension),
		TotalHealth:      payroll.NewMoney(summary.TotalHealth),
		TotalIncomeTax:   payroll.NewMoney(summary.TotalIncomeTax),
		TotalNetPay:      payroll.NewMoney(summary.TotalNetPay),
	}, nil
}

// ========== HELPERS ==========

func mapToRecordResponse(r payroll.PayrollRecord) payroll.PayrollRecordResponse {
	var paidAtStr *string
	if r.PaidAt != nil {
		str := r.PaidAt.Format(time.RFC3339)
		paidAtStr = &str
	}

	return payroll.PayrollRecordResponse{
		ID:                  r.ID,
		EmployeeID:          r.EmployeeID,
		PeriodStart:         r.PeriodStart.Format(validator.DateLayout),
		PeriodEnd:           r.PeriodEnd.Format(validator.DateLayout),
		BasicSalary:         payroll.NewMoney(r.BasicSalary),
		Allowances:          payroll.NewMoney(r.Allowances),
		GrossSalary:         payroll.NewMoney(r.GrossSalary),
		PensionContribution: payroll.NewMoney(r.PensionContribution),
		HealthContribution:  payroll.NewMoney(r.HealthContribution),
		IncomeTax:           payroll.NewMoney(r.IncomeTax),
		NetPay:              payroll.NewMoney(r.NetPay),
		Status:              string(r.Status),
		PaidAt:              paidAtStr,
		Notes:               r.Notes,
		CreatedAt:           r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:           r.UpdatedAt.Format(time.RFC3339),
	}
}

func mapToRecordResponses(records []payroll.PayrollRecord) []payroll.PayrollRecordResponse {
	result := make([]payroll.PayrollRecordResponse, 0, len(records))
	for _, r := range records {
		result = append(result, mapToRecordResponse(r))
	}
	return result
}
