package cron

import (
	"context"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
)

// PayrollJobs contains payroll-related cron jobs
type PayrollJobs struct {
	payrollService payroll.PayrollService
	metrics        *metrics.Metrics
	now            func() time.Time
}

func NewPayrollJobs(payrollService payroll.PayrollService, metrics *metrics.Metrics) *PayrollJobs {
	return &PayrollJobs{
		payrollService: payrollService,
		metrics:        metrics,
		now:            time.Now,
	}
}

// RegisterJobs registers the payroll jobs. A non-positive interval disables them.
func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler, interval time.Duration) {
	if interval <= 0 {
		return
	}
	scheduler.AddJob("refresh_current_period_totals", interval, j.RefreshCurrentPeriodTotals)
}

// RefreshCurrentPeriodTotals publishes the summary of the current calendar
// month as gauges.
func (j *PayrollJobs) RefreshCurrentPeriodTotals(ctx context.Context) error {
	now := j.now().UTC()
	from, to := payroll.MonthBounds(now.Year(), now.Month())

	summary, err := j.payrollService.GetPayrollSummary(ctx, from.Format(validator.DateLayout), to.Format(validator.DateLayout))
	if err != nil {
		return err
	}

	j.metrics.SetPeriodTotals(summary.PendingCount, summary.PaidCount, summary.TotalNetPay.InexactFloat64())
	return nil
}
