package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// centPlaces is the scale every finalized monetary amount is rounded to.
const centPlaces = 2

// DeductionCalculator turns basic salary and allowances into statutory
// deductions and net pay. It holds its own copy of the rule tables and no
// other state, so a single instance can be shared across goroutines.
type DeductionCalculator struct {
	rules payroll.Rules
}

func NewDeductionCalculator(rules payroll.Rules) (*DeductionCalculator, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &DeductionCalculator{rules: rules.Clone()}, nil
}

// Rules returns a copy of the tables in use.
func (c *DeductionCalculator) Rules() payroll.Rules {
	return c.rules.Clone()
}

// Compute runs the full deduction sequence. Inputs are checked before any
// arithmetic and normalized to cents.
func (c *DeductionCalculator) Compute(basicSalary, allowances decimal.Decimal) (payroll.Deductions, error) {
	var errs validator.ValidationErrors
	basic, msg := normalizeAmount(basicSalary)
	if msg != "" {
		errs = append(errs, validator.ValidationError{Field: "basic_salary", Message: msg})
	}
	allow, msg := normalizeAmount(allowances)
	if msg != "" {
		errs = append(errs, validator.ValidationError{Field: "allowances", Message: msg})
	}
	if len(errs) > 0 {
		return payroll.Deductions{}, &payroll.InvalidInputError{Errors: errs}
	}

	gross := basic.Add(allow)
	pension := c.Pension(gross)
	taxable := gross.Sub(pension)
	tax := c.IncomeTax(taxable)
	health := c.HealthContribution(gross)
	net := gross.Sub(tax.Add(pension).Add(health)).Round(centPlaces)

	return payroll.Deductions{
		BasicSalary:         basic,
		Allowances:          allow,
		GrossSalary:         gross,
		PensionContribution: pension,
		HealthContribution:  health,
		TaxableIncome:       taxable,
		IncomeTax:           tax,
		NetPay:              net,
	}, nil
}

func normalizeAmount(d decimal.Decimal) (decimal.Decimal, string) {
	if d.IsNegative() {
		return decimal.Zero, "must be non-negative"
	}
	d = d.Round(centPlaces)
	if d.GreaterThan(payroll.MaxAmount) {
		return decimal.Zero, fmt.Sprintf("must not exceed %s", payroll.MaxAmount.StringFixed(centPlaces))
	}
	return d, ""
}

// Pension applies each tier's rate to its slice of gross, in order. Gross
// beyond the last tier is not contributory.
func (c *DeductionCalculator) Pension(gross decimal.Decimal) decimal.Decimal {
	if !gross.IsPositive() {
		return decimal.Zero
	}

	remaining := gross
	total := decimal.Zero
	for _, tier := range c.rules.PensionTiers {
		if !remaining.IsPositive() {
			break
		}
		slice := decimal.Min(remaining, tier.Width)
		total = total.Add(slice.Mul(tier.Rate))
		remaining = remaining.Sub(slice)
	}
	return total.Round(centPlaces)
}

// HealthContribution returns the flat amount of the first bracket whose upper
// bound covers gross. Validated tables always end unbounded.
func (c *DeductionCalculator) HealthContribution(gross decimal.Decimal) decimal.Decimal {
	if !gross.IsPositive() {
		return decimal.Zero
	}

	for _, bracket := range c.rules.HealthBrackets {
		if !bracket.UpperBound.Valid || bracket.UpperBound.Decimal.GreaterThanOrEqual(gross) {
			return bracket.Amount.Round(centPlaces)
		}
	}
	return c.rules.HealthBrackets[len(c.rules.HealthBrackets)-1].Amount.Round(centPlaces)
}

// IncomeTax taxes taxable income marginally across the bands.
func (c *DeductionCalculator) IncomeTax(taxable decimal.Decimal) decimal.Decimal {
	if !taxable.IsPositive() {
		return decimal.Zero
	}

	remaining := taxable
	total := decimal.Zero
	for _, band := range c.rules.TaxBands {
		if !remaining.IsPositive() {
			break
		}
		slice := remaining
		if band.Width.Valid {
			slice = decimal.Min(remaining, band.Width.Decimal)
		}
		total = total.Add(slice.Mul(band.Rate))
		remaining = remaining.Sub(slice)
	}
	return total.Round(centPlaces)
}
