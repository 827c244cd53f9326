package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// PensionTier is a contributory slice of gross salary. Tiers are consumed in
// order; gross above the last tier is not contributory.
type PensionTier struct {
	Width decimal.Decimal
	Rate  decimal.Decimal
}

// HealthBracket maps gross salary up to and including UpperBound to a flat
// Amount. An invalid UpperBound means the bracket is unbounded.
type HealthBracket struct {
	UpperBound decimal.NullDecimal
	Amount     decimal.Decimal
}

// TaxBand taxes a slice of taxable income at Rate. An invalid Width means the
// band absorbs everything that remains.
type TaxBand struct {
	Width decimal.NullDecimal
	Rate  decimal.Decimal
}

// Rules - The three rule tables used by the deduction calculator
type Rules struct {
	PensionTiers   []PensionTier
	HealthBrackets []HealthBracket
	TaxBands       []TaxBand
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func bounded(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(amount(s))
}

var unbounded = decimal.NullDecimal{}

// DefaultRules returns the reference tables. Each call builds fresh slices.
func DefaultRules() Rules {
	return Rules{
		PensionTiers: []PensionTier{
			{Width: amount("7000"), Rate: amount("0.06")},
			{Width: amount("29000"), Rate: amount("0.06")},
		},
		HealthBrackets: []HealthBracket{
			{UpperBound: bounded("5999"), Amount: amount("150")},
			{UpperBound: bounded("7999"), Amount: amount("300")},
			{UpperBound: bounded("11999"), Amount: amount("400")},
			{UpperBound: bounded("14999"), Amount: amount("500")},
			{UpperBound: bounded("19999"), Amount: amount("600")},
			{UpperBound: bounded("24999"), Amount: amount("750")},
			{UpperBound: bounded("29999"), Amount: amount("850")},
			{UpperBound: bounded("34999"), Amount: amount("900")},
			{UpperBound: bounded("39999"), Amount: amount("950")},
			{UpperBound: bounded("44999"), Amount: amount("1000")},
			{UpperBound: bounded("49999"), Amount: amount("1100")},
			{UpperBound: bounded("59999"), Amount: amount("1200")},
			{UpperBound: bounded("69999"), Amount: amount("1300")},
			{UpperBound: bounded("79999"), Amount: amount("1400")},
			{UpperBound: bounded("89999"), Amount: amount("1500")},
			{UpperBound: bounded("99999"), Amount: amount("1600")},
			{UpperBound: unbounded, Amount: amount("1700")},
		},
		TaxBands: []TaxBand{
			{Width: bounded("24000"), Rate: amount("0.10")},
			{Width: bounded("8333"), Rate: amount("0.25")},
			{Width: unbounded, Rate: amount("0.30")},
		},
	}
}

// Clone returns a deep copy so callers cannot mutate tables held elsewhere.
func (r Rules) Clone() Rules {
	return Rules{
		PensionTiers:   append([]PensionTier(nil), r.PensionTiers...),
		HealthBrackets: append([]HealthBracket(nil), r.HealthBrackets...),
		TaxBands:       append([]TaxBand(nil), r.TaxBands...),
	}
}

func validRate(rate decimal.Decimal) bool {
	return !rate.IsNegative() && rate.LessThanOrEqual(decimal.NewFromInt(1))
}

// Validate checks the tables can resolve every non-negative amount.
func (r Rules) Validate() error {
	var errs validator.ValidationErrors

	if len(r.PensionTiers) == 0 {
		errs = append(errs, validator.ValidationError{Field: "pension.tiers", Message: "at least one tier is required"})
	}
	for i, tier := range r.PensionTiers {
		field := fmt.Sprintf("pension.tiers[%d]", i)
		if !tier.Width.IsPositive() {
			errs = append(errs, validator.ValidationError{Field: field + ".width", Message: "must be positive"})
		}
		if !validRate(tier.Rate) {
			errs = append(errs, validator.ValidationError{Field: field + ".rate", Message: "must be between 0 and 1"})
		}
	}

	if len(r.HealthBrackets) == 0 {
		errs = append(errs, validator.ValidationError{Field: "health.brackets", Message: "at least one bracket is required"})
	}
	last := len(r.HealthBrackets) - 1
	for i, bracket := range r.HealthBrackets {
		field := fmt.Sprintf("health.brackets[%d]", i)
		if bracket.Amount.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: field + ".amount", Message: "must be non-negative"})
		}
		if !bracket.UpperBound.Valid {
			if i != last {
				errs = append(errs, validator.ValidationError{Field: field + ".up_to", Message: "only the final bracket may be unbounded"})
			}
			continue
		}
		if i == last {
			errs = append(errs, validator.ValidationError{Field: field + ".up_to", Message: "final bracket must be unbounded"})
		}
		if bracket.UpperBound.Decimal.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: field + ".up_to", Message: "must be non-negative"})
		}
		if i > 0 {
			prev := r.HealthBrackets[i-1].UpperBound
			if prev.Valid && !bracket.UpperBound.Decimal.GreaterThan(prev.Decimal) {
				errs = append(errs, validator.ValidationError{Field: field + ".up_to", Message: "must be greater than the previous bracket"})
			}
		}
	}

	if len(r.TaxBands) == 0 {
		errs = append(errs, validator.ValidationError{Field: "tax.bands", Message: "at least one band is required"})
	}
	last = len(r.TaxBands) - 1
	for i, band := range r.TaxBands {
		field := fmt.Sprintf("tax.bands[%d]", i)
		if !validRate(band.Rate) {
			errs = append(errs, validator.ValidationError{Field: field + ".rate", Message: "must be between 0 and 1"})
		}
		if !band.Width.Valid {
			if i != last {
				errs = append(errs, validator.ValidationError{Field: field + ".width", Message: "only the final band may be unbounded"})
			}
			continue
		}
		if i == last {
			errs = append(errs, validator.ValidationError{Field: field + ".width", Message: "final band must be unbounded"})
		}
		if !band.Width.Decimal.IsPositive() {
			errs = append(errs, validator.ValidationError{Field: field + ".width", Message: "must be positive"})
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRules, errs)
	}
	return nil
}
