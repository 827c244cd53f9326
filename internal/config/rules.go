package config

import (
	"fmt"
	"strings"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// RulesFile is the YAML layout of a payroll rule table file. Amounts and
// rates are read as text so they never pass through a float. An empty or
// "unbounded" up_to/width marks the open-ended final entry.
type RulesFile struct {
	Pension struct {
		Tiers []struct {
			Width string `mapstructure:"width"`
			Rate  string `mapstructure:"rate"`
		} `mapstructure:"tiers"`
	} `mapstructure:"pension"`
	Health struct {
		Brackets []struct {
			UpTo   string `mapstructure:"up_to"`
			Amount string `mapstructure:"amount"`
		} `mapstructure:"brackets"`
	} `mapstructure:"health"`
	Tax struct {
		Bands []struct {
			Width string `mapstructure:"width"`
			Rate  string `mapstructure:"rate"`
		} `mapstructure:"bands"`
	} `mapstructure:"tax"`
}

// LoadPayrollRules reads rule tables from a YAML file. An empty path yields
// the built-in reference tables.
func LoadPayrollRules(path string) (payroll.Rules, error) {
	if path == "" {
		return payroll.DefaultRules(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return payroll.Rules{}, fmt.Errorf("error reading payroll rules file: %w", err)
	}

	var file RulesFile
	if err := v.Unmarshal(&file); err != nil {
		return payroll.Rules{}, fmt.Errorf("unable to decode payroll rules: %w", err)
	}

	rules, err := file.toRules()
	if err != nil {
		return payroll.Rules{}, err
	}
	if err := rules.Validate(); err != nil {
		return payroll.Rules{}, err
	}
	return rules, nil
}

func (f RulesFile) toRules() (payroll.Rules, error) {
	var errs validator.ValidationErrors
	number := func(field, raw string) decimal.Decimal {
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			errs = append(errs, validator.ValidationError{Field: field, Message: "must be a number"})
		}
		return d
	}
	optional := func(field, raw string) decimal.NullDecimal {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.EqualFold(raw, "unbounded") {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(number(field, raw))
	}

	var rules payroll.Rules
	for i, t := range f.Pension.Tiers {
		field := fmt.Sprintf("pension.tiers[%d]", i)
		rules.PensionTiers = append(rules.PensionTiers, payroll.PensionTier{
			Width: number(field+".width", t.Width),
			Rate:  number(field+".rate", t.Rate),
		})
	}
	for i, b := range f.Health.Brackets {
		field := fmt.Sprintf("health.brackets[%d]", i)
		rules.HealthBrackets = append(rules.HealthBrackets, payroll.HealthBracket{
			UpperBound: optional(field+".up_to", b.UpTo),
			Amount:     number(field+".amount", b.Amount),
		})
	}
	for i, b := range f.Tax.Bands {
		field := fmt.Sprintf("tax.bands[%d]", i)
		rules.TaxBands = append(rules.TaxBands, payroll.TaxBand{
			Width: optional(field+".width", b.Width),
			Rate:  number(field+".rate", b.Rate),
		})
	}

	if len(errs) > 0 {
		return payroll.Rules{}, fmt.Errorf("%w: %w", payroll.ErrInvalidRules, errs)
	}
	return rules, nil
}
