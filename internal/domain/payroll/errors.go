package payroll

import (
	"errors"

	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
)

var (
	ErrInvalidInput               = errors.New("invalid payroll input")
	ErrInvalidRules               = errors.New("invalid payroll rule tables")
	ErrPayrollRecordNotFound      = errors.New("payroll record not found")
	ErrPayrollRecordAlreadyExists = errors.New("payroll record already exists for this period")
	ErrPayrollRecordAlreadyPaid   = errors.New("payroll record already paid, cannot modify")
	ErrCannotDeletePaidRecord     = errors.New("cannot delete paid payroll record")
	ErrInvalidPeriod              = errors.New("invalid payroll period")
)

// InvalidInputError reports salary inputs rejected before any arithmetic.
// It matches ErrInvalidInput with errors.Is and unwraps to the field errors.
type InvalidInputError struct {
	Errors validator.ValidationErrors
}

func (e *InvalidInputError) Error() string {
	return ErrInvalidInput.Error() + ": " + e.Errors.Error()
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func (e *InvalidInputError) Unwrap() error {
	return e.Errors
}
