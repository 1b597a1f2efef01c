package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrSolverDiverged is returned when the piecewise fixed point fails to
// stabilize within the iteration cap. For monotone bracket tables and a
// single shipping threshold this does not happen; it guards pathological
// schedules.
var ErrSolverDiverged = errors.New("pricing: solver did not reach a stable bracket selection")

// ValidationError rejects malformed input before any computation. Field uses
// the request's JSON-ish path (e.g. "fees.handlingBrackets[2].low") so the UI
// can highlight the offending control inline.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pricing: invalid %s: %s", e.Field, e.Message)
}

// invalidf builds a ValidationError with a formatted message.
func invalidf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// fieldIndex renders an indexed field path like "extraFees[3].rate".
func fieldIndex(list string, i int, field string) string {
	return fmt.Sprintf("%s[%d].%s", list, i, field)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UnsolvableMarginError means the percentage components plus the target margin
// consume 100% or more of any price, so no finite positive price satisfies the
// constraint. CombinedRate carries the offending sum (as a fraction of price)
// so the caller can render a specific "reduce fees or margin" message.
type UnsolvableMarginError struct {
	CombinedRate decimal.Decimal
}

func (e *UnsolvableMarginError) Error() string {
	return fmt.Sprintf("pricing: fees and target margin consume %s%% of price; no solvable price exists",
		e.CombinedRate.Mul(hundred).Round(2))
}

// IsUnsolvableMargin reports whether err is an UnsolvableMarginError.
func IsUnsolvableMargin(err error) bool {
	var ue *UnsolvableMarginError
	return errors.As(err, &ue)
}
