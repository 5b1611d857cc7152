package solver

import "errors"

var (
	// ErrInvalidBudget is returned when the budget is negative or not a finite number.
	ErrInvalidBudget = errors.New("budget must be a finite non-negative number")
	// ErrNonIntegerCost is returned by the dynamic solver when a cost or the budget is not a whole number.
	ErrNonIntegerCost = errors.New("dynamic programming requires whole-number costs and budget")
	// ErrTooManyItems is returned when the catalog cannot be enumerated with a 64-bit subset counter.
	ErrTooManyItems = errors.New("too many items to enumerate every subset")
	// ErrInconsistentTable is returned when the back-trace disagrees with the table it walks.
	ErrInconsistentTable = errors.New("dynamic programming table is inconsistent")
	// ErrUnknownStrategy is returned for an unsupported strategy name.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// IsValidation reports whether err was caused by bad input rather than an
// internal failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidBudget) ||
		errors.Is(err, ErrNonIntegerCost) ||
		errors.Is(err, ErrTooManyItems) ||
		errors.Is(err, ErrUnknownStrategy)
}
