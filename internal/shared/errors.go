package shared

import "errors"

// Error taxonomy shared by the procurement pipeline. Services wrap these with
// fmt.Errorf so callers can still match them with errors.Is.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition occurs when a status change is not permitted from the current state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrInvalidSupplier occurs when an order references a supplier that never responded.
	ErrInvalidSupplier = errors.New("supplier not among quotation respondents")
	// ErrInvalidTaxRate occurs when a tax rate or amount is outside its legal range.
	ErrInvalidTaxRate = errors.New("invalid tax rate")
	// ErrInvalidQuantity occurs when a zero or negative quantity reaches a division.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrConcurrentModification signals a failed optimistic-concurrency check; callers should re-read and retry.
	ErrConcurrentModification = errors.New("record modified concurrently")
)
