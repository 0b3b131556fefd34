package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrIneligiblePeriod indicates the target month is not a closed period.
	ErrIneligiblePeriod = errors.New("target period is not closed for retroactive adjustment")
	// ErrInvalidStateTransition indicates a decision on a non-pending request.
	ErrInvalidStateTransition = errors.New("request is not pending")
	// ErrConcurrencyConflict indicates a lost update was detected and retries ran out.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)
