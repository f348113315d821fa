package billing

import "errors"

var (
	// ErrNotFound indicates a referenced record is missing. Inside a
	// collection it is a degraded-data condition, not a failure.
	ErrNotFound = errors.New("billing: not found")
	// ErrClientNotFound indicates the requested client does not exist.
	ErrClientNotFound = errors.New("billing: client not found")
	// ErrDataAccess marks a store failure scoped to a single client's
	// computation. Roster and group runs report it per entry instead
	// of aborting siblings.
	ErrDataAccess = errors.New("billing: data access failure")
	// ErrApprovalTransition indicates a disallowed approval change.
	ErrApprovalTransition = errors.New("billing: approval transition not allowed")
)
