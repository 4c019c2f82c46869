package jobs

import "errors"

var (
	// ErrNotFound is returned when the job does not exist or is not visible
	// to the caller.
	ErrNotFound = errors.New("job not found")
	// ErrForbidden is returned when the actor may not trigger the transition.
	ErrForbidden = errors.New("actor not permitted for this transition")
	// ErrInvalidState is returned when the job's state does not allow the
	// operation.
	ErrInvalidState = errors.New("job state does not allow this operation")
	// ErrNotReady is returned when a precondition of an otherwise legal
	// transition is unmet (threshold, arrivals, completion marks).
	ErrNotReady = errors.New("transition preconditions not met")
	// ErrSelfHire is returned when a client tries to hire one of their own
	// profiles.
	ErrSelfHire = errors.New("cannot hire yourself")
)
