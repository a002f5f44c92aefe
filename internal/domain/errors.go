package domain

import "errors"

var (
	// ErrNotFound is returned when an assessment, item or attempt does not exist.
	ErrNotFound = errors.New("not found")
	// ErrArchived is returned when an assessment no longer accepts attempts.
	ErrArchived = errors.New("assessment archived")
	// ErrAlreadyAttempted is returned when the participant already holds the attempt for an assessment.
	ErrAlreadyAttempted = errors.New("assessment already attempted")
	// ErrAlreadyFinalized is returned when grading an attempt that is already complete.
	ErrAlreadyFinalized = errors.New("attempt already finalized")
	// ErrAttemptClosed is returned for any mutation after an attempt stopped running.
	ErrAttemptClosed = errors.New("attempt closed")
	// ErrDuplicateResponse is returned when an item already has a response in the attempt.
	ErrDuplicateResponse = errors.New("duplicate response")
	// ErrPersistence marks transient store failures.
	ErrPersistence = errors.New("persistence failure")

	// ErrConstraintViolation is surfaced by stores when a uniqueness constraint rejects a write.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrInvalidOption indicates a selected option index outside the item's options.
	ErrInvalidOption = errors.New("invalid option")
	// ErrOutOfOrder indicates an answer for an item that is not the current one.
	ErrOutOfOrder = errors.New("item answered out of order")
	// ErrForbidden indicates the viewer may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUnknownRole indicates a role outside the supported set.
	ErrUnknownRole = errors.New("unknown role")
)
