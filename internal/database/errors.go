package database

import "errors"

// Sentinel errors for the failure taxonomy. Callers wrap them with context
// at the point of detection and the HTTP layer maps them to statuses with
// errors.Is.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrItemNotFound    = errors.New("item not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrRequestNotFound = errors.New("item request not found")

	// ErrEmailExists is raised when a user create/update collides with an
	// existing email.
	ErrEmailExists = errors.New("email is already in use")

	// ErrNotAvailable means the item's availability flag is off.
	ErrNotAvailable = errors.New("item is not available")

	// ErrAlreadyDecided means a booking decision was attempted after the
	// booking left the waiting status. Decisions are not idempotent.
	ErrAlreadyDecided = errors.New("booking is already approved or rejected")

	// ErrUnsupportedStatus is raised for unknown listing state values. The
	// text is part of the outward contract.
	ErrUnsupportedStatus = errors.New("Unknown state: UNSUPPORTED_STATUS")

	// ErrCommentNotAllowed means the author has no finished booking of the
	// item being commented on.
	ErrCommentNotAllowed = errors.New("commenting requires a finished booking of the item")

	// ErrValidation covers malformed input caught before the business rules
	// run (time ordering, pagination bounds).
	ErrValidation = errors.New("validation failed")
)
