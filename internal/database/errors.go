package database

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrScheduleConflict is returned when a sitter already has an active
	// booking overlapping the requested window.
	ErrScheduleConflict = errors.New("sitter has no availability in the requested window")

	// ErrDuplicateInvoice is returned when a booking already has an invoice.
	ErrDuplicateInvoice = errors.New("invoice already exists for this booking")

	// ErrConcurrentModification is returned when a versioned update matched
	// no rows because another writer got there first.
	ErrConcurrentModification = errors.New("record was modified concurrently")

	// ErrPendingLimit is returned when the requester already holds the
	// maximum number of pending bookings.
	ErrPendingLimit = errors.New("pending booking limit reached")
)
