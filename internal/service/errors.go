package service

import "errors"

// Validation errors (400-equivalent).
var (
	ErrLeadTime            = errors.New("start time must be at least 1 hour in the future")
	ErrMissingCancelReason = errors.New("cancellation requires a non-empty reason")
	ErrInvalidPrice        = errors.New("booking has no valid snapshotted price")
	ErrInconsistentTotals  = errors.New("subtotal plus platform fee must equal the total amount")
	ErrInvalidPayment      = errors.New("payment amount must be positive")
)

// Illegal-state errors (409-equivalent).
var (
	ErrInvalidTransition     = errors.New("status transition is not allowed")
	ErrBookingInProgress     = errors.New("a booking in progress cannot be deleted")
	ErrBookingTerminal       = errors.New("booking is in a terminal state")
	ErrBookingNotCompleted   = errors.New("invoice generation requires a completed booking")
	ErrSitterInactive        = errors.New("sitter is not active")
	ErrOfferingInactive      = errors.New("service offering is not active")
	ErrOfferingMismatch      = errors.New("service offering does not belong to the sitter")
	ErrInvoiceNotDraft       = errors.New("invoice can only be sent from draft")
	ErrInvoiceNotCancellable = errors.New("invoice cannot be cancelled in its current state")
	ErrInvoiceTerminal       = errors.New("invoice is in a terminal state")
	ErrInvoiceNotPayable     = errors.New("invoice is not accepting payments")
)

// Authorization errors (403-equivalent).
var (
	ErrForbidden = errors.New("requester is not allowed to perform this operation")
)
