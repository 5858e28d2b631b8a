package models

// Booking statuses.
const (
	BookingPending    = "pending"
	BookingConfirmed  = "confirmed"
	BookingInProgress = "in_progress"
	BookingCompleted  = "completed"
	BookingCancelled  = "cancelled"
)

// Invoice statuses.
const (
	InvoiceDraft         = "draft"
	InvoiceSent          = "sent"
	InvoicePaid          = "paid"
	InvoicePartiallyPaid = "partially_paid"
	InvoiceOverdue       = "overdue"
	InvoiceCancelled     = "cancelled"
	InvoiceRefunded      = "refunded"
)

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

const (
	// MinBookingLeadTime minimal gap between "now" and a booking start, minutes.
	MinBookingLeadTimeMinutes = 60

	// MaxPendingBookingsPerUser anti-abuse cap on simultaneously pending requests.
	MaxPendingBookingsPerUser = 5

	// BookingDeleteGraceDays bookings older than this are soft-cancelled instead of removed.
	BookingDeleteGraceDays = 30

	// InvoiceDueTermDays payment term added to the issue date.
	InvoiceDueTermDays = 15

	// DefaultPlatformFeePercent marketplace commission when config omits it.
	DefaultPlatformFeePercent = 10.0
)

// bookingTransitions is the single source of truth for the booking state
// machine. Statuses absent from the map are terminal.
var bookingTransitions = map[string][]string{
	BookingPending:    {BookingConfirmed, BookingCancelled},
	BookingConfirmed:  {BookingInProgress, BookingCancelled},
	BookingInProgress: {BookingCompleted, BookingCancelled},
}

// CanTransitionBooking reports whether the booking state machine allows
// moving from one status to another.
func CanTransitionBooking(from, to string) bool {
	for _, allowed := range bookingTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminalBookingStatus reports whether no further transitions exist.
func IsTerminalBookingStatus(status string) bool {
	return status == BookingCompleted || status == BookingCancelled
}

// ActiveBookingStatuses are the statuses that occupy a sitter's schedule.
func ActiveBookingStatuses() []string {
	return []string{BookingPending, BookingConfirmed, BookingInProgress}
}

// IsTerminalInvoiceStatus reports whether an invoice can no longer change.
func IsTerminalInvoiceStatus(status string) bool {
	return status == InvoicePaid || status == InvoiceCancelled || status == InvoiceRefunded
}

// IsPayableInvoiceStatus reports whether payments may still be applied.
func IsPayableInvoiceStatus(status string) bool {
	switch status {
	case InvoiceSent, InvoicePartiallyPaid, InvoiceOverdue:
		return true
	}
	return false
}

// CanCancelInvoice reports whether cancellation is allowed from a status.
func CanCancelInvoice(status string) bool {
	switch status {
	case InvoiceDraft, InvoiceSent, InvoicePartiallyPaid:
		return true
	}
	return false
}
