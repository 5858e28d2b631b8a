package notify

import "fmt"

// Template keys for booking and invoice notifications.
const (
	TplNewBookingClient       = "new-booking-client"
	TplNewBookingSitter       = "new-booking-sitter"
	TplBookingStatusConfirmed = "booking-status-confirmed"
	TplBookingStatusStarted   = "booking-status-started"
	TplBookingStatusCompleted = "booking-status-completed"
	TplBookingStatusCancelled = "booking-status-cancelled"
	TplBookingUpdated         = "booking-updated"
	TplInvoiceNotification    = "invoice-notification"
	TplInvoiceCancelled       = "invoice-cancelled"
)

var templates = map[string]string{
	TplNewBookingClient:       "Your booking #%s for %s on %s has been requested. Total: %s.",
	TplNewBookingSitter:       "New booking request #%s: %s on %s. Total: %s.",
	TplBookingStatusConfirmed: "Booking #%s is confirmed for %s.",
	TplBookingStatusStarted:   "Booking #%s is now in progress.",
	TplBookingStatusCompleted: "Booking #%s is completed. An invoice will follow shortly.",
	TplBookingStatusCancelled: "Booking #%s was cancelled. Reason: %s.",
	TplBookingUpdated:         "Booking #%s was rescheduled to %s.",
	TplInvoiceNotification:    "Invoice %s issued for %s, due %s.",
	TplInvoiceCancelled:       "Invoice %s was cancelled. Reason: %s.",
}

// template argument order per key
var templateArgs = map[string][]string{
	TplNewBookingClient:       {"booking_id", "service", "start", "total"},
	TplNewBookingSitter:       {"booking_id", "service", "start", "total"},
	TplBookingStatusConfirmed: {"booking_id", "start"},
	TplBookingStatusStarted:   {"booking_id"},
	TplBookingStatusCompleted: {"booking_id"},
	TplBookingStatusCancelled: {"booking_id", "reason"},
	TplBookingUpdated:         {"booking_id", "start"},
	TplInvoiceNotification:    {"invoice_number", "total", "due_date"},
	TplInvoiceCancelled:       {"invoice_number", "reason"},
}

// Render produces the message text for a template key and its variables.
// Unknown keys and missing variables fall back to a generic line so a
// template mistake never drops a notification entirely.
func Render(templateKey string, vars map[string]string) string {
	format, ok := templates[templateKey]
	if !ok {
		return fmt.Sprintf("Notification %s: %v", templateKey, vars)
	}

	names := templateArgs[templateKey]
	args := make([]interface{}, len(names))
	for i, name := range names {
		if v, ok := vars[name]; ok {
			args[i] = v
		} else {
			args[i] = "-"
		}
	}
	return fmt.Sprintf(format, args...)
}
