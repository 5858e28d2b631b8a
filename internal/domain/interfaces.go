package domain

import (
	"context"
	"time"

	"pawsit/internal/database"
	"pawsit/internal/models"
)

type Repository interface {
	GetAccount(ctx context.Context, id int64) (*models.Account, error)
	IsAccountMember(ctx context.Context, accountID, userID int64) (bool, error)
	GetPet(ctx context.Context, id int64) (*models.Pet, error)
	GetSitter(ctx context.Context, id int64) (*models.Sitter, error)
	GetOffering(ctx context.Context, id int64) (*models.ServiceOffering, error)
	GetOfferingsBySitter(ctx context.Context, sitterID int64) ([]*models.ServiceOffering, error)

	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreateBookingGuarded(ctx context.Context, booking *models.Booking, maxPending int) error
	HasConflict(ctx context.Context, sitterID int64, windowStart, windowEnd time.Time, excludeID int64) (bool, error)
	CountPendingByUser(ctx context.Context, userID int64) (int, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, change database.BookingStatusChange) error
	UpdateBookingScheduleGuarded(ctx context.Context, id, fromVersion int64, sitterID int64, start, end time.Time, notes string) error
	DeleteBooking(ctx context.Context, id int64) error
	GetBookingsBySitter(ctx context.Context, sitterID int64, from, to time.Time) ([]*models.Booking, error)
	GetBookingsByUser(ctx context.Context, userID int64) ([]*models.Booking, error)

	GetInvoice(ctx context.Context, id int64) (*models.Invoice, error)
	GetInvoiceByBooking(ctx context.Context, bookingID int64) (*models.Invoice, error)
	GetInvoicesByAccount(ctx context.Context, accountID int64) ([]*models.Invoice, error)
	CreateInvoiceWithItems(ctx context.Context, invoice *models.Invoice, numberPrefix string) error
	UpdateInvoiceStatusWithVersion(ctx context.Context, id, fromVersion int64, status, appendNotes string) error
	UpdateInvoiceFinancialsWithVersion(ctx context.Context, id, fromVersion int64, subtotal, fee, total int64, notes string) error
	MarkOverdueInvoices(ctx context.Context, now time.Time) (int64, error)

	CreatePlatformFee(ctx context.Context, fee *models.PlatformFee) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	SumSucceededPayments(ctx context.Context, invoiceID int64) (int64, error)

	CreateEffectTask(ctx context.Context, task *models.EffectTask) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// NotificationDispatcher delivers human-facing messages rendered from a
// template key and variables. Failures are best-effort and never fail the
// calling operation.
type NotificationDispatcher interface {
	Send(ctx context.Context, recipient int64, templateKey string, vars map[string]string) error
}

// DocumentRenderer produces a printable invoice document.
type DocumentRenderer interface {
	RenderInvoice(invoice *models.Invoice, booking *models.Booking) ([]byte, string, error)
}

// EffectEnqueuer persists side-effect jobs for the outbox worker.
type EffectEnqueuer interface {
	EnqueueEffect(ctx context.Context, taskType string, bookingID, invoiceID int64, payload interface{}) error
}

// LedgerWriter mirrors platform fee entries to an external ledger.
type LedgerWriter interface {
	AppendFeeEntry(ctx context.Context, fee *models.PlatformFee, invoiceNumber string) error
}

type BookingService interface {
	CreateBooking(ctx context.Context, req *models.BookingRequest, requester models.Requester) (*models.Booking, error)
	TransitionBooking(ctx context.Context, bookingID, version int64, target string, reason string, requester models.Requester) (*models.Booking, error)
	UpdateBooking(ctx context.Context, bookingID, version int64, patch models.BookingPatch, requester models.Requester) (*models.Booking, error)
	DeleteBooking(ctx context.Context, bookingID int64, requester models.Requester) error
	GetBooking(ctx context.Context, bookingID int64, requester models.Requester) (*models.Booking, error)
	ListBookingsForSitter(ctx context.Context, sitterID int64, from, to time.Time) ([]*models.Booking, error)
	ListBookingsForUser(ctx context.Context, userID int64) ([]*models.Booking, error)
}

type InvoiceService interface {
	GenerateForCompletedBooking(ctx context.Context, bookingID int64, items []models.InvoiceItemRequest) (*models.Invoice, error)
	SendInvoice(ctx context.Context, invoiceID, version int64, requester models.Requester) (*models.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID int64, requester models.Requester) (*models.Invoice, error)
	ListInvoicesForAccount(ctx context.Context, accountID int64, requester models.Requester) ([]*models.Invoice, error)
	CancelInvoice(ctx context.Context, invoiceID, version int64, reason string, requester models.Requester) (*models.Invoice, error)
	UpdateInvoice(ctx context.Context, invoiceID, version int64, patch models.InvoicePatch, requester models.Requester) (*models.Invoice, error)
	RecordPayment(ctx context.Context, invoiceID int64, amountCents int64, method string, requester models.Requester) (*models.Invoice, error)
}

// ReferenceCache caches read-mostly catalog data in front of the database.
// Get methods return (nil, nil) on a cache miss.
type ReferenceCache interface {
	GetOffering(ctx context.Context, id int64) (*models.ServiceOffering, error)
	SetOffering(ctx context.Context, offering *models.ServiceOffering) error
	GetSitter(ctx context.Context, id int64) (*models.Sitter, error)
	SetSitter(ctx context.Context, sitter *models.Sitter) error
	InvalidateOffering(ctx context.Context, id int64) error
	InvalidateSitter(ctx context.Context, id int64) error
}
