package service

import (
	"context"
	"fmt"
	"time"

	"pawsit/internal/billing"
	"pawsit/internal/domain"
	"pawsit/internal/events"
	"pawsit/internal/metrics"
	"pawsit/internal/models"
	"pawsit/internal/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type InvoiceService struct {
	repo          domain.Repository
	eventBus      domain.EventPublisher
	notifier      domain.NotificationDispatcher
	effects       domain.EffectEnqueuer
	feeCalc       *billing.FeeCalculator
	invoicePrefix string
	dueTermDays   int
	logger        *zerolog.Logger
}

func NewInvoiceService(
	repo domain.Repository,
	eventBus domain.EventPublisher,
	notifier domain.NotificationDispatcher,
	effects domain.EffectEnqueuer,
	feeCalc *billing.FeeCalculator,
	invoicePrefix string,
	dueTermDays int,
	logger *zerolog.Logger,
) *InvoiceService {
	if invoicePrefix == "" {
		invoicePrefix = "INV"
	}
	if dueTermDays <= 0 {
		dueTermDays = models.InvoiceDueTermDays
	}
	return &InvoiceService{
		repo:          repo,
		eventBus:      eventBus,
		notifier:      notifier,
		effects:       effects,
		feeCalc:       feeCalc,
		invoicePrefix: invoicePrefix,
		dueTermDays:   dueTermDays,
		logger:        logger,
	}
}

// GenerateForCompletedBooking builds and persists the invoice for a completed
// booking. Custom line items replace the synthetic full-price line when
// supplied. At most one invoice per booking; the second call fails with
// database.ErrDuplicateInvoice.
func (s *InvoiceService) GenerateForCompletedBooking(ctx context.Context, bookingID int64, items []models.InvoiceItemRequest) (*models.Invoice, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingCompleted {
		return nil, fmt.Errorf("%w: booking is %s", ErrBookingNotCompleted, booking.Status)
	}
	if booking.TotalPriceCents <= 0 {
		return nil, ErrInvalidPrice
	}

	pet, err := s.repo.GetPet(ctx, booking.PetID)
	if err != nil {
		return nil, err
	}

	lines, err := s.buildItems(ctx, booking, items)
	if err != nil {
		return nil, err
	}

	var subtotal int64
	for _, line := range lines {
		subtotal += line.TotalCents
	}

	fee, _, err := s.feeCalc.Compute(subtotal)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	invoice := &models.Invoice{
		AccountID:        pet.AccountID,
		BookingID:        booking.ID,
		IssueDate:        now,
		DueDate:          now.AddDate(0, 0, s.dueTermDays),
		SubtotalCents:    subtotal,
		PlatformFeeCents: fee,
		TotalCents:       subtotal + fee,
		Status:           models.InvoiceSent, // automatic path skips draft
		Items:            lines,
	}

	if err := s.repo.CreateInvoiceWithItems(ctx, invoice, s.invoicePrefix); err != nil {
		return nil, err
	}
	metrics.IncInvoiceGenerated()

	s.publishEvent(events.EventInvoiceGenerated, invoice)
	s.logger.Info().
		Int64("invoice_id", invoice.ID).
		Str("invoice_number", invoice.InvoiceNumber).
		Int64("booking_id", booking.ID).
		Int64("total_cents", invoice.TotalCents).
		Msg("invoice generated")

	return invoice, nil
}

func (s *InvoiceService) buildItems(ctx context.Context, booking *models.Booking, items []models.InvoiceItemRequest) ([]models.InvoiceItem, error) {
	if len(items) == 0 {
		description := "Pet care service"
		if offering, err := s.repo.GetOffering(ctx, booking.OfferingID); err == nil {
			description = offering.Name
		}
		return []models.InvoiceItem{{
			Description:    description,
			Quantity:       1,
			UnitPriceCents: booking.TotalPriceCents,
			TotalCents:     booking.TotalPriceCents,
		}}, nil
	}

	lines := make([]models.InvoiceItem, 0, len(items))
	for _, req := range items {
		if req.Quantity < 1 || req.UnitPriceCents <= 0 {
			return nil, fmt.Errorf("%w: bad line %q", ErrInconsistentTotals, req.Description)
		}
		lines = append(lines, models.InvoiceItem{
			Description:    req.Description,
			Quantity:       req.Quantity,
			UnitPriceCents: req.UnitPriceCents,
			TotalCents:     req.Quantity * req.UnitPriceCents,
		})
	}
	return lines, nil
}

func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID int64, requester models.Requester) (*models.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeAccount(ctx, invoice.AccountID, requester); err != nil {
		return nil, err
	}
	return invoice, nil
}

func (s *InvoiceService) ListInvoicesForAccount(ctx context.Context, accountID int64, requester models.Requester) ([]*models.Invoice, error) {
	if err := s.authorizeAccount(ctx, accountID, requester); err != nil {
		return nil, err
	}
	return s.repo.GetInvoicesByAccount(ctx, accountID)
}

// SendInvoice moves a draft invoice to sent and triggers render + notify.
func (s *InvoiceService) SendInvoice(ctx context.Context, invoiceID, version int64, requester models.Requester) (*models.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeAccount(ctx, invoice.AccountID, requester); err != nil {
		return nil, err
	}
	if invoice.Status != models.InvoiceDraft {
		return nil, fmt.Errorf("%w: status %s", ErrInvoiceNotDraft, invoice.Status)
	}

	if err := s.repo.UpdateInvoiceStatusWithVersion(ctx, invoiceID, version, models.InvoiceSent, ""); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	s.enqueueEffect(ctx, models.TaskRenderDocument, updated.BookingID, updated.ID, nil)
	s.enqueueEffect(ctx, models.TaskNotify, updated.BookingID, updated.ID, map[string]string{
		"template": notify.TplInvoiceNotification,
	})

	return updated, nil
}

// CancelInvoice is allowed from draft, sent, or partially paid. The reason is
// appended to the notes; financial fields stay untouched.
func (s *InvoiceService) CancelInvoice(ctx context.Context, invoiceID, version int64, reason string, requester models.Requester) (*models.Invoice, error) {
	if reason == "" {
		return nil, ErrMissingCancelReason
	}

	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeAccount(ctx, invoice.AccountID, requester); err != nil {
		return nil, err
	}
	if !models.CanCancelInvoice(invoice.Status) {
		return nil, fmt.Errorf("%w: status %s", ErrInvoiceNotCancellable, invoice.Status)
	}

	appendNotes := "CANCELLATION: " + reason
	if err := s.repo.UpdateInvoiceStatusWithVersion(ctx, invoiceID, version, models.InvoiceCancelled, appendNotes); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventInvoiceCancelled, updated)
	s.notifyBookingCreator(ctx, updated, notify.TplInvoiceCancelled, map[string]string{
		"invoice_number": updated.InvoiceNumber,
		"reason":         reason,
	})

	return updated, nil
}

// UpdateInvoice applies an administrative correction. Financial fields stay
// mutable only while the invoice is not terminal, and any accepted patch must
// keep subtotal + fee == total.
func (s *InvoiceService) UpdateInvoice(ctx context.Context, invoiceID, version int64, patch models.InvoicePatch, requester models.Requester) (*models.Invoice, error) {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalInvoiceStatus(invoice.Status) {
		return nil, ErrInvoiceTerminal
	}

	financial := patch.SubtotalCents != nil || patch.PlatformFeeCents != nil || patch.TotalCents != nil
	if financial {
		// Once past draft, only an administrator may correct the money fields.
		if invoice.Status != models.InvoiceDraft && !requester.IsAdmin {
			return nil, ErrForbidden
		}
	}
	if err := s.authorizeAccount(ctx, invoice.AccountID, requester); err != nil {
		return nil, err
	}

	subtotal := invoice.SubtotalCents
	fee := invoice.PlatformFeeCents
	total := invoice.TotalCents
	if patch.SubtotalCents != nil {
		subtotal = *patch.SubtotalCents
	}
	if patch.PlatformFeeCents != nil {
		fee = *patch.PlatformFeeCents
	}
	if patch.TotalCents != nil {
		total = *patch.TotalCents
	}
	if subtotal+fee != total {
		return nil, fmt.Errorf("%w: %d + %d != %d", ErrInconsistentTotals, subtotal, fee, total)
	}

	notes := invoice.Notes
	if patch.Notes != nil {
		notes = *patch.Notes
	}

	if err := s.repo.UpdateInvoiceFinancialsWithVersion(ctx, invoiceID, version, subtotal, fee, total, notes); err != nil {
		return nil, err
	}

	return s.repo.GetInvoice(ctx, invoiceID)
}

// RecordPayment registers a settlement attempt and rolls the invoice status
// forward to partially paid or paid.
func (s *InvoiceService) RecordPayment(ctx context.Context, invoiceID int64, amountCents int64, method string, requester models.Requester) (*models.Invoice, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidPayment
	}

	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeAccount(ctx, invoice.AccountID, requester); err != nil {
		return nil, err
	}
	if !models.IsPayableInvoiceStatus(invoice.Status) {
		return nil, fmt.Errorf("%w: status %s", ErrInvoiceNotPayable, invoice.Status)
	}

	payment := &models.Payment{
		ID:          uuid.NewString(),
		InvoiceID:   invoiceID,
		AmountCents: amountCents,
		Status:      models.PaymentSucceeded,
		Reference:   method,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	paid, err := s.repo.SumSucceededPayments(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	status := models.InvoicePartiallyPaid
	if paid >= invoice.TotalCents {
		status = models.InvoicePaid
	}
	if err := s.repo.UpdateInvoiceStatusWithVersion(ctx, invoiceID, invoice.Version, status, ""); err != nil {
		return nil, err
	}

	updated, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	s.publishEvent(events.EventPaymentRecorded, updated)

	return updated, nil
}

func (s *InvoiceService) publishEvent(eventType string, invoice *models.Invoice) {
	if s.eventBus == nil {
		return
	}
	payload := events.InvoiceEventPayload{
		InvoiceID:     invoice.ID,
		BookingID:     invoice.BookingID,
		AccountID:     invoice.AccountID,
		InvoiceNumber: invoice.InvoiceNumber,
		TotalCents:    invoice.TotalCents,
		Status:        invoice.Status,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("invoice_id", invoice.ID).Msg("publish event error")
	}
}

func (s *InvoiceService) authorizeAccount(ctx context.Context, accountID int64, requester models.Requester) error {
	if requester.IsAdmin {
		return nil
	}
	member, err := s.repo.IsAccountMember(ctx, accountID, requester.UserID)
	if err != nil {
		return err
	}
	if !member {
		return ErrForbidden
	}
	return nil
}

func (s *InvoiceService) notifyBookingCreator(ctx context.Context, invoice *models.Invoice, tpl string, vars map[string]string) {
	if s.notifier == nil {
		return
	}
	booking, err := s.repo.GetBooking(ctx, invoice.BookingID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("invoice_id", invoice.ID).Msg("booking lookup for notification failed")
		return
	}
	if err := s.notifier.Send(ctx, booking.CreatedByUserID, tpl, vars); err != nil {
		s.logger.Warn().Err(err).Str("template", tpl).Msg("notification dispatch failed")
	}
}

func (s *InvoiceService) enqueueEffect(ctx context.Context, taskType string, bookingID, invoiceID int64, payload interface{}) {
	if s.effects == nil {
		return
	}
	if err := s.effects.EnqueueEffect(ctx, taskType, bookingID, invoiceID, payload); err != nil {
		metrics.IncEffectFailure(taskType)
		s.logger.Error().Err(err).Str("task", taskType).Int64("invoice_id", invoiceID).Msg("effect enqueue failed")
	}
}
