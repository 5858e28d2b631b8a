package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"pawsit/internal/billing"
	"pawsit/internal/database"
	"pawsit/internal/domain"
	"pawsit/internal/metrics"
	"pawsit/internal/models"
	"pawsit/internal/notify"

	"github.com/rs/zerolog"
)

// InvoicingOrchestrator sequences invoice generation and its post-commit
// side effects when a booking completes. Every step after the invoice is
// durably stored is best-effort: failures are logged and counted, never
// surfaced to the transition that triggered them.
type InvoicingOrchestrator struct {
	repo     domain.Repository
	invoices domain.InvoiceService
	effects  domain.EffectEnqueuer
	feeCalc  *billing.FeeCalculator
	logger   *zerolog.Logger
}

func NewInvoicingOrchestrator(
	repo domain.Repository,
	invoices domain.InvoiceService,
	effects domain.EffectEnqueuer,
	feeCalc *billing.FeeCalculator,
	logger *zerolog.Logger,
) *InvoicingOrchestrator {
	return &InvoicingOrchestrator{
		repo:     repo,
		invoices: invoices,
		effects:  effects,
		feeCalc:  feeCalc,
		logger:   logger,
	}
}

// HandleBookingCompleted generates the invoice for the booking and runs the
// post-creation steps. Safe to call more than once for the same booking:
// the duplicate-invoice guard makes the second call a no-op.
func (o *InvoicingOrchestrator) HandleBookingCompleted(ctx context.Context, bookingID int64) {
	invoice, err := o.invoices.GenerateForCompletedBooking(ctx, bookingID, nil)
	if err != nil {
		if errors.Is(err, database.ErrDuplicateInvoice) {
			o.logger.Debug().Int64("booking_id", bookingID).Msg("invoice already exists, skipping")
			return
		}
		o.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("invoice generation failed")
		return
	}

	o.recordFeeLedger(ctx, invoice)
	o.enqueue(ctx, models.TaskRenderDocument, invoice, nil)
	o.enqueue(ctx, models.TaskNotify, invoice, map[string]string{
		"template":       notify.TplInvoiceNotification,
		"invoice_number": invoice.InvoiceNumber,
		"total":          models.FormatCents(invoice.TotalCents),
		"due_date":       invoice.DueDate.Format("2006-01-02"),
		"booking_id":     strconv.FormatInt(invoice.BookingID, 10),
	})
}

// recordFeeLedger writes the immutable commission audit row and queues the
// external ledger mirror entry.
func (o *InvoicingOrchestrator) recordFeeLedger(ctx context.Context, invoice *models.Invoice) {
	fee, err := o.feeCalc.BuildPlatformFee(invoice.BookingID, invoice.ID, invoice.SubtotalCents, time.Now())
	if err != nil {
		metrics.IncEffectFailure(models.TaskFeeLedger)
		o.logger.Error().Err(err).Int64("invoice_id", invoice.ID).Msg("fee ledger computation failed")
		return
	}
	if err := o.repo.CreatePlatformFee(ctx, fee); err != nil {
		metrics.IncEffectFailure(models.TaskFeeLedger)
		o.logger.Error().Err(err).Int64("invoice_id", invoice.ID).Msg("fee ledger persist failed")
		return
	}

	o.enqueue(ctx, models.TaskFeeLedger, invoice, map[string]string{
		"fee_id":         strconv.FormatInt(fee.ID, 10),
		"invoice_number": invoice.InvoiceNumber,
	})
}

func (o *InvoicingOrchestrator) enqueue(ctx context.Context, taskType string, invoice *models.Invoice, payload interface{}) {
	if o.effects == nil {
		return
	}
	if err := o.effects.EnqueueEffect(ctx, taskType, invoice.BookingID, invoice.ID, payload); err != nil {
		metrics.IncEffectFailure(taskType)
		o.logger.Error().Err(err).Str("task", taskType).Int64("invoice_id", invoice.ID).Msg("effect enqueue failed")
	}
}
