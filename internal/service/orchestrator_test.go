package service

import (
	"context"
	"io"
	"testing"

	"pawsit/internal/billing"
	"pawsit/internal/database"
	"pawsit/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHandleBookingCompleted(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	feeCalc := billing.NewFeeCalculator(1000)

	invoice := &models.Invoice{
		ID: 7, AccountID: 10, BookingID: 5, InvoiceNumber: "INV-2026-000001",
		SubtotalCents: 5000, PlatformFeeCents: 500, TotalCents: 5500,
		Status: models.InvoiceSent,
	}

	t.Run("runs all post-commit steps", func(t *testing.T) {
		repo := new(mockRepo)
		invoices := new(mockInvoiceService)
		effects := new(mockEffects)
		o := NewInvoicingOrchestrator(repo, invoices, effects, feeCalc, &logger)

		invoices.On("GenerateForCompletedBooking", ctx, int64(5), []models.InvoiceItemRequest(nil)).Return(invoice, nil).Once()
		repo.On("CreatePlatformFee", ctx, mock.MatchedBy(func(f *models.PlatformFee) bool {
			return f.BookingID == 5 && f.InvoiceID == 7 &&
				f.BaseCents == 5000 && f.FeeCents == 500 && f.NetCents == 4500
		})).Return(nil).Once()
		effects.On("EnqueueEffect", ctx, models.TaskFeeLedger, int64(5), int64(7), mock.Anything).Return(nil).Once()
		effects.On("EnqueueEffect", ctx, models.TaskRenderDocument, int64(5), int64(7), mock.Anything).Return(nil).Once()
		effects.On("EnqueueEffect", ctx, models.TaskNotify, int64(5), int64(7), mock.Anything).Return(nil).Once()

		o.HandleBookingCompleted(ctx, 5)

		repo.AssertExpectations(t)
		invoices.AssertExpectations(t)
		effects.AssertExpectations(t)
	})

	t.Run("duplicate invoice is a no-op", func(t *testing.T) {
		repo := new(mockRepo)
		invoices := new(mockInvoiceService)
		effects := new(mockEffects)
		o := NewInvoicingOrchestrator(repo, invoices, effects, feeCalc, &logger)

		invoices.On("GenerateForCompletedBooking", ctx, int64(5), []models.InvoiceItemRequest(nil)).
			Return(nil, database.ErrDuplicateInvoice).Once()

		o.HandleBookingCompleted(ctx, 5)

		effects.AssertNotCalled(t, "EnqueueEffect", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CreatePlatformFee", mock.Anything, mock.Anything)
	})

	t.Run("fee ledger failure does not block render or notify", func(t *testing.T) {
		repo := new(mockRepo)
		invoices := new(mockInvoiceService)
		effects := new(mockEffects)
		o := NewInvoicingOrchestrator(repo, invoices, effects, feeCalc, &logger)

		invoices.On("GenerateForCompletedBooking", ctx, int64(5), []models.InvoiceItemRequest(nil)).Return(invoice, nil).Once()
		repo.On("CreatePlatformFee", ctx, mock.Anything).Return(assert.AnError).Once()
		effects.On("EnqueueEffect", ctx, models.TaskRenderDocument, int64(5), int64(7), mock.Anything).Return(nil).Once()
		effects.On("EnqueueEffect", ctx, models.TaskNotify, int64(5), int64(7), mock.Anything).Return(nil).Once()

		o.HandleBookingCompleted(ctx, 5)

		effects.AssertExpectations(t)
		effects.AssertNotCalled(t, "EnqueueEffect", ctx, models.TaskFeeLedger, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestEffectQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("serializes payload", func(t *testing.T) {
		repo := new(mockRepo)
		q := NewEffectQueue(repo)

		repo.On("CreateEffectTask", ctx, mock.MatchedBy(func(task *models.EffectTask) bool {
			return task.TaskType == models.TaskNotify &&
				task.BookingID == 5 && task.InvoiceID == 7 &&
				task.Status == models.EffectStatusPending &&
				task.Payload == `{"template":"invoice-notification"}`
		})).Return(nil).Once()

		err := q.EnqueueEffect(ctx, models.TaskNotify, 5, 7, map[string]string{
			"template": "invoice-notification",
		})
		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("nil payload defaults to empty object", func(t *testing.T) {
		repo := new(mockRepo)
		q := NewEffectQueue(repo)

		repo.On("CreateEffectTask", ctx, mock.MatchedBy(func(task *models.EffectTask) bool {
			return task.Payload == "{}"
		})).Return(nil).Once()

		err := q.EnqueueEffect(ctx, models.TaskRenderDocument, 1, 2, nil)
		require.NoError(t, err)
	})
}
