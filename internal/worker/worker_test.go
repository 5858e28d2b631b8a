package worker

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pawsit/internal/database"
	"pawsit/internal/models"

	"github.com/rs/zerolog"
)

func TestProcessRenderTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	invoice, _ := seedInvoice(t, db)
	renderer := &fakeRenderer{data: []byte("xlsx"), filename: "invoice_test.xlsx"}
	exportDir := t.TempDir()
	w := newTestWorker(db, renderer, nil, nil, RetryPolicy{}, exportDir)

	ctx := context.Background()
	task := enqueueEffect(t, db, models.TaskRenderDocument, invoice.BookingID, invoice.ID, "{}")
	w.processTask(ctx, task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "done" {
		t.Fatalf("expected status=done, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if renderer.calls != 1 {
		t.Fatalf("expected 1 render call, got %d", renderer.calls)
	}

	data, err := os.ReadFile(filepath.Join(exportDir, "invoice_test.xlsx"))
	if err != nil {
		t.Fatalf("read exported document: %v", err)
	}
	if string(data) != "xlsx" {
		t.Fatalf("unexpected document contents: %q", data)
	}
}

func TestProcessNotifyTask(t *testing.T) {
	db := newTestDB(t)
	invoice, booking := seedInvoice(t, db)
	notifier := &fakeNotifier{}
	w := newTestWorker(db, nil, notifier, nil, RetryPolicy{}, t.TempDir())

	ctx := context.Background()
	payload := `{"template":"invoice-notification","invoice_number":"` + invoice.InvoiceNumber + `","total":"55.00"}`
	task := enqueueEffect(t, db, models.TaskNotify, invoice.BookingID, invoice.ID, payload)
	w.processTask(ctx, task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "done" {
		t.Fatalf("expected status=done, got %s", status)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected 1 send call, got %d", notifier.calls)
	}
	if notifier.lastRecipient != booking.CreatedByUserID {
		t.Fatalf("expected recipient %d, got %d", booking.CreatedByUserID, notifier.lastRecipient)
	}
	if notifier.lastTemplate != "invoice-notification" {
		t.Fatalf("unexpected template %s", notifier.lastTemplate)
	}
	if notifier.lastVars["total"] != "55.00" {
		t.Fatalf("unexpected vars: %+v", notifier.lastVars)
	}
}

func TestProcessFeeLedgerTask(t *testing.T) {
	db := newTestDB(t)
	invoice, _ := seedInvoice(t, db)

	ctx := context.Background()
	fee := &models.PlatformFee{
		BookingID:  invoice.BookingID,
		InvoiceID:  invoice.ID,
		BaseCents:  5000,
		PercentBps: 1000,
		FeeCents:   500,
		NetCents:   4500,
	}
	if err := db.CreatePlatformFee(ctx, fee); err != nil {
		t.Fatalf("create fee: %v", err)
	}

	ledger := &fakeLedger{}
	w := newTestWorker(db, nil, nil, ledger, RetryPolicy{}, t.TempDir())

	payload := `{"fee_id":"1","invoice_number":"` + invoice.InvoiceNumber + `"}`
	task := enqueueEffect(t, db, models.TaskFeeLedger, invoice.BookingID, invoice.ID, payload)
	w.processTask(ctx, task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "done" {
		t.Fatalf("expected status=done, got %s", status)
	}
	if ledger.calls != 1 {
		t.Fatalf("expected 1 ledger append, got %d", ledger.calls)
	}
	if ledger.lastFee.FeeCents != 500 {
		t.Fatalf("expected fee 500, got %d", ledger.lastFee.FeeCents)
	}
	if ledger.lastNumber != invoice.InvoiceNumber {
		t.Fatalf("expected invoice number %s, got %s", invoice.InvoiceNumber, ledger.lastNumber)
	}
}

func TestFeeLedgerTaskAckedWithoutLedger(t *testing.T) {
	db := newTestDB(t)
	invoice, _ := seedInvoice(t, db)
	w := newTestWorker(db, nil, nil, nil, RetryPolicy{MaxRetries: 3}, t.TempDir())

	ctx := context.Background()
	task := enqueueEffect(t, db, models.TaskFeeLedger, invoice.BookingID, invoice.ID, "{}")
	w.processTask(ctx, task)

	status, retryCount, _ := loadTaskStatus(t, db, task.ID)
	if status != "done" {
		t.Fatalf("expected status=done, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	invoice, _ := seedInvoice(t, db)
	renderer := &fakeRenderer{err: errors.New("boom")}
	w := newTestWorker(db, renderer, nil, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, t.TempDir())

	ctx := context.Background()
	task := enqueueEffect(t, db, models.TaskRenderDocument, invoice.BookingID, invoice.ID, "{}")
	w.processTask(ctx, task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "retry" {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	invoice, _ := seedInvoice(t, db)
	renderer := &fakeRenderer{err: errors.New("fatal")}
	w := newTestWorker(db, renderer, nil, nil, RetryPolicy{MaxRetries: 1}, t.TempDir())

	ctx := context.Background()
	task := enqueueEffect(t, db, models.TaskRenderDocument, invoice.BookingID, invoice.ID, "{}")
	w.processTask(ctx, task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "failed" {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestProcessUnknownTaskType(t *testing.T) {
	db := newTestDB(t)
	invoice, _ := seedInvoice(t, db)
	w := newTestWorker(db, nil, nil, nil, RetryPolicy{MaxRetries: 1}, t.TempDir())

	ctx := context.Background()
	task := enqueueEffect(t, db, "sync_calendar", invoice.BookingID, invoice.ID, "{}")
	w.processTask(ctx, task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "failed" {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestOverdueSweep(t *testing.T) {
	db := newTestDB(t)
	invoice, _ := seedInvoice(t, db)
	w := newTestWorker(db, nil, nil, nil, RetryPolicy{}, t.TempDir())

	ctx := context.Background()
	w.sweepOverdue(ctx)

	got, err := db.GetInvoice(ctx, invoice.ID)
	if err != nil {
		t.Fatalf("get invoice: %v", err)
	}
	if got.Status != models.InvoiceOverdue {
		t.Fatalf("expected overdue, got %s", got.Status)
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3}
	if policy.Exhausted(2) {
		t.Fatal("attempt 2 of 3 should not be exhausted")
	}
	if !policy.Exhausted(3) {
		t.Fatal("attempt 3 of 3 should be exhausted")
	}

	var zero RetryPolicy
	if zero.Exhausted(4) {
		t.Fatal("default budget is 5 attempts")
	}
	if !zero.Exhausted(5) {
		t.Fatal("default budget exhausts on attempt 5")
	}
}

func TestDecodeVars(t *testing.T) {
	t.Run("ValidPayload", func(t *testing.T) {
		vars, err := decodeVars(`{"template":"invoice-notification","total":"55.00"}`)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if vars["template"] != "invoice-notification" || vars["total"] != "55.00" {
			t.Fatalf("unexpected vars: %+v", vars)
		}
	})

	t.Run("InvalidPayload", func(t *testing.T) {
		_, err := decodeVars(`invalid json`)
		if err == nil {
			t.Fatalf("expected error for invalid json")
		}
	})
}

// Helpers

type fakeRenderer struct {
	data     []byte
	filename string
	err      error
	calls    int
}

func (f *fakeRenderer) RenderInvoice(invoice *models.Invoice, booking *models.Booking) ([]byte, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return f.data, f.filename, nil
}

type fakeNotifier struct {
	err           error
	calls         int
	lastRecipient int64
	lastTemplate  string
	lastVars      map[string]string
}

func (f *fakeNotifier) Send(ctx context.Context, recipient int64, templateKey string, vars map[string]string) error {
	f.calls++
	f.lastRecipient = recipient
	f.lastTemplate = templateKey
	f.lastVars = vars
	return f.err
}

type fakeLedger struct {
	err        error
	calls      int
	lastFee    *models.PlatformFee
	lastNumber string
}

func (f *fakeLedger) AppendFeeEntry(ctx context.Context, fee *models.PlatformFee, invoiceNumber string) error {
	f.calls++
	f.lastFee = fee
	f.lastNumber = invoiceNumber
	return f.err
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	path := filepath.Join(t.TempDir(), "worker.db")
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestWorker(db *database.DB, renderer *fakeRenderer, notifier *fakeNotifier, ledger *fakeLedger, retry RetryPolicy, exportDir string) *EffectsWorker {
	logger := zerolog.Nop()
	w := NewEffectsWorker(db, nil, nil, nil, nil, retry, exportDir, &logger)
	if renderer != nil {
		w.renderer = renderer
	}
	if notifier != nil {
		w.notifier = notifier
	}
	if ledger != nil {
		w.ledger = ledger
	}
	return w
}

// seedInvoice creates the catalog chain, one completed booking and a sent
// invoice that is already past due.
func seedInvoice(t *testing.T, db *database.DB) (*models.Invoice, *models.Booking) {
	t.Helper()
	ctx := context.Background()

	account := &models.Account{Name: "Garcia family", Email: "garcia@example.com"}
	if err := db.CreateAccount(ctx, account); err != nil {
		t.Fatalf("create account: %v", err)
	}
	pet := &models.Pet{AccountID: account.ID, Name: "Rocky", Species: "dog"}
	if err := db.CreatePet(ctx, pet); err != nil {
		t.Fatalf("create pet: %v", err)
	}
	sitter := &models.Sitter{UserID: 200, Name: "Dana", IsActive: true, ChatID: 42}
	if err := db.CreateSitter(ctx, sitter); err != nil {
		t.Fatalf("create sitter: %v", err)
	}
	offering := &models.ServiceOffering{
		SitterID: sitter.ID, Name: "Dog walk", DurationMinutes: 60, PriceCents: 5000, IsActive: true,
	}
	if err := db.CreateOffering(ctx, offering); err != nil {
		t.Fatalf("create offering: %v", err)
	}

	start := time.Now().Add(2 * time.Hour)
	booking := &models.Booking{
		PetID:           pet.ID,
		SitterID:        sitter.ID,
		OfferingID:      offering.ID,
		CreatedByUserID: 100,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		TotalPriceCents: 5000,
		Status:          models.BookingPending,
	}
	if err := db.CreateBookingGuarded(ctx, booking, 5); err != nil {
		t.Fatalf("create booking: %v", err)
	}

	invoice := &models.Invoice{
		AccountID:        account.ID,
		BookingID:        booking.ID,
		IssueDate:        time.Now().Add(-20 * 24 * time.Hour),
		DueDate:          time.Now().Add(-5 * 24 * time.Hour),
		SubtotalCents:    5000,
		PlatformFeeCents: 500,
		TotalCents:       5500,
		Status:           models.InvoiceSent,
		Items: []models.InvoiceItem{
			{Description: "Dog walk", Quantity: 1, UnitPriceCents: 5000, TotalCents: 5000},
		},
	}
	if err := db.CreateInvoiceWithItems(ctx, invoice, "INV"); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	return invoice, booking
}

func enqueueEffect(t *testing.T, db *database.DB, taskType string, bookingID, invoiceID int64, payload string) *models.EffectTask {
	t.Helper()
	task := &models.EffectTask{
		TaskType:  taskType,
		BookingID: bookingID,
		InvoiceID: invoiceID,
		Payload:   payload,
		Status:    models.EffectStatusPending,
	}
	if err := db.CreateEffectTask(context.Background(), task); err != nil {
		t.Fatalf("create effect task: %v", err)
	}
	return task
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM effect_tasks WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
