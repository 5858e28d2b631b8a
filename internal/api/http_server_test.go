package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"pawsit/internal/billing"
	"pawsit/internal/config"
	"pawsit/internal/database"
	"pawsit/internal/models"
	"pawsit/internal/notify"
	"pawsit/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testMemberKey = "member-key"
	testSitterKey = "sitter-key"
	testAdminKey  = "admin-key"
)

// newTestStack wires the whole pipeline over a real database: services,
// orchestrator hook and HTTP server. Invoices appear synchronously when a
// booking transition reaches completed.
func newTestStack(t *testing.T) (*httptest.Server, *database.DB) {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	feeCalc := billing.NewFeeCalculator(1000)
	notifier := notify.NewLogDispatcher(&logger)
	effects := service.NewEffectQueue(db)

	invoices := service.NewInvoiceService(db, nil, notifier, effects, feeCalc, "INV", 15, &logger)
	bookings := service.NewBookingService(db, nil, notifier, feeCalc, 60, 5, 30, &logger)
	bookings.SetCompletionHandler(service.NewInvoicingOrchestrator(db, invoices, effects, feeCalc, &logger))

	cfg := config.APIConfig{
		Enabled: true,
		Port:    0,
		Auth: config.APIAuthConfig{
			Enabled: true,
			APIKeys: []config.APIClientKey{
				{Key: testMemberKey, Name: "member", UserID: 100},
				{Key: testSitterKey, Name: "sitter", UserID: 200},
				{Key: testAdminKey, Name: "ops", UserID: 1, Admin: true},
			},
		},
	}

	server := NewHTTPServer(cfg, bookings, invoices, &logger)
	ts := httptest.NewServer(server.server.Handler)
	t.Cleanup(ts.Close)
	return ts, db
}

func seedCatalog(t *testing.T, db *database.DB) (*models.Pet, *models.Sitter, *models.ServiceOffering) {
	t.Helper()
	ctx := context.Background()

	account := &models.Account{Name: "Garcia family", Email: "garcia@example.com"}
	require.NoError(t, db.CreateAccount(ctx, account))
	require.NoError(t, db.AddAccountMember(ctx, &models.AccountMember{
		AccountID: account.ID, UserID: 100, Role: "owner",
	}))

	pet := &models.Pet{AccountID: account.ID, Name: "Rocky", Species: "dog"}
	require.NoError(t, db.CreatePet(ctx, pet))

	sitter := &models.Sitter{UserID: 200, Name: "Dana", IsActive: true, ChatID: 42}
	require.NoError(t, db.CreateSitter(ctx, sitter))

	offering := &models.ServiceOffering{
		SitterID:        sitter.ID,
		Name:            "Dog walk",
		DurationMinutes: 60,
		PriceCents:      5000,
		IsActive:        true,
	}
	require.NoError(t, db.CreateOffering(ctx, offering))
	return pet, sitter, offering
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, apiKey string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestBookingLifecycleThroughAPI(t *testing.T) {
	ts, db := newTestStack(t)
	pet, sitter, offering := seedCatalog(t, db)

	start := time.Now().Add(3 * time.Hour).Truncate(time.Second)
	resp, booking := doJSON(t, ts, http.MethodPost, "/api/v1/bookings", testMemberKey, map[string]any{
		"pet_id":      pet.ID,
		"sitter_id":   sitter.ID,
		"offering_id": offering.ID,
		"start_time":  start,
		"notes":       "gate code 4411",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "pending", booking["status"])
	assert.EqualValues(t, 5000, booking["total_price_cents"])

	bookingID := int64(booking["id"].(float64))
	version := int64(booking["version"].(float64))

	// Client cannot confirm; the sitter can.
	resp, _ = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/transitions", bookingID), testMemberKey, map[string]any{
		"target": "confirmed", "version": version,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/transitions", bookingID), testSitterKey, map[string]any{
		"target": "confirmed", "version": version,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", body["status"])
	version = int64(body["version"].(float64))

	// A stale version is rejected.
	resp, _ = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/transitions", bookingID), testSitterKey, map[string]any{
		"target": "in_progress", "version": version - 1,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/transitions", bookingID), testSitterKey, map[string]any{
		"target": "in_progress", "version": version,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	version = int64(body["version"].(float64))

	resp, body = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/transitions", bookingID), testSitterKey, map[string]any{
		"target": "completed", "version": version,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", body["status"])

	// Completion generated the invoice: 50.00 + 10% fee = 55.00, sent.
	invoice, err := db.GetInvoiceByBooking(context.Background(), bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceSent, invoice.Status)
	assert.EqualValues(t, 5000, invoice.SubtotalCents)
	assert.EqualValues(t, 500, invoice.PlatformFeeCents)
	assert.EqualValues(t, 5500, invoice.TotalCents)

	// The account member can read it over the API.
	resp, body = doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/v1/invoices/%d", invoice.ID), testMemberKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, invoice.InvoiceNumber, body["invoice_number"])

	// Partial then final payment.
	resp, body = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/v1/invoices/%d/payments", invoice.ID), testMemberKey, map[string]any{
		"amount_cents": 2000, "method": "card",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "partially_paid", body["status"])

	resp, body = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/v1/invoices/%d/payments", invoice.ID), testMemberKey, map[string]any{
		"amount_cents": 3500, "method": "card",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "paid", body["status"])
}

func TestCreateBookingLeadTimeRejected(t *testing.T) {
	ts, db := newTestStack(t)
	pet, sitter, offering := seedCatalog(t, db)

	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/bookings", testMemberKey, map[string]any{
		"pet_id":      pet.ID,
		"sitter_id":   sitter.ID,
		"offering_id": offering.ID,
		"start_time":  time.Now().Add(30 * time.Minute),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "1 hour")
}

func TestCreateBookingConflictRejected(t *testing.T) {
	ts, db := newTestStack(t)
	pet, sitter, offering := seedCatalog(t, db)

	start := time.Now().Add(3 * time.Hour).Truncate(time.Second)
	payload := map[string]any{
		"pet_id":      pet.ID,
		"sitter_id":   sitter.ID,
		"offering_id": offering.ID,
		"start_time":  start,
	}

	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/bookings", testMemberKey, payload)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Same window again: the sitter is busy.
	resp, body := doJSON(t, ts, http.MethodPost, "/api/v1/bookings", testMemberKey, payload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["error"], "availability")
}

func TestBookingNotFound(t *testing.T) {
	ts, _ := newTestStack(t)
	resp, _ := doJSON(t, ts, http.MethodGet, "/api/v1/bookings/9999", testAdminKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListBookingsForSitter(t *testing.T) {
	ts, db := newTestStack(t)
	pet, sitter, offering := seedCatalog(t, db)

	start := time.Now().Add(3 * time.Hour).Truncate(time.Second)
	resp, _ := doJSON(t, ts, http.MethodPost, "/api/v1/bookings", testMemberKey, map[string]any{
		"pet_id":      pet.ID,
		"sitter_id":   sitter.ID,
		"offering_id": offering.ID,
		"start_time":  start,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/v1/bookings?sitter_id=%d", sitter.ID), testSitterKey, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	bookings := body["bookings"].([]any)
	assert.Len(t, bookings, 1)
}

func TestDeleteFreshBooking(t *testing.T) {
	ts, db := newTestStack(t)
	pet, sitter, offering := seedCatalog(t, db)

	start := time.Now().Add(3 * time.Hour).Truncate(time.Second)
	resp, booking := doJSON(t, ts, http.MethodPost, "/api/v1/bookings", testMemberKey, map[string]any{
		"pet_id":      pet.ID,
		"sitter_id":   sitter.ID,
		"offering_id": offering.ID,
		"start_time":  start,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bookingID := int64(booking["id"].(float64))

	resp, _ = doJSON(t, ts, http.MethodDelete, fmt.Sprintf("/api/v1/bookings/%d", bookingID), testMemberKey, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d", bookingID), testAdminKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	ts, _ := newTestStack(t)

	resp, _ := doJSON(t, ts, http.MethodGet, "/api/v1/bookings/1", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, "/api/v1/bookings/1", "wrong-key", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthSkipsAuth(t *testing.T) {
	ts, _ := newTestStack(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvoiceUpdateRequiresConsistentTotals(t *testing.T) {
	ts, db := newTestStack(t)
	pet, sitter, offering := seedCatalog(t, db)
	invoiceID := completeBookingViaAPI(t, ts, db, pet, sitter, offering)

	resp, body := doJSON(t, ts, http.MethodPatch, fmt.Sprintf("/api/v1/invoices/%d", invoiceID), testAdminKey, map[string]any{
		"version":        1,
		"subtotal_cents": 6000,
		"total_cents":    9999,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "total")
}

func TestCancelInvoiceRequiresReason(t *testing.T) {
	ts, db := newTestStack(t)
	pet, sitter, offering := seedCatalog(t, db)
	invoiceID := completeBookingViaAPI(t, ts, db, pet, sitter, offering)

	resp, _ := doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/v1/invoices/%d/cancel", invoiceID), testAdminKey, map[string]any{
		"version": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/v1/invoices/%d/cancel", invoiceID), testAdminKey, map[string]any{
		"version": 1, "reason": "duplicate",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["status"])
	assert.Contains(t, body["notes"], "CANCELLATION: duplicate")
}

// completeBookingViaAPI drives one booking through to completed and returns
// the generated invoice id.
func completeBookingViaAPI(t *testing.T, ts *httptest.Server, db *database.DB, pet *models.Pet, sitter *models.Sitter, offering *models.ServiceOffering) int64 {
	t.Helper()

	start := time.Now().Add(3 * time.Hour).Truncate(time.Second)
	resp, booking := doJSON(t, ts, http.MethodPost, "/api/v1/bookings", testMemberKey, map[string]any{
		"pet_id":      pet.ID,
		"sitter_id":   sitter.ID,
		"offering_id": offering.ID,
		"start_time":  start,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	bookingID := int64(booking["id"].(float64))
	version := int64(booking["version"].(float64))
	for _, target := range []string{"confirmed", "in_progress", "completed"} {
		var body map[string]any
		resp, body = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/transitions", bookingID), testSitterKey, map[string]any{
			"target": target, "version": version,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		version = int64(body["version"].(float64))
	}

	invoice, err := db.GetInvoiceByBooking(context.Background(), bookingID)
	require.NoError(t, err)
	return invoice.ID
}
