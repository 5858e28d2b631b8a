package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pawsit/internal/config"
	"pawsit/internal/database"
	"pawsit/internal/domain"
	"pawsit/internal/metrics"
	"pawsit/internal/models"
	"pawsit/internal/service"

	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking and invoice lifecycle over a JSON API.
type HTTPServer struct {
	cfg      config.APIConfig
	bookings domain.BookingService
	invoices domain.InvoiceService
	server   *http.Server
	auth     *HTTPAuth
	logger   *zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, bookings domain.BookingService, invoices domain.InvoiceService, logger *zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{cfg: cfg, bookings: bookings, invoices: invoices, logger: logger}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/bookings/", srv.handleBookingByID)
	mux.HandleFunc("/api/v1/invoices", srv.handleInvoices)
	mux.HandleFunc("/api/v1/invoices/", srv.handleInvoiceByID)
	mux.HandleFunc("/health", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Bookings ---

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings")
	switch r.Method {
	case http.MethodPost:
		s.createBooking(w, r)
	case http.MethodGet:
		s.listBookings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type createBookingRequest struct {
	PetID      int64     `json:"pet_id"`
	SitterID   int64     `json:"sitter_id"`
	OfferingID int64     `json:"offering_id"`
	StartTime  time.Time `json:"start_time"`
	Notes      string    `json:"notes"`
}

func (s *HTTPServer) createBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.PetID == 0 || body.SitterID == 0 || body.OfferingID == 0 {
		writeError(w, http.StatusBadRequest, "pet_id, sitter_id and offering_id are required")
		return
	}
	if body.StartTime.IsZero() {
		writeError(w, http.StatusBadRequest, "start_time is required")
		return
	}

	req := &models.BookingRequest{
		PetID:      body.PetID,
		SitterID:   body.SitterID,
		OfferingID: body.OfferingID,
		StartTime:  body.StartTime,
		Notes:      body.Notes,
	}
	booking, err := s.bookings.CreateBooking(r.Context(), req, RequesterFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) listBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if raw := q.Get("sitter_id"); raw != "" {
		sitterID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid sitter_id")
			return
		}
		from, to, err := parseWindow(q.Get("from"), q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		bookings, err := s.bookings.ListBookingsForSitter(r.Context(), sitterID, from, to)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
		return
	}

	if raw := q.Get("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		bookings, err := s.bookings.ListBookingsForUser(r.Context(), userID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
		return
	}

	writeError(w, http.StatusBadRequest, "sitter_id or user_id is required")
}

func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings")
	id, action, err := parseResourcePath(r.URL.Path, "/api/v1/bookings/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if action == "transitions" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.transitionBooking(w, r, id)
		return
	}
	if action != "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		booking, err := s.bookings.GetBooking(r.Context(), id, RequesterFromContext(r.Context()))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)
	case http.MethodPatch:
		s.updateBooking(w, r, id)
	case http.MethodDelete:
		if err := s.bookings.DeleteBooking(r.Context(), id, RequesterFromContext(r.Context())); err != nil {
			s.writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type transitionRequest struct {
	Target  string `json:"target"`
	Version int64  `json:"version"`
	Reason  string `json:"reason"`
}

func (s *HTTPServer) transitionBooking(w http.ResponseWriter, r *http.Request, id int64) {
	var body transitionRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	booking, err := s.bookings.TransitionBooking(r.Context(), id, body.Version, body.Target, body.Reason, RequesterFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

type updateBookingRequest struct {
	Version   int64      `json:"version"`
	StartTime *time.Time `json:"start_time"`
	Notes     *string    `json:"notes"`
}

func (s *HTTPServer) updateBooking(w http.ResponseWriter, r *http.Request, id int64) {
	var body updateBookingRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.StartTime == nil && body.Notes == nil {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}

	patch := models.BookingPatch{StartTime: body.StartTime, Notes: body.Notes}
	booking, err := s.bookings.UpdateBooking(r.Context(), id, body.Version, patch, RequesterFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

// --- Invoices ---

func (s *HTTPServer) handleInvoices(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("invoices")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	raw := r.URL.Query().Get("account_id")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}
	accountID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid account_id")
		return
	}

	invoices, err := s.invoices.ListInvoicesForAccount(r.Context(), accountID, RequesterFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (s *HTTPServer) handleInvoiceByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("invoices")
	id, action, err := parseResourcePath(r.URL.Path, "/api/v1/invoices/")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			invoice, err := s.invoices.GetInvoice(r.Context(), id, RequesterFromContext(r.Context()))
			if err != nil {
				s.writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, invoice)
		case http.MethodPatch:
			s.updateInvoice(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	case "send":
		s.postInvoiceAction(w, r, id, s.sendInvoice)
	case "cancel":
		s.postInvoiceAction(w, r, id, s.cancelInvoice)
	case "payments":
		s.postInvoiceAction(w, r, id, s.recordPayment)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *HTTPServer) postInvoiceAction(w http.ResponseWriter, r *http.Request, id int64, fn func(http.ResponseWriter, *http.Request, int64)) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	fn(w, r, id)
}

type invoiceActionRequest struct {
	Version int64  `json:"version"`
	Reason  string `json:"reason"`
}

func (s *HTTPServer) sendInvoice(w http.ResponseWriter, r *http.Request, id int64) {
	var body invoiceActionRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	invoice, err := s.invoices.SendInvoice(r.Context(), id, body.Version, RequesterFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

func (s *HTTPServer) cancelInvoice(w http.ResponseWriter, r *http.Request, id int64) {
	var body invoiceActionRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	invoice, err := s.invoices.CancelInvoice(r.Context(), id, body.Version, body.Reason, RequesterFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

type updateInvoiceRequest struct {
	Version          int64   `json:"version"`
	SubtotalCents    *int64  `json:"subtotal_cents"`
	PlatformFeeCents *int64  `json:"platform_fee_cents"`
	TotalCents       *int64  `json:"total_cents"`
	Notes            *string `json:"notes"`
}

func (s *HTTPServer) updateInvoice(w http.ResponseWriter, r *http.Request, id int64) {
	var body updateInvoiceRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	patch := models.InvoicePatch{
		SubtotalCents:    body.SubtotalCents,
		PlatformFeeCents: body.PlatformFeeCents,
		TotalCents:       body.TotalCents,
		Notes:            body.Notes,
	}
	invoice, err := s.invoices.UpdateInvoice(r.Context(), id, body.Version, patch, RequesterFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

type paymentRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Method      string `json:"method"`
}

func (s *HTTPServer) recordPayment(w http.ResponseWriter, r *http.Request, id int64) {
	var body paymentRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	invoice, err := s.invoices.RecordPayment(r.Context(), id, body.AmountCents, body.Method, RequesterFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// --- Plumbing ---

// writeServiceError maps domain errors onto HTTP status codes.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrLeadTime),
		errors.Is(err, service.ErrMissingCancelReason),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInconsistentTotals),
		errors.Is(err, service.ErrInvalidPayment):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrScheduleConflict),
		errors.Is(err, database.ErrPendingLimit),
		errors.Is(err, database.ErrDuplicateInvoice),
		errors.Is(err, database.ErrConcurrentModification),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrBookingInProgress),
		errors.Is(err, service.ErrBookingTerminal),
		errors.Is(err, service.ErrBookingNotCompleted),
		errors.Is(err, service.ErrSitterInactive),
		errors.Is(err, service.ErrOfferingInactive),
		errors.Is(err, service.ErrOfferingMismatch),
		errors.Is(err, service.ErrInvoiceNotDraft),
		errors.Is(err, service.ErrInvoiceNotCancellable),
		errors.Is(err, service.ErrInvoiceTerminal),
		errors.Is(err, service.ErrInvoiceNotPayable):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error().Err(err).Msg("internal error")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

// parseResourcePath splits "/prefix/{id}" or "/prefix/{id}/{action}".
func parseResourcePath(path, prefix string) (int64, string, error) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if parts[0] == "" {
		return 0, "", fmt.Errorf("resource id is required")
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid resource id")
	}
	action := ""
	if len(parts) == 2 {
		action = strings.TrimSuffix(parts[1], "/")
	}
	return id, action, nil
}

func parseWindow(fromStr, toStr string) (time.Time, time.Time, error) {
	now := time.Now()
	from, to := now.AddDate(0, 0, -30), now.AddDate(0, 0, 90)
	if fromStr != "" {
		parsed, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return from, to, fmt.Errorf("invalid from date; expected YYYY-MM-DD")
		}
		from = parsed
	}
	if toStr != "" {
		parsed, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return from, to, fmt.Errorf("invalid to date; expected YYYY-MM-DD")
		}
		to = parsed
	}
	return from, to, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
