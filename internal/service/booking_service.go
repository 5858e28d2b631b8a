package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pawsit/internal/billing"
	"pawsit/internal/database"
	"pawsit/internal/domain"
	"pawsit/internal/events"
	"pawsit/internal/metrics"
	"pawsit/internal/models"
	"pawsit/internal/notify"

	"github.com/rs/zerolog"
)

// CompletionHandler receives bookings that reached completed status.
// Invoked after the transition committed; must not fail the caller.
type CompletionHandler interface {
	HandleBookingCompleted(ctx context.Context, bookingID int64)
}

type BookingService struct {
	repo        domain.Repository
	eventBus    domain.EventPublisher
	notifier    domain.NotificationDispatcher
	feeCalc     *billing.FeeCalculator
	onCompleted CompletionHandler
	leadTime    time.Duration
	maxPending  int
	deleteGrace time.Duration
	logger      *zerolog.Logger
}

func NewBookingService(
	repo domain.Repository,
	eventBus domain.EventPublisher,
	notifier domain.NotificationDispatcher,
	feeCalc *billing.FeeCalculator,
	leadTimeMinutes, maxPending, deleteGraceDays int,
	logger *zerolog.Logger,
) *BookingService {
	if leadTimeMinutes <= 0 {
		leadTimeMinutes = models.MinBookingLeadTimeMinutes
	}
	if maxPending <= 0 {
		maxPending = models.MaxPendingBookingsPerUser
	}
	if deleteGraceDays <= 0 {
		deleteGraceDays = models.BookingDeleteGraceDays
	}
	return &BookingService{
		repo:        repo,
		eventBus:    eventBus,
		notifier:    notifier,
		feeCalc:     feeCalc,
		leadTime:    time.Duration(leadTimeMinutes) * time.Minute,
		maxPending:  maxPending,
		deleteGrace: time.Duration(deleteGraceDays) * 24 * time.Hour,
		logger:      logger,
	}
}

// SetCompletionHandler installs the post-completion hook. Called once during
// wiring; transitions to completed are handed to it after commit.
func (s *BookingService) SetCompletionHandler(h CompletionHandler) {
	s.onCompleted = h
}

func (s *BookingService) CreateBooking(ctx context.Context, req *models.BookingRequest, requester models.Requester) (*models.Booking, error) {
	if time.Until(req.StartTime) < s.leadTime {
		return nil, fmt.Errorf("%w (got %s)", ErrLeadTime, time.Until(req.StartTime).Round(time.Minute))
	}

	pet, err := s.repo.GetPet(ctx, req.PetID)
	if err != nil {
		return nil, err
	}
	sitter, err := s.repo.GetSitter(ctx, req.SitterID)
	if err != nil {
		return nil, err
	}
	offering, err := s.repo.GetOffering(ctx, req.OfferingID)
	if err != nil {
		return nil, err
	}

	if !requester.IsAdmin {
		member, err := s.repo.IsAccountMember(ctx, pet.AccountID, requester.UserID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, ErrForbidden
		}
	}

	if !sitter.IsActive {
		return nil, ErrSitterInactive
	}
	if offering.SitterID != sitter.ID {
		return nil, ErrOfferingMismatch
	}
	if !offering.IsActive {
		return nil, ErrOfferingInactive
	}
	if offering.PriceCents <= 0 {
		return nil, ErrInvalidPrice
	}

	// Price and end time are snapshotted from the offering at creation.
	booking := &models.Booking{
		PetID:           pet.ID,
		SitterID:        sitter.ID,
		OfferingID:      offering.ID,
		CreatedByUserID: requester.UserID,
		StartTime:       req.StartTime,
		EndTime:         req.StartTime.Add(offering.Duration()),
		TotalPriceCents: offering.PriceCents,
		Status:          models.BookingPending,
		Notes:           req.Notes,
	}

	if err := s.repo.CreateBookingGuarded(ctx, booking, s.maxPending); err != nil {
		if errors.Is(err, database.ErrScheduleConflict) {
			metrics.IncBookingConflict()
		}
		return nil, err
	}
	metrics.IncBookingCreated()

	// Fee pre-calculation for the eventual invoice, logged for audit.
	if fee, net, err := s.feeCalc.Compute(booking.TotalPriceCents); err == nil {
		s.logger.Debug().
			Int64("booking_id", booking.ID).
			Int64("fee_cents", fee).
			Int64("net_cents", net).
			Msg("platform fee pre-calculated")
	}

	s.publishEvent(events.EventBookingCreated, booking, "", requester.UserID)

	vars := map[string]string{
		"booking_id": strconv.FormatInt(booking.ID, 10),
		"service":    offering.Name,
		"start":      booking.StartTime.Format("2006-01-02 15:04"),
		"total":      models.FormatCents(booking.TotalPriceCents),
	}
	s.dispatch(ctx, booking.CreatedByUserID, notify.TplNewBookingClient, vars)
	s.dispatch(ctx, sitter.ChatID, notify.TplNewBookingSitter, vars)

	return booking, nil
}

// TransitionBooking moves a booking along the status table. Cancellation
// requires a reason; in_progress and completed stamp the actual times.
func (s *BookingService) TransitionBooking(ctx context.Context, bookingID, version int64, target string, reason string, requester models.Requester) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeTransition(ctx, booking, target, requester); err != nil {
		return nil, err
	}

	if !models.CanTransitionBooking(booking.Status, target) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, booking.Status, target)
	}
	if target == models.BookingCancelled && reason == "" {
		return nil, ErrMissingCancelReason
	}

	change := database.BookingStatusChange{Status: target, CancellationReason: reason}
	now := time.Now()
	switch target {
	case models.BookingInProgress:
		change.ActualStartTime = &now
	case models.BookingCompleted:
		change.ActualEndTime = &now
	}

	if err := s.repo.UpdateBookingStatusWithVersion(ctx, bookingID, version, change); err != nil {
		return nil, err
	}
	metrics.IncBookingTransition(target)

	updated, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(s.eventTypeFor(target), updated, reason, requester.UserID)
	s.notifyTransition(ctx, updated, target, reason)

	if target == models.BookingCompleted && s.onCompleted != nil {
		s.onCompleted.HandleBookingCompleted(ctx, bookingID)
	}

	return updated, nil
}

// UpdateBooking patches start time and notes. A start time change recomputes
// the end time from the offering duration and re-runs the conflict check
// inside the same transaction as the write.
func (s *BookingService) UpdateBooking(ctx context.Context, bookingID, version int64, patch models.BookingPatch, requester models.Requester) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, booking, requester); err != nil {
		return nil, err
	}
	if models.IsTerminalBookingStatus(booking.Status) {
		return nil, ErrBookingTerminal
	}

	notes := booking.Notes
	if patch.Notes != nil {
		notes = *patch.Notes
	}

	start := booking.StartTime
	if patch.StartTime != nil {
		start = *patch.StartTime
		if time.Until(start) < s.leadTime {
			return nil, fmt.Errorf("%w (got %s)", ErrLeadTime, time.Until(start).Round(time.Minute))
		}
	}

	offering, err := s.repo.GetOffering(ctx, booking.OfferingID)
	if err != nil {
		return nil, err
	}
	end := start.Add(offering.Duration())

	if err := s.repo.UpdateBookingScheduleGuarded(ctx, bookingID, version, booking.SitterID, start, end, notes); err != nil {
		if errors.Is(err, database.ErrScheduleConflict) {
			metrics.IncBookingConflict()
		}
		return nil, err
	}

	updated, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(events.EventBookingRescheduled, updated, "", requester.UserID)
	if patch.StartTime != nil {
		vars := map[string]string{
			"booking_id": strconv.FormatInt(bookingID, 10),
			"start":      start.Format("2006-01-02 15:04"),
		}
		s.dispatch(ctx, updated.CreatedByUserID, notify.TplBookingUpdated, vars)
		s.notifySitter(ctx, updated.SitterID, notify.TplBookingUpdated, vars)
	}

	return updated, nil
}

// DeleteBooking removes a booking. In-progress bookings are refused.
// Completed bookings and bookings past the grace window are soft-cancelled
// to keep history; everything else is removed outright.
func (s *BookingService) DeleteBooking(ctx context.Context, bookingID int64, requester models.Requester) error {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(ctx, booking, requester); err != nil {
		return err
	}

	if booking.Status == models.BookingInProgress {
		return ErrBookingInProgress
	}

	vars := map[string]string{
		"booking_id": strconv.FormatInt(bookingID, 10),
		"reason":     "booking removed",
	}
	s.dispatch(ctx, booking.CreatedByUserID, notify.TplBookingStatusCancelled, vars)
	s.notifySitter(ctx, booking.SitterID, notify.TplBookingStatusCancelled, vars)

	preserve := booking.Status == models.BookingCompleted ||
		time.Since(booking.CreatedAt) > s.deleteGrace
	if preserve {
		if booking.Status == models.BookingCancelled {
			return nil
		}
		change := database.BookingStatusChange{
			Status:             models.BookingCancelled,
			CancellationReason: "removed by user request",
		}
		return s.repo.UpdateBookingStatusWithVersion(ctx, bookingID, booking.Version, change)
	}

	return s.repo.DeleteBooking(ctx, bookingID)
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID int64, requester models.Requester) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeView(ctx, booking, requester); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) ListBookingsForSitter(ctx context.Context, sitterID int64, from, to time.Time) ([]*models.Booking, error) {
	return s.repo.GetBookingsBySitter(ctx, sitterID, from, to)
}

func (s *BookingService) ListBookingsForUser(ctx context.Context, userID int64) ([]*models.Booking, error) {
	return s.repo.GetBookingsByUser(ctx, userID)
}

// authorizeOwner admits admins and members of the pet's owning account.
func (s *BookingService) authorizeOwner(ctx context.Context, booking *models.Booking, requester models.Requester) error {
	if requester.IsAdmin || requester.UserID == booking.CreatedByUserID {
		return nil
	}
	pet, err := s.repo.GetPet(ctx, booking.PetID)
	if err != nil {
		return err
	}
	member, err := s.repo.IsAccountMember(ctx, pet.AccountID, requester.UserID)
	if err != nil {
		return err
	}
	if !member {
		return ErrForbidden
	}
	return nil
}

// authorizeView additionally admits the booked sitter.
func (s *BookingService) authorizeView(ctx context.Context, booking *models.Booking, requester models.Requester) error {
	if !requester.IsAdmin && requester.UserID != booking.CreatedByUserID {
		sitter, err := s.repo.GetSitter(ctx, booking.SitterID)
		if err == nil && sitter.UserID == requester.UserID {
			return nil
		}
		return s.authorizeOwner(ctx, booking, requester)
	}
	return nil
}

// authorizeTransition: the sitter or an admin drives the service forward;
// cancellation is also open to the client side.
func (s *BookingService) authorizeTransition(ctx context.Context, booking *models.Booking, target string, requester models.Requester) error {
	if requester.IsAdmin {
		return nil
	}
	sitter, err := s.repo.GetSitter(ctx, booking.SitterID)
	if err != nil {
		return err
	}
	if sitter.UserID == requester.UserID {
		return nil
	}
	if target == models.BookingCancelled {
		return s.authorizeOwner(ctx, booking, requester)
	}
	return ErrForbidden
}

func (s *BookingService) eventTypeFor(target string) string {
	switch target {
	case models.BookingConfirmed:
		return events.EventBookingConfirmed
	case models.BookingInProgress:
		return events.EventBookingStarted
	case models.BookingCompleted:
		return events.EventBookingCompleted
	case models.BookingCancelled:
		return events.EventBookingCancelled
	default:
		return target
	}
}

func (s *BookingService) notifyTransition(ctx context.Context, booking *models.Booking, target, reason string) {
	vars := map[string]string{
		"booking_id": strconv.FormatInt(booking.ID, 10),
		"start":      booking.StartTime.Format("2006-01-02 15:04"),
		"reason":     reason,
	}

	var tpl string
	switch target {
	case models.BookingConfirmed:
		tpl = notify.TplBookingStatusConfirmed
	case models.BookingInProgress:
		tpl = notify.TplBookingStatusStarted
	case models.BookingCompleted:
		tpl = notify.TplBookingStatusCompleted
	case models.BookingCancelled:
		tpl = notify.TplBookingStatusCancelled
	default:
		return
	}

	s.dispatch(ctx, booking.CreatedByUserID, tpl, vars)
	s.notifySitter(ctx, booking.SitterID, tpl, vars)
}

func (s *BookingService) notifySitter(ctx context.Context, sitterID int64, tpl string, vars map[string]string) {
	sitter, err := s.repo.GetSitter(ctx, sitterID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("sitter_id", sitterID).Msg("sitter lookup for notification failed")
		return
	}
	s.dispatch(ctx, sitter.ChatID, tpl, vars)
}

func (s *BookingService) dispatch(ctx context.Context, recipient int64, tpl string, vars map[string]string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, recipient, tpl, vars); err != nil {
		s.logger.Warn().Err(err).Str("template", tpl).Int64("recipient", recipient).Msg("notification dispatch failed")
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, reason string, changedByID int64) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:   booking.ID,
		PetID:       booking.PetID,
		SitterID:    booking.SitterID,
		Status:      booking.Status,
		StartTime:   booking.StartTime,
		EndTime:     booking.EndTime,
		Reason:      reason,
		ChangedByID: changedByID,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
