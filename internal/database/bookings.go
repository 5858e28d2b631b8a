package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pawsit/internal/models"
)

const bookingColumns = `id, pet_id, sitter_id, offering_id, created_by_user_id,
       start_time, end_time, total_price_cents, status, notes,
       cancellation_reason, actual_start_time, actual_end_time,
       created_at, updated_at, version`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	b := &models.Booking{}
	var notes, reason sql.NullString
	var actualStart, actualEnd sql.NullTime
	err := row.Scan(
		&b.ID, &b.PetID, &b.SitterID, &b.OfferingID, &b.CreatedByUserID,
		&b.StartTime, &b.EndTime, &b.TotalPriceCents, &b.Status, &notes,
		&reason, &actualStart, &actualEnd,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.Notes = notes.String
	b.CancellationReason = reason.String
	if actualStart.Valid {
		t := actualStart.Time
		b.ActualStartTime = &t
	}
	if actualEnd.Valid {
		t := actualEnd.Time
		b.ActualEndTime = &t
	}
	return b, nil
}

// HasConflict reports whether the sitter has an active booking overlapping
// [windowStart, windowEnd). excludeID skips one booking, for reschedules.
func (db *DB) HasConflict(ctx context.Context, sitterID int64, windowStart, windowEnd time.Time, excludeID int64) (bool, error) {
	query := `SELECT COUNT(*) FROM bookings
              WHERE sitter_id = ? AND id != ?
                AND status IN (?, ?, ?)
                AND start_time < ? AND end_time > ?`
	var count int
	err := db.QueryRowContext(ctx, query, sitterID, excludeID,
		models.BookingPending, models.BookingConfirmed, models.BookingInProgress,
		windowEnd, windowStart).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check schedule conflict: %w", err)
	}
	return count > 0, nil
}

// CountPendingByUser returns the requester's current pending booking count.
func (db *DB) CountPendingByUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE created_by_user_id = ? AND status = ?`,
		userID, models.BookingPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending bookings: %w", err)
	}
	return count, nil
}

// CreateBookingGuarded inserts the booking with the conflict check and the
// pending-cap check inside the same transaction as the write.
func (db *DB) CreateBookingGuarded(ctx context.Context, booking *models.Booking, maxPending int) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var overlapping int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings
             WHERE sitter_id = ? AND status IN (?, ?, ?)
               AND start_time < ? AND end_time > ?`,
			booking.SitterID,
			models.BookingPending, models.BookingConfirmed, models.BookingInProgress,
			booking.EndTime, booking.StartTime).Scan(&overlapping)
		if err != nil {
			return fmt.Errorf("failed to check conflict in tx: %w", err)
		}
		if overlapping > 0 {
			return ErrScheduleConflict
		}

		var pending int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings WHERE created_by_user_id = ? AND status = ?`,
			booking.CreatedByUserID, models.BookingPending).Scan(&pending)
		if err != nil {
			return fmt.Errorf("failed to count pending in tx: %w", err)
		}
		if maxPending > 0 && pending >= maxPending {
			return fmt.Errorf("%w: %d pending", ErrPendingLimit, pending)
		}

		now := time.Now()
		result, err := tx.ExecContext(ctx,
			`INSERT INTO bookings (
                pet_id, sitter_id, offering_id, created_by_user_id,
                start_time, end_time, total_price_cents, status, notes,
                created_at, updated_at, version
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			booking.PetID, booking.SitterID, booking.OfferingID, booking.CreatedByUserID,
			booking.StartTime, booking.EndTime, booking.TotalPriceCents, booking.Status,
			booking.Notes, now, now, 1)
		if err != nil {
			return fmt.Errorf("failed to insert booking in tx: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id in tx: %w", err)
		}
		booking.ID = id
		booking.CreatedAt = now
		booking.UpdatedAt = now
		booking.Version = 1
		return nil
	})
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// BookingStatusChange carries the side fields stamped with a transition.
type BookingStatusChange struct {
	Status             string
	CancellationReason string
	ActualStartTime    *time.Time
	ActualEndTime      *time.Time
}

// UpdateBookingStatusWithVersion applies a status transition with
// optimistic locking. Returns ErrConcurrentModification on version miss.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, change BookingStatusChange) error {
	query := `UPDATE bookings
              SET status = ?,
                  cancellation_reason = COALESCE(NULLIF(?, ''), cancellation_reason),
                  actual_start_time = COALESCE(?, actual_start_time),
                  actual_end_time = COALESCE(?, actual_end_time),
                  version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	var start, end sql.NullTime
	if change.ActualStartTime != nil {
		start = sql.NullTime{Time: *change.ActualStartTime, Valid: true}
	}
	if change.ActualEndTime != nil {
		end = sql.NullTime{Time: *change.ActualEndTime, Valid: true}
	}
	result, err := db.ExecContext(ctx, query,
		change.Status, change.CancellationReason, start, end, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// UpdateBookingScheduleGuarded changes start/end times and notes with the
// conflict re-check and the versioned write in one transaction.
func (db *DB) UpdateBookingScheduleGuarded(ctx context.Context, id, fromVersion int64, sitterID int64, start, end time.Time, notes string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var overlapping int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bookings
             WHERE sitter_id = ? AND id != ? AND status IN (?, ?, ?)
               AND start_time < ? AND end_time > ?`,
			sitterID, id,
			models.BookingPending, models.BookingConfirmed, models.BookingInProgress,
			end, start).Scan(&overlapping)
		if err != nil {
			return fmt.Errorf("failed to re-check conflict in tx: %w", err)
		}
		if overlapping > 0 {
			return ErrScheduleConflict
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE bookings SET start_time = ?, end_time = ?, notes = ?,
                    version = version + 1, updated_at = ?
             WHERE id = ? AND version = ?`,
			start, end, notes, time.Now(), id, fromVersion)
		if err != nil {
			return fmt.Errorf("failed to update booking schedule: %w", err)
		}
		rows, _ := result.RowsAffected()
		if rows == 0 {
			return ErrConcurrentModification
		}
		return nil
	})
}

// DeleteBooking removes the row outright. Soft deletion goes through
// UpdateBookingStatusWithVersion with a cancelled status instead.
func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) GetBookingsBySitter(ctx context.Context, sitterID int64, from, to time.Time) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE sitter_id = ? AND start_time < ? AND end_time > ?
         ORDER BY start_time ASC`,
		sitterID, to, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get sitter bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) GetBookingsByUser(ctx context.Context, userID int64) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings
         WHERE created_by_user_id = ? ORDER BY start_time DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
