package models

import "time"

type Booking struct {
	ID                 int64      `json:"id"`
	PetID              int64      `json:"pet_id"`
	SitterID           int64      `json:"sitter_id"`
	OfferingID         int64      `json:"offering_id"`
	CreatedByUserID    int64      `json:"created_by_user_id"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	TotalPriceCents    int64      `json:"total_price_cents"`
	Status             string     `json:"status"` // pending, confirmed, in_progress, completed, cancelled
	Notes              string     `json:"notes"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	ActualStartTime    *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime      *time.Time `json:"actual_end_time,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int64      `json:"version"`
}

// Window returns the half-open interval the booking occupies.
func (b *Booking) Window() (time.Time, time.Time) {
	return b.StartTime, b.EndTime
}

// Overlaps reports whether [start, end) intersects the booking window.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}

// BookingRequest is the client-supplied input for creating a booking.
type BookingRequest struct {
	PetID      int64     `json:"pet_id"`
	SitterID   int64     `json:"sitter_id"`
	OfferingID int64     `json:"offering_id"`
	StartTime  time.Time `json:"start_time"`
	Notes      string    `json:"notes,omitempty"`
}

// BookingPatch carries the mutable fields of a booking update.
type BookingPatch struct {
	StartTime *time.Time `json:"start_time,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}
