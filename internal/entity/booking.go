package entity

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusRejected  BookingStatus = "rejected"
)

// ActiveStatuses are the statuses that hold a workspace window.
var ActiveStatuses = []BookingStatus{BookingStatusPending, BookingStatusConfirmed}

// IsActive reports whether the status counts toward conflicts.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

func ParseBookingStatus(s string) (BookingStatus, error) {
	switch BookingStatus(s) {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled,
		BookingStatusCompleted, BookingStatusRejected:
		return BookingStatus(s), nil
	}
	return "", NewValidationError("invalid booking status: %s", s)
}

type Booking struct {
	ID              int64         `json:"id" db:"id"`
	UserID          int64         `json:"user_id" db:"user_id"`
	WorkspaceID     int64         `json:"workspace_id" db:"workspace_id"`
	StartTime       time.Time     `json:"start_time" db:"start_time"`
	EndTime         time.Time     `json:"end_time" db:"end_time"`
	Attendees       int           `json:"attendees" db:"attendees"`
	Status          BookingStatus `json:"status" db:"status"`
	SpecialRequests *string       `json:"special_requests,omitempty" db:"special_requests"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// StatusAt returns the status a reader should see at the given instant.
// Confirmed bookings whose window has elapsed are reported as completed.
func (b *Booking) StatusAt(now time.Time) BookingStatus {
	if b.Status == BookingStatusConfirmed && !b.EndTime.After(now) {
		return BookingStatusCompleted
	}
	return b.Status
}

// Overlaps reports whether the window [start, end) intersects the booking.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return Overlaps(b.StartTime, b.EndTime, start, end)
}

// Overlaps is the half-open interval intersection test used for every
// conflict decision: [aStart, aEnd) and [bStart, bEnd) share at least one instant.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ReservationRequest carries the ledger input of a single reserve call.
type ReservationRequest struct {
	UserID          int64
	WorkspaceID     int64
	StartTime       time.Time
	EndTime         time.Time
	Attendees       int
	SpecialRequests *string
}

// Validate checks the window and occupancy independently of any storage.
func (r *ReservationRequest) Validate(now time.Time) error {
	if !r.StartTime.Before(r.EndTime) {
		return ErrInvalidTimeRange
	}
	if r.StartTime.Before(now) {
		return ErrStartInPast
	}
	if r.Attendees < 1 {
		return ErrInvalidAttendees
	}
	return nil
}

// BookingDetails is a booking joined with the catalog data shown in listings.
type BookingDetails struct {
	Booking
	WorkspaceName string             `json:"workspace_name"`
	WorkspaceType string             `json:"workspace_type"`
	Floor         int                `json:"floor"`
	Location      string             `json:"location"`
	Amenities     []WorkspaceAmenity `json:"amenities"`
}

// UserBookingsFilter selects one page of a user's bookings.
type UserBookingsFilter struct {
	UserID   int64
	Upcoming bool
	Now      time.Time
	Offset   int
	Limit    int
}
