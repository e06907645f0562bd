package entity

import (
	"time"

	"github.com/google/uuid"
)

type BookingEventType string

const (
	BookingEventCreated   BookingEventType = "booking.created"
	BookingEventCancelled BookingEventType = "booking.cancelled"
)

// BookingEvent is emitted after a booking transition has been committed.
type BookingEvent struct {
	ID          string           `json:"id"`
	Type        BookingEventType `json:"type"`
	BookingID   int64            `json:"booking_id"`
	UserID      int64            `json:"user_id"`
	WorkspaceID int64            `json:"workspace_id"`
	Status      BookingStatus    `json:"status"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time"`
	Attendees   int              `json:"attendees"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

func NewBookingEvent(eventType BookingEventType, b *Booking, at time.Time) *BookingEvent {
	return &BookingEvent{
		ID:          uuid.New().String(),
		Type:        eventType,
		BookingID:   b.ID,
		UserID:      b.UserID,
		WorkspaceID: b.WorkspaceID,
		Status:      b.Status,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
		Attendees:   b.Attendees,
		OccurredAt:  at,
	}
}
