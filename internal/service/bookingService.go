package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gabrie-lhilarion/spacemania/internal/database"
	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/sirupsen/logrus"
)

const (
	messagePendingApproval = "Booking request submitted and pending approval"
	messageConfirmed       = "Booking confirmed successfully"
)

// CreateBookingRequest is the input of CreateBooking. UserID comes from the
// authenticated caller, never from the body. A nil Attendees means one.
type CreateBookingRequest struct {
	UserID          int64          `json:"-"`
	WorkspaceID     int64          `json:"workspace_id" binding:"required,min=1"`
	StartTime       entity.ISOTime `json:"start_time"`
	EndTime         entity.ISOTime `json:"end_time"`
	Attendees       *int           `json:"attendees"`
	SpecialRequests *string        `json:"special_requests,omitempty"`
}

type BookingResult struct {
	Booking         *entity.Booking `json:"booking"`
	PendingApproval bool            `json:"pending_approval"`
	Message         string          `json:"message"`
}

type AvailabilityRequest struct {
	WorkspaceID int64
	StartTime   time.Time
	EndTime     time.Time
	Attendees   *int
}

type AvailabilityReport struct {
	Availability *entity.Availability `json:"availability"`
	Notice       string               `json:"notice"`
}

type ListBookingsRequest struct {
	Upcoming bool `form:"upcoming"`
	Page     int  `form:"page"`
	Limit    int  `form:"limit"`
}

// BookingPage is one page of a user's bookings. Total counts the returned rows.
type BookingPage struct {
	Bookings []*entity.BookingDetails `json:"bookings"`
	Page     int                      `json:"page"`
	Limit    int                      `json:"limit"`
	Total    int                      `json:"total"`
}

// BookingConfig holds the policy knobs of the booking service.
type BookingConfig struct {
	AdvanceNotice          time.Duration
	DefaultPageSize        int
	MaxPageSize            int
	MaxSpecialRequestChars int
}

func DefaultBookingConfig() BookingConfig {
	return BookingConfig{
		AdvanceNotice:          24 * time.Hour,
		DefaultPageSize:        10,
		MaxPageSize:            100,
		MaxSpecialRequestChars: 1000,
	}
}

type bookingService struct {
	bookings   database.BookingRepository
	calculator *AvailabilityCalculator
	publisher  EventPublisher
	config     BookingConfig
	now        func() time.Time
}

// NewBookingService creates the booking façade. publisher may be nil.
func NewBookingService(
	bookings database.BookingRepository,
	calculator *AvailabilityCalculator,
	publisher EventPublisher,
	config BookingConfig,
	clock func() time.Time,
) BookingService {
	if clock == nil {
		clock = time.Now
	}
	return &bookingService{
		bookings:   bookings,
		calculator: calculator,
		publisher:  publisher,
		config:     config,
		now:        clock,
	}
}

// CreateBooking prechecks availability for a friendly error, then reserves.
// The ledger repeats the conflict check atomically, so a race lost between
// the two steps still ends in a conflict.
func (s *bookingService) CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingResult, error) {
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return nil, entity.ErrInvalidTime
	}

	attendees := attendeesOrDefault(req.Attendees)

	reservation := &entity.ReservationRequest{
		UserID:          req.UserID,
		WorkspaceID:     req.WorkspaceID,
		StartTime:       req.StartTime.Time,
		EndTime:         req.EndTime.Time,
		Attendees:       attendees,
		SpecialRequests: req.SpecialRequests,
	}
	if err := reservation.Validate(s.now()); err != nil {
		return nil, err
	}
	if req.SpecialRequests != nil && utf8.RuneCountInString(*req.SpecialRequests) > s.config.MaxSpecialRequestChars {
		return nil, entity.NewValidationError("special requests must be at most %d characters", s.config.MaxSpecialRequestChars)
	}

	availability, err := s.calculator.Check(ctx, AvailabilityQuery{
		WorkspaceID: req.WorkspaceID,
		Start:       reservation.StartTime,
		End:         reservation.EndTime,
		Attendees:   attendees,
	})
	if err != nil {
		return nil, err
	}
	if attendees > availability.BaseCapacity {
		return nil, entity.Wrap(entity.ErrCapacityExceeded,
			fmt.Errorf("requested %d, capacity %d", attendees, availability.BaseCapacity))
	}
	if !availability.IsAvailable {
		return nil, entity.ErrNotAvailable
	}

	booking, err := s.bookings.Reserve(ctx, reservation)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"booking_id":   booking.ID,
		"workspace_id": booking.WorkspaceID,
		"user_id":      booking.UserID,
		"status":       booking.Status,
	}).Info("Booking created")

	s.publish(ctx, entity.BookingEventCreated, booking)

	result := &BookingResult{
		Booking:         booking,
		PendingApproval: booking.Status == entity.BookingStatusPending,
		Message:         messageConfirmed,
	}
	if result.PendingApproval {
		result.Message = messagePendingApproval
	}
	return result, nil
}

// CheckAvailability applies the advance-notice policy and the capacity
// check before asking the calculator.
func (s *bookingService) CheckAvailability(ctx context.Context, req *AvailabilityRequest) (*AvailabilityReport, error) {
	attendees := attendeesOrDefault(req.Attendees)
	if attendees < 1 {
		return nil, entity.ErrInvalidAttendees
	}
	if !req.StartTime.Before(req.EndTime) {
		return nil, entity.ErrInvalidTimeRange
	}

	earliest := s.now().Add(s.config.AdvanceNotice)
	if req.StartTime.Before(earliest) {
		return nil, entity.Wrap(entity.ErrAdvanceNotice,
			fmt.Errorf("bookings must start at or after %s", earliest.UTC().Format(time.RFC3339)))
	}

	availability, err := s.calculator.Check(ctx, AvailabilityQuery{
		WorkspaceID: req.WorkspaceID,
		Start:       req.StartTime,
		End:         req.EndTime,
		Attendees:   attendees,
	})
	if err != nil {
		return nil, err
	}
	if attendees > availability.BaseCapacity {
		return nil, entity.Wrap(entity.ErrCapacityExceeded,
			fmt.Errorf("requested %d, capacity %d", attendees, availability.BaseCapacity))
	}

	return &AvailabilityReport{
		Availability: availability,
		Notice:       fmt.Sprintf("Bookings must be made at least %s in advance", s.config.AdvanceNotice),
	}, nil
}

func (s *bookingService) CancelBooking(ctx context.Context, bookingID, userID int64) (*entity.Booking, error) {
	booking, err := s.bookings.Cancel(ctx, bookingID, userID)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"user_id":    userID,
	}).Info("Booking cancelled")

	s.publish(ctx, entity.BookingEventCancelled, booking)
	return booking, nil
}

func (s *bookingService) GetUserBookings(ctx context.Context, userID int64, req *ListBookingsRequest) (*BookingPage, error) {
	page, limit := req.Page, req.Limit
	if page == 0 {
		page = 1
	}
	if limit == 0 {
		limit = s.config.DefaultPageSize
	}
	if page < 1 {
		return nil, entity.NewValidationError("page must be at least 1")
	}
	if limit < 1 || limit > s.config.MaxPageSize {
		return nil, entity.NewValidationError("limit must be between 1 and %d", s.config.MaxPageSize)
	}

	bookings, err := s.bookings.ListForUser(ctx, &entity.UserBookingsFilter{
		UserID:   userID,
		Upcoming: req.Upcoming,
		Now:      s.now(),
		Offset:   (page - 1) * limit,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}

	return &BookingPage{
		Bookings: bookings,
		Page:     page,
		Limit:    limit,
		Total:    len(bookings),
	}, nil
}

// CompleteElapsedBookings persists the completed status of confirmed
// bookings whose window has ended.
func (s *bookingService) CompleteElapsedBookings(ctx context.Context) (int64, error) {
	n, err := s.bookings.CompleteElapsed(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logrus.WithField("count", n).Info("Marked elapsed bookings completed")
	}
	return n, nil
}

func (s *bookingService) publish(ctx context.Context, eventType entity.BookingEventType, booking *entity.Booking) {
	if s.publisher == nil {
		return
	}

	event := entity.NewBookingEvent(eventType, booking, s.now())
	if err := s.publisher.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"booking_id": booking.ID,
		}).Error("Failed to publish booking event")
	}
}

func attendeesOrDefault(attendees *int) int {
	if attendees == nil {
		return 1
	}
	return *attendees
}
