package service

import (
	"context"

	"github.com/gabrie-lhilarion/spacemania/internal/entity"
)

// BookingService is the single entry point for booking policy.
type BookingService interface {
	CreateBooking(ctx context.Context, req *CreateBookingRequest) (*BookingResult, error)
	CheckAvailability(ctx context.Context, req *AvailabilityRequest) (*AvailabilityReport, error)
	CancelBooking(ctx context.Context, bookingID, userID int64) (*entity.Booking, error)
	GetUserBookings(ctx context.Context, userID int64, req *ListBookingsRequest) (*BookingPage, error)

	// Maintenance
	CompleteElapsedBookings(ctx context.Context) (int64, error)
}

// WorkspaceService exposes the catalog to browsing users and admins.
type WorkspaceService interface {
	CreateWorkspace(ctx context.Context, req *CreateWorkspaceRequest) (*entity.Workspace, error)
	GetWorkspace(ctx context.Context, id int64) (*entity.Workspace, error)
	ListWorkspaces(ctx context.Context, filter *entity.WorkspaceFilter) ([]*entity.Workspace, error)
	DeactivateWorkspace(ctx context.Context, id int64) error
}

// EventPublisher receives booking events after the ledger commit.
type EventPublisher interface {
	Publish(ctx context.Context, event *entity.BookingEvent) error
}

// Notifier delivers a booking event to whoever should hear about it.
type Notifier interface {
	Notify(ctx context.Context, event *entity.BookingEvent) error
}
