package database

import (
	"context"
	"time"

	"github.com/gabrie-lhilarion/spacemania/internal/entity"
)

// WorkspaceRepository is the workspace catalog. Workspaces are never hard
// deleted; Deactivate hides them from booking.
type WorkspaceRepository interface {
	Create(ctx context.Context, workspace *entity.Workspace) error
	GetByID(ctx context.Context, id int64) (*entity.Workspace, error)
	List(ctx context.Context, filter *entity.WorkspaceFilter) ([]*entity.Workspace, error)
	Deactivate(ctx context.Context, id int64) error
}

// BookingRepository is the booking ledger. Reserve and Cancel are atomic:
// a failed call leaves no trace in storage.
type BookingRepository interface {
	// Reserve checks the window against active bookings and inserts the new
	// booking as one unit. Concurrent reservations on overlapping windows of
	// the same workspace are serialized; the loser gets entity.ErrSlotTaken.
	Reserve(ctx context.Context, req *entity.ReservationRequest) (*entity.Booking, error)
	Cancel(ctx context.Context, bookingID, userID int64) (*entity.Booking, error)
	GetByID(ctx context.Context, id int64) (*entity.Booking, error)
	ListForUser(ctx context.Context, filter *entity.UserBookingsFilter) ([]*entity.BookingDetails, error)

	// Availability reads
	ActiveOverlapping(ctx context.Context, workspaceID int64, start, end time.Time) ([]*entity.Booking, error)

	// Maintenance
	CompleteElapsed(ctx context.Context, before time.Time) (int64, error)
}
