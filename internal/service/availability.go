package service

import (
	"context"
	"time"

	"github.com/gabrie-lhilarion/spacemania/internal/database"
	"github.com/gabrie-lhilarion/spacemania/internal/entity"
)

// AvailabilityQuery is the input of a single availability computation.
type AvailabilityQuery struct {
	WorkspaceID   int64
	Start         time.Time
	End           time.Time
	Attendees     int
	AllowInactive bool
}

// AvailabilityCalculator computes remaining capacity of a workspace over a
// window. It never writes.
type AvailabilityCalculator struct {
	workspaces database.WorkspaceRepository
	bookings   database.BookingRepository
	policy     entity.OccupancyPolicy
}

func NewAvailabilityCalculator(
	workspaces database.WorkspaceRepository,
	bookings database.BookingRepository,
	policy entity.OccupancyPolicy,
) *AvailabilityCalculator {
	return &AvailabilityCalculator{
		workspaces: workspaces,
		bookings:   bookings,
		policy:     policy,
	}
}

func (c *AvailabilityCalculator) Check(ctx context.Context, q AvailabilityQuery) (*entity.Availability, error) {
	if !q.Start.Before(q.End) {
		return nil, entity.ErrInvalidTimeRange
	}
	if q.Attendees < 1 {
		return nil, entity.ErrInvalidAttendees
	}

	workspace, err := c.workspaces.GetByID(ctx, q.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if !workspace.IsActive && !q.AllowInactive {
		return nil, entity.ErrWorkspaceInactive
	}

	conflicting, err := c.bookings.ActiveOverlapping(ctx, q.WorkspaceID, q.Start, q.End)
	if err != nil {
		return nil, err
	}
	occupancy := entity.OccupancyOf(conflicting, q.Start, q.End)

	return &entity.Availability{
		WorkspaceID:         workspace.ID,
		BaseCapacity:        workspace.Capacity,
		CurrentAttendees:    occupancy.Attendees,
		AvailableSlots:      workspace.Capacity - occupancy.Attendees,
		ConflictingBookings: occupancy.Conflicts,
		IsAvailable:         c.policy.Admits(workspace.Capacity, occupancy.Attendees, occupancy.Conflicts, q.Attendees),
		RequiresApproval:    workspace.Type.RequiresApproval,
	}, nil
}
