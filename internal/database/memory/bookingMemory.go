package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gabrie-lhilarion/spacemania/internal/database"
	"github.com/gabrie-lhilarion/spacemania/internal/entity"
)

// bookingRepository keeps bookings in process memory. Every check-then-insert
// and every cancel runs under the mutex of the booked workspace, so two
// reservations on one workspace are linearized while different workspaces
// proceed in parallel.
type bookingRepository struct {
	catalog database.WorkspaceRepository
	policy  entity.OccupancyPolicy
	now     func() time.Time

	mu       sync.RWMutex
	nextID   int64
	bookings map[int64]*entity.Booking

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func NewBookingRepository(catalog database.WorkspaceRepository, policy entity.OccupancyPolicy, clock func() time.Time) database.BookingRepository {
	if clock == nil {
		clock = time.Now
	}
	return &bookingRepository{
		catalog:  catalog,
		policy:   policy,
		now:      clock,
		bookings: make(map[int64]*entity.Booking),
		locks:    make(map[int64]*sync.Mutex),
	}
}

func (r *bookingRepository) workspaceLock(workspaceID int64) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()

	lock, ok := r.locks[workspaceID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[workspaceID] = lock
	}
	return lock
}

func (r *bookingRepository) Reserve(ctx context.Context, req *entity.ReservationRequest) (*entity.Booking, error) {
	now := r.now()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	lock := r.workspaceLock(req.WorkspaceID)
	lock.Lock()
	defer lock.Unlock()

	workspace, err := r.catalog.GetByID(ctx, req.WorkspaceID)
	if err != nil {
		return nil, err
	}
	if !workspace.IsActive {
		return nil, entity.ErrWorkspaceInactive
	}
	if req.Attendees > workspace.Capacity {
		return nil, entity.Wrap(entity.ErrCapacityExceeded,
			fmt.Errorf("requested %d, capacity %d", req.Attendees, workspace.Capacity))
	}

	r.mu.RLock()
	occupancy := entity.OccupancyOf(r.forWorkspace(req.WorkspaceID), req.StartTime, req.EndTime)
	r.mu.RUnlock()

	if !r.policy.Admits(workspace.Capacity, occupancy.Attendees, occupancy.Conflicts, req.Attendees) {
		return nil, entity.ErrSlotTaken
	}

	booking := &entity.Booking{
		UserID:          req.UserID,
		WorkspaceID:     req.WorkspaceID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Attendees:       req.Attendees,
		Status:          entity.BookingStatusConfirmed,
		SpecialRequests: req.SpecialRequests,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if workspace.Type.RequiresApproval {
		booking.Status = entity.BookingStatusPending
	}

	r.mu.Lock()
	r.nextID++
	booking.ID = r.nextID
	r.bookings[booking.ID] = booking
	r.mu.Unlock()

	c := *booking
	return &c, nil
}

func (r *bookingRepository) Cancel(_ context.Context, bookingID, userID int64) (*entity.Booking, error) {
	r.mu.RLock()
	stored, ok := r.bookings[bookingID]
	var workspaceID int64
	if ok {
		workspaceID = stored.WorkspaceID
	}
	r.mu.RUnlock()

	if !ok {
		return nil, entity.ErrBookingNotFound
	}

	lock := r.workspaceLock(workspaceID)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if stored.UserID != userID {
		return nil, entity.ErrBookingNotOwned
	}

	now := r.now()
	if !stored.StatusAt(now).IsActive() {
		return nil, entity.ErrCannotCancel
	}

	stored.Status = entity.BookingStatusCancelled
	stored.UpdatedAt = now

	c := *stored
	return &c, nil
}

func (r *bookingRepository) GetByID(_ context.Context, id int64) (*entity.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	booking, ok := r.bookings[id]
	if !ok {
		return nil, entity.ErrBookingNotFound
	}

	c := *booking
	c.Status = booking.StatusAt(r.now())
	return &c, nil
}

func (r *bookingRepository) ListForUser(ctx context.Context, filter *entity.UserBookingsFilter) ([]*entity.BookingDetails, error) {
	now := filter.Now
	if now.IsZero() {
		now = r.now()
	}

	r.mu.RLock()
	var selected []entity.Booking
	for _, b := range r.bookings {
		if b.UserID != filter.UserID {
			continue
		}
		if b.EndTime.After(now) == filter.Upcoming {
			selected = append(selected, *b)
		}
	}
	r.mu.RUnlock()

	// id breaks start_time ties so offset paging is deterministic
	sort.Slice(selected, func(i, j int) bool {
		a, b := selected[i], selected[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime) == filter.Upcoming
		}
		return (a.ID < b.ID) == filter.Upcoming
	})

	details := make([]*entity.BookingDetails, 0)
	if filter.Offset >= len(selected) {
		return details, nil
	}
	selected = selected[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(selected) {
		selected = selected[:filter.Limit]
	}

	for _, b := range selected {
		d := &entity.BookingDetails{Booking: b, Amenities: []entity.WorkspaceAmenity{}}
		d.Status = b.StatusAt(now)

		workspace, err := r.catalog.GetByID(ctx, b.WorkspaceID)
		if err != nil {
			return nil, err
		}
		d.WorkspaceName = workspace.Name
		d.WorkspaceType = workspace.Type.Name
		d.Floor = workspace.Floor
		d.Location = workspace.Location
		d.Amenities = workspace.Amenities

		details = append(details, d)
	}

	return details, nil
}

func (r *bookingRepository) ActiveOverlapping(_ context.Context, workspaceID int64, start, end time.Time) ([]*entity.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*entity.Booking
	for _, b := range r.forWorkspace(workspaceID) {
		if b.Status.IsActive() && b.Overlaps(start, end) {
			c := *b
			result = append(result, &c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

func (r *bookingRepository) CompleteElapsed(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var completed int64
	now := r.now()
	for _, b := range r.bookings {
		if b.Status == entity.BookingStatusConfirmed && !b.EndTime.After(before) {
			b.Status = entity.BookingStatusCompleted
			b.UpdatedAt = now
			completed++
		}
	}
	return completed, nil
}

// forWorkspace must be called with r.mu held.
func (r *bookingRepository) forWorkspace(workspaceID int64) []*entity.Booking {
	var result []*entity.Booking
	for _, b := range r.bookings {
		if b.WorkspaceID == workspaceID {
			result = append(result, b)
		}
	}
	return result
}
