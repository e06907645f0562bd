package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gabrie-lhilarion/spacemania/internal/database"
	"github.com/gabrie-lhilarion/spacemania/internal/entity"
)

const bookingColumns = `id, user_id, workspace_id, start_time, end_time, attendees, status, special_requests, created_at, updated_at`

type bookingRepository struct {
	db     *sql.DB
	policy entity.OccupancyPolicy
	now    func() time.Time
}

// NewBookingRepository returns the PostgreSQL ledger. A nil clock means time.Now.
func NewBookingRepository(db *sql.DB, policy entity.OccupancyPolicy, clock func() time.Time) database.BookingRepository {
	if clock == nil {
		clock = time.Now
	}
	return &bookingRepository{db: db, policy: policy, now: clock}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner, extra ...interface{}) (*entity.Booking, error) {
	var booking entity.Booking
	var specialRequests sql.NullString

	dest := []interface{}{
		&booking.ID,
		&booking.UserID,
		&booking.WorkspaceID,
		&booking.StartTime,
		&booking.EndTime,
		&booking.Attendees,
		&booking.Status,
		&specialRequests,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	if specialRequests.Valid {
		s := specialRequests.String
		booking.SpecialRequests = &s
	}
	return &booking, nil
}

// Reserve runs the conflict check and the insert in one transaction. The
// workspace row is locked FOR UPDATE so reservations on the same workspace
// queue behind each other; under the exclusive policy the bookings_no_overlap
// exclusion constraint rejects any writer that slips past the check.
func (r *bookingRepository) Reserve(ctx context.Context, req *entity.ReservationRequest) (*entity.Booking, error) {
	now := r.now()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelReadCommitted,
	})
	if err != nil {
		return nil, entity.NewPersistenceError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	var capacity int
	var isActive, requiresApproval bool
	query := `
		SELECT w.capacity, w.is_active, t.requires_approval
		FROM workspaces w
		JOIN workspace_types t ON t.id = w.type_id
		WHERE w.id = $1
		FOR UPDATE OF w
	`
	err = tx.QueryRowContext(ctx, query, req.WorkspaceID).Scan(&capacity, &isActive, &requiresApproval)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrWorkspaceNotFound
	}
	if err != nil {
		return nil, entity.NewPersistenceError("failed to lock workspace", err)
	}

	if !isActive {
		return nil, entity.ErrWorkspaceInactive
	}
	if req.Attendees > capacity {
		return nil, entity.Wrap(entity.ErrCapacityExceeded,
			fmt.Errorf("requested %d, capacity %d", req.Attendees, capacity))
	}

	var conflicts, currentAttendees int
	query = `
		SELECT COUNT(*), COALESCE(SUM(attendees), 0)
		FROM bookings
		WHERE workspace_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $3 AND end_time > $2
	`
	err = tx.QueryRowContext(ctx, query, req.WorkspaceID, req.StartTime, req.EndTime).Scan(&conflicts, &currentAttendees)
	if err != nil {
		return nil, entity.NewPersistenceError("failed to check conflicting bookings", err)
	}

	if !r.policy.Admits(capacity, currentAttendees, conflicts, req.Attendees) {
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
	if requiresApproval {
		booking.Status = entity.BookingStatusPending
	}

	query = `
		INSERT INTO bookings (
			user_id, workspace_id, start_time, end_time, attendees,
			status, special_requests, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, query,
		booking.UserID,
		booking.WorkspaceID,
		booking.StartTime,
		booking.EndTime,
		booking.Attendees,
		booking.Status,
		booking.SpecialRequests,
		booking.CreatedAt,
		booking.UpdatedAt,
	).Scan(&booking.ID)
	if err != nil {
		return nil, mapWriteError("failed to create booking", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapWriteError("failed to commit booking", err)
	}

	return booking, nil
}

// Cancel moves an active booking owned by userID to cancelled. The row is
// kept for audit history.
func (r *bookingRepository) Cancel(ctx context.Context, bookingID, userID int64) (*entity.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, entity.NewPersistenceError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	booking, err := scanBooking(tx.QueryRowContext(ctx, query, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, entity.NewPersistenceError("failed to get booking", err)
	}

	if booking.UserID != userID {
		return nil, entity.ErrBookingNotOwned
	}

	now := r.now()
	if !booking.StatusAt(now).IsActive() {
		return nil, entity.ErrCannotCancel
	}

	query = `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, entity.BookingStatusCancelled, now, bookingID); err != nil {
		return nil, mapWriteError("failed to cancel booking", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, entity.NewPersistenceError("failed to commit transaction", err)
	}

	booking.Status = entity.BookingStatusCancelled
	booking.UpdatedAt = now
	return booking, nil
}

// GetByID retrieves a booking by its ID
func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, entity.NewPersistenceError("failed to get booking", err)
	}

	booking.Status = booking.StatusAt(r.now())
	return booking, nil
}

// ListForUser returns one page of the user's upcoming (end_time > now,
// oldest first) or past (end_time <= now, newest first) bookings.
func (r *bookingRepository) ListForUser(ctx context.Context, filter *entity.UserBookingsFilter) ([]*entity.BookingDetails, error) {
	now := filter.Now
	if now.IsZero() {
		now = r.now()
	}

	condition, order := "b.end_time > $2", "ASC"
	if !filter.Upcoming {
		condition, order = "b.end_time <= $2", "DESC"
	}

	query := fmt.Sprintf(`
		SELECT
			b.id, b.user_id, b.workspace_id, b.start_time, b.end_time, b.attendees,
			b.status, b.special_requests, b.created_at, b.updated_at,
			w.name, t.name, w.floor, w.location
		FROM bookings b
		JOIN workspaces w ON w.id = b.workspace_id
		JOIN workspace_types t ON t.id = w.type_id
		WHERE b.user_id = $1 AND %s
		ORDER BY b.start_time %s, b.id %s
		LIMIT $3 OFFSET $4
	`, condition, order, order)

	rows, err := r.db.QueryContext(ctx, query, filter.UserID, now, filter.Limit, filter.Offset)
	if err != nil {
		return nil, entity.NewPersistenceError("failed to query user bookings", err)
	}
	defer rows.Close()

	details := make([]*entity.BookingDetails, 0)
	workspaceIDs := make([]int64, 0)
	seen := make(map[int64]bool)
	for rows.Next() {
		var d entity.BookingDetails
		booking, err := scanBooking(rows, &d.WorkspaceName, &d.WorkspaceType, &d.Floor, &d.Location)
		if err != nil {
			return nil, entity.NewPersistenceError("failed to scan booking", err)
		}
		d.Booking = *booking
		d.Status = d.Booking.StatusAt(now)
		details = append(details, &d)

		if !seen[d.WorkspaceID] {
			seen[d.WorkspaceID] = true
			workspaceIDs = append(workspaceIDs, d.WorkspaceID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, entity.NewPersistenceError("error iterating bookings", err)
	}

	if len(workspaceIDs) == 0 {
		return details, nil
	}

	amenities, err := loadAmenities(ctx, r.db, workspaceIDs)
	if err != nil {
		return nil, err
	}
	for _, d := range details {
		d.Amenities = amenities[d.WorkspaceID]
		if d.Amenities == nil {
			d.Amenities = []entity.WorkspaceAmenity{}
		}
	}

	return details, nil
}

// ActiveOverlapping returns pending and confirmed bookings whose window
// intersects [start, end). The single statement reads one snapshot.
func (r *bookingRepository) ActiveOverlapping(ctx context.Context, workspaceID int64, start, end time.Time) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE workspace_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`

	rows, err := r.db.QueryContext(ctx, query, workspaceID, start, end)
	if err != nil {
		return nil, entity.NewPersistenceError("failed to query conflicting bookings", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, entity.NewPersistenceError("failed to scan booking", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, entity.NewPersistenceError("error iterating bookings", err)
	}

	return bookings, nil
}

// CompleteElapsed persists confirmed -> completed for bookings that ended
// before the given instant and returns the count of updated rows.
func (r *bookingRepository) CompleteElapsed(ctx context.Context, before time.Time) (int64, error) {
	query := `UPDATE bookings SET status = $1, updated_at = $2 WHERE status = $3 AND end_time <= $4`

	result, err := r.db.ExecContext(ctx, query,
		entity.BookingStatusCompleted,
		r.now(),
		entity.BookingStatusConfirmed,
		before,
	)
	if err != nil {
		return 0, entity.NewPersistenceError("failed to complete elapsed bookings", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, entity.NewPersistenceError("failed to get rows affected", err)
	}

	return rowsAffected, nil
}
