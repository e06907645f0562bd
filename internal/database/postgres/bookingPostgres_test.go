package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gabrie-lhilarion/spacemania/internal/entity"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

var bookingCols = []string{
	"id", "user_id", "workspace_id", "start_time", "end_time", "attendees",
	"status", "special_requests", "created_at", "updated_at",
}

func reservation() *entity.ReservationRequest {
	return &entity.ReservationRequest{
		UserID:      7,
		WorkspaceID: 3,
		StartTime:   fixedNow.Add(48 * time.Hour),
		EndTime:     fixedNow.Add(50 * time.Hour),
		Attendees:   4,
	}
}

func expectLock(mock sqlmock.Sqlmock, capacity int, active, approval bool) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT w.capacity, w.is_active, t.requires_approval")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"capacity", "is_active", "requires_approval"}).
			AddRow(capacity, active, approval))
}

func expectOccupancy(mock sqlmock.Sqlmock, conflicts, attendees int) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COALESCE(SUM(attendees), 0)")).
		WithArgs(int64(3), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "sum"}).AddRow(conflicts, attendees))
}

func TestReserve_Confirmed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBookingRepository(db, entity.OccupancyExclusive, clock)

	mock.ExpectBegin()
	expectLock(mock, 8, true, false)
	expectOccupancy(mock, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO bookings")).
		WithArgs(int64(7), int64(3), sqlmock.AnyArg(), sqlmock.AnyArg(), 4, "confirmed",
			nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectCommit()

	booking, err := repo.Reserve(context.Background(), reservation())
	require.NoError(t, err)
	assert.Equal(t, int64(42), booking.ID)
	assert.Equal(t, entity.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, fixedNow, booking.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_PendingWhenTypeRequiresApproval(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBookingRepository(db, entity.OccupancyExclusive, clock)

	mock.ExpectBegin()
	expectLock(mock, 20, true, true)
	expectOccupancy(mock, 0, 0)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit()

	booking, err := repo.Reserve(context.Background(), reservation())
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusPending, booking.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		policy  entity.OccupancyPolicy
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name:   "workspace not found",
			policy: entity.OccupancyExclusive,
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT w.capacity")).
					WillReturnRows(sqlmock.NewRows([]string{"capacity", "is_active", "requires_approval"}))
			},
			wantErr: entity.ErrWorkspaceNotFound,
		},
		{
			name:    "inactive workspace",
			policy:  entity.OccupancyExclusive,
			setup:   func(mock sqlmock.Sqlmock) { expectLock(mock, 8, false, false) },
			wantErr: entity.ErrWorkspaceInactive,
		},
		{
			name:    "over capacity",
			policy:  entity.OccupancyShared,
			setup:   func(mock sqlmock.Sqlmock) { expectLock(mock, 3, true, false) },
			wantErr: entity.ErrCapacityExceeded,
		},
		{
			name:   "exclusive conflict",
			policy: entity.OccupancyExclusive,
			setup: func(mock sqlmock.Sqlmock) {
				expectLock(mock, 8, true, false)
				expectOccupancy(mock, 1, 1)
			},
			wantErr: entity.ErrSlotTaken,
		},
		{
			name:   "shared capacity exhausted",
			policy: entity.OccupancyShared,
			setup: func(mock sqlmock.Sqlmock) {
				expectLock(mock, 8, true, false)
				expectOccupancy(mock, 2, 5)
			},
			wantErr: entity.ErrSlotTaken,
		},
		{
			name:   "exclusion constraint",
			policy: entity.OccupancyExclusive,
			setup: func(mock sqlmock.Sqlmock) {
				expectLock(mock, 8, true, false)
				expectOccupancy(mock, 0, 0)
				mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO bookings")).
					WillReturnError(&pq.Error{Code: "23P01", Constraint: "bookings_no_overlap"})
			},
			wantErr: entity.ErrSlotTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectBegin()
			tt.setup(mock)
			mock.ExpectRollback()

			repo := NewBookingRepository(db, tt.policy, clock)
			_, err = repo.Reserve(context.Background(), reservation())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReserve_SharedAdmitsWithinCapacity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewBookingRepository(db, entity.OccupancyShared, clock)

	mock.ExpectBegin()
	expectLock(mock, 8, true, false)
	expectOccupancy(mock, 1, 4)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectCommit()

	booking, err := repo.Reserve(context.Background(), reservation())
	require.NoError(t, err)
	assert.Equal(t, int64(9), booking.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserve_InvalidWindowNeverTouchesDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	req := reservation()
	req.EndTime = req.StartTime

	repo := NewBookingRepository(db, entity.OccupancyExclusive, clock)
	_, err = repo.Reserve(context.Background(), req)
	assert.ErrorIs(t, err, entity.ErrInvalidTimeRange)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func bookingRow(id, userID int64, status entity.BookingStatus, end time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(bookingCols).AddRow(
		id, userID, int64(3), end.Add(-2*time.Hour), end, 2, string(status), nil, fixedNow, fixedNow,
	)
}

func TestCancel(t *testing.T) {
	future := fixedNow.Add(72 * time.Hour)
	past := fixedNow.Add(-time.Hour)

	tests := []struct {
		name    string
		row     *sqlmock.Rows
		update  bool
		wantErr error
	}{
		{name: "success", row: bookingRow(5, 7, entity.BookingStatusConfirmed, future), update: true},
		{name: "pending can be cancelled", row: bookingRow(5, 7, entity.BookingStatusPending, future), update: true},
		{name: "not found", row: sqlmock.NewRows(bookingCols), wantErr: entity.ErrBookingNotFound},
		{name: "other user", row: bookingRow(5, 8, entity.BookingStatusConfirmed, future), wantErr: entity.ErrBookingNotOwned},
		{name: "already cancelled", row: bookingRow(5, 7, entity.BookingStatusCancelled, future), wantErr: entity.ErrCannotCancel},
		{name: "elapsed confirmed is completed", row: bookingRow(5, 7, entity.BookingStatusConfirmed, past), wantErr: entity.ErrCannotCancel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta("FROM bookings WHERE id = $1 FOR UPDATE")).
				WithArgs(int64(5)).
				WillReturnRows(tt.row)
			if tt.update {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $1")).
					WithArgs("cancelled", sqlmock.AnyArg(), int64(5)).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			} else {
				mock.ExpectRollback()
			}

			repo := NewBookingRepository(db, entity.OccupancyExclusive, clock)
			booking, err := repo.Cancel(context.Background(), 5, 7)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, entity.BookingStatusCancelled, booking.Status)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestListForUser_Upcoming(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	start := fixedNow.Add(24 * time.Hour)
	cols := append(append([]string{}, bookingCols...), "workspace_name", "type_name", "floor", "location")
	mock.ExpectQuery(`b\.end_time > \$2\s+ORDER BY b\.start_time ASC, b\.id ASC`).
		WithArgs(int64(7), fixedNow, 10, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(1), int64(7), int64(3), start, start.Add(time.Hour), 2, "confirmed", "projector", fixedNow, fixedNow,
				"Orion", "meeting_room", 2, "East wing"))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE wa.workspace_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"workspace_id", "id", "name", "quantity"}).
			AddRow(int64(3), int64(11), "whiteboard", 1))

	repo := NewBookingRepository(db, entity.OccupancyExclusive, clock)
	details, err := repo.ListForUser(context.Background(), &entity.UserBookingsFilter{
		UserID: 7, Upcoming: true, Now: fixedNow, Limit: 10,
	})
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "Orion", details[0].WorkspaceName)
	assert.Equal(t, "meeting_room", details[0].WorkspaceType)
	require.NotNil(t, details[0].SpecialRequests)
	assert.Equal(t, "projector", *details[0].SpecialRequests)
	assert.Equal(t, []entity.WorkspaceAmenity{{ID: 11, Name: "whiteboard", Quantity: 1}}, details[0].Amenities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListForUser_PastIsNewestFirst(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`b\.end_time <= \$2\s+ORDER BY b\.start_time DESC, b\.id DESC`).
		WithArgs(int64(7), fixedNow, 5, 5).
		WillReturnRows(sqlmock.NewRows(bookingCols))

	repo := NewBookingRepository(db, entity.OccupancyExclusive, clock)
	details, err := repo.ListForUser(context.Background(), &entity.UserBookingsFilter{
		UserID: 7, Now: fixedNow, Offset: 5, Limit: 5,
	})
	require.NoError(t, err)
	assert.Empty(t, details)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteElapsed(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $1, updated_at = $2 WHERE status = $3 AND end_time <= $4")).
		WithArgs("completed", fixedNow, "confirmed", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := NewBookingRepository(db, entity.OccupancyExclusive, clock)
	n, err := repo.CompleteElapsed(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMapWriteError(t *testing.T) {
	assert.ErrorIs(t, mapWriteError("x", &pq.Error{Code: "23P01"}), entity.ErrSlotTaken)
	assert.ErrorIs(t, mapWriteError("x", &pq.Error{Code: "23503"}), entity.ErrWorkspaceNotFound)
	assert.Equal(t, entity.KindValidation, entity.KindOf(mapWriteError("x", &pq.Error{Code: "23514"})))
	assert.Equal(t, entity.KindPersistence, entity.KindOf(mapWriteError("x", assert.AnError)))
}
