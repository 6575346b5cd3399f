package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coach-service/internal/models"
	"coach-service/internal/schedule"
	"coach-service/pkg/response"
)

var now = time.Date(2030, time.March, 4, 8, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*Storage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewWithDB(db), mock
}

func slotRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "coach_id", "start_time", "end_time", "status", "booking_id", "user_id"})
}

func bookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "coach_id", "slot_id", "start_time", "end_time", "status", "created_at", "is_reminder_sent"})
}

func TestClaimSlot(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	start := now.Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE slots SET status='booked', user_id=$2`)).
		WithArgs(int64(42), "user-a", now).
		WillReturnRows(slotRows().AddRow(int64(42), "coach", start, start.Add(time.Hour), "booked", nil, "user-a"))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE slots SET status='booked', user_id=$2`)).
		WithArgs(int64(42), "user-b", now).
		WillReturnRows(slotRows())
	mock.ExpectRollback()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)

	slot, err := tx.ClaimSlot(ctx, 42, "user-a", now)
	require.NoError(t, err)
	assert.Equal(t, models.SlotBooked, slot.Status)
	assert.Nil(t, slot.BookingID)
	require.NotNil(t, slot.UserID)
	assert.Equal(t, "user-a", *slot.UserID)
	assert.Equal(t, start, slot.StartTime)

	_, err = tx.ClaimSlot(ctx, 42, "user-b", now)
	require.ErrorIs(t, err, response.ErrSlotNotAvailable)

	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBooking_UniqueViolation(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	slotID := int64(7)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO bookings`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO bookings`)).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)

	b := &models.Booking{UserID: "a", CoachID: "coach", SlotID: &slotID, StartTime: now, EndTime: now.Add(time.Hour)}

	id, err := tx.CreateBooking(ctx, b)
	require.NoError(t, err)
	assert.EqualValues(t, 1, id)

	_, err = tx.CreateBooking(ctx, b)
	require.ErrorIs(t, err, response.ErrSlotNotAvailable)

	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelBooking(t *testing.T) {
	tests := []struct {
		name        string
		affected    int64
		current     *sqlmock.Rows
		wantChanged bool
		wantErr     error
	}{
		{name: "confirmed", affected: 1, wantChanged: true},
		{name: "already cancelled", current: sqlmock.NewRows([]string{"status"}).AddRow("cancelled_by_coach")},
		{name: "completed", current: sqlmock.NewRows([]string{"status"}).AddRow("completed"), wantErr: response.ErrBookingNotActive},
		{name: "missing", current: sqlmock.NewRows([]string{"status"}), wantErr: response.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMock(t)
			ctx := context.Background()

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET status=$2 WHERE id=$1 AND status='confirmed'`)).
				WithArgs(int64(5), "cancelled_by_user").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			if tt.current != nil {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT status FROM bookings WHERE id=$1`)).
					WithArgs(int64(5)).
					WillReturnRows(tt.current)
			}
			mock.ExpectRollback()

			tx, err := s.BeginTx(ctx)
			require.NoError(t, err)

			changed, err := tx.CancelBooking(ctx, 5, models.BookingCancelledByUser)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantChanged, changed)

			require.NoError(t, tx.Rollback())
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBulkInsertAvailable_Chunks(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	intervals := make([]schedule.Interval, insertChunk+1)
	for i := range intervals {
		start := now.Add(time.Duration(i) * time.Hour)
		intervals[i] = schedule.Interval{Start: start, End: start.Add(time.Hour)}
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO slots (coach_id, start_time, end_time, status)`)).
		WillReturnResult(sqlmock.NewResult(0, insertChunk))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO slots (coach_id, start_time, end_time, status)`)).
		WithArgs("coach", intervals[insertChunk].Start, intervals[insertChunk].End).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)

	n, err := tx.BulkInsertAvailable(ctx, "coach", intervals)
	require.NoError(t, err)
	assert.EqualValues(t, insertChunk+1, n)

	require.NoError(t, tx.Commit())
	// rollback after commit is a no-op
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAvailableSlots(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM slots s(.|\n)*NOT EXISTS(.|\n)*status='confirmed'`).
		WithArgs("coach").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM slots s(.|\n)*start_time >= \$2`).
		WithArgs("coach", now).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectRollback()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)

	n, err := tx.DeleteAvailableSlots(ctx, "coach", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = tx.DeleteAvailableSlots(ctx, "coach", &now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListOccupiedIntervals(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT start_time, end_time FROM slots`)).
		WithArgs("coach", now).
		WillReturnRows(sqlmock.NewRows([]string{"start_time", "end_time"}).
			AddRow(now.Add(time.Hour), now.Add(2*time.Hour)))
	mock.ExpectRollback()

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)

	got, err := tx.ListOccupiedIntervals(ctx, "coach", now)
	require.NoError(t, err)
	assert.Equal(t, []schedule.Interval{{Start: now.Add(time.Hour), End: now.Add(2 * time.Hour)}}, got)

	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertAndGetCoachConfig(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	tpl := models.WeeklyTemplate{"monday": {"09:00"}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO coach_configs`)).
		WithArgs("coach", `{"monday":["09:00"]}`, 60).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM coach_configs WHERE coach_id=$1`)).
		WithArgs("coach").
		WillReturnRows(sqlmock.NewRows([]string{"coach_id", "weekly_template", "session_duration_minutes", "updated_at"}).
			AddRow("coach", []byte(`{"monday":["09:00"]}`), 60, now))
	mock.ExpectQuery(regexp.QuoteMeta(`FROM coach_configs WHERE coach_id=$1`)).
		WithArgs("other").
		WillReturnRows(sqlmock.NewRows([]string{"coach_id", "weekly_template", "session_duration_minutes", "updated_at"}))

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpsertCoachConfig(ctx, &models.CoachConfig{CoachID: "coach", WeeklyTemplate: tpl, SessionDurationMinutes: 60}))
	require.NoError(t, tx.Commit())

	cfg, err := s.GetCoachConfig(ctx, "coach")
	require.NoError(t, err)
	assert.Equal(t, tpl, cfg.WeeklyTemplate)
	assert.Equal(t, 60, cfg.SessionDurationMinutes)

	_, err = s.GetCoachConfig(ctx, "other")
	require.ErrorIs(t, err, response.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSlotsWithStatus(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()
	status := models.SlotAvailable

	mock.ExpectQuery(regexp.QuoteMeta(`AND status=$4 ORDER BY start_time, id`)).
		WithArgs("coach", now, now.Add(24*time.Hour), "available").
		WillReturnRows(slotRows().
			AddRow(int64(1), "coach", now.Add(time.Hour), now.Add(2*time.Hour), "available", nil, nil).
			AddRow(int64(2), "coach", now.Add(2*time.Hour), now.Add(3*time.Hour), "available", nil, nil))

	slots, err := s.ListSlots(ctx, "coach", now, now.Add(24*time.Hour), &status)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.EqualValues(t, 2, slots[1].ID)
	assert.Nil(t, slots[1].UserID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBookingAndReminders(t *testing.T) {
	s, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM bookings WHERE id=$1`)).
		WithArgs(int64(9)).
		WillReturnRows(bookingRows().AddRow(int64(9), "a", "coach", nil, now, now.Add(time.Hour), "cancelled_by_coach", now, false))
	mock.ExpectQuery(regexp.QuoteMeta(`is_reminder_sent=false`)).
		WithArgs(now, now.Add(time.Minute)).
		WillReturnRows(bookingRows().AddRow(int64(3), "a", "coach", int64(11), now.Add(time.Minute), now.Add(time.Hour), "confirmed", now, false))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET is_reminder_sent=true WHERE id=$1`)).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE bookings SET is_reminder_sent=true WHERE id=$1`)).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	b, err := s.GetBooking(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, b.SlotID)
	assert.Equal(t, models.BookingCancelledByCoach, b.Status)

	due, err := s.ListDueReminders(ctx, now, now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.NotNil(t, due[0].SlotID)
	assert.EqualValues(t, 11, *due[0].SlotID)

	require.NoError(t, s.MarkReminderSent(ctx, 3))
	require.ErrorIs(t, s.MarkReminderSent(ctx, 4), response.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}
