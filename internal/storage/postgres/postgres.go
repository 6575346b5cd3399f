package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"coach-service/internal/models"
	"coach-service/internal/schedule"
	"coach-service/internal/storage"
	"coach-service/pkg/response"
)

// insertChunk bounds rows per INSERT so one statement stays well under the
// 65535 bind parameter limit.
const insertChunk = 500

const slotColumns = `id, coach_id, start_time, end_time, status, booking_id, user_id`

const bookingColumns = `id, user_id, coach_id, slot_id, start_time, end_time, status, created_at, is_reminder_sent`

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

// NewWithDB wraps an already opened handle.
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) BeginTx(ctx context.Context) (storage.Tx, error) {
	const op = "storage.postgres.BeginTx"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Tx{tx: tx}, nil
}

type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error {
	return t.tx.Commit()
}

func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}

	return err
}

// #### coach config ####

func (t *Tx) UpsertCoachConfig(ctx context.Context, cfg *models.CoachConfig) error {
	const op = "storage.postgres.UpsertCoachConfig"

	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO coach_configs (coach_id, weekly_template, session_duration_minutes, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (coach_id)
		DO UPDATE
		SET weekly_template = EXCLUDED.weekly_template,
			session_duration_minutes = EXCLUDED.session_duration_minutes,
			updated_at = EXCLUDED.updated_at`,
		cfg.CoachID,
		cfg.WeeklyTemplate,
		cfg.SessionDurationMinutes,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) GetCoachConfig(ctx context.Context, coachID string) (*models.CoachConfig, error) {
	const op = "storage.postgres.GetCoachConfig"

	var cfg models.CoachConfig

	err := s.db.QueryRowContext(ctx,
		`SELECT coach_id, weekly_template, session_duration_minutes, updated_at
		FROM coach_configs WHERE coach_id=$1`, coachID).
		Scan(
			&cfg.CoachID,
			&cfg.WeeklyTemplate,
			&cfg.SessionDurationMinutes,
			&cfg.UpdatedAt,
		)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.UpdatedAt = cfg.UpdatedAt.UTC()

	return &cfg, nil
}

// #### regeneration ####

func (t *Tx) ListOccupiedIntervals(ctx context.Context, coachID string, from time.Time) ([]schedule.Interval, error) {
	const op = "storage.postgres.ListOccupiedIntervals"

	rows, err := t.tx.QueryContext(ctx,
		`SELECT start_time, end_time FROM slots
		WHERE coach_id=$1 AND start_time >= $2
		ORDER BY start_time`, coachID, from)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var out []schedule.Interval
	for rows.Next() {
		var iv schedule.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		iv.Start, iv.End = iv.Start.UTC(), iv.End.UTC()
		out = append(out, iv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (t *Tx) DeleteAvailableSlots(ctx context.Context, coachID string, from *time.Time) (int64, error) {
	const op = "storage.postgres.DeleteAvailableSlots"

	query := `DELETE FROM slots s
		WHERE s.coach_id=$1 AND s.status='available'
		AND NOT EXISTS (
			SELECT 1 FROM bookings b WHERE b.slot_id = s.id AND b.status='confirmed'
		)`
	args := []any{coachID}

	if from != nil {
		query += ` AND s.start_time >= $2`
		args = append(args, *from)
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

func (t *Tx) BulkInsertAvailable(ctx context.Context, coachID string, intervals []schedule.Interval) (int64, error) {
	const op = "storage.postgres.BulkInsertAvailable"

	var total int64

	for lo := 0; lo < len(intervals); lo += insertChunk {
		hi := min(lo+insertChunk, len(intervals))
		chunk := intervals[lo:hi]

		placeholders := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*3)
		for i, iv := range chunk {
			placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, 'available')", i*3+1, i*3+2, i*3+3))
			args = append(args, coachID, iv.Start.UTC(), iv.End.UTC())
		}

		query := fmt.Sprintf(`
			INSERT INTO slots (coach_id, start_time, end_time, status)
			VALUES %s`,
			strings.Join(placeholders, ","),
		)

		res, err := t.tx.ExecContext(ctx, query, args...)
		if err != nil {
			return total, fmt.Errorf("%s exec: %w", op, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("%s: %w", op, err)
		}
		total += n
	}

	return total, nil
}

// #### slots ####

func (t *Tx) ClaimSlot(ctx context.Context, slotID int64, userID string, now time.Time) (*models.Slot, error) {
	const op = "storage.postgres.ClaimSlot"

	row := t.tx.QueryRowContext(ctx,
		`UPDATE slots SET status='booked', user_id=$2
		WHERE id=$1 AND status='available' AND start_time > $3
		RETURNING `+slotColumns, slotID, userID, now)

	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slot, nil
}

func (t *Tx) ReleaseSlot(ctx context.Context, slotID int64) error {
	const op = "storage.postgres.ReleaseSlot"

	_, err := t.tx.ExecContext(ctx,
		`UPDATE slots SET status='available', booking_id=NULL, user_id=NULL WHERE id=$1`, slotID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (t *Tx) LinkBooking(ctx context.Context, slotID, bookingID int64) error {
	const op = "storage.postgres.LinkBooking"

	res, err := t.tx.ExecContext(ctx, `UPDATE slots SET booking_id=$2 WHERE id=$1`, slotID, bookingID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// ListSlots returns the coach's slots starting in [from, to), optionally
// restricted to one status, ordered by start.
func (s *Storage) ListSlots(ctx context.Context, coachID string, from, to time.Time, status *models.SlotStatus) ([]*models.Slot, error) {
	const op = "storage.postgres.ListSlots"

	query := `SELECT ` + slotColumns + ` FROM slots
		WHERE coach_id=$1 AND start_time >= $2 AND start_time < $3`
	args := []any{coachID, from, to}

	if status != nil {
		query += ` AND status=$4`
		args = append(args, string(*status))
	}
	query += ` ORDER BY start_time, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	slots := []*models.Slot{}
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

// #### bookings ####

func (t *Tx) CreateBooking(ctx context.Context, b *models.Booking) (int64, error) {
	const op = "storage.postgres.CreateBooking"

	var id int64

	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO bookings (user_id, coach_id, slot_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		b.UserID,
		b.CoachID,
		b.SlotID,
		b.StartTime,
		b.EndTime,
		string(models.BookingConfirmed),
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (t *Tx) FindBooking(ctx context.Context, id int64) (*models.Booking, error) {
	const op = "storage.postgres.FindBooking"

	b, err := scanBooking(t.tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

func (t *Tx) CancelBooking(ctx context.Context, id int64, status models.BookingStatus) (bool, error) {
	const op = "storage.postgres.CancelBooking"

	res, err := t.tx.ExecContext(ctx,
		`UPDATE bookings SET status=$2 WHERE id=$1 AND status='confirmed'`, id, string(status))
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		return true, nil
	}

	var current models.BookingStatus
	err = t.tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id=$1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	if current.IsCancelled() {
		return false, nil
	}

	return false, fmt.Errorf("%s: %w", op, response.ErrBookingNotActive)
}

func (s *Storage) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	const op = "storage.postgres.GetBooking"

	b, err := scanBooking(s.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return b, nil
}

func (s *Storage) ListUpcomingConfirmedForUser(ctx context.Context, userID string, from time.Time) ([]*models.Booking, error) {
	const op = "storage.postgres.ListUpcomingConfirmedForUser"

	out, err := s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		WHERE user_id=$1 AND status='confirmed' AND start_time >= $2
		ORDER BY start_time, id`, userID, from)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Storage) ListConfirmedForCoach(ctx context.Context, coachID string, from, to time.Time) ([]*models.Booking, error) {
	const op = "storage.postgres.ListConfirmedForCoach"

	out, err := s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		WHERE coach_id=$1 AND status='confirmed' AND start_time >= $2 AND start_time < $3
		ORDER BY start_time, id`, coachID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Storage) ListAllConfirmedForCoach(ctx context.Context, coachID string) ([]*models.Booking, error) {
	const op = "storage.postgres.ListAllConfirmedForCoach"

	out, err := s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		WHERE coach_id=$1 AND status='confirmed'
		ORDER BY start_time, id`, coachID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// #### reminders ####

// ListDueReminders returns confirmed bookings without a sent reminder whose
// start lies in (from, to].
func (s *Storage) ListDueReminders(ctx context.Context, from, to time.Time) ([]*models.Booking, error) {
	const op = "storage.postgres.ListDueReminders"

	out, err := s.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings
		WHERE status='confirmed' AND is_reminder_sent=false
		AND start_time > $1 AND start_time <= $2
		ORDER BY start_time, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

func (s *Storage) MarkReminderSent(ctx context.Context, id int64) error {
	const op = "storage.postgres.MarkReminderSent"

	res, err := s.db.ExecContext(ctx, `UPDATE bookings SET is_reminder_sent=true WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	bookings := []*models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}

		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*models.Slot, error) {
	var (
		slot      models.Slot
		bookingID sql.NullInt64
		userID    sql.NullString
	)

	err := row.Scan(
		&slot.ID,
		&slot.CoachID,
		&slot.StartTime,
		&slot.EndTime,
		&slot.Status,
		&bookingID,
		&userID,
	)
	if err != nil {
		return nil, err
	}

	slot.StartTime, slot.EndTime = slot.StartTime.UTC(), slot.EndTime.UTC()
	if bookingID.Valid {
		slot.BookingID = &bookingID.Int64
	}
	if userID.Valid {
		slot.UserID = &userID.String
	}

	return &slot, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b      models.Booking
		slotID sql.NullInt64
	)

	err := row.Scan(
		&b.ID,
		&b.UserID,
		&b.CoachID,
		&slotID,
		&b.StartTime,
		&b.EndTime,
		&b.Status,
		&b.CreatedAt,
		&b.IsReminderSent,
	)
	if err != nil {
		return nil, err
	}

	b.StartTime, b.EndTime, b.CreatedAt = b.StartTime.UTC(), b.EndTime.UTC(), b.CreatedAt.UTC()
	if slotID.Valid {
		b.SlotID = &slotID.Int64
	}

	return &b, nil
}
