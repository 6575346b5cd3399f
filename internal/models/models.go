package models

import "time"

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
)

func (s SlotStatus) Valid() bool {
	return s == SlotAvailable || s == SlotBooked
}

// CanTransitionTo reports whether a slot may move from s to next.
// The only legal moves are available -> booked (claim) and booked -> available (release).
func (s SlotStatus) CanTransitionTo(next SlotStatus) bool {
	switch s {
	case SlotAvailable:
		return next == SlotBooked
	case SlotBooked:
		return next == SlotAvailable
	default:
		return false
	}
}

type BookingStatus string

const (
	BookingConfirmed        BookingStatus = "confirmed"
	BookingCancelledByUser  BookingStatus = "cancelled_by_user"
	BookingCancelledByCoach BookingStatus = "cancelled_by_coach"
	BookingCompleted        BookingStatus = "completed"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingConfirmed, BookingCancelledByUser, BookingCancelledByCoach, BookingCompleted:
		return true
	default:
		return false
	}
}

func (s BookingStatus) IsCancelled() bool {
	return s == BookingCancelledByUser || s == BookingCancelledByCoach
}

// CanTransitionTo reports whether a booking may move from s to next.
// Everything except confirmed is terminal.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	if s != BookingConfirmed {
		return false
	}

	return next.IsCancelled() || next == BookingCompleted
}

type Slot struct {
	ID        int64      `db:"id"`
	CoachID   string     `db:"coach_id"`
	StartTime time.Time  `db:"start_time"`
	EndTime   time.Time  `db:"end_time"`
	Status    SlotStatus `db:"status"`
	BookingID *int64     `db:"booking_id"`
	UserID    *string    `db:"user_id"`
}

type Booking struct {
	ID             int64         `db:"id"`
	UserID         string        `db:"user_id"`
	CoachID        string        `db:"coach_id"`
	SlotID         *int64        `db:"slot_id"`
	StartTime      time.Time     `db:"start_time"`
	EndTime        time.Time     `db:"end_time"`
	Status         BookingStatus `db:"status"`
	CreatedAt      time.Time     `db:"created_at"`
	IsReminderSent bool          `db:"is_reminder_sent"`
}

type CoachConfig struct {
	CoachID                string         `db:"coach_id"`
	WeeklyTemplate         WeeklyTemplate `db:"weekly_template"`
	SessionDurationMinutes int            `db:"session_duration_minutes"`
	UpdatedAt              time.Time      `db:"updated_at"`
}

func (c CoachConfig) SessionDuration() time.Duration {
	return time.Duration(c.SessionDurationMinutes) * time.Minute
}
