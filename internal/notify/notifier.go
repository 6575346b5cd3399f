// Package notify delivers booking notifications to WeChat mini-program users,
// either directly or through an asynq queue.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"coach-service/internal/models"
)

type Kind string

const (
	KindBookingConfirmed Kind = "booking_confirmed"
	KindBookingCancelled Kind = "booking_cancelled"
	KindReminder         Kind = "reminder"
)

const (
	PageMyBookings    = "pages/myBookings/myBookings"
	PageCoachBookings = "pages/coachBookings/coachBookings"
)

// Message is one notification for one recipient. Fields are keyed by the
// subscribe-message template keyword (thing1, thing13, ...).
type Message struct {
	Recipient string            `json:"recipient"`
	Kind      Kind              `json:"kind"`
	Fields    map[string]string `json:"fields"`
	Page      string            `json:"page"`
}

type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Logger only logs messages. Used when no WeChat credentials are configured.
type Logger struct {
	log *slog.Logger
}

func NewLogger(log *slog.Logger) *Logger {
	return &Logger{log: log.With(slog.String("component", "notify/logger"))}
}

func (l *Logger) Notify(_ context.Context, msg Message) error {
	l.log.Info("notification",
		slog.String("recipient", msg.Recipient),
		slog.String("kind", string(msg.Kind)),
		slog.Any("fields", msg.Fields),
		slog.String("page", msg.Page),
	)

	return nil
}

func timeRange(b *models.Booking, loc *time.Location) string {
	return fmt.Sprintf("%s-%s",
		b.StartTime.In(loc).Format("01月02日 15:04"),
		b.EndTime.In(loc).Format("15:04"),
	)
}

// BookingConfirmed builds the student and coach messages for a new booking.
func BookingConfirmed(b *models.Booking, loc *time.Location) []Message {
	slot := timeRange(b, loc)

	msgs := []Message{{
		Recipient: b.UserID,
		Kind:      KindBookingConfirmed,
		Fields:    map[string]string{"thing1": "职业发展辅导预约", "thing13": slot},
		Page:      PageMyBookings,
	}}

	if b.CoachID != "" {
		msgs = append(msgs, Message{
			Recipient: b.CoachID,
			Kind:      KindBookingConfirmed,
			Fields:    map[string]string{"thing1": "新的辅导预约", "thing13": slot},
			Page:      PageCoachBookings,
		})
	}

	return msgs
}

// BookingCancelled builds the student and coach messages for a cancellation.
func BookingCancelled(b *models.Booking, status models.BookingStatus, loc *time.Location) []Message {
	reason := "教练取消了此预约"
	if status == models.BookingCancelledByUser {
		reason = "用户主动取消"
	}

	fields := func() map[string]string {
		return map[string]string{
			"thing1": "辅导预约已取消",
			"thing4": reason,
			"thing8": b.StartTime.In(loc).Format("01月02日 15:04"),
		}
	}

	msgs := []Message{{
		Recipient: b.UserID,
		Kind:      KindBookingCancelled,
		Fields:    fields(),
		Page:      PageMyBookings,
	}}

	if b.CoachID != "" {
		msgs = append(msgs, Message{
			Recipient: b.CoachID,
			Kind:      KindBookingCancelled,
			Fields:    fields(),
			Page:      PageCoachBookings,
		})
	}

	return msgs
}

func Reminder(b *models.Booking, loc *time.Location) Message {
	return Message{
		Recipient: b.UserID,
		Kind:      KindReminder,
		Fields: map[string]string{
			"thing3":             "辅导预约即将开始",
			"character_string10": fmt.Sprintf("%s - %s", b.StartTime.In(loc).Format("2006-01-02 15:04"), b.EndTime.In(loc).Format("15:04")),
		},
		Page: PageMyBookings,
	}
}
