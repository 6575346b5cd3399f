// Package reminder periodically notifies students about sessions that are
// about to start.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"coach-service/internal/lock"
	"coach-service/internal/models"
	"coach-service/internal/notify"
	"coach-service/pkg/sl"
)

const (
	DefaultSpec = "* * * * *"
	DefaultLead = 15 * time.Minute

	lockKey = "reminder-sweep"
)

type Store interface {
	ListDueReminders(ctx context.Context, from, to time.Time) ([]*models.Booking, error)
	MarkReminderSent(ctx context.Context, id int64) error
}

type Config struct {
	Spec     string
	Lead     time.Duration
	Location *time.Location
	Timeout  time.Duration
}

type Sweeper struct {
	log      *slog.Logger
	store    Store
	locker   lock.Locker
	notifier notify.Notifier
	cfg      Config
	now      func() time.Time

	cron *cron.Cron
}

func New(log *slog.Logger, store Store, locker lock.Locker, notifier notify.Notifier, cfg Config) *Sweeper {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.Lead <= 0 {
		cfg.Lead = DefaultLead
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Sweeper{
		log:      log.With(slog.String("component", "reminder")),
		store:    store,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		cron:     cron.New(cron.WithLocation(cfg.Location)),
	}
}

// Start schedules the sweep and returns immediately.
func (s *Sweeper) Start() error {
	const op = "reminder.Start"

	_, err := s.cron.AddFunc(s.cfg.Spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()

		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error("reminder sweep failed", sl.Err(err))
		}
	})
	if err != nil {
		return fmt.Errorf("%s: invalid spec %q: %w", op, s.cfg.Spec, err)
	}

	s.cron.Start()
	s.log.Info("reminder sweep scheduled", slog.String("spec", s.cfg.Spec), slog.Duration("lead", s.cfg.Lead))

	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep sends reminders for unflagged confirmed bookings starting in
// (now, now+lead] and returns how many were sent. A booking is only flagged
// once its reminder went out, so a failed send is retried on the next tick
// until the session starts.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	const op = "reminder.Sweep"

	token, locked, err := s.locker.Lock(ctx, lockKey, s.cfg.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		s.log.Debug("reminder sweep already running elsewhere")
		return 0, nil
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.log.Warn("failed to release reminder lock", sl.Err(err))
		}
	}()

	from := s.now().UTC()
	to := from.Add(s.cfg.Lead)

	due, err := s.store.ListDueReminders(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	sent := 0
	for _, b := range due {
		log := s.log.With(slog.Int64("booking_id", b.ID), slog.String("user_id", b.UserID))

		if err := s.notifier.Notify(ctx, notify.Reminder(b, s.cfg.Location)); err != nil {
			log.Warn("failed to send reminder", sl.Err(err))
			continue
		}

		if err := s.store.MarkReminderSent(ctx, b.ID); err != nil {
			log.Error("failed to flag reminder as sent", sl.Err(err))
			continue
		}

		sent++
	}

	if len(due) > 0 {
		s.log.Info("reminders sent", slog.Int("due", len(due)), slog.Int("sent", sent))
	}

	return sent, nil
}
