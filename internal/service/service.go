package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"coach-service/api"
	"coach-service/internal/lock"
	"coach-service/internal/models"
	"coach-service/internal/notify"
	"coach-service/internal/schedule"
	"coach-service/internal/storage"
	"coach-service/pkg/response"
	"coach-service/pkg/sl"
)

type DeleteScope string

const (
	// DeleteAll removes every unreferenced available slot, past ones included.
	DeleteAll DeleteScope = "all"
	// DeleteFuture keeps available slots that already started.
	DeleteFuture DeleteScope = "future"
)

type Settings struct {
	CoachID       string
	Location      *time.Location
	HorizonDays   int
	DeleteScope   DeleteScope
	LockTTL       time.Duration
	NotifyTimeout time.Duration
	Now           func() time.Time
}

type Store interface {
	BeginTx(ctx context.Context) (storage.Tx, error)

	// Coach config
	GetCoachConfig(ctx context.Context, coachID string) (*models.CoachConfig, error)

	// Slots
	ListSlots(ctx context.Context, coachID string, from, to time.Time, status *models.SlotStatus) ([]*models.Slot, error)

	// Bookings
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListUpcomingConfirmedForUser(ctx context.Context, userID string, from time.Time) ([]*models.Booking, error)
	ListConfirmedForCoach(ctx context.Context, coachID string, from, to time.Time) ([]*models.Booking, error)
	ListAllConfirmedForCoach(ctx context.Context, coachID string) ([]*models.Booking, error)
}

type Service struct {
	log      *slog.Logger
	store    Store
	locker   lock.Locker
	notifier notify.Notifier
	validate *validator.Validate
	cfg      Settings

	inflight sync.WaitGroup
}

func NewService(log *slog.Logger, store Store, locker lock.Locker, notifier notify.Notifier, cfg Settings) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = schedule.DefaultHorizonDays
	}
	if cfg.DeleteScope == "" {
		cfg.DeleteScope = DeleteAll
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		log:      log.With(slog.String("component", "service")),
		store:    store,
		locker:   locker,
		notifier: notifier,
		validate: validator.New(),
		cfg:      cfg,
	}
}

// Wait blocks until notifications dispatched so far have finished.
func (s *Service) Wait() {
	s.inflight.Wait()
}

func (s *Service) now() time.Time {
	return s.cfg.Now().UTC()
}

func (s *Service) isCoach(principal string) bool {
	return principal != "" && principal == s.cfg.CoachID
}

// dispatch hands messages to the notifier without blocking the caller.
// Delivery errors are logged and otherwise ignored.
func (s *Service) dispatch(msgs ...notify.Message) {
	if s.notifier == nil || len(msgs) == 0 {
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NotifyTimeout)
		defer cancel()

		for _, msg := range msgs {
			if err := s.notifier.Notify(ctx, msg); err != nil {
				s.log.Warn("failed to send notification",
					slog.String("recipient", msg.Recipient),
					slog.String("kind", string(msg.Kind)),
					sl.Err(err),
				)
			}
		}
	}()
}

func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &response.InvalidError{Msg: response.ValidationError(verrs).Message}
	}

	return response.Invalid("%s", err.Error())
}

func parseID(raw, field string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, response.Invalid("%s must be a positive integer", field)
	}

	return id, nil
}

// parseDate reads a YYYY-MM-DD date as local midnight in the coach's zone.
func (s *Service) parseDate(raw, field string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, response.Invalid("%s is required (YYYY-MM-DD)", field)
	}

	d, err := time.ParseInLocation(time.DateOnly, raw, s.cfg.Location)
	if err != nil {
		return time.Time{}, response.Invalid("%s must use the YYYY-MM-DD format", field)
	}

	return d, nil
}

func toAPISlot(m *models.Slot) api.Slot {
	return api.Slot{
		SlotID:    m.ID,
		CoachID:   m.CoachID,
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
		Status:    string(m.Status),
		BookingID: m.BookingID,
		UserID:    m.UserID,
	}
}

func toAPIBooking(m *models.Booking) api.Booking {
	return api.Booking{
		BookingID: m.ID,
		UserID:    m.UserID,
		CoachID:   m.CoachID,
		SlotID:    m.SlotID,
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
	}
}

func toAPIBookings(ms []*models.Booking) []api.Booking {
	out := make([]api.Booking, 0, len(ms))
	for _, m := range ms {
		out = append(out, toAPIBooking(m))
	}

	return out
}

func toAPIConfig(m *models.CoachConfig) api.CoachConfig {
	cfg := api.CoachConfig{
		CoachID:                m.CoachID,
		WeeklyTemplate:         m.WeeklyTemplate,
		SessionDurationMinutes: m.SessionDurationMinutes,
	}
	if cfg.WeeklyTemplate == nil {
		cfg.WeeklyTemplate = map[string][]string{}
	}
	if !m.UpdatedAt.IsZero() {
		updated := m.UpdatedAt
		cfg.UpdatedAt = &updated
	}

	return cfg
}
