package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"coach-service/api"
	"coach-service/internal/models"
	"coach-service/internal/schedule"
	"coach-service/pkg/response"
	"coach-service/pkg/sl"
)

func (s *Service) GetCoachConfig(ctx context.Context, principal string) (*api.CoachConfig, error) {
	const op = "service.GetCoachConfig"

	if !s.isCoach(principal) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	cfg, err := s.store.GetCoachConfig(ctx, s.cfg.CoachID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := toAPIConfig(cfg)

	return &out, nil
}

// UpdateCoachConfig replaces the coach's template and regenerates the slot
// pool in the same transaction. On any failure neither change is kept.
func (s *Service) UpdateCoachConfig(ctx context.Context, principal string, req *api.CoachConfigRequest) (*api.CoachConfigUpdateResponse, error) {
	const op = "service.UpdateCoachConfig"

	if !s.isCoach(principal) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if err := s.validateStruct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tpl := models.WeeklyTemplate(req.WeeklyTemplate)
	if err := tpl.Validate(req.SessionDurationMinutes); err != nil {
		return nil, fmt.Errorf("%s: %w", op, response.Invalid("%s", err.Error()))
	}

	cfg := &models.CoachConfig{
		CoachID:                s.cfg.CoachID,
		WeeklyTemplate:         tpl,
		SessionDurationMinutes: req.SessionDurationMinutes,
	}

	res, err := s.regenerate(ctx, cfg, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cfg.UpdatedAt = s.now()

	return &api.CoachConfigUpdateResponse{
		Config:       toAPIConfig(cfg),
		Regeneration: *res,
	}, nil
}

// RegenerateSlots rebuilds the slot pool from the stored config.
func (s *Service) RegenerateSlots(ctx context.Context, principal string) (*api.RegenerationResult, error) {
	const op = "service.RegenerateSlots"

	if !s.isCoach(principal) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	cfg, err := s.store.GetCoachConfig(ctx, s.cfg.CoachID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res, err := s.regenerate(ctx, cfg, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

func (s *Service) regenerate(ctx context.Context, cfg *models.CoachConfig, upsert bool) (*api.RegenerationResult, error) {
	const op = "service.regenerate"

	runID := uuid.NewString()
	log := s.log.With(
		slog.String("op", op),
		slog.String("run_id", runID),
		slog.String("coach_id", cfg.CoachID),
	)

	lockKey := fmt.Sprintf("regen:%s", cfg.CoachID)

	token, locked, err := s.locker.Lock(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			log.Warn("failed to release regeneration lock", sl.Err(err))
		}
	}()

	now := s.now()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if upsert {
		if err := tx.UpsertCoachConfig(ctx, cfg); err != nil {
			return nil, fmt.Errorf("%s: upsert config: %w", op, err)
		}
	}

	var deleteFrom *time.Time
	if s.cfg.DeleteScope == DeleteFuture {
		deleteFrom = &now
	}

	deleted, err := tx.DeleteAvailableSlots(ctx, cfg.CoachID, deleteFrom)
	if err != nil {
		return nil, fmt.Errorf("%s: delete available: %w", op, err)
	}

	// whatever survived the delete blocks new candidates: booked slots and, with
	// DeleteFuture, available slots that already started. A slot that started up
	// to one maximum session ago may still be running.
	occupiedFrom := now.Add(-time.Duration(models.MaxSessionMinutes) * time.Minute)
	occupied, err := tx.ListOccupiedIntervals(ctx, cfg.CoachID, occupiedFrom)
	if err != nil {
		return nil, fmt.Errorf("%s: list occupied: %w", op, err)
	}

	horizonStart := schedule.StartOfDay(now, s.cfg.Location)
	exp := schedule.Expand(cfg.WeeklyTemplate, cfg.SessionDurationMinutes, horizonStart, s.cfg.HorizonDays, now)

	accepted, skipped := schedule.Filter(exp.Intervals, occupied)

	generated, err := tx.BulkInsertAvailable(ctx, cfg.CoachID, accepted)
	if err != nil {
		return nil, fmt.Errorf("%s: insert slots: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	res := &api.RegenerationResult{
		RunID:     runID,
		Generated: generated,
		Skipped:   skipped,
		Deleted:   deleted,
	}
	for _, e := range exp.Errors {
		res.InvalidTimes = append(res.InvalidTimes, e.Error())
	}

	log.Info("slots regenerated",
		slog.Int64("generated", generated),
		slog.Int("skipped", skipped),
		slog.Int64("deleted", deleted),
		slog.Int("invalid_times", len(res.InvalidTimes)),
	)

	return res, nil
}

// ListCoachBookings returns confirmed bookings starting on date, or every
// confirmed booking when date is empty.
func (s *Service) ListCoachBookings(ctx context.Context, principal, date string) ([]api.Booking, error) {
	const op = "service.ListCoachBookings"

	if !s.isCoach(principal) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	if date == "" {
		bookings, err := s.store.ListAllConfirmedForCoach(ctx, s.cfg.CoachID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		return toAPIBookings(bookings), nil
	}

	day, err := s.parseDate(date, "date")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	bookings, err := s.store.ListConfirmedForCoach(ctx, s.cfg.CoachID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toAPIBookings(bookings), nil
}
