package service

import (
	"context"
	"fmt"
	"log/slog"

	"coach-service/api"
	"coach-service/internal/models"
	"coach-service/internal/notify"
	"coach-service/internal/schedule"
	"coach-service/pkg/response"
)

// CreateBooking claims the slot for principal and records a confirmed booking.
// A slot that is not available, already started or missing yields
// response.ErrSlotNotAvailable.
func (s *Service) CreateBooking(ctx context.Context, principal, slotID string) (*api.Booking, error) {
	const op = "service.CreateBooking"

	if principal == "" {
		return nil, fmt.Errorf("%s: %w", op, response.ErrUnauthorized)
	}

	id, err := parseID(slotID, "slotId")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	slot, err := tx.ClaimSlot(ctx, id, principal, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	booking := &models.Booking{
		UserID:    principal,
		CoachID:   slot.CoachID,
		SlotID:    &slot.ID,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		Status:    models.BookingConfirmed,
		CreatedAt: now,
	}

	booking.ID, err = tx.CreateBooking(ctx, booking)
	if err != nil {
		return nil, fmt.Errorf("%s: create booking: %w", op, err)
	}

	if err := tx.LinkBooking(ctx, slot.ID, booking.ID); err != nil {
		return nil, fmt.Errorf("%s: link booking: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	s.log.Info("booking created",
		slog.Int64("booking_id", booking.ID),
		slog.Int64("slot_id", slot.ID),
		slog.String("user_id", principal),
	)

	s.dispatch(notify.BookingConfirmed(booking, s.cfg.Location)...)

	out := toAPIBooking(booking)

	return &out, nil
}

// CancelBooking cancels a confirmed booking and frees its slot. The owner
// cancels as the user even when they are also the coach. Cancelling an
// already cancelled booking succeeds without side effects.
func (s *Service) CancelBooking(ctx context.Context, principal, bookingID string) (*api.CancelResult, error) {
	const op = "service.CancelBooking"

	if principal == "" {
		return nil, fmt.Errorf("%s: %w", op, response.ErrUnauthorized)
	}

	id, err := parseID(bookingID, "bookingId")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	existing, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	isOwner := principal == existing.UserID
	if !isOwner && !s.isCoach(principal) && principal != existing.CoachID {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	status := models.BookingCancelledByCoach
	if isOwner {
		status = models.BookingCancelledByUser
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	changed, err := tx.CancelBooking(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	current, err := tx.FindBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !changed {
		return &api.CancelResult{Booking: toAPIBooking(current), AlreadyCancelled: true}, nil
	}

	if current.SlotID != nil {
		if err := tx.ReleaseSlot(ctx, *current.SlotID); err != nil {
			return nil, fmt.Errorf("%s: release slot: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	s.log.Info("booking cancelled",
		slog.Int64("booking_id", id),
		slog.String("status", string(status)),
		slog.String("by", principal),
	)

	s.dispatch(notify.BookingCancelled(current, status, s.cfg.Location)...)

	return &api.CancelResult{Booking: toAPIBooking(current)}, nil
}

// GetBooking returns a booking to its owner or to the coach.
func (s *Service) GetBooking(ctx context.Context, principal, bookingID string) (*api.Booking, error) {
	const op = "service.GetBooking"

	if principal == "" {
		return nil, fmt.Errorf("%s: %w", op, response.ErrUnauthorized)
	}

	id, err := parseID(bookingID, "bookingId")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if principal != b.UserID && principal != b.CoachID && !s.isCoach(principal) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrForbidden)
	}

	out := toAPIBooking(b)

	return &out, nil
}

// ListMyUpcomingBookings returns the principal's confirmed bookings from the
// start of today in the coach's zone.
func (s *Service) ListMyUpcomingBookings(ctx context.Context, principal string) ([]api.Booking, error) {
	const op = "service.ListMyUpcomingBookings"

	if principal == "" {
		return nil, fmt.Errorf("%s: %w", op, response.ErrUnauthorized)
	}

	from := schedule.StartOfDay(s.now(), s.cfg.Location)

	bookings, err := s.store.ListUpcomingConfirmedForUser(ctx, principal, from)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toAPIBookings(bookings), nil
}
