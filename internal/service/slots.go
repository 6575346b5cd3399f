package service

import (
	"context"
	"fmt"

	"coach-service/api"
	"coach-service/internal/models"
)

// ListSlotsForDate returns every slot of the coach starting on the given local day.
func (s *Service) ListSlotsForDate(ctx context.Context, date string) ([]api.Slot, error) {
	const op = "service.ListSlotsForDate"

	day, err := s.parseDate(date, "date")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	slots, err := s.store.ListSlots(ctx, s.cfg.CoachID, day, day.AddDate(0, 0, 1), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toAPISlots(slots), nil
}

// ListAvailableSlotsForWeek returns available slots in the seven local days
// starting at startDate.
func (s *Service) ListAvailableSlotsForWeek(ctx context.Context, startDate string) ([]api.Slot, error) {
	const op = "service.ListAvailableSlotsForWeek"

	day, err := s.parseDate(startDate, "startDate")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	status := models.SlotAvailable

	slots, err := s.store.ListSlots(ctx, s.cfg.CoachID, day, day.AddDate(0, 0, 7), &status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return toAPISlots(slots), nil
}

func toAPISlots(ms []*models.Slot) []api.Slot {
	out := make([]api.Slot, 0, len(ms))
	for _, m := range ms {
		out = append(out, toAPISlot(m))
	}

	return out
}
