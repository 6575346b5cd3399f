// Package storage holds the transactional contract shared by the slot and
// booking stores. Implementations live in the postgres and memory subpackages.
package storage

import (
	"context"
	"time"

	"coach-service/internal/models"
	"coach-service/internal/schedule"
)

// Tx is a unit of work over the slot and booking tables. Every method runs
// inside the same transaction; nothing is visible to other callers until Commit.
// Rollback after a successful Commit is a no-op.
type Tx interface {
	Commit() error
	Rollback() error

	UpsertCoachConfig(ctx context.Context, cfg *models.CoachConfig) error

	// ListOccupiedIntervals returns every slot of the coach, booked or available,
	// starting at or after from.
	ListOccupiedIntervals(ctx context.Context, coachID string, from time.Time) ([]schedule.Interval, error)
	// DeleteAvailableSlots removes available slots of the coach that no confirmed
	// booking references. A nil from deletes regardless of start time.
	DeleteAvailableSlots(ctx context.Context, coachID string, from *time.Time) (int64, error)
	BulkInsertAvailable(ctx context.Context, coachID string, intervals []schedule.Interval) (int64, error)

	// ClaimSlot moves an available slot starting after now to booked in one
	// conditional step. Any other state yields response.ErrSlotNotAvailable.
	ClaimSlot(ctx context.Context, slotID int64, userID string, now time.Time) (*models.Slot, error)
	ReleaseSlot(ctx context.Context, slotID int64) error
	LinkBooking(ctx context.Context, slotID, bookingID int64) error

	CreateBooking(ctx context.Context, b *models.Booking) (int64, error)
	FindBooking(ctx context.Context, id int64) (*models.Booking, error)
	// CancelBooking moves a confirmed booking to status. It reports false with a
	// nil error when the booking is already cancelled.
	CancelBooking(ctx context.Context, id int64, status models.BookingStatus) (bool, error)
}
