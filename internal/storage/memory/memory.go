// Package memory is an in-process store used for local runs and tests.
// Transactions are serialized and work on a private copy of the state that
// replaces the shared one on Commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"coach-service/internal/models"
	"coach-service/internal/schedule"
	"coach-service/internal/storage"
	"coach-service/pkg/response"
)

type state struct {
	configs       map[string]models.CoachConfig
	slots         map[int64]models.Slot
	bookings      map[int64]models.Booking
	nextSlotID    int64
	nextBookingID int64
}

func (st *state) clone() *state {
	c := &state{
		configs:       make(map[string]models.CoachConfig, len(st.configs)),
		slots:         make(map[int64]models.Slot, len(st.slots)),
		bookings:      make(map[int64]models.Booking, len(st.bookings)),
		nextSlotID:    st.nextSlotID,
		nextBookingID: st.nextBookingID,
	}
	for k, v := range st.configs {
		c.configs[k] = v
	}
	for k, v := range st.slots {
		c.slots[k] = v
	}
	for k, v := range st.bookings {
		c.bookings[k] = v
	}

	return c
}

type Storage struct {
	sem chan struct{}

	mu sync.RWMutex
	st *state
}

func New() *Storage {
	return &Storage{
		sem: make(chan struct{}, 1),
		st: &state{
			configs:  map[string]models.CoachConfig{},
			slots:    map[int64]models.Slot{},
			bookings: map[int64]models.Booking{},
		},
	}
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) BeginTx(ctx context.Context) (storage.Tx, error) {
	const op = "storage.memory.BeginTx"

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	}

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	return &Tx{s: s, st: work}, nil
}

func (s *Storage) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.st
}

type Tx struct {
	s    *Storage
	st   *state
	done bool
}

func (t *Tx) finish() {
	t.done = true
	<-t.s.sem
}

func (t *Tx) Commit() error {
	if t.done {
		return fmt.Errorf("storage.memory.Commit: transaction already finished")
	}

	t.s.mu.Lock()
	t.s.st = t.st
	t.s.mu.Unlock()

	t.finish()

	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}

	t.finish()

	return nil
}

func (t *Tx) UpsertCoachConfig(_ context.Context, cfg *models.CoachConfig) error {
	c := *cfg
	c.UpdatedAt = time.Now().UTC()
	t.st.configs[c.CoachID] = c

	return nil
}

func (t *Tx) ListOccupiedIntervals(_ context.Context, coachID string, from time.Time) ([]schedule.Interval, error) {
	var out []schedule.Interval
	for _, sl := range sortedSlots(t.st) {
		if sl.CoachID != coachID || sl.StartTime.Before(from) {
			continue
		}
		out = append(out, schedule.Interval{Start: sl.StartTime, End: sl.EndTime})
	}

	return out, nil
}

func (t *Tx) DeleteAvailableSlots(_ context.Context, coachID string, from *time.Time) (int64, error) {
	referenced := map[int64]bool{}
	for _, b := range t.st.bookings {
		if b.Status == models.BookingConfirmed && b.SlotID != nil {
			referenced[*b.SlotID] = true
		}
	}

	var deleted int64
	for id, sl := range t.st.slots {
		if sl.CoachID != coachID || sl.Status != models.SlotAvailable || referenced[id] {
			continue
		}
		if from != nil && sl.StartTime.Before(*from) {
			continue
		}

		delete(t.st.slots, id)
		deleted++

		// ON DELETE SET NULL
		for bid, b := range t.st.bookings {
			if b.SlotID != nil && *b.SlotID == id {
				b.SlotID = nil
				t.st.bookings[bid] = b
			}
		}
	}

	return deleted, nil
}

func (t *Tx) BulkInsertAvailable(_ context.Context, coachID string, intervals []schedule.Interval) (int64, error) {
	for _, iv := range intervals {
		t.st.nextSlotID++
		t.st.slots[t.st.nextSlotID] = models.Slot{
			ID:        t.st.nextSlotID,
			CoachID:   coachID,
			StartTime: iv.Start.UTC(),
			EndTime:   iv.End.UTC(),
			Status:    models.SlotAvailable,
		}
	}

	return int64(len(intervals)), nil
}

func (t *Tx) ClaimSlot(_ context.Context, slotID int64, userID string, now time.Time) (*models.Slot, error) {
	const op = "storage.memory.ClaimSlot"

	sl, ok := t.st.slots[slotID]
	if !ok || sl.Status != models.SlotAvailable || !sl.StartTime.After(now) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
	}

	uid := userID
	sl.Status = models.SlotBooked
	sl.UserID = &uid
	t.st.slots[slotID] = sl

	return &sl, nil
}

func (t *Tx) ReleaseSlot(_ context.Context, slotID int64) error {
	sl, ok := t.st.slots[slotID]
	if !ok {
		return nil
	}

	sl.Status = models.SlotAvailable
	sl.BookingID = nil
	sl.UserID = nil
	t.st.slots[slotID] = sl

	return nil
}

func (t *Tx) LinkBooking(_ context.Context, slotID, bookingID int64) error {
	const op = "storage.memory.LinkBooking"

	sl, ok := t.st.slots[slotID]
	if !ok {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	bid := bookingID
	sl.BookingID = &bid
	t.st.slots[slotID] = sl

	return nil
}

func (t *Tx) CreateBooking(_ context.Context, b *models.Booking) (int64, error) {
	const op = "storage.memory.CreateBooking"

	if b.SlotID != nil {
		for _, other := range t.st.bookings {
			if other.Status == models.BookingConfirmed && other.SlotID != nil && *other.SlotID == *b.SlotID {
				return 0, fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
			}
		}
	}

	t.st.nextBookingID++
	nb := *b
	nb.ID = t.st.nextBookingID
	nb.Status = models.BookingConfirmed
	nb.CreatedAt = time.Now().UTC()
	if nb.SlotID != nil {
		sid := *nb.SlotID
		nb.SlotID = &sid
	}
	t.st.bookings[nb.ID] = nb

	return nb.ID, nil
}

func (t *Tx) FindBooking(_ context.Context, id int64) (*models.Booking, error) {
	const op = "storage.memory.FindBooking"

	b, ok := t.st.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return &b, nil
}

func (t *Tx) CancelBooking(_ context.Context, id int64, status models.BookingStatus) (bool, error) {
	const op = "storage.memory.CancelBooking"

	b, ok := t.st.bookings[id]
	switch {
	case !ok:
		return false, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	case b.Status.IsCancelled():
		return false, nil
	case !b.Status.CanTransitionTo(status):
		return false, fmt.Errorf("%s: %w", op, response.ErrBookingNotActive)
	}

	b.Status = status
	t.st.bookings[id] = b

	return true, nil
}

// Reads outside a transaction.

func (s *Storage) GetCoachConfig(_ context.Context, coachID string) (*models.CoachConfig, error) {
	const op = "storage.memory.GetCoachConfig"

	cfg, ok := s.snapshot().configs[coachID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return &cfg, nil
}

func (s *Storage) GetSlot(_ context.Context, id int64) (*models.Slot, error) {
	const op = "storage.memory.GetSlot"

	sl, ok := s.snapshot().slots[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return &sl, nil
}

func (s *Storage) ListSlots(_ context.Context, coachID string, from, to time.Time, status *models.SlotStatus) ([]*models.Slot, error) {
	out := []*models.Slot{}
	for _, sl := range sortedSlots(s.snapshot()) {
		if sl.CoachID != coachID || sl.StartTime.Before(from) || !sl.StartTime.Before(to) {
			continue
		}
		if status != nil && sl.Status != *status {
			continue
		}
		out = append(out, sl)
	}

	return out, nil
}

func (s *Storage) GetBooking(_ context.Context, id int64) (*models.Booking, error) {
	const op = "storage.memory.GetBooking"

	b, ok := s.snapshot().bookings[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return &b, nil
}

func (s *Storage) ListUpcomingConfirmedForUser(_ context.Context, userID string, from time.Time) ([]*models.Booking, error) {
	return s.filterBookings(func(b models.Booking) bool {
		return b.UserID == userID && b.Status == models.BookingConfirmed && !b.StartTime.Before(from)
	}), nil
}

func (s *Storage) ListConfirmedForCoach(_ context.Context, coachID string, from, to time.Time) ([]*models.Booking, error) {
	return s.filterBookings(func(b models.Booking) bool {
		return b.CoachID == coachID && b.Status == models.BookingConfirmed &&
			!b.StartTime.Before(from) && b.StartTime.Before(to)
	}), nil
}

func (s *Storage) ListAllConfirmedForCoach(_ context.Context, coachID string) ([]*models.Booking, error) {
	return s.filterBookings(func(b models.Booking) bool {
		return b.CoachID == coachID && b.Status == models.BookingConfirmed
	}), nil
}

// ListDueReminders returns confirmed bookings without a sent reminder whose
// start lies in (from, to].
func (s *Storage) ListDueReminders(_ context.Context, from, to time.Time) ([]*models.Booking, error) {
	return s.filterBookings(func(b models.Booking) bool {
		return b.Status == models.BookingConfirmed && !b.IsReminderSent &&
			b.StartTime.After(from) && !b.StartTime.After(to)
	}), nil
}

func (s *Storage) MarkReminderSent(ctx context.Context, id int64) error {
	const op = "storage.memory.MarkReminderSent"

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	mt := tx.(*Tx)
	b, ok := mt.st.bookings[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}
	b.IsReminderSent = true
	mt.st.bookings[id] = b

	return tx.Commit()
}

func (s *Storage) filterBookings(keep func(models.Booking) bool) []*models.Booking {
	st := s.snapshot()

	out := []*models.Booking{}
	for _, b := range st.bookings {
		if keep(b) {
			b := b
			out = append(out, &b)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})

	return out
}

func sortedSlots(st *state) []*models.Slot {
	out := make([]*models.Slot, 0, len(st.slots))
	for _, sl := range st.slots {
		sl := sl
		out = append(out, &sl)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})

	return out
}
