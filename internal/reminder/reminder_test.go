package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coach-service/internal/lock"
	"coach-service/internal/models"
	"coach-service/internal/notify"
	"coach-service/internal/storage/memory"
)

type recorder struct {
	mu      sync.Mutex
	sent    []notify.Message
	failFor string
}

func (r *recorder) Notify(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.Recipient == r.failFor {
		return errors.New("subscription expired")
	}
	r.sent = append(r.sent, msg)

	return nil
}

func seed(t *testing.T, store *memory.Storage, userID string, start time.Time, cancel bool) int64 {
	t.Helper()

	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	id, err := tx.CreateBooking(ctx, &models.Booking{
		UserID:    userID,
		CoachID:   "coach",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
	})
	require.NoError(t, err)

	if cancel {
		_, err = tx.CancelBooking(ctx, id, models.BookingCancelledByUser)
		require.NoError(t, err)
	}

	require.NoError(t, tx.Commit())

	return id
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2030, time.March, 4, 8, 0, 0, 0, time.UTC)
	store := memory.New()

	due := seed(t, store, "due", now.Add(15*time.Minute), false)
	soon := seed(t, store, "soon", now.Add(5*time.Minute), false)
	seed(t, store, "later", now.Add(16*time.Minute), false)
	seed(t, store, "started", now, false)
	seed(t, store, "cancelled", now.Add(10*time.Minute), true)
	failing := seed(t, store, "flaky", now.Add(15*time.Minute), false)

	notes := &recorder{failFor: "flaky"}
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), store, lock.NewLocal(), notes, Config{})
	s.now = func() time.Time { return now }

	sent, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	require.Len(t, notes.sent, 2)
	assert.Equal(t, "soon", notes.sent[0].Recipient)
	assert.Equal(t, "due", notes.sent[1].Recipient)
	assert.Equal(t, notify.KindReminder, notes.sent[0].Kind)

	for _, id := range []int64{due, soon} {
		b, err := store.GetBooking(ctx, id)
		require.NoError(t, err)
		assert.True(t, b.IsReminderSent)
	}

	b, err := store.GetBooking(ctx, failing)
	require.NoError(t, err)
	assert.False(t, b.IsReminderSent)

	// one tick later the failed send is retried and nothing is sent twice
	notes.failFor = ""
	s.now = func() time.Time { return now.Add(time.Minute) }

	sent, err = s.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, notes.sent, 4)
	assert.Equal(t, 2, sent)
	assert.ElementsMatch(t, []string{"flaky", "later"}, []string{notes.sent[2].Recipient, notes.sent[3].Recipient})

	b, err = store.GetBooking(ctx, failing)
	require.NoError(t, err)
	assert.True(t, b.IsReminderSent)

	sent, err = s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}

func TestSweep_SkipsWhenLocked(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2030, time.March, 4, 8, 0, 0, 0, time.UTC)
	store := memory.New()
	seed(t, store, "due", now.Add(15*time.Minute), false)

	locker := lock.NewLocal()
	_, ok, err := locker.Lock(ctx, lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	notes := &recorder{}
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), store, locker, notes, Config{})
	s.now = func() time.Time { return now }

	sent, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Empty(t, notes.sent)
}

func TestStart_InvalidSpec(t *testing.T) {
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), memory.New(), lock.NewLocal(), &recorder{}, Config{Spec: "every now and then"})

	require.Error(t, s.Start())
}

func TestStartStop(t *testing.T) {
	s := New(slog.New(slog.NewTextHandler(io.Discard, nil)), memory.New(), lock.NewLocal(), &recorder{}, Config{})

	require.NoError(t, s.Start())
	s.Stop()
}
