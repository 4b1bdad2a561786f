package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reservo/internal/lifecycle"
	"reservo/internal/models"
)

func TestConcurrentBooking(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "concurrency.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, rt := seedRoomType(t, db, 1)
	now := date(2024, 1, 1)

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			b := newBooking(rt, date(2024, 2, 1), date(2024, 2, 2), 1, now)
			results <- db.CreateBookingWithLock(ctx, b, "customer")
		}()
	}

	wg.Wait()
	close(results)

	successCount, unavailable := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, ErrNotAvailable):
			unavailable++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successCount, "only one booking fits a single room")
	assert.Equal(t, numGoroutines-1, unavailable)

	got, err := db.GetOccupyingBookings(ctx, rt.ID, date(2024, 2, 1), date(2024, 2, 2))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

// A payment confirming a booking and a worker rejecting it must not both win.
func TestConcurrentPaymentAndAutoReject(t *testing.T) {
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "race.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, rt := seedRoomType(t, db, 1)
	created := date(2024, 1, 1)
	now := created.Add(25 * time.Hour)

	b := newBooking(rt, date(2024, 2, 1), date(2024, 2, 2), 1, created)
	require.NoError(t, db.CreateBookingWithLock(ctx, b, "customer"))

	apply := func(ev lifecycle.Event) TransitionFunc {
		return func(b *models.Booking) (string, error) {
			if ev == lifecycle.EventAutoReject && !lifecycle.AutoRejectDue(b, now.Add(-24*time.Hour)) {
				return "", ErrGuardFailed
			}
			c, err := lifecycle.Apply(b, ev, now)
			if err != nil {
				return "", err
			}
			return c.Action, nil
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, ev := range []lifecycle.Event{lifecycle.EventPaymentSucceeded, lifecycle.EventAutoReject} {
		wg.Add(1)
		go func(i int, ev lifecycle.Event) {
			defer wg.Done()
			_, errs[i] = db.TransitionBooking(ctx, b.ID, "x", apply(ev))
		}(i, ev)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	stored, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Contains(t, []string{models.StatusConfirmed, models.StatusCancelled}, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}
