package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProactive_EnforcesWindowCap(t *testing.T) {
	limiter := NewProactive(0, Window{Length: 200 * time.Millisecond, Cap: 3})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Acquire(ctx))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "calls under the cap must not wait")

	// Fourth call must wait for the window to roll over.
	require.NoError(t, limiter.Acquire(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestProactive_DualWindows(t *testing.T) {
	// The tighter window binds first; the looser one caps the total.
	limiter := NewProactive(0,
		Window{Length: 100 * time.Millisecond, Cap: 2},
		Window{Length: time.Hour, Cap: 3},
	)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Acquire(ctx))
	}
	// Third call crossed the small window's cap, so it waited one rollover.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	// Hour window is now exhausted: status must show zero remaining.
	status := limiter.Status()
	assert.Equal(t, 0, status.Remaining)
	assert.Equal(t, 3, status.Limit)
}

func TestProactive_MinSpacing(t *testing.T) {
	limiter := NewProactive(50*time.Millisecond, Window{Length: time.Hour, Cap: 100})
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	start := time.Now()
	require.NoError(t, limiter.Acquire(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestReactive_WaitsUntilReset(t *testing.T) {
	limiter := NewReactive(10, time.Minute, 0)
	reset := time.Now().Add(150 * time.Millisecond)
	limiter.UpdateFromResponse(0, 10, reset)

	start := time.Now()
	require.NoError(t, limiter.Acquire(context.Background()))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 140*time.Millisecond, "must suspend until reset")
	assert.Less(t, elapsed, 500*time.Millisecond, "must not oversleep the reset")
}

func TestReactive_NoWaitWithQuota(t *testing.T) {
	limiter := NewReactive(10, time.Minute, 0)
	limiter.UpdateFromResponse(5, 10, time.Now().Add(time.Minute))

	start := time.Now()
	require.NoError(t, limiter.Acquire(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestReactive_DecrementsWithoutHeaders(t *testing.T) {
	// Before any server headers arrive, the limiter still burns down its
	// assumed quota locally.
	limiter := NewReactive(2, time.Hour, 0)
	ctx := context.Background()

	require.NoError(t, limiter.Acquire(ctx))
	require.NoError(t, limiter.Acquire(ctx))

	status := limiter.Status()
	assert.Equal(t, 0, status.Remaining)
	assert.Equal(t, 2, status.Limit)
}

func TestReactive_StatusSnapshot(t *testing.T) {
	limiter := NewReactive(300, 15*time.Minute, time.Second)
	reset := time.Now().Add(10 * time.Minute)
	limiter.UpdateFromResponse(42, 300, reset)

	status := limiter.Status()
	assert.Equal(t, 42, status.Remaining)
	assert.Equal(t, 300, status.Limit)
	assert.WithinDuration(t, reset, status.ResetTime, time.Second)
	assert.Equal(t, 15*time.Minute, status.WindowDuration)
}

func TestReactive_PartialHeaderUpdate(t *testing.T) {
	limiter := NewReactive(300, 15*time.Minute, 0)
	limiter.UpdateFromResponse(7, -1, time.Time{})

	status := limiter.Status()
	assert.Equal(t, 7, status.Remaining)
	assert.Equal(t, 300, status.Limit, "absent limit header leaves the seeded limit")
}

func TestAcquire_CancelAbandonsWait(t *testing.T) {
	limiter := NewProactive(0, Window{Length: time.Hour, Cap: 1})
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned wait must not have consumed a slot.
	status := limiter.Status()
	assert.Equal(t, 0, status.Remaining)
	assert.Equal(t, 1, status.Limit)
}

func TestStatus_DoesNotBlockDuringWait(t *testing.T) {
	limiter := NewProactive(0, Window{Length: 300 * time.Millisecond, Cap: 1})
	require.NoError(t, limiter.Acquire(context.Background()))

	done := make(chan struct{})
	go func() {
		_ = limiter.Acquire(context.Background())
		close(done)
	}()

	// Give the waiter time to park, then query status concurrently.
	time.Sleep(50 * time.Millisecond)
	statusDone := make(chan struct{})
	go func() {
		_ = limiter.Status()
		close(statusDone)
	}()

	select {
	case <-statusDone:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("status query blocked by an in-progress wait")
	}
	<-done
}
