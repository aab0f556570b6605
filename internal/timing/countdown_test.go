package timing

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/proctor/internal/clock"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestCountdownTicksAndExpiresOnce(t *testing.T) {
	fake := clock.Fake(epoch)
	var ticks []time.Duration
	var expired atomic.Int32

	c := NewCountdown(fake, 3*time.Second, func(remaining time.Duration) {
		ticks = append(ticks, remaining)
	}, func() {
		expired.Add(1)
	})
	c.Start()

	fake.Advance(2 * time.Second)
	require.Equal(t, time.Second, c.Remaining())
	require.Zero(t, expired.Load())

	fake.Advance(10 * time.Second)
	require.Equal(t, []time.Duration{2 * time.Second, time.Second, 0}, ticks)
	require.Equal(t, int32(1), expired.Load())
	require.True(t, c.Expired())
	require.Zero(t, fake.PendingCount())
}

func TestCountdownExpiresExactlyAtDeadline(t *testing.T) {
	fake := clock.Fake(epoch)
	var expiredAt time.Time
	c := NewCountdown(fake, 5*time.Second, nil, func() { expiredAt = fake.Now() })
	c.Start()

	fake.Advance(4*time.Second + 999*time.Millisecond)
	require.True(t, expiredAt.IsZero())

	fake.Advance(time.Millisecond)
	require.Equal(t, epoch.Add(5*time.Second), expiredAt)
}

func TestCountdownStopPreventsExpiry(t *testing.T) {
	fake := clock.Fake(epoch)
	var expired atomic.Int32
	c := NewCountdown(fake, 2*time.Second, nil, func() { expired.Add(1) })
	c.Start()

	fake.Advance(time.Second)
	c.Stop()
	c.Stop()
	fake.Advance(5 * time.Second)

	require.Zero(t, expired.Load())
	require.Equal(t, time.Second, c.Remaining())
	require.False(t, c.Expired())
}

func TestCountdownStartIsIdempotent(t *testing.T) {
	fake := clock.Fake(epoch)
	var expired atomic.Int32
	c := NewCountdown(fake, time.Second, nil, func() { expired.Add(1) })
	c.Start()
	c.Start()
	require.Equal(t, 1, fake.PendingCount())

	fake.Advance(time.Second)
	c.Start()
	fake.Advance(time.Second)
	require.Equal(t, int32(1), expired.Load())
}

func TestCountdownFractionalTotal(t *testing.T) {
	fake := clock.Fake(epoch)
	var expired atomic.Int32
	c := NewCountdown(fake, 1500*time.Millisecond, nil, func() { expired.Add(1) })
	c.Start()

	fake.Advance(time.Second)
	require.Equal(t, 500*time.Millisecond, c.Remaining())
	fake.Advance(500 * time.Millisecond)
	require.Equal(t, int32(1), expired.Load())
}

func TestCountdownZeroTotalDoesNotFireInline(t *testing.T) {
	fake := clock.Fake(epoch)
	var expired atomic.Int32
	c := NewCountdown(fake, 0, nil, func() { expired.Add(1) })
	c.Start()
	require.Zero(t, expired.Load())

	fake.Advance(time.Millisecond)
	require.Equal(t, int32(1), expired.Load())
}
