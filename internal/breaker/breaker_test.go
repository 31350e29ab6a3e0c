package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock lets tests move time forward
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New(threshold, cooldown)
	b.now = clock.now
	return b, clock
}

// TestBreakerOpensAfterThreshold verifies the closed to open transition
func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	assert.Equal(t, Closed, b.State())
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, Open, b.State())
	assert.False(t, b.Allow())
	assert.Equal(t, 3, b.FailureCount())
}

// TestBreakerHalfOpenProbe verifies the cooldown and probe outcomes
func TestBreakerHalfOpenProbe(t *testing.T) {
	b, clock := newTestBreaker(1, time.Minute)
	b.RecordFailure()
	assert.Equal(t, Open, b.State())

	clock.t = clock.t.Add(time.Minute)
	assert.Equal(t, HalfOpen, b.State())
	assert.True(t, b.Allow())

	// A failed probe reopens immediately
	b.RecordFailure()
	assert.Equal(t, Open, b.State())

	clock.t = clock.t.Add(time.Minute)
	assert.True(t, b.Allow())
	b.RecordSuccess()
	assert.Equal(t, Closed, b.State())
	assert.Equal(t, 0, b.FailureCount())
}

// TestBreakerDo verifies outcomes recorded by Do
func TestBreakerDo(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)
	boom := errors.New("boom")
	ctx := context.Background()

	assert.ErrorIs(t, b.Do(ctx, func(context.Context) error { return boom }), boom)
	assert.Equal(t, 1, b.FailureCount())

	// Cancellation does not count
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	err := b.Do(cctx, func(c context.Context) error { return c.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, b.FailureCount())

	assert.ErrorIs(t, b.Do(ctx, func(context.Context) error { return boom }), boom)
	assert.ErrorIs(t, b.Do(ctx, func(context.Context) error { return nil }), ErrOpen)

	assert.Equal(t, "open", b.State().String())
}

// TestBreakerDefaults verifies non-positive arguments fall back to defaults
func TestBreakerDefaults(t *testing.T) {
	b := New(0, 0)
	assert.Equal(t, DefaultThreshold, b.threshold)
	assert.Equal(t, DefaultCooldown, b.cooldown)
}
