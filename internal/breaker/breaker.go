// Package breaker stops hammering a data source that keeps failing.
// After Threshold consecutive failures the breaker opens and calls fail
// fast with ErrOpen until Cooldown has passed; then one probe is let through.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultThreshold is the number of consecutive failures before the breaker opens.
const DefaultThreshold = 3

// DefaultCooldown is how long the breaker stays open before a probe is allowed.
const DefaultCooldown = 30 * time.Second

// ErrOpen is returned by Do while the breaker is open.
var ErrOpen = errors.New("circuit breaker open: data source keeps failing")

// State represents the state of a breaker.
type State int

const (
	// Closed is the normal state - requests are allowed.
	Closed State = iota
	// Open means the source is failing - requests are blocked.
	Open
	// HalfOpen means the cooldown expired - one probe request is allowed.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker implements the circuit breaker pattern for one data source.
type Breaker struct {
	mu           sync.Mutex
	threshold    int
	cooldown     time.Duration
	failureCount int
	state        State
	openedAt     time.Time
	now          func() time.Time
}

// New creates a Breaker. Non-positive arguments select the defaults.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		state:     Closed,
		now:       time.Now,
	}
}

// Allow reports whether a request may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if b.now().Sub(b.openedAt) >= b.cooldown {
			b.state = HalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess closes the breaker and clears the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.state = Closed
}

// RecordFailure counts a failure. A failed probe reopens the breaker at once.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	if b.state == HalfOpen || b.failureCount >= b.threshold {
		b.state = Open
		b.openedAt = b.now()
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && b.now().Sub(b.openedAt) >= b.cooldown {
		b.state = HalfOpen
	}
	return b.state
}

// FailureCount returns the current consecutive failure count.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureCount
}

// Do runs fn when the breaker allows it and records the outcome.
// Cancellation by the caller is neither a success nor a failure.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.Allow() {
		return ErrOpen
	}
	err := fn(ctx)
	switch {
	case err == nil:
		b.RecordSuccess()
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
	default:
		b.RecordFailure()
	}
	return err
}
