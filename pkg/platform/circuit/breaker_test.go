package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newAuditBreaker(clock *fakeClock, opts ...Option) *Breaker {
	base := []Option{WithFailureThreshold(2), WithCooldown(15 * time.Second), WithClock(clock.Now)}
	return New("audit-store", append(base, opts...)...)
}

func TestNewDefaults(t *testing.T) {
	b := New("audit-store")
	assert.Equal(t, "audit-store", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	ignored := New("audit-store", WithFailureThreshold(0), WithSuccessThreshold(-1), WithCooldown(0), WithClock(nil))
	assert.Equal(t, 5, ignored.failureThreshold)
	assert.Equal(t, 1, ignored.successThreshold)
	assert.Equal(t, 30*time.Second, ignored.cooldown)
	assert.NotNil(t, ignored.now)
}

func TestOpensOnConsecutiveFailures(t *testing.T) {
	clock := newFakeClock()
	b := newAuditBreaker(clock)

	fallback, change := b.RecordFailure()
	assert.False(t, fallback)
	assert.Equal(t, StateChange{}, change)

	b.RecordSuccess()
	fallback, _ = b.RecordFailure()
	assert.False(t, fallback, "a success in between restarts the count")

	fallback, change = b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	fallback, change = b.RecordFailure()
	assert.True(t, fallback)
	assert.False(t, change.Opened, "an open breaker reports no second transition")
}

func TestHalfOpenTrialUsesInjectedClock(t *testing.T) {
	tests := []struct {
		name       string
		trialOK    bool
		wantState  State
		wantChange StateChange
	}{
		{name: "successful trial closes", trialOK: true, wantState: StateClosed, wantChange: StateChange{Closed: true}},
		{name: "failed trial stays open", trialOK: false, wantState: StateOpen, wantChange: StateChange{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			b := newAuditBreaker(clock)
			b.RecordFailure()
			b.RecordFailure()
			require.True(t, b.IsOpen())

			clock.Advance(14 * time.Second)
			assert.False(t, b.Allow(), "still cooling down")

			clock.Advance(time.Second)
			require.True(t, b.Allow(), "one trial once the cooldown has passed")
			assert.False(t, b.Allow(), "only one trial per cooldown")

			var change StateChange
			if tt.trialOK {
				_, change = b.RecordSuccess()
			} else {
				_, change = b.RecordFailure()
			}
			assert.Equal(t, tt.wantChange, change)
			assert.Equal(t, tt.wantState, b.State())

			if tt.wantState == StateOpen {
				assert.False(t, b.Allow(), "the next trial waits a full cooldown from the last one")
				clock.Advance(15 * time.Second)
				assert.True(t, b.Allow())
			} else {
				assert.True(t, b.Allow())
				assert.True(t, b.Allow())
			}
		})
	}
}

func TestSuccessThresholdSpansSeveralTrials(t *testing.T) {
	clock := newFakeClock()
	b := newAuditBreaker(clock, WithSuccessThreshold(2))
	b.RecordFailure()
	b.RecordFailure()

	clock.Advance(15 * time.Second)
	require.True(t, b.Allow())
	primary, change := b.RecordSuccess()
	assert.False(t, primary)
	assert.Equal(t, StateChange{}, change)
	assert.False(t, b.Allow(), "half-open between trials")

	clock.Advance(15 * time.Second)
	require.True(t, b.Allow())
	b.RecordFailure()

	clock.Advance(15 * time.Second)
	require.True(t, b.Allow())
	primary, _ = b.RecordSuccess()
	assert.False(t, primary, "the failed trial reset the success streak")

	clock.Advance(15 * time.Second)
	require.True(t, b.Allow())
	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
}

func TestResetClosesImmediately(t *testing.T) {
	clock := newFakeClock()
	b := newAuditBreaker(clock)
	b.RecordFailure()
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow(), "no cooldown after a manual reset")

	fallback, _ := b.RecordFailure()
	assert.False(t, fallback, "failure count starts over")
}

func TestConcurrentAllowAdmitsOneTrial(t *testing.T) {
	clock := newFakeClock()
	b := newAuditBreaker(clock)
	b.RecordFailure()
	b.RecordFailure()
	clock.Advance(15 * time.Second)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, admitted)
}
