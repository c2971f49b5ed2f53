package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream failed")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

func newTestBreaker(settings Settings) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	b := New("test", settings)
	b.now = clock.Now
	return b, clock
}

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name     string
		calls    []bool // true = success
		expected State
	}{
		{name: "stays closed on successes", calls: []bool{true, true, true}, expected: StateClosed},
		{name: "opens at threshold", calls: []bool{false, false, false}, expected: StateOpen},
		{name: "success resets the run", calls: []bool{false, false, true, false, false}, expected: StateClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBreaker(Settings{FailureThreshold: 3, OpenTimeout: time.Minute})
			for _, ok := range tt.calls {
				if ok {
					_ = b.Do(succeed)
				} else {
					_ = b.Do(fail)
				}
			}
			assert.Equal(t, tt.expected, b.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	b, _ := newTestBreaker(Settings{FailureThreshold: 1, OpenTimeout: time.Minute})

	assert.ErrorIs(t, b.Do(fail), errUpstream)

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	var transitions []string
	b, clock := newTestBreaker(Settings{
		FailureThreshold: 1,
		OpenTimeout:      time.Second,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	require.Error(t, b.Do(fail))
	clock.Advance(time.Second)
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Do(succeed))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Settings{FailureThreshold: 1, OpenTimeout: time.Second})

	require.Error(t, b.Do(fail))
	clock.Advance(time.Second)

	require.ErrorIs(t, b.Do(fail), errUpstream)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerTrialBudget(t *testing.T) {
	b, clock := newTestBreaker(Settings{FailureThreshold: 1, OpenTimeout: time.Second})
	require.Error(t, b.Do(fail))
	clock.Advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(func() error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	assert.ErrorIs(t, b.Do(succeed), ErrTooManyTrials)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	b, _ := newTestBreaker(Settings{FailureThreshold: 1, OpenTimeout: time.Minute})

	assert.Panics(t, func() {
		_ = b.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, b.State())
}

func TestGroup(t *testing.T) {
	g := NewGroup(Settings{FailureThreshold: 1, OpenTimeout: time.Minute})

	require.Error(t, g.Get("bad.example").Do(fail))
	require.NoError(t, g.Get("good.example").Do(succeed))

	assert.Same(t, g.Get("bad.example"), g.Get("bad.example"))
	assert.Equal(t, map[string]State{
		"bad.example":  StateOpen,
		"good.example": StateClosed,
	}, g.States())
}
