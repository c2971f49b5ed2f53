package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrCircuitOpen rejects calls while a breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyTrials rejects calls beyond the half-open trial budget.
	ErrTooManyTrials = errors.New("circuit breaker is half-open")
)

// State is the position of a breaker.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures a breaker. Zero values fall back to the defaults below.
type Settings struct {
	FailureThreshold uint32        // consecutive failures that trip the breaker (5)
	OpenTimeout      time.Duration // time spent open before half-open (30s)
	MaxTrials        uint32        // concurrent calls allowed while half-open (1)

	// OnStateChange, when set, is called with the breaker lock held.
	OnStateChange func(name string, from, to State)
}

func (s Settings) withDefaults() Settings {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.OpenTimeout == 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.MaxTrials == 0 {
		s.MaxTrials = 1
	}
	return s
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	name     string
	settings Settings
	now      func() time.Time

	mu       sync.Mutex
	state    State
	failures uint32
	trials   uint32
	openedAt time.Time
}

// New creates a closed breaker.
func New(name string, settings Settings) *Breaker {
	return &Breaker{
		name:     name,
		settings: settings.withDefaults(),
		now:      time.Now,
	}
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, moving an expired open breaker to half-open.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current()
}

// Do runs fn if the breaker admits it and records the outcome.
// A panic in fn counts as a failure and is re-raised.
func (b *Breaker) Do(fn func() error) (err error) {
	if err := b.admit(); err != nil {
		return err
	}

	ok := false
	defer func() {
		b.record(ok)
	}()

	err = fn()
	ok = err == nil
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.current() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.trials >= b.settings.MaxTrials {
			return ErrTooManyTrials
		}
		b.trials++
	}
	return nil
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.current()
	if state == StateHalfOpen && b.trials > 0 {
		b.trials--
	}

	switch {
	case success && state == StateHalfOpen:
		b.transition(StateClosed)
	case success:
		b.failures = 0
	case state == StateHalfOpen:
		b.transition(StateOpen)
	case state == StateClosed:
		b.failures++
		if b.failures >= b.settings.FailureThreshold {
			b.transition(StateOpen)
		}
	}
}

func (b *Breaker) current() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.settings.OpenTimeout {
		b.transition(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.failures = 0
	b.trials = 0
	if to == StateOpen {
		b.openedAt = b.now()
	}
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
