package breaker

import (
	"sync"
	"time"
)

// State indicates whether the breaker admits delivery attempts.
type State int

const (
	// StateClosed is the normal operating state: requests pass through and
	// failures are tallied.
	StateClosed State = iota

	// StateOpen rejects all requests until ResetTimeout has elapsed since the
	// last recorded failure.
	StateOpen
)

// String returns the string representation of a State.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings defines breaker thresholds and timeouts.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successes that zeroes
	// the failure tally.
	SuccessThreshold int
	// ResetTimeout is how long the breaker stays open after the last failure.
	ResetTimeout time.Duration
}

// DefaultSettings returns the standard breaker thresholds.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		ResetTimeout:     10 * time.Second,
	}
}

// Breaker is a two-state admission controller guarding a fragile downstream.
//
// Unlike a classical three-state breaker there is no half-open trial phase:
// once ResetTimeout elapses the first Allow call closes the breaker and every
// subsequent request is admitted.
type Breaker struct {
	mu          sync.Mutex
	settings    Settings
	failures    int
	successes   int
	state       State
	lastFailure time.Time
	now         func() time.Time
}

// Option customises breaker behaviour.
type Option func(*Breaker)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

// New creates a closed breaker with the given settings.
func New(settings Settings, opts ...Option) *Breaker {
	b := &Breaker{
		settings: settings,
		state:    StateClosed,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Allow reports whether a delivery attempt should proceed. When the breaker
// is open and ResetTimeout has elapsed since the last failure, the breaker
// closes again and the attempt is admitted.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.lastFailure) > b.settings.ResetTimeout {
			b.state = StateClosed
			return true
		}
		return false
	}
	return true
}

// RecordFailure tallies a failed delivery and opens the breaker once the
// failure threshold is reached.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.successes = 0
	b.lastFailure = b.now()

	if b.failures >= b.settings.FailureThreshold {
		b.state = StateOpen
	}
}

// RecordSuccess tallies a successful delivery and zeroes the failure count
// once the success threshold is reached. It never changes the state: the
// breaker is closed by construction whenever deliveries are succeeding.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes++
	if b.successes >= b.settings.SuccessThreshold {
		b.failures = 0
	}
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the current consecutive failure tally.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
