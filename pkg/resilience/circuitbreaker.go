// Package resilience guards data service calls. It never retries: a failed
// call is reported to the caller, and a breaker that has seen repeated
// failures rejects calls until its cooldown elapses.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

var stateNames = [...]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrCircuitBreakerOpen is returned without calling fn while the breaker is
// open, and to every caller but the trial call while it is half-open.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a CircuitBreaker.
type BreakerConfig struct {
	// MaxFailures consecutive failures open the breaker. Default 5.
	MaxFailures int
	// Cooldown is how long the breaker stays open before it lets one
	// trial call through. Default 30s.
	Cooldown time.Duration
	// IsFailure decides which errors count. Nil counts every error.
	IsFailure func(error) bool
	// OnStateChange, if set, is called after every transition, outside the
	// breaker's lock.
	OnStateChange func(from, to State)
}

// CircuitBreaker trips after consecutive failures.
type CircuitBreaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openUntil time.Time
	probing   bool
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	cfg.MaxFailures = max(cfg.MaxFailures, 0)
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Execute calls fn unless the breaker rejects it. The error of fn is
// returned unchanged.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err != nil && (cb.cfg.IsFailure == nil || cb.cfg.IsFailure(err)))
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	from := cb.state
	switch {
	case cb.state == StateOpen && !cb.now().Before(cb.openUntil):
		cb.state = StateHalfOpen
		cb.probing = true
	case cb.state == StateOpen, cb.state == StateHalfOpen && cb.probing:
		cb.mu.Unlock()
		return ErrCircuitBreakerOpen
	case cb.state == StateHalfOpen:
		cb.probing = true
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return nil
}

func (cb *CircuitBreaker) after(failed bool) {
	cb.mu.Lock()
	from := cb.state
	cb.probing = false
	switch {
	case !failed:
		cb.state = StateClosed
		cb.failures = 0
	case from == StateHalfOpen:
		cb.trip()
	default:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.trip()
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// trip opens the breaker. cb.mu must be held.
func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.failures = 0
	cb.openUntil = cb.now().Add(cb.cfg.Cooldown)
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetFailures returns the consecutive failure count while closed.
func (cb *CircuitBreaker) GetFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the breaker.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state, cb.failures, cb.probing = StateClosed, 0, false
	cb.mu.Unlock()
	cb.notify(from, StateClosed)
}
