// Package resilience guards the service's backends: a circuit breaker in
// front of the Redis result cache and backoff retries for Postgres writes
// and startup connections.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Do while the circuit rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the phase of a circuit breaker. The values are exported as the
// circuit_breaker_state gauge.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig tunes a CircuitBreaker. Zero fields take defaults.
type BreakerConfig struct {
	// Failures is the run of consecutive failures that opens the circuit.
	Failures int
	// Cooldown is how long an open circuit waits before letting one probe
	// call through.
	Cooldown time.Duration
	// IsFailure decides which errors count against the backend. Nil counts
	// every error except a cancelled caller.
	IsFailure func(err error) bool
	// OnStateChange is called with the breaker locked.
	OnStateChange func(name string, from, to State)
	Logger        *slog.Logger
}

// BreakerSnapshot is a point-in-time view of a breaker for status endpoints.
type BreakerSnapshot struct {
	State    State     `json:"-"`
	Failures int       `json:"consecutive_failures"`
	Trips    int64     `json:"trips"`
	OpenedAt time.Time `json:"opened_at,omitzero"`
}

// CircuitBreaker stops calling a backend after repeated failures and lets a
// single probe through once the cooldown has passed.
type CircuitBreaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	trips    int64
	openedAt time.Time
	probing  bool
}

func countsAgainstBackend(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// NewCircuitBreaker returns a closed breaker named name.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	if cfg.Failures <= 0 {
		cfg.Failures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = countsAgainstBackend
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "circuit-breaker")
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: logger.With("breaker", name),
		now:    time.Now,
	}
}

// Do runs fn if the circuit admits the call and records its outcome. A
// rejected call returns an error wrapping ErrCircuitOpen without running fn.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.Cooldown - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s, retry in %v", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.transition(StateHalfOpen)
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			return fmt.Errorf("%w: %s, probe in flight", ErrCircuitOpen, cb.name)
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	probe := cb.state == StateHalfOpen
	cb.probing = false

	switch {
	case err == nil:
		cb.failures = 0
		if probe {
			cb.transition(StateClosed)
		}
	case cb.cfg.IsFailure(err):
		cb.failures++
		if probe || cb.failures >= cb.cfg.Failures {
			cb.trip(err)
		}
	}
}

func (cb *CircuitBreaker) trip(cause error) {
	cb.openedAt = cb.now()
	cb.trips++
	cb.transition(StateOpen)
	cb.logger.Warn("circuit opened",
		"consecutive_failures", cb.failures,
		"cooldown", cb.cfg.Cooldown,
		"error", cause,
	)
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if to != StateOpen {
		cb.logger.Info("circuit state changed", "from", from.String(), "to", to.String())
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}

// State returns the current phase.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot returns the breaker's counters.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		State:    cb.state,
		Failures: cb.failures,
		Trips:    cb.trips,
		OpenedAt: cb.openedAt,
	}
}

// Reset closes the circuit and clears the failure run.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.probing = false
	cb.transition(StateClosed)
}
