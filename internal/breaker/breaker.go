// Package breaker guards calls to backing dependencies with a three-state
// circuit breaker. A run of consecutive failures trips the circuit; while
// open, calls fail fast without touching the dependency; after a cooldown a
// single probe decides whether to close again.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the circuit state, lower-case as reported in stats and health.
type State string

const (
	// StateClosed lets calls through and counts consecutive failures.
	StateClosed State = "closed"
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen State = "open"
	// StateHalfOpen admits exactly one probe call.
	StateHalfOpen State = "half_open"
)

// ErrOpen is returned when the circuit rejects a call without running it.
// Distinct from the dependency's own errors so callers can map it to a
// different failure class.
var ErrOpen = errors.New("circuit breaker open")

// Config holds the shared breaker tuning.
type Config struct {
	// Threshold is the number of consecutive failures that trips the
	// circuit.
	Threshold int
	// Cooldown is how long the circuit stays open before admitting a probe.
	Cooldown time.Duration
	// OnStateChange, when set, observes every transition.
	OnStateChange func(name string, from, to State)
}

// Snapshot is a point-in-time view of one breaker for stats and health.
type Snapshot struct {
	Name                string     `json:"name"`
	State               State      `json:"state"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastFailure         *time.Time `json:"last_failure,omitempty"`
	Trips               int64      `json:"trips"`
}

// Breaker is a single circuit guarding one named dependency.
type Breaker struct {
	name   string
	cfg    Config
	logger *zap.Logger

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	openedAt    time.Time
	trips       int64
	probing     bool
}

// New creates a closed breaker for the named dependency.
func New(name string, cfg Config, logger *zap.Logger) *Breaker {
	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger,
		state:  StateClosed,
	}
}

// Call runs fn under the circuit. It returns ErrOpen without running fn
// when the circuit is open or a probe is already in flight; otherwise it
// returns fn's error and records the outcome.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err)
	return err
}

// admit decides under one lock acquisition whether the call may proceed.
// The cooldown check and the half-open probe claim happen atomically, so
// only one caller wins the probe slot.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(b.openedAt) < b.cfg.Cooldown {
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return nil
	default: // StateHalfOpen
		if b.probing {
			return ErrOpen
		}
		b.probing = true
		return nil
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.lastFailure = time.Now()

		switch b.state {
		case StateHalfOpen:
			// Failed probe: back to open, cooldown restarts.
			b.probing = false
			b.openedAt = time.Now()
			b.trips++
			b.transition(StateOpen)
		case StateClosed:
			if b.failures >= b.cfg.Threshold {
				b.openedAt = time.Now()
				b.trips++
				b.transition(StateOpen)
				b.logger.Warn("circuit breaker tripped",
					zap.String("breaker", b.name),
					zap.Int("consecutive_failures", b.failures))
			}
		}
		return
	}

	if b.state == StateHalfOpen {
		b.probing = false
		b.transition(StateClosed)
		b.logger.Info("circuit breaker recovered", zap.String("breaker", b.name))
	}
	b.failures = 0
}

// transition must be called with the mutex held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot returns the breaker's introspection view.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := Snapshot{
		Name:                b.name,
		State:               b.state,
		ConsecutiveFailures: b.failures,
		Trips:               b.trips,
	}
	if !b.lastFailure.IsZero() {
		lf := b.lastFailure
		snap.LastFailure = &lf
	}
	return snap
}
