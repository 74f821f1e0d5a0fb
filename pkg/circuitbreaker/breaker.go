package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

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

type Config struct {
	FailureThreshold uint32
	SuccessThreshold uint32
	OpenTimeout      time.Duration
	Logger           *zap.Logger
}

type CircuitBreaker struct {
	name             string
	failureThreshold uint32
	successThreshold uint32
	openTimeout      time.Duration
	logger           *zap.Logger

	mu                   sync.Mutex
	state                State
	consecutiveFailures  uint32
	consecutiveSuccesses uint32
	openedAt             time.Time
}

func New(name string, cfg Config) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:             name,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		openTimeout:      cfg.OpenTimeout,
		logger:           cfg.Logger,
	}

	if cb.failureThreshold == 0 {
		cb.failureThreshold = 5
	}
	if cb.successThreshold == 0 {
		cb.successThreshold = 2
	}
	if cb.openTimeout == 0 {
		cb.openTimeout = 60 * time.Second
	}
	if cb.logger == nil {
		cb.logger = zap.NewNop()
	}

	return cb
}

func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	err := fn()
	cb.afterRequest(err == nil)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState(time.Now())
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.currentState(time.Now()) == StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentState(time.Now())

	if success {
		cb.consecutiveSuccesses++
		cb.consecutiveFailures = 0
		if state == StateHalfOpen && cb.consecutiveSuccesses >= cb.successThreshold {
			cb.setState(StateClosed)
		}
		return
	}

	cb.consecutiveFailures++
	cb.consecutiveSuccesses = 0
	if state == StateHalfOpen || cb.consecutiveFailures >= cb.failureThreshold {
		cb.setState(StateOpen)
		cb.openedAt = time.Now()
	}
}

// currentState transitions Open to HalfOpen once the open timeout has
// elapsed. Caller must hold mu.
func (cb *CircuitBreaker) currentState(now time.Time) State {
	if cb.state == StateOpen && now.Sub(cb.openedAt) >= cb.openTimeout {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(state State) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0

	cb.logger.Info("Circuit breaker state changed",
		zap.String("name", cb.name),
		zap.String("from", prev.String()),
		zap.String("to", state.String()),
	)
}
