package resilience

import (
	"errors"
	"sync"
	"time"

	"resumable-chat/backend/pkg/logger"
)

// ErrCircuitOpen is returned without calling fn while the breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

// State of a circuit breaker.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Config holds configuration for a circuit breaker
type Config struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	RetryTimeout     time.Duration
}

// DefaultConfig opens after five consecutive failures and probes again after 30s.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RetryTimeout:     30 * time.Second,
	}
}

// CircuitBreaker short-circuits calls to a dependency that keeps failing.
type CircuitBreaker struct {
	cfg Config
	log *logger.Logger
	now func() time.Time

	mu           sync.Mutex
	state        State
	failures     uint
	successes    uint
	nextAttempt  time.Time
	totalOpened  uint64
	totalFailure uint64
}

func NewCircuitBreaker(cfg Config, log *logger.Logger) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	return &CircuitBreaker{cfg: cfg, log: log, now: time.Now, state: StateClosed}
}

// Execute runs fn unless the breaker is open. Failures of fn count towards
// opening the breaker; ErrCircuitOpen is returned while it is open.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.nextAttempt) {
			return false
		}
		cb.state = StateHalfOpen
		cb.successes = 0
		cb.log.Info("circuit breaker half-open", "name", cb.cfg.Name)
		return true
	case StateHalfOpen:
		return cb.successes < cb.cfg.SuccessThreshold
	default:
		return true
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.totalFailure++
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
			cb.open()
		}
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.state = StateClosed
			cb.failures = 0
			cb.log.Info("circuit breaker closed", "name", cb.cfg.Name)
		}
	default:
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.totalOpened++
	cb.nextAttempt = cb.now().Add(cb.cfg.RetryTimeout)
	cb.log.Warn("circuit breaker opened",
		"name", cb.cfg.Name,
		"failures", cb.failures,
		"next_attempt", cb.nextAttempt.Format(time.RFC3339),
	)
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Metrics reports counters for the health endpoint.
func (cb *CircuitBreaker) Metrics() map[string]any {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return map[string]any{
		"name":           cb.cfg.Name,
		"state":          string(cb.state),
		"total_failures": cb.totalFailure,
		"times_opened":   cb.totalOpened,
	}
}
