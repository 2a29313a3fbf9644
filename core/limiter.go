package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrMaxIterations is returned once a run exceeds its model call budget.
var ErrMaxIterations = errors.New("exceeded max model calls")

// StepLimiter enforces a maximum number of allowed model calls per run.
type StepLimiter struct {
	max   int
	count int
	mu    sync.Mutex
}

// NewStepLimiter creates a new limiter with a max number of calls.
// If max == 0, unlimited calls are allowed.
func NewStepLimiter(max int) *StepLimiter {
	return &StepLimiter{max: max}
}

// Increment increases the call counter and returns an error wrapping
// ErrMaxIterations if the limit is exceeded.
func (l *StepLimiter) Increment() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.count++
	if l.max > 0 && l.count > l.max {
		return fmt.Errorf("%w: %d", ErrMaxIterations, l.max)
	}

	return nil
}

// Count returns the current number of calls made.
func (l *StepLimiter) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}

// Remaining returns how many calls are left before hitting the limit.
func (l *StepLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max == 0 {
		return -1 // unlimited
	}

	return l.max - l.count
}
