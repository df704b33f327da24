package core

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError signals that the reasoning backend rejected a call for rate
// limiting. RetryAfter is the backend-suggested cooldown; zero means the
// caller should apply its own default.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("backend rate limited, retry after %s", e.RetryAfter)
	}
	return "backend rate limited"
}

// AsRateLimit extracts a RateLimitError from an error chain.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

var (
	// ErrQueueTimeout rejects a request that waited in the scheduler queue
	// beyond the maximum age without ever being dispatched.
	ErrQueueTimeout = errors.New("request expired in queue")

	// ErrSchedulerStopped rejects requests pending when the scheduler shuts down.
	ErrSchedulerStopped = errors.New("scheduler stopped")

	// ErrPathUnreachable marks a movement action whose destination has no path.
	ErrPathUnreachable = errors.New("no path to destination")

	// ErrReplanBudgetExhausted marks a task abandoned after the bounded replan
	// attempts ran out. Lessons are still distilled from partial progress.
	ErrReplanBudgetExhausted = errors.New("replan budget exhausted")

	// ErrEscalationBudgetExhausted marks a goal abandoned after its difficulty
	// tier's escalation budget ran out with no upgrade or runway available.
	ErrEscalationBudgetExhausted = errors.New("escalation budget exhausted")
)
