// Package retry provides fixed-schedule retry logic for protocol operations.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Schedule is a fixed ordered sequence of delays. Each failure at a given
// stage consumes the next delay; running past the end means the stage has
// exhausted its budget.
type Schedule []time.Duration

// DefaultSchedule returns the standard upload retry schedule: one immediate
// retry followed by increasingly long waits.
func DefaultSchedule() Schedule {
	return Schedule{
		0,
		1 * time.Second,
		2 * time.Second,
		5 * time.Second,
		5 * time.Second,
		10 * time.Second,
		30 * time.Second,
	}
}

// ErrorClassifier determines if an error is retryable.
type ErrorClassifier func(error) bool

// IsRetryable is a default error classifier. Context cancellation and
// deadline errors are never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Budget tracks consumption of a Schedule across loop iterations. The zero
// value is not usable; construct with NewBudget.
type Budget struct {
	sched Schedule
	next  int
}

// NewBudget returns a fresh budget over the given schedule.
func NewBudget(sched Schedule) *Budget {
	return &Budget{sched: sched}
}

// Next consumes one attempt and returns the delay to wait before retrying.
// The second return value is false when the schedule is exhausted.
func (b *Budget) Next() (time.Duration, bool) {
	if b.next >= len(b.sched) {
		return 0, false
	}
	d := b.sched[b.next]
	b.next++
	return d, true
}

// Reset restores the full schedule, typically after the guarded stage
// succeeds.
func (b *Budget) Reset() {
	b.next = 0
}

// Remaining reports how many attempts are left.
func (b *Budget) Remaining() int {
	return len(b.sched) - b.next
}

// ExhaustedError indicates an operation failed after consuming the full
// retry schedule.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry schedule exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Do executes fn, retrying per the schedule. The delay at position i is
// waited before attempt i; a zero delay means an immediate attempt. The
// classifier decides whether an error is worth retrying; a nil classifier
// uses IsRetryable. Returns an *ExhaustedError once the schedule runs out.
func Do(ctx context.Context, sched Schedule, classifier ErrorClassifier, fn func(context.Context) error) error {
	if classifier == nil {
		classifier = IsRetryable
	}

	var lastErr error
	for _, delay := range sched {
		if delay > 0 {
			if err := Sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !classifier(err) {
			return err
		}
	}

	return &ExhaustedError{Attempts: len(sched), Err: lastErr}
}

// Sleep waits for d or until the context is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
