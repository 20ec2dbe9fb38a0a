package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultScheduleLength(t *testing.T) {
	sched := DefaultSchedule()
	if len(sched) != 7 {
		t.Fatalf("schedule length = %d, want 7", len(sched))
	}
	if sched[0] != 0 {
		t.Errorf("first delay = %v, want immediate", sched[0])
	}
	if sched[len(sched)-1] != 30*time.Second {
		t.Errorf("last delay = %v, want 30s", sched[len(sched)-1])
	}
}

func TestBudgetConsumption(t *testing.T) {
	b := NewBudget(Schedule{0, time.Millisecond, 2 * time.Millisecond})

	var got []time.Duration
	for {
		d, ok := b.Next()
		if !ok {
			break
		}
		got = append(got, d)
	}

	want := []time.Duration{0, time.Millisecond, 2 * time.Millisecond}
	if len(got) != len(want) {
		t.Fatalf("consumed %d delays, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if _, ok := b.Next(); ok {
		t.Error("expected exhausted budget")
	}

	b.Reset()
	if b.Remaining() != 3 {
		t.Errorf("Remaining() after reset = %d, want 3", b.Remaining())
	}
}

func TestDoSucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Schedule{0, 0, 0}, nil, func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoExhaustion(t *testing.T) {
	wrapped := errors.New("boom")
	attempts := 0
	err := Do(context.Background(), Schedule{0, 0, 0}, nil, func(ctx context.Context) error {
		attempts++
		return wrapped
	})

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %v, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if !errors.Is(err, wrapped) {
		t.Error("exhausted error should unwrap to the last failure")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDoPermanentErrorStopsEarly(t *testing.T) {
	permanent := errors.New("permanent")
	attempts := 0
	classifier := func(err error) bool { return !errors.Is(err, permanent) }

	err := Do(context.Background(), Schedule{0, 0, 0}, classifier, func(ctx context.Context) error {
		attempts++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("error = %v, want permanent", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDoContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, Schedule{0, time.Minute}, nil, func(ctx context.Context) error {
		return errors.New("keep trying")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestSleepRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return promptly on cancellation")
	}
}
