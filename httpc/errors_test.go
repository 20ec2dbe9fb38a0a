package httpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
	"testing"
	"time"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsNetworkLoss(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"net timeout", timeoutError{}, true},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"host unreachable", syscall.EHOSTUNREACH, true},
		{"broken pipe", syscall.EPIPE, true},
		{"url error wrapping reset", &url.Error{Op: "Patch", URL: "http://x", Err: syscall.ECONNRESET}, true},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "x"}, true},
		{"http 500 is not network loss", &HTTPError{StatusCode: 500}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNetworkLoss(tt.err); got != tt.want {
				t.Errorf("IsNetworkLoss(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestHostLimiterSharesBucketPerHost(t *testing.T) {
	hl := NewHostLimiter(RateLimitConfig{RequestsPerSecond: 1000, Burst: 1})

	ctx := context.Background()
	if err := hl.Wait(ctx, "http://a.example/x"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	// Different host gets its own bucket and should not block.
	done := make(chan struct{})
	go func() {
		hl.Wait(ctx, "http://b.example/y")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("second host blocked on first host's bucket")
	}
}
