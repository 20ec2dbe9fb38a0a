package httpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"
)

// HTTPError indicates an HTTP error response.
type HTTPError struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Body is the response body.
	Body []byte
}

// Error returns a string representation of the HTTP error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d", e.StatusCode)
}

// IsNetworkLoss reports whether err belongs to the network-loss class:
// the connection dropped, the host is unreachable, or the request timed
// out. These are handled by pausing the transfer rather than burning the
// retry budget, since the link itself is in doubt.
func IsNetworkLoss(err error) bool {
	if err == nil {
		return false
	}

	// Deliberate cancellation is not a network condition.
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.ENETDOWN):
		return true
	}

	// Truncated responses from a dying connection.
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return IsNetworkLoss(urlErr.Err)
	}

	return false
}
