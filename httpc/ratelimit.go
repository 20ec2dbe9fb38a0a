package httpc

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-host request limiter.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate allowed per host.
	RequestsPerSecond float64

	// Burst is the number of requests that may be sent immediately.
	Burst int
}

// DefaultRateLimitConfig returns defaults that stay well under typical
// video CDN API limits while never throttling chunk transfers in practice.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		Burst:             10,
	}
}

// HostLimiter applies a token-bucket rate limit per destination host.
type HostLimiter struct {
	config   RateLimitConfig
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter creates a limiter with the given configuration.
func NewHostLimiter(cfg RateLimitConfig) *HostLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg = DefaultRateLimitConfig()
	}
	return &HostLimiter{
		config:   cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until the host's limiter permits another request, or the
// context is done.
func (hl *HostLimiter) Wait(ctx context.Context, urlStr string) error {
	return hl.limiterFor(extractHost(urlStr)).Wait(ctx)
}

func (hl *HostLimiter) limiterFor(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	lim, ok := hl.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(hl.config.RequestsPerSecond), hl.config.Burst)
		hl.limiters[host] = lim
	}
	return lim
}

// extractHost pulls the host out of a URL for limiter bucketing. Unparsable
// URLs share a single bucket.
func extractHost(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
