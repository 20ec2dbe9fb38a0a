// Package reachability turns periodic connectivity probes into a boolean
// online/offline signal.
package reachability

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"streamup/httpc"
)

// Config holds prober configuration.
type Config struct {
	// Target is the URL probed for connectivity. It should be the upload
	// endpoint's host so "online" means the host that matters.
	Target string

	// Interval between probes. Defaults to 15s.
	Interval time.Duration

	// Timeout bounds a single probe. Defaults to 5s.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 15 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

// Prober periodically checks the target and reports transitions. Any HTTP
// response counts as online; only transport-level failures count as
// offline.
type Prober struct {
	cfg      Config
	http     *httpc.Client
	onChange func(online bool)
	log      *slog.Logger

	online atomic.Bool
}

// New creates a prober. onChange fires on every transition, never for
// repeated observations of the same state.
func New(cfg Config, httpClient *httpc.Client, onChange func(online bool), log *slog.Logger) *Prober {
	if log == nil {
		log = slog.Default()
	}
	p := &Prober{
		cfg:      cfg.withDefaults(),
		http:     httpClient,
		onChange: onChange,
		log:      log,
	}
	p.online.Store(true)
	return p
}

// Online returns the last observed state. Before the first probe completes
// it reports true: the engine assumes connectivity until proven otherwise.
func (p *Prober) Online() bool {
	return p.online.Load()
}

// Run probes until ctx is cancelled. The first probe fires immediately.
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	_, err := p.http.Do(probeCtx, http.MethodHead, p.cfg.Target, nil, nil)
	online := err == nil || !httpc.IsNetworkLoss(err)
	if ctx.Err() != nil {
		return
	}

	if p.online.Swap(online) == online {
		return
	}
	if online {
		p.log.Info("connectivity regained", "target", p.cfg.Target)
	} else {
		p.log.Warn("connectivity lost", "target", p.cfg.Target, "err", err)
	}
	if p.onChange != nil {
		p.onChange(online)
	}
}
