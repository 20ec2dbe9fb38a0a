// Package power suppresses system idle-sleep while transfers are ongoing.
// On darwin this shells out to caffeinate; elsewhere it is a no-op.
package power

import (
	"log/slog"
	"os/exec"
	"runtime"
	"sync"
)

// Guard holds an idle-sleep assertion. Acquire and Release are idempotent;
// only the first Acquire and the matching Release do anything.
type Guard struct {
	mu   sync.Mutex
	held bool
	stop func()

	start func() (func(), error)
	log   *slog.Logger
}

// New creates a guard for the current platform.
func New(log *slog.Logger) *Guard {
	if log == nil {
		log = slog.Default()
	}
	return &Guard{start: platformStart, log: log}
}

// Acquire asserts the no-idle-sleep state.
func (g *Guard) Acquire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return
	}
	stop, err := g.start()
	if err != nil {
		g.log.Warn("idle-sleep suppression unavailable", "err", err)
		stop = func() {}
	}
	g.stop = stop
	g.held = true
	g.log.Debug("idle-sleep suppression acquired")
}

// Release drops the assertion.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.held {
		return
	}
	g.stop()
	g.stop = nil
	g.held = false
	g.log.Debug("idle-sleep suppression released")
}

// platformStart begins suppression and returns a stop function.
func platformStart() (func(), error) {
	if runtime.GOOS != "darwin" {
		return func() {}, nil
	}

	// -i prevents idle sleep for as long as the process lives.
	cmd := exec.Command("caffeinate", "-i")
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go cmd.Wait()
	return func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}, nil
}
