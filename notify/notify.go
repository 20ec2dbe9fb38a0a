// Package notify delivers user-facing desktop notifications. On darwin it
// shells out to osascript; elsewhere notifications land in the log only.
package notify

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// Desktop sends notifications for upload milestones. The zero value is not
// usable; construct with New.
type Desktop struct {
	log  *slog.Logger
	send func(title, message string) error
}

// New creates a notifier for the current platform.
func New(log *slog.Logger) *Desktop {
	if log == nil {
		log = slog.Default()
	}
	d := &Desktop{log: log}
	if runtime.GOOS == "darwin" {
		d.send = sendOSAScript
	}
	return d
}

// Notify shows a notification. Delivery failures are logged, never
// propagated; a missed notification must not disturb a transfer.
func (d *Desktop) Notify(title, message string) {
	d.log.Info("notify", "title", title, "message", message)
	if d.send == nil {
		return
	}
	if err := d.send(title, message); err != nil {
		d.log.Warn("notification delivery failed", "err", err)
	}
}

func sendOSAScript(title, message string) error {
	script := fmt.Sprintf(
		`display notification %q with title %q sound name "default"`,
		escapeAppleScript(message), escapeAppleScript(title),
	)
	cmd := exec.Command("osascript", "-e", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}
