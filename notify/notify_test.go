package notify

import (
	"errors"
	"log/slog"
	"testing"
)

func TestEscapeAppleScript(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{`say "hi"`, `say \"hi\"`},
		{`back\slash`, `back\\slash`},
		{`"quote" and \backslash`, `\"quote\" and \\backslash`},
		{"", ""},
	}
	for _, tt := range tests {
		got := escapeAppleScript(tt.input)
		if got != tt.want {
			t.Errorf("escapeAppleScript(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNotifySwallowsDeliveryFailure(t *testing.T) {
	calls := 0
	d := &Desktop{
		log: slog.Default(),
		send: func(title, message string) error {
			calls++
			return errors.New("delivery failed")
		},
	}

	d.Notify("Upload complete", "movie.mp4")
	if calls != 1 {
		t.Errorf("send calls = %d, want 1", calls)
	}
}

func TestNotifyWithoutPlatformSender(t *testing.T) {
	d := &Desktop{log: slog.Default()}
	d.Notify("Upload complete", "movie.mp4") // log-only, must not panic
}
