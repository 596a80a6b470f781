package utils

import "testing"

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewLogger("debug", format)
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", format, err)
		}
		l.With("tenant", "acme").Debug("hello %s", format)
	}
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Info("discarded %d", 1)
	if err := l.Sync(); err != nil {
		t.Errorf("Sync: %v", err)
	}
}
