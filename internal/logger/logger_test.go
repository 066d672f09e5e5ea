package logger

import "testing"

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	in := []interface{}{"enrollment_id", "e1", "Authorization", "Bearer abc", "db_dsn", "postgres://u:p@h/db", "dangling"}
	out := sanitizeKVs(in)
	if len(out) != len(in) {
		t.Fatalf("len=%d want %d", len(out), len(in))
	}
	if out[1] != "e1" {
		t.Errorf("plain value changed: %v", out[1])
	}
	if out[3] != "[REDACTED]" || out[5] != "[REDACTED]" {
		t.Errorf("secrets not redacted: %v", out)
	}
	if out[6] != "dangling" {
		t.Errorf("odd trailing key lost: %v", out)
	}
}

func TestNopLoggerIsUsable(t *testing.T) {
	l := Nop().With("component", "test")
	l.Info("hello", "k", "v")
	l.Sync()
}
