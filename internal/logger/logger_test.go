package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"prod", "dev"} {
		l, err := New(mode, "debug")
		if err != nil {
			t.Fatalf("New(%q) failed: %v", mode, err)
		}
		l.With("mode", mode).Debug("logger ready")
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("discarded", "k", "v")
	l.Sync()
}
