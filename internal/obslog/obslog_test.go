package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSettingsFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"LOG_LEVEL", "LOG_TO_CONSOLE", "LOG_TO_FILE", "LOG_FILE", "LOG_FORMAT", "LOG_CALLER"} {
		t.Setenv(k, "")
	}
	s := SettingsFromEnv()
	if s.Console {
		t.Fatalf("console logging must be off by default")
	}
	if !s.ToFile || s.File != DefaultLogFile {
		t.Fatalf("unexpected file settings: %+v", s)
	}
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "train.log")
	logger, err := New(Settings{Level: "debug", ToFile: true, File: path, Format: "json"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("engine search finished", zap.String("bestmove", "e2e4"))
	_ = logger.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(raw)
	if !strings.Contains(line, `"bestmove":"e2e4"`) || !strings.Contains(line, `"level":"debug"`) {
		t.Fatalf("unexpected log line %q", line)
	}
}

func TestNewWithoutSinksIsNop(t *testing.T) {
	logger, err := New(Settings{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if logger.Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("expected a no-op logger")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v want %v", in, got, want)
		}
	}
}
