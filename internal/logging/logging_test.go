package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevelMapping(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"":        zapcore.InfoLevel,
		"info":    zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"warn":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"fatal":   zapcore.FatalLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for raw, want := range cases {
		if got := parseLevel(raw); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func newFileLogger(t *testing.T, jsonMode bool, level zapcore.Level) (*Logger, *os.File) {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "log.out"))
	if err != nil {
		t.Fatal(err)
	}
	core := &renderCore{out: f, level: level, json: jsonMode}
	return &Logger{z: zap.New(core).Sugar()}, f
}

func readBack(t *testing.T, f *os.File) string {
	t.Helper()
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestTextLineShape(t *testing.T) {
	log, f := newFileLogger(t, false, zapcore.InfoLevel)
	named := log.Named("masker")
	named.Info("secret registered", "count", 3)
	f.Sync()

	line := strings.TrimSpace(readBack(t, f))
	if !strings.Contains(line, "[INFO]") {
		t.Fatalf("expected level tag, got %q", line)
	}
	if !strings.Contains(line, "[masker]") {
		t.Fatalf("expected component tag, got %q", line)
	}
	if !strings.Contains(line, "secret registered") {
		t.Fatalf("expected message, got %q", line)
	}
	if !strings.Contains(line, "count=3") {
		t.Fatalf("expected field rendering, got %q", line)
	}
}

func TestTextLineIncludesErrorField(t *testing.T) {
	log, f := newFileLogger(t, false, zapcore.InfoLevel)
	log.Error("validation failed", os.ErrNotExist)
	f.Sync()

	line := readBack(t, f)
	if !strings.Contains(line, "error=") {
		t.Fatalf("expected error field, got %q", line)
	}
	if !strings.Contains(line, os.ErrNotExist.Error()) {
		t.Fatalf("expected underlying error message, got %q", line)
	}
}

func TestJSONLineShape(t *testing.T) {
	log, f := newFileLogger(t, true, zapcore.InfoLevel)
	named := log.Named("validate")
	named.Warn("sensitive env var overridden", "key", "PATH")
	f.Sync()

	line := strings.TrimSpace(readBack(t, f))
	var parsed map[string]any
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		t.Fatalf("expected valid JSON line, got %q: %v", line, err)
	}
	if parsed["level"] != "warn" {
		t.Fatalf("unexpected level: %v", parsed["level"])
	}
	if parsed["component"] != "validate" {
		t.Fatalf("unexpected component: %v", parsed["component"])
	}
	if parsed["message"] != "sensitive env var overridden" {
		t.Fatalf("unexpected message: %v", parsed["message"])
	}
	fields, ok := parsed["fields"].(map[string]any)
	if !ok || fields["key"] != "PATH" {
		t.Fatalf("expected fields.key=PATH, got %v", parsed["fields"])
	}
}

func TestLevelFilteringSuppressesBelowThreshold(t *testing.T) {
	log, f := newFileLogger(t, false, zapcore.WarnLevel)
	log.Debug("should not appear")
	log.Info("should not appear either")
	log.Warn("should appear")
	f.Sync()

	out := readBack(t, f)
	if strings.Contains(out, "should not appear") {
		t.Fatalf("expected debug/info suppressed at warn threshold, got %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("expected warn-level line present, got %q", out)
	}
}

func TestNewDefaultsLevelInfoWithoutEnv(t *testing.T) {
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("LOG_FORMAT")
	log := New()
	if log == nil {
		t.Fatalf("expected non-nil logger")
	}
}
