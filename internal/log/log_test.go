package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warning": LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelWarn)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		SetLevel(LevelInfo)
	})

	Info("hidden")
	Warn("shown", "source", "events")
	Error("failed", errors.New("boom"), "status", 503)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at WARN level: %s", out)
	}
	if !strings.Contains(out, "[WARN] shown source=events") {
		t.Errorf("missing warn line: %s", out)
	}
	if !strings.Contains(out, "[ERROR] failed err=boom status=503") {
		t.Errorf("missing error line: %s", out)
	}
}

func TestFormatKVsQuotesSpaces(t *testing.T) {
	got := formatKVs("msg", "two words", "empty", "", "odd")
	want := ` msg="two words" empty=""`
	if got != want {
		t.Errorf("formatKVs = %q, want %q", got, want)
	}
}
