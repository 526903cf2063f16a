package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultLoggerLevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, InfoLevel)

	logger.Debug("hidden")
	logger.WithFields(Fields{"component": "analyzer", "frames": 12}).Info("frames analyzed")
	logger.Error(errors.New("boom"), "stage failed", Fields{"stage": "decode"})

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line emitted at info level:\n%s", out)
	}
	for _, want := range []string{
		"[INFO] frames analyzed component=analyzer frames=12",
		"[ERROR] stage failed: boom stage=decode",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWithContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, DebugLevel)

	ctx := ContextWithFields(context.Background(), Fields{"request_id": "r-1"})
	ctx = ContextWithFields(ctx, Fields{"source": "audio"})
	logger.WithContext(ctx).Debug("start")

	out := buf.String()
	if !strings.Contains(out, "request_id=r-1") || !strings.Contains(out, "source=audio") {
		t.Fatalf("context fields missing:\n%s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", DebugLevel, true},
		{"INFO", InfoLevel, true},
		{"", InfoLevel, true},
		{"warning", WarnLevel, true},
		{"error", ErrorLevel, true},
		{"loud", InfoLevel, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseLevel(%q) = %v,%v want %v,%v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger := NewSlogLogger(base)

	logger.Debug("dropped")
	logger.WithFields(Fields{"component": "loader"}).Warn("resampling", Fields{"from": 44100})

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("debug emitted below configured level:\n%s", out)
	}
	if !strings.Contains(out, "component=loader") || !strings.Contains(out, "from=44100") {
		t.Errorf("fields missing:\n%s", out)
	}

	logger.SetLevel(DebugLevel)
	logger.Debug("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Error("debug not emitted after SetLevel")
	}
}

func TestSetGlobalLoggerNil(t *testing.T) {
	prev := GetGlobalLogger()
	t.Cleanup(func() { SetGlobalLogger(prev) })

	SetGlobalLogger(nil)
	if _, ok := GetGlobalLogger().(*NoOpLogger); !ok {
		t.Fatalf("nil logger should install NoOpLogger, got %T", GetGlobalLogger())
	}
	Info("goes nowhere")
}

func TestColorTerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if colorTerminal(f) {
		t.Error("regular file reported as a terminal")
	}

	t.Setenv("NO_COLOR", "1")
	if colorTerminal(os.Stderr) {
		t.Error("NO_COLOR set but colours enabled")
	}
}

func TestWithFieldsDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWriterLogger(&buf, InfoLevel)
	parent.WithFields(Fields{"child": true}).Info("one")
	parent.Info("two")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || strings.Contains(lines[1], "child=") {
		t.Fatalf("child fields leaked into parent:\n%s", buf.String())
	}
}
