package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerWritesLevelsToFile(t *testing.T) {
	projectDir := t.TempDir()
	logger, err := New(projectDir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer logger.Close()
	logger.Printf("phase %s started", "checks")
	logger.Warnf("no facts\n")
	logger.Errorf("actor %s failed", "check_os_release")

	lines := logger.Tail(2)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "WARN  no facts") {
		t.Fatalf("unexpected warn line %q", lines[0])
	}
	if !strings.Contains(lines[1], "ERROR actor check_os_release failed") {
		t.Fatalf("unexpected error line %q", lines[1])
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Printf("ignored")
	if logger.Tail(5) != nil {
		t.Fatalf("nil logger must not return lines")
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf)
	logger.Printf("hello")
	if !strings.Contains(buf.String(), "INFO  hello") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
