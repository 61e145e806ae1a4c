package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestNewDefaultsToInfoJSONStdout(t *testing.T) {
	logger, err := New("", "", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !logger.Enabled(nil, slog.LevelInfo) {
		t.Fatal("expected info level enabled by default")
	}
	if logger.Enabled(nil, slog.LevelDebug) {
		t.Fatal("expected debug level disabled by default")
	}
}

func TestNewAcceptsTextFormat(t *testing.T) {
	if _, err := New("debug", "text", "stderr"); err != nil {
		t.Fatalf("New: %v", err)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("verbose", "json", "stdout"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("info", "xml", "stdout"); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := New("info", "json", path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected the log file to contain output")
	}
}

func TestNewRejectsUnopenableFile(t *testing.T) {
	if _, err := New("info", "json", filepath.Join(t.TempDir(), "missing-dir", "out.log")); err == nil {
		t.Fatal("expected an error opening a log file in a nonexistent directory")
	}
}
