package logging_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"picbrand/internal/logging"
	"picbrand/internal/models"
)

func TestNewAppendsToLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "app.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(logPath, []byte("previous line\n"), 0o644); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	logger, err := logging.New(logging.Options{Level: "info", File: logPath, Console: io.Discard})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("image added", zap.String("path", "/in/a.jpg"))
	logger.Error("upload failed")
	logger.Sync() //nolint:errcheck

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	if !strings.HasPrefix(text, "previous line\n") {
		t.Fatalf("expected existing content to be kept, got %q", text)
	}
	if !strings.Contains(text, "INFO - image added") {
		t.Fatalf("expected info line, got %q", text)
	}
	if !strings.Contains(text, "ERROR - upload failed") {
		t.Fatalf("expected error line, got %q", text)
	}
	if strings.Contains(text, "\x1b[") {
		t.Fatalf("file output must not carry color codes: %q", text)
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "app.log")
	logger, err := logging.New(logging.Options{Level: "warn", File: logPath, Console: io.Discard})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	logger.Sync() //nolint:errcheck

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden") {
		t.Fatalf("info line should be filtered: %q", content)
	}
	if !strings.Contains(string(content), "shown") {
		t.Fatalf("warn line missing: %q", content)
	}
}

func TestNewFromConfigNil(t *testing.T) {
	logger, err := logging.NewFromConfig(nil)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
}

func TestNewFromConfigUsesLogFile(t *testing.T) {
	cfg := models.Default()
	cfg.Log.File = filepath.Join(t.TempDir(), "nested", "picbrand.log")

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello")
	logger.Sync() //nolint:errcheck

	if _, err := os.Stat(cfg.Log.File); err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
}
